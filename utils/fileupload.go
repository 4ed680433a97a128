package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MediaKind distinguishes listing images from listing videos
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

const (
	// MaxImageSize is 10MB in bytes
	MaxImageSize = 10 * 1024 * 1024
	// MaxVideoSize is 50MB in bytes
	MaxVideoSize = 50 * 1024 * 1024
)

var (
	// UploadDir is the directory where uploaded files are stored when S3 is not configured
	// Can be overridden for testing
	UploadDir = "./uploads"

	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

	contentTypes = map[MediaKind]map[string]string{
		MediaImage: {
			".png":  "image/png",
			".jpg":  "image/jpeg",
			".jpeg": "image/jpeg",
			".gif":  "image/gif",
			".webp": "image/webp",
		},
		MediaVideo: {
			".mp4":  "video/mp4",
			".webm": "video/webm",
			".mov":  "video/quicktime",
		},
	}
)

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateMediaFile validates the uploaded file format and size for its kind
func ValidateMediaFile(kind MediaKind, fileHeader *multipart.FileHeader) error {
	maxSize := int64(MaxImageSize)
	if kind == MediaVideo {
		maxSize = MaxVideoSize
	}

	if fileHeader.Size > maxSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", maxSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := contentTypes[kind][ext]; !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Unsupported %s format %q", kind, ext),
		}
	}

	return nil
}

// ContentTypeFor returns the MIME type for a media filename, or
// application/octet-stream when the extension is unknown
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, types := range contentTypes {
		if ct, ok := types[ext]; ok {
			return ct
		}
	}
	return "application/octet-stream"
}

// IsServableMedia reports whether a stored filename has a known media extension
func IsServableMedia(filename string) bool {
	return ContentTypeFor(filename) != "application/octet-stream"
}

// StorageFilename builds a collision-resistant object name for an upload.
// Only letters, digits, dots, dashes and underscores of the client filename
// are kept, and the result never contains "..".
func StorageFilename(fileHeader *multipart.FileHeader) string {
	return fmt.Sprintf("%d_%d_%s", time.Now().UnixNano(), fileHeader.Size, sanitizeFilename(fileHeader.Filename))
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := filepath.Ext(base)
	stem := unsafeFilenameChars.ReplaceAllString(strings.TrimSuffix(base, ext), "_")
	for strings.Contains(stem, "..") {
		stem = strings.ReplaceAll(stem, "..", ".")
	}
	stem = strings.Trim(stem, ".")
	if stem == "" {
		stem = "file"
	}
	return stem + unsafeFilenameChars.ReplaceAllString(ext, "_")
}

// SaveUploadedFile saves the uploaded file to the local filesystem
// Returns the filename of the saved file inside uploadDir
func SaveUploadedFile(fileHeader *multipart.FileHeader, uploadDir string) (filename string, err error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename = StorageFilename(fileHeader)
	fullPath := filepath.Join(uploadDir, filename)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

// GetUploadURL returns the URL path for accessing a locally stored upload
func GetUploadURL(filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("/api/v1/uploads/%s", filename)
}
