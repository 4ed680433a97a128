package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/detodounpoco/marketplace-api/utils"
)

// LocalStorage stores media in a directory served by GET /uploads/:filename.
// Keys are bare filenames; folders are not used on disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a filesystem storage backend rooted at dir
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

// UploadFile copies the upload into the storage directory
func (l *LocalStorage) UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (string, error) {
	return utils.SaveUploadedFile(fileHeader, l.dir)
}

// GetURL returns the API path that serves the file
func (l *LocalStorage) GetURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if !validLocalKey(key) {
		return "", fmt.Errorf("invalid local media key %q", key)
	}
	return utils.GetUploadURL(key), nil
}

// DeleteFile removes the file; a missing file is not an error
func (l *LocalStorage) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if !validLocalKey(key) {
		return fmt.Errorf("invalid local media key %q", key)
	}
	if err := os.Remove(filepath.Join(l.dir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func validLocalKey(key string) bool {
	return !strings.Contains(key, "..") && !strings.ContainsAny(key, `/\`)
}
