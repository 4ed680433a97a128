package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/detodounpoco/marketplace-api/utils"
	"go.uber.org/zap"
)

// MediaService handles listing media: upload, URL resolution and deletion
type MediaService interface {
	// UploadMedia validates and stores a file, returns the storage key
	UploadMedia(ctx context.Context, kind utils.MediaKind, fileHeader *multipart.FileHeader) (string, error)

	// GetMediaURL resolves a storage key to a URL clients can fetch
	GetMediaURL(ctx context.Context, key string) (string, error)

	// DeleteMedia removes a stored file
	DeleteMedia(ctx context.Context, key string) error
}

// StorageMediaService implements MediaService over an ObjectStorage backend
type StorageMediaService struct {
	storage ObjectStorage
}

var mediaServiceInstance MediaService

// InitMediaService initializes the media service with a storage backend
func InitMediaService(storage ObjectStorage) MediaService {
	mediaServiceInstance = &StorageMediaService{storage: storage}
	return mediaServiceInstance
}

// GetMediaService returns the initialized media service instance
func GetMediaService() MediaService {
	return mediaServiceInstance
}

// SetMediaService sets the media service instance (primarily for testing)
func SetMediaService(service MediaService) {
	mediaServiceInstance = service
}

// UploadMedia validates and uploads a file into the folder of its kind
func (s *StorageMediaService) UploadMedia(ctx context.Context, kind utils.MediaKind, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateMediaFile(kind, fileHeader); err != nil {
		return "", err
	}

	key, err := s.storage.UploadFile(ctx, fileHeader, "listings/"+string(kind)+"s")
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", kind, err)
	}
	return key, nil
}

// GetMediaURL resolves a key through the storage backend
func (s *StorageMediaService) GetMediaURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	url, err := s.storage.GetURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate media URL: %w", err)
	}
	return url, nil
}

// DeleteMedia deletes a stored file
func (s *StorageMediaService) DeleteMedia(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := s.storage.DeleteFile(ctx, key); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

// UploadListingMedia uploads every image and video of a new listing. If any
// upload fails the files stored so far are deleted again.
func UploadListingMedia(ctx context.Context, media MediaService, images, videos []*multipart.FileHeader) (MediaLocators, error) {
	locators := MediaLocators{Images: []string{}, Videos: []string{}, Stored: true}
	for _, fh := range images {
		key, err := media.UploadMedia(ctx, utils.MediaImage, fh)
		if err != nil {
			ReleaseMedia(ctx, media, locators.Images, locators.Videos)
			return MediaLocators{}, err
		}
		locators.Images = append(locators.Images, key)
	}
	for _, fh := range videos {
		key, err := media.UploadMedia(ctx, utils.MediaVideo, fh)
		if err != nil {
			ReleaseMedia(ctx, media, locators.Images, locators.Videos)
			return MediaLocators{}, err
		}
		locators.Videos = append(locators.Videos, key)
	}
	return locators, nil
}

// ReleaseMedia deletes stored files best-effort, logging failures
func ReleaseMedia(ctx context.Context, media MediaService, keyLists ...[]string) {
	for _, keys := range keyLists {
		for _, key := range keys {
			if err := media.DeleteMedia(ctx, key); err != nil {
				zap.L().Warn("failed to release media", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// AttachMediaURLs fills the computed URL fields of a product. Keys that
// cannot be resolved are skipped.
func AttachMediaURLs(ctx context.Context, media MediaService, product *models.Product) {
	if media == nil {
		return
	}
	product.ImageURLs = resolveURLs(ctx, media, product.Images)
	product.VideoURLs = resolveURLs(ctx, media, product.Videos)
}

func resolveURLs(ctx context.Context, media MediaService, keys []string) []string {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		url, err := media.GetMediaURL(ctx, key)
		if err != nil {
			zap.L().Debug("media URL unavailable", zap.String("key", key), zap.Error(err))
			continue
		}
		urls = append(urls, url)
	}
	return urls
}
