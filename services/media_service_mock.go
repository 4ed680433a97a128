package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync"

	"github.com/detodounpoco/marketplace-api/utils"
)

// MockMediaService is a mock implementation of MediaService for testing
type MockMediaService struct {
	uploaded map[string]utils.MediaKind
	deleted  []string
	mu       sync.RWMutex
}

// NewMockMediaService creates a new mock media service
func NewMockMediaService() *MockMediaService {
	return &MockMediaService{uploaded: make(map[string]utils.MediaKind)}
}

// SetAsMockForTesting sets this mock as the global media service instance for testing
func (m *MockMediaService) SetAsMockForTesting() {
	SetMediaService(m)
}

// UploadMedia validates the file and records it under a mock key
func (m *MockMediaService) UploadMedia(ctx context.Context, kind utils.MediaKind, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateMediaFile(kind, fileHeader); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("listings/%ss/mock_%d_%s", kind, len(m.uploaded), fileHeader.Filename)
	m.uploaded[key] = kind
	return key, nil
}

// GetMediaURL returns a mock URL for any key
func (m *MockMediaService) GetMediaURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// DeleteMedia records the deletion
func (m *MockMediaService) DeleteMedia(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.uploaded, key)
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	return nil
}

// Exists checks if a key is currently stored
func (m *MockMediaService) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.uploaded[key]
	return ok
}

// Count returns the number of stored files
func (m *MockMediaService) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uploaded)
}

// Deleted returns the keys deleted so far (for testing assertions)
func (m *MockMediaService) Deleted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}
