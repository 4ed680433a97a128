package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/detodounpoco/marketplace-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadEntry is one question with the seller's answers to it
type ThreadEntry struct {
	Question models.Message   `json:"question"`
	Answers  []models.Message `json:"answers"`
}

// InquiryStore owns the question and answer messages of listings
type InquiryStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInquiryStore creates an inquiry store
func NewInquiryStore(db *gorm.DB) *InquiryStore {
	return &InquiryStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ListByProduct returns the messages of a product, oldest first
func (s *InquiryStore) ListByProduct(ctx context.Context, productID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Preload("Sender").
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

// PostQuestion adds a top-level question to a product's thread. Anyone may ask.
func (s *InquiryStore) PostQuestion(ctx context.Context, productID, senderID uint, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalidInput("VALIDATION_ERROR", "Message body is required")
	}

	message := models.Message{
		ProductID: productID,
		SenderID:  senderID,
		Body:      body,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The shared lock keeps a concurrent delete from committing
		// between the existence check and the insert.
		var product models.Product
		if err := lockProduct(tx, productID, "SHARE", &product); err != nil {
			return err
		}
		return s.insert(tx, &message)
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// PostAnswer replies to a question of a product's thread. Only the seller of
// the product may answer, and only top-level questions can be answered.
func (s *InquiryStore) PostAnswer(ctx context.Context, productID, parentID, senderID uint, body string) (*models.Message, error) {
	parent := parentID
	message := models.Message{
		ProductID: productID,
		SenderID:  senderID,
		ParentID:  &parent,
		Body:      strings.TrimSpace(body),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockProduct(tx, productID, "SHARE", &product); err != nil {
			return err
		}
		if product.SellerID != senderID {
			return unauthorized("FORBIDDEN", "Only the seller can answer questions on this listing")
		}
		if message.Body == "" {
			return invalidInput("VALIDATION_ERROR", "Message body is required")
		}

		var question models.Message
		if err := tx.Where("id = ? AND product_id = ?", parentID, productID).First(&question).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidInput("INVALID_PARENT", "The referenced question does not exist on this listing")
			}
			return fmt.Errorf("failed to load parent message: %w", err)
		}
		if !question.IsQuestion() {
			return invalidInput("NESTED_REPLY", "Replies can only be posted to questions")
		}

		return s.insert(tx, &message)
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *InquiryStore) insert(tx *gorm.DB, message *models.Message) error {
	message.CreatedAt = s.now()
	if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	// Load the sender relationship to return complete data
	if err := tx.Preload("Sender").First(message, message.ID).Error; err != nil {
		return fmt.Errorf("failed to load message details: %w", err)
	}
	return nil
}

// DeleteByProduct removes the whole thread of a product. It is called by the
// listing store from inside the transaction that deletes the product.
func (s *InquiryStore) DeleteByProduct(ctx context.Context, productID uint) (int64, error) {
	result := s.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// BuildThread groups messages in creation order into questions with their
// answers. Answers whose question is not among messages are dropped.
func BuildThread(messages []models.Message) []ThreadEntry {
	thread := make([]ThreadEntry, 0)
	index := make(map[uint]int)
	for _, m := range messages {
		if m.IsQuestion() {
			index[m.ID] = len(thread)
			thread = append(thread, ThreadEntry{Question: m, Answers: []models.Message{}})
		}
	}
	for _, m := range messages {
		if m.IsQuestion() {
			continue
		}
		if i, ok := index[*m.ParentID]; ok {
			thread[i].Answers = append(thread[i].Answers, m)
		}
	}
	return thread
}
