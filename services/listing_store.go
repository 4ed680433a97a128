package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListBatchSize = 100

// maxPrice keeps prices inside numeric(12,2)
var maxPrice = decimal.New(1, 10)

// ListingAttributes are the seller-supplied fields of a new listing
type ListingAttributes struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Condition   string
	Category    string
	Images      []string
	Videos      []string
	StoredMedia []string // subset of Images and Videos uploaded by this service
}

// ListingFilter selects listings. Empty fields match everything.
type ListingFilter struct {
	Query     string // case-insensitive substring of the name
	Category  string
	Condition string
	Status    string
}

// ListingStore owns Product rows
type ListingStore struct {
	db             *gorm.DB
	marketCurrency string
	batchSize      int
	now            func() time.Time
}

// NewListingStore creates a listing store. marketCurrency is used when a
// listing is created without a currency.
func NewListingStore(db *gorm.DB, marketCurrency string) *ListingStore {
	return &ListingStore{
		db:             db,
		marketCurrency: strings.ToUpper(marketCurrency),
		batchSize:      defaultListBatchSize,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new available listing for the seller. The subscription
// flag of the caller is checked again here.
func (s *ListingStore) Create(ctx context.Context, seller Identity, attrs ListingAttributes) (*models.Product, error) {
	if !seller.HasActiveSubscription {
		return nil, unauthorized("SUBSCRIPTION_REQUIRED", "An active subscription is required to publish listings")
	}

	product, err := s.buildProduct(seller.UserID, attrs)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(product).Error; err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}
		// Load the seller relationship to return complete data
		if err := tx.Preload("Seller").First(product, product.ID).Error; err != nil {
			return fmt.Errorf("failed to load listing details: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ListingStore) buildProduct(sellerID uint, attrs ListingAttributes) (*models.Product, error) {
	name := strings.TrimSpace(attrs.Name)
	if name == "" {
		return nil, invalidInput("VALIDATION_ERROR", "Name is required")
	}
	description := strings.TrimSpace(attrs.Description)
	if description == "" {
		return nil, invalidInput("VALIDATION_ERROR", "Description is required")
	}
	if attrs.Price.IsNegative() {
		return nil, invalidInput("INVALID_PRICE", "Price must not be negative")
	}
	if attrs.Price.GreaterThanOrEqual(maxPrice) {
		return nil, invalidInput("INVALID_PRICE", "Price is too large")
	}
	condition, ok := models.NormalizeCondition(attrs.Condition)
	if !ok {
		return nil, invalidInput("INVALID_CONDITION", "Condition must be one of new, used, refurbished")
	}
	currency := strings.ToUpper(strings.TrimSpace(attrs.Currency))
	if currency == "" {
		currency = s.marketCurrency
	}
	if !isCurrencyCode(currency) {
		return nil, invalidInput("INVALID_CURRENCY", "Currency must be a 3-letter code")
	}

	now := s.now()
	return &models.Product{
		SellerID:    sellerID,
		Name:        name,
		Description: description,
		Price:       attrs.Price,
		Currency:    currency,
		Condition:   condition,
		Category:    strings.TrimSpace(attrs.Category),
		Images:      nonNil(attrs.Images),
		Videos:      nonNil(attrs.Videos),
		StoredMedia: nonNil(attrs.StoredMedia),
		Status:      models.ProductStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Get returns a listing by id
func (s *ListingStore) Get(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Seller").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productNotFound()
		}
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	return &product, nil
}

// List returns the listings matching filter, most recently created first.
// Rows are fetched lazily in batches while the sequence is consumed; every
// call starts again from the newest listing.
func (s *ListingStore) List(ctx context.Context, filter ListingFilter) iter.Seq2[models.Product, error] {
	return func(yield func(models.Product, error) bool) {
		if err := filter.validate(); err != nil {
			yield(models.Product{}, err)
			return
		}

		var last *models.Product
		for {
			query := s.filtered(ctx, filter)
			if last != nil {
				query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", last.CreatedAt, last.CreatedAt, last.ID)
			}

			var batch []models.Product
			if err := query.Preload("Seller").
				Order("created_at DESC").
				Order("id DESC").
				Limit(s.batchSize).
				Find(&batch).Error; err != nil {
				yield(models.Product{}, fmt.Errorf("failed to list listings: %w", err))
				return
			}

			for _, product := range batch {
				if !yield(product, nil) {
					return
				}
			}
			if len(batch) < s.batchSize {
				return
			}
			last = &batch[len(batch)-1]
		}
	}
}

func (s *ListingStore) filtered(ctx context.Context, filter ListingFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(q))+"%")
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if filter.Condition != "" {
		condition, _ := models.NormalizeCondition(filter.Condition)
		query = query.Where("condition = ?", condition)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return query
}

func (f ListingFilter) validate() error {
	if f.Condition != "" {
		if _, ok := models.NormalizeCondition(f.Condition); !ok {
			return invalidInput("INVALID_CONDITION", "Condition must be one of new, used, refurbished")
		}
	}
	if f.Status != "" && !models.IsValidStatus(f.Status) {
		return invalidInput("INVALID_STATUS", "Status must be available or sold")
	}
	return nil
}

// ListBySeller returns every listing of a seller in any status, newest first
func (s *ListingStore) ListBySeller(ctx context.Context, sellerID uint) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Preload("Seller").
		Order("created_at DESC").
		Order("id DESC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list seller listings: %w", err)
	}
	return products, nil
}

// Count returns the number of stored listings
func (s *ListingStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}

// MarkSold moves a listing from available to sold. Only the seller may do
// this, and a listing that is already sold is rejected with InvalidState.
func (s *ListingStore) MarkSold(ctx context.Context, id, callerID uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProduct(tx, id, "UPDATE", &product); err != nil {
			return err
		}
		if product.SellerID != callerID {
			return unauthorized("FORBIDDEN", "Only the seller can mark this listing as sold")
		}
		if product.IsSold() {
			return invalidState("ALREADY_SOLD", "Listing is already marked as sold")
		}

		now := s.now()
		result := tx.Model(&models.Product{}).
			Where("id = ? AND status = ?", id, models.ProductStatusAvailable).
			Updates(map[string]interface{}{
				"status":     models.ProductStatusSold,
				"sold_at":    now,
				"updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark listing as sold: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return invalidState("ALREADY_SOLD", "Listing is already marked as sold")
		}

		return tx.Preload("Seller").First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Delete removes a listing of any status together with its whole thread.
// The deleted listing is returned so callers can release its media; its
// StoredMedia is narrowed to the keys no remaining listing refers to.
func (s *ListingStore) Delete(ctx context.Context, id, callerID uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProduct(tx, id, "UPDATE", &product); err != nil {
			return err
		}
		if product.SellerID != callerID {
			return unauthorized("FORBIDDEN", "Only the seller can delete this listing")
		}

		if _, err := NewInquiryStore(tx).DeleteByProduct(ctx, id); err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete listing: %w", err)
		}

		releasable := make([]string, 0, len(product.StoredMedia))
		for _, key := range product.StoredMedia {
			referenced, err := mediaReferenced(tx, key, id)
			if err != nil {
				return err
			}
			if !referenced {
				releasable = append(releasable, key)
			}
		}
		product.StoredMedia = releasable
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// MediaInUse returns the first of keys that is attached to an existing
// listing, or "" when none is
func (s *ListingStore) MediaInUse(ctx context.Context, keys []string) (string, error) {
	tx := s.db.WithContext(ctx)
	for _, key := range keys {
		referenced, err := mediaReferenced(tx, key, 0)
		if err != nil {
			return "", err
		}
		if referenced {
			return key, nil
		}
	}
	return "", nil
}

// mediaReferenced reports whether a listing other than exceptID lists key
// among its images or videos
func mediaReferenced(tx *gorm.DB, key string, exceptID uint) (bool, error) {
	// Media columns hold JSON arrays, so match the quoted element
	quoted, err := json.Marshal(key)
	if err != nil {
		return false, fmt.Errorf("failed to encode media key: %w", err)
	}
	pattern := "%" + escapeLike(string(quoted)) + "%"

	var count int64
	if err := tx.Model(&models.Product{}).
		Where("id <> ?", exceptID).
		Where("(images LIKE ? ESCAPE '\\' OR videos LIKE ? ESCAPE '\\')", pattern, pattern).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check media references: %w", err)
	}
	return count > 0, nil
}

// lockProduct loads a product inside tx with a row lock of the given strength
func lockProduct(tx *gorm.DB, id uint, strength string, product *models.Product) error {
	err := tx.Clauses(clause.Locking{Strength: strength}).
		First(product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return productNotFound()
		}
		return fmt.Errorf("failed to load listing: %w", err)
	}
	return nil
}

func productNotFound() error {
	return notFound("PRODUCT_NOT_FOUND", "Product not found")
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
