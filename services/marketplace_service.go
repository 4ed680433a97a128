package services

import (
	"context"
	"fmt"

	"github.com/detodounpoco/marketplace-api/metrics"
	"github.com/detodounpoco/marketplace-api/models"
	"gorm.io/gorm"
)

const (
	// DefaultBrowseLimit is used when a browse request does not name a limit
	DefaultBrowseLimit = 50
	// MaxBrowseLimit caps the number of listings returned by one browse
	MaxBrowseLimit = 100
)

// MediaLocators are already-stored media keys to attach to a new listing
type MediaLocators struct {
	Images []string
	Videos []string
	// Stored is set when the keys were uploaded for this listing. Only
	// stored keys are deleted together with the listing.
	Stored bool
}

// ListingDetail is a listing together with its grouped thread
type ListingDetail struct {
	Product *models.Product `json:"product"`
	Thread  []ThreadEntry   `json:"thread"`
}

// MarketplaceService composes the listing and inquiry stores into the
// operations exposed by the API
type MarketplaceService struct {
	db        *gorm.DB
	listings  *ListingStore
	inquiries *InquiryStore
}

// NewMarketplaceService creates the marketplace service over one database
func NewMarketplaceService(db *gorm.DB, marketCurrency string) *MarketplaceService {
	return &MarketplaceService{
		db:        db,
		listings:  NewListingStore(db, marketCurrency),
		inquiries: NewInquiryStore(db),
	}
}

// Listings exposes the underlying listing store
func (m *MarketplaceService) Listings() *ListingStore {
	return m.listings
}

// PublishListing creates a listing for a subscribed caller and attaches the
// given media locators verbatim. Locators that were not uploaded for this
// listing must not belong to another listing.
func (m *MarketplaceService) PublishListing(ctx context.Context, caller Identity, attrs ListingAttributes, media MediaLocators) (*models.Product, error) {
	if !caller.HasActiveSubscription {
		return nil, unauthorized("SUBSCRIPTION_REQUIRED", "An active subscription is required to publish listings")
	}
	if len(media.Images)+len(media.Videos) == 0 {
		return nil, invalidInput("MEDIA_REQUIRED", "At least one image or video is required")
	}

	keys := append(append([]string{}, media.Images...), media.Videos...)
	attrs.Images = media.Images
	attrs.Videos = media.Videos
	attrs.StoredMedia = nil
	if media.Stored {
		attrs.StoredMedia = keys
	} else {
		key, err := m.listings.MediaInUse(ctx, keys)
		if err != nil {
			return nil, err
		}
		if key != "" {
			return nil, invalidState("MEDIA_IN_USE", fmt.Sprintf("Media %q is attached to another listing", key))
		}
	}

	product, err := m.listings.Create(ctx, caller, attrs)
	if err != nil {
		return nil, err
	}
	metrics.ListingsPublished.Inc()
	return product, nil
}

// Browse returns up to limit listings matching filter, newest first
func (m *MarketplaceService) Browse(ctx context.Context, filter ListingFilter, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = DefaultBrowseLimit
	}
	if limit > MaxBrowseLimit {
		limit = MaxBrowseLimit
	}

	products := make([]models.Product, 0)
	for product, err := range m.listings.List(ctx, filter) {
		if err != nil {
			return nil, err
		}
		products = append(products, product)
		if len(products) == limit {
			break
		}
	}
	return products, nil
}

// ListBySeller returns every listing of a seller
func (m *MarketplaceService) ListBySeller(ctx context.Context, sellerID uint) ([]models.Product, error) {
	return m.listings.ListBySeller(ctx, sellerID)
}

// GetDetail returns a listing with its whole thread read under the same
// product lock, so a concurrent delete is seen entirely or not at all
func (m *MarketplaceService) GetDetail(ctx context.Context, productID uint) (*ListingDetail, error) {
	var detail ListingDetail
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockProduct(tx, productID, "SHARE", &product); err != nil {
			return err
		}
		if err := tx.Where("id = ?", product.SellerID).Limit(1).Find(&product.Seller).Error; err != nil {
			return fmt.Errorf("failed to load seller: %w", err)
		}
		messages, err := NewInquiryStore(tx).ListByProduct(ctx, productID)
		if err != nil {
			return err
		}
		detail.Product = &product
		detail.Thread = BuildThread(messages)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// Thread returns the flat message list of a listing, oldest first
func (m *MarketplaceService) Thread(ctx context.Context, productID uint) ([]models.Message, error) {
	var messages []models.Message
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockProduct(tx, productID, "SHARE", &product); err != nil {
			return err
		}
		var err error
		messages, err = NewInquiryStore(tx).ListByProduct(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkSold marks the caller's listing as sold
func (m *MarketplaceService) MarkSold(ctx context.Context, caller Identity, productID uint) (*models.Product, error) {
	product, err := m.listings.MarkSold(ctx, productID, caller.UserID)
	if err != nil {
		return nil, err
	}
	metrics.ListingsSold.Inc()
	return product, nil
}

// DeleteListing deletes the caller's listing and its thread
func (m *MarketplaceService) DeleteListing(ctx context.Context, caller Identity, productID uint) (*models.Product, error) {
	product, err := m.listings.Delete(ctx, productID, caller.UserID)
	if err != nil {
		return nil, err
	}
	metrics.ListingsDeleted.Inc()
	return product, nil
}

// AskQuestion posts a top-level question on a listing
func (m *MarketplaceService) AskQuestion(ctx context.Context, caller Identity, productID uint, body string) (*models.Message, error) {
	message, err := m.inquiries.PostQuestion(ctx, productID, caller.UserID, body)
	if err != nil {
		return nil, err
	}
	metrics.RecordThreadMessage("question")
	return message, nil
}

// PostAnswer posts the seller's answer to a question
func (m *MarketplaceService) PostAnswer(ctx context.Context, caller Identity, productID, parentID uint, body string) (*models.Message, error) {
	message, err := m.inquiries.PostAnswer(ctx, productID, parentID, caller.UserID, body)
	if err != nil {
		return nil, err
	}
	metrics.RecordThreadMessage("answer")
	return message, nil
}
