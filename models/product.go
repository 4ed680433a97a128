package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product status values. The only legal transition is available -> sold.
const (
	ProductStatusAvailable = "available"
	ProductStatusSold      = "sold"
)

// Product condition values
const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
)

// conditionAliases maps accepted labels to the stored condition value.
// The Spanish labels are what the storefront form submits.
var conditionAliases = map[string]string{
	ConditionNew:         ConditionNew,
	ConditionUsed:        ConditionUsed,
	ConditionRefurbished: ConditionRefurbished,
	"nuevo":              ConditionNew,
	"usado":              ConditionUsed,
	"reacondicionado":    ConditionRefurbished,
}

// NormalizeCondition returns the stored form of a condition label
func NormalizeCondition(label string) (string, bool) {
	condition, ok := conditionAliases[strings.ToLower(strings.TrimSpace(label))]
	return condition, ok
}

// IsValidStatus reports whether status is a known product status
func IsValidStatus(status string) bool {
	return status == ProductStatusAvailable || status == ProductStatusSold
}

// Product represents an item listed for sale
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SellerID    uint            `gorm:"not null;index" json:"seller_id"` // foreign key to users table
	Seller      User            `gorm:"foreignKey:SellerID" json:"seller"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Condition   string          `gorm:"not null;index" json:"condition"` // new, used, refurbished
	Category    string          `gorm:"index" json:"category"`
	Images      []string        `gorm:"serializer:json" json:"images"` // ordered storage keys
	Videos      []string        `gorm:"serializer:json" json:"videos"`
	ImageURLs   []string        `gorm:"-" json:"image_urls,omitempty"` // computed field, resolved image locations
	VideoURLs   []string        `gorm:"-" json:"video_urls,omitempty"`
	// StoredMedia are the keys uploaded for this listing, the only ones released on delete
	StoredMedia []string        `gorm:"serializer:json" json:"-"`
	Status      string          `gorm:"not null;default:'available';index" json:"status"` // available, sold
	SoldAt      *time.Time      `json:"sold_at,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// IsSold reports whether the product reached its terminal status
func (p Product) IsSold() bool {
	return p.Status == ProductStatusSold
}

// MediaKeys returns every stored media key of the product, images first
func (p Product) MediaKeys() []string {
	keys := make([]string, 0, len(p.Images)+len(p.Videos))
	keys = append(keys, p.Images...)
	return append(keys, p.Videos...)
}
