package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a marketplace member (buyer, seller or both)
type User struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Auth0ID               string         `gorm:"uniqueIndex;not null" json:"-"` // Auth0 user ID (from 'sub' claim)
	Username              string         `gorm:"not null" json:"username"`
	Email                 string         `gorm:"uniqueIndex;not null" json:"-"`                         // shown only through Account
	HasActiveSubscription bool           `gorm:"not null;default:false" json:"has_active_subscription"` // written only by billing events
	SubscriptionUpdatedAt *time.Time     `json:"subscription_updated_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// AccountView is the profile a user sees of themselves. Other members only
// ever receive the embedded public fields.
type AccountView struct {
	User
	Email string `json:"email"`
}

// Account returns the caller-facing view of u, including the email
func (u User) Account() AccountView {
	return AccountView{User: u, Email: u.Email}
}
