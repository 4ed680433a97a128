package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/detodounpoco/marketplace-api/models"
	"gorm.io/gorm"
)

// Identity is the verified caller of a marketplace operation. It is passed
// explicitly to every operation that needs it.
type Identity struct {
	UserID                uint
	HasActiveSubscription bool
}

// IdentityGate turns a verified token subject into an Identity
type IdentityGate interface {
	Resolve(ctx context.Context, subject string) (Identity, error)
}

// UserIdentityGate resolves identities from the users table and applies
// subscription changes reported by billing
type UserIdentityGate struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserIdentityGate creates an identity gate backed by the users table
func NewUserIdentityGate(db *gorm.DB) *UserIdentityGate {
	return &UserIdentityGate{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Resolve looks up the user registered for an Auth0 subject
func (g *UserIdentityGate) Resolve(ctx context.Context, subject string) (Identity, error) {
	var user models.User
	if err := g.db.WithContext(ctx).Where("auth0_id = ?", subject).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, notFound("USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		}
		return Identity{}, fmt.Errorf("failed to resolve identity: %w", err)
	}
	return Identity{UserID: user.ID, HasActiveSubscription: user.HasActiveSubscription}, nil
}

// SubscriptionChange is a billing event for one user. Exactly one of UserID
// or Auth0ID identifies the user.
type SubscriptionChange struct {
	UserID  uint
	Auth0ID string
	Active  bool
}

// ApplySubscriptionChange sets the subscription flag of the referenced user
func (g *UserIdentityGate) ApplySubscriptionChange(ctx context.Context, change SubscriptionChange) (*models.User, error) {
	if change.UserID == 0 && change.Auth0ID == "" {
		return nil, invalidInput("VALIDATION_ERROR", "user_id or auth0_id is required")
	}

	var user models.User
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if change.UserID != 0 {
			query = query.Where("id = ?", change.UserID)
		} else {
			query = query.Where("auth0_id = ?", change.Auth0ID)
		}
		if err := query.First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("USER_NOT_FOUND", "User not found")
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		now := g.now()
		if err := tx.Model(&user).Updates(map[string]interface{}{
			"has_active_subscription": change.Active,
			"subscription_updated_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		user.HasActiveSubscription = change.Active
		user.SubscriptionUpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
