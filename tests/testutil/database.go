package testutil

import (
	"fmt"
	"testing"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database that lives for the test.
// The pool is limited to one connection so every query sees the same database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db), "Failed to migrate test database")

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// CreateUser inserts a user with a derived unique email
func CreateUser(t *testing.T, db *gorm.DB, auth0ID, username string, subscribed bool) *models.User {
	t.Helper()

	user := &models.User{
		Auth0ID:               auth0ID,
		Username:              username,
		Email:                 fmt.Sprintf("%s@example.com", username),
		HasActiveSubscription: subscribed,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
