package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/detodounpoco/marketplace-api/middleware"
	"github.com/gin-gonic/gin"
)

// TestUserHeader names the request header MockAuth reads the caller from
const TestUserHeader = "X-Test-User"

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID string, issuer string, scopes []string) {
	claims := MockValidatedClaims(userID, issuer, scopes)
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.ClaimsKey, claims)
	c.Set(middleware.AccessTokenKey, "mock-token")
}

// MockAuth stands in for EnsureValidToken. The caller's subject is read from
// the X-Test-User header; requests without it are rejected like a missing JWT.
func MockAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader(TestUserHeader)
		if subject == "" {
			c.AbortWithStatusJSON(401, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		SetMockAuthContext(c, subject, "https://test.auth0.com/", nil)
		c.Next()
	}
}
