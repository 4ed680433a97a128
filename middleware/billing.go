package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BillingSecretHeader carries the shared secret of the billing provider
const BillingSecretHeader = "X-Billing-Secret"

// RequireBillingSecret admits only requests presenting the configured billing
// secret. With no secret configured the endpoint is disabled.
func RequireBillingSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "BILLING_DISABLED",
					"message": "Billing events are not enabled",
				},
			})
			return
		}

		presented := c.GetHeader(BillingSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_BILLING_SECRET",
					"message": "Billing secret is missing or invalid",
				},
			})
			return
		}
		c.Next()
	}
}
