package controllers

import (
	"net/http"

	"github.com/detodounpoco/marketplace-api/config"
	"github.com/detodounpoco/marketplace-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubscriptionEventRequest is a subscription status change reported by billing
type SubscriptionEventRequest struct {
	UserID  uint   `json:"user_id"`
	Auth0ID string `json:"auth0_id"`
	Active  *bool  `json:"active" binding:"required"`
}

// ApplySubscriptionEvent handles POST /api/v1/billing/subscription-events
// Callers are authenticated by RequireBillingSecret.
func ApplySubscriptionEvent(c *gin.Context) {
	var req SubscriptionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "active is required"))
		return
	}

	gate := services.NewUserIdentityGate(config.GetDB())
	user, err := gate.ApplySubscriptionChange(c.Request.Context(), services.SubscriptionChange{
		UserID:  req.UserID,
		Auth0ID: req.Auth0ID,
		Active:  *req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	zap.L().Info("subscription updated",
		zap.Uint("user_id", user.ID),
		zap.Bool("active", user.HasActiveSubscription),
	)
	respondOK(c, http.StatusOK, user)
}
