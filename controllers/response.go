package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/detodounpoco/marketplace-api/config"
	"github.com/detodounpoco/marketplace-api/middleware"
	"github.com/detodounpoco/marketplace-api/services"
	"github.com/detodounpoco/marketplace-api/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes the error envelope for err. Store errors and rejected
// uploads keep their code and message; anything else is logged and reported
// as an internal error.
func respondError(c *gin.Context, err error) {
	var storeErr *services.StoreError
	if errors.As(err, &storeErr) {
		c.JSON(statusForKind(storeErr.Kind), errorBody(storeErr.Code, storeErr.Message))
		return
	}

	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		c.JSON(http.StatusBadRequest, errorBody(uploadErr.Code, uploadErr.Message))
		return
	}

	zap.L().Error("request failed",
		zap.String("route", c.FullPath()),
		zap.String("correlation_id", middleware.GetCorrelationID(c)),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "An unexpected error occurred"))
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// resolveIdentity maps the verified token subject to the caller's Identity.
// It writes the error response itself and reports false on failure.
func resolveIdentity(c *gin.Context) (services.Identity, bool) {
	subject, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Could not extract user information"))
		return services.Identity{}, false
	}

	identity, err := services.NewUserIdentityGate(config.GetDB()).Resolve(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return services.Identity{}, false
	}
	return identity, true
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_ID", "The "+name+" parameter must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

func newMarketplaceService() *services.MarketplaceService {
	return services.NewMarketplaceService(config.GetDB(), marketCurrency())
}

func marketCurrency() string {
	if cfg := config.GetConfig(); cfg != nil && cfg.MarketCurrency != "" {
		return cfg.MarketCurrency
	}
	return config.DefaultMarketCurrency
}
