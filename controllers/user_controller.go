package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/detodounpoco/marketplace-api/config"
	"github.com/detodounpoco/marketplace-api/middleware"
	"github.com/detodounpoco/marketplace-api/models"
	"github.com/detodounpoco/marketplace-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Username string `json:"username" binding:"omitempty,min=2,max=50"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// CreateUser handles POST /api/v1/users - creates the caller's profile from Auth0 userinfo
// The subscription flag always starts false; only billing events change it.
func CreateUser(c *gin.Context) {
	// Get the Auth0 user ID from the validated JWT
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Could not extract user ID from token"))
		return
	}

	// Get the access token to call Auth0's /userinfo endpoint
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("MISSING_TOKEN", "Access token not found"))
		return
	}

	auth0Service := services.NewAuth0Service(config.GetConfig())
	userInfo, err := auth0Service.GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		zap.L().Warn("auth0 userinfo failed", zap.String("auth0_id", auth0ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("AUTH0_ERROR", "Failed to fetch user information from Auth0"))
		return
	}

	// Validate that required fields are present
	if userInfo.Email == "" {
		c.JSON(http.StatusBadRequest, errorBody("MISSING_EMAIL", "Email not provided by Auth0"))
		return
	}
	username := userInfo.DisplayName()
	if username == "" {
		c.JSON(http.StatusBadRequest, errorBody("MISSING_NAME", "Name not provided by Auth0"))
		return
	}

	user := models.User{
		Auth0ID:  auth0ID,
		Username: username,
		Email:    userInfo.Email,
	}

	db := config.GetDB()
	if err := db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, errorBody("USER_EXISTS", "A user with this Auth0 ID or email already exists"))
			return
		}
		respondError(c, err)
		return
	}

	zap.L().Info("user created", zap.Uint("user_id", user.ID))
	respondOK(c, http.StatusCreated, user.Account())
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, user.Account())
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	// Update fields if provided
	updates := make(map[string]interface{})
	if username := strings.TrimSpace(req.Username); username != "" {
		updates["username"] = username
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}

	// If no fields to update, return current user
	if len(updates) == 0 {
		respondOK(c, http.StatusOK, user.Account())
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, errorBody("EMAIL_EXISTS", "A user with this email already exists"))
			return
		}
		respondError(c, err)
		return
	}

	// Fetch updated user to return
	if err := db.First(user, user.ID).Error; err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user.Account())
}

// GetUser handles GET /api/v1/users/:id - public profile of a marketplace member
func GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorBody("USER_NOT_FOUND", "User not found"))
			return
		}
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}

func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Could not extract user information"))
		return nil, false
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorBody("USER_NOT_FOUND", "User profile not found. Please create a profile first."))
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}
	return &user, true
}

// isUniqueViolation detects duplicate keys on both PostgreSQL and SQLite
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique")
}
