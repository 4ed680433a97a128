package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/detodounpoco/marketplace-api/utils"
	"github.com/gin-gonic/gin"
)

// GetUploadedMedia handles GET /api/v1/uploads/:filename - serves locally stored listing media
func GetUploadedMedia(c *gin.Context) {
	filename := c.Param("filename")

	// Validate filename is not empty
	if filename == "" {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_REQUEST", "Filename is required"))
		return
	}

	// Security: Prevent directory traversal attacks
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_FILENAME", "Invalid filename"))
		return
	}

	if !utils.IsServableMedia(filename) {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_FILE_TYPE", "Unsupported media type"))
		return
	}

	filePath := filepath.Join(utils.UploadDir, filename)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, errorBody("FILE_NOT_FOUND", "Media not found"))
		return
	}

	c.Header("Content-Type", utils.ContentTypeFor(filename))
	c.Header("Cache-Control", "public, max-age=86400") // Cache for 24 hours
	c.File(filePath)
}
