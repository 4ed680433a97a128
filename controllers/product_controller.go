package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/detodounpoco/marketplace-api/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PublishProductRequest is the JSON form of a publish request. Media are
// locators of files that are already stored.
type PublishProductRequest struct {
	SellerID    *uint            `json:"seller_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Currency    string           `json:"currency"`
	Condition   string           `json:"condition"`
	Category    string           `json:"category"`
	Images      []string         `json:"images"`
	Videos      []string         `json:"videos"`
}

// BrowseProducts handles GET /api/v1/products - lists listings newest first
// Query parameters: q, category, condition, status, limit
func BrowseProducts(c *gin.Context) {
	limit := services.DefaultBrowseLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorBody("INVALID_LIMIT", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	filter := services.ListingFilter{
		Query:     c.Query("q"),
		Category:  c.Query("category"),
		Condition: c.Query("condition"),
		Status:    c.Query("status"),
	}

	products, err := newMarketplaceService().Browse(c.Request.Context(), filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	attachProductURLs(c, products)
	respondOK(c, http.StatusOK, products)
}

// GetProduct handles GET /api/v1/products/:id - returns a listing with its thread
func GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := newMarketplaceService().GetDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if media := services.GetMediaService(); media != nil {
		services.AttachMediaURLs(c.Request.Context(), media, detail.Product)
	}
	respondOK(c, http.StatusOK, detail)
}

// ListProductsBySeller handles GET /api/v1/products/by-user/:sellerId
func ListProductsBySeller(c *gin.Context) {
	sellerID, ok := parseID(c, "sellerId")
	if !ok {
		return
	}

	products, err := newMarketplaceService().ListBySeller(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}

	attachProductURLs(c, products)
	respondOK(c, http.StatusOK, products)
}

// PublishProduct handles POST /api/v1/products/add
// Accepts multipart/form-data with image and video files, or JSON with
// already-stored media locators.
func PublishProduct(c *gin.Context) {
	caller, ok := resolveIdentity(c)
	if !ok {
		return
	}

	// Reject before any file is stored
	if !caller.HasActiveSubscription {
		c.JSON(http.StatusForbidden, errorBody("SUBSCRIPTION_REQUIRED", "An active subscription is required to publish listings"))
		return
	}

	var (
		attrs services.ListingAttributes
		media services.MediaLocators
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "Invalid multipart form"))
			return
		}
		if !sellerMatches(c, form.Value["seller_id"], caller) {
			return
		}
		if attrs, ok = listingAttributesFromForm(c, form); !ok {
			return
		}

		images, videos := form.File["images"], form.File["videos"]
		if len(images)+len(videos) == 0 {
			c.JSON(http.StatusBadRequest, errorBody("MEDIA_REQUIRED", "At least one image or video is required"))
			return
		}
		mediaService := services.GetMediaService()
		if mediaService == nil {
			c.JSON(http.StatusServiceUnavailable, errorBody("STORAGE_UNAVAILABLE", "Media storage is not configured"))
			return
		}
		media, err = services.UploadListingMedia(c.Request.Context(), mediaService, images, videos)
		if err != nil {
			respondError(c, err)
			return
		}
	} else {
		var req PublishProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "Invalid request data"))
			return
		}
		if req.SellerID != nil && *req.SellerID != caller.UserID {
			c.JSON(http.StatusForbidden, errorBody("FORBIDDEN", "seller_id must be the authenticated user"))
			return
		}
		if req.Price == nil {
			c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "Price is required"))
			return
		}
		attrs = services.ListingAttributes{
			Name:        req.Name,
			Description: req.Description,
			Price:       *req.Price,
			Currency:    req.Currency,
			Condition:   req.Condition,
			Category:    req.Category,
		}
		media = services.MediaLocators{Images: req.Images, Videos: req.Videos}
	}

	product, err := newMarketplaceService().PublishListing(c.Request.Context(), caller, attrs, media)
	if err != nil {
		if media.Stored {
			services.ReleaseMedia(c.Request.Context(), services.GetMediaService(), media.Images, media.Videos)
		}
		respondError(c, err)
		return
	}

	zap.L().Info("listing published",
		zap.Uint("product_id", product.ID),
		zap.Uint("seller_id", product.SellerID),
	)

	if mediaService := services.GetMediaService(); mediaService != nil {
		services.AttachMediaURLs(c.Request.Context(), mediaService, product)
	}
	respondOK(c, http.StatusCreated, product)
}

// MarkProductSold handles PUT /api/v1/products/sold/:id
func MarkProductSold(c *gin.Context) {
	caller, ok := resolveIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := newMarketplaceService().MarkSold(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if media := services.GetMediaService(); media != nil {
		services.AttachMediaURLs(c.Request.Context(), media, product)
	}
	respondOK(c, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/:id - deletes a listing and its thread
func DeleteProduct(c *gin.Context) {
	caller, ok := resolveIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := newMarketplaceService().DeleteListing(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}

	// Media go after the commit; a leftover object is harmless
	if media := services.GetMediaService(); media != nil {
		services.ReleaseMedia(c.Request.Context(), media, product.StoredMedia)
	}

	respondOK(c, http.StatusOK, gin.H{"id": product.ID, "deleted": true})
}

func sellerMatches(c *gin.Context, values []string, caller services.Identity) bool {
	if len(values) == 0 || values[0] == "" {
		return true
	}
	sellerID, err := strconv.ParseUint(values[0], 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "seller_id must be a positive integer"))
		return false
	}
	if uint(sellerID) != caller.UserID {
		c.JSON(http.StatusForbidden, errorBody("FORBIDDEN", "seller_id must be the authenticated user"))
		return false
	}
	return true
}

func listingAttributesFromForm(c *gin.Context, form *multipart.Form) (services.ListingAttributes, bool) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	rawPrice := strings.TrimSpace(value("price"))
	if rawPrice == "" {
		c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "Price is required"))
		return services.ListingAttributes{}, false
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_PRICE", "Price must be a decimal number"))
		return services.ListingAttributes{}, false
	}

	return services.ListingAttributes{
		Name:        value("name"),
		Description: value("description"),
		Price:       price,
		Currency:    value("currency"),
		Condition:   value("condition"),
		Category:    value("category"),
	}, true
}

func attachProductURLs(c *gin.Context, products []models.Product) {
	media := services.GetMediaService()
	if media == nil {
		return
	}
	for i := range products {
		services.AttachMediaURLs(c.Request.Context(), media, &products[i])
	}
}
