package controllers

import (
	"net/http"

	"github.com/detodounpoco/marketplace-api/services"
	"github.com/gin-gonic/gin"
)

// PostMessageRequest represents the request body for posting to a listing's thread.
// A message without parentId is a question; with parentId it answers that question.
type PostMessageRequest struct {
	ProductID uint   `json:"productId" binding:"required"`
	SenderID  *uint  `json:"senderId"`
	Body      string `json:"body"`
	Message   string `json:"message"` // older clients send the text here
	ParentID  *uint  `json:"parentId"`
}

func (r PostMessageRequest) text() string {
	if r.Body != "" {
		return r.Body
	}
	return r.Message
}

// PostMessage handles POST /api/v1/messages - posts a question or an answer
func PostMessage(c *gin.Context) {
	caller, ok := resolveIdentity(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "productId is required"))
		return
	}

	// The sender is always the caller; a differing senderId is an impersonation attempt
	if req.SenderID != nil && *req.SenderID != caller.UserID {
		c.JSON(http.StatusForbidden, errorBody("FORBIDDEN", "senderId must be the authenticated user"))
		return
	}

	marketplace := newMarketplaceService()
	ctx := c.Request.Context()
	if req.ParentID == nil {
		message, err := marketplace.AskQuestion(ctx, caller, req.ProductID, req.text())
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, message)
		return
	}

	message, err := marketplace.PostAnswer(ctx, caller, req.ProductID, *req.ParentID, req.text())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, message)
}

// ListProductMessages handles GET /api/v1/messages/by-product/:id
// Returns the flat thread oldest first; clients group answers under parentId.
func ListProductMessages(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}

	messages, err := newMarketplaceService().Thread(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"messages": messages,
		"total":    len(messages),
	})
}

// GetProductThread handles GET /api/v1/messages/by-product/:id/thread
// Returns the thread grouped into questions with their answers.
func GetProductThread(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}

	messages, err := newMarketplaceService().Thread(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, services.BuildThread(messages))
}
