package services

import (
	"context"
	"testing"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceService_PublishListing(t *testing.T) {
	f := newFixture(t)
	service := NewMarketplaceService(f.db, "MXN")
	ctx := context.Background()
	media := MediaLocators{Images: []string{"listings/images/mesa.jpg"}, Videos: []string{"listings/videos/mesa.mp4"}}

	t.Run("subscribed seller", func(t *testing.T) {
		product, err := service.PublishListing(ctx, f.sellerIdentity(), mesaAttrs(), media)
		require.NoError(t, err)
		assert.Equal(t, f.seller.ID, product.SellerID)
		assert.Equal(t, models.ProductStatusAvailable, product.Status)
		assert.Equal(t, media.Images, product.Images)
		assert.Equal(t, media.Videos, product.Videos)
		assert.Empty(t, product.StoredMedia)
	})

	t.Run("uploaded media are recorded", func(t *testing.T) {
		uploaded := MediaLocators{Images: []string{"listings/images/mock_0_a.jpg"}, Videos: []string{"listings/videos/mock_1_b.mp4"}, Stored: true}
		product, err := service.PublishListing(ctx, f.sellerIdentity(), mesaAttrs(), uploaded)
		require.NoError(t, err)
		assert.Equal(t, []string{"listings/images/mock_0_a.jpg", "listings/videos/mock_1_b.mp4"}, product.StoredMedia)
	})

	t.Run("locators of another listing are rejected", func(t *testing.T) {
		before, err := service.Listings().Count(ctx)
		require.NoError(t, err)

		borrowed := MediaLocators{Images: []string{"fresh.jpg"}, Videos: []string{"listings/videos/mock_1_b.mp4"}}
		_, err = service.PublishListing(ctx, f.sellerIdentity(), mesaAttrs(), borrowed)
		requireStoreError(t, err, KindInvalidState, "MEDIA_IN_USE")

		after, err := service.Listings().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("locators replace attribute media", func(t *testing.T) {
		attrs := mesaAttrs()
		attrs.Images = []string{"ignored.jpg"}
		product, err := service.PublishListing(ctx, f.sellerIdentity(), attrs, MediaLocators{Images: []string{"kept.jpg"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"kept.jpg"}, product.Images)
		assert.Equal(t, []string{}, product.Videos)
	})

	tests := []struct {
		name   string
		caller Identity
		media  MediaLocators
		kind   ErrorKind
		code   string
	}{
		{name: "unsubscribed caller", caller: f.buyerIdentity(), media: media, kind: KindUnauthorized, code: "SUBSCRIPTION_REQUIRED"},
		{name: "unsubscribed caller without media", caller: f.buyerIdentity(), kind: KindUnauthorized, code: "SUBSCRIPTION_REQUIRED"},
		{name: "no media", caller: f.sellerIdentity(), kind: KindInvalidInput, code: "MEDIA_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := service.Listings().Count(ctx)
			require.NoError(t, err)

			_, err = service.PublishListing(ctx, tt.caller, mesaAttrs(), tt.media)
			requireStoreError(t, err, tt.kind, tt.code)

			after, err := service.Listings().Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestMarketplaceService_Browse(t *testing.T) {
	f := newFixture(t)
	service := NewMarketplaceService(f.db, "MXN")
	ctx := context.Background()

	for _, name := range []string{"uno", "dos", "tres"} {
		attrs := mesaAttrs()
		attrs.Name = name
		_, err := service.PublishListing(ctx, f.sellerIdentity(), attrs, MediaLocators{Images: []string{name + ".jpg"}})
		require.NoError(t, err)
	}

	products, err := service.Browse(ctx, ListingFilter{}, 2)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	products, err = service.Browse(ctx, ListingFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	products, err = service.Browse(ctx, ListingFilter{Query: "nada"}, 10)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	_, err = service.Browse(ctx, ListingFilter{Status: "reserved"}, 10)
	requireStoreError(t, err, KindInvalidInput, "INVALID_STATUS")
}

func TestMarketplaceService_Scenario(t *testing.T) {
	f := newFixture(t)
	service := NewMarketplaceService(f.db, "MXN")
	ctx := context.Background()

	product, err := service.PublishListing(ctx, f.sellerIdentity(), mesaAttrs(), MediaLocators{Images: []string{"mesa.jpg"}})
	require.NoError(t, err)

	question, err := service.AskQuestion(ctx, f.buyerIdentity(), product.ID, "¿Incluye envío?")
	require.NoError(t, err)
	answer, err := service.PostAnswer(ctx, f.sellerIdentity(), product.ID, question.ID, "Sí")
	require.NoError(t, err)

	messages, err := service.Thread(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, question.ID, messages[0].ID)
	assert.Equal(t, answer.ID, messages[1].ID)

	detail, err := service.GetDetail(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, detail.Product.ID)
	assert.Equal(t, "seller", detail.Product.Seller.Username)
	require.Len(t, detail.Thread, 1)
	assert.Equal(t, question.ID, detail.Thread[0].Question.ID)
	require.Len(t, detail.Thread[0].Answers, 1)
	assert.Equal(t, answer.ID, detail.Thread[0].Answers[0].ID)

	_, err = service.MarkSold(ctx, f.buyerIdentity(), product.ID)
	requireStoreError(t, err, KindUnauthorized, "FORBIDDEN")
	sold, err := service.MarkSold(ctx, f.sellerIdentity(), product.ID)
	require.NoError(t, err)
	assert.True(t, sold.IsSold())
	_, err = service.MarkSold(ctx, f.sellerIdentity(), product.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// A sold listing still takes questions
	_, err = service.AskQuestion(ctx, f.buyerIdentity(), product.ID, "¿Tiene otra?")
	require.NoError(t, err)

	_, err = service.DeleteListing(ctx, f.buyerIdentity(), product.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	deleted, err := service.DeleteListing(ctx, f.sellerIdentity(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mesa.jpg"}, deleted.MediaKeys())
	assert.Empty(t, deleted.StoredMedia)

	_, err = service.GetDetail(ctx, product.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = service.Thread(ctx, product.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var remaining int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestMarketplaceService_ListBySeller(t *testing.T) {
	f := newFixture(t)
	service := NewMarketplaceService(f.db, "MXN")
	ctx := context.Background()

	_, err := service.PublishListing(ctx, f.sellerIdentity(), mesaAttrs(), MediaLocators{Images: []string{"mesa.jpg"}})
	require.NoError(t, err)

	products, err := service.ListBySeller(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
