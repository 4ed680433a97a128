package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/detodounpoco/marketplace-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingStore_Create(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "mxn")
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		created, err := store.Create(ctx, f.sellerIdentity(), mesaAttrs())
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		assert.Equal(t, "seller", created.Seller.Username)

		fetched, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Mesa", fetched.Name)
		assert.True(t, decimal.NewFromInt(100).Equal(fetched.Price))
		assert.Equal(t, "MXN", fetched.Currency)
		assert.Equal(t, models.ConditionUsed, fetched.Condition)
		assert.Equal(t, models.ProductStatusAvailable, fetched.Status)
		assert.Equal(t, []string{"listings/images/mesa.jpg"}, fetched.Images)
		assert.Equal(t, []string{}, fetched.Videos)
		assert.False(t, fetched.CreatedAt.IsZero())
		assert.Nil(t, fetched.SoldAt)
	})

	t.Run("defaults and normalization", func(t *testing.T) {
		attrs := mesaAttrs()
		attrs.Name = "  Silla  "
		attrs.Currency = ""
		attrs.Condition = "Reacondicionado"
		attrs.Category = " muebles "

		created, err := store.Create(ctx, f.sellerIdentity(), attrs)
		require.NoError(t, err)
		assert.Equal(t, "Silla", created.Name)
		assert.Equal(t, "MXN", created.Currency)
		assert.Equal(t, models.ConditionRefurbished, created.Condition)
		assert.Equal(t, "muebles", created.Category)
	})

	tests := []struct {
		name   string
		seller Identity
		mutate func(*ListingAttributes)
		kind   ErrorKind
		code   string
	}{
		{
			name:   "unsubscribed seller",
			seller: f.buyerIdentity(),
			mutate: func(*ListingAttributes) {},
			kind:   KindUnauthorized,
			code:   "SUBSCRIPTION_REQUIRED",
		},
		{
			name:   "empty name",
			seller: f.sellerIdentity(),
			mutate: func(a *ListingAttributes) { a.Name = "  " },
			kind:   KindInvalidInput,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "empty description",
			seller: f.sellerIdentity(),
			mutate: func(a *ListingAttributes) { a.Description = "" },
			kind:   KindInvalidInput,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "negative price",
			seller: f.sellerIdentity(),
			mutate: func(a *ListingAttributes) { a.Price = decimal.NewFromInt(-1) },
			kind:   KindInvalidInput,
			code:   "INVALID_PRICE",
		},
		{
			name:   "price out of range",
			seller: f.sellerIdentity(),
			mutate: func(a *ListingAttributes) { a.Price = decimal.New(1, 10) },
			kind:   KindInvalidInput,
			code:   "INVALID_PRICE",
		},
		{
			name:   "unknown condition",
			seller: f.sellerIdentity(),
			mutate: func(a *ListingAttributes) { a.Condition = "broken" },
			kind:   KindInvalidInput,
			code:   "INVALID_CONDITION",
		},
		{
			name:   "bad currency",
			seller: f.sellerIdentity(),
			mutate: func(a *ListingAttributes) { a.Currency = "PESOS" },
			kind:   KindInvalidInput,
			code:   "INVALID_CURRENCY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := store.Count(ctx)
			require.NoError(t, err)

			attrs := mesaAttrs()
			tt.mutate(&attrs)
			_, err = store.Create(ctx, tt.seller, attrs)
			requireStoreError(t, err, tt.kind, tt.code)

			after, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestListingStore_Get_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := NewListingStore(f.db, "MXN").Get(context.Background(), 42)
	requireStoreError(t, err, KindNotFound, "PRODUCT_NOT_FOUND")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingStore_List_Keyset(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "MXN")
	store.batchSize = 2
	// Two pairs share a timestamp so ties are broken by id
	store.now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 0, 1, 1, 2, 3, 3)

	var created []*models.Product
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		created = append(created, f.createListing(t, store, name))
	}

	var names []string
	for product, err := range store.List(context.Background(), ListingFilter{}) {
		require.NoError(t, err)
		names = append(names, product.Name)
	}
	assert.Equal(t, []string{"f", "e", "d", "c", "b", "a"}, names)

	t.Run("stops when the consumer stops", func(t *testing.T) {
		var seen []uint
		for product, err := range store.List(context.Background(), ListingFilter{}) {
			require.NoError(t, err)
			seen = append(seen, product.ID)
			if len(seen) == 3 {
				break
			}
		}
		assert.Equal(t, []uint{created[5].ID, created[4].ID, created[3].ID}, seen)
	})

	t.Run("status filter sees new state", func(t *testing.T) {
		_, err := store.MarkSold(context.Background(), created[2].ID, f.seller.ID)
		require.NoError(t, err)

		var sold []string
		for product, err := range store.List(context.Background(), ListingFilter{Status: models.ProductStatusSold}) {
			require.NoError(t, err)
			sold = append(sold, product.Name)
		}
		assert.Equal(t, []string{"c"}, sold)
	})
}

func TestListingStore_List_Filters(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "MXN")
	store.now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 0, 1, 2)
	ctx := context.Background()

	for _, attrs := range []ListingAttributes{
		{Name: "Mesa de pino", Condition: "used", Category: "muebles"},
		{Name: "Descuento 100%", Condition: "new", Category: "varios"},
		{Name: "MESA plegable", Condition: "nuevo", Category: "muebles"},
	} {
		attrs.Description = "x"
		attrs.Price = decimal.NewFromInt(1)
		_, err := store.Create(ctx, f.sellerIdentity(), attrs)
		require.NoError(t, err)
	}

	collect := func(filter ListingFilter) ([]string, error) {
		var names []string
		for product, err := range store.List(ctx, filter) {
			if err != nil {
				return nil, err
			}
			names = append(names, product.Name)
		}
		return names, nil
	}

	tests := []struct {
		name     string
		filter   ListingFilter
		expected []string
	}{
		{name: "case-insensitive query", filter: ListingFilter{Query: "mesa"}, expected: []string{"MESA plegable", "Mesa de pino"}},
		{name: "wildcard matched literally", filter: ListingFilter{Query: "0%"}, expected: []string{"Descuento 100%"}},
		{name: "underscore matched literally", filter: ListingFilter{Query: "_"}, expected: nil},
		{name: "category", filter: ListingFilter{Category: "varios"}, expected: []string{"Descuento 100%"}},
		{name: "condition alias", filter: ListingFilter{Condition: "nuevo"}, expected: []string{"MESA plegable", "Descuento 100%"}},
		{name: "combined", filter: ListingFilter{Query: "mesa", Condition: "used"}, expected: []string{"Mesa de pino"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := collect(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names)
		})
	}

	t.Run("invalid filters", func(t *testing.T) {
		_, err := collect(ListingFilter{Condition: "broken"})
		requireStoreError(t, err, KindInvalidInput, "INVALID_CONDITION")
		_, err = collect(ListingFilter{Status: "reserved"})
		requireStoreError(t, err, KindInvalidInput, "INVALID_STATUS")
	})
}

func TestListingStore_ListBySeller(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "MXN")
	store.now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 0, 1)

	first := f.createListing(t, store, "primera")
	second := f.createListing(t, store, "segunda")
	_, err := store.MarkSold(context.Background(), first.ID, f.seller.ID)
	require.NoError(t, err)

	products, err := store.ListBySeller(context.Background(), f.seller.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, second.ID, products[0].ID)
	assert.Equal(t, first.ID, products[1].ID)
	assert.True(t, products[1].IsSold())

	products, err = store.ListBySeller(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestListingStore_MarkSold(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "MXN")
	ctx := context.Background()
	product := f.createListing(t, store, "Mesa")

	_, err := store.MarkSold(ctx, product.ID, f.buyer.ID)
	requireStoreError(t, err, KindUnauthorized, "FORBIDDEN")

	sold, err := store.MarkSold(ctx, product.ID, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusSold, sold.Status)
	require.NotNil(t, sold.SoldAt)

	_, err = store.MarkSold(ctx, product.ID, f.seller.ID)
	requireStoreError(t, err, KindInvalidState, "ALREADY_SOLD")

	// The non-seller check comes before the state check
	_, err = store.MarkSold(ctx, product.ID, f.buyer.ID)
	requireStoreError(t, err, KindUnauthorized, "FORBIDDEN")

	_, err = store.MarkSold(ctx, 9999, f.seller.ID)
	requireStoreError(t, err, KindNotFound, "PRODUCT_NOT_FOUND")

	stored, err := store.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusSold, stored.Status)
}

func TestListingStore_MarkSold_Concurrent(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "MXN")
	product := f.createListing(t, store, "Mesa")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.MarkSold(context.Background(), product.ID, f.seller.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var storeErr *StoreError
			if errors.As(err, &storeErr) && storeErr.Code == "ALREADY_SOLD" {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)
}

func TestListingStore_Delete(t *testing.T) {
	f := newFixture(t)
	store := NewListingStore(f.db, "MXN")
	inquiries := NewInquiryStore(f.db)
	ctx := context.Background()

	product := f.createListing(t, store, "Mesa")
	other := f.createListing(t, store, "Silla")
	question, err := inquiries.PostQuestion(ctx, product.ID, f.buyer.ID, "¿Sigue disponible?")
	require.NoError(t, err)
	_, err = inquiries.PostAnswer(ctx, product.ID, question.ID, f.seller.ID, "Sí")
	require.NoError(t, err)
	_, err = inquiries.PostQuestion(ctx, other.ID, f.buyer.ID, "¿Color?")
	require.NoError(t, err)

	_, err = store.Delete(ctx, product.ID, f.buyer.ID)
	requireStoreError(t, err, KindUnauthorized, "FORBIDDEN")
	messages, err := inquiries.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	deleted, err := store.Delete(ctx, product.ID, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"listings/images/mesa.jpg"}, deleted.MediaKeys())

	_, err = store.Get(ctx, product.ID)
	requireStoreError(t, err, KindNotFound, "PRODUCT_NOT_FOUND")
	messages, err = inquiries.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	// Other threads are untouched
	messages, err = inquiries.ListByProduct(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	_, err = store.Delete(ctx, product.ID, f.seller.ID)
	requireStoreError(t, err, KindNotFound, "PRODUCT_NOT_FOUND")
}

func TestListingStore_Delete_StoredMedia(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateUser(t, f.db, "auth0|other", "other", true)
	store := NewListingStore(f.db, "MXN")
	ctx := context.Background()

	attrs := mesaAttrs()
	attrs.Images = []string{"listings/images/own.jpg", "listings/images/shared.jpg", "external.jpg"}
	attrs.StoredMedia = []string{"listings/images/own.jpg", "listings/images/shared.jpg"}
	product, err := store.Create(ctx, f.sellerIdentity(), attrs)
	require.NoError(t, err)

	// Another seller's listing points at one of the uploaded keys
	borrowed := mesaAttrs()
	borrowed.Images = []string{"listings/images/shared.jpg"}
	borrower, err := store.Create(ctx, Identity{UserID: other.ID, HasActiveSubscription: true}, borrowed)
	require.NoError(t, err)

	key, err := store.MediaInUse(ctx, []string{"unused.jpg", "listings/images/shared.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "listings/images/shared.jpg", key)
	key, err = store.MediaInUse(ctx, []string{"unused.jpg", "listings/images/own"})
	require.NoError(t, err)
	assert.Empty(t, key, "keys match whole elements only")

	deleted, err := store.Delete(ctx, product.ID, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"listings/images/own.jpg"}, deleted.StoredMedia)

	// The borrowing listing owns none of its media
	deleted, err = store.Delete(ctx, borrower.ID, other.ID)
	require.NoError(t, err)
	assert.Empty(t, deleted.StoredMedia)
	assert.Equal(t, []string{"listings/images/shared.jpg"}, deleted.Images)
}
