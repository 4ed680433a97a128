package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"testing"
	"time"

	"github.com/detodounpoco/marketplace-api/models"
	"github.com/detodounpoco/marketplace-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	seller *models.User
	buyer  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &fixture{
		db:     db,
		seller: testutil.CreateUser(t, db, "auth0|seller", "seller", true),
		buyer:  testutil.CreateUser(t, db, "auth0|buyer", "buyer", false),
	}
}

func (f *fixture) sellerIdentity() Identity {
	return Identity{UserID: f.seller.ID, HasActiveSubscription: true}
}

func (f *fixture) buyerIdentity() Identity {
	return Identity{UserID: f.buyer.ID}
}

func mesaAttrs() ListingAttributes {
	return ListingAttributes{
		Name:        "Mesa",
		Description: "Mesa de pino",
		Price:       decimal.NewFromInt(100),
		Currency:    "MXN",
		Condition:   "used",
		Images:      []string{"listings/images/mesa.jpg"},
	}
}

func (f *fixture) createListing(t *testing.T, store *ListingStore, name string) *models.Product {
	t.Helper()
	attrs := mesaAttrs()
	attrs.Name = name
	product, err := store.Create(context.Background(), f.sellerIdentity(), attrs)
	require.NoError(t, err)
	return product
}

// clock returns successive whole-second instants starting at start
func clock(start time.Time, steps ...int) func() time.Time {
	i := 0
	return func() time.Time {
		offset := 0
		if i < len(steps) {
			offset = steps[i]
		}
		i++
		return start.Add(time.Duration(offset) * time.Second)
	}
}

// newFileHeader builds a multipart file header the way an HTTP upload does
func newFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func requireStoreError(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, kind, storeErr.Kind, "error: %v", err)
	require.Equal(t, code, storeErr.Code, "error: %v", err)
}
