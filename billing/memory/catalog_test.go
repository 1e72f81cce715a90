package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-billing/billing"
)

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog(strings.NewReader(`
products:
  - id: gem_pack
    title: Gem Pack
    description: A pile of gems
    price: "1.99"
    currency: USD
  - id: no_price
    title: Unpriced
`))
	require.NoError(t, err)

	product, err := catalog.LookupProduct(context.Background(), "gem_pack")
	require.NoError(t, err)
	require.Equal(t, "Gem Pack", product.Title)
	require.Equal(t, "A pile of gems", product.Description)
	require.NotNil(t, product.OneTimeOffer)
	require.Equal(t, int64(1_990_000), product.OneTimeOffer.PriceMicros)
	require.Equal(t, "USD", product.OneTimeOffer.CurrencyCode)

	product, err = catalog.LookupProduct(context.Background(), "no_price")
	require.NoError(t, err)
	require.Nil(t, product.OneTimeOffer)

	_, err = catalog.LookupProduct(context.Background(), "missing")
	require.Equal(t, billing.ErrNotFound, err)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"missing id":       "products:\n  - title: x\n",
		"bad price":        "products:\n  - id: a\n    price: abc\n    currency: USD\n",
		"missing currency": "products:\n  - id: a\n    price: \"1.00\"\n",
		"not yaml":         "products: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestStaticCatalog_ReturnsCopies(t *testing.T) {
	catalog := NewStaticCatalog(&billing.ProductDetails{ProductID: "a", Title: "A"})

	product, err := catalog.LookupProduct(context.Background(), "a")
	require.NoError(t, err)
	product.Title = "changed"

	product, err = catalog.LookupProduct(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "A", product.Title)
}
