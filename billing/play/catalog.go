package play

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/api/androidpublisher/v3"

	"github.com/code-payments/flipchat-billing/billing"
)

// Catalog resolves products from the in-app product listings configured in
// the Play Console.
type Catalog struct {
	svc         *androidpublisher.Service
	packageName string

	// Listing language, e.g. "en-US". Falls back to the product's default
	// language.
	language string
}

func NewCatalog(svc *androidpublisher.Service, packageName, language string) *Catalog {
	return &Catalog{
		svc:         svc,
		packageName: packageName,
		language:    language,
	}
}

func (c *Catalog) LookupProduct(ctx context.Context, productID string) (*billing.ProductDetails, error) {
	product, err := c.svc.Inappproducts.Get(c.packageName, productID).Context(ctx).Do()
	if isNotFound(err) {
		return nil, billing.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "google inappproducts.get")
	}

	// Inactive products are not offered to clients.
	if product.Status != "" && product.Status != "active" {
		return nil, billing.ErrNotFound
	}

	return toProductDetails(product, c.language)
}

func toProductDetails(product *androidpublisher.InAppProduct, language string) (*billing.ProductDetails, error) {
	details := &billing.ProductDetails{
		ProductID: product.Sku,
	}

	listing, ok := product.Listings[language]
	if !ok {
		listing, ok = product.Listings[product.DefaultLanguage]
	}
	if ok {
		details.Title = listing.Title
		details.Description = listing.Description
	}

	if product.DefaultPrice != nil && product.DefaultPrice.PriceMicros != "" {
		micros, err := decimal.NewFromString(product.DefaultPrice.PriceMicros)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid price micros for %s", product.Sku)
		}
		details.OneTimeOffer = billing.NewOneTimeOffer(micros.IntPart(), product.DefaultPrice.Currency)
	}

	return details, nil
}
