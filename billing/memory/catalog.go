package memory

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/code-payments/flipchat-billing/billing"
)

// Catalog resolves product ids to details for the simulated billing
// service.
type Catalog interface {
	// LookupProduct returns billing.ErrNotFound for unknown products.
	LookupProduct(ctx context.Context, productID string) (*billing.ProductDetails, error)
}

type StaticCatalog struct {
	mu       sync.RWMutex
	products map[string]*billing.ProductDetails
}

func NewStaticCatalog(products ...*billing.ProductDetails) *StaticCatalog {
	c := &StaticCatalog{
		products: map[string]*billing.ProductDetails{},
	}
	for _, p := range products {
		c.Put(p)
	}
	return c
}

func (c *StaticCatalog) Put(product *billing.ProductDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[product.ProductID] = product.Clone()
}

func (c *StaticCatalog) LookupProduct(_ context.Context, productID string) (*billing.ProductDetails, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[productID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return product.Clone(), nil
}

type catalogFile struct {
	Products []catalogProduct `yaml:"products"`
}

type catalogProduct struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Currency    string `yaml:"currency"`
}

// LoadCatalog reads a YAML catalog:
//
//	products:
//	  - id: gem_pack
//	    title: Gem Pack
//	    description: A pile of gems
//	    price: "1.99"
//	    currency: USD
//
// A product without a price has no one-time offer.
func LoadCatalog(r io.Reader) (*StaticCatalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "failed to decode catalog")
	}

	c := NewStaticCatalog()
	for i, p := range file.Products {
		if p.ID == "" {
			return nil, errors.Errorf("catalog product %d has no id", i)
		}

		details := &billing.ProductDetails{
			ProductID:   p.ID,
			Title:       p.Title,
			Description: p.Description,
		}

		if p.Price != "" {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid price for product %s", p.ID)
			}
			if p.Currency == "" {
				return nil, errors.Errorf("product %s has a price but no currency", p.ID)
			}
			details.OneTimeOffer = billing.NewOneTimeOffer(billing.DecimalToMicros(price), p.Currency)
		}

		c.Put(details)
	}

	return c, nil
}
