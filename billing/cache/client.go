package cache

import (
	"context"
	"time"

	"github.com/ReneKroon/ttlcache"

	"github.com/code-payments/flipchat-billing/billing"
)

// Client caches product details per product id. Only successful lookups are
// cached; failures and unknown products always reach the wrapped client.
type Client struct {
	billing.Client

	cache *ttlcache.Cache
}

func NewClient(client billing.Client, ttl time.Duration) *Client {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &Client{
		Client: client,
		cache:  cache,
	}
}

// QueryProductDetails serves from the cache only while the wrapped client is
// ready, so a disconnected client still reports its own failure.
func (c *Client) QueryProductDetails(ctx context.Context, productIDs []string) <-chan billing.ProductDetailsResult {
	if !c.Client.IsReady() {
		return c.Client.QueryProductDetails(ctx, productIDs)
	}

	if cached, ok := c.getAll(productIDs); ok {
		ch := make(chan billing.ProductDetailsResult, 1)
		ch <- billing.ProductDetailsResult{Result: billing.OK(), Details: cached}
		return ch
	}

	upstream := c.Client.QueryProductDetails(ctx, productIDs)
	ch := make(chan billing.ProductDetailsResult, 1)
	go func() {
		res := <-upstream
		if res.Result.IsOK() {
			for _, details := range res.Details {
				c.cache.Set(details.ProductID, details.Clone())
			}
		}
		ch <- res
	}()
	return ch
}

func (c *Client) Invalidate(productID string) {
	c.cache.Remove(productID)
}

func (c *Client) Close() {
	c.cache.Close()
}

func (c *Client) getAll(productIDs []string) ([]*billing.ProductDetails, bool) {
	if len(productIDs) == 0 {
		return nil, false
	}

	result := make([]*billing.ProductDetails, 0, len(productIDs))
	for _, id := range productIDs {
		cached, ok := c.cache.Get(id)
		if !ok {
			return nil, false
		}
		result = append(result, cached.(*billing.ProductDetails).Clone())
	}
	return result, true
}
