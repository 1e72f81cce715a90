package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-billing/billing"
	"github.com/code-payments/flipchat-billing/billing/memory"
	"github.com/code-payments/flipchat-billing/billing/tests"
)

// countingCatalog counts lookups that reach the catalog.
type countingCatalog struct {
	memory.Catalog
	lookups int
}

func (c *countingCatalog) LookupProduct(ctx context.Context, productID string) (*billing.ProductDetails, error) {
	c.lookups++
	return c.Catalog.LookupProduct(ctx, productID)
}

func newCatalog() *countingCatalog {
	return &countingCatalog{Catalog: memory.NewStaticCatalog(&billing.ProductDetails{
		ProductID:    "gem_pack",
		Title:        "Gem Pack",
		OneTimeOffer: billing.NewOneTimeOffer(1_990_000, "USD"),
	})}
}

func TestCacheClient(t *testing.T) {
	newClient := func() billing.Client {
		return NewClient(memory.NewClient(memory.WithCatalog(newCatalog())), time.Minute)
	}
	teardown := func() {}

	tests.RunClientTests(t, newClient, "gem_pack", teardown)
}

func connect(t *testing.T, c billing.Client) {
	setup := make(chan struct{})
	c.StartConnection(billing.ConnectionListenerFuncs{SetupFinished: func(billing.Result) { close(setup) }}, nil)
	<-setup
}

func TestCacheClient_ServesRepeatedQueries(t *testing.T) {
	catalog := newCatalog()
	upstream := memory.NewClient(memory.WithCatalog(catalog))
	c := NewClient(upstream, time.Minute)
	defer c.Close()
	connect(t, c)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res := <-c.QueryProductDetails(ctx, []string{"gem_pack"})
		require.True(t, res.Result.IsOK())
		require.Len(t, res.Details, 1)
		require.Equal(t, "Gem Pack", res.Details[0].Title)

		// Mutating a result must not affect the cache.
		res.Details[0].Title = "mutated"
	}
	require.Equal(t, 1, catalog.lookups)

	c.Invalidate("gem_pack")
	res := <-c.QueryProductDetails(ctx, []string{"gem_pack"})
	require.True(t, res.Result.IsOK())
	require.Equal(t, 2, catalog.lookups)
}

func TestCacheClient_DoesNotCacheFailures(t *testing.T) {
	catalog := newCatalog()
	upstream := memory.NewClient(memory.WithCatalog(catalog))
	c := NewClient(upstream, time.Minute)
	defer c.Close()
	connect(t, c)

	ctx := context.Background()

	upstream.SetResponse(memory.OperationQueryProductDetails, billing.ResultOf(billing.ResponseCodeServiceUnavailable))
	res := <-c.QueryProductDetails(ctx, []string{"gem_pack"})
	require.False(t, res.Result.IsOK())

	upstream.SetResponse(memory.OperationQueryProductDetails, billing.OK())
	res = <-c.QueryProductDetails(ctx, []string{"gem_pack"})
	require.True(t, res.Result.IsOK())
	require.Equal(t, 1, catalog.lookups)

	// Unknown products are misses, every time.
	for i := 0; i < 2; i++ {
		res = <-c.QueryProductDetails(ctx, []string{"nosuch"})
		require.True(t, res.Result.IsOK())
		require.Empty(t, res.Details)
	}
	require.Equal(t, 3, catalog.lookups)
}

func TestCacheClient_DisconnectedBypassesCache(t *testing.T) {
	catalog := newCatalog()
	upstream := memory.NewClient(memory.WithCatalog(catalog))
	c := NewClient(upstream, time.Minute)
	defer c.Close()
	connect(t, c)

	ctx := context.Background()
	res := <-c.QueryProductDetails(ctx, []string{"gem_pack"})
	require.True(t, res.Result.IsOK())

	upstream.Disconnect()
	require.False(t, c.IsReady())

	res = <-c.QueryProductDetails(ctx, []string{"gem_pack"})
	require.Equal(t, billing.ResponseCodeServiceDisconnected, res.Result.Code)
	require.Empty(t, res.Details)
	require.Equal(t, 1, catalog.lookups)
}
