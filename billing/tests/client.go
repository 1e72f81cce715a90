package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-billing/billing"
)

const waitTimeout = 5 * time.Second

// RunClientTests exercises the billing.Client contract. knownProductID must
// resolve to details with a one-time offer.
func RunClientTests(t *testing.T, newClient func() billing.Client, knownProductID string, teardown func()) {
	for _, tf := range []func(t *testing.T, c billing.Client, knownProductID string){
		testConnect,
		testQueryProductDetails,
		testQueryPurchases,
		testEndConnection,
	} {
		tf(t, newClient(), knownProductID)
		teardown()
	}
}

func connect(t *testing.T, c billing.Client) {
	setup := make(chan billing.Result, 1)
	c.StartConnection(
		billing.ConnectionListenerFuncs{SetupFinished: func(r billing.Result) { setup <- r }},
		billing.PurchasesUpdatedFunc(func(billing.Result, []*billing.Purchase) {}),
	)

	select {
	case result := <-setup:
		require.True(t, result.IsOK())
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for billing setup")
	}
	require.True(t, c.IsReady())
}

func await[T any](t *testing.T, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for billing result")
	}
	panic("unreachable")
}

func testConnect(t *testing.T, c billing.Client, _ string) {
	require.False(t, c.IsReady())
	connect(t, c)
}

func testQueryProductDetails(t *testing.T, c billing.Client, knownProductID string) {
	connect(t, c)

	res := await(t, c.QueryProductDetails(context.Background(), []string{knownProductID}))
	require.True(t, res.Result.IsOK())
	require.Len(t, res.Details, 1)
	require.Equal(t, knownProductID, res.Details[0].ProductID)
	require.NotNil(t, res.Details[0].OneTimeOffer)
	require.NotEmpty(t, res.Details[0].OneTimeOffer.FormattedPrice)

	res = await(t, c.QueryProductDetails(context.Background(), []string{"does.not.exist"}))
	require.True(t, res.Result.IsOK())
	require.Empty(t, res.Details)
}

func testQueryPurchases(t *testing.T, c billing.Client, _ string) {
	connect(t, c)

	res := await(t, c.QueryPurchases(context.Background()))
	require.True(t, res.Result.IsOK())
}

func testEndConnection(t *testing.T, c billing.Client, knownProductID string) {
	connect(t, c)

	// Details seen while connected must not outlive the connection.
	res := await(t, c.QueryProductDetails(context.Background(), []string{knownProductID}))
	require.True(t, res.Result.IsOK())
	require.Len(t, res.Details, 1)

	c.EndConnection()
	require.False(t, c.IsReady())

	res = await(t, c.QueryProductDetails(context.Background(), []string{knownProductID}))
	require.False(t, res.Result.IsOK())
}
