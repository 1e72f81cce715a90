package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-billing/billing"
	"github.com/code-payments/flipchat-billing/billing/memory"
	"github.com/code-payments/flipchat-billing/testutil"
)

func TestQueryProduct(t *testing.T) {
	env := connectedEnv(t, nil)

	require.NoError(t, env.manager.QueryProduct("gem_pack", 3))

	events := env.waitForContext(t, 3, 1)
	require.Equal(t, ProductInfo{
		Context:     3,
		ProductID:   "gem_pack",
		Title:       "Gem Pack",
		Description: "A pile of gems",
		Price:       billing.FormatPrice(1_990_000, "USD"),
	}, events[0])
	assert.True(t, env.isIdle())
}

// aliasCatalog answers lookups for alias with the details of another product.
type aliasCatalog struct {
	memory.Catalog
	alias  string
	target string
}

func (c aliasCatalog) LookupProduct(ctx context.Context, productID string) (*billing.ProductDetails, error) {
	if productID == c.alias {
		productID = c.target
	}
	return c.Catalog.LookupProduct(ctx, productID)
}

func TestQueryProduct_EchoesRequestedID(t *testing.T) {
	env := connectedEnv(t, []memory.Option{
		memory.WithCatalog(aliasCatalog{Catalog: testCatalog(), alias: "gems", target: "gem_pack"}),
	})

	require.NoError(t, env.manager.QueryProduct("gems", 4))

	events := env.waitForContext(t, 4, 1)
	info, ok := events[0].(ProductInfo)
	require.True(t, ok)
	assert.Equal(t, "gems", info.ProductID)
	assert.Equal(t, "Gem Pack", info.Title)
}

func TestQueryProduct_Errors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		productID string
		setup     func(c *memory.Client)
	}{
		{name: "unknown product", productID: "nosuch"},
		{name: "no one-time offer", productID: "legacy_sub"},
		{
			name:      "service error",
			productID: "gem_pack",
			setup: func(c *memory.Client) {
				c.SetResponse(memory.OperationQueryProductDetails, billing.ResultOf(billing.ResponseCodeServiceUnavailable))
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := connectedEnv(t, nil)
			if tc.setup != nil {
				tc.setup(env.client)
			}

			require.NoError(t, env.manager.QueryProduct(tc.productID, 7))

			events := env.waitForContext(t, 7, 1)
			require.Equal(t, ProductInfoError{Context: 7, ProductID: tc.productID}, events[0])
			env.recorder.Never(t, 2, quietPeriod)
		})
	}
}

func TestQueryProduct_InvalidArgument(t *testing.T) {
	env := connectedEnv(t, nil)

	require.ErrorIs(t, env.manager.QueryProduct("", 7), ErrInvalidArgument)
	env.recorder.Never(t, 1, quietPeriod)
}

func TestQueryProduct_DuringPurchase(t *testing.T) {
	env := connectedEnv(t, nil)

	require.NoError(t, env.manager.StartPurchase(PurchaseRequest{ProductID: "premium"}, 42))
	env.waitForLaunches(t, 1)

	require.NoError(t, env.manager.QueryProduct("gem_pack", 3))
	env.waitForContext(t, 3, 1)

	assert.False(t, env.isIdle())
	assert.Empty(t, env.forContext(42))
}

func TestQueryOwnedPurchases(t *testing.T) {
	env := connectedEnv(t, nil)

	first := env.client.NewPurchase("gem_pack", "account-1")
	second := env.client.NewPurchase("premium", "")
	second.Acknowledged = true
	pending := env.client.NewPurchase("gem_pack", "")
	pending.State = billing.PurchaseStatePending
	env.client.AddOwned(first, second, pending)

	require.NoError(t, env.manager.QueryOwnedPurchases(11))

	events := env.waitForContext(t, 11, 4)
	require.Len(t, events, 4)
	for i, purchase := range []*billing.Purchase{first, second, pending} {
		assert.Equal(t, PurchaseInfo{
			Context:             11,
			ProductID:           purchase.FirstProductID(),
			OriginalJSON:        purchase.OriginalJSON,
			PurchaseToken:       purchase.PurchaseToken,
			ObfuscatedAccountID: purchase.ObfuscatedAccountID,
			Signature:           purchase.Signature,
		}, events[i])
	}
	assert.Equal(t, PurchaseInfoTerminator{Context: 11}, events[3])

	require.Eventually(t, func() bool {
		return len(env.client.Acknowledged()) == 1
	}, testutil.DefaultWaitTimeout, testutil.DefaultTick)
	time.Sleep(quietPeriod)
	assert.Equal(t, []string{first.PurchaseToken}, env.client.Acknowledged())
}

func TestQueryOwnedPurchases_Empty(t *testing.T) {
	env := connectedEnv(t, nil)

	require.NoError(t, env.manager.QueryOwnedPurchases(11))

	events := env.waitForContext(t, 11, 1)
	require.Equal(t, PurchaseInfoTerminator{Context: 11}, events[0])
	env.recorder.Never(t, 2, quietPeriod)
}

func TestQueryOwnedPurchases_WithoutAcknowledge(t *testing.T) {
	env := connectedEnv(t, nil, WithAcknowledgeOwned(false))

	env.client.AddOwned(env.client.NewPurchase("premium", ""))

	require.NoError(t, env.manager.QueryOwnedPurchases(11))
	env.waitForContext(t, 11, 2)

	time.Sleep(quietPeriod)
	assert.Empty(t, env.client.Acknowledged())
}

func TestQueryOwnedPurchases_InvalidSignature(t *testing.T) {
	pub, priv, err := memory.GenerateKeyPair()
	require.NoError(t, err)

	verifier, err := memory.NewVerifier(pub)
	require.NoError(t, err)

	env := connectedEnv(t,
		[]memory.Option{memory.WithSigner(priv)},
		WithVerifier(verifier),
	)

	valid := env.client.NewPurchase("gem_pack", "")
	forged := env.client.NewPurchase("premium", "")
	forged.Signature = "forged"
	env.client.AddOwned(forged, valid)

	require.NoError(t, env.manager.QueryOwnedPurchases(11))

	events := env.waitForContext(t, 11, 3)
	require.Len(t, events, 3)
	assert.Equal(t, PurchaseFailure{Context: 11, Reason: ReasonInvalidSignature}, events[0])
	assert.Equal(t, valid.PurchaseToken, events[1].(PurchaseInfo).PurchaseToken)
	assert.Equal(t, PurchaseInfoTerminator{Context: 11}, events[2])

	time.Sleep(quietPeriod)
	assert.Equal(t, []string{valid.PurchaseToken}, env.client.Acknowledged())
}

func TestQueryOwnedPurchases_VerifierError(t *testing.T) {
	verifier := &mockVerifier{}
	verifier.On("VerifyPurchase", mock.Anything, mock.Anything).Return(false, context.DeadlineExceeded)

	env := connectedEnv(t, nil, WithVerifier(verifier))
	env.client.AddOwned(env.client.NewPurchase("gem_pack", ""), env.client.NewPurchase("premium", ""))

	require.NoError(t, env.manager.QueryOwnedPurchases(11))

	events := env.waitForContext(t, 11, 1)
	require.Equal(t, PurchaseInfoError{Context: 11, Reason: ReasonPurchaseQueryFailed}, events[0])
	env.recorder.Never(t, 2, quietPeriod)

	verifier.AssertNumberOfCalls(t, "VerifyPurchase", 1)
	assert.Empty(t, env.client.Acknowledged())
}

func TestQueryOwnedPurchases_Malformed(t *testing.T) {
	env := connectedEnv(t, nil)

	valid := env.client.NewPurchase("gem_pack", "")
	malformed := &billing.Purchase{PurchaseToken: "token", State: billing.PurchaseStatePurchased}
	env.client.AddOwned(valid, malformed, env.client.NewPurchase("premium", ""))

	require.NoError(t, env.manager.QueryOwnedPurchases(11))

	env.waitForContext(t, 11, 2)
	env.recorder.Never(t, 3, quietPeriod)

	events := env.forContext(11)
	require.Len(t, events, 2)
	assert.Equal(t, valid.PurchaseToken, events[0].(PurchaseInfo).PurchaseToken)
	assert.Equal(t, PurchaseInfoError{Context: 11, Reason: ReasonPurchaseDataError}, events[1])
}

func TestQueryOwnedPurchases_Failure(t *testing.T) {
	env := connectedEnv(t, nil)
	env.client.AddOwned(env.client.NewPurchase("gem_pack", ""))
	env.client.SetResponse(memory.OperationQueryPurchases, billing.ResultOf(billing.ResponseCodeServiceUnavailable))

	require.NoError(t, env.manager.QueryOwnedPurchases(11))

	events := env.waitForContext(t, 11, 1)
	require.Equal(t, PurchaseInfoError{Context: 11, Reason: ReasonPurchaseQueryFailed}, events[0])
	env.recorder.Never(t, 2, quietPeriod)
}
