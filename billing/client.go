package billing

import "context"

type ConnectionListener interface {
	OnBillingSetupFinished(result Result)
	OnBillingServiceDisconnected()
}

// PurchasesUpdatedListener receives every purchase change the billing
// service pushes, as a single batch per callback.
type PurchasesUpdatedListener interface {
	OnPurchasesUpdated(result Result, purchases []*Purchase)
}

type FlowParams struct {
	Details *ProductDetails

	// ObfuscatedAccountID is attached to the resulting purchase when set.
	ObfuscatedAccountID string
}

type ProductDetailsResult struct {
	Result  Result
	Details []*ProductDetails
}

type ConsumeResult struct {
	Result        Result
	PurchaseToken string
}

type PurchasesResult struct {
	Result    Result
	Purchases []*Purchase
}

// Client is the billing service capability.
//
// Every call that talks to the service is asynchronous: it returns a channel
// that receives exactly one value and is never closed before doing so.
// Implementations may deliver from any goroutine.
type Client interface {
	StartConnection(conn ConnectionListener, purchases PurchasesUpdatedListener)
	EndConnection()
	IsReady() bool

	QueryProductDetails(ctx context.Context, productIDs []string) <-chan ProductDetailsResult
	LaunchPurchaseFlow(ctx context.Context, params FlowParams) <-chan Result
	AcknowledgePurchase(ctx context.Context, purchaseToken string) <-chan Result
	ConsumePurchase(ctx context.Context, purchaseToken string) <-chan ConsumeResult
	QueryPurchases(ctx context.Context) <-chan PurchasesResult
}

// ConnectionListenerFuncs adapts plain functions to a ConnectionListener.
type ConnectionListenerFuncs struct {
	SetupFinished func(Result)
	Disconnected  func()
}

func (l ConnectionListenerFuncs) OnBillingSetupFinished(result Result) {
	if l.SetupFinished != nil {
		l.SetupFinished(result)
	}
}

func (l ConnectionListenerFuncs) OnBillingServiceDisconnected() {
	if l.Disconnected != nil {
		l.Disconnected()
	}
}

// PurchasesUpdatedFunc is an adapter to allow the use of ordinary functions
// as PurchasesUpdatedListeners.
type PurchasesUpdatedFunc func(Result, []*Purchase)

func (f PurchasesUpdatedFunc) OnPurchasesUpdated(result Result, purchases []*Purchase) {
	f(result, purchases)
}
