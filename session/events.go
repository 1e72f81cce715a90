package session

// ContextID is an opaque, caller-supplied correlation token. Zero means no
// session.
type ContextID uint64

// Reasons carried by failure events. They are stable and never contain
// vendor response codes.
const (
	ReasonCreateBuyIntent     = "failed to create buy intent"
	ReasonLaunchBillingFlow   = "failed to launch billing flow"
	ReasonPurchaseIncomplete  = "purchase did not complete"
	ReasonInvalidSignature    = "invalid signature"
	ReasonPurchaseDataError   = "error in purchase data"
	ReasonPurchaseQueryFailed = "error getting purchase data"
)

type Event interface {
	ContextID() ContextID
}

// Ready reports a change of billing service readiness. It is not tied to a
// caller context.
type Ready struct {
	Ready bool
}

type PurchaseResult struct {
	Context             ContextID
	ProductID           string
	OriginalJSON        string
	PurchaseToken       string
	ObfuscatedAccountID string
	Signature           string
}

// PurchaseFailure ends a purchase attempt. An empty Reason means the user
// cancelled.
type PurchaseFailure struct {
	Context ContextID
	Reason  string
}

func (e PurchaseFailure) Cancelled() bool {
	return e.Reason == ""
}

type PurchaseInfo struct {
	Context             ContextID
	ProductID           string
	OriginalJSON        string
	PurchaseToken       string
	ObfuscatedAccountID string
	Signature           string
}

// PurchaseInfoTerminator marks the end of an owned purchases stream.
type PurchaseInfoTerminator struct {
	Context ContextID
}

type PurchaseInfoError struct {
	Context ContextID
	Reason  string
}

type ProductInfo struct {
	Context     ContextID
	ProductID   string
	Title       string
	Description string
	Price       string
}

type ProductInfoError struct {
	Context   ContextID
	ProductID string
}

func (Ready) ContextID() ContextID                    { return 0 }
func (e PurchaseResult) ContextID() ContextID         { return e.Context }
func (e PurchaseFailure) ContextID() ContextID        { return e.Context }
func (e PurchaseInfo) ContextID() ContextID           { return e.Context }
func (e PurchaseInfoTerminator) ContextID() ContextID { return e.Context }
func (e PurchaseInfoError) ContextID() ContextID      { return e.Context }
func (e ProductInfo) ContextID() ContextID            { return e.Context }
func (e ProductInfoError) ContextID() ContextID       { return e.Context }
