package billing

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("product not found")
)

// ResponseCode is the vendor's result code for a billing call. It never
// leaves the billing layer; callers of the session manager see stable
// reason strings instead.
type ResponseCode int

const (
	ResponseCodeServiceTimeout      ResponseCode = -3
	ResponseCodeFeatureNotSupported ResponseCode = -2
	ResponseCodeServiceDisconnected ResponseCode = -1
	ResponseCodeOK                  ResponseCode = 0
	ResponseCodeUserCanceled        ResponseCode = 1
	ResponseCodeServiceUnavailable  ResponseCode = 2
	ResponseCodeBillingUnavailable  ResponseCode = 3
	ResponseCodeItemUnavailable     ResponseCode = 4
	ResponseCodeDeveloperError      ResponseCode = 5
	ResponseCodeError               ResponseCode = 6
	ResponseCodeItemAlreadyOwned    ResponseCode = 7
	ResponseCodeItemNotOwned        ResponseCode = 8
	ResponseCodeNetworkError        ResponseCode = 12
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseCodeServiceTimeout:
		return "SERVICE_TIMEOUT"
	case ResponseCodeFeatureNotSupported:
		return "FEATURE_NOT_SUPPORTED"
	case ResponseCodeServiceDisconnected:
		return "SERVICE_DISCONNECTED"
	case ResponseCodeOK:
		return "OK"
	case ResponseCodeUserCanceled:
		return "USER_CANCELED"
	case ResponseCodeServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case ResponseCodeBillingUnavailable:
		return "BILLING_UNAVAILABLE"
	case ResponseCodeItemUnavailable:
		return "ITEM_UNAVAILABLE"
	case ResponseCodeDeveloperError:
		return "DEVELOPER_ERROR"
	case ResponseCodeError:
		return "ERROR"
	case ResponseCodeItemAlreadyOwned:
		return "ITEM_ALREADY_OWNED"
	case ResponseCodeItemNotOwned:
		return "ITEM_NOT_OWNED"
	case ResponseCodeNetworkError:
		return "NETWORK_ERROR"
	default:
		return fmt.Sprintf("RESPONSE_CODE(%d)", int(c))
	}
}

// Result is the outcome of a single billing call.
type Result struct {
	Code         ResponseCode
	DebugMessage string
}

func OK() Result {
	return Result{Code: ResponseCodeOK}
}

func ResultOf(code ResponseCode) Result {
	return Result{Code: code}
}

func (r Result) IsOK() bool {
	return r.Code == ResponseCodeOK
}

type PurchaseState uint8

const (
	PurchaseStateUnspecified PurchaseState = iota
	PurchaseStatePurchased
	PurchaseStatePending
)

func (s PurchaseState) String() string {
	switch s {
	case PurchaseStatePurchased:
		return "PURCHASED"
	case PurchaseStatePending:
		return "PENDING"
	default:
		return "UNSPECIFIED"
	}
}

// Purchase is a purchase as reported by the billing service. It is treated
// as immutable once received.
type Purchase struct {
	ProductIDs          []string
	OriginalJSON        string
	Signature           string
	PurchaseToken       string
	OrderID             string
	PurchaseTime        time.Time
	State               PurchaseState
	Acknowledged        bool
	ObfuscatedAccountID string
}

// FirstProductID returns the first product of the purchase, or "" if the
// product list is empty.
func (p *Purchase) FirstProductID() string {
	if len(p.ProductIDs) == 0 {
		return ""
	}
	return p.ProductIDs[0]
}

func (p *Purchase) Clone() *Purchase {
	cloned := *p
	cloned.ProductIDs = append([]string(nil), p.ProductIDs...)
	return &cloned
}

type OneTimePurchaseOffer struct {
	FormattedPrice string
	PriceMicros    int64
	CurrencyCode   string
}

type ProductDetails struct {
	ProductID   string
	Title       string
	Description string

	// OneTimeOffer is nil when the vendor omitted the price offer, which
	// makes the details unusable for display.
	OneTimeOffer *OneTimePurchaseOffer
}

func (d *ProductDetails) Clone() *ProductDetails {
	cloned := *d
	if d.OneTimeOffer != nil {
		offer := *d.OneTimeOffer
		cloned.OneTimeOffer = &offer
	}
	return &cloned
}
