package billing

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Verifier interface {

	// VerifyPurchase determines whether a purchase reported by the billing
	// service is authentic. Implementations check the receipt payload and
	// its signature, or ask the vendor about the purchase token.
	VerifyPurchase(ctx context.Context, purchase *Purchase) (bool, error)
}

// VerifierFunc is an adapter to allow the use of ordinary functions as
// Verifiers.
type VerifierFunc func(ctx context.Context, purchase *Purchase) (bool, error)

func (f VerifierFunc) VerifyPurchase(ctx context.Context, purchase *Purchase) (bool, error) {
	return f(ctx, purchase)
}

// Unverified accepts every purchase. It exists so that a missing verifier is
// loud: every accepted purchase is logged as unverified.
type Unverified struct {
	log *zap.Logger
}

func NewUnverified(log *zap.Logger) Verifier {
	return &Unverified{log: log}
}

func (u *Unverified) VerifyPurchase(_ context.Context, purchase *Purchase) (bool, error) {
	u.log.Warn("No client-side purchase verification configured, accepting purchase",
		zap.String("purchase_token", purchase.PurchaseToken),
		zap.String("order_id", purchase.OrderID),
	)
	return true, nil
}

// Chain requires every verifier to accept the purchase. Verification stops at
// the first rejection or error.
type Chain []Verifier

func (c Chain) VerifyPurchase(ctx context.Context, purchase *Purchase) (bool, error) {
	if len(c) == 0 {
		return false, errors.New("empty verifier chain")
	}

	for _, v := range c {
		ok, err := v.VerifyPurchase(ctx, purchase)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
