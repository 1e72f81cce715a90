package play

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/androidpublisher/v3"

	"github.com/code-payments/flipchat-billing/billing"
)

// Verifier uses the Google Play Developer API to confirm that a purchase
// token is a real, completed purchase of the product it claims.
type Verifier struct {
	log *zap.Logger
	svc *androidpublisher.Service

	// PackageName is the Android app's package name.
	packageName string
}

func NewVerifier(log *zap.Logger, svc *androidpublisher.Service, packageName string) billing.Verifier {
	return &Verifier{
		log:         log,
		svc:         svc,
		packageName: packageName,
	}
}

func (v *Verifier) VerifyPurchase(ctx context.Context, purchase *billing.Purchase) (bool, error) {
	productID := purchase.FirstProductID()
	if productID == "" || purchase.PurchaseToken == "" {
		return false, nil
	}

	log := v.log.With(
		zap.String("product_id", productID),
		zap.String("purchase_token", purchase.PurchaseToken),
	)

	productPurchase, err := v.svc.Purchases.Products.Get(v.packageName, productID, purchase.PurchaseToken).Context(ctx).Do()
	if isNotFound(err) {
		log.Debug("Purchase token not known to Play")
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "google products.get")
	}

	// PurchaseState 0 is purchased, 1 canceled, 2 pending. A pending purchase
	// is reported by the device as pending too, so only cancellation is fatal.
	switch productPurchase.PurchaseState {
	case 0:
	case 2:
		if purchase.State != billing.PurchaseStatePending {
			log.Debug("Play reports pending purchase as completed on device")
			return false, nil
		}
	default:
		log.Debug("Purchase is not in a purchased state", zap.Int64("purchase_state", productPurchase.PurchaseState))
		return false, nil
	}

	if productPurchase.ObfuscatedExternalAccountId != "" &&
		productPurchase.ObfuscatedExternalAccountId != purchase.ObfuscatedAccountID {
		log.Debug("Account id mismatch")
		return false, nil
	}

	return true, nil
}
