package session

import (
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/billing"
)

// QueryProduct looks up a single product. The outcome is a ProductInfo or a
// ProductInfoError for id.
func (m *Manager) QueryProduct(productID string, id ContextID) error {
	if productID == "" {
		return ErrInvalidArgument
	}
	if !m.Ready() {
		return ErrNotReady
	}

	log := m.log.With(
		zap.Uint64("context", uint64(id)),
		zap.String("product_id", productID),
	)

	await(m, m.client.QueryProductDetails(m.ctx, []string{productID}), func(res billing.ProductDetailsResult) {
		if !res.Result.IsOK() {
			log.Warn("Failed to query product details", zap.Stringer("code", res.Result.Code))
			m.emit(ProductInfoError{Context: id, ProductID: productID})
			return
		}
		if len(res.Details) == 0 {
			log.Debug("Product not found")
			m.emit(ProductInfoError{Context: id, ProductID: productID})
			return
		}

		details := res.Details[0]
		if details.OneTimeOffer == nil {
			log.Warn("Product has no one-time offer")
			m.emit(ProductInfoError{Context: id, ProductID: productID})
			return
		}

		m.emit(ProductInfo{
			Context:     id,
			ProductID:   productID,
			Title:       details.Title,
			Description: details.Description,
			Price:       details.OneTimeOffer.FormattedPrice,
		})
	})
	return nil
}

// QueryOwnedPurchases streams the purchases currently owned by the user as
// PurchaseInfo events, ended by a PurchaseInfoTerminator. A purchase with an
// invalid signature is reported in place as a PurchaseFailure. A
// PurchaseInfoError ends the stream without a terminator, including when a
// purchase could not be verified at all.
func (m *Manager) QueryOwnedPurchases(id ContextID) error {
	if !m.Ready() {
		return ErrNotReady
	}

	log := m.log.With(zap.Uint64("context", uint64(id)))

	await(m, m.client.QueryPurchases(m.ctx), func(res billing.PurchasesResult) {
		if !res.Result.IsOK() {
			log.Warn("Failed to query owned purchases", zap.Stringer("code", res.Result.Code))
			m.emit(PurchaseInfoError{Context: id, Reason: ReasonPurchaseQueryFailed})
			return
		}

		for _, purchase := range res.Purchases {
			productID := purchase.FirstProductID()
			if productID == "" {
				log.Warn("Owned purchase has no product", zap.String("purchase_token", purchase.PurchaseToken))
				m.emit(PurchaseInfoError{Context: id, Reason: ReasonPurchaseDataError})
				return
			}

			purchaseLog := log.With(
				zap.String("purchase_token", purchase.PurchaseToken),
				zap.String("product_id", productID),
			)

			valid, err := m.verifier.VerifyPurchase(m.ctx, purchase)
			if err != nil {
				purchaseLog.Warn("Failed to verify owned purchase", zap.Error(err))
				m.emit(PurchaseInfoError{Context: id, Reason: ReasonPurchaseQueryFailed})
				return
			}
			if !valid {
				purchaseLog.Warn("Owned purchase has an invalid signature")
				m.emit(PurchaseFailure{Context: id, Reason: ReasonInvalidSignature})
				continue
			}

			if m.acknowledgeOwned && purchase.State == billing.PurchaseStatePurchased && !purchase.Acknowledged {
				m.acknowledge(purchaseLog, purchase.PurchaseToken)
			}

			m.emit(PurchaseInfo{
				Context:             id,
				ProductID:           productID,
				OriginalJSON:        purchase.OriginalJSON,
				PurchaseToken:       purchase.PurchaseToken,
				ObfuscatedAccountID: purchase.ObfuscatedAccountID,
				Signature:           purchase.Signature,
			})
		}

		log.Debug("Owned purchases reported", zap.Int("num_purchases", len(res.Purchases)))
		m.emit(PurchaseInfoTerminator{Context: id})
	})
	return nil
}
