package session

import (
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/billing"
)

type PurchaseRequest struct {
	ProductID string

	// DevPayload is passed to the billing service as the obfuscated account
	// id when set.
	DevPayload string

	// Consumable purchases are consumed once purchased instead of being
	// acknowledged.
	Consumable bool
}

// StartPurchase starts a purchase flow for the request. It fails without
// emitting anything if the service is not ready or another purchase is in
// flight. Otherwise exactly one PurchaseFailure, or one outcome per purchase
// the service reports for the flow, follows.
func (m *Manager) StartPurchase(req PurchaseRequest, id ContextID) error {
	if req.ProductID == "" || id == 0 {
		return ErrInvalidArgument
	}

	log := m.log.With(
		zap.Uint64("context", uint64(id)),
		zap.String("product_id", req.ProductID),
	)

	m.mu.Lock()
	if !m.ready {
		m.mu.Unlock()
		log.Warn("Rejecting purchase, billing service not ready")
		return ErrNotReady
	}
	if m.session.context != 0 {
		pending := m.session.context
		m.mu.Unlock()
		log.Warn("Rejecting purchase, another purchase is in progress", zap.Uint64("pending_context", uint64(pending)))
		return ErrPurchaseInProgress
	}
	m.lastSeq++
	seq := m.lastSeq
	m.session = purchaseSession{
		context:    id,
		consumable: req.Consumable,
		seq:        seq,
	}
	m.mu.Unlock()

	log.Debug("Starting purchase")

	await(m, m.client.QueryProductDetails(m.ctx, []string{req.ProductID}), func(res billing.ProductDetailsResult) {
		if !res.Result.IsOK() {
			log.Warn("Failed to query product details", zap.Stringer("code", res.Result.Code))
			m.failSession(seq, id, ReasonCreateBuyIntent)
			return
		}
		if len(res.Details) == 0 {
			log.Warn("No product details found")
			m.failSession(seq, id, ReasonCreateBuyIntent)
			return
		}

		if !m.isCurrent(seq) {
			log.Debug("Purchase ended before the flow was launched")
			return
		}

		params := billing.FlowParams{Details: res.Details[0]}
		if req.DevPayload != "" {
			params.ObfuscatedAccountID = req.DevPayload
		}

		await(m, m.client.LaunchPurchaseFlow(m.ctx, params), func(result billing.Result) {
			if !result.IsOK() {
				log.Warn("Failed to launch billing flow", zap.Stringer("code", result.Code))
				m.failSession(seq, id, ReasonLaunchBillingFlow)
				return
			}
			log.Debug("Purchase started")
		})
	})

	return nil
}

func (m *Manager) isCurrent(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session.context != 0 && m.session.seq == seq
}

// endSession returns the manager to idle if attempt seq is still the current
// one, and reports whether it was.
func (m *Manager) endSession(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.context == 0 || m.session.seq != seq {
		return false
	}
	m.session = purchaseSession{}
	return true
}

func (m *Manager) failSession(seq uint64, id ContextID, reason string) {
	if !m.endSession(seq) {
		m.log.Debug("Dropping failure for a purchase that already ended", zap.Uint64("context", uint64(id)))
		return
	}
	m.emit(PurchaseFailure{Context: id, Reason: reason})
}

func (m *Manager) onPurchasesUpdated(result billing.Result, purchases []*billing.Purchase) {
	if m.ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	current := m.session
	m.mu.Unlock()

	log := m.log.With(zap.Uint64("context", uint64(current.context)))
	if current.context == 0 {
		log.Debug("Purchase update without a pending purchase")
	}

	switch {
	case result.Code == billing.ResponseCodeUserCanceled:
		log.Info("User canceled the purchase")
		m.emit(PurchaseFailure{Context: current.context})
	case !result.IsOK() || len(purchases) == 0:
		log.Warn("Purchase failed",
			zap.Stringer("code", result.Code),
			zap.Int("num_purchases", len(purchases)),
		)
		m.emit(PurchaseFailure{Context: current.context, Reason: ReasonPurchaseIncomplete})
	default:
		for _, purchase := range purchases {
			m.completePurchase(log, current.context, current.consumable, purchase)
		}
	}

	m.endSession(current.seq)
}

// completePurchase verifies a purchase, settles it with the billing service
// and reports it. Settling is not awaited.
func (m *Manager) completePurchase(log *zap.Logger, id ContextID, consumable bool, purchase *billing.Purchase) {
	log = log.With(
		zap.String("purchase_token", purchase.PurchaseToken),
		zap.Stringer("purchase_state", purchase.State),
	)

	productID := purchase.FirstProductID()
	if productID == "" {
		log.Warn("Purchase has no product")
		m.emit(PurchaseFailure{Context: id, Reason: ReasonPurchaseDataError})
		return
	}

	valid, err := m.verifier.VerifyPurchase(m.ctx, purchase)
	if err != nil {
		log.Warn("Failed to verify purchase", zap.Error(err))
	}
	if err != nil || !valid {
		log.Warn("Invalid purchase signature")
		m.emit(PurchaseFailure{Context: id, Reason: ReasonInvalidSignature})
		return
	}

	if purchase.State == billing.PurchaseStatePurchased {
		if consumable {
			if err := m.Consume(purchase.PurchaseToken); err != nil {
				log.Warn("Failed to consume purchase", zap.Error(err))
			}
		} else if !purchase.Acknowledged {
			m.acknowledge(log, purchase.PurchaseToken)
		}
	}

	log.Info("Purchase succeeded", zap.String("product_id", productID))
	m.emit(PurchaseResult{
		Context:             id,
		ProductID:           productID,
		OriginalJSON:        purchase.OriginalJSON,
		PurchaseToken:       purchase.PurchaseToken,
		ObfuscatedAccountID: purchase.ObfuscatedAccountID,
		Signature:           purchase.Signature,
	})
}

func (m *Manager) acknowledge(log *zap.Logger, purchaseToken string) {
	await(m, m.client.AcknowledgePurchase(m.ctx, purchaseToken), func(result billing.Result) {
		if result.IsOK() {
			log.Debug("Purchase acknowledged")
		} else {
			log.Warn("Failed to acknowledge purchase", zap.Stringer("code", result.Code))
		}
	})
}

// Consume marks a purchase as spent so the product can be bought again. The
// outcome is only logged.
func (m *Manager) Consume(purchaseToken string) error {
	if purchaseToken == "" {
		return ErrInvalidArgument
	}
	if !m.Ready() {
		m.log.Warn("Rejecting consume, billing service not ready")
		return ErrNotReady
	}

	log := m.log.With(zap.String("purchase_token", purchaseToken))
	log.Debug("Consuming purchase")

	await(m, m.client.ConsumePurchase(m.ctx, purchaseToken), func(res billing.ConsumeResult) {
		if res.Result.IsOK() {
			log.Debug("Purchase consumed")
		} else {
			log.Warn("Failed to consume purchase", zap.Stringer("code", res.Result.Code))
		}
	})
	return nil
}
