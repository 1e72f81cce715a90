package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Ready bool `json:"ready"`
}

type productResponse struct {
	ProductID   string `json:"product_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

type purchaseRequest struct {
	ProductID  string `json:"product_id"`
	DevPayload string `json:"dev_payload"`
	Consumable bool   `json:"consumable"`
}

type purchaseResponse struct {
	ProductID           string `json:"product_id"`
	OriginalJSON        string `json:"original_json"`
	PurchaseToken       string `json:"purchase_token"`
	ObfuscatedAccountID string `json:"obfuscated_account_id,omitempty"`
	Signature           string `json:"signature"`
}

type purchaseFailureResponse struct {
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}

type purchasesResponse struct {
	Purchases []purchaseResponse `json:"purchases"`
}

type consumeResponse struct {
	PurchaseToken string `json:"purchase_token"`
}

// GetStatus handles GET /v1/status.
func (s *Server) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Ready: s.manager.Ready()})
}

// GetProduct handles GET /v1/products/{productID}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	id, stream, release, err := s.openStream()
	if err != nil {
		s.log.Warn("Failed to open stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer release()

	if err := s.manager.QueryProduct(productID, id); err != nil {
		s.writeManagerError(w, err)
		return
	}

	events, err := s.await(r.Context(), stream, func(e session.Event) bool {
		switch e.(type) {
		case session.ProductInfo, session.ProductInfoError:
			return true
		}
		return false
	})
	if err != nil {
		s.writeWaitError(w, err)
		return
	}

	switch e := events[len(events)-1].(type) {
	case session.ProductInfo:
		writeJSON(w, http.StatusOK, productResponse{
			ProductID:   e.ProductID,
			Title:       e.Title,
			Description: e.Description,
			Price:       e.Price,
		})
	case session.ProductInfoError:
		writeError(w, http.StatusNotFound, "product not found")
	}
}

// StartPurchase handles POST /v1/purchases. It responds once the purchase
// flow reports its outcome.
func (s *Server) StartPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	id, stream, release, err := s.openStream()
	if err != nil {
		s.log.Warn("Failed to open stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer release()

	log := s.log.With(
		zap.Uint64("context", uint64(id)),
		zap.String("product_id", req.ProductID),
	)

	err = s.manager.StartPurchase(session.PurchaseRequest{
		ProductID:  req.ProductID,
		DevPayload: req.DevPayload,
		Consumable: req.Consumable,
	}, id)
	if err != nil {
		log.Debug("Purchase rejected", zap.Error(err))
		s.writeManagerError(w, err)
		return
	}

	events, err := s.await(r.Context(), stream, func(e session.Event) bool {
		switch e.(type) {
		case session.PurchaseResult, session.PurchaseFailure:
			return true
		}
		return false
	})
	if err != nil {
		s.writeWaitError(w, err)
		return
	}

	switch e := events[len(events)-1].(type) {
	case session.PurchaseResult:
		writeJSON(w, http.StatusOK, purchaseResponse{
			ProductID:           e.ProductID,
			OriginalJSON:        e.OriginalJSON,
			PurchaseToken:       e.PurchaseToken,
			ObfuscatedAccountID: e.ObfuscatedAccountID,
			Signature:           e.Signature,
		})
	case session.PurchaseFailure:
		writeJSON(w, http.StatusPaymentRequired, purchaseFailureResponse{
			Cancelled: e.Cancelled(),
			Reason:    e.Reason,
		})
	}
}

// ListPurchases handles GET /v1/purchases.
func (s *Server) ListPurchases(w http.ResponseWriter, r *http.Request) {
	id, stream, release, err := s.openStream()
	if err != nil {
		s.log.Warn("Failed to open stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer release()

	if err := s.manager.QueryOwnedPurchases(id); err != nil {
		s.writeManagerError(w, err)
		return
	}

	events, err := s.await(r.Context(), stream, func(e session.Event) bool {
		switch e.(type) {
		case session.PurchaseInfoTerminator, session.PurchaseInfoError:
			return true
		}
		return false
	})
	if err != nil {
		s.writeWaitError(w, err)
		return
	}

	resp := purchasesResponse{Purchases: []purchaseResponse{}}
	for _, e := range events {
		switch e := e.(type) {
		case session.PurchaseInfo:
			resp.Purchases = append(resp.Purchases, purchaseResponse{
				ProductID:           e.ProductID,
				OriginalJSON:        e.OriginalJSON,
				PurchaseToken:       e.PurchaseToken,
				ObfuscatedAccountID: e.ObfuscatedAccountID,
				Signature:           e.Signature,
			})
		case session.PurchaseInfoError:
			writeError(w, http.StatusBadGateway, e.Reason)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConsumePurchase handles POST /v1/purchases/{token}/consume. Consumption is
// asynchronous; the response only confirms it was requested.
func (s *Server) ConsumePurchase(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := s.manager.Consume(token); err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, consumeResponse{PurchaseToken: token})
}
