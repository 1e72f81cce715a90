package tests

import (
	"context"
	"testing"

	"github.com/code-payments/flipchat-billing/billing"
)

// ValidPurchaseFunc returns a purchase the verifier under test must accept.
type ValidPurchaseFunc func() *billing.Purchase

func RunGenericVerifierTests(t *testing.T, v billing.Verifier, validPurchaseFunc ValidPurchaseFunc, teardown func()) {
	for _, testFunc := range []func(t *testing.T, v billing.Verifier, validPurchaseFunc ValidPurchaseFunc){
		testValidPurchase,
		testTamperedPayload,
		testGarbageSignature,
	} {
		testFunc(t, v, validPurchaseFunc)
		teardown()
	}
}

func testValidPurchase(t *testing.T, v billing.Verifier, validPurchaseFunc ValidPurchaseFunc) {
	valid, err := v.VerifyPurchase(context.Background(), validPurchaseFunc())
	if err != nil {
		t.Fatalf("unexpected error verifying valid purchase: %v", err)
	}
	if !valid {
		t.Errorf("expected purchase to be valid, got invalid")
	}
}

func testTamperedPayload(t *testing.T, v billing.Verifier, validPurchaseFunc ValidPurchaseFunc) {
	purchase := validPurchaseFunc()
	purchase.OriginalJSON = purchase.OriginalJSON + " "

	valid, _ := v.VerifyPurchase(context.Background(), purchase)
	if valid {
		t.Errorf("expected tampered purchase to be invalid, got valid")
	}
}

func testGarbageSignature(t *testing.T, v billing.Verifier, validPurchaseFunc ValidPurchaseFunc) {
	purchase := validPurchaseFunc()
	purchase.Signature = "invalid"

	valid, _ := v.VerifyPurchase(context.Background(), purchase)
	if valid {
		t.Errorf("expected purchase with garbage signature to be invalid, got valid")
	}
}
