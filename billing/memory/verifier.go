package memory

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/code-payments/flipchat-billing/billing"
)

// Verifier checks an ed25519 signature over the purchase's original JSON.
// Purchases produced by a Client configured WithSigner carry such a
// signature.
type Verifier struct {
	publicKey ed25519.PublicKey
}

func NewVerifier(pubKey ed25519.PublicKey) (billing.Verifier, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid ed25519 public key length: %d", len(pubKey))
	}
	return &Verifier{publicKey: pubKey}, nil
}

func (v *Verifier) VerifyPurchase(_ context.Context, purchase *billing.Purchase) (bool, error) {
	signature, err := base64.StdEncoding.DecodeString(purchase.Signature)
	if err != nil {
		// A malformed signature is an invalid purchase, not a verifier failure.
		return false, nil
	}

	return ed25519.Verify(v.publicKey, []byte(purchase.OriginalJSON), signature), nil
}

func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func Sign(owner ed25519.PrivateKey, payload string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(owner, []byte(payload)))
}
