package signature

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"

	"github.com/awa/go-iap/playstore"
	"github.com/pkg/errors"

	"github.com/code-payments/flipchat-billing/billing"
)

// Verifier checks the Play license-key signature (SHA1withRSA) over a
// purchase's original JSON.
type Verifier struct {

	// The app's base64-encoded RSA public key from the Play Console.
	base64PublicKey string
}

// NewVerifier fails if the key is not a base64-encoded PKIX RSA public key.
func NewVerifier(base64PublicKey string) (billing.Verifier, error) {
	der, err := base64.StdEncoding.DecodeString(base64PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode license key")
	}

	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse license key")
	}
	if _, ok := key.(*rsa.PublicKey); !ok {
		return nil, errors.New("license key is not an RSA public key")
	}

	return &Verifier{base64PublicKey: base64PublicKey}, nil
}

func (v *Verifier) VerifyPurchase(_ context.Context, purchase *billing.Purchase) (bool, error) {
	if purchase.OriginalJSON == "" || purchase.Signature == "" {
		return false, nil
	}

	valid, err := playstore.VerifySignature(v.base64PublicKey, []byte(purchase.OriginalJSON), purchase.Signature)
	if err != nil {
		// The key was validated up front, so this is an undecodable signature.
		return false, nil
	}
	return valid, nil
}
