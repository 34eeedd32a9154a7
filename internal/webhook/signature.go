package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the request body keyed with
// the app secret, formatted as "sha256=<hex>".
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks signature against body. The error is safe to log
// and never includes the expected digest.
func VerifySignature(secret, body []byte, signature string) error {
	if len(secret) == 0 {
		return errors.New("webhook signature: secret is empty")
	}
	if signature == "" {
		return errors.New("webhook signature: header missing")
	}

	hexSignature, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return errors.New("webhook signature: unsupported algorithm")
	}

	signatureBytes, err := hex.DecodeString(hexSignature)
	if err != nil {
		return fmt.Errorf("webhook signature: invalid hex: %w", err)
	}

	if subtle.ConstantTimeCompare(Sign(secret, body), signatureBytes) != 1 {
		return errors.New("webhook signature: mismatch")
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureValue formats Sign as a header value.
func SignatureValue(secret, body []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(secret, body))
}
