package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC of a delivery body.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks header, formatted "sha256=<hex>", against the
// HMAC-SHA256 of body keyed with secret.
func VerifySignature(secret string, body []byte, header string) bool {
	algo, sig, ok := strings.Cut(header, "=")
	if !ok || algo != "sha256" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(secret, body))
}

// Sign returns the HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureValue formats the header value for body.
func SignatureValue(secret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(secret, body))
}
