package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const signaturePrefix = "sha256="

// Sign computes the signature header value for a delivery body: an
// HMAC-SHA256 over the exact bytes transmitted, keyed by the subscription
// secret, rendered as lowercase hex behind an algorithm tag.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
