package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex-encoded HMAC-SHA256 of signedPayload
// under secret.
func ComputeSignature(secret string, signedPayload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signedPayload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SecureCompare compares two hex signatures in constant time so comparison
// latency leaks nothing about how many leading characters matched.
func SecureCompare(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// HashPayload returns the hex-encoded SHA-256 digest of the raw payload
// bytes. The digest is stored at first receipt and compared on every later
// delivery of the same event id.
func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
