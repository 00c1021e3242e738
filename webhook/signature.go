package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignatureHeader is the header carrying the hex HMAC-SHA256 of the body.
const SignatureHeader = "X-HumanPages-Signature"

const (
	minSecretLen = 16
	maxSecretLen = 256
)

// ValidateSecret enforces the shared-secret length contract.
func ValidateSecret(secret string) error {
	if len(secret) < minSecretLen || len(secret) > maxSecretLen {
		return fmt.Errorf("webhook secret must be between %d and %d characters, got %d", minSecretLen, maxSecretLen, len(secret))
	}
	return nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for body. The comparison
// is constant-time; a direct string equality would leak timing.
func Verify(secret string, body []byte, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
