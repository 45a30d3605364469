package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the confirmation signature the gateway attaches to a payment:
// hex(HMAC-SHA256(secret, sessionID + "|" + paymentID)).
func Sign(secret, sessionID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a confirmation signature in constant time.
func VerifySignature(secret, sessionID, paymentID, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, sessionID, paymentID))
	return hmac.Equal(got, want)
}
