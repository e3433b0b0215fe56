package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier checks gateway signatures with a shared secret.
type Verifier struct {
	secret        []byte
	webhookSecret []byte
}

func NewVerifier(secret, webhookSecret string) Verifier {
	return Verifier{secret: []byte(secret), webhookSecret: []byte(webhookSecret)}
}

// Sign returns hex(HMAC-SHA256(secret, intentID|paymentID)).
func (v Verifier) Sign(intentID, paymentID string) string {
	return sign(v.secret, intentID+"|"+paymentID)
}

// VerifyCallback never errors: a malformed or mismatched signature is false.
func (v Verifier) VerifyCallback(intentID, paymentID, signature string) bool {
	if len(v.secret) == 0 || intentID == "" || paymentID == "" {
		return false
	}
	return equalHex(v.Sign(intentID, paymentID), signature)
}

// VerifyWebhookBody checks the signature header the gateway attaches to
// server-to-server webhooks. With no webhook secret configured it accepts
// every body and callers rely on the payment signature alone.
func (v Verifier) VerifyWebhookBody(body []byte, signature string) bool {
	if len(v.webhookSecret) == 0 {
		return true
	}
	return equalHex(v.SignWebhookBody(body), signature)
}

// SignWebhookBody returns the header value VerifyWebhookBody accepts.
func (v Verifier) SignWebhookBody(body []byte) string {
	return sign(v.webhookSecret, string(body))
}

func sign(secret []byte, message string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, got string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	have, err := hex.DecodeString(strings.TrimSpace(got))
	if err != nil {
		return false
	}
	return hmac.Equal(want, have)
}
