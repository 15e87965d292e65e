// Package gateway is the boundary with the external payment processor. It
// verifies inbound event authenticity and normalizes payloads before the
// settlement engine ever sees them; a bad signature never reaches the ledger.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body,
// computed with the shared webhook secret.
const SignatureHeader = "X-Webhook-Signature"

const (
	eventStatusSuccess = "success"
	eventStatusFailed  = "failed"
)

type webhookMeta struct {
	Vertical string `json:"vertical"`
	OrderID  string `json:"order_id"`
}

type webhookData struct {
	TxRef    string          `json:"tx_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Meta     webhookMeta     `json:"meta"`
}

type webhookPayload struct {
	Event string      `json:"event"`
	Data  webhookData `json:"data"`
}

// Sign computes the signature the gateway is expected to send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(Sign(secret, body))
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
