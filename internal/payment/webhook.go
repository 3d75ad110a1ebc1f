package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"chatcommerce/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

// EventPaymentLinkPaid is the only event that confirms an order.
const EventPaymentLinkPaid = "payment_link.paid"

// VerifySignature checks body against the signature using the webhook secret.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return domain.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(expected, got) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature Razorpay would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is the subset of a Razorpay webhook delivery the service reads.
type Event struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID          string `json:"id"`
				ReferenceID string `json:"reference_id"`
				Status      string `json:"status"`
				Customer    struct {
					Contact string `json:"contact"`
				} `json:"customer"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Paid reports the order reference and customer contact of a paid link.
func (e *Event) Paid() (reference, contact string, ok bool) {
	if e.Event != EventPaymentLinkPaid {
		return "", "", false
	}
	entity := e.Payload.PaymentLink.Entity
	if entity.ReferenceID == "" {
		return "", "", false
	}
	return entity.ReferenceID, NormalizeContact(entity.Customer.Contact), true
}

// NormalizeContact strips everything but digits, matching chat sender ids.
func NormalizeContact(contact string) string {
	var b strings.Builder
	for _, r := range contact {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
