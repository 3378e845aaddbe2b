package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	"github.com/duesflow/duesflow/internal/config"
)

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeEventIntent struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Created          int64             `json:"created"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

type StripeWebhook struct {
	secret string
}

func NewStripeWebhook(cfg config.Config) *StripeWebhook {
	return &StripeWebhook{secret: strings.TrimSpace(cfg.Gateway.WebhookSecret)}
}

// NewWebhookAdapter selects the configured provider's webhook adapter.
func NewWebhookAdapter(cfg config.Config) (chargedomain.WebhookAdapter, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Gateway.Provider))
	switch provider {
	case "", "stripe":
		return NewStripeWebhook(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported gateway provider %q", cfg.Gateway.Provider)
	}
}

func (w *StripeWebhook) Provider() string {
	return "stripe"
}

func (w *StripeWebhook) Verify(payload []byte, headers http.Header) error {
	if w.secret == "" {
		return chargedomain.ErrInvalidSignature
	}

	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return chargedomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return chargedomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(w.secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return chargedomain.ErrInvalidSignature
}

func (w *StripeWebhook) Parse(payload []byte) (*chargedomain.GatewayEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, chargedomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, chargedomain.ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return w.parseIntent(event, payload, chargedomain.EventPaymentSucceeded)
	case "payment_intent.payment_failed":
		return w.parseIntent(event, payload, chargedomain.EventPaymentFailed)
	default:
		return nil, chargedomain.ErrEventIgnored
	}
}

func (w *StripeWebhook) parseIntent(event stripeEvent, payload []byte, eventType string) (*chargedomain.GatewayEvent, error) {
	var intent stripeEventIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, chargedomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, chargedomain.ErrInvalidPayload
	}

	out := &chargedomain.GatewayEvent{
		Provider:      "stripe",
		EventID:       event.ID,
		Type:          eventType,
		TransactionID: intent.ID,
		OccurredAt:    eventTimestamp(intent.Created, event.Created),
		RawPayload:    payload,
	}
	if raw := strings.TrimSpace(intent.Metadata["staging_record_id"]); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil {
			out.StagingRecordID = id
		}
	}
	if eventType == chargedomain.EventPaymentFailed {
		code := strings.TrimSpace(intent.LastPaymentError.DeclineCode)
		if code == "" {
			code = strings.TrimSpace(intent.LastPaymentError.Code)
		}
		if code == "" {
			code = "payment_failed"
		}
		out.FailureCode = code
		out.FailureMessage = strings.TrimSpace(intent.LastPaymentError.Message)
	}
	return out, nil
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func eventTimestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
