package domain

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrEventIgnored     = errors.New("event_ignored")
)

// WebhookAdapter verifies and parses one provider's webhook deliveries into
// canonical gateway events.
type WebhookAdapter interface {
	Verify(payload []byte, headers http.Header) error
	Parse(payload []byte) (*GatewayEvent, error)
	Provider() string
}
