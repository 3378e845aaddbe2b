// Package gateway contains payment gateway adapters.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	"github.com/duesflow/duesflow/internal/config"
	"github.com/duesflow/duesflow/internal/observability"
)

var ErrNotConfigured = errors.New("gateway_not_configured")

type stripeIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type stripeErrorBody struct {
	Error struct {
		Type          string `json:"type"`
		Code          string `json:"code"`
		DeclineCode   string `json:"decline_code"`
		Message       string `json:"message"`
		PaymentIntent struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment_intent"`
	} `json:"error"`
}

type StripeGateway struct {
	apiKey    string
	accountID string
	baseURL   string
	client    *http.Client
	log       *zap.Logger
	metrics   *observability.Metrics
}

// NewStripeGateway builds the payment intents client. An empty baseURL
// selects the production API host.
func NewStripeGateway(apiKey, accountID, baseURL string, log *zap.Logger, metrics *observability.Metrics) *StripeGateway {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeGateway{
		apiKey:    strings.TrimSpace(apiKey),
		accountID: strings.TrimSpace(accountID),
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 12 * time.Second},
		log:       log.Named("charge.gateway"),
		metrics:   metrics,
	}
}

// NewGateway selects the configured provider adapter.
func NewGateway(cfg config.Config, log *zap.Logger, metrics *observability.Metrics) (chargedomain.Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Gateway.Provider))
	switch provider {
	case "", "stripe":
		return NewStripeGateway(cfg.Gateway.SecretKey, cfg.Gateway.AccountID, "", log, metrics), nil
	default:
		return nil, fmt.Errorf("unsupported gateway provider %q", cfg.Gateway.Provider)
	}
}

func (g *StripeGateway) Provider() string {
	return "stripe"
}

func (g *StripeGateway) CreateCharge(ctx context.Context, params chargedomain.ChargeParams) (*chargedomain.ChargeOutcome, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	values.Set("currency", strings.ToLower(params.Currency))
	values.Set("payment_method", strings.TrimSpace(params.InstrumentID))
	values.Set("customer", strings.TrimSpace(params.CustomerID))
	values.Set("confirm", "true")
	values.Set("off_session", "true")
	if params.Description != "" {
		values.Set("description", params.Description)
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	start := time.Now()
	resp, err := g.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, params.IdempotencyKey)
	g.metrics.GatewayRequestDuration.WithLabelValues("create_charge").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return g.decodeFailure(resp)
	}

	var intent stripeIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, err
	}
	if intent.ID == "" {
		return nil, errors.New("stripe_response_invalid")
	}

	switch intent.Status {
	case "succeeded":
		return &chargedomain.ChargeOutcome{TransactionID: intent.ID, Status: chargedomain.OutcomeSucceeded}, nil
	case "processing":
		return &chargedomain.ChargeOutcome{TransactionID: intent.ID, Status: chargedomain.OutcomeProcessing}, nil
	default:
		// An off-session confirm cannot complete an interactive status.
		return &chargedomain.ChargeOutcome{
			TransactionID:  intent.ID,
			Status:         chargedomain.OutcomeDeclined,
			FailureCode:    intent.Status,
			FailureMessage: "payment intent requires customer interaction",
		}, nil
	}
}

func (g *StripeGateway) decodeFailure(resp *http.Response) (*chargedomain.ChargeOutcome, error) {
	var body stripeErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.New("stripe_request_failed")
	}

	message := strings.TrimSpace(body.Error.Message)
	if resp.StatusCode >= http.StatusInternalServerError {
		if message == "" {
			message = "stripe_request_failed"
		}
		return nil, errors.New(message)
	}

	if body.Error.Type == "card_error" {
		code := strings.TrimSpace(body.Error.DeclineCode)
		if code == "" {
			code = strings.TrimSpace(body.Error.Code)
		}
		if code == "" {
			code = "card_declined"
		}
		g.log.Info("gateway declined charge",
			zap.String("code", code),
			zap.String("transaction_id", body.Error.PaymentIntent.ID),
		)
		return &chargedomain.ChargeOutcome{
			TransactionID:  body.Error.PaymentIntent.ID,
			Status:         chargedomain.OutcomeDeclined,
			FailureCode:    code,
			FailureMessage: message,
		}, nil
	}

	if message == "" {
		message = "stripe_request_failed"
	}
	return nil, errors.New(message)
}

func (g *StripeGateway) doRequest(ctx context.Context, method, path string, values url.Values, idempotencyKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if g.accountID != "" {
		req.Header.Set("Stripe-Account", g.accountID)
	}
	return g.client.Do(req)
}
