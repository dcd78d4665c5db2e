package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mtalha0777/arfurniture/internal/money"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StripeGateway talks to the Stripe PaymentIntents REST API.
type StripeGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewStripeGateway(baseURL, secretKey string) *StripeGateway {
	return &StripeGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type stripeIntent struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	LatestCharge     string `json:"latest_charge"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(int64(req.Amount), 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	if req.UserID != "" {
		form.Set("metadata[user_id]", req.UserID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var pi stripeIntent
	if err := g.do(httpReq, &pi); err != nil {
		return nil, err
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       money.Amount(pi.Amount),
		Currency:     strings.ToUpper(pi.Currency),
		Status:       pi.Status,
	}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, token string) (*Confirmation, error) {
	if token == "" || strings.ContainsAny(token, "/?#") {
		return nil, ErrInvalidToken
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payment_intents/"+token, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}

	var pi stripeIntent
	if err := g.do(httpReq, &pi); err != nil {
		return nil, err
	}

	c := &Confirmation{
		PaymentRef: pi.ID,
		IntentID:   pi.ID,
		Status:     pi.Status,
		Amount:     money.Amount(pi.Amount),
		Currency:   strings.ToUpper(pi.Currency),
	}
	if pi.LastPaymentError != nil {
		c.FailureReason = pi.LastPaymentError.Message
	}
	return c, nil
}

func (g *StripeGateway) do(req *http.Request, out any) error {
	req.SetBasicAuth(g.secretKey, "")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrInvalidToken
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var se stripeError
		_ = json.Unmarshal(body, &se)
		return fmt.Errorf("%w: %s (%s)", ErrRejected, se.Error.Message, se.Error.Code)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}
