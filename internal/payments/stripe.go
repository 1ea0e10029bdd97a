package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StripeGateway talks to a Stripe-compatible HTTP API using form-encoded
// requests and per-call Idempotency-Key headers.
type StripeGateway struct {
	apiBase    string
	secretKey  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewStripeGateway(apiBase, secretKey string, log *zap.Logger) *StripeGateway {
	return &StripeGateway{
		apiBase:   strings.TrimRight(apiBase, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

func (g *StripeGateway) CreateAndConfirmIntent(ctx context.Context, p IntentParams) (*IntentResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", p.Currency)
	form.Set("payment_method", p.PaymentMethodRef)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	form.Set("metadata[order_ref]", p.OrderRef)

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.post(ctx, "/payment_intents", form, p.IdempotencyKey, &resp); err != nil {
		return nil, err
	}
	return &IntentResult{IntentID: resp.ID, Status: mapIntentStatus(resp.Status)}, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, p TransferParams) (*TransferResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", p.Currency)
	form.Set("destination", p.DestinationAccount)
	form.Set("metadata[order_ref]", p.OrderRef)

	var resp struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/transfers", form, p.IdempotencyKey, &resp); err != nil {
		return nil, err
	}
	// Transfers are synchronous: a 200 with an id means the transfer was created.
	return &TransferResult{TransferID: resp.ID, Status: StatusSucceeded}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, p RefundParams) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", p.IntentID)
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("metadata[order_ref]", p.OrderRef)

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.post(ctx, "/refunds", form, p.IdempotencyKey, &resp); err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: resp.ID, Status: resp.Status}, nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				DeclineCode string `json:"decline_code"`
				Message     string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			code := apiErr.Error.DeclineCode
			if code == "" {
				code = apiErr.Error.Code
			}
			return &GatewayError{Code: code, Message: apiErr.Error.Message}
		}
		return &GatewayError{Code: strconv.Itoa(resp.StatusCode), Message: string(body)}
	}

	return json.Unmarshal(body, out)
}

// mapIntentStatus folds Stripe's intent statuses into the three we track.
func mapIntentStatus(s string) string {
	switch s {
	case "succeeded":
		return StatusSucceeded
	case "processing", "requires_action":
		return StatusPending
	default:
		return StatusFailed
	}
}
