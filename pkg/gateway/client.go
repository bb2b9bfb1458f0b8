package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
)

// Client talks to the national payment gateway's merchant API. Intent
// creation is never retried automatically; capture and refund are, because
// the gateway keys them on idempotency keys.
type Client struct {
	baseURL       string
	merchantID    string
	apiKey        string
	signingSecret []byte

	httpClient    *http.Client
	logg          *logger.Logger
	retryAttempts uint64
	retryBase     time.Duration
}

func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("gateway signing secret is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		merchantID:    cfg.MerchantID,
		apiKey:        cfg.APIKey,
		signingSecret: []byte(cfg.SigningSecret),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logg:          logg,
		retryAttempts: uint64(attempts),
		retryBase:     cfg.RetryBase,
	}, nil
}

type CreateIntentParams struct {
	OrderID     uuid.UUID
	Amount      int64
	Currency    string
	CallbackURL string
}

type CreateIntentResult struct {
	IntentID    string `json:"intent_id"`
	RedirectURL string `json:"redirect_url"`
}

func (c *Client) CreateIntent(ctx context.Context, params CreateIntentParams) (*CreateIntentResult, error) {
	if params.OrderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id is required for payment intent")
	}
	if params.Amount <= 0 {
		return nil, errors.New(errors.CodeValidation, "payment intent amount must be positive")
	}

	body := map[string]any{
		"merchant_id":  c.merchantID,
		"reference":    params.OrderID.String(),
		"amount":       params.Amount,
		"currency":     params.Currency,
		"callback_url": params.CallbackURL,
	}

	var result CreateIntentResult
	if err := c.do(ctx, http.MethodPost, "/v1/intents", body, &result); err != nil {
		return nil, err
	}
	if result.IntentID == "" {
		return nil, errors.New(errors.CodeDependency, "gateway returned an empty intent id")
	}
	return &result, nil
}

type CaptureParams struct {
	PaymentID      string
	IdempotencyKey string
}

type CaptureResult struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

func (c *Client) Capture(ctx context.Context, params CaptureParams) (*CaptureResult, error) {
	if params.PaymentID == "" {
		return nil, errors.New(errors.CodeValidation, "payment id is required for capture")
	}
	key := ensureIdempotencyKey(params.IdempotencyKey)

	body := map[string]any{
		"merchant_id":     c.merchantID,
		"idempotency_key": key,
	}
	path := fmt.Sprintf("/v1/payments/%s/capture", params.PaymentID)

	var result CaptureResult
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, path, body, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type RefundParams struct {
	PaymentID      string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

func (c *Client) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if params.PaymentID == "" {
		return nil, errors.New(errors.CodeValidation, "payment id is required for refund")
	}
	if params.Amount <= 0 {
		return nil, errors.New(errors.CodeValidation, "refund amount must be positive")
	}
	key := ensureIdempotencyKey(params.IdempotencyKey)

	body := map[string]any{
		"merchant_id":     c.merchantID,
		"payment_id":      params.PaymentID,
		"amount":          params.Amount,
		"currency":        params.Currency,
		"idempotency_key": key,
	}

	var result RefundResult
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/v1/refunds", body, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(c.retryAttempts-1, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if te := errors.As(err); te != nil && errors.MetadataFor(te.Code()).Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logg.Error(ctx, "gateway request failed", err)
		return errors.Wrap(errors.CodeDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "reading gateway response")
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"gateway_path":   path,
		"gateway_status": resp.StatusCode,
		"took_ms":        time.Since(started).Milliseconds(),
	})

	if resp.StatusCode >= 400 {
		c.logg.Warn(logCtx, "gateway returned an error status")
		return mapGatewayError(resp.StatusCode, respBody)
	}

	c.logg.Info(logCtx, "gateway call succeeded")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "decoding gateway response")
	}
	return nil
}

func ensureIdempotencyKey(key string) string {
	if key != "" {
		return key
	}
	return uuid.NewString()
}
