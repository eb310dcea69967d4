package square

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/ayurkart/storefront-backend/pkg/config"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultCurrency = "INR"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = errors.New(`square environment must be "sandbox" or "production"`)
	errLoggerRequired      = errors.New("square logger is required")
)

var endpoints = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

type refundsAPI interface {
	RefundPayment(ctx context.Context, request *sq.RefundPaymentRequest, opts ...sqoption.RequestOption) (*sq.RefundPaymentResponse, error)
}

// Client refunds captured Square payments.
type Client struct {
	api      refundsAPI
	env      string
	currency string
	timeout  time.Duration
	logg     *logger.Logger
	newKey   func() string
}

// NewClient validates the credentials and builds an SDK-backed client.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	env := cfg.Environment()
	baseURL, ok := endpoints[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(token),
	)
	c := newClient(sdk.Refunds, env, cfg, logg)
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

func newClient(api refundsAPI, env string, cfg config.SquareConfig, logg *logger.Logger) *Client {
	c := &Client{
		api:      api,
		env:      env,
		currency: strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		timeout:  cfg.Timeout,
		logg:     logg,
		newKey:   func() string { return "refund-" + uuid.NewString() },
	}
	if c.currency == "" {
		c.currency = defaultCurrency
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

// RefundPayment refunds part or all of a captured payment. Every call sends a
// fresh idempotency key unless params carries one.
func (c *Client) RefundPayment(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "square client is not configured")
	}
	req, err := c.buildRequest(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, &DeclinedError{Detail: err.Error()}, "invalid refund request")
	}

	ctx = c.logg.WithFields(ctx, loggable(map[string]any{
		"square_env":      c.env,
		"payment_id":      params.PaymentID,
		"order_id":        params.OrderID,
		"amount_minor":    *req.AmountMoney.Amount,
		"idempotency_key": req.IdempotencyKey,
	}))
	c.logg.Info(ctx, "square refund requested")

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.api.RefundPayment(callCtx, req)
	if err != nil {
		c.logg.Error(ctx, "square refund failed", err)
		return nil, classify(err)
	}

	result, err := decodeRefund(resp)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode square refund")
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"refund_id":     result.ID,
		"refund_status": result.Status,
	}), "square refund accepted")
	return result, nil
}

// decodeRefund keeps the full response body so it can be stored verbatim.
func decodeRefund(resp *sq.RefundPaymentResponse) (*RefundResult, error) {
	if resp == nil {
		return nil, errors.New("empty refund response")
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var body struct {
		Refund struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"refund"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if body.Refund.ID == "" {
		return nil, errors.New("refund response missing id")
	}
	return &RefundResult{ID: body.Refund.ID, Status: body.Refund.Status, Raw: raw}, nil
}

var sensitiveKeys = []string{"token", "secret", "card", "nonce", "cvv", "email", "phone"}

// loggable masks values whose key looks like a credential or customer PII.
func loggable(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
		lower := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = "[REDACTED]"
				break
			}
		}
	}
	return out
}
