package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/learningsainttech/nanocart-backend/pkg/config"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/money"
)

const responseBodyLimit int64 = 1 << 20

// idempotencyHeader carries the order reference on intent creation. Retries
// reuse it so the gateway collapses them into one order.
const idempotencyHeader = "Idempotency-Key"

// Client talks to the gateway's REST API with basic auth.
type Client struct {
	http     *retryablehttp.Client
	baseURL  string
	keyID    string
	secret   string
	verifier Verifier
	logg     *logger.Logger
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport client. Tests use this to
// stub the gateway.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http.HTTPClient = hc
		}
	}
}

// WithRetryWait overrides the backoff bounds between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

func NewClient(cfg config.GatewayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if cfg.KeyID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("gateway credentials are required")
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		http:     rc,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		keyID:    cfg.KeyID,
		secret:   cfg.Secret,
		verifier: NewVerifier(cfg.Secret, cfg.WebhookSecret),
		logg:     logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http.HTTPClient.Timeout == 0 {
		c.http.HTTPClient.Timeout = cfg.Timeout
	}
	return c, nil
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type paymentsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
		Status  string `json:"status"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent opens a gateway order for reference. The request is retried on
// transport and 5xx failures under the same idempotency key.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency, reference string) (*Intent, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent reference is required")
	}

	body := createOrderRequest{
		Amount:   amount,
		Currency: strings.ToUpper(currency),
		Receipt:  reference,
		Notes:    map[string]string{"display_amount": money.Format(amount)},
	}
	var resp orderResponse
	headers := http.Header{idempotencyHeader: []string{reference}}
	if err := c.do(ctx, http.MethodPost, "/v1/orders", headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned an intent without id")
	}
	created := time.Now().UTC()
	if resp.CreatedAt > 0 {
		created = time.Unix(resp.CreatedAt, 0).UTC()
	}
	return &Intent{
		ID:        resp.ID,
		Amount:    resp.Amount,
		Currency:  resp.Currency,
		Reference: resp.Receipt,
		Status:    resp.Status,
		CreatedAt: created,
	}, nil
}

func (c *Client) VerifyCallback(intentID, paymentID, signature string) bool {
	return c.verifier.VerifyCallback(intentID, paymentID, signature)
}

// FetchStatus collapses the intent's payment attempts: any capture wins,
// then any in-flight attempt, otherwise failed. No attempts is pending.
func (c *Client) FetchStatus(ctx context.Context, intentID string) (*State, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id is required")
	}
	var resp paymentsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(intentID)+"/payments", nil, nil, &resp); err != nil {
		return nil, err
	}

	state := &State{IntentID: intentID, Status: StatusPending}
	sawPending := len(resp.Items) == 0
	for _, item := range resp.Items {
		switch item.Status {
		case "captured":
			return &State{IntentID: intentID, PaymentID: item.ID, Amount: item.Amount, Status: StatusCaptured}, nil
		case "failed":
		default:
			sawPending = true
		}
	}
	if !sawPending {
		state.Status = StatusFailed
	}
	return state, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, in, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		payload = bytes.NewReader(raw)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}
	if resp.StatusCode >= 300 {
		var gwErr errorResponse
		_ = json.Unmarshal(raw, &gwErr)
		msg := strings.TrimSpace(gwErr.Error.Description)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusBadRequest {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Newf(code, "payment gateway %s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}
