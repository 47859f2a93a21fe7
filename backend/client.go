// Package backend is the client of the bill REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"billpay/web/metrics"
	"billpay/web/models"
)

// DefaultBaseURL is the hosted bill backend.
const DefaultBaseURL = "https://billpay-server.vercel.app/api/v1"

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Config configures the backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Transport is wrapped with tracing; nil means http.DefaultTransport.
	Transport http.RoundTripper
	Metrics   *metrics.Metrics
}

// NewHTTPClient returns the request client every backend call goes through:
// fixed timeout, a cookie jar so credentials set by the backend are sent
// back, and a traced transport.
func NewHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// cookiejar.New only fails on a non-nil options value with a broken
	// public suffix list.
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: otelhttp.NewTransport(base),
	}
}

// Client calls the bill backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// New creates a Client for cfg.BaseURL, falling back to DefaultBaseURL.
func New(cfg Config) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}

	return &Client{
		baseURL:    trimmed,
		httpClient: NewHTTPClient(cfg),
		metrics:    cfg.Metrics,
	}
}

// BaseURL returns the address requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// ListBills returns the bills matching query (category, search).
func (c *Client) ListBills(ctx context.Context, query url.Values) ([]models.Bill, error) {
	path := "/bills"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var bills []models.Bill
	if err := c.do(ctx, "list_bills", http.MethodGet, path, nil, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// GetBill returns one bill. A missing bill is ErrNotFound.
func (c *Client) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	var bill *models.Bill
	if err := c.do(ctx, "get_bill", http.MethodGet, "/bills/"+url.PathEscape(id), nil, &bill); err != nil {
		return nil, err
	}
	if bill == nil || bill.ID == "" {
		return nil, fmt.Errorf("get_bill %s: %w", id, ErrNotFound)
	}
	return bill, nil
}

// ListPayments returns the payment records of email in storage order.
func (c *Client) ListPayments(ctx context.Context, email string) ([]models.PaymentRecord, error) {
	var payload models.PaymentRecordList
	if err := c.do(ctx, "list_payments", http.MethodGet, "/mybills/"+url.PathEscape(email), nil, &payload); err != nil {
		return nil, err
	}
	return payload.MyBills, nil
}

// CreatePayment stores a new payment record.
func (c *Client) CreatePayment(ctx context.Context, rec models.PaymentRecord) error {
	return c.do(ctx, "create_payment", http.MethodPost, "/mybills", rec, nil)
}

// UpdatePayment changes the mutable fields of a record and returns the
// number of records the backend modified.
func (c *Client) UpdatePayment(ctx context.Context, id string, upd models.PaymentUpdate) (int64, error) {
	var result models.UpdateResult
	if err := c.do(ctx, "update_payment", http.MethodPut, "/mybills/"+url.PathEscape(id), upd, &result); err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// DeletePayment removes a record. The count is whatever the backend reported;
// a 2xx answer without a body counts as success with zero.
func (c *Client) DeletePayment(ctx context.Context, id string) (int64, error) {
	var result models.DeleteResult
	if err := c.do(ctx, "delete_payment", http.MethodDelete, "/mybills/"+url.PathEscape(id), nil, &result); err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil && outcome == "ok" {
			outcome = "error"
		}
		c.metrics.ObserveBackend(op, outcome, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = strconv.Itoa(resp.StatusCode)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
