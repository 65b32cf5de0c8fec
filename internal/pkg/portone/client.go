package portone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minsukang/gazette/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.portone.io"

// Currency for all charges. The shop bills in Korean won only.
const Currency = "KRW"

// ErrMissingSecret is returned when PORTONE_API_SECRET is not configured.
// Callers surface it as a server configuration error, not a client error.
var ErrMissingSecret = errors.New("PORTONE_API_SECRET is not configured")

// APIError carries the provider's HTTP status and message so load-bearing
// calls can propagate them to the caller verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portone request failed: status=%d message=%s", e.StatusCode, e.Message)
}

// API is the part of the PortOne v2 REST surface this application uses.
type API interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	PayWithBillingKey(ctx context.Context, paymentID string, in BillingKeyPayment) (json.RawMessage, error)
	SchedulePayment(ctx context.Context, scheduleID string, in SchedulePayment) error
	ListSchedules(ctx context.Context, billingKey string, from, until time.Time) ([]Schedule, error)
	CancelSchedules(ctx context.Context, scheduleIDs []string) error
	CancelPayment(ctx context.Context, paymentID, reason string) error
}

type Client struct {
	APISecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

var _ API = (*Client)(nil)

type Amount struct {
	Total int64 `json:"total"`
}

type Customer struct {
	ID string `json:"id"`
}

// Payment is the authoritative payment state as reported by the provider.
type Payment struct {
	ID         string   `json:"id"`
	OrderName  string   `json:"orderName"`
	BillingKey string   `json:"billingKey"`
	Customer   Customer `json:"customer"`
	Amount     Amount   `json:"amount"`
}

// BillingKeyPayment is the request body for charging a stored billing key.
type BillingKeyPayment struct {
	BillingKey string   `json:"billingKey"`
	OrderName  string   `json:"orderName"`
	Amount     Amount   `json:"amount"`
	Customer   Customer `json:"customer"`
	Currency   string   `json:"currency"`
}

// SchedulePayment is the request body for registering a future charge.
type SchedulePayment struct {
	BillingKey string
	OrderName  string
	CustomerID string
	Total      int64
	TimeToPay  time.Time
}

// Schedule is one entry of the provider's pending payment schedule list.
type Schedule struct {
	ID        string `json:"id"`
	PaymentID string `json:"paymentId"`
}

func NewClientFromEnv() *Client {
	return &Client{
		APISecret:  strings.TrimSpace(env.GetEnv("PORTONE_API_SECRET", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("PORTONE_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}

	var out Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		out.ID = paymentID
	}
	return &out, nil
}

func (c *Client) PayWithBillingKey(ctx context.Context, paymentID string, in BillingKeyPayment) (json.RawMessage, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}
	if in.Currency == "" {
		in.Currency = Currency
	}

	return c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/billing-key", in)
}

func (c *Client) SchedulePayment(ctx context.Context, scheduleID string, in SchedulePayment) error {
	if strings.TrimSpace(scheduleID) == "" {
		return errors.New("schedule payment id is required")
	}

	payload := map[string]interface{}{
		"payment": map[string]interface{}{
			"billingKey": in.BillingKey,
			"orderName":  in.OrderName,
			"customer":   Customer{ID: in.CustomerID},
			"amount":     Amount{Total: in.Total},
			"currency":   Currency,
		},
		"timeToPay": in.TimeToPay.Format(time.RFC3339),
	}

	_, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(scheduleID)+"/schedule", payload)
	return err
}

// ListSchedules queries pending payment schedules for a billing key within
// the given time window. The provider expects the filter in a GET request
// body.
func (c *Client) ListSchedules(ctx context.Context, billingKey string, from, until time.Time) ([]Schedule, error) {
	if strings.TrimSpace(billingKey) == "" {
		return nil, errors.New("billing key is required")
	}

	payload := map[string]interface{}{
		"filter": map[string]interface{}{
			"billingKey": billingKey,
			"from":       from.Format(time.RFC3339),
			"until":      until.Format(time.RFC3339),
		},
	}

	body, err := c.do(ctx, http.MethodGet, "/payment-schedules", payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []Schedule `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) CancelSchedules(ctx context.Context, scheduleIDs []string) error {
	if len(scheduleIDs) == 0 {
		return errors.New("at least one schedule id is required")
	}

	payload := map[string]interface{}{
		"scheduleIds": scheduleIDs,
	}
	_, err := c.do(ctx, http.MethodDelete, "/payment-schedules", payload)
	return err
}

func (c *Client) CancelPayment(ctx context.Context, paymentID, reason string) error {
	if strings.TrimSpace(paymentID) == "" {
		return errors.New("payment id is required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "no reason given"
	}

	payload := map[string]interface{}{
		"reason": reason,
	}
	_, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/cancel", payload)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	if strings.TrimSpace(c.APISecret) == "" {
		return nil, ErrMissingSecret
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "PortOne "+c.APISecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.StatusCode),
		}
	}
	return body, nil
}

func errorMessage(body []byte, status int) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Message) != "" {
		return parsed.Message
	}
	if len(body) > 0 {
		return strings.TrimSpace(string(body))
	}
	return http.StatusText(status)
}
