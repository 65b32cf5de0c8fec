package portone

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := &Client{
		APISecret:  "test-secret",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}
	return client, server
}

func TestGetPaymentSendsAuthorizationHeader(t *testing.T) {
	var gotAuth, gotPath string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"pay_1","orderName":"monthly issue","billingKey":"bk_1","customer":{"id":"42"},"amount":{"total":9900}}`))
	})
	defer server.Close()

	payment, err := client.GetPayment(context.Background(), "pay_1")

	require.NoError(t, err)
	assert.Equal(t, "PortOne test-secret", gotAuth)
	assert.Equal(t, "/payments/pay_1", gotPath)
	assert.Equal(t, "pay_1", payment.ID)
	assert.Equal(t, "bk_1", payment.BillingKey)
	assert.Equal(t, "42", payment.Customer.ID)
	assert.Equal(t, int64(9900), payment.Amount.Total)
}

func TestGetPaymentFillsMissingID(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount":{"total":100}}`))
	})
	defer server.Close()

	payment, err := client.GetPayment(context.Background(), "pay_9")

	require.NoError(t, err)
	assert.Equal(t, "pay_9", payment.ID)
}

func TestGetPaymentPropagatesProviderError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"PAYMENT_NOT_FOUND","message":"no such payment"}`))
	})
	defer server.Close()

	_, err := client.GetPayment(context.Background(), "pay_gone")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such payment", apiErr.Message)
}

func TestGetPaymentErrorWithoutMessageFallsBackToStatusText(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.GetPayment(context.Background(), "pay_1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestMissingSecretFailsWithoutRequest(t *testing.T) {
	called := false
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	defer server.Close()
	client.APISecret = ""

	_, err := client.GetPayment(context.Background(), "pay_1")

	assert.ErrorIs(t, err, ErrMissingSecret)
	assert.False(t, called)
}

func TestPayWithBillingKeyDefaultsCurrency(t *testing.T) {
	var gotBody map[string]interface{}
	var gotPath string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"payment":{}}`))
	})
	defer server.Close()

	_, err := client.PayWithBillingKey(context.Background(), "pay_1", BillingKeyPayment{
		BillingKey: "bk_1",
		OrderName:  "monthly issue",
		Amount:     Amount{Total: 9900},
		Customer:   Customer{ID: "42"},
	})

	require.NoError(t, err)
	assert.Equal(t, "/payments/pay_1/billing-key", gotPath)
	assert.Equal(t, "bk_1", gotBody["billingKey"])
	assert.Equal(t, Currency, gotBody["currency"])
}

func TestSchedulePaymentBody(t *testing.T) {
	timeToPay := time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)
	var gotBody struct {
		Payment struct {
			BillingKey string   `json:"billingKey"`
			OrderName  string   `json:"orderName"`
			Customer   Customer `json:"customer"`
			Amount     Amount   `json:"amount"`
			Currency   string   `json:"currency"`
		} `json:"payment"`
		TimeToPay string `json:"timeToPay"`
	}
	var gotPath string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{}`))
	})
	defer server.Close()

	err := client.SchedulePayment(context.Background(), "sched_1", SchedulePayment{
		BillingKey: "bk_1",
		OrderName:  "monthly issue",
		CustomerID: "42",
		Total:      9900,
		TimeToPay:  timeToPay,
	})

	require.NoError(t, err)
	assert.Equal(t, "/payments/sched_1/schedule", gotPath)
	assert.Equal(t, "bk_1", gotBody.Payment.BillingKey)
	assert.Equal(t, "42", gotBody.Payment.Customer.ID)
	assert.Equal(t, int64(9900), gotBody.Payment.Amount.Total)
	assert.Equal(t, Currency, gotBody.Payment.Currency)
	assert.Equal(t, timeToPay.Format(time.RFC3339), gotBody.TimeToPay)
}

func TestListSchedulesFilterAndParse(t *testing.T) {
	from := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 0, 2)
	var gotMethod string
	var gotBody struct {
		Filter struct {
			BillingKey string `json:"billingKey"`
			From       string `json:"from"`
			Until      string `json:"until"`
		} `json:"filter"`
	}
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"items":[{"id":"sched_1","paymentId":"next_1"},{"id":"sched_2","paymentId":"next_2"}]}`))
	})
	defer server.Close()

	items, err := client.ListSchedules(context.Background(), "bk_1", from, until)

	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "bk_1", gotBody.Filter.BillingKey)
	assert.Equal(t, from.Format(time.RFC3339), gotBody.Filter.From)
	assert.Equal(t, until.Format(time.RFC3339), gotBody.Filter.Until)
	require.Len(t, items, 2)
	assert.Equal(t, "sched_1", items[0].ID)
	assert.Equal(t, "next_1", items[0].PaymentID)
}

func TestCancelSchedulesSendsIDs(t *testing.T) {
	var gotMethod string
	var gotBody struct {
		ScheduleIDs []string `json:"scheduleIds"`
	}
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{}`))
	})
	defer server.Close()

	err := client.CancelSchedules(context.Background(), []string{"sched_1", "sched_2"})

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, []string{"sched_1", "sched_2"}, gotBody.ScheduleIDs)
}

func TestCancelSchedulesRequiresIDs(t *testing.T) {
	client := &Client{APISecret: "s", APIBaseURL: "http://unused", HTTPClient: http.DefaultClient}

	err := client.CancelSchedules(context.Background(), nil)

	assert.Error(t, err)
}

func TestCancelPaymentDefaultsReason(t *testing.T) {
	var gotBody struct {
		Reason string `json:"reason"`
	}
	var gotPath string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{}`))
	})
	defer server.Close()

	err := client.CancelPayment(context.Background(), "pay_1", "")

	require.NoError(t, err)
	assert.Equal(t, "/payments/pay_1/cancel", gotPath)
	assert.Equal(t, "no reason given", gotBody.Reason)
}
