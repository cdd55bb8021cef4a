package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := newClient(config.MercadoPagoConfig{
		BaseURL:     srv.URL,
		AccessToken: "TEST-token",
		MaxRetries:  3,
	}, srv.Client(), zap.NewNop())
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestGetPaymentDecodesProviderShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/123", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": 123,
			"status": "approved",
			"transaction_amount": 15999.99,
			"currency_id": "ARS",
			"external_reference": "gym:gym-1|plan:basic|ref:|disc:0",
			"payment_type_id": "credit_card",
			"date_approved": "2024-05-10T09:00:00.000-04:00",
			"payer": {"email": "owner@example.com"},
			"order": {"id": 987654, "type": "mercadopago"}
		}`))
	})

	p, err := c.GetPayment(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", p.ID)
	assert.True(t, p.Approved())
	assert.Equal(t, int64(1599999), p.AmountCents)
	assert.Equal(t, "987654", p.MerchantOrderID)
	assert.Equal(t, "credit_card", p.PaymentTypeID)
	require.NotNil(t, p.ApprovedAt)
	assert.Equal(t, 13, p.ApprovedAt.Hour())
}

func TestGetPaymentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"55","status":"pending"}`))
	})

	p, err := c.GetPayment(context.Background(), "55")
	require.NoError(t, err)
	assert.Equal(t, "pending", p.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetPaymentExhaustedRetriesAreProviderUnavailable(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetPayment(context.Background(), "55")
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable), "got %v", err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetPaymentClientErrorsAreFinal(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetPayment(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetMerchantOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merchant_orders/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":42,"preference_id":"pref-1","payments":[{"id":1,"status":"rejected"},{"id":2,"status":"approved"}]}`))
	})

	mo, err := c.GetMerchantOrder(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "pref-1", mo.PreferenceID)
	id, ok := mo.PaymentForNotification()
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestCreatePreferenceSendsAmountsAsNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		items := body["items"].([]any)
		item := items[0].(map[string]any)
		assert.Equal(t, 899.91, item["unit_price"])
		assert.Equal(t, "ARS", item["currency_id"])
		assert.Equal(t, "REFERIDOS_10", body["coupon_code"])
		assert.Equal(t, 99.99, body["coupon_amount"])
		assert.Equal(t, "approved", body["auto_return"])

		_, _ = w.Write([]byte(`{"id":"pref-9","init_point":"https://mp/checkout?pref=9","sandbox_init_point":"https://sandbox/checkout?pref=9"}`))
	})

	pref, err := c.CreatePreference(context.Background(), domain.PreferenceRequest{
		Title:             "Licencia Basic",
		UnitPriceCents:    89991,
		CouponCode:        "REFERIDOS_10",
		CouponAmountCents: 9999,
		ExternalReference: "gym:gym-1|plan:basic|ref:|disc:10",
		AutoReturn:        "approved",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-9", pref.ID)
	assert.Equal(t, "https://mp/checkout?pref=9", pref.InitPoint)
}
