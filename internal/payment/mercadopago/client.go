// Package mercadopago is the REST client for the Mercado Pago checkout API.
package mercadopago

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

	"github.com/cenkalti/backoff/v5"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://api.mercadopago.com"
	defaultCurrency = "ARS"
	maxBodyBytes    = 1 << 20
)

type Client struct {
	baseURL     string
	accessToken string
	maxTries    uint
	http        *http.Client
	log         *zap.Logger
	newBackOff  func() backoff.BackOff
}

func NewClient(cfg config.Config, log *zap.Logger) domain.Provider {
	return newClient(cfg.MercadoPago, &http.Client{
		Timeout:   timeoutOrDefault(cfg.MercadoPago.Timeout),
		Transport: tracingTransport{next: http.DefaultTransport},
	}, log)
}

func newClient(cfg config.MercadoPagoConfig, httpClient *http.Client, log *zap.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	tries := cfg.MaxRetries
	if tries <= 0 {
		tries = 1
	}
	return &Client{
		baseURL:     base,
		accessToken: cfg.AccessToken,
		maxTries:    uint(tries),
		http:        httpClient,
		log:         log.Named("payment.mercadopago"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (domain.ProviderPayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.ProviderPayment{}, domain.ErrInvalidPaymentID
	}

	var body paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &body); err != nil {
		return domain.ProviderPayment{}, err
	}
	return body.toDomain()
}

func (c *Client) GetMerchantOrder(ctx context.Context, orderID string) (domain.MerchantOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.MerchantOrder{}, domain.ErrInvalidPaymentID
	}

	var body merchantOrderResponse
	if err := c.do(ctx, http.MethodGet, "/merchant_orders/"+url.PathEscape(orderID), nil, &body); err != nil {
		return domain.MerchantOrder{}, err
	}

	out := domain.MerchantOrder{ID: body.ID.String(), PreferenceID: body.PreferenceID}
	for _, p := range body.Payments {
		out.Payments = append(out.Payments, domain.MerchantOrderPayment{ID: p.ID.String(), Status: p.Status})
	}
	return out, nil
}

func (c *Client) CreatePreference(ctx context.Context, req domain.PreferenceRequest) (domain.Preference, error) {
	currency := req.CurrencyID
	if currency == "" {
		currency = defaultCurrency
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	payload := preferenceRequest{
		Items: []preferenceItem{{
			Title:       req.Title,
			Description: req.Description,
			UnitPrice:   centsToDecimal(req.UnitPriceCents).InexactFloat64(),
			Quantity:    quantity,
			CurrencyID:  currency,
		}},
		StatementDescriptor: req.StatementDescriptor,
		ExternalReference:   req.ExternalReference,
		NotificationURL:     req.NotificationURL,
		BackURLs: backURLs{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		},
		AutoReturn: req.AutoReturn,
	}
	if req.CouponCode != "" {
		payload.CouponCode = req.CouponCode
		amount := centsToDecimal(req.CouponAmountCents).InexactFloat64()
		payload.CouponAmount = &amount
	}

	var body preferenceResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", payload, &body); err != nil {
		return domain.Preference{}, err
	}
	return domain.Preference{
		ID:               body.ID,
		InitPoint:        body.InitPoint,
		SandboxInitPoint: body.SandboxInitPoint,
	}, nil
}

// do retries transport failures, 429 and 5xx. Other 4xx are final.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return struct{}{}, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		c.log.Warn("mercadopago request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return struct{}{}, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, path)
		}
		if !statusErr.Retryable() {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(raw), 256)}
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
	}
	return nil
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mercadopago status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
