package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/fitsuite/licensehub/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	topicPayment       = "payment"
	topicMerchantOrder = "merchant_order"
)

var merchantOrderPath = regexp.MustCompile(`merchant_orders/(\d+)`)

// Notification is an inbound provider callback as received over HTTP.
type Notification struct {
	Query   url.Values
	Body    []byte
	Headers http.Header
}

type payload struct {
	ID       json.RawMessage `json:"id"`
	Type     string          `json:"type"`
	Topic    string          `json:"topic"`
	Action   string          `json:"action"`
	Resource string          `json:"resource"`
	Data     struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Provider  domain.Provider
	Processor *service.Processor
}

type Service struct {
	log       *zap.Logger
	secret    string
	provider  domain.Provider
	processor *service.Processor
}

func NewService(p Params) *Service {
	return &Service{
		log:       p.Log.Named("payment.webhook"),
		secret:    p.Cfg.MercadoPago.WebhookSecret,
		provider:  p.Provider,
		processor: p.Processor,
	}
}

// Ingest verifies and resolves a notification to a payment id, then runs the
// processor on it.
func (s *Service) Ingest(ctx context.Context, n Notification) (domain.Outcome, error) {
	var body payload
	if len(bytes.TrimSpace(n.Body)) > 0 {
		if err := json.Unmarshal(n.Body, &body); err != nil {
			return domain.Outcome{}, domain.ErrInvalidPayload
		}
	}

	dataID := firstNonEmpty(n.Query.Get("data.id"), rawID(body.Data.ID))
	if s.secret != "" {
		if err := Verify(s.secret, n.Headers, dataID); err != nil {
			return domain.Outcome{}, err
		}
	}

	paymentID, err := s.resolve(ctx, n.Query, body, dataID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if paymentID == "" {
		return domain.Outcome{Status: domain.OutcomeIgnored}, nil
	}
	return s.processor.Process(ctx, paymentID)
}

func (s *Service) resolve(ctx context.Context, query url.Values, body payload, dataID string) (string, error) {
	topic := strings.ToLower(firstNonEmpty(query.Get("topic"), query.Get("type"), body.Topic, body.Type))
	resource := firstNonEmpty(query.Get("resource"), body.Resource)

	if topic == topicMerchantOrder || merchantOrderPath.MatchString(resource) {
		orderID := dataID
		if m := merchantOrderPath.FindStringSubmatch(resource); len(m) == 2 {
			orderID = m[1]
		}
		if orderID == "" {
			orderID = firstNonEmpty(query.Get("id"), rawID(body.ID))
		}
		if orderID == "" {
			return "", domain.ErrMissingParameters
		}
		order, err := s.provider.GetMerchantOrder(ctx, orderID)
		if err != nil {
			return "", err
		}
		paymentID, ok := order.PaymentForNotification()
		if !ok {
			s.log.Info("merchant order has no payments yet", zap.String("merchant_order_id", orderID))
			return "", nil
		}
		return paymentID, nil
	}

	if topic != "" && topic != topicPayment {
		s.log.Debug("ignoring notification topic", zap.String("topic", topic))
		return "", nil
	}

	paymentID := firstNonEmpty(dataID, query.Get("id"), rawID(body.ID))
	if paymentID == "" && isDigits(resource) {
		paymentID = resource
	}
	if paymentID == "" {
		return "", domain.ErrMissingParameters
	}
	return paymentID, nil
}

// Verify checks an x-signature header of the form "ts=...,v1=..." against the
// manifest "id:{data.id};request-id:{x-request-id};ts:{ts};". Parts with no
// value are left out of the manifest.
func Verify(secret string, headers http.Header, dataID string) error {
	ts, signatures, err := parseSignature(headers.Get("x-signature"))
	if err != nil {
		return domain.ErrInvalidSignature
	}

	expected := Sign(secret, Manifest(dataID, headers.Get("x-request-id"), ts))
	for _, sig := range signatures {
		if hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

func Manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		// alphanumeric ids are signed lowercased
		fmt.Fprintf(&b, "id:%s;", strings.ToLower(dataID))
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		fmt.Fprintf(&b, "request-id:%s;", requestID)
	}
	fmt.Fprintf(&b, "ts:%s;", ts)
	return b.String()
}

func Sign(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignature(header string) (string, []string, error) {
	var ts string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	if ts == "" || len(signatures) == 0 {
		return "", nil, domain.ErrInvalidSignature
	}
	return ts, signatures, nil
}

// rawID accepts both quoted and bare numeric ids.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
