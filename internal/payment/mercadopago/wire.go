package mercadopago

import (
	"strings"
	"time"

	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/shopspring/decimal"
)

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexID(strings.Trim(s, `"`))
	return nil
}

func (f flexID) String() string { return string(f) }

type paymentResponse struct {
	ID                flexID          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	ExternalReference string          `json:"external_reference"`
	PaymentTypeID     string          `json:"payment_type_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	DateApproved      string          `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	Order struct {
		ID   flexID `json:"id"`
		Type string `json:"type"`
	} `json:"order"`
}

func (p paymentResponse) toDomain() (domain.ProviderPayment, error) {
	out := domain.ProviderPayment{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		AmountCents:       p.TransactionAmount.Shift(2).Round(0).IntPart(),
		Currency:          p.CurrencyID,
		ExternalReference: p.ExternalReference,
		PaymentTypeID:     p.PaymentTypeID,
		PaymentMethodID:   p.PaymentMethodID,
		PayerEmail:        p.Payer.Email,
		MerchantOrderID:   p.Order.ID.String(),
	}
	if p.DateApproved != "" {
		if t, err := time.Parse(time.RFC3339Nano, p.DateApproved); err == nil {
			utc := t.UTC()
			out.ApprovedAt = &utc
		}
	}
	return out, nil
}

type merchantOrderResponse struct {
	ID           flexID `json:"id"`
	PreferenceID string `json:"preference_id"`
	Payments     []struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
	} `json:"payments"`
}

type preferenceItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	CurrencyID  string  `json:"currency_id"`
}

type backURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type preferenceRequest struct {
	Items               []preferenceItem `json:"items"`
	CouponCode          string           `json:"coupon_code,omitempty"`
	CouponAmount        *float64         `json:"coupon_amount,omitempty"`
	StatementDescriptor string           `json:"statement_descriptor,omitempty"`
	ExternalReference   string           `json:"external_reference"`
	NotificationURL     string           `json:"notification_url,omitempty"`
	BackURLs            backURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}
