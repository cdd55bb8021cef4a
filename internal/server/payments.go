package server

import (
	"io"
	"net/http"
	"strings"

	paymentdomain "github.com/fitsuite/licensehub/internal/payment/domain"
	paymentservice "github.com/fitsuite/licensehub/internal/payment/service"
	"github.com/fitsuite/licensehub/internal/payment/webhook"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type createLinkQuery struct {
	TenantID   string `form:"tenant_id"`
	GymID      string `form:"gymId"`
	GimnasioID string `form:"gimnasioId"`
	PlanID     string `form:"plan_id"`
	PlanAlt    string `form:"planId"`
	Plan       string `form:"plan"`
	Ref        string `form:"ref"`
	Redirect   bool   `form:"redirect"`
	Format     string `form:"format"`
}

// CreatePaymentLink answers JSON by default and redirects to the checkout page
// when redirect=true is passed.
func (s *Server) CreatePaymentLink(c *gin.Context) {
	s.createPaymentLink(c, false)
}

// CreateLegacyPaymentLink serves the URL embedded in shipped desktop clients.
// It redirects to the checkout page unless format=json is passed.
func (s *Server) CreateLegacyPaymentLink(c *gin.Context) {
	s.createPaymentLink(c, true)
}

func (s *Server) createPaymentLink(c *gin.Context, redirectByDefault bool) {
	var q createLinkQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	link, err := s.links.Create(c.Request.Context(), paymentservice.LinkRequest{
		TenantID:     firstNonEmpty(q.TenantID, q.GymID, q.GimnasioID),
		PlanID:       firstNonEmpty(q.PlanID, q.PlanAlt, q.Plan),
		ReferralCode: strings.TrimSpace(q.Ref),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	redirect := q.Redirect
	if redirectByDefault {
		redirect = !strings.EqualFold(strings.TrimSpace(q.Format), "json")
	}
	if redirect && link.InitPoint != "" {
		c.Redirect(http.StatusFound, link.InitPoint)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": link})
}

// HandleWebhook acknowledges every delivery. The provider retries on non-2xx,
// and replays are already absorbed by the idempotency ledger.
func (s *Server) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.log.Warn("read webhook body", zap.Error(err))
	}

	outcome, err := s.webhooks.Ingest(c.Request.Context(), webhook.Notification{
		Query:   c.Request.URL.Query(),
		Body:    body,
		Headers: c.Request.Header,
	})
	if outcome.PaymentID != "" {
		c.Set("payment_id", outcome.PaymentID)
	}
	if err != nil {
		c.Set("payment_outcome", "error")
		s.log.Error("webhook processing failed",
			zap.String("payment_id", outcome.PaymentID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "error"})
		return
	}

	c.Set("payment_outcome", outcome.Status)
	c.JSON(http.StatusOK, gin.H{"received": true, "status": outcome.Status})
}

// PaymentReturn serves the provider's back URLs. The success page re-runs the
// processor so a buyer landing before the webhook still gets the license.
func (s *Server) PaymentReturn(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID := firstNonEmpty(c.Query("payment_id"), c.Query("collection_id"))
		resp := gin.H{
			"page":               page,
			"payment_id":         paymentID,
			"status":             c.Query("status"),
			"external_reference": c.Query("external_reference"),
		}

		if page != "success" || paymentID == "" {
			c.JSON(http.StatusOK, resp)
			return
		}

		c.Set("payment_id", paymentID)
		outcome, err := s.processor.Process(c.Request.Context(), paymentID)
		if err != nil {
			s.log.Warn("process on return page failed",
				zap.String("payment_id", paymentID),
				zap.Error(err),
			)
			resp["outcome"] = paymentdomain.Outcome{Status: "error", PaymentID: paymentID}
			c.JSON(http.StatusOK, resp)
			return
		}
		c.Set("payment_outcome", outcome.Status)
		resp["outcome"] = outcome
		c.JSON(http.StatusOK, resp)
	}
}

// ProcessPayment is the manual replay entry point.
func (s *Server) ProcessPayment(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Param("payment_id"))
	if paymentID == "" {
		AbortWithError(c, newValidationError("payment_id", "required", "payment_id is required"))
		return
	}

	c.Set("payment_id", paymentID)
	outcome, err := s.processor.Process(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("payment_outcome", outcome.Status)
	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
