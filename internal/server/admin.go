package server

import (
	"net/http"
	"strings"

	"github.com/fitsuite/licensehub/internal/notification"
	orderdomain "github.com/fitsuite/licensehub/internal/order/domain"
	"github.com/fitsuite/licensehub/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type settleOrderRequest struct {
	PaymentID string `json:"payment_id"`
	Medium    string `json:"medium"`
	Method    string `json:"method"`
}

type redeemRequest struct {
	Cost   int64  `json:"cost"`
	Reason string `json:"reason"`
}

type registerClaimRequest struct {
	BuyerTenantID string `json:"buyer_tenant_id"`
	Code          string `json:"code"`
}

// SettleOrder marks a store order paid outside the webhook flow (cash sales).
func (s *Server) SettleOrder(c *gin.Context) {
	var req settleOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.orders.Settle(c.Request.Context(), orderdomain.SettleRequest{
		TenantID:  strings.TrimSpace(c.Param("tenant_id")),
		OrderID:   strings.TrimSpace(c.Param("order_id")),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Medium:    strings.TrimSpace(req.Medium),
		Method:    strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetReferralConfig(c *gin.Context) {
	cfg, err := s.referrals.GetConfig(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

func (s *Server) RedeemReferralPoints(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	redemption, err := s.referrals.Redeem(c.Request.Context(), c.Param("tenant_id"), req.Cost, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": redemption})
}

// RegisterReferralClaim records that buyer_tenant_id signed up with the
// referrer's code. The first claim wins; repeats return the stored claim.
func (s *Server) RegisterReferralClaim(c *gin.Context) {
	var req registerClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, created, err := s.referrals.RegisterClaim(c.Request.Context(), req.BuyerTenantID, c.Param("tenant_id"), req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": claim})
}

func (s *Server) GetLicense(c *gin.Context) {
	license, err := s.licenses.Get(c.Request.Context(), s.db, c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if license == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": license})
}

func (s *Server) GetDailyRevenue(c *gin.Context) {
	period, err := s.books.Day(c.Request.Context(), c.Param("tenant_id"), c.Param("day"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": period})
}

func (s *Server) GetMonthlyRevenue(c *gin.Context) {
	period, err := s.books.Month(c.Request.Context(), c.Param("tenant_id"), c.Param("month"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": period})
}

func (s *Server) ListInbox(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items, info, err := notification.ListInbox(c.Request.Context(), s.db, c.Param("tenant_id"), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func (s *Server) MarkInboxRead(c *gin.Context) {
	if err := notification.MarkRead(c.Request.Context(), s.db, c.Param("tenant_id"), c.Param("message_id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
