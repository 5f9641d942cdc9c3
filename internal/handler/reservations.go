package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/njoerd114/roomsync/internal/model"
)

type paymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type revenueRequest struct {
	AmountCents int64 `json:"amount_cents"`
	Reset       bool  `json:"reset"`
}

// GetReservation handles GET /api/v1/reservations/:id.
func (h *Handler) GetReservation(c *gin.Context) {
	r, found := h.engine.Reservation(c.Param("id"))
	if !found {
		notFound(c, "reservation not found")
		return
	}
	success(c, r)
}

// CancelReservation handles POST /api/v1/reservations/:id/cancel.
func (h *Handler) CancelReservation(c *gin.Context) {
	h.writeResult(c, h.engine.CancelReservation(c.Request.Context(), c.Param("id")))
}

// UpdatePaymentStatus handles PUT /api/v1/reservations/:id/payment.
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := model.PaymentStatus(req.PaymentStatus)
	if !status.IsValid() {
		badRequest(c, "invalid payment status")
		return
	}
	h.writeResult(c, h.engine.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), status))
}

// GetRevenue handles GET /api/v1/revenue.
func (h *Handler) GetRevenue(c *gin.Context) {
	success(c, gin.H{"revenue_cents": h.engine.Snapshot().RevenueCents})
}

// UpdateRevenue handles POST /api/v1/revenue.
func (h *Handler) UpdateRevenue(c *gin.Context) {
	var req revenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.writeResult(c, h.engine.UpdateRevenueStats(c.Request.Context(), req.AmountCents, req.Reset))
}

// ResyncRevenue handles POST /api/v1/revenue/resync.
func (h *Handler) ResyncRevenue(c *gin.Context) {
	h.writeResult(c, h.engine.ResyncRevenue(c.Request.Context()))
}
