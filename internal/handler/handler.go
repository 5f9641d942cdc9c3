// Package handler exposes the sync engine's operations and read accessors
// over HTTP with gin.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/njoerd114/roomsync/internal/model"
	syncp "github.com/njoerd114/roomsync/internal/sync"
)

// Engine is the subset of [syncp.Engine] the HTTP layer calls.
type Engine interface {
	Snapshot() syncp.State
	Rooms(filter model.RoomFilter) []model.Room
	Room(id int64) (model.Room, bool)
	Reservation(id string) (model.Reservation, bool)
	ReservationsForRoom(roomID int64) []model.Reservation
	ActiveReservationForRoom(roomID int64) (model.Reservation, bool)

	ProvisionRooms(ctx context.Context, rooms []model.Room) syncp.Result
	UpdateRoomStatus(ctx context.Context, roomID int64, status model.RoomStatus) syncp.Result
	CheckInGuest(ctx context.Context, roomID int64, guest model.GuestDetails) syncp.Result
	CheckOutGuest(ctx context.Context, roomID int64) syncp.Result
	CreateReservation(ctx context.Context, roomID int64, details model.GuestDetails) syncp.Result
	CancelReservation(ctx context.Context, reservationID string) syncp.Result
	UpdatePaymentStatus(ctx context.Context, reservationID string, status model.PaymentStatus) syncp.Result
	UpdateRevenueStats(ctx context.Context, cents int64, reset bool) syncp.Result
	ResyncRevenue(ctx context.Context) syncp.Result
	RefreshData(ctx context.Context) syncp.Result
}

// Handler serves the front-desk API.
type Handler struct {
	engine Engine
	log    *slog.Logger
}

// New creates a Handler.
func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, log: logger}
}

// NewRouter returns a gin engine with recovery, request logging and every
// route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

// RegisterRoutes registers all routes on r.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/status", h.GetStatus)
	r.POST("/refresh", h.Refresh)

	rooms := r.Group("/rooms")
	{
		rooms.GET("", h.ListRooms)
		rooms.POST("", h.ProvisionRooms)
		rooms.GET("/:id", h.GetRoom)
		rooms.PUT("/:id/status", h.UpdateRoomStatus)
		rooms.POST("/:id/check-in", h.CheckIn)
		rooms.POST("/:id/check-out", h.CheckOut)
		rooms.GET("/:id/reservations", h.ListRoomReservations)
		rooms.POST("/:id/reservations", h.CreateReservation)
		rooms.GET("/:id/active-reservation", h.GetActiveReservation)
	}

	reservations := r.Group("/reservations")
	{
		reservations.GET("/:id", h.GetReservation)
		reservations.POST("/:id/cancel", h.CancelReservation)
		reservations.PUT("/:id/payment", h.UpdatePaymentStatus)
	}

	revenue := r.Group("/revenue")
	{
		revenue.GET("", h.GetRevenue)
		revenue.POST("", h.UpdateRevenue)
		revenue.POST("/resync", h.ResyncRevenue)
	}
}

// requestLogger logs one line per request at Debug, or Warn for 5xx.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= 500 {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// GetStatus handles GET /api/v1/status.
func (h *Handler) GetStatus(c *gin.Context) {
	s := h.engine.Snapshot()
	success(c, gin.H{
		"mode":          s.Mode,
		"loading":       s.Loading,
		"last_error":    s.LastError,
		"revenue_cents": s.RevenueCents,
		"rooms":         len(s.Rooms),
		"reservations":  len(s.Reservations),
		"version":       s.Version,
	})
}

// Refresh handles POST /api/v1/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	h.writeResult(c, h.engine.RefreshData(c.Request.Context()))
}
