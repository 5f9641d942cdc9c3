package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/njoerd114/roomsync/internal/model"
)

type provisionRequest struct {
	Rooms []model.Room `json:"rooms"`
}

type roomStatusRequest struct {
	Status string `json:"status"`
}

// ListRooms handles GET /api/v1/rooms?status=&type=&min_capacity=.
func (h *Handler) ListRooms(c *gin.Context) {
	var filter model.RoomFilter
	if s := c.Query("status"); s != "" {
		status, err := model.ParseRoomStatus(s)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Status = status
	}
	if t := c.Query("type"); t != "" {
		filter.Type = model.RoomType(t)
		if !filter.Type.IsValid() {
			badRequest(c, "invalid room type")
			return
		}
	}
	if mc := c.Query("min_capacity"); mc != "" {
		n, err := strconv.Atoi(mc)
		if err != nil || n < 0 {
			badRequest(c, "invalid min_capacity")
			return
		}
		filter.MinCapacity = n
	}
	success(c, h.engine.Rooms(filter))
}

// ProvisionRooms handles POST /api/v1/rooms.
func (h *Handler) ProvisionRooms(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.writeResult(c, h.engine.ProvisionRooms(c.Request.Context(), req.Rooms))
}

// GetRoom handles GET /api/v1/rooms/:id.
func (h *Handler) GetRoom(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	room, found := h.engine.Room(id)
	if !found {
		notFound(c, "room not found")
		return
	}
	success(c, room)
}

// UpdateRoomStatus handles PUT /api/v1/rooms/:id/status.
func (h *Handler) UpdateRoomStatus(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req roomStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := model.ParseRoomStatus(req.Status)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.writeResult(c, h.engine.UpdateRoomStatus(c.Request.Context(), id, status))
}

// CheckIn handles POST /api/v1/rooms/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var guest model.GuestDetails
	if err := c.ShouldBindJSON(&guest); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.writeResult(c, h.engine.CheckInGuest(c.Request.Context(), id, guest))
}

// CheckOut handles POST /api/v1/rooms/:id/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	h.writeResult(c, h.engine.CheckOutGuest(c.Request.Context(), id))
}

// ListRoomReservations handles GET /api/v1/rooms/:id/reservations.
func (h *Handler) ListRoomReservations(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	success(c, h.engine.ReservationsForRoom(id))
}

// CreateReservation handles POST /api/v1/rooms/:id/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var details model.GuestDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.writeResult(c, h.engine.CreateReservation(c.Request.Context(), id, details))
}

// GetActiveReservation handles GET /api/v1/rooms/:id/active-reservation.
func (h *Handler) GetActiveReservation(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	r, found := h.engine.ActiveReservationForRoom(id)
	if !found {
		notFound(c, "no active reservation")
		return
	}
	success(c, r)
}

// roomID parses the :id path parameter, writing a 400 when it is invalid.
func roomID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid room ID")
		return 0, false
	}
	return id, true
}
