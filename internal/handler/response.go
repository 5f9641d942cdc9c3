package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/njoerd114/roomsync/internal/model"
	syncp "github.com/njoerd114/roomsync/internal/sync"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// resultBody is the JSON form of a write result.
type resultBody struct {
	Outcome       string `json:"outcome"`
	Warning       bool   `json:"warning,omitempty"`
	Error         string `json:"error,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
	Mode          string `json:"mode"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, envelope{Error: msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, envelope{Error: msg})
}

// writeResult maps a write result to a response. Local-only writes still
// succeed; the body carries the outcome and warning.
func (h *Handler) writeResult(c *gin.Context, res syncp.Result) {
	body := resultBody{
		Outcome:       res.Outcome.String(),
		Warning:       res.Warning,
		ReservationID: res.ReservationID,
		Mode:          string(h.engine.Snapshot().Mode),
	}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}

	if res.Success() {
		c.JSON(http.StatusOK, envelope{Success: true, Data: body})
		return
	}
	c.JSON(rejectStatus(res.Err), envelope{Data: body, Error: body.Error})
}

func rejectStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncp.ErrAlreadyProvisioned):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
