package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/model"
)

// WaitlistAPI is the slice of the waitlist service the HTTP layer uses.
type WaitlistAPI interface {
	Join(ctx context.Context, eventID, userID uint64) (*model.WaitlistEntry, error)
	Leave(ctx context.Context, eventID, userID uint64) error
	List(ctx context.Context, eventID uint64, limit, offset int) ([]model.WaitlistEntry, error)
}

// WaitlistHandler exposes FIFO waitlist membership plus an admin view.
type WaitlistHandler struct {
	Waitlist WaitlistAPI
}

// NewWaitlistHandler constructs a WaitlistHandler.
func NewWaitlistHandler(waitlist WaitlistAPI) *WaitlistHandler {
	if waitlist == nil {
		panic("nil waitlist service passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Waitlist: waitlist}
}

// Join handles POST /v1/events/:id/waitlist.
func (h *WaitlistHandler) Join(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	entry, err := h.Waitlist.Join(c.Request().Context(), eventID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// Leave handles DELETE /v1/events/:id/waitlist. Leaving a list the
// caller never joined is a no-op.
func (h *WaitlistHandler) Leave(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	if err := h.Waitlist.Leave(c.Request().Context(), eventID, userID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListForEvent handles GET /v1/admin/events/:id/waitlist, returning
// entries in promotion order.
func (h *WaitlistHandler) ListForEvent(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	limit, offset := pageParams(c)
	entries, err := h.Waitlist.List(c.Request().Context(), eventID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": entries})
}
