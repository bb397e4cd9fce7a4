package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/service"
)

// SeatHandler covers the per-seat flow: listing a map, placing
// time-limited holds, confirming them into a booking and releasing
// them early. It shares the booking coordinator with BookingHandler.
type SeatHandler struct {
	Bookings BookingAPI
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(bookings BookingAPI) *SeatHandler {
	if bookings == nil {
		panic("nil booking service passed to NewSeatHandler")
	}
	return &SeatHandler{Bookings: bookings}
}

// List handles GET /v1/events/:id/seats. Expired holds are reported
// as available even before the sweeper reclaims them.
func (h *SeatHandler) List(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	seats, err := h.Bookings.ListSeats(c.Request().Context(), eventID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seats})
}

// Hold handles POST /v1/events/:id/seats/hold. The body carries
// {"seat_ids": [...], "hold_seconds": n}; hold_seconds is optional and
// clamped to the server default when omitted or non-positive.
func (h *SeatHandler) Hold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	var body struct {
		SeatIDs     []uint64 `json:"seat_ids"`
		HoldSeconds int      `json:"hold_seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if len(body.SeatIDs) == 0 {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "seat_ids must not be empty")
	}
	held, heldUntil, err := h.Bookings.HoldSeats(c.Request().Context(), eventID, body.SeatIDs, userID, body.HoldSeconds)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"seat_ids":   held,
		"held_until": heldUntil,
	})
}

// Confirm handles POST /v1/events/:id/seats/confirm. It turns the
// caller's live holds on the listed seats into a confirmed booking.
func (h *SeatHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	var body struct {
		SeatIDs []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if len(body.SeatIDs) == 0 {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "seat_ids must not be empty")
	}
	booking, err := h.Bookings.CreateBooking(c.Request().Context(), service.CreateBookingRequest{
		UserID:         userID,
		EventID:        eventID,
		SeatIDs:        body.SeatIDs,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, booking)
}

// Release handles POST /v1/events/:id/seats/release, dropping all of
// the caller's live holds for the event.
func (h *SeatHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	released, err := h.Bookings.ReleaseHolds(c.Request().Context(), eventID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}
