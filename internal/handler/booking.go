package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/service"
)

// BookingAPI is the slice of the booking coordinator the HTTP layer
// depends on; tests substitute a fake.
type BookingAPI interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, userID uint64, isAdmin bool) (*model.Booking, error)
	HoldSeats(ctx context.Context, eventID uint64, seatIDs []uint64, userID uint64, holdSeconds int) ([]uint64, time.Time, error)
	ReleaseHolds(ctx context.Context, eventID, userID uint64) (int, error)
	GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
	ListUserBookings(ctx context.Context, userID uint64, limit, offset int) ([]model.Booking, error)
	ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error)
}

// BookingHandler exposes booking creation, cancellation and the
// seat hold/confirm flow. The enqueuer backs the asynchronous intake
// path and may be nil when no broker is configured, in which case
// async requests are rejected.
type BookingHandler struct {
	Bookings BookingAPI
	Enqueuer service.BookingEnqueuer
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings BookingAPI, enqueuer service.BookingEnqueuer) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Enqueuer: enqueuer}
}

// Create handles POST /v1/events/:id/bookings. The body carries
// {"seats": n, "seat_ids": [...]} and the optional Idempotency-Key
// header scopes the request for safe client retries. With ?async=1 the
// request is enqueued and answered 202 with a job id; otherwise the
// booking runs synchronously and is returned with 201.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	var body struct {
		Seats   int      `json:"seats"`
		SeatIDs []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if body.Seats <= 0 && len(body.SeatIDs) == 0 {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "seats must be a positive integer")
	}

	req := service.CreateBookingRequest{
		UserID:         userID,
		EventID:        eventID,
		Seats:          body.Seats,
		SeatIDs:        body.SeatIDs,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	}

	if isTruthy(c.QueryParam("async")) {
		if h.Enqueuer == nil {
			return jsonError(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "asynchronous booking is not available")
		}
		jobID, err := h.Enqueuer.EnqueueBooking(c.Request().Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusAccepted, echo.Map{"job_id": jobID})
	}

	booking, err := h.Bookings.CreateBooking(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, booking)
}

// Cancel handles POST /v1/bookings/:id/cancel. Owners cancel their own
// bookings; admins may cancel any. Returns the updated booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id")
	}
	booking, err := h.Bookings.CancelBooking(c.Request().Context(), bookingID, userID, isAdmin(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

// Get handles GET /v1/bookings/:id for the owner or an admin.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id")
	}
	booking, err := h.Bookings.GetBooking(c.Request().Context(), bookingID)
	if err != nil {
		return writeError(c, err)
	}
	if booking.UserID != userID && !isAdmin(c) {
		return jsonError(c, http.StatusForbidden, "FORBIDDEN", "not authorized for this resource")
	}
	return c.JSON(http.StatusOK, booking)
}

// ListMine handles GET /v1/my/bookings with pagination.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	limit, offset := pageParams(c)
	bookings, err := h.Bookings.ListUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": bookings})
}

// isTruthy interprets common query-parameter spellings of "yes".
func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes":
		return true
	}
	return false
}
