package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
	"github.com/evently/booking-engine/internal/service"
)

// stubBookings scripts the coordinator responses per test.
type stubBookings struct {
	booking    *model.Booking
	err        error
	gotRequest service.CreateBookingRequest
	heldIDs    []uint64
	heldUntil  time.Time
	seats      []model.Seat
}

func (s *stubBookings) CreateBooking(_ context.Context, req service.CreateBookingRequest) (*model.Booking, error) {
	s.gotRequest = req
	return s.booking, s.err
}

func (s *stubBookings) CancelBooking(_ context.Context, bookingID, userID uint64, isAdmin bool) (*model.Booking, error) {
	return s.booking, s.err
}

func (s *stubBookings) HoldSeats(_ context.Context, eventID uint64, seatIDs []uint64, userID uint64, holdSeconds int) ([]uint64, time.Time, error) {
	return s.heldIDs, s.heldUntil, s.err
}

func (s *stubBookings) ReleaseHolds(_ context.Context, eventID, userID uint64) (int, error) {
	return 2, s.err
}

func (s *stubBookings) GetBooking(_ context.Context, bookingID uint64) (*model.Booking, error) {
	return s.booking, s.err
}

func (s *stubBookings) ListUserBookings(_ context.Context, userID uint64, limit, offset int) ([]model.Booking, error) {
	if s.booking == nil {
		return nil, s.err
	}
	return []model.Booking{*s.booking}, s.err
}

func (s *stubBookings) ListSeats(_ context.Context, eventID uint64) ([]model.Seat, error) {
	return s.seats, s.err
}

type stubEnqueuer struct {
	jobID string
	err   error
	got   service.CreateBookingRequest
}

func (s *stubEnqueuer) EnqueueBooking(_ context.Context, req service.CreateBookingRequest) (string, error) {
	s.got = req
	return s.jobID, s.err
}

// doRequest runs one request through a fresh Echo instance with the
// authenticated identity preinstalled, the way JWTAuth would.
func doRequest(method, target, body string, userID uint64, role string, register func(e *echo.Echo)) *httptest.ResponseRecorder {
	e := echo.New()
	if userID != 0 {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set("user_id", float64(userID))
				c.Set("role", role)
				return next(c)
			}
		})
	}
	register(e)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestBookingCreateSync(t *testing.T) {
	stub := &stubBookings{booking: &model.Booking{ID: 9, UserID: 1, EventID: 5, Seats: 2, Status: model.BookingConfirmed}}
	h := NewBookingHandler(stub, nil)

	rec := doRequest(http.MethodPost, "/v1/events/5/bookings", `{"seats":2}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/bookings", h.Create)
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(1), stub.gotRequest.UserID)
	assert.Equal(t, uint64(5), stub.gotRequest.EventID)
	assert.Equal(t, 2, stub.gotRequest.Seats)
}

func TestBookingCreatePassesIdempotencyKey(t *testing.T) {
	stub := &stubBookings{booking: &model.Booking{ID: 9}}
	h := NewBookingHandler(stub, nil)

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", float64(1))
			c.Set("role", model.RoleCustomer)
			return next(c)
		}
	})
	e.POST("/v1/events/:id/bookings", h.Create)

	req := httptest.NewRequest(http.MethodPost, "/v1/events/5/bookings", strings.NewReader(`{"seats":1}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Idempotency-Key", "order-7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "order-7", stub.gotRequest.IdempotencyKey)
}

func TestBookingCreateAsync(t *testing.T) {
	stub := &stubBookings{}
	enq := &stubEnqueuer{jobID: "job-123"}
	h := NewBookingHandler(stub, enq)

	rec := doRequest(http.MethodPost, "/v1/events/5/bookings?async=1", `{"seats":1}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/bookings", h.Create)
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-123", body["job_id"])
	assert.Equal(t, uint64(5), enq.got.EventID)
}

func TestBookingCreateAsyncWithoutQueue(t *testing.T) {
	h := NewBookingHandler(&stubBookings{}, nil)

	rec := doRequest(http.MethodPost, "/v1/events/5/bookings?async=1", `{"seats":1}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/bookings", h.Create)
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "QUEUE_UNAVAILABLE", decodeErrorCode(t, rec))
}

func TestBookingCreateValidation(t *testing.T) {
	h := NewBookingHandler(&stubBookings{}, nil)

	rec := doRequest(http.MethodPost, "/v1/events/5/bookings", `{"seats":0}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/bookings", h.Create)
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))
}

func TestBookingCreateUnauthenticated(t *testing.T) {
	h := NewBookingHandler(&stubBookings{}, nil)

	rec := doRequest(http.MethodPost, "/v1/events/5/bookings", `{"seats":1}`, 0, "", func(e *echo.Echo) {
		e.POST("/v1/events/:id/bookings", h.Create)
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"event full", repository.ErrEventFull, http.StatusConflict, "EVENT_FULL"},
		{"seats unavailable", repository.ErrSeatsUnavailable, http.StatusConflict, "SEATS_UNAVAILABLE"},
		{"seats not held", repository.ErrSeatsNotHeld, http.StatusConflict, "SEATS_NOT_HELD"},
		{"event not found", repository.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND"},
		{"retry budget exhausted", service.ErrBookingFailed, http.StatusInternalServerError, "STORE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBookingHandler(&stubBookings{err: tt.err}, nil)
			rec := doRequest(http.MethodPost, "/v1/events/5/bookings", `{"seats":1}`, 1, model.RoleCustomer, func(e *echo.Echo) {
				e.POST("/v1/events/:id/bookings", h.Create)
			})
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, decodeErrorCode(t, rec))
		})
	}
}

func TestBookingCancel(t *testing.T) {
	stub := &stubBookings{booking: &model.Booking{ID: 9, Status: model.BookingCancelled}}
	h := NewBookingHandler(stub, nil)

	rec := doRequest(http.MethodPost, "/v1/bookings/9/cancel", "", 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/bookings/:id/cancel", h.Cancel)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.BookingCancelled, got.Status)
}

func TestBookingCancelConflict(t *testing.T) {
	h := NewBookingHandler(&stubBookings{err: repository.ErrCannotCancel}, nil)

	rec := doRequest(http.MethodPost, "/v1/bookings/9/cancel", "", 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/bookings/:id/cancel", h.Cancel)
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CANNOT_CANCEL", decodeErrorCode(t, rec))
}

func TestSeatHold(t *testing.T) {
	until := time.Now().UTC().Add(2 * time.Minute).Truncate(time.Second)
	h := NewSeatHandler(&stubBookings{heldIDs: []uint64{1, 2}, heldUntil: until})

	// The request carries a duplicate; the response must report the
	// set the service actually held, not echo the raw input.
	rec := doRequest(http.MethodPost, "/v1/events/5/seats/hold", `{"seat_ids":[1,2,2]}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/seats/hold", h.Hold)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SeatIDs   []uint64  `json:"seat_ids"`
		HeldUntil time.Time `json:"held_until"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []uint64{1, 2}, body.SeatIDs)
	assert.True(t, body.HeldUntil.Equal(until))
}

func TestSeatHoldEmptyBody(t *testing.T) {
	h := NewSeatHandler(&stubBookings{})

	rec := doRequest(http.MethodPost, "/v1/events/5/seats/hold", `{"seat_ids":[]}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/seats/hold", h.Hold)
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeatConfirmSendsSeatIDs(t *testing.T) {
	stub := &stubBookings{booking: &model.Booking{ID: 3, SeatIDs: []uint64{1, 2}}}
	h := NewSeatHandler(stub)

	rec := doRequest(http.MethodPost, "/v1/events/5/seats/confirm", `{"seat_ids":[1,2]}`, 1, model.RoleCustomer, func(e *echo.Echo) {
		e.POST("/v1/events/:id/seats/confirm", h.Confirm)
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []uint64{1, 2}, stub.gotRequest.SeatIDs)
	assert.Equal(t, uint64(5), stub.gotRequest.EventID)
}

func TestSeatListIsPublic(t *testing.T) {
	h := NewSeatHandler(&stubBookings{seats: []model.Seat{{ID: 1, Label: "A1", Status: model.SeatAvailable}}})

	rec := doRequest(http.MethodGet, "/v1/events/5/seats", "", 0, "", func(e *echo.Echo) {
		e.GET("/v1/events/:id/seats", h.List)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A1")
}
