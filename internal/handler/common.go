package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/lock"
	"github.com/evently/booking-engine/internal/repository"
)

// errorBody is the JSON error envelope shared by all endpoints:
// {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// jsonError writes the error envelope with the given status.
func jsonError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeError maps sentinel errors from the core onto the HTTP error
// taxonomy. Unknown errors become 500 STORE_ERROR without leaking
// internals.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return jsonError(c, http.StatusNotFound, "EVENT_NOT_FOUND", "event not found")
	case errors.Is(err, repository.ErrEventFull):
		return jsonError(c, http.StatusConflict, "EVENT_FULL", "not enough seats available")
	case errors.Is(err, repository.ErrSeatsUnavailable):
		return jsonError(c, http.StatusConflict, "SEATS_UNAVAILABLE", "some seats are not available")
	case errors.Is(err, repository.ErrSeatsNotHeld):
		return jsonError(c, http.StatusConflict, "SEATS_NOT_HELD", "some seats are not held by this user")
	case errors.Is(err, repository.ErrBookingNotFound):
		return jsonError(c, http.StatusNotFound, "BOOKING_NOT_FOUND", "booking not found")
	case errors.Is(err, repository.ErrCannotCancel):
		return jsonError(c, http.StatusConflict, "CANNOT_CANCEL", "booking cannot be cancelled")
	case errors.Is(err, repository.ErrForbidden):
		return jsonError(c, http.StatusForbidden, "FORBIDDEN", "not authorized for this resource")
	case errors.Is(err, repository.ErrAlreadyWaitlisted):
		return jsonError(c, http.StatusBadRequest, "ALREADY_WAITLISTED", "user is already on the waitlist")
	case errors.Is(err, repository.ErrUserNotFound):
		return jsonError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	case errors.Is(err, repository.ErrEmailExists):
		return jsonError(c, http.StatusConflict, "EMAIL_EXISTS", "email is already registered")
	case errors.Is(err, lock.ErrLockTimeout):
		return jsonError(c, http.StatusServiceUnavailable, "LOCK_TIMEOUT", "event is busy, try again")
	default:
		return jsonError(c, http.StatusInternalServerError, "STORE_ERROR", "an unexpected error occurred")
	}
}

// getUserID extracts the authenticated user's ID placed in the context
// by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the authenticated request carries the admin
// role claim.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "ADMIN"
}

// pathID parses a positive uint64 path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// pageParams reads ?page and ?limit with sane defaults and returns
// (limit, offset).
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return limit, (page - 1) * limit
}
