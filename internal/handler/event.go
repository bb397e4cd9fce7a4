package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/model"
)

// EventAPI is the slice of the event catalog the HTTP layer uses.
type EventAPI interface {
	CreateEvent(ctx context.Context, title, venue string, startsAt time.Time, totalCapacity int, seatLabels []string) (*model.Event, error)
	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]model.Event, error)
}

// EventHandler exposes the public event catalog and the admin create
// endpoint.
type EventHandler struct {
	Events EventAPI
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events EventAPI) *EventHandler {
	if events == nil {
		panic("nil event service passed to NewEventHandler")
	}
	return &EventHandler{Events: events}
}

// Create handles POST /v1/admin/events. Either total_capacity or
// seat_labels must be given; with labels, capacity follows the label
// count.
func (h *EventHandler) Create(c echo.Context) error {
	var body struct {
		Title         string    `json:"title"`
		Venue         string    `json:"venue"`
		StartsAt      time.Time `json:"starts_at"`
		TotalCapacity int       `json:"total_capacity"`
		SeatLabels    []string  `json:"seat_labels"`
	}
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if body.Title == "" {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "title is required")
	}
	if body.TotalCapacity <= 0 && len(body.SeatLabels) == 0 {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "total_capacity or seat_labels is required")
	}
	ev, err := h.Events.CreateEvent(c.Request().Context(), body.Title, body.Venue, body.StartsAt, body.TotalCapacity, body.SeatLabels)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event id")
	}
	ev, err := h.Events.GetEvent(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// List handles GET /v1/events with pagination.
func (h *EventHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	events, err := h.Events.ListEvents(c.Request().Context(), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}
