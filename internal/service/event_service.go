package service

import (
	"context"
	"fmt"
	"time"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
)

// EventCatalog extends EventStore with the catalog operations the
// admin surface needs.
type EventCatalog interface {
	EventStore
	Create(ctx context.Context, q repository.Querier, ev *model.Event) error
	CreateSeats(ctx context.Context, q repository.Querier, eventID uint64, labels []string) error
	List(ctx context.Context, q repository.Querier, limit, offset int) ([]model.Event, error)
}

// EventService manages the event catalog. Capacity mutation lives in
// BookingService; this service only creates and reads events.
type EventService struct {
	runner repository.TxRunner
	events EventCatalog
}

// NewEventService constructs an EventService.
func NewEventService(runner repository.TxRunner, events EventCatalog) *EventService {
	return &EventService{runner: runner, events: events}
}

// CreateEvent inserts an event and, when seat labels are given, its
// seat map in one transaction. Labelled events get their capacity from
// the label count so the counter and the seat map cannot disagree.
func (s *EventService) CreateEvent(ctx context.Context, title, venue string, startsAt time.Time, totalCapacity int, seatLabels []string) (*model.Event, error) {
	if len(seatLabels) > 0 {
		totalCapacity = len(seatLabels)
	}
	if totalCapacity <= 0 {
		return nil, fmt.Errorf("event capacity must be positive")
	}
	ev := &model.Event{
		Title:             title,
		Venue:             venue,
		StartsAt:          startsAt,
		TotalCapacity:     totalCapacity,
		AvailableCapacity: totalCapacity,
	}
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		if err := s.events.Create(ctx, q, ev); err != nil {
			return err
		}
		if len(seatLabels) > 0 {
			return s.events.CreateSeats(ctx, q, ev.ID, seatLabels)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// GetEvent returns a single event.
func (s *EventService) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	var out *model.Event
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		ev, err := s.events.GetByID(ctx, q, id)
		out = ev
		return err
	})
	return out, err
}

// ListEvents returns a page of events ordered by start time.
func (s *EventService) ListEvents(ctx context.Context, limit, offset int) ([]model.Event, error) {
	var out []model.Event
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		out, err = s.events.List(ctx, q, limit, offset)
		return err
	})
	return out, err
}
