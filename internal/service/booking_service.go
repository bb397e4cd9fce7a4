package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
)

// createAttempts bounds the retry loop around the booking transaction.
// Conflicts between concurrent writers are expected to be short-lived,
// so attempts are not spaced out.
const createAttempts = 3

// DefaultHoldSeconds is applied when a hold request does not specify a
// duration.
const DefaultHoldSeconds = 120

// ErrBookingFailed is returned after the transaction retry budget is
// exhausted. It deliberately carries no business meaning; callers must
// not retry automatically.
var ErrBookingFailed = errors.New("unable to create booking")

// CreateBookingRequest carries one booking attempt through the
// synchronous path, the admission queue and waitlist promotion alike.
type CreateBookingRequest struct {
	UserID         uint64   `json:"user_id"`
	EventID        uint64   `json:"event_id"`
	Seats          int      `json:"seats"`
	SeatIDs        []uint64 `json:"seat_ids,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// BookingService is the booking transaction coordinator. It is the
// only writer allowed to mutate bookings together with capacity or
// seat state, and it does so inside a single transaction per
// operation. All stores are injected so tests run against in-memory
// fakes.
type BookingService struct {
	runner   repository.TxRunner
	events   EventStore
	seats    SeatStore
	bookings BookingStore
	promoter Promoter
}

// NewBookingService constructs the coordinator. The promoter is
// optional and attached separately because it is built on top of this
// service's queue path.
func NewBookingService(runner repository.TxRunner, events EventStore, seats SeatStore, bookings BookingStore) *BookingService {
	if runner == nil || events == nil || seats == nil || bookings == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{runner: runner, events: events, seats: seats, bookings: bookings}
}

// SetPromoter attaches the waitlist promoter signalled after
// capacity-releasing cancellations.
func (s *BookingService) SetPromoter(p Promoter) { s.promoter = p }

// CreateBooking runs the whole booking unit — idempotency lookup,
// seat confirm or capacity reserve, and booking insert — atomically,
// retrying on transient store conflicts. Business rejections
// (ErrEventFull, ErrSeatsNotHeld) are terminal and returned as-is.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	if len(req.SeatIDs) > 0 {
		req.Seats = len(req.SeatIDs)
	}
	if req.Seats <= 0 {
		return nil, fmt.Errorf("%w: seat count must be positive", ErrBookingFailed)
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		booking, err := s.createOnce(ctx, req)
		if err == nil {
			return booking, nil
		}
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			// Lost the insert race to an identical request; the
			// winning row is the result of this call too.
			return s.findExisting(ctx, req)
		}
		if !repository.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrBookingFailed, createAttempts, lastErr)
}

// createOnce is one attempt of the atomic unit.
func (s *BookingService) createOnce(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	var out *model.Booking
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		if req.IdempotencyKey != "" {
			existing, err := s.bookings.FindByIdempotencyKey(ctx, q, req.UserID, req.EventID, req.IdempotencyKey)
			if err == nil {
				existing.SeatIDs, err = s.bookings.SeatIDs(ctx, q, existing.ID)
				if err != nil {
					return err
				}
				out = existing
				return nil
			}
			if !errors.Is(err, repository.ErrBookingNotFound) {
				return err
			}
		}

		if len(req.SeatIDs) > 0 {
			// Seat-level path: confirming the held seats re-validates
			// ownership and expiry at transaction time and implies
			// capacity at seat granularity.
			if err := s.seats.ConfirmHeld(ctx, q, req.EventID, req.SeatIDs, req.UserID); err != nil {
				return err
			}
		} else {
			if err := s.events.ReserveCapacity(ctx, q, req.EventID, req.Seats); err != nil {
				return err
			}
		}

		b := &model.Booking{
			UserID:  req.UserID,
			EventID: req.EventID,
			Seats:   req.Seats,
			Status:  model.BookingConfirmed,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			b.IdempotencyKey = &key
		}
		if err := s.bookings.Create(ctx, q, b); err != nil {
			return err
		}
		if len(req.SeatIDs) > 0 {
			if err := s.bookings.AddSeats(ctx, q, b.ID, req.SeatIDs); err != nil {
				return err
			}
			b.SeatIDs = req.SeatIDs
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// findExisting returns the booking the concurrent duplicate created.
func (s *BookingService) findExisting(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	var out *model.Booking
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		existing, err := s.bookings.FindByIdempotencyKey(ctx, q, req.UserID, req.EventID, req.IdempotencyKey)
		if err != nil {
			return err
		}
		existing.SeatIDs, err = s.bookings.SeatIDs(ctx, q, existing.ID)
		if err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelBooking cancels a confirmed booking and gives its capacity or
// seats back in the same transaction. Only the owner or an admin may
// cancel, and a booking can be cancelled exactly once: a repeat
// attempt fails with ErrCannotCancel and changes nothing.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID uint64, isAdmin bool) (*model.Booking, error) {
	var out *model.Booking
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		booking, err := s.bookings.GetByIDForUpdate(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if booking.UserID != userID && !isAdmin {
			return repository.ErrForbidden
		}
		if booking.Status != model.BookingConfirmed {
			return repository.ErrCannotCancel
		}
		seatIDs, err := s.bookings.SeatIDs(ctx, q, booking.ID)
		if err != nil {
			return err
		}
		if len(seatIDs) > 0 {
			if err := s.seats.ReleaseBooked(ctx, q, booking.EventID, seatIDs); err != nil {
				return err
			}
		} else {
			if err := s.events.ReleaseCapacity(ctx, q, booking.EventID, booking.Seats); err != nil {
				return err
			}
		}
		if err := s.bookings.UpdateStatus(ctx, q, booking.ID, model.BookingCancelled); err != nil {
			return err
		}
		booking.Status = model.BookingCancelled
		booking.SeatIDs = seatIDs
		out = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Fire-and-forget: a promotion failure never unwinds the
	// cancellation above.
	if s.promoter != nil {
		if _, err := s.promoter.PromoteNext(ctx, out.EventID); err != nil {
			log.Printf("booking-service: waitlist promotion for event %d failed: %v", out.EventID, err)
		}
	}
	return out, nil
}

// HoldSeats places a TTL-bounded hold on the requested seats. The hold
// is all-or-nothing: if any seat is taken the transaction rolls back
// and no seat is held. The returned slice is the set actually held,
// with duplicates and zero IDs dropped from the request.
func (s *BookingService) HoldSeats(ctx context.Context, eventID uint64, seatIDs []uint64, userID uint64, holdSeconds int) ([]uint64, time.Time, error) {
	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, time.Time{}, errors.New("no valid seat IDs provided")
	}
	if holdSeconds <= 0 {
		holdSeconds = DefaultHoldSeconds
	}
	heldUntil := time.Now().UTC().Add(time.Duration(holdSeconds) * time.Second)
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		if _, err := s.events.GetByID(ctx, q, eventID); err != nil {
			return err
		}
		return s.seats.Hold(ctx, q, eventID, seatIDs, userID, heldUntil)
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return seatIDs, heldUntil, nil
}

// ReleaseHolds lets a user give back every seat they currently hold on
// an event before expiry. Returns the number of seats released.
func (s *BookingService) ReleaseHolds(ctx context.Context, eventID, userID uint64) (int, error) {
	var released int
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		n, err := s.seats.ReleaseHeld(ctx, q, eventID, userID)
		released = n
		return err
	})
	return released, err
}

// GetBooking loads one booking with its seat links.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	var out *model.Booking
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		b, err := s.bookings.GetByID(ctx, q, bookingID)
		if err != nil {
			return err
		}
		b.SeatIDs, err = s.bookings.SeatIDs(ctx, q, b.ID)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// ListUserBookings returns the user's bookings newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, userID uint64, limit, offset int) ([]model.Booking, error) {
	var out []model.Booking
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		out, err = s.bookings.ListByUser(ctx, q, userID, limit, offset)
		return err
	})
	return out, err
}

// ListSeats returns an event's seats with lazy hold expiry applied to
// the reported status.
func (s *BookingService) ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	var out []model.Seat
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		seats, err := s.seats.ListByEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range seats {
			if seats[i].EffectiveStatus(now) == model.SeatAvailable && seats[i].Status == model.SeatHeld {
				seats[i].Status = model.SeatAvailable
				seats[i].HeldBy = nil
				seats[i].HeldUntil = nil
			}
		}
		out = seats
		return nil
	})
	return out, err
}

// dedupe drops zero and repeated IDs preserving first-seen order.
func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	unique := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	return unique
}
