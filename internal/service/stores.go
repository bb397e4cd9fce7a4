// Package service contains the booking transaction coordinator and
// the waitlist promoter. Services depend on narrow store interfaces
// rather than concrete repositories so tests can substitute in-memory
// fakes; the repository package provides the production
// implementations over MySQL.
package service

import (
	"context"
	"time"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
)

// EventStore is the inventory ledger: per-event capacity counters with
// atomic conditional reserve and release.
type EventStore interface {
	GetByID(ctx context.Context, q repository.Querier, id uint64) (*model.Event, error)
	ReserveCapacity(ctx context.Context, q repository.Querier, eventID uint64, n int) error
	ReleaseCapacity(ctx context.Context, q repository.Querier, eventID uint64, n int) error
}

// SeatStore is the seat hold manager: all-or-nothing transitions of
// seat sets between available, held and booked.
type SeatStore interface {
	Hold(ctx context.Context, q repository.Querier, eventID uint64, seatIDs []uint64, userID uint64, heldUntil time.Time) error
	ConfirmHeld(ctx context.Context, q repository.Querier, eventID uint64, seatIDs []uint64, userID uint64) error
	ReleaseHeld(ctx context.Context, q repository.Querier, eventID, userID uint64) (int, error)
	ReleaseBooked(ctx context.Context, q repository.Querier, eventID uint64, seatIDs []uint64) error
	ListByEvent(ctx context.Context, q repository.Querier, eventID uint64) ([]model.Seat, error)
}

// BookingStore persists bookings; Create doubles as the idempotency
// ledger by reserving the key in the same insert.
type BookingStore interface {
	Create(ctx context.Context, q repository.Querier, b *model.Booking) error
	AddSeats(ctx context.Context, q repository.Querier, bookingID uint64, seatIDs []uint64) error
	SeatIDs(ctx context.Context, q repository.Querier, bookingID uint64) ([]uint64, error)
	GetByID(ctx context.Context, q repository.Querier, id uint64) (*model.Booking, error)
	GetByIDForUpdate(ctx context.Context, q repository.Querier, id uint64) (*model.Booking, error)
	FindByIdempotencyKey(ctx context.Context, q repository.Querier, userID, eventID uint64, key string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, q repository.Querier, id uint64, status string) error
	ListByUser(ctx context.Context, q repository.Querier, userID uint64, limit, offset int) ([]model.Booking, error)
}

// WaitlistStore is the FIFO waitlist with an atomic PopNext. Reinstate
// undoes a pop whose promotion could not be handed off, preserving the
// entry's original queue position.
type WaitlistStore interface {
	Join(ctx context.Context, q repository.Querier, eventID, userID uint64) (*model.WaitlistEntry, error)
	Reinstate(ctx context.Context, q repository.Querier, e *model.WaitlistEntry) error
	Leave(ctx context.Context, q repository.Querier, eventID, userID uint64) error
	PopNext(ctx context.Context, q repository.Querier, eventID uint64) (*model.WaitlistEntry, error)
	List(ctx context.Context, q repository.Querier, eventID uint64, limit, offset int) ([]model.WaitlistEntry, error)
}

// BookingEnqueuer hands a booking request to the admission queue and
// returns the job identifier. The queue package provides the RabbitMQ
// implementation.
type BookingEnqueuer interface {
	EnqueueBooking(ctx context.Context, req CreateBookingRequest) (string, error)
}

// Promoter is signalled after a capacity-releasing cancellation.
// Signalling is fire and forget: a failure is logged by the caller and
// never rolls the cancellation back.
type Promoter interface {
	PromoteNext(ctx context.Context, eventID uint64) (*model.WaitlistEntry, error)
}
