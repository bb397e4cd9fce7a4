package model

import "time"

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// Booking records seats purchased by a user for an event in a single
// atomic unit. Capacity-level bookings carry only Seats; seat-level
// bookings additionally list the exact SeatIDs they confirmed. When a
// client supplies an idempotency key, at most one booking exists per
// (user, event, key) — enforced by a unique index so concurrent
// duplicates collapse onto the same row.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – user who made the booking.
//  EventID        – event being booked.
//  Seats          – number of seats consumed.
//  SeatIDs        – specific seats for seat-level bookings.
//  Status         – confirmed or cancelled.
//  IdempotencyKey – client-supplied dedup token (nullable).
//  CreatedAt      – creation timestamp.
type Booking struct {
	ID             uint64    `json:"id"`
	UserID         uint64    `json:"user_id"`
	EventID        uint64    `json:"event_id"`
	Seats          int       `json:"seats"`
	SeatIDs        []uint64  `json:"seat_ids,omitempty"`
	Status         string    `json:"status"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
