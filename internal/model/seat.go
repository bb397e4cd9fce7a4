package model

import "time"

// Seat statuses. A seat moves available -> held -> booked, held ->
// available (expiry or explicit release) and booked -> available
// (cancellation). No other transitions are valid; the repository
// enforces them with conditional bulk updates.
const (
	SeatAvailable = "available"
	SeatHeld      = "held"
	SeatBooked    = "booked"
)

// Seat is a single reservable seat of an event. HeldBy and HeldUntil
// are set exactly while the seat is in the held state. A held seat
// whose HeldUntil has passed counts as available on every read and
// write path; the background sweeper merely tidies such rows up.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event this seat belongs to.
//  Label     – display label such as "A12".
//  Status    – available, held or booked.
//  HeldBy    – user currently holding the seat (nullable).
//  HeldUntil – hold expiry timestamp (nullable).
type Seat struct {
	ID        uint64     `json:"id"`
	EventID   uint64     `json:"event_id"`
	Label     string     `json:"label"`
	Status    string     `json:"status"`
	HeldBy    *uint64    `json:"held_by,omitempty"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

// EffectiveStatus reports the seat status with lazy hold expiry
// applied: a held seat past its HeldUntil is available.
func (s *Seat) EffectiveStatus(now time.Time) string {
	if s.Status == SeatHeld && s.HeldUntil != nil && !s.HeldUntil.After(now) {
		return SeatAvailable
	}
	return s.Status
}
