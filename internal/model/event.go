package model

import "time"

// Event represents a bookable event together with its inventory
// counters. TotalCapacity is fixed at creation; AvailableCapacity
// counts seats not currently consumed by confirmed capacity-level
// bookings. The invariant 0 <= available <= total is enforced by the
// conditional UPDATE statements in the repository layer, never by
// read-then-write sequences.
//
// Fields:
//  ID                – primary key identifier.
//  Title             – display name of the event.
//  Venue             – free-form venue description.
//  StartsAt          – when the event begins.
//  TotalCapacity     – capacity at creation time.
//  AvailableCapacity – remaining capacity for capacity-level bookings.
//  CreatedAt         – creation timestamp.
type Event struct {
	ID                uint64    `json:"id"`
	Title             string    `json:"title"`
	Venue             string    `json:"venue,omitempty"`
	StartsAt          time.Time `json:"starts_at"`
	TotalCapacity     int       `json:"total_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	CreatedAt         time.Time `json:"created_at"`
}
