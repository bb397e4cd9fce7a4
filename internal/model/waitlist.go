package model

import "time"

// WaitlistEntry is a user waiting for capacity on a full event. The
// queue is strictly FIFO by JoinedAt and holds at most one entry per
// (event, user).
type WaitlistEntry struct {
	EventID  uint64    `json:"event_id"`
	UserID   uint64    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
