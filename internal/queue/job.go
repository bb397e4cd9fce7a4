// Package queue implements the admission queue for asynchronous
// booking requests on RabbitMQ: a publisher that enqueues jobs and a
// worker pool that drains them through the booking coordinator under a
// per-event distributed lock. Jobs that exhaust their retry budget are
// parked on a durable dead-letter queue for operator inspection, never
// silently dropped.
package queue

import (
	"time"

	"github.com/evently/booking-engine/internal/service"
)

// Queue names. Both are declared durable and messages are published
// persistent so requests survive a broker restart.
const (
	RequestQueue    = "booking.requests"
	DeadLetterQueue = "booking.dead"
)

// Default retry policy for booking jobs.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// BookingJob is the unit of work carried by the admission queue. The
// payload mirrors a booking-creation request, including the client's
// idempotency key so redelivery cannot double-book.
type BookingJob struct {
	JobID       string                       `json:"job_id"`
	Request     service.CreateBookingRequest `json:"request"`
	Attempts    int                          `json:"attempts"`
	MaxAttempts int                          `json:"max_attempts"`
	EnqueuedAt  time.Time                    `json:"enqueued_at"`
}

// DeadLetter wraps a job that exhausted its attempts together with the
// final error, as stored on the dead-letter queue.
type DeadLetter struct {
	Job      BookingJob `json:"job"`
	Error    string     `json:"error"`
	FailedAt time.Time  `json:"failed_at"`
}
