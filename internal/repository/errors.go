// Package repository implements data access for events, seats,
// bookings, waitlists and users on top of database/sql. It also
// defines the sentinel error values that higher layers translate into
// HTTP responses. Business-rule rejections (ErrEventFull,
// ErrSeatsUnavailable, ErrSeatsNotHeld, ErrCannotCancel,
// ErrAlreadyWaitlisted) are terminal and must never be retried;
// transient store conflicts are detected with IsTransient and retried
// by the booking coordinator.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrEventFull is returned by ReserveCapacity when the remaining
// capacity is smaller than the requested seat count. Handlers should
// translate this into an HTTP 409 response.
var ErrEventFull = errors.New("event full")

// ErrSeatsUnavailable is returned by Hold when at least one requested
// seat is not free. The enclosing transaction must be rolled back so a
// partial hold never becomes visible.
var ErrSeatsUnavailable = errors.New("seats unavailable")

// ErrSeatsNotHeld is returned by ConfirmHeld when at least one seat is
// not currently held by the confirming user, including holds that have
// expired between hold and confirm.
var ErrSeatsNotHeld = errors.New("seats not held")

// ErrBookingNotFound is returned when a booking lookup matches no row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrCannotCancel is returned when cancelling a booking that is not in
// the confirmed state. Cancellation is deliberately not idempotent: a
// second cancel is rejected rather than silently accepted.
var ErrCannotCancel = errors.New("booking cannot be cancelled")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyWaitlisted is returned by Join when the user already has a
// waitlist entry for the event.
var ErrAlreadyWaitlisted = errors.New("already waitlisted")

// ErrDuplicateIdempotencyKey is returned when inserting a booking
// whose (user, event, idempotency key) triple already exists. The
// coordinator reacts by returning the winning row.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already registered")

// MySQL server error numbers relevant to the booking transaction.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// IsTransient reports whether err is a short-lived conflict between
// concurrent transactions (deadlock or lock wait timeout). Such errors
// are safe to retry after the transaction has been rolled back.
func IsTransient(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}

// isDuplicateEntry reports whether err is a unique-constraint
// violation.
func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDuplicateEntry
	}
	return false
}
