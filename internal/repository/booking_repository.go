package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/evently/booking-engine/internal/model"
)

// BookingRepo persists bookings and their seat links. The idempotency
// ledger lives inside the bookings table: a unique index over
// (user_id, event_id, idempotency_key) makes the key reservation part
// of the booking insert itself, closing the window in which two
// identical requests both observe "no existing booking" and both
// insert. MySQL treats NULL keys as distinct, so keyless bookings are
// unaffected.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a booking row, reserving its idempotency key in the
// same statement. A unique-index violation surfaces as
// ErrDuplicateIdempotencyKey so the coordinator can return the winning
// row instead. The generated ID and timestamp are populated on b.
func (r *BookingRepo) Create(ctx context.Context, q Querier, b *model.Booking) error {
	const ins = `INSERT INTO bookings (user_id, event_id, seats, status, idempotency_key)
	             VALUES (?, ?, ?, ?, ?)`
	var key any
	if b.IdempotencyKey != nil {
		key = *b.IdempotencyKey
	}
	res, err := q.ExecContext(ctx, ins, b.UserID, b.EventID, b.Seats, b.Status, key)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateIdempotencyKey
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT created_at FROM bookings WHERE id = ?`
	return q.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt)
}

// AddSeats links a seat-level booking to the exact seats it confirmed.
func (r *BookingRepo) AddSeats(ctx context.Context, q Querier, bookingID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO booking_seats (booking_id, seat_id) VALUES `)
	args := make([]any, 0, len(seatIDs)*2)
	for i, sid := range seatIDs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?)")
		args = append(args, bookingID, sid)
	}
	_, err := q.ExecContext(ctx, sb.String(), args...)
	return err
}

// SeatIDs returns the seats linked to a booking, empty for
// capacity-level bookings.
func (r *BookingRepo) SeatIDs(ctx context.Context, q Querier, bookingID uint64) ([]uint64, error) {
	const sel = `SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`
	rows, err := q.QueryContext(ctx, sel, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	var key sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.Seats, &b.Status, &key, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if key.Valid {
		k := key.String
		b.IdempotencyKey = &k
	}
	return &b, nil
}

// GetByID loads a booking by primary key.
func (r *BookingRepo) GetByID(ctx context.Context, q Querier, id uint64) (*model.Booking, error) {
	const sel = `SELECT id, user_id, event_id, seats, status, idempotency_key, created_at
	             FROM bookings WHERE id = ?`
	return scanBooking(q.QueryRowContext(ctx, sel, id))
}

// GetByIDForUpdate loads a booking and locks its row for the duration
// of the enclosing transaction, serializing concurrent cancellations
// of the same booking.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, q Querier, id uint64) (*model.Booking, error) {
	const sel = `SELECT id, user_id, event_id, seats, status, idempotency_key, created_at
	             FROM bookings WHERE id = ? FOR UPDATE`
	return scanBooking(q.QueryRowContext(ctx, sel, id))
}

// FindByIdempotencyKey returns the booking previously created for the
// (user, event, key) triple, or ErrBookingNotFound.
func (r *BookingRepo) FindByIdempotencyKey(ctx context.Context, q Querier, userID, eventID uint64, key string) (*model.Booking, error) {
	const sel = `SELECT id, user_id, event_id, seats, status, idempotency_key, created_at
	             FROM bookings WHERE user_id = ? AND event_id = ? AND idempotency_key = ?`
	return scanBooking(q.QueryRowContext(ctx, sel, userID, eventID, key))
}

// UpdateStatus sets the status column of one booking.
func (r *BookingRepo) UpdateStatus(ctx context.Context, q Querier, id uint64, status string) error {
	const upd = `UPDATE bookings SET status = ? WHERE id = ?`
	_, err := q.ExecContext(ctx, upd, status, id)
	return err
}

// ListByUser returns the user's bookings newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, q Querier, userID uint64, limit, offset int) ([]model.Booking, error) {
	const sel = `SELECT id, user_id, event_id, seats, status, idempotency_key, created_at
	             FROM bookings WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, sel, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		var key sql.NullString
		if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.Seats, &b.Status, &key, &b.CreatedAt); err != nil {
			return nil, err
		}
		if key.Valid {
			k := key.String
			b.IdempotencyKey = &k
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// DB exposes the underlying handle for non-transactional use.
func (r *BookingRepo) DB() *sql.DB { return r.db }
