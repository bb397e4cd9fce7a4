package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/evently/booking-engine/internal/model"
)

// SeatRepo manages the per-seat state machine (available -> held ->
// booked). Every transition is a single bulk conditional UPDATE over
// the full seat set: the statement's affected-row count is compared
// against the number of requested seats, and a shortfall fails the
// whole operation so a partial hold or partial confirm can never
// commit. Expired holds qualify as available on every path without
// waiting for the sweeper.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// placeholders returns a "?, ?, ?" fragment for n bind parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// Hold transitions all requested seats to held for userID with the
// given expiry. A seat qualifies when it is available or carries an
// expired hold. If fewer rows than requested are updated the caller
// must roll back the enclosing transaction; ErrSeatsUnavailable is
// returned to signal that.
func (r *SeatRepo) Hold(ctx context.Context, q Querier, eventID uint64, seatIDs []uint64, userID uint64, heldUntil time.Time) error {
	if len(seatIDs) == 0 {
		return errors.New("no seats requested")
	}
	upd := `UPDATE seats
	        SET status = ?, held_by = ?, held_until = ?
	        WHERE event_id = ? AND id IN (` + placeholders(len(seatIDs)) + `)
	          AND (status = ? OR (status = ? AND held_until <= UTC_TIMESTAMP(3)))`
	args := make([]any, 0, len(seatIDs)+6)
	args = append(args, model.SeatHeld, userID, heldUntil.UTC(), eventID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, model.SeatAvailable, model.SeatHeld)
	res, err := q.ExecContext(ctx, upd, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(seatIDs)) {
		return ErrSeatsUnavailable
	}
	return nil
}

// ConfirmHeld transitions held seats to booked, re-validating at
// transaction time that every seat is still held by userID and the
// hold has not expired. Partial matches return ErrSeatsNotHeld and the
// caller must roll back.
func (r *SeatRepo) ConfirmHeld(ctx context.Context, q Querier, eventID uint64, seatIDs []uint64, userID uint64) error {
	if len(seatIDs) == 0 {
		return errors.New("no seats requested")
	}
	upd := `UPDATE seats
	        SET status = ?, held_by = NULL, held_until = NULL
	        WHERE event_id = ? AND id IN (` + placeholders(len(seatIDs)) + `)
	          AND status = ? AND held_by = ? AND held_until > UTC_TIMESTAMP(3)`
	args := make([]any, 0, len(seatIDs)+5)
	args = append(args, model.SeatBooked, eventID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, model.SeatHeld, userID)
	res, err := q.ExecContext(ctx, upd, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(seatIDs)) {
		return ErrSeatsNotHeld
	}
	return nil
}

// ReleaseHeld returns seats held by userID to available. Used when a
// user abandons a hold before expiry.
func (r *SeatRepo) ReleaseHeld(ctx context.Context, q Querier, eventID, userID uint64) (int, error) {
	const upd = `UPDATE seats SET status = ?, held_by = NULL, held_until = NULL
	             WHERE event_id = ? AND status = ? AND held_by = ?`
	res, err := q.ExecContext(ctx, upd, model.SeatAvailable, eventID, model.SeatHeld, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// ReleaseBooked returns booked seats to available when their booking
// is cancelled.
func (r *SeatRepo) ReleaseBooked(ctx context.Context, q Querier, eventID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	upd := `UPDATE seats SET status = ?, held_by = NULL, held_until = NULL
	        WHERE event_id = ? AND id IN (` + placeholders(len(seatIDs)) + `) AND status = ?`
	args := make([]any, 0, len(seatIDs)+3)
	args = append(args, model.SeatAvailable, eventID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, model.SeatBooked)
	_, err := q.ExecContext(ctx, upd, args...)
	return err
}

// ReleaseExpired resets every expired hold across all events back to
// available. The sweeper calls this periodically as an optimization;
// correctness never depends on it because Hold and ConfirmHeld apply
// lazy expiry themselves.
func (r *SeatRepo) ReleaseExpired(ctx context.Context, q Querier) (int64, error) {
	const upd = `UPDATE seats SET status = ?, held_by = NULL, held_until = NULL
	             WHERE status = ? AND held_until <= UTC_TIMESTAMP(3)`
	res, err := q.ExecContext(ctx, upd, model.SeatAvailable, model.SeatHeld)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByEvent returns all seats of an event ordered by label.
func (r *SeatRepo) ListByEvent(ctx context.Context, q Querier, eventID uint64) ([]model.Seat, error) {
	const sel = `SELECT id, event_id, label, status, held_by, held_until
	             FROM seats WHERE event_id = ? ORDER BY label ASC`
	rows, err := q.QueryContext(ctx, sel, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		var heldBy sql.NullInt64
		var heldUntil sql.NullTime
		if err := rows.Scan(&s.ID, &s.EventID, &s.Label, &s.Status, &heldBy, &heldUntil); err != nil {
			return nil, err
		}
		if heldBy.Valid {
			v := uint64(heldBy.Int64)
			s.HeldBy = &v
		}
		if heldUntil.Valid {
			t := heldUntil.Time
			s.HeldUntil = &t
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// DB exposes the underlying handle for non-transactional use.
func (r *SeatRepo) DB() *sql.DB { return r.db }
