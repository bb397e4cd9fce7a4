package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/evently/booking-engine/internal/model"
)

// WaitlistRepo manages the per-event FIFO waitlist. Ordering is by
// joined_at ascending; PopNext combines the read and the delete in one
// transaction with a row lock so two promoters can never pop the same
// entry.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// Join appends the user to the event's waitlist. The unique index over
// (event_id, user_id) turns a concurrent double-join into
// ErrAlreadyWaitlisted instead of a duplicate entry.
func (r *WaitlistRepo) Join(ctx context.Context, q Querier, eventID, userID uint64) (*model.WaitlistEntry, error) {
	const ins = `INSERT INTO waitlist_entries (event_id, user_id) VALUES (?, ?)`
	if _, err := q.ExecContext(ctx, ins, eventID, userID); err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrAlreadyWaitlisted
		}
		return nil, err
	}
	const sel = `SELECT event_id, user_id, joined_at FROM waitlist_entries WHERE event_id = ? AND user_id = ?`
	var e model.WaitlistEntry
	if err := q.QueryRowContext(ctx, sel, eventID, userID).Scan(&e.EventID, &e.UserID, &e.JoinedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Reinstate puts a popped entry back with its original joined_at so it
// keeps its place at the head of the queue. If the user re-joined in
// the meantime the existing entry wins and the call is a no-op.
func (r *WaitlistRepo) Reinstate(ctx context.Context, q Querier, e *model.WaitlistEntry) error {
	const ins = `INSERT INTO waitlist_entries (event_id, user_id, joined_at) VALUES (?, ?, ?)`
	if _, err := q.ExecContext(ctx, ins, e.EventID, e.UserID, e.JoinedAt); err != nil {
		if isDuplicateEntry(err) {
			return nil
		}
		return err
	}
	return nil
}

// Leave removes the user's entry. Removing an absent entry is not an
// error.
func (r *WaitlistRepo) Leave(ctx context.Context, q Querier, eventID, userID uint64) error {
	const del = `DELETE FROM waitlist_entries WHERE event_id = ? AND user_id = ?`
	_, err := q.ExecContext(ctx, del, eventID, userID)
	return err
}

// PopNext removes and returns the earliest-joined entry for the event.
// The SELECT ... FOR UPDATE pins the head row until the enclosing
// transaction commits, making the read-and-delete one atomic unit.
// Returns (nil, nil) when the waitlist is empty.
func (r *WaitlistRepo) PopNext(ctx context.Context, q Querier, eventID uint64) (*model.WaitlistEntry, error) {
	const sel = `SELECT event_id, user_id, joined_at FROM waitlist_entries
	             WHERE event_id = ? ORDER BY joined_at ASC, user_id ASC LIMIT 1 FOR UPDATE`
	var e model.WaitlistEntry
	err := q.QueryRowContext(ctx, sel, eventID).Scan(&e.EventID, &e.UserID, &e.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	const del = `DELETE FROM waitlist_entries WHERE event_id = ? AND user_id = ?`
	if _, err := q.ExecContext(ctx, del, e.EventID, e.UserID); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns the event's waitlist ordered by join time ascending.
func (r *WaitlistRepo) List(ctx context.Context, q Querier, eventID uint64, limit, offset int) ([]model.WaitlistEntry, error) {
	const sel = `SELECT event_id, user_id, joined_at FROM waitlist_entries
	             WHERE event_id = ? ORDER BY joined_at ASC, user_id ASC LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, sel, eventID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.EventID, &e.UserID, &e.JoinedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DB exposes the underlying handle for non-transactional use.
func (r *WaitlistRepo) DB() *sql.DB { return r.db }
