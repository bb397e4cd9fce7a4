package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/evently/booking-engine/internal/model"
)

// EventRepo provides access to the events table, including the
// inventory counters. ReserveCapacity and ReleaseCapacity are the only
// writers of available_capacity; both are single conditional UPDATE
// statements so concurrent callers are serialized at the row and a
// read-check-then-write race cannot oversell.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event with full availability and populates the
// generated ID and timestamps on the passed model.
func (r *EventRepo) Create(ctx context.Context, q Querier, ev *model.Event) error {
	const ins = `INSERT INTO events (title, venue, starts_at, total_capacity, available_capacity)
	             VALUES (?, ?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, ins, ev.Title, ev.Venue, ev.StartsAt.UTC(), ev.TotalCapacity, ev.TotalCapacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	ev.AvailableCapacity = ev.TotalCapacity
	const sel = `SELECT created_at FROM events WHERE id = ?`
	return q.QueryRowContext(ctx, sel, ev.ID).Scan(&ev.CreatedAt)
}

// GetByID loads a single event. Returns ErrEventNotFound when absent.
func (r *EventRepo) GetByID(ctx context.Context, q Querier, id uint64) (*model.Event, error) {
	const sel = `SELECT id, title, venue, starts_at, total_capacity, available_capacity, created_at
	             FROM events WHERE id = ?`
	var ev model.Event
	err := q.QueryRowContext(ctx, sel, id).Scan(
		&ev.ID, &ev.Title, &ev.Venue, &ev.StartsAt, &ev.TotalCapacity, &ev.AvailableCapacity, &ev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// List returns events ordered by start time ascending.
func (r *EventRepo) List(ctx context.Context, q Querier, limit, offset int) ([]model.Event, error) {
	const sel = `SELECT id, title, venue, starts_at, total_capacity, available_capacity, created_at
	             FROM events ORDER BY starts_at ASC LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, sel, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Venue, &ev.StartsAt, &ev.TotalCapacity, &ev.AvailableCapacity, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ReserveCapacity atomically subtracts n from available_capacity,
// succeeding only when at least n seats remain. Zero rows affected
// means either insufficient capacity or an unknown event; the two are
// distinguished with a follow-up existence check so callers get a
// precise error.
func (r *EventRepo) ReserveCapacity(ctx context.Context, q Querier, eventID uint64, n int) error {
	const upd = `UPDATE events SET available_capacity = available_capacity - ?
	             WHERE id = ? AND available_capacity >= ?`
	res, err := q.ExecContext(ctx, upd, n, eventID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, q, eventID); err != nil {
			return err
		}
		return ErrEventFull
	}
	return nil
}

// ReleaseCapacity atomically returns n seats to available_capacity.
// The total_capacity guard keeps the counter inside its invariant even
// if a caller releases twice by mistake; such a call is a caller bug
// and is not silently deduplicated.
func (r *EventRepo) ReleaseCapacity(ctx context.Context, q Querier, eventID uint64, n int) error {
	const upd = `UPDATE events SET available_capacity = available_capacity + ?
	             WHERE id = ? AND available_capacity + ? <= total_capacity`
	res, err := q.ExecContext(ctx, upd, n, eventID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("capacity release exceeds total capacity")
	}
	return nil
}

// CreateSeats bulk-inserts seat rows for an event in one statement,
// all in the available state.
func (r *EventRepo) CreateSeats(ctx context.Context, q Querier, eventID uint64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO seats (event_id, label, status) VALUES `)
	args := make([]any, 0, len(labels)*3)
	for i, label := range labels {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?)")
		args = append(args, eventID, label, model.SeatAvailable)
	}
	_, err := q.ExecContext(ctx, b.String(), args...)
	return err
}

// DB exposes the underlying handle so callers can run one-off reads
// outside a transaction.
func (r *EventRepo) DB() *sql.DB { return r.db }
