package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/evently/booking-engine/internal/model"
)

// UserRepo provides access to the users table for registration and
// login.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user. A duplicate email surfaces as
// ErrEmailExists via the unique index on email.
func (r *UserRepo) Create(ctx context.Context, q Querier, u *model.User) error {
	const ins = `INSERT INTO users (email, name, role, password_hash) VALUES (?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, ins, u.Email, u.Name, u.Role, u.PasswordHash)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	const sel = `SELECT created_at FROM users WHERE id = ?`
	return q.QueryRowContext(ctx, sel, u.ID).Scan(&u.CreatedAt)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail loads a user by email for login.
func (r *UserRepo) GetByEmail(ctx context.Context, q Querier, email string) (*model.User, error) {
	const sel = `SELECT id, email, name, role, password_hash, created_at FROM users WHERE email = ?`
	return scanUser(q.QueryRowContext(ctx, sel, email))
}

// GetByID loads a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, q Querier, id uint64) (*model.User, error) {
	const sel = `SELECT id, email, name, role, password_hash, created_at FROM users WHERE id = ?`
	return scanUser(q.QueryRowContext(ctx, sel, id))
}

// DB exposes the underlying handle for non-transactional use.
func (r *UserRepo) DB() *sql.DB { return r.db }
