package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	insertUserSQL = `INSERT INTO users (email, name, password_hash)
    VALUES ($1, $2, $3)
    RETURNING id, created_at;`

	getUserByEmailSQL = `SELECT id, email, name, password_hash, created_at
    FROM users
    WHERE email = $1;`

	getUserByIDSQL = `SELECT id, email, name, password_hash, created_at
    FROM users
    WHERE id = $1;`

	insertSessionSQL = `INSERT INTO sessions (token, user_id, expires_at)
    VALUES ($1, $2, $3)
    RETURNING created_at;`

	getSessionSQL = `SELECT token, user_id, expires_at, created_at
    FROM sessions
    WHERE token = $1
      AND expires_at > now();`

	deleteSessionSQL = `DELETE FROM sessions WHERE token = $1;`

	deleteExpiredSessionsSQL = `DELETE FROM sessions WHERE expires_at <= now();`
)

// UserStore defines operations for accounts and their sessions.
type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	CreateSession(ctx context.Context, session Session) (Session, error)
	SessionByToken(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// CreateUser inserts a new account. Returns ErrDuplicate when the email is
// already registered.
func (s *Store) CreateUser(ctx context.Context, user User) (User, error) {
	pool, err := s.getPool()
	if err != nil {
		return User{}, err
	}

	row := pool.QueryRow(ctx, insertUserSQL, user.Email, user.Name, user.PasswordHash)
	if scanErr := row.Scan(&user.ID, &user.CreatedAt); scanErr != nil {
		if isUniqueViolation(scanErr) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", scanErr)
	}
	return user, nil
}

// UserByEmail looks an account up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	pool, err := s.getPool()
	if err != nil {
		return User{}, err
	}
	return scanUser(pool.QueryRow(ctx, getUserByEmailSQL, email))
}

// UserByID looks an account up by id.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	pool, err := s.getPool()
	if err != nil {
		return User{}, err
	}
	return scanUser(pool.QueryRow(ctx, getUserByIDSQL, id))
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// CreateSession persists a login session.
func (s *Store) CreateSession(ctx context.Context, session Session) (Session, error) {
	pool, err := s.getPool()
	if err != nil {
		return Session{}, err
	}

	row := pool.QueryRow(ctx, insertSessionSQL, session.Token, session.UserID, session.ExpiresAt)
	if scanErr := row.Scan(&session.CreatedAt); scanErr != nil {
		return Session{}, fmt.Errorf("insert session: %w", scanErr)
	}
	return session, nil
}

// SessionByToken resolves an unexpired session.
func (s *Store) SessionByToken(ctx context.Context, token string) (Session, error) {
	pool, err := s.getPool()
	if err != nil {
		return Session{}, err
	}

	var session Session
	row := pool.QueryRow(ctx, getSessionSQL, token)
	if scanErr := row.Scan(&session.Token, &session.UserID, &session.ExpiresAt, &session.CreatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("scan session: %w", scanErr)
	}
	return session, nil
}

// DeleteSession removes a session. Deleting an unknown token is not an
// error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSessionSQL, token); execErr != nil {
		return fmt.Errorf("delete session: %w", execErr)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and reports how
// many were dropped.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteExpiredSessionsSQL)
	if execErr != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", execErr)
	}
	return tag.RowsAffected(), nil
}
