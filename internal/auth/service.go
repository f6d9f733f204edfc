// Package auth implements account signup, login and bearer-token session
// resolution on top of the storage layer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invest-calendar/internal/storage"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrSessionExpired indicates the token is unknown or past its expiry.
	ErrSessionExpired = errors.New("auth: session expired")
)

// Options tune the auth service.
type Options struct {
	SessionTTL time.Duration
}

// Service issues and validates sessions.
type Service struct {
	store      storage.UserStore
	sessionTTL time.Duration
	logger     zerolog.Logger
}

// NewService wires a user store into an auth service.
func NewService(store storage.UserStore, opts Options, logger zerolog.Logger) *Service {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		store:      store,
		sessionTTL: ttl,
		logger:     logger.With().Str("component", "auth").Logger(),
	}
}

// Signup registers a new account and logs it in.
func (s *Service) Signup(ctx context.Context, email, name, password string) (storage.User, storage.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return storage.User{}, storage.Session{}, fmt.Errorf("invalid email")
	}
	if len(password) < 8 {
		return storage.User{}, storage.Session{}, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return storage.User{}, storage.Session{}, err
	}

	user, err := s.store.CreateUser(ctx, storage.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return storage.User{}, storage.Session{}, ErrEmailTaken
		}
		return storage.User{}, storage.Session{}, err
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return storage.User{}, storage.Session{}, err
	}

	s.logger.Info().Str("email", email).Int64("user_id", user.ID).Msg("account created")
	return user, session, nil
}

// Login validates credentials and issues a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (storage.User, storage.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, storage.Session{}, ErrInvalidCredentials
		}
		return storage.User{}, storage.Session{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return storage.User{}, storage.Session{}, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return storage.User{}, storage.Session{}, err
	}
	return user, session, nil
}

// Logout invalidates a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (storage.User, error) {
	if token == "" {
		return storage.User{}, ErrSessionExpired
	}

	session, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, ErrSessionExpired
		}
		return storage.User{}, err
	}
	return s.store.UserByID(ctx, session.UserID)
}

// PruneSessions drops expired sessions.
func (s *Service) PruneSessions(ctx context.Context) error {
	dropped, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if dropped > 0 {
		s.logger.Debug().Int64("dropped", dropped).Msg("pruned expired sessions")
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, userID int64) (storage.Session, error) {
	return s.store.CreateSession(ctx, storage.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	})
}
