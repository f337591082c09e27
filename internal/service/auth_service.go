package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clickcoin/user-directory/internal/auth"
	"github.com/clickcoin/user-directory/internal/config"
	"github.com/clickcoin/user-directory/internal/domain"
	"github.com/clickcoin/user-directory/internal/events"
	"github.com/clickcoin/user-directory/internal/repository"
	apperrors "github.com/clickcoin/user-directory/pkg/util"
)

// SignupInput carries the fields accepted at registration.
type SignupInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Image     string
	Password  string
	Published bool
}

// AuthService coordinates signup and signin flows.
type AuthService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository, dispatcher events.Dispatcher) *AuthService {
	return &AuthService{
		users:      users,
		dispatcher: dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Signup registers a new user: uniqueness check, password hash, insert.
// The pre-insert check is best effort; a concurrent signup that slips past it
// still fails on the table's unique indexes and surfaces as the same conflict.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("username, email and password are required", nil)
	}

	if _, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email); err == nil {
		return nil, apperrors.NewConflict("username or email already in use", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewStoreUnavailable(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Image:        in.Image,
		PasswordHash: hash,
		Published:    in.Published,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username or email already in use", nil)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventUserRegistered,
			UserID:    user.ID,
			Timestamp: time.Now(),
			Payload:   events.UserRegisteredPayload{Username: user.Username, Email: user.Email},
		})
	}

	return user, nil
}

// Signin authenticates a user by username and password and issues a token.
// Unknown usernames and wrong passwords return the identical failure so
// responses do not leak which usernames exist.
func (s *AuthService) Signin(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	if username == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("username and password are required", nil)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid username or password")
		}
		return nil, "", time.Time{}, apperrors.NewStoreUnavailable(err)
	}

	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid username or password")
	}

	token, expiresAt, err := s.tokenMgr.Issue(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, expiresAt, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
