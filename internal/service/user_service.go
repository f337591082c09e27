package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clickcoin/user-directory/internal/auth"
	"github.com/clickcoin/user-directory/internal/config"
	"github.com/clickcoin/user-directory/internal/domain"
	"github.com/clickcoin/user-directory/internal/events"
	"github.com/clickcoin/user-directory/internal/persistence"
	"github.com/clickcoin/user-directory/internal/repository"
	apperrors "github.com/clickcoin/user-directory/pkg/util"
)

// UserUpdateInput carries mutable profile fields. Nil pointers leave the
// stored value untouched; the password hash is never updated through here.
type UserUpdateInput struct {
	Username  *string
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Image     *string
	Published *bool
}

// UserService exposes directory CRUD over the repository, with a Redis
// read-through cache on single-user lookups.
type UserService struct {
	users      repository.UserRepository
	cache      *persistence.Redis
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cacheTTL   time.Duration
	bcryptCost int
}

// NewUserService builds the service. The cache is optional.
func NewUserService(cfg config.Config, users repository.UserRepository, cache *persistence.Redis, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	return &UserService{
		users:      users,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
		cacheTTL:   cfg.Redis.CacheTTL(),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Create inserts a user directly, hashing the supplied password. Used by the
// administrative create endpoint; signups go through AuthService.
func (s *UserService) Create(ctx context.Context, in SignupInput) (*domain.User, error) {
	if in.Username == "" {
		return nil, apperrors.NewValidationError("username cannot be empty", nil)
	}
	if in.Email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
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
	return user, nil
}

// Search lists users, optionally filtered by a case-insensitive username substring.
func (s *UserService) Search(ctx context.Context, username string) ([]*domain.User, error) {
	users, err := s.users.Search(ctx, username)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return users, nil
}

// ListPublished lists users flagged as published.
func (s *UserService) ListPublished(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.ListPublished(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return users, nil
}

// Get returns a single user by id, consulting the cache first.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	if user := s.cacheGet(ctx, id); user != nil {
		return user, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	s.cacheSet(ctx, user)
	return user, nil
}

// Update applies the provided fields to the stored user.
func (s *UserService) Update(ctx context.Context, id string, in UserUpdateInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	applyString(&user.Username, in.Username)
	applyString(&user.FirstName, in.FirstName)
	applyString(&user.LastName, in.LastName)
	applyString(&user.Email, in.Email)
	applyString(&user.Phone, in.Phone)
	applyString(&user.Image, in.Image)
	if in.Published != nil {
		user.Published = *in.Published
	}

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.NewConflict("username or email already in use", nil)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		default:
			return nil, apperrors.NewStoreUnavailable(err)
		}
	}

	s.cacheDel(ctx, id)
	s.publish(ctx, events.EventUserUpdated, user.ID, events.UserUpdatedPayload{Username: user.Username})
	return user, nil
}

// Delete removes a user by id.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.NewStoreUnavailable(err)
	}

	s.cacheDel(ctx, id)
	s.publish(ctx, events.EventUserDeleted, id, events.UserDeletedPayload{})
	return nil
}

// DeleteAll removes every user and reports how many were deleted.
func (s *UserService) DeleteAll(ctx context.Context) (int64, error) {
	count, err := s.users.DeleteAll(ctx)
	if err != nil {
		return 0, apperrors.NewStoreUnavailable(err)
	}
	return count, nil
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, userID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// Cache failures are soft: a miss or an unreachable Redis falls through to
// the store. Entries expire on their own; writes invalidate by id.

func (s *UserService) cacheGet(ctx context.Context, id string) *domain.User {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil
	}
	return &user
}

func (s *UserService) cacheSet(ctx context.Context, user *domain.User) {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, cacheKey(user.ID), raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Debug("user cache set failed", zap.Error(err))
	}
}

func (s *UserService) cacheDel(ctx context.Context, id string) {
	if s.cache == nil || s.cache.Client == nil {
		return
	}
	if err := s.cache.Client.Del(ctx, cacheKey(id)).Err(); err != nil && s.logger != nil {
		s.logger.Debug("user cache invalidation failed", zap.Error(err))
	}
}

func cacheKey(id string) string {
	return "user:" + id
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
