package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/clickcoin/user-directory/internal/api/http/handlers"
	"github.com/clickcoin/user-directory/internal/auth"
	"github.com/clickcoin/user-directory/internal/config"
	"github.com/clickcoin/user-directory/internal/domain"
	"github.com/clickcoin/user-directory/internal/events"
	"github.com/clickcoin/user-directory/internal/observability"
	"github.com/clickcoin/user-directory/internal/repository"
	"github.com/clickcoin/user-directory/internal/service"
)

// memoryRepo backs the full HTTP stack in tests, with the same error
// contract as the Postgres repository.
type memoryRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*domain.User)}
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memoryRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, user.Username) || existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memoryRepo) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	*existing = *user
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Username, username) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Username, username) || user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryRepo) Search(_ context.Context, username string) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0)
	for _, user := range m.users {
		if username == "" || strings.Contains(strings.ToLower(user.Username), strings.ToLower(username)) {
			clone := *user
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListPublished(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0)
	for _, user := range m.users {
		if user.Published {
			clone := *user
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(len(m.users))
	m.users = make(map[string]*domain.User)
	return count, nil
}

type testStack struct {
	app  *fiber.App
	repo *memoryRepo
	auth *service.AuthService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}

	repo := newMemoryRepo()
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()

	authService := service.NewAuthService(cfg, repo, dispatcher)
	userService := service.NewUserService(cfg, repo, nil, dispatcher, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), MiddlewareConfig{})
	RegisterRoutes(app, RouteConfig{
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), repo),
	})

	return &testStack{app: app, repo: repo, auth: authService}
}

func (s *testStack) request(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func signupBody() map[string]any {
	return map[string]any{
		"username": "john_doe",
		"email":    "john@example.com",
		"password": "secretPassword",
	}
}

func TestSignupSigninScenario(t *testing.T) {
	stack := newTestStack(t)

	// signup succeeds and never echoes the password or hash
	resp, raw := stack.request(t, fiber.MethodPost, "/api/auth/signup", signupBody(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
		Data    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	require.Equal(t, "User has been saved.", created.Message)
	require.NotEmpty(t, created.Data.ID)
	require.NotContains(t, string(raw), "secretPassword")
	require.NotContains(t, string(raw), "password")

	stored, err := stack.repo.GetByID(context.Background(), created.Data.ID)
	require.NoError(t, err)
	require.NotEqual(t, "secretPassword", stored.PasswordHash)

	// repeating the same signup conflicts, leaving the store unchanged
	resp, raw = stack.request(t, fiber.MethodPost, "/api/auth/signup", signupBody(), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, string(raw), "CONFLICT")
	require.Equal(t, 1, stack.repo.count())

	// signin issues a token that resolves back to the user id
	resp, raw = stack.request(t, fiber.MethodPost, "/api/auth/signin", map[string]any{
		"username": "john_doe",
		"password": "secretPassword",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var signin struct {
		Token    string `json:"token"`
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(raw, &signin))
	require.NotEmpty(t, signin.Token)
	require.Equal(t, created.Data.ID, signin.ID)

	userID, err := stack.auth.TokenManager().Verify(signin.Token)
	require.NoError(t, err)
	require.Equal(t, created.Data.ID, userID)

	// wrong password is a 401
	resp, _ = stack.request(t, fiber.MethodPost, "/api/auth/signin", map[string]any{
		"username": "john_doe",
		"password": "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignup_MissingUsernameIsBadRequest(t *testing.T) {
	stack := newTestStack(t)

	body := signupBody()
	delete(body, "username")
	resp, raw := stack.request(t, fiber.MethodPost, "/api/auth/signup", body, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(raw), "VALIDATION_FAILED")
	require.Equal(t, 0, stack.repo.count())
}

func TestSignin_UnknownUserMatchesWrongPasswordResponse(t *testing.T) {
	stack := newTestStack(t)
	stack.request(t, fiber.MethodPost, "/api/auth/signup", signupBody(), nil)

	respWrong, rawWrong := stack.request(t, fiber.MethodPost, "/api/auth/signin", map[string]any{
		"username": "john_doe",
		"password": "wrong",
	}, nil)
	respUnknown, rawUnknown := stack.request(t, fiber.MethodPost, "/api/auth/signin", map[string]any{
		"username": "no_such_user",
		"password": "secretPassword",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, respWrong.StatusCode)
	require.Equal(t, http.StatusUnauthorized, respUnknown.StatusCode)
	require.JSONEq(t, string(rawWrong), string(rawUnknown), "responses must not reveal whether the username exists")
}

func TestProtectedMeEndpoint(t *testing.T) {
	stack := newTestStack(t)
	stack.request(t, fiber.MethodPost, "/api/auth/signup", signupBody(), nil)

	_, raw := stack.request(t, fiber.MethodPost, "/api/auth/signin", map[string]any{
		"username": "john_doe",
		"password": "secretPassword",
	}, nil)
	var signin struct {
		Token string `json:"token"`
		ID    string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &signin))

	resp, raw := stack.request(t, fiber.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + signin.Token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(raw, &me))
	require.Equal(t, signin.ID, me.ID)
	require.Equal(t, "john_doe", me.Username)

	resp, _ = stack.request(t, fiber.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer garbage.token.here",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = stack.request(t, fiber.MethodGet, "/api/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUsersCRUDEndpoints(t *testing.T) {
	stack := newTestStack(t)

	resp, raw := stack.request(t, fiber.MethodPost, "/api/users", map[string]any{
		"username":  "jane_roe",
		"email":     "jane@example.com",
		"password":  "anotherSecret",
		"firstName": "Jane",
		"published": true,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))

	// case-insensitive substring search
	resp, raw = stack.request(t, fiber.MethodGet, "/api/users?username=ANE_R", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), "jane_roe")

	resp, raw = stack.request(t, fiber.MethodGet, "/api/users/published", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), "jane_roe")

	resp, _ = stack.request(t, fiber.MethodGet, "/api/users/"+created.Data.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = stack.request(t, fiber.MethodPut, "/api/users/"+created.Data.ID, map[string]any{
		"phone": "+1999",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = stack.request(t, fiber.MethodGet, "/api/users/missing-id", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = stack.request(t, fiber.MethodDelete, "/api/users/"+created.Data.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 0, stack.repo.count())

	resp, raw = stack.request(t, fiber.MethodDelete, "/api/users", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), "0 Users were deleted successfully!")
}
