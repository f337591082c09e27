package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/clickcoin/user-directory/internal/api/dto"
	"github.com/clickcoin/user-directory/internal/auth"
	"github.com/clickcoin/user-directory/internal/service"
	apperrors "github.com/clickcoin/user-directory/pkg/util"
)

// AuthHandler exposes signup and signin endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" {
		return apperrors.NewValidationError("username cannot be empty", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := h.auth.Signup(c.Context(), service.SignupInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Image:     req.Image,
		Password:  req.Password,
		Published: req.Published,
	})
	if err != nil {
		return err
	}

	return c.JSON(dto.Envelope{
		Message: "User has been saved.",
		Status:  http.StatusOK,
		Data:    dto.NewUserResponse(user),
	})
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	var req dto.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password are required", nil)
	}

	user, token, expiresAt, err := h.auth.Signin(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.SigninResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
	})
}

// Me handles GET /api/auth/me behind the bearer middleware.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.NewUserResponse(user))
}
