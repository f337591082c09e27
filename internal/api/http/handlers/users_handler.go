package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/clickcoin/user-directory/internal/api/dto"
	"github.com/clickcoin/user-directory/internal/service"
	apperrors "github.com/clickcoin/user-directory/pkg/util"
)

// UsersHandler exposes directory CRUD endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.Create(c.Context(), service.SignupInput{
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

// List handles GET /api/users with an optional username substring filter.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.Search(c.Context(), c.Query("username"))
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{
		Message: "Users have been retrieved.",
		Status:  http.StatusOK,
		Data:    dto.NewUserResponses(users),
	})
}

// ListPublished handles GET /api/users/published.
func (h *UsersHandler) ListPublished(c *fiber.Ctx) error {
	users, err := h.users.ListPublished(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponses(users))
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Update handles PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("data to update cannot be empty", nil)
	}

	if _, err := h.users.Update(c.Context(), c.Params("id"), service.UserUpdateInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Image:     req.Image,
		Published: req.Published,
	}); err != nil {
		return err
	}

	return c.JSON(dto.Envelope{
		Message: "User was updated successfully.",
		Status:  http.StatusOK,
	})
}

// Delete handles DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.users.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.Envelope{
		Message: "User was deleted successfully!",
		Status:  http.StatusOK,
	})
}

// DeleteAll handles DELETE /api/users.
func (h *UsersHandler) DeleteAll(c *fiber.Ctx) error {
	count, err := h.users.DeleteAll(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{
		Message: fmt.Sprintf("%d Users were deleted successfully!", count),
		Status:  http.StatusOK,
	})
}
