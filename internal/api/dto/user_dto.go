package dto

import (
	"time"

	"github.com/clickcoin/user-directory/internal/domain"
)

// SignupRequest payload for new users.
type SignupRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Image     string `json:"image"`
	Published bool   `json:"published"`
}

// SigninRequest payload for signin.
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserUpdateRequest payload for partial updates. Pointer fields distinguish
// "absent" from "set to zero value".
type UserUpdateRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Image     *string `json:"image"`
	Published *bool   `json:"published"`
}

// UserResponse is the wire shape of a user. The password hash is deliberately
// not part of it.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Image     string    `json:"image,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserResponse maps a domain user to its wire shape.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Image:     u.Image,
		Published: u.Published,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUserResponses maps a slice of domain users.
func NewUserResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

// Envelope is the legacy response wrapper {message, status, data}.
type Envelope struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Data    any    `json:"data,omitempty"`
}

// SigninResponse returns the bearer token plus minimal identity.
type SigninResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
}
