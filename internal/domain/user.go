package domain

import "time"

// User is the domain model for directory members.
type User struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Image        string
	PasswordHash string
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
