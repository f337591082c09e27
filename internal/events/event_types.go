package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserUpdated    EventType = "user_updated"
	EventUserDeleted    EventType = "user_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserUpdatedPayload payload.
type UserUpdatedPayload struct {
	Username string `json:"username"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Username string `json:"username,omitempty"`
}
