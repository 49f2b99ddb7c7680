// Package queue defines the notification payloads exchanged over RabbitMQ
// and the consumer that turns them into outgoing mail.
package queue

import "time"

// Notification types published by the session manager.
const (
	TypePasswordReset     = "password_reset"
	TypeEmailVerification = "email_verification"
)

// NotificationEvent asks the mailer to deliver a single-use link to a
// principal.  Token is the raw one-time token; only its digest is kept in
// Redis, so this message is the only place the raw value travels.
type NotificationEvent struct {
	Type        string    `json:"type"`
	PrincipalID string    `json:"principal_id"`
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}
