// Package auth validates login and registration forms, delegates the
// credential check to the external identity provider and keeps the resulting
// session in a kv.Store.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ProfilePath is where the browser goes after a successful login or
// registration.
const ProfilePath = "/perfil"

// ErrNoSession is returned when the session id holds no valid session.
var ErrNoSession = errors.New("no session")

// User is the account record returned by the identity provider.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// Session is an authenticated identity: the provider token and its user.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider is the external identity service.
type Provider interface {
	Login(ctx context.Context, identifier, password string) (*Session, error)
	Register(ctx context.Context, username, email, password string) (*Session, error)
	UpdatePhone(ctx context.Context, token string, userID int, phone string) error
}

// ProviderError is a rejection reported by the identity provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %d %s", e.Status, e.Message)
}

// ValidationError is a form field that failed client-side validation. No
// request reaches the provider when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Error is a failed login or registration with a customer-facing message.
type Error struct {
	// Status is the provider HTTP status, 0 for transport failures.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
