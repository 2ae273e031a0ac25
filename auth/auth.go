package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates authentication failed or no valid credentials were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInsufficientScope indicates the caller authenticated but lacks required scope.
var ErrInsufficientScope = errors.New("insufficient scope")

// UserInfo represents a caller principal.
// Implementations should be lightweight and safe for concurrent use.
type UserInfo interface {
	// UserID returns the unique identifier for the user.
	UserID() string
	// Claims unmarshalls the user's claims into the provided struct reference.
	Claims(ref any) error
}

// Authenticator validates bearer tokens and returns associated user info.
// It should return ErrUnauthorized for invalid credentials.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}

// Unauthenticated is the identity recorded for callers that presented no
// credentials. Its UserID is empty.
var Unauthenticated UserInfo = unauthenticated{}

type unauthenticated struct{}

func (unauthenticated) UserID() string   { return "" }
func (unauthenticated) Claims(any) error { return nil }

// IsAuthenticated reports whether u is a real principal.
func IsAuthenticated(u UserInfo) bool {
	return u != nil && u != Unauthenticated
}
