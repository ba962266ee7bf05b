package auth

import (
	"context"
	"errors"

	"github.com/georgemunganga/stockroom-backend/internal/modules/user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// Claims identify the holder of a valid token.
type Claims struct {
	UserID  string
	TokenID string
}

// Service defines the interface for authentication-related business logic.
type Service interface {
	SignUp(ctx context.Context, email, password, confirm string) (*user.User, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*Claims, error)
}
