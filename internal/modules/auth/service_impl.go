package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/georgemunganga/stockroom-backend/internal/modules/user"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type service struct {
	users       user.Service
	revocations Revocations
	key         []byte
	ttl         time.Duration
	now         func() time.Time
}

// NewService creates a new auth service issuing HS256 tokens signed with
// secret and valid for ttl.
func NewService(users user.Service, revocations Revocations, secret string, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{
		users:       users,
		revocations: revocations,
		key:         []byte(secret),
		ttl:         ttl,
		now:         time.Now,
	}
}

func (s *service) SignUp(ctx context.Context, email, password, confirm string) (*user.User, error) {
	if strings.TrimSpace(email) == "" || password == "" || confirm == "" {
		return nil, ErrMissingFields
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	return s.users.RegisterUser(ctx, email, password)
}

func (s *service) SignIn(ctx context.Context, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", ErrMissingFields
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	claims := &jwt.StandardClaims{
		Id:        uuid.NewString(),
		Subject:   u.ID.String(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.Id, time.Unix(claims.ExpiresAt, 0)); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.Id)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return &Claims{UserID: claims.Subject, TokenID: claims.Id}, nil
}

func (s *service) parse(token string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil || !parsed.Valid || claims.Id == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
