package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/georgemunganga/stockroom-backend/internal/modules/user"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*user.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: make(map[string]*user.User)} }

func (f *fakeUsers) RegisterUser(_ context.Context, email, password string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[email]; ok {
		return nil, user.ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &user.User{ID: uuid.New(), Email: email, PasswordHash: string(hash)}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID.String() == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func newTestService() *service {
	return NewService(newFakeUsers(), NewMemoryRevocations(), "test-secret", time.Hour).(*service)
}

func TestSignUpValidation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name                     string
		email, password, confirm string
		want                     error
	}{
		{"missing email", "", "secret1", "secret1", ErrMissingFields},
		{"missing confirmation", "ana@example.com", "secret1", "", ErrMissingFields},
		{"mismatch", "ana@example.com", "secret1", "secret2", ErrPasswordMismatch},
		{"too short", "ana@example.com", "abc12", "abc12", ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.email, tt.password, tt.confirm)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	u, err := svc.SignUp(context.Background(), "ana@example.com", "secret", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	_, err = svc.SignUp(context.Background(), "ana@example.com", "secret", "secret")
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestSignInAndOut(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, err := svc.SignUp(ctx, "ana@example.com", "secret1", "secret1")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "bob@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	claims, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.NotEmpty(t, claims.TokenID)

	other, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, token))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = svc.Authenticate(ctx, other)
	assert.NoError(t, err, "other sessions stay valid")
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, err := svc.SignUp(ctx, "ana@example.com", "secret1", "secret1")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	forged := NewService(newFakeUsers(), NewMemoryRevocations(), "other-secret", time.Hour)
	_, err = forged.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, svc.SignOut(ctx, "garbage"), ErrInvalidToken)
}

func TestRedisRevocations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rev := NewRedisRevocations(client)
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "t1", time.Now().Add(time.Minute)))
	revoked, err := rev.IsRevoked(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = rev.IsRevoked(ctx, "t2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = rev.IsRevoked(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation expires with the token")

	require.NoError(t, rev.Revoke(ctx, "t3", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revocationKey("t3")))
}

func TestMemoryRevocationsExpire(t *testing.T) {
	rev := NewMemoryRevocations().(*memoryRevocations)
	now := time.Now()
	rev.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "t1", now.Add(time.Minute)))
	revoked, _ := rev.IsRevoked(ctx, "t1")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = rev.IsRevoked(ctx, "t1")
	assert.False(t, revoked)
	require.NoError(t, rev.Revoke(ctx, "t2", now.Add(time.Minute)))
	assert.NotContains(t, rev.revoked, "t1", "expired entries are pruned")
}

func TestHandlerFlow(t *testing.T) {
	svc := newTestService()
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	r.With(Middleware(svc)).Get("/protected", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.UserID))
	})

	post := func(path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/api/v1/auth/signup", `{"email":"ana@example.com","password":"secret1","confirm_password":"secret2"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")

	rec = post("/api/v1/auth/signup", `{"email":"ana@example.com","password":"abc","confirm_password":"abc"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password must be at least 6 characters")

	rec = post("/api/v1/auth/signin", `{"email":"","password":""}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fill in all fields")

	rec = post("/api/v1/auth/signup", `{"email":"ana@example.com","password":"secret1","confirm_password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = post("/api/v1/auth/signup", `{"email":"ana@example.com","password":"secret1","confirm_password":"secret1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post("/api/v1/auth/signin", `{"email":"ana@example.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post("/api/v1/auth/signin", `{"email":"ana@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, http.StatusUnauthorized, get("").Code)
	assert.Equal(t, http.StatusUnauthorized, get("junk").Code)
	assert.Equal(t, http.StatusOK, get(body.Token).Code)

	assert.Equal(t, http.StatusNoContent, post("/api/v1/auth/signout", "", body.Token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(body.Token).Code)
	assert.Equal(t, http.StatusUnauthorized, post("/api/v1/auth/signout", "", "").Code)
}
