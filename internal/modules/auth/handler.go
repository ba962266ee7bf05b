package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/georgemunganga/stockroom-backend/internal/modules/user"
	"github.com/go-chi/chi/v5"
)

// Handler exposes sign-up, sign-in and sign-out.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/signup", h.signUp)
		r.Post("/signin", h.signIn)
		r.Post("/signout", h.signOut)
	})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	u, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	switch {
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrPasswordMismatch), errors.Is(err, ErrPasswordTooShort):
		respond(w, http.StatusBadRequest, map[string]string{"error": userMessage(err)})
		return
	case errors.Is(err, user.ErrEmailTaken):
		respond(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, u)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	token, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrMissingFields):
		respond(w, http.StatusBadRequest, map[string]string{"error": userMessage(err)})
		return
	case errors.Is(err, ErrInvalidCredentials):
		respond(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	case err != nil:
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		return
	}
	if err := h.service.SignOut(r.Context(), token); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidToken) {
			status = http.StatusUnauthorized
		}
		respond(w, status, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userMessage is the text shown on the sign-up and sign-in screens.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Please fill in all fields"
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	default:
		return err.Error()
	}
}
