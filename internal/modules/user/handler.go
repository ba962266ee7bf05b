package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service      Service
	authenticate func(http.Handler) http.Handler
}

func NewHandler(service Service, authenticate func(http.Handler) http.Handler) *Handler {
	if authenticate == nil {
		authenticate = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: service, authenticate: authenticate}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.With(h.authenticate).Get("/api/v1/users/{id}", h.getUser)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.GetUser(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
