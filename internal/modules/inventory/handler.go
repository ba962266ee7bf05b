package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/georgemunganga/stockroom-backend/internal/modules/location"
	"github.com/georgemunganga/stockroom-backend/internal/modules/photo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

// maxUploadSize caps a multipart item body, photo included.
const maxUploadSize = 10 << 20

// Handler exposes inventory HTTP endpoints.
type Handler struct {
	service      Service
	authenticate func(http.Handler) http.Handler
	timeout      time.Duration
}

// NewHandler creates an inventory handler. authenticate guards every route;
// timeout bounds every route except the item stream.
func NewHandler(service Service, authenticate func(http.Handler) http.Handler, timeout time.Duration) *Handler {
	if authenticate == nil {
		authenticate = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: service, authenticate: authenticate, timeout: timeout}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/items/stream", h.streamItems)

		r.Group(func(r chi.Router) {
			if h.timeout > 0 {
				r.Use(middleware.Timeout(h.timeout))
			}
			r.Get("/dashboard", h.dashboard)

			// Item endpoints
			r.Get("/items", h.listItems) // ?category=...
			r.Post("/items", h.createItem)
			r.Get("/items/{id}", h.getItem)
			r.Put("/items/{id}", h.updateItem)
			r.Delete("/items/{id}", h.deleteItem)
			r.Get("/items/{id}/supplier", h.getItemSupplier)

			// Stock history endpoints
			r.Get("/items/{id}/histories", h.listHistories)
			r.Post("/items/{id}/histories", h.recordTransaction)

			// Supplier endpoints
			r.Get("/suppliers", h.listSuppliers)
			r.Post("/suppliers", h.createSupplier)
			r.Put("/suppliers/{id}", h.updateSupplier)
			r.Delete("/suppliers/{id}", h.deleteSupplier)
			r.Get("/suppliers/{id}/items", h.listSupplierItems)
		})
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, location.ErrInvalidCoordinate),
		errors.Is(err, photo.ErrUnsupportedType),
		errors.Is(err, photo.ErrEmpty):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, location.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, location.ErrUnknown):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUndecodable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	respond(w, statusFor(err), map[string]string{"error": err.Error()})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Dashboard(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, sum)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, items)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var (
		req    CreateItemRequest
		upload *PhotoUpload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			respond(w, status, map[string]string{"error": err.Error()})
			return
		}
		var err error
		if req, err = itemRequestFromForm(r); err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		file, header, err := r.FormFile("photo")
		switch {
		case err == nil:
			defer file.Close()
			upload = &PhotoUpload{Body: file, ContentType: header.Header.Get("Content-Type")}
		case !errors.Is(err, http.ErrMissingFile):
			respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	item, err := h.service.CreateItem(r.Context(), req, upload)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, item)
}

func itemRequestFromForm(r *http.Request) (CreateItemRequest, error) {
	req := CreateItemRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		PhotoPath:   r.FormValue("photo_path"),
		SupplierID:  r.FormValue("supplier_id"),
	}
	if v := r.FormValue("price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return req, fmt.Errorf("invalid price: %w", err)
		}
		req.Price = price
	}
	if v := r.FormValue("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid stock: %w", err)
		}
		req.Stock = stock
	}
	return req, nil
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	item, err := h.service.UpdateItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getItemSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := h.service.GetItemSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, sup)
}

func (h *Handler) listHistories(w http.ResponseWriter, r *http.Request) {
	histories, err := h.service.ListHistories(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, histories)
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	adj, err := h.service.RecordTransaction(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, adj)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req CreateSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sup, err := h.service.CreateSupplier(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, sup)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	var req UpdateSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	report, err := h.service.UpdateSupplier(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSupplierItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSupplierItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, items)
}

// streamItems sends every item snapshot as a server-sent event.
func (h *Handler) streamItems(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	snapshots, stop := h.service.WatchItems(r.Context())
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case items, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(items)
			if err != nil {
				log.Printf("inventory: encode item snapshot: %v", err)
				return
			}
			fmt.Fprintf(w, "event: items\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
