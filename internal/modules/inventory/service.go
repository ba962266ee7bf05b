package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/georgemunganga/stockroom-backend/internal/modules/document"
	"github.com/georgemunganga/stockroom-backend/internal/modules/location"
	"github.com/georgemunganga/stockroom-backend/internal/modules/photo"
	"github.com/shopspring/decimal"
)

// Service defines inventory business logic for items, suppliers and stock history.
type Service interface {
	// Item operations
	ListItems(ctx context.Context, category string) ([]Item, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	CreateItem(ctx context.Context, req CreateItemRequest, upload *PhotoUpload) (*Item, error)
	UpdateItem(ctx context.Context, id string, req UpdateItemRequest) (*Item, error)
	DeleteItem(ctx context.Context, id string) error
	GetItemSupplier(ctx context.Context, itemID string) (*Supplier, error)
	WatchItems(ctx context.Context) (<-chan []Item, func())

	// Stock history operations
	ListHistories(ctx context.Context, itemID string) ([]History, error)
	RecordTransaction(ctx context.Context, itemID string, req RecordTransactionRequest) (*Adjustment, error)

	// Supplier operations
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*Supplier, error)
	UpdateSupplier(ctx context.Context, id string, req UpdateSupplierRequest) (*ResyncReport, error)
	DeleteSupplier(ctx context.Context, id string) error
	ListSupplierItems(ctx context.Context, supplierID string) ([]Item, error)

	Dashboard(ctx context.Context) (*Summary, error)
}

// CreateItemRequest holds data for adding an item.
type CreateItemRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	PhotoPath   string          `json:"photo_path"`
	SupplierID  string          `json:"supplier_id"`
}

// UpdateItemRequest holds the editable item fields.
type UpdateItemRequest = CreateItemRequest

// PhotoUpload is a photo submitted with a new item.
type PhotoUpload struct {
	Body        io.Reader
	ContentType string
}

// RecordTransactionRequest holds data for a stock transaction.
type RecordTransactionRequest struct {
	Type     string    `json:"type"`
	Quantity int       `json:"quantity"`
	Date     time.Time `json:"date"`
}

// CreateSupplierRequest holds data for registering a supplier. Without a
// location the device location provider is asked.
type CreateSupplierRequest struct {
	Name     string               `json:"name"`
	Address  string               `json:"address"`
	Contact  string               `json:"contact"`
	Location *location.Coordinate `json:"location,omitempty"`
}

// UpdateSupplierRequest holds the editable supplier fields.
type UpdateSupplierRequest struct {
	Name     string              `json:"name"`
	Address  string              `json:"address"`
	Contact  string              `json:"contact"`
	Location location.Coordinate `json:"location"`
}

type service struct {
	repo    Repository
	mirror  *Mirror
	sync    *Synchronizer
	photos  photo.Storage
	locator location.Provider
}

// NewService creates a new inventory service.
func NewService(repo Repository, mirror *Mirror, sync *Synchronizer, photos photo.Storage, locator location.Provider) Service {
	return &service{
		repo:    repo,
		mirror:  mirror,
		sync:    sync,
		photos:  photos,
		locator: locator,
	}
}

func (s *service) ListItems(ctx context.Context, category string) ([]Item, error) {
	items := s.mirror.Items()
	if category == "" {
		return items, nil
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Category, category) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *service) GetItem(ctx context.Context, id string) (*Item, error) {
	if item, ok := s.mirror.Item(id); ok {
		return &item, nil
	}
	return s.repo.GetItem(ctx, id)
}

func (s *service) CreateItem(ctx context.Context, req CreateItemRequest, upload *PhotoUpload) (*Item, error) {
	item, err := s.itemFromRequest(req)
	if err != nil {
		return nil, err
	}
	if upload != nil {
		url, err := s.photos.Upload(ctx, upload.Body, upload.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload photo: %w", err)
		}
		item.PhotoPath = url
	}
	return s.mirror.AddItem(ctx, item)
}

func (s *service) UpdateItem(ctx context.Context, id string, req UpdateItemRequest) (*Item, error) {
	item, err := s.itemFromRequest(req)
	if err != nil {
		return nil, err
	}
	if item.Category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	item.ID = id
	return s.mirror.UpdateItem(ctx, item)
}

func (s *service) itemFromRequest(req CreateItemRequest) (Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Item{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Price.IsNegative() {
		return Item{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = DefaultDescription
	}
	item := Item{
		Name:        name,
		Description: description,
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		Stock:       req.Stock,
		PhotoPath:   req.PhotoPath,
		SupplierID:  req.SupplierID,
	}
	if sup, ok := s.mirror.Supplier(req.SupplierID); ok {
		item.SupplierName = sup.Name
	}
	return item, nil
}

func (s *service) DeleteItem(ctx context.Context, id string) error {
	return s.mirror.DeleteItem(ctx, id)
}

func (s *service) GetItemSupplier(ctx context.Context, itemID string) (*Supplier, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sup, err := s.mirror.GetSupplier(ctx, item.SupplierID)
	if err != nil {
		return nil, err
	}
	sup.MapsURL = location.MapsURL(sup.Location)
	return sup, nil
}

func (s *service) WatchItems(ctx context.Context) (<-chan []Item, func()) {
	return s.mirror.WatchItems()
}

func (s *service) ListHistories(ctx context.Context, itemID string) ([]History, error) {
	return s.mirror.HistoriesForItem(itemID), nil
}

func (s *service) RecordTransaction(ctx context.Context, itemID string, req RecordTransactionRequest) (*Adjustment, error) {
	t := ParseTransactionType(req.Type)
	return s.mirror.RecordTransaction(ctx, itemID, t, req.Quantity, req.Date)
}

func (s *service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	suppliers := s.mirror.Suppliers()
	for i := range suppliers {
		suppliers[i].MapsURL = location.MapsURL(suppliers[i].Location)
	}
	return suppliers, nil
}

func (s *service) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*Supplier, error) {
	sup := Supplier{
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		Contact: strings.TrimSpace(req.Contact),
	}
	if sup.Name == "" || sup.Address == "" || sup.Contact == "" {
		return nil, fmt.Errorf("%w: name, address and contact are required", ErrInvalidInput)
	}
	var provider location.Provider = s.locator
	if req.Location != nil {
		provider = location.Fixed(*req.Location)
	}
	if provider == nil {
		return nil, fmt.Errorf("locate supplier: %w", location.ErrUnknown)
	}
	created, err := s.mirror.AddSupplier(ctx, sup, provider)
	if err != nil {
		return nil, err
	}
	created.MapsURL = location.MapsURL(created.Location)
	return created, nil
}

func (s *service) UpdateSupplier(ctx context.Context, id string, req UpdateSupplierRequest) (*ResyncReport, error) {
	sup := Supplier{
		ID:       id,
		Name:     strings.TrimSpace(req.Name),
		Address:  strings.TrimSpace(req.Address),
		Contact:  strings.TrimSpace(req.Contact),
		Location: req.Location,
	}
	if sup.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := sup.Location.Validate(); err != nil {
		return nil, err
	}
	return s.sync.UpdateSupplier(ctx, sup)
}

func (s *service) DeleteSupplier(ctx context.Context, id string) error {
	return s.mirror.DeleteSupplier(ctx, id)
}

func (s *service) ListSupplierItems(ctx context.Context, supplierID string) ([]Item, error) {
	return s.mirror.ItemsBySupplier(ctx, supplierID)
}

func (s *service) Dashboard(ctx context.Context) (*Summary, error) {
	sum := s.mirror.Summary()
	return &sum, nil
}

// IsNotFound reports whether err means the addressed document is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, document.ErrNotFound) || errors.Is(err, ErrItemNotMirrored)
}
