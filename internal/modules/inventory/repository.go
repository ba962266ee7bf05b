package inventory

import (
	"context"

	"github.com/georgemunganga/stockroom-backend/internal/modules/document"
)

// Repository defines typed access to the items, suppliers and histories
// collections. Reads drop the documents the field decoder rejects.
type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	// UpdateItem writes the editable item fields. Stock is included,
	// createdAt is not.
	UpdateItem(ctx context.Context, item *Item) error
	UpdateItemStock(ctx context.Context, id string, stock int) error
	IncrementItemStock(ctx context.Context, id string, delta int) (int, error)
	UpdateItemSupplier(ctx context.Context, id, supplierID, supplierName string) error
	DeleteItem(ctx context.Context, id string) error
	ListItemsBySupplier(ctx context.Context, supplierID string) ([]Item, error)
	// ItemIDsBySupplier returns every referencing document, decodable or not.
	ItemIDsBySupplier(ctx context.Context, supplierID string) ([]string, error)
	WatchItems(ctx context.Context, fn func([]Item, error)) (document.Subscription, error)

	CreateSupplier(ctx context.Context, s *Supplier) error
	// GetSupplier decodes strictly and reports ErrUndecodable for incomplete
	// supplier documents.
	GetSupplier(ctx context.Context, id string) (*Supplier, error)
	UpdateSupplier(ctx context.Context, s *Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
	WatchSuppliers(ctx context.Context, fn func([]Supplier, error)) (document.Subscription, error)

	CreateHistory(ctx context.Context, h *History) error
	WatchHistories(ctx context.Context, fn func([]History, error)) (document.Subscription, error)
}
