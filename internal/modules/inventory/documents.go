package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgemunganga/stockroom-backend/internal/modules/document"
)

// ErrUndecodable is returned when a stored document exists but cannot be
// mapped onto its entity.
var ErrUndecodable = errors.New("document cannot be decoded")

type documentRepository struct{ store document.Store }

// NewDocumentRepository creates a repository over a document store.
func NewDocumentRepository(store document.Store) Repository {
	return &documentRepository{store: store}
}

func (r *documentRepository) CreateItem(ctx context.Context, item *Item) error {
	fields := itemFields(item)
	fields[fieldCreatedAt] = formatTime(item.CreatedAt)
	id, err := r.store.Add(ctx, document.CollectionItems, fields)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	item.ID = id
	return nil
}

func (r *documentRepository) GetItem(ctx context.Context, id string) (*Item, error) {
	doc, err := r.store.Get(ctx, document.CollectionItems, id)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	item, ok := DecodeItem(*doc)
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, ErrUndecodable)
	}
	return &item, nil
}

func (r *documentRepository) ListItems(ctx context.Context) ([]Item, error) {
	docs, err := r.store.List(ctx, document.CollectionItems)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return decodeAll("item", docs, DecodeItem), nil
}

func (r *documentRepository) UpdateItem(ctx context.Context, item *Item) error {
	if err := r.store.Update(ctx, document.CollectionItems, item.ID, itemFields(item)); err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	return nil
}

func (r *documentRepository) UpdateItemStock(ctx context.Context, id string, stock int) error {
	err := r.store.Update(ctx, document.CollectionItems, id, document.Fields{fieldStock: stock})
	if err != nil {
		return fmt.Errorf("update stock of item %s: %w", id, err)
	}
	return nil
}

func (r *documentRepository) IncrementItemStock(ctx context.Context, id string, delta int) (int, error) {
	stock, err := r.store.Increment(ctx, document.CollectionItems, id, fieldStock, delta)
	if err != nil {
		return 0, fmt.Errorf("increment stock of item %s: %w", id, err)
	}
	return stock, nil
}

func (r *documentRepository) UpdateItemSupplier(ctx context.Context, id, supplierID, supplierName string) error {
	err := r.store.Update(ctx, document.CollectionItems, id, document.Fields{
		fieldSupplierID:   supplierID,
		fieldSupplierName: supplierName,
	})
	if err != nil {
		return fmt.Errorf("update supplier of item %s: %w", id, err)
	}
	return nil
}

func (r *documentRepository) DeleteItem(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, document.CollectionItems, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

func (r *documentRepository) ListItemsBySupplier(ctx context.Context, supplierID string) ([]Item, error) {
	docs, err := r.store.Where(ctx, document.CollectionItems, fieldSupplierID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("query items of supplier %s: %w", supplierID, err)
	}
	return decodeAll("item", docs, DecodeItem), nil
}

func (r *documentRepository) ItemIDsBySupplier(ctx context.Context, supplierID string) ([]string, error) {
	docs, err := r.store.Where(ctx, document.CollectionItems, fieldSupplierID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("query items of supplier %s: %w", supplierID, err)
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

func (r *documentRepository) WatchItems(ctx context.Context, fn func([]Item, error)) (document.Subscription, error) {
	return r.store.Subscribe(ctx, document.CollectionItems, func(docs []document.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeAll("item", docs, DecodeItem), nil)
	})
}

func (r *documentRepository) CreateSupplier(ctx context.Context, s *Supplier) error {
	fields := supplierFields(s)
	fields[fieldCreatedAt] = formatTime(s.CreatedAt)
	id, err := r.store.Add(ctx, document.CollectionSuppliers, fields)
	if err != nil {
		return fmt.Errorf("add supplier: %w", err)
	}
	s.ID = id
	return nil
}

func (r *documentRepository) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	doc, err := r.store.Get(ctx, document.CollectionSuppliers, id)
	if err != nil {
		return nil, fmt.Errorf("get supplier %s: %w", id, err)
	}
	s, ok := DecodeSupplierStrict(*doc)
	if !ok {
		return nil, fmt.Errorf("supplier %s: %w", id, ErrUndecodable)
	}
	return &s, nil
}

func (r *documentRepository) UpdateSupplier(ctx context.Context, s *Supplier) error {
	if err := r.store.Update(ctx, document.CollectionSuppliers, s.ID, supplierFields(s)); err != nil {
		return fmt.Errorf("update supplier %s: %w", s.ID, err)
	}
	return nil
}

func (r *documentRepository) DeleteSupplier(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, document.CollectionSuppliers, id); err != nil {
		return fmt.Errorf("delete supplier %s: %w", id, err)
	}
	return nil
}

func (r *documentRepository) WatchSuppliers(ctx context.Context, fn func([]Supplier, error)) (document.Subscription, error) {
	return r.store.Subscribe(ctx, document.CollectionSuppliers, func(docs []document.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeAll("supplier", docs, DecodeSupplier), nil)
	})
}

func (r *documentRepository) CreateHistory(ctx context.Context, h *History) error {
	id, err := r.store.Add(ctx, document.CollectionHistories, document.Fields{
		fieldItemID:   h.ItemID,
		fieldType:     string(h.Type),
		fieldQuantity: h.Quantity,
		fieldDate:     formatTime(h.Date),
	})
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	h.ID = id
	return nil
}

func (r *documentRepository) WatchHistories(ctx context.Context, fn func([]History, error)) (document.Subscription, error) {
	return r.store.Subscribe(ctx, document.CollectionHistories, func(docs []document.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeAll("history", docs, DecodeHistory), nil)
	})
}

func itemFields(item *Item) document.Fields {
	return document.Fields{
		fieldName:         item.Name,
		fieldDescription:  item.Description,
		fieldPrice:        item.Price.InexactFloat64(),
		fieldCategory:     item.Category,
		fieldStock:        item.Stock,
		fieldPhotoPath:    item.PhotoPath,
		fieldSupplierID:   item.SupplierID,
		fieldSupplierName: item.SupplierName,
	}
}

func supplierFields(s *Supplier) document.Fields {
	return document.Fields{
		fieldName:    s.Name,
		fieldAddress: s.Address,
		fieldContact: s.Contact,
		fieldLocation: document.Fields{
			fieldLatitude:  s.Location.Latitude,
			fieldLongitude: s.Location.Longitude,
		},
	}
}
