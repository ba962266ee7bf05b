package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/georgemunganga/stockroom-backend/internal/modules/document"
	"github.com/georgemunganga/stockroom-backend/internal/modules/location"
)

// StockMode selects how AdjustStock computes the new stock value.
type StockMode string

const (
	// StockModeLocal computes the new stock from the mirrored value and
	// writes it back. Concurrent adjustments of one item can lose updates.
	StockModeLocal StockMode = "local"
	// StockModeAtomic increments the stored value and mirrors the result.
	StockModeAtomic StockMode = "atomic"
)

// ParseStockMode maps a configuration value onto a StockMode. Empty means local.
func ParseStockMode(s string) (StockMode, error) {
	switch StockMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", StockModeLocal:
		return StockModeLocal, nil
	case StockModeAtomic:
		return StockModeAtomic, nil
	default:
		return "", fmt.Errorf("unknown stock mode %q", s)
	}
}

var (
	// ErrItemNotMirrored is returned by AdjustStock for items the mirror does not hold.
	ErrItemNotMirrored = errors.New("item is not mirrored")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")

	errMirrorClosed = errors.New("mirror is closed")
)

// Mirror keeps in-memory copies of the items, suppliers and histories
// collections, refreshed by live subscriptions and by the mirror's own
// writes. Failed remote writes are logged and returned; the mirror is not
// rolled back.
type Mirror struct {
	repo Repository
	mode StockMode

	items     *observable[Item]
	suppliers *observable[Supplier]
	histories *observable[History]

	mu     sync.Mutex
	base   context.Context
	subs   map[string]document.Subscription
	closed bool
}

// NewMirror creates an empty mirror. Call Start to open the subscriptions.
func NewMirror(repo Repository, mode StockMode) *Mirror {
	if mode == "" {
		mode = StockModeLocal
	}
	return &Mirror{
		repo:      repo,
		mode:      mode,
		items:     newObservable[Item](),
		suppliers: newObservable[Supplier](),
		histories: newObservable[History](),
		base:      context.Background(),
		subs:      make(map[string]document.Subscription),
	}
}

// Start subscribes to all three collections. Subscriptions end with ctx or
// Close.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()
	if err := m.SubscribeItems(ctx); err != nil {
		return err
	}
	if err := m.SubscribeSuppliers(ctx); err != nil {
		return err
	}
	return m.SubscribeHistories(ctx)
}

// SubscribeItems (re)opens the items subscription. Each snapshot replaces the
// mirrored items.
func (m *Mirror) SubscribeItems(ctx context.Context) error {
	if m.isClosed() {
		return errMirrorClosed
	}
	sub, err := m.repo.WatchItems(ctx, func(items []Item, err error) {
		if err != nil {
			log.Printf("inventory: fetch items: %v", err)
			return
		}
		m.items.set(items)
	})
	if err != nil {
		return fmt.Errorf("subscribe to items: %w", err)
	}
	return m.replace(document.CollectionItems, sub)
}

// SubscribeSuppliers (re)opens the suppliers subscription.
func (m *Mirror) SubscribeSuppliers(ctx context.Context) error {
	if m.isClosed() {
		return errMirrorClosed
	}
	sub, err := m.repo.WatchSuppliers(ctx, func(suppliers []Supplier, err error) {
		if err != nil {
			log.Printf("inventory: fetch suppliers: %v", err)
			return
		}
		m.suppliers.set(suppliers)
	})
	if err != nil {
		return fmt.Errorf("subscribe to suppliers: %w", err)
	}
	return m.replace(document.CollectionSuppliers, sub)
}

// SubscribeHistories (re)opens the histories subscription.
func (m *Mirror) SubscribeHistories(ctx context.Context) error {
	if m.isClosed() {
		return errMirrorClosed
	}
	sub, err := m.repo.WatchHistories(ctx, func(histories []History, err error) {
		if err != nil {
			log.Printf("inventory: fetch histories: %v", err)
			return
		}
		m.histories.set(histories)
	})
	if err != nil {
		return fmt.Errorf("subscribe to histories: %w", err)
	}
	return m.replace(document.CollectionHistories, sub)
}

// ReloadItems re-subscribes to items under the context given to Start.
func (m *Mirror) ReloadItems() error {
	m.mu.Lock()
	ctx := m.base
	m.mu.Unlock()
	return m.SubscribeItems(ctx)
}

func (m *Mirror) replace(collection string, sub document.Subscription) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.Cancel()
		return errMirrorClosed
	}
	prev := m.subs[collection]
	m.subs[collection] = sub
	m.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	return nil
}

func (m *Mirror) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close cancels every subscription. The mirrored values stay readable.
func (m *Mirror) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]document.Subscription)
	m.closed = true
	m.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}

func (m *Mirror) Items() []Item         { return m.items.get() }
func (m *Mirror) Suppliers() []Supplier { return m.suppliers.get() }
func (m *Mirror) Histories() []History  { return m.histories.get() }

// Item looks up a mirrored item.
func (m *Mirror) Item(id string) (Item, bool) {
	for _, item := range m.items.get() {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Supplier looks up a mirrored supplier.
func (m *Mirror) Supplier(id string) (Supplier, bool) {
	for _, s := range m.suppliers.get() {
		if s.ID == id {
			return s, true
		}
	}
	return Supplier{}, false
}

// WatchItems streams item snapshots until stop is called.
func (m *Mirror) WatchItems() (<-chan []Item, func()) { return m.items.watch() }

func (m *Mirror) WatchSuppliers() (<-chan []Supplier, func()) { return m.suppliers.watch() }

func (m *Mirror) WatchHistories() (<-chan []History, func()) { return m.histories.watch() }

// AdjustStock applies delta to the item's stock and appends a History with
// the magnitude of delta. The two writes are independent: both are attempted
// and their failures are joined.
func (m *Mirror) AdjustStock(ctx context.Context, itemID string, delta int, t TransactionType, date time.Time) (*Adjustment, error) {
	item, ok := m.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("adjust stock of %s: %w", itemID, ErrItemNotMirrored)
	}

	var stockErr error
	switch m.mode {
	case StockModeAtomic:
		stock, err := m.repo.IncrementItemStock(ctx, itemID, delta)
		if err != nil {
			stockErr = err
			break
		}
		item.Stock = stock
		m.setStock(itemID, stock)
	default:
		item.Stock += delta
		m.setStock(itemID, item.Stock)
		stockErr = m.repo.UpdateItemStock(ctx, itemID, item.Stock)
	}
	if stockErr != nil {
		log.Printf("inventory: %v", stockErr)
	}

	qty := delta
	if qty < 0 {
		qty = -qty
	}
	h := History{ItemID: itemID, Type: t, Quantity: qty, Date: date}
	histErr := m.repo.CreateHistory(ctx, &h)
	if histErr != nil {
		log.Printf("inventory: %v", histErr)
	}

	return &Adjustment{Item: item, History: h}, errors.Join(stockErr, histErr)
}

func (m *Mirror) setStock(itemID string, stock int) {
	m.items.update(func(items []Item) []Item {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Stock = stock
			}
		}
		return items
	})
}

// RecordTransaction signs quantity from t and adjusts the stock.
func (m *Mirror) RecordTransaction(ctx context.Context, itemID string, t TransactionType, quantity int, date time.Time) (*Adjustment, error) {
	if t.Sign() == 0 {
		return nil, fmt.Errorf("%w: transaction type must be %q or %q", ErrInvalidInput, TransactionIncrease, TransactionDecrease)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if date.IsZero() {
		date = time.Now()
	}
	return m.AdjustStock(ctx, itemID, t.Sign()*quantity, t, date)
}

// AddItem stores a new item. The mirror picks it up from the items
// subscription.
func (m *Mirror) AddItem(ctx context.Context, item Item) (*Item, error) {
	if item.Category == "" {
		item.Category = DefaultCategory
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if err := m.repo.CreateItem(ctx, &item); err != nil {
		log.Printf("inventory: %v", err)
		return nil, err
	}
	return &item, nil
}

// UpdateItem writes the item and reads it back to refresh the mirrored
// copy. A failed read-back is logged and the written item returned.
func (m *Mirror) UpdateItem(ctx context.Context, item Item) (*Item, error) {
	if err := m.repo.UpdateItem(ctx, &item); err != nil {
		log.Printf("inventory: %v", err)
		return nil, err
	}
	fresh, err := m.repo.GetItem(ctx, item.ID)
	if err != nil {
		log.Printf("inventory: fetch updated item: %v", err)
		return &item, nil
	}
	m.items.update(func(items []Item) []Item {
		for i := range items {
			if items[i].ID == fresh.ID {
				items[i] = *fresh
			}
		}
		return items
	})
	return fresh, nil
}

// DeleteItem removes the item. Histories referencing it are kept.
func (m *Mirror) DeleteItem(ctx context.Context, id string) error {
	if err := m.repo.DeleteItem(ctx, id); err != nil {
		log.Printf("inventory: %v", err)
		return err
	}
	m.items.update(func(items []Item) []Item {
		return removeByID(items, id, func(i Item) string { return i.ID })
	})
	return nil
}

// AddSupplier stores a new supplier located where provider reports.
func (m *Mirror) AddSupplier(ctx context.Context, s Supplier, provider location.Provider) (*Supplier, error) {
	coord, err := provider.RequestCurrentLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("locate supplier: %w", err)
	}
	s.Location = coord
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := m.repo.CreateSupplier(ctx, &s); err != nil {
		log.Printf("inventory: %v", err)
		return nil, err
	}
	return &s, nil
}

// DeleteSupplier removes the supplier document only. Items keep their
// supplier reference.
func (m *Mirror) DeleteSupplier(ctx context.Context, id string) error {
	if err := m.repo.DeleteSupplier(ctx, id); err != nil {
		log.Printf("inventory: %v", err)
		return err
	}
	m.suppliers.update(func(suppliers []Supplier) []Supplier {
		return removeByID(suppliers, id, func(s Supplier) string { return s.ID })
	})
	return nil
}

// GetSupplier fetches one supplier with strict decoding.
func (m *Mirror) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	if id == "" {
		return nil, fmt.Errorf("get supplier: %w", document.ErrNotFound)
	}
	s, err := m.repo.GetSupplier(ctx, id)
	if err != nil {
		log.Printf("inventory: %v", err)
		return nil, err
	}
	return s, nil
}

// ItemsBySupplier queries the store for the items referencing supplierID.
func (m *Mirror) ItemsBySupplier(ctx context.Context, supplierID string) ([]Item, error) {
	items, err := m.repo.ListItemsBySupplier(ctx, supplierID)
	if err != nil {
		log.Printf("inventory: %v", err)
		return nil, err
	}
	return items, nil
}

// HistoriesForItem returns the mirrored history of one item, newest first.
func (m *Mirror) HistoriesForItem(itemID string) []History {
	var out []History
	for _, h := range m.histories.get() {
		if h.ItemID == itemID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return clone(out)
}

// Summary computes the dashboard totals from the mirror.
func (m *Mirror) Summary() Summary {
	items := m.items.get()
	s := Summary{
		TotalItems:      len(items),
		TotalSuppliers:  len(m.suppliers.get()),
		ItemsByCategory: make(map[string]int),
	}
	for _, item := range items {
		s.TotalStock += item.Stock
		s.ItemsByCategory[item.Category]++
	}
	return s
}

func removeByID[T any](values []T, id string, key func(T) string) []T {
	out := values[:0]
	for _, v := range values {
		if key(v) != id {
			out = append(out, v)
		}
	}
	return out
}
