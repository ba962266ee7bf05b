package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultResyncConcurrency bounds the per-item updates of a resync.
const DefaultResyncConcurrency = 8

// ResyncFailure is an item whose supplier fields could not be rewritten.
type ResyncFailure struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// ResyncReport describes one supplier resync. Updated items stay updated
// when others fail.
type ResyncReport struct {
	SupplierID string          `json:"supplier_id"`
	Matched    int             `json:"matched"`
	Updated    []string        `json:"updated"`
	Failed     []ResyncFailure `json:"failed"`

	errs []error
}

// Err joins the per-item failures, or returns nil.
func (r *ResyncReport) Err() error { return errors.Join(r.errs...) }

// Synchronizer copies supplier identity into the items that reference the
// supplier.
type Synchronizer struct {
	repo        Repository
	mirror      *Mirror
	concurrency int
}

func NewSynchronizer(repo Repository, mirror *Mirror, concurrency int) *Synchronizer {
	if concurrency <= 0 {
		concurrency = DefaultResyncConcurrency
	}
	return &Synchronizer{repo: repo, mirror: mirror, concurrency: concurrency}
}

// Resync writes updated's id and name into every item whose supplierId is
// supplierID, waits for all writes and reloads the item mirror. A failed
// query returns an error and skips the reload.
func (s *Synchronizer) Resync(ctx context.Context, supplierID string, updated Supplier) (*ResyncReport, error) {
	ids, err := s.repo.ItemIDsBySupplier(ctx, supplierID)
	if err != nil {
		log.Printf("inventory: resync supplier %s: %v", supplierID, err)
		return nil, err
	}
	report := &ResyncReport{SupplierID: supplierID, Matched: len(ids), Updated: []string{}, Failed: []ResyncFailure{}}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := s.repo.UpdateItemSupplier(ctx, id, updated.ID, updated.Name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("inventory: resync item %s: %v", id, err)
				report.Failed = append(report.Failed, ResyncFailure{ItemID: id, Error: err.Error()})
				report.errs = append(report.errs, err)
				return nil
			}
			report.Updated = append(report.Updated, id)
			return nil
		})
	}
	g.Wait()

	sort.Strings(report.Updated)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].ItemID < report.Failed[j].ItemID })

	if err := s.mirror.ReloadItems(); err != nil {
		log.Printf("inventory: reload items after resync: %v", err)
	}
	return report, nil
}

// UpdateSupplier writes the supplier and, once that succeeded, resyncs its
// items.
func (s *Synchronizer) UpdateSupplier(ctx context.Context, supplier Supplier) (*ResyncReport, error) {
	if supplier.ID == "" {
		return nil, fmt.Errorf("%w: supplier id is required", ErrInvalidInput)
	}
	if err := s.repo.UpdateSupplier(ctx, &supplier); err != nil {
		log.Printf("inventory: %v", err)
		return nil, err
	}
	return s.Resync(ctx, supplier.ID, supplier)
}
