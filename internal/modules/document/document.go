// Package document is the gateway to the remote document store. Documents
// live in named collections, are addressed by generated identifiers and carry
// an untyped field bag. Typed decoding happens in the callers.
package document

import (
	"context"
	"errors"
	"sync"
)

// Collection names used by the inventory model.
const (
	CollectionItems     = "items"
	CollectionSuppliers = "suppliers"
	CollectionHistories = "histories"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrNotInteger is returned by Increment when the field holds a non-integer value.
	ErrNotInteger = errors.New("field is not an integer")
)

// Fields is the untyped field bag of a document.
type Fields map[string]any

// Document is a stored document together with its identifier.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Listener receives the full contents of a collection each time it changes.
// On a failed read it receives a nil snapshot and the error.
type Listener func(docs []Document, err error)

// Subscription is a live collection listener. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// Store defines the remote document store.
type Store interface {
	// Add stores a new document and returns its generated identifier.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Update merges fields into the top level of an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Increment adds delta to an integer field and returns the new value.
	// A missing field counts as zero.
	Increment(ctx context.Context, collection, id, field string, delta int) (int, error)
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Document, error)
	// Where returns the documents whose field equals value.
	Where(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Subscribe delivers the current snapshot and then one snapshot per change
	// until the subscription is cancelled or ctx is done.
	Subscribe(ctx context.Context, collection string, fn Listener) (Subscription, error)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *subscription {
	return &subscription{cancel: cancel}
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Clone returns a deep copy of the field bag. Nested field bags are copied,
// scalar values are shared.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		switch nested := v.(type) {
		case Fields:
			out[k] = nested.Clone()
		case map[string]any:
			out[k] = map[string]any(Fields(nested).Clone())
		default:
			out[k] = v
		}
	}
	return out
}
