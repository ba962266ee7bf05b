package document

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryListener struct {
	id int
	fn Listener
}

type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryDoc
	seq         int64

	lmu       sync.Mutex
	listeners map[string][]memoryListener
	nextID    int

	// pmu orders deliveries so the last snapshot a listener sees is current.
	pmu sync.Mutex
}

type memoryDoc struct {
	fields Fields
	seq    int64
}

// NewMemoryStore creates a document store held in process memory. Listeners
// run synchronously on the goroutine that performed the write and must not
// write to the store themselves.
func NewMemoryStore() Store {
	return &memoryStore{
		collections: make(map[string]map[string]memoryDoc),
		listeners:   make(map[string][]memoryListener),
	}
}

func (s *memoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	s.mu.Lock()
	s.put(collection, id, fields.Clone())
	s.mu.Unlock()
	s.publish(collection)
	return id, nil
}

// put must be called with mu held.
func (s *memoryStore) put(collection, id string, fields Fields) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memoryDoc)
		s.collections[collection] = docs
	}
	if fields == nil {
		fields = Fields{}
	}
	seq := s.seq
	if existing, ok := docs[id]; ok {
		seq = existing.seq
	} else {
		s.seq++
	}
	docs[id] = memoryDoc{fields: fields, seq: seq}
}

func (s *memoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: d.fields.Clone()}, nil
}

func (s *memoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	d, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	merged := d.fields.Clone()
	for k, v := range fields.Clone() {
		merged[k] = v
	}
	s.put(collection, id, merged)
	s.mu.Unlock()
	s.publish(collection)
	return nil
}

func (s *memoryStore) Increment(ctx context.Context, collection, id, field string, delta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	d, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return 0, ErrNotFound
	}
	current := 0
	if v, present := d.fields[field]; present {
		n, ok := integerValue(v)
		if !ok {
			s.mu.Unlock()
			return 0, ErrNotInteger
		}
		current = n
	}
	merged := d.fields.Clone()
	merged[field] = current + delta
	s.put(collection, id, merged)
	s.mu.Unlock()
	s.publish(collection)
	return current + delta, nil
}

func (s *memoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()
	s.publish(collection)
	return nil
}

func (s *memoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(collection, nil), nil
}

func (s *memoryStore) Where(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(collection, func(f Fields) bool {
		v, ok := f[field]
		return ok && equalValues(v, value)
	}), nil
}

// snapshot returns documents in insertion order. Must be called with mu held.
func (s *memoryStore) snapshot(collection string, keep func(Fields) bool) []Document {
	docs := s.collections[collection]
	type entry struct {
		id  string
		doc memoryDoc
	}
	entries := make([]entry, 0, len(docs))
	for id, d := range docs {
		if keep != nil && !keep(d.fields) {
			continue
		}
		entries = append(entries, entry{id: id, doc: d})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })
	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		out = append(out, Document{ID: e.id, Fields: e.doc.fields.Clone()})
	}
	return out
}

func (s *memoryStore) Subscribe(ctx context.Context, collection string, fn Listener) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[collection] = append(s.listeners[collection], memoryListener{id: id, fn: fn})
	s.lmu.Unlock()

	sub := newSubscription(func() { s.unsubscribe(collection, id) })
	context.AfterFunc(ctx, sub.Cancel)

	s.pmu.Lock()
	defer s.pmu.Unlock()
	s.mu.RLock()
	docs := s.snapshot(collection, nil)
	s.mu.RUnlock()
	fn(docs, nil)
	return sub, nil
}

func (s *memoryStore) unsubscribe(collection string, id int) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	ls := s.listeners[collection]
	for i, l := range ls {
		if l.id == id {
			s.listeners[collection] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

func (s *memoryStore) publish(collection string) {
	s.lmu.Lock()
	ls := append([]memoryListener(nil), s.listeners[collection]...)
	s.lmu.Unlock()
	if len(ls) == 0 {
		return
	}
	s.pmu.Lock()
	defer s.pmu.Unlock()
	for _, l := range ls {
		s.mu.RLock()
		docs := s.snapshot(collection, nil)
		s.mu.RUnlock()
		l.fn(docs, nil)
	}
}

func integerValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if x, ok := integerValue(a); ok {
		if y, ok := integerValue(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}
