package inventory

import "sync"

// observable holds a snapshot sequence. Writers are serialised; readers and
// watchers receive copies. Watchers only ever see the latest snapshot.
type observable[T any] struct {
	mu       sync.RWMutex
	values   []T
	watchers map[int]chan []T
	next     int
}

func newObservable[T any]() *observable[T] {
	return &observable[T]{watchers: make(map[int]chan []T)}
}

func (o *observable[T]) get() []T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return clone(o.values)
}

func (o *observable[T]) set(values []T) {
	o.update(func([]T) []T { return values })
}

// update replaces the snapshot with fn's result. fn receives a copy.
func (o *observable[T]) update(fn func([]T) []T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values = clone(fn(clone(o.values)))
	for _, ch := range o.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- clone(o.values)
	}
}

// watch delivers the current snapshot and every later one until stop is
// called. stop closes the channel.
func (o *observable[T]) watch() (<-chan []T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.next
	o.next++
	ch := make(chan []T, 1)
	ch <- clone(o.values)
	o.watchers[id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.watchers, id)
			close(ch)
		})
	}
	return ch, stop
}

func clone[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	out := make([]T, len(values))
	copy(out, values)
	return out
}
