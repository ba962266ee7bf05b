package document

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"
)

// Notifier carries "collection changed" signals between writers and
// subscribers of the postgres store.
type Notifier interface {
	// Notify signals that collection changed.
	Notify(ctx context.Context, collection string) error
	// Listen returns a channel that receives a value after each change of
	// collection. Signals are coalesced: a slow reader sees one pending signal.
	// The returned func stops listening and closes the channel.
	Listen(ctx context.Context, collection string) (<-chan struct{}, func(), error)
	Close() error
}

const pqChannel = "documents_changed"

// fanout keeps per-collection signal channels.
type fanout struct {
	mu     sync.Mutex
	subs   map[string]map[chan struct{}]struct{}
	closed bool
}

func newFanout() *fanout {
	return &fanout{subs: make(map[string]map[chan struct{}]struct{})}
}

func (f *fanout) add(collection string) (chan struct{}, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, nil, fmt.Errorf("notifier closed")
	}
	ch := make(chan struct{}, 1)
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[chan struct{}]struct{})
	}
	f.subs[collection][ch] = struct{}{}
	var once sync.Once
	remove := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[collection][ch]; ok {
				delete(f.subs[collection], ch)
				close(ch)
			}
		})
	}
	return ch, remove, nil
}

// signal wakes the listeners of collection, or of every collection when
// collection is empty.
func (f *fanout) signal(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, chans := range f.subs {
		if collection != "" && name != collection {
			continue
		}
		for ch := range chans {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for name, chans := range f.subs {
		for ch := range chans {
			close(ch)
		}
		delete(f.subs, name)
	}
}

type pqNotifier struct {
	db       *sql.DB
	listener *pq.Listener
	fan      *fanout
	done     chan struct{}
}

// NewPQNotifier uses PostgreSQL LISTEN/NOTIFY. dsn opens the dedicated
// listening connection; db sends notifications.
func NewPQNotifier(db *sql.DB, dsn string) (Notifier, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("document: listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(pqChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", pqChannel, err)
	}
	n := &pqNotifier{db: db, listener: listener, fan: newFanout(), done: make(chan struct{})}
	go n.run()
	return n, nil
}

func (n *pqNotifier) run() {
	for {
		select {
		case <-n.done:
			return
		case msg, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			// A nil notification follows a reconnect; anything may have changed.
			if msg == nil {
				n.fan.signal("")
				continue
			}
			n.fan.signal(msg.Extra)
		case <-time.After(90 * time.Second):
			go n.listener.Ping()
		}
	}
}

func (n *pqNotifier) Notify(ctx context.Context, collection string) error {
	_, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, pqChannel, collection)
	return err
}

func (n *pqNotifier) Listen(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	ch, remove, err := n.fan.add(collection)
	if err != nil {
		return nil, nil, err
	}
	context.AfterFunc(ctx, remove)
	return ch, remove, nil
}

func (n *pqNotifier) Close() error {
	close(n.done)
	n.fan.close()
	return n.listener.Close()
}
