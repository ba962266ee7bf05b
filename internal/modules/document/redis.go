package document

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
)

const redisChannelPrefix = "documents:"

type redisNotifier struct {
	client *redis.Client

	mu     sync.Mutex
	pubsub map[*redis.PubSub]struct{}
}

// NewRedisNotifier carries change signals over Redis pub/sub, so that several
// API processes sharing one database see each other's writes.
func NewRedisNotifier(client *redis.Client) Notifier {
	return &redisNotifier{client: client, pubsub: make(map[*redis.PubSub]struct{})}
}

func (n *redisNotifier) Notify(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, redisChannelPrefix+collection, collection).Err()
}

func (n *redisNotifier) Listen(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	ps := n.client.Subscribe(ctx, redisChannelPrefix+collection)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	n.mu.Lock()
	n.pubsub[ps] = struct{}{}
	n.mu.Unlock()

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for range msgs {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			n.mu.Lock()
			_, open := n.pubsub[ps]
			delete(n.pubsub, ps)
			n.mu.Unlock()
			if !open {
				return
			}
			if err := ps.Close(); err != nil {
				log.Printf("document: close redis subscription %s: %v", collection, err)
			}
		})
	}
	context.AfterFunc(ctx, stop)
	return out, stop, nil
}

func (n *redisNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ps := range n.pubsub {
		ps.Close()
		delete(n.pubsub, ps)
	}
	return nil
}
