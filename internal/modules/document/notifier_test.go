package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPQNotifierListenEndsWithContext(t *testing.T) {
	n := &pqNotifier{fan: newFanout()}
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := n.Listen(ctx, CollectionItems)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	n.fan.mu.Lock()
	defer n.fan.mu.Unlock()
	assert.Empty(t, n.fan.subs[CollectionItems])
}
