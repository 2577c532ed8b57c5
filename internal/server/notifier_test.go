package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quic-chat-system/internal/protocol"
	"quic-chat-system/internal/workers"
)

func testPools(t *testing.T) *workers.PoolManager {
	t.Helper()
	pools := workers.NewPoolManager(workers.PoolConfig{NotifyWorkers: 4, GeneralWorkers: 2})
	t.Cleanup(pools.Shutdown)
	return pools
}

func TestNotifierFansOutToExactlyTheGivenUsers(t *testing.T) {
	registry := NewRegistry()
	notifier := NewNotifier(registry, testPools(t))

	online := map[int64]*recordWriter{}
	for _, id := range []int64{1, 2, 3} {
		w := &recordWriter{}
		online[id] = w
		registry.Register(id, "conn", w)
	}

	// User 3 is online but not a member; user 4 is a member but offline.
	notifier.Notify([]int64{1, 2, 4})

	assert.Equal(t, 1, online[1].count())
	assert.Equal(t, 1, online[2].count())
	assert.Equal(t, 0, online[3].count())

	// Each recipient got exactly one framed refresh marker.
	expected, err := protocol.EncodeFrame(protocol.Refresh{})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(expected, online[1].frames[0]))
}

func TestNotifierEvictsBrokenEntriesAndContinues(t *testing.T) {
	registry := NewRegistry()
	notifier := NewNotifier(registry, testPools(t))

	broken := &recordWriter{fail: true}
	healthy := &recordWriter{}
	registry.Register(1, "conn-a", broken)
	registry.Register(2, "conn-b", healthy)

	notifier.Notify([]int64{1, 2})

	assert.False(t, registry.IsOnline(1), "broken entry must be evicted")
	assert.True(t, registry.IsOnline(2))
	assert.Equal(t, 1, healthy.count())
}

func TestNotifierEmptySetIsNoOp(t *testing.T) {
	registry := NewRegistry()
	notifier := NewNotifier(registry, testPools(t))
	notifier.Notify(nil)
}
