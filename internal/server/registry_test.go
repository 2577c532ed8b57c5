package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordWriter is a concurrency-safe push stream stand-in.
type recordWriter struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (w *recordWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return 0, fmt.Errorf("broken stream")
	}
	w.frames = append(w.frames, append([]byte{}, p...))
	return len(p), nil
}

func (w *recordWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func TestRegistryRegisterAndPush(t *testing.T) {
	r := NewRegistry()
	w := &recordWriter{}

	r.Register(1, "conn-a", w)
	assert.True(t, r.IsOnline(1))
	assert.False(t, r.IsOnline(2))

	require.NoError(t, r.Push(1, []byte("frame")))
	assert.Equal(t, 1, w.count())
	assert.Equal(t, []byte("frame"), w.frames[0])
}

func TestRegistryPushToOfflineUserIsNoOp(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Push(99, []byte("frame")))
}

func TestRegistryReplaceOnSecondLogin(t *testing.T) {
	r := NewRegistry()
	first := &recordWriter{}
	second := &recordWriter{}

	r.Register(1, "conn-a", first)
	r.Register(1, "conn-b", second)

	require.NoError(t, r.Push(1, []byte("frame")))
	assert.Equal(t, 0, first.count(), "evicted handle must not receive pushes")
	assert.Equal(t, 1, second.count())

	// The old connection's teardown must not remove the replacement.
	r.UnregisterConn("conn-a")
	assert.True(t, r.IsOnline(1))

	r.UnregisterConn("conn-b")
	assert.False(t, r.IsOnline(1))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(1, "conn-a", &recordWriter{})
	r.Register(2, "conn-a", &recordWriter{})

	r.Unregister(1)
	assert.False(t, r.IsOnline(1))
	assert.True(t, r.IsOnline(2))

	r.UnregisterConn("conn-a")
	assert.False(t, r.IsOnline(2))
}

func TestRegistryEvictsOnWriteFailure(t *testing.T) {
	r := NewRegistry()
	w := &recordWriter{fail: true}
	r.Register(1, "conn-a", w)

	err := r.Push(1, []byte("frame"))
	require.Error(t, err)
	assert.False(t, r.IsOnline(1))

	// Later pushes are silent no-ops.
	assert.NoError(t, r.Push(1, []byte("frame")))
}

func TestRegistryReRegisterAfterFailedPush(t *testing.T) {
	r := NewRegistry()
	broken := &recordWriter{fail: true}
	r.Register(1, "conn-a", broken)

	require.Error(t, r.Push(1, []byte("frame")))

	// A fresh registration after the eviction works normally.
	fresh := &recordWriter{}
	r.Register(1, "conn-b", fresh)
	require.NoError(t, r.Push(1, []byte("frame")))
	assert.Equal(t, 1, fresh.count())
}
