package server

import (
	"log/slog"

	"quic-chat-system/internal/protocol"
	"quic-chat-system/internal/workers"
)

// Notifier fans refresh markers out to online users. Writes run on the
// notification pool, one task per user, and Notify waits for the whole
// fan-out so the caller's stream never starts its next request with pushes
// still pending.
type Notifier struct {
	registry *Registry
	pools    *workers.PoolManager
	frame    []byte
}

// NewNotifier creates a notifier bound to the registry. The refresh frame
// is encoded once; every push writes the same bytes.
func NewNotifier(registry *Registry, pools *workers.PoolManager) *Notifier {
	frame, err := protocol.EncodeFrame(protocol.Refresh{})
	if err != nil {
		// The sentinel is a fixed empty struct; failure here is a
		// programming error.
		panic(err)
	}
	return &Notifier{registry: registry, pools: pools, frame: frame}
}

// Notify sends one refresh frame to each listed user that is online.
// Offline users are skipped; a failed write evicts the user's registry
// entry and the fan-out continues with the remaining users.
func (n *Notifier) Notify(userIDs []int64) {
	if len(userIDs) == 0 {
		return
	}

	group := n.pools.NotifyGroup()
	for _, userID := range userIDs {
		id := userID
		group.Submit(func() {
			if err := n.registry.Push(id, n.frame); err != nil {
				slog.Warn("Push write failed, entry evicted", "user_id", id, "error", err)
			}
		})
	}
	group.Wait()
}
