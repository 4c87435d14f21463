// Package runtime owns the live-connection registry: the mapping from
// authenticated users to their open connections, and the delivery
// fan-out across them.
package runtime

import (
	"log/slog"
	"sync"

	"chathub/contract"
	"chathub/domain"

	"github.com/google/uuid"
)

type sinkSet map[uuid.UUID]contract.Sink

// Registry maps a user id to the set of that user's live connections.
// A user may hold several simultaneous connections (devices, tabs);
// entries whose set becomes empty are removed entirely.
type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	users map[domain.UserID]sinkSet
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		users: make(map[domain.UserID]sinkSet),
	}
}

// Register adds a connection under a user id. Registering the same
// (user, sink) pair twice is idempotent.
func (r *Registry) Register(userID domain.UserID, sink contract.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(sinkSet)
		r.users[userID] = set
	}
	set[sink.ID()] = sink
}

// Unregister removes a connection from a user's set. Disconnect races
// are expected: removing an unknown pair is a no-op, not an error.
func (r *Registry) Unregister(userID domain.UserID, sink contract.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, sink.ID())

	// No dangling empty sets
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// DeliverToUser sends a payload to every connection currently
// registered for a user, best-effort. The snapshot is taken under the
// read lock; the writes happen outside it, so a slow peer never blocks
// the registry. A failed write drops that one connection and never
// aborts delivery to the others.
func (r *Registry) DeliverToUser(userID domain.UserID, payload []byte) {
	r.mu.RLock()
	set, ok := r.users[userID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	snapshot := make([]contract.Sink, 0, len(set))
	for _, sink := range set {
		snapshot = append(snapshot, sink)
	}
	r.mu.RUnlock()

	var failed []contract.Sink
	for _, sink := range snapshot {
		if err := sink.Deliver(payload); err != nil {
			r.log.Warn("dropping unresponsive connection",
				"user_id", int64(userID),
				"conn_id", sink.ID(),
				"error", err)
			failed = append(failed, sink)
		}
	}

	for _, sink := range failed {
		r.Unregister(userID, sink)
		sink.Close()
	}
}

// DeliverToUsers fans a payload out to each user in the set. Iteration
// order across users is unspecified.
func (r *Registry) DeliverToUsers(userIDs []domain.UserID, payload []byte) {
	for _, userID := range userIDs {
		r.DeliverToUser(userID, payload)
	}
}

// Connections reports how many live connections a user currently holds.
func (r *Registry) Connections(userID domain.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}
