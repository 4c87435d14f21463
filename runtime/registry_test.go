package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"chathub/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordingSink collects delivered payloads; failing makes every
// Deliver call return an error.
type recordingSink struct {
	id       uuid.UUID
	mu       sync.Mutex
	payloads [][]byte
	failing  bool
	closed   bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{id: uuid.New()}
}

func (s *recordingSink) ID() uuid.UUID { return s.id }

func (s *recordingSink) Deliver(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("peer gone")
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestRegistry_Register_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	userID := domain.UserID(1)
	sink := newRecordingSink()

	// When the same pair is registered twice
	registry.Register(userID, sink)
	registry.Register(userID, sink)

	// Then the user holds exactly one connection
	req.Equal(1, registry.Connections(userID))

	registry.DeliverToUser(userID, []byte("hello"))
	req.Equal(1, sink.delivered())
}

func TestRegistry_Unregister_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	userID := domain.UserID(7)
	sink := newRecordingSink()

	registry.Register(userID, sink)
	registry.Unregister(userID, sink)

	// Then no further delivery reaches the connection
	registry.DeliverToUser(userID, []byte("after"))
	req.Zero(sink.delivered())
	req.Zero(registry.Connections(userID))
}

func TestRegistry_Unregister_Unknown_Pair_Is_NoOp(t *testing.T) {
	registry := NewRegistry(slog.Default())

	// Disconnect races must not fault
	registry.Unregister(domain.UserID(42), newRecordingSink())
	registry.DeliverToUser(domain.UserID(42), []byte("nobody"))
}

func TestRegistry_DeliverToUser_Reaches_All_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	userID := domain.UserID(3)
	first := newRecordingSink()
	second := newRecordingSink()

	// Given a user with two devices
	registry.Register(userID, first)
	registry.Register(userID, second)

	registry.DeliverToUser(userID, []byte("fan-out"))

	req.Equal(1, first.delivered())
	req.Equal(1, second.delivered())
}

func TestRegistry_Failed_Write_Drops_Only_That_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	userID := domain.UserID(9)
	healthy := newRecordingSink()
	broken := newRecordingSink()
	broken.failing = true

	registry.Register(userID, healthy)
	registry.Register(userID, broken)

	registry.DeliverToUser(userID, []byte("partial"))

	// The healthy connection got the payload, the broken one is gone
	req.Equal(1, healthy.delivered())
	req.Equal(1, registry.Connections(userID))
	req.True(broken.closed)

	registry.DeliverToUser(userID, []byte("again"))
	req.Equal(2, healthy.delivered())
}

func TestRegistry_DeliverToUsers_Skips_Unregistered_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	online := newRecordingSink()

	registry.Register(domain.UserID(1), online)

	// User 2 never connected; delivery to them is silently dropped
	registry.DeliverToUsers([]domain.UserID{1, 2}, []byte("hi"))

	req.Equal(1, online.delivered())
}

func TestRegistry_Concurrent_Register_Deliver_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	userID := domain.UserID(77)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		sink := newRecordingSink()
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Register(userID, sink)
			registry.DeliverToUser(userID, []byte("burst"))
			registry.Unregister(userID, sink)
		}()
	}
	wg.Wait()

	req.Zero(registry.Connections(userID))
}
