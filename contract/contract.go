//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chathub/domain"

	"github.com/google/uuid"
)

// Sink is one live, authenticated connection seen from the registry
// side. Deliver must not block on the network write: implementations
// enqueue and report a full buffer or a dead peer as an error so the
// registry can drop the sink.
type Sink interface {
	ID() uuid.UUID
	Deliver(payload []byte) error
	Close()
}

// IRegistry is the process-wide table of live connections per user.
// It is the only shared mutable state of the delivery core; all access
// goes through these four operations, never raw iteration.
type IRegistry interface {
	Register(userID domain.UserID, sink Sink)
	Unregister(userID domain.UserID, sink Sink)
	DeliverToUser(userID domain.UserID, payload []byte)
	DeliverToUsers(userIDs []domain.UserID, payload []byte)
}
