//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"campushub/domain"
	"campushub/domain/event"
)

// Connection is one live transport channel owned by one identity.
// Deliver must never block the caller: transports buffer and drop rather
// than stall the dispatch path. Close tears the transport down; the
// lifecycle side effects of closing are the caller's responsibility.
type Connection interface {
	ID() string
	Deliver(e event.Outbound) error
	Close() error
}

// IdentityResolver maps an inbound credential to a durable user ID.
// Consulted exactly once per connection, before any state is created.
type IdentityResolver interface {
	Resolve(token string) (userID string, err error)
}

// Store is the durable document store the realtime core reads and writes.
// The core owns no caching on top of it.
type Store interface {
	GetUser(ctx context.Context, userID string) (domain.Identity, error)
	FindGroupsByMember(ctx context.Context, userID string) ([]domain.GroupRef, error)
	FindConversationPartners(ctx context.Context, userID string) ([]string, error)
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
	UpdatePresence(ctx context.Context, userID string, rec domain.PresenceRecord) error
	CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	MarkDelivered(ctx context.Context, messageID, userID string) (domain.Message, error)
	MarkRead(ctx context.Context, messageID, userID string) (domain.Message, error)
}

// Dispatcher fans an event out to live connections. Delivery is
// fire-and-forget relative to durable storage: persistence must already
// have completed before a dispatcher call is made.
type Dispatcher interface {
	// ToIdentity delivers one copy to each of the identity's connections
	// and returns the number delivered; zero for an offline identity is
	// not an error.
	ToIdentity(userID string, e event.Outbound) int
	// ToRoom delivers to every member's every connection, skipping all
	// connections of exclude when non-empty.
	ToRoom(room domain.Room, e event.Outbound, exclude string) int
}

// Worker is a long-running loop run under supervision.
// Workers do not protect themselves against panics; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

// ISupervisor runs workers, restarts them on crash, and waits for them
// on shutdown.
type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding a naming method on the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Clock is the time source used by expiry logic; tests substitute it.
type Clock func() time.Time
