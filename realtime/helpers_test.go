package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"campushub/domain"
	"campushub/domain/event"
	"campushub/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// memConn is an in-memory connection sink recording everything delivered.
type memConn struct {
	id     string
	mu     sync.Mutex
	events []event.Outbound
	closed bool
}

func newMemConn() *memConn {
	return &memConn{id: uuid.NewString()}
}

func (c *memConn) ID() string { return c.id }

func (c *memConn) Deliver(e event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memConn) named(name string) []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Filter(c.events, func(e event.Outbound, _ int) bool {
		return e.Name() == name
	})
}

// fakeStore is an in-memory stand-in for the durable store.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]domain.Identity
	groups      map[string][]string
	partners    map[string][]string
	messages    map[string]domain.Message
	createCalls int
	findsFail   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]domain.Identity),
		groups:   make(map[string][]string),
		partners: make(map[string][]string),
		messages: make(map[string]domain.Message),
	}
}

func (s *fakeStore) addUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = domain.Identity{ID: id, Name: "user " + id}
}

func (s *fakeStore) addGroup(groupID string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = members
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.users[userID]
	if !ok {
		return domain.Identity{}, errors.ErrNotFound
	}
	return identity, nil
}

func (s *fakeStore) FindGroupsByMember(_ context.Context, userID string) ([]domain.GroupRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findsFail {
		return nil, errors.ErrStoreUnavailable
	}
	var refs []domain.GroupRef
	for groupID, members := range s.groups {
		if lo.Contains(members, userID) {
			refs = append(refs, domain.GroupRef{ID: groupID})
		}
	}
	return refs, nil
}

func (s *fakeStore) FindConversationPartners(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findsFail {
		return nil, errors.ErrStoreUnavailable
	}
	return s.partners[userID], nil
}

func (s *fakeStore) IsGroupMember(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Contains(s.groups[groupID], userID), nil
}

func (s *fakeStore) UpdatePresence(_ context.Context, _ string, _ domain.PresenceRecord) error {
	return nil
}

func (s *fakeStore) CreateMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	m.ID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	m.Status = domain.DeliverySent
	s.messages[m.ID.String()] = m
	return m, nil
}

func (s *fakeStore) MarkDelivered(_ context.Context, messageID, userID string) (domain.Message, error) {
	return s.mark(messageID, func(m *domain.Message) {
		m.DeliveredTo = append(m.DeliveredTo, userID)
		m.Status = domain.DeliveryDelivered
	})
}

func (s *fakeStore) MarkRead(_ context.Context, messageID, userID string) (domain.Message, error) {
	return s.mark(messageID, func(m *domain.Message) {
		m.ReadBy = append(m.ReadBy, userID)
		m.Status = domain.DeliveryRead
	})
}

func (s *fakeStore) mark(messageID string, mutate func(*domain.Message)) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return domain.Message{}, errors.ErrNotFound
	}
	mutate(&m)
	s.messages[messageID] = m
	return m, nil
}

// fakeResolver maps "token-for-<id>" to <id>.
type fakeResolver struct{}

func (fakeResolver) Resolve(token string) (string, error) {
	var userID string
	if _, err := fmt.Sscanf(token, "token-for-%s", &userID); err != nil || userID == "" {
		return "", errors.ErrUnauthorized
	}
	return userID, nil
}

func tokenFor(userID string) string { return "token-for-" + userID }

type fixture struct {
	store    *fakeStore
	presence *PresenceRegistry
	rooms    *RoomIndex
	typing   *TypingTracker
	dispatch *Dispatcher
	ctrl     *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.Default()
	store := newFakeStore()
	presence := NewPresenceRegistry(log)
	rooms := NewRoomIndex(store, log)
	typing := NewTypingTracker(3 * time.Second)
	dispatch := NewDispatcher(presence, rooms, log)
	ctrl := NewController(log, fakeResolver{}, store, presence, rooms, typing, dispatch)
	return &fixture{store: store, presence: presence, rooms: rooms, typing: typing,
		dispatch: dispatch, ctrl: ctrl}
}

// connect registers a user in the fake store and runs the full connect
// sequence over a fresh in-memory connection.
func (f *fixture) connect(t *testing.T, userID string) *memConn {
	t.Helper()
	f.store.addUser(userID)
	conn := newMemConn()
	if _, err := f.ctrl.Connect(context.Background(), tokenFor(userID), conn); err != nil {
		t.Fatalf("connect %s: %v", userID, err)
	}
	return conn
}
