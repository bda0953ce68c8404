package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"campushub/contract"
	"campushub/domain"
)

type memberSet map[string]struct{}

// RoomIndex is the bidirectional identity<->room mapping. Rooms are derived
// views over durable records: hydrated once per connection lifecycle, then
// mutated incrementally. Both directions of every edge change under one lock,
// so no caller ever observes a half-applied membership change.
type RoomIndex struct {
	mu      sync.RWMutex
	byRoom  map[domain.Room]memberSet
	byUser  map[string]map[domain.Room]struct{}
	store   contract.Store
	log     *slog.Logger
}

func NewRoomIndex(store contract.Store, log *slog.Logger) *RoomIndex {
	return &RoomIndex{
		byRoom: make(map[domain.Room]memberSet),
		byUser: make(map[string]map[domain.Room]struct{}),
		store:  store,
		log:    log,
	}
}

// Hydrate computes an identity's room set from the durable store and joins
// each room. The store round-trips happen before any index mutation; the
// join loop itself is purely in-memory. The personal room is always joined,
// even when the store is unreachable, so targeted delivery keeps working on
// a degraded connection.
func (x *RoomIndex) Hydrate(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms := []domain.Room{domain.PersonalRoom(userID)}

	groups, err := x.store.FindGroupsByMember(ctx, userID)
	if err != nil {
		x.joinAll(userID, rooms)
		return rooms, fmt.Errorf("group hydration: %w", err)
	}
	for _, g := range groups {
		rooms = append(rooms, domain.GroupRoom(g.ID))
	}

	partners, err := x.store.FindConversationPartners(ctx, userID)
	if err != nil {
		x.joinAll(userID, rooms)
		return rooms, fmt.Errorf("conversation hydration: %w", err)
	}
	for _, partner := range partners {
		rooms = append(rooms, domain.ConversationRoom(userID, partner))
	}

	x.joinAll(userID, rooms)
	return rooms, nil
}

func (x *RoomIndex) joinAll(userID string, rooms []domain.Room) {
	for _, room := range rooms {
		x.Join(userID, room)
	}
}

// Join adds both directions of the edge. Idempotent.
func (x *RoomIndex) Join(userID string, room domain.Room) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.byRoom[room]; !ok {
		x.byRoom[room] = make(memberSet)
	}
	x.byRoom[room][userID] = struct{}{}

	if _, ok := x.byUser[userID]; !ok {
		x.byUser[userID] = make(map[domain.Room]struct{})
	}
	x.byUser[userID][room] = struct{}{}
}

// Leave drops both directions of the edge and removes empty sets so the
// index does not leak rooms over time. Idempotent.
func (x *RoomIndex) Leave(userID string, room domain.Room) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.leaveLocked(userID, room)
}

func (x *RoomIndex) leaveLocked(userID string, room domain.Room) {
	if members, ok := x.byRoom[room]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(x.byRoom, room)
		}
	}
	if rooms, ok := x.byUser[userID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(x.byUser, userID)
		}
	}
}

// DropIdentity removes every edge of an identity and returns the rooms it
// was in. Called when the last connection drops; the durable membership is
// untouched and will be rehydrated on the next connect.
func (x *RoomIndex) DropIdentity(userID string) []domain.Room {
	x.mu.Lock()
	defer x.mu.Unlock()

	rooms := make([]domain.Room, 0, len(x.byUser[userID]))
	for room := range x.byUser[userID] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		x.leaveLocked(userID, room)
	}
	return rooms
}

// MembersOf returns a snapshot of the room's member identities.
func (x *RoomIndex) MembersOf(room domain.Room) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	members := make([]string, 0, len(x.byRoom[room]))
	for userID := range x.byRoom[room] {
		members = append(members, userID)
	}
	return members
}

// RoomsOf returns a snapshot of the identity's rooms.
func (x *RoomIndex) RoomsOf(userID string) []domain.Room {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rooms := make([]domain.Room, 0, len(x.byUser[userID]))
	for room := range x.byUser[userID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// Contains reports whether the edge exists.
func (x *RoomIndex) Contains(userID string, room domain.Room) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	_, ok := x.byUser[userID][room]
	return ok
}

// PeersOf returns every identity sharing at least one room with userID,
// excluding userID itself. Scales with the identity's relationships, not
// with the total number of connected users.
func (x *RoomIndex) PeersOf(userID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[string]struct{})
	for room := range x.byUser[userID] {
		for member := range x.byRoom[room] {
			if member != userID {
				seen[member] = struct{}{}
			}
		}
	}
	peers := make([]string, 0, len(seen))
	for peer := range seen {
		peers = append(peers, peer)
	}
	return peers
}
