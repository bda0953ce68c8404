package domain

import (
	"fmt"
	"strings"

	"campushub/errors"
)

// RoomKind discriminates the three fan-out targets.
type RoomKind string

const (
	// KindGroup maps 1:1 to a durable group; membership mirrors the group's member list.
	KindGroup RoomKind = "group"
	// KindConversation maps 1:1 to an unordered pair of identities.
	KindConversation RoomKind = "conversation"
	// KindPersonal maps 1:1 to a single identity, for targeted delivery.
	KindPersonal RoomKind = "user"
)

// Room is a logical fan-out target. Rooms are derived views, never persisted:
// they are recomputed from durable records at connection time and mutated
// incrementally as membership events occur. The zero value is not a valid room.
type Room struct {
	Kind RoomKind
	// Ref is the group ID, the canonical conversation key, or the user ID.
	Ref string
}

func GroupRoom(groupID string) Room {
	return Room{Kind: KindGroup, Ref: groupID}
}

// ConversationRoom builds the room for an unordered identity pair.
// The key is canonical: both orders of (a, b) yield the same room.
func ConversationRoom(a, b string) Room {
	if b < a {
		a, b = b, a
	}
	return Room{Kind: KindConversation, Ref: a + ":" + b}
}

func PersonalRoom(userID string) Room {
	return Room{Kind: KindPersonal, Ref: userID}
}

// ID is the wire form of the room, e.g. "group:42" or "conversation:a:b".
func (r Room) ID() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Ref)
}

func (r Room) String() string { return r.ID() }

// ParseRoomID parses the wire form back into a Room.
func ParseRoomID(s string) (Room, error) {
	kind, ref, ok := strings.Cut(s, ":")
	if !ok || ref == "" {
		return Room{}, fmt.Errorf("%w: %q", errors.ErrInvalidRoomID, s)
	}
	switch RoomKind(kind) {
	case KindGroup, KindPersonal:
		return Room{Kind: RoomKind(kind), Ref: ref}, nil
	case KindConversation:
		a, b, ok := strings.Cut(ref, ":")
		if !ok || a == "" || b == "" {
			return Room{}, fmt.Errorf("%w: %q", errors.ErrInvalidRoomID, s)
		}
		return ConversationRoom(a, b), nil
	}
	return Room{}, fmt.Errorf("%w: unknown kind in %q", errors.ErrInvalidRoomID, s)
}
