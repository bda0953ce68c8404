package realtime

import (
	"log/slog"

	"campushub/domain"
	"campushub/domain/event"
)

// Dispatcher fans events out to live connections. It never touches the
// durable store: persistence is the caller's job and must complete before
// dispatch, so a delivered event always reflects already-durable state.
type Dispatcher struct {
	presence *PresenceRegistry
	rooms    *RoomIndex
	log      *slog.Logger
}

func NewDispatcher(presence *PresenceRegistry, rooms *RoomIndex, log *slog.Logger) *Dispatcher {
	return &Dispatcher{presence: presence, rooms: rooms, log: log}
}

// ToIdentity delivers one copy to each of the identity's connections and
// returns the count delivered. Zero for an offline identity is not an
// error; the caller decides whether that matters.
func (d *Dispatcher) ToIdentity(userID string, e event.Outbound) int {
	delivered := 0
	for _, conn := range d.presence.ConnectionsOf(userID) {
		if err := conn.Deliver(e); err != nil {
			d.log.Warn("delivery failed", "event", e.Name(), "user", userID, "conn", conn.ID(), "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// ToRoom delivers to every member's every connection, skipping all of the
// excluded identity's connections. Membership is snapshotted once at call
// time; a concurrent membership change may or may not be reflected.
func (d *Dispatcher) ToRoom(room domain.Room, e event.Outbound, exclude string) int {
	delivered := 0
	for _, member := range d.rooms.MembersOf(room) {
		if member == exclude {
			continue
		}
		delivered += d.ToIdentity(member, e)
	}
	return delivered
}
