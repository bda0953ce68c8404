// Package realtime holds the in-process presence, membership, typing, and
// dispatch state. All shared state lives behind the narrow contracts in this
// package; nothing outside it reaches into the maps directly.
package realtime

import (
	"log/slog"
	"sync"
	"time"

	"campushub/contract"
	"campushub/domain"
)

// presenceEntry exists if and only if the identity has at least one live
// connection. Status is a property of the entry and is discarded with it:
// there is no residual status once the last connection drops.
type presenceEntry struct {
	identity domain.Identity
	status   domain.Status
	conns    map[string]*connState
}

type connState struct {
	conn         contract.Connection
	connectedAt  time.Time
	lastActivity time.Time
}

// IdleConn pairs a stale connection with its owner for the idle sweep.
type IdleConn struct {
	UserID string
	Conn   contract.Connection
}

// PresenceRegistry is the process-wide table of connected identities.
// Operations on unknown identities are no-ops, never errors, so duplicate
// disconnect events are harmless.
type PresenceRegistry struct {
	mu      sync.RWMutex
	entries map[string]*presenceEntry
	now     contract.Clock
	log     *slog.Logger
}

func NewPresenceRegistry(log *slog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		entries: make(map[string]*presenceEntry),
		now:     time.Now,
		log:     log,
	}
}

// Register adds a connection to the identity's entry, creating it if absent.
// Idempotent per (identity, connection). Reports whether the entry was
// created: the decision is made under the registry's lock, so concurrent
// registrations of the same identity see exactly one true.
func (p *PresenceRegistry) Register(identity domain.Identity, conn contract.Connection) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[identity.ID]
	if !ok {
		entry = &presenceEntry{
			identity: identity,
			status:   domain.StatusOnline,
			conns:    make(map[string]*connState),
		}
		p.entries[identity.ID] = entry
		first = true
	}
	now := p.now()
	entry.conns[conn.ID()] = &connState{conn: conn, connectedAt: now, lastActivity: now}
	return first
}

// Deregister removes the connection and reports whether the identity is now
// fully offline. The entry is deleted with its last connection.
func (p *PresenceRegistry) Deregister(userID, connID string) (offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		return false
	}
	delete(entry.conns, connID)
	if len(entry.conns) == 0 {
		delete(p.entries, userID)
		return true
	}
	return false
}

// Touch refreshes last-activity on every connection of the identity.
func (p *PresenceRegistry) Touch(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		return
	}
	now := p.now()
	for _, cs := range entry.conns {
		cs.lastActivity = now
	}
}

// TouchConn refreshes last-activity on a single connection; used on every
// inbound frame.
func (p *PresenceRegistry) TouchConn(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[userID]; ok {
		if cs, ok := entry.conns[connID]; ok {
			cs.lastActivity = p.now()
		}
	}
}

func (p *PresenceRegistry) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[userID]
	return ok
}

// SetStatus updates the status of an existing entry. Returns false when the
// identity has no entry; there is nothing to attach a status to.
func (p *PresenceRegistry) SetStatus(userID string, status domain.Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		return false
	}
	entry.status = status
	return true
}

// StatusOf returns offline for identities without an entry.
func (p *PresenceRegistry) StatusOf(userID string) domain.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, ok := p.entries[userID]; ok {
		return entry.status
	}
	return domain.StatusOffline
}

// ConnectionsOf returns a snapshot of the identity's live connections.
func (p *PresenceRegistry) ConnectionsOf(userID string) []contract.Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[userID]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(entry.conns))
	for _, cs := range entry.conns {
		conns = append(conns, cs.conn)
	}
	return conns
}

// IdentityOf returns the display snapshot cached at connection time.
func (p *PresenceRegistry) IdentityOf(userID string) (domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, ok := p.entries[userID]; ok {
		return entry.identity, true
	}
	return domain.Identity{}, false
}

// IdleConnections snapshots every connection whose last activity is older
// than the threshold. The caller owns closing them.
func (p *PresenceRegistry) IdleConnections(threshold time.Duration) []IdleConn {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := p.now().Add(-threshold)
	var idle []IdleConn
	for userID, entry := range p.entries {
		for _, cs := range entry.conns {
			if cs.lastActivity.Before(cutoff) {
				idle = append(idle, IdleConn{UserID: userID, Conn: cs.conn})
			}
		}
	}
	return idle
}
