// Package domain contains core concepts of the realtime layer.
// No transport, storage, or scheduling logic should be added here.
package domain

import "time"

// Status is the presence status a user advertises to peers.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Identity is the denormalized snapshot of a user taken at connection time.
// The durable store remains the source of truth; this is a display cache.
type Identity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Picture     string `json:"picture,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// GroupRef is the minimal view of a durable group needed for hydration.
type GroupRef struct {
	ID   string
	Name string
}

// PresenceRecord is what the durable store keeps about a user's last
// known presence, updated when the last connection drops.
type PresenceRecord struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}
