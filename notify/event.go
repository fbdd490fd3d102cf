// Package notify fans committed transaction snapshots out to live
// subscribers keyed by transaction id or participant id. Registrations are
// ephemeral: nothing is persisted and there is no replay for late joiners.
package notify

import (
	"time"

	"dealflow/booking"
)

// Kind discriminates the payload carried by an Event.
type Kind string

const (
	// KindSnapshot carries the state of a transaction after a commit.
	KindSnapshot Kind = "snapshot"
	// KindHeartbeat is a synthetic liveness marker with no snapshot.
	KindHeartbeat Kind = "heartbeat"
)

// Event is the unit of delivery pushed to a subscriber channel.
type Event struct {
	Kind     Kind              `json:"kind"`
	At       time.Time         `json:"at"`
	Snapshot *booking.Snapshot `json:"snapshot,omitempty"`
}
