package timeline

import "time"

// Record mirrors the timeline_events table: one immutable audit entry per
// committed business event on a transaction.
type Record struct {
	ID            int64
	TransactionID string
	Type          string
	ActorID       *string
	Payload       []byte
	CreatedAt     time.Time
}
