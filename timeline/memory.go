package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryLog is an in-process timeline used by tests and Postgres-less
// deployments.
type MemoryLog struct {
	mu      sync.Mutex
	nextID  int64
	records map[string][]Record
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{records: make(map[string][]Record)}
}

func (l *MemoryLog) Append(_ context.Context, transactionID, eventType, actorID string, payload map[string]any) error {
	if transactionID == "" {
		return fmt.Errorf("timeline: missing transaction id")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("timeline: marshal payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	rec := Record{
		ID:            l.nextID,
		TransactionID: transactionID,
		Type:          eventType,
		Payload:       body,
		CreatedAt:     time.Now().UTC(),
	}
	if actorID != "" {
		actor := actorID
		rec.ActorID = &actor
	}
	l.records[transactionID] = append(l.records[transactionID], rec)
	return nil
}

func (l *MemoryLog) List(_ context.Context, transactionID string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs := l.records[transactionID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}
