package timeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository appends and reads the append-only audit timeline of a
// transaction. It implements booking.TimelineWriter.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append records one audit event. The timeline is append-only; rows are never
// updated or deleted.
func (r *Repository) Append(ctx context.Context, transactionID, eventType, actorID string, payload map[string]any) error {
	if transactionID == "" {
		return fmt.Errorf("timeline: missing transaction id")
	}
	if eventType == "" {
		return fmt.Errorf("timeline: missing event type")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("timeline: marshal payload: %w", err)
	}

	var actor any
	if actorID != "" {
		actor = actorID
	}

	const query = `
		INSERT INTO timeline_events (transaction_id, type, payload, actor_id)
		VALUES ($1, $2, $3::jsonb, $4)
	`
	if _, err := r.pool.Exec(ctx, query, transactionID, eventType, body, actor); err != nil {
		return fmt.Errorf("timeline: insert event: %w", err)
	}
	return nil
}

// List returns the transaction's audit entries in append order.
func (r *Repository) List(ctx context.Context, transactionID string) ([]Record, error) {
	const query = `
		SELECT id, transaction_id, type, actor_id, payload, created_at
		FROM timeline_events
		WHERE transaction_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("timeline: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.Type, &rec.ActorID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("timeline: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timeline: iterate: %w", err)
	}
	return out, nil
}
