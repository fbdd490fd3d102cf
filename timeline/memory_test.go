package timeline

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryLog_AppendOrder(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	if err := log.Append(ctx, "tx-1", "TRANSACTION_CREATED", "client-1", map[string]any{"state": "NEGOTIATING"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, "tx-1", "STATUS_CHANGED", "client-1", map[string]any{"next_state": "REQUESTED"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, "tx-2", "TRANSACTION_CREATED", "client-2", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := log.List(ctx, "tx-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Type != "TRANSACTION_CREATED" || recs[1].Type != "STATUS_CHANGED" {
		t.Fatalf("unexpected order: %s, %s", recs[0].Type, recs[1].Type)
	}
	if recs[0].ID >= recs[1].ID {
		t.Fatalf("ids must be monotonic: %d, %d", recs[0].ID, recs[1].ID)
	}

	var payload map[string]any
	if err := json.Unmarshal(recs[1].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["next_state"] != "REQUESTED" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if recs[0].ActorID == nil || *recs[0].ActorID != "client-1" {
		t.Fatalf("expected actor recorded, got %v", recs[0].ActorID)
	}
}

func TestMemoryLog_RequiresTransactionID(t *testing.T) {
	log := NewMemoryLog()
	if err := log.Append(context.Background(), "", "STATUS_CHANGED", "", nil); err == nil {
		t.Fatal("expected error for empty transaction id")
	}
}
