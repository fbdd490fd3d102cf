package booking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestRepository_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the store contract end to end, including the active-pair
// guard enforced by the partial unique index.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"transactions", "pairings", "users", "services"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skipf("database schema missing table %s; apply migrations first", table)
		}
	}

	suffix := time.Now().UnixNano()
	var clientID, providerID, serviceID string
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, display_name, role) VALUES ($1, 'Cleo Client', 'client') RETURNING id::text`,
		fmt.Sprintf("cleo+%d@example.com", suffix)).Scan(&clientID); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, display_name, role) VALUES ($1, 'Pat Provider', 'provider') RETURNING id::text`,
		fmt.Sprintf("pat+%d@example.com", suffix)).Scan(&providerID); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO services (provider_id, title) VALUES ($1, 'Deep Clean') RETURNING id::text`,
		providerID).Scan(&serviceID); err != nil {
		t.Fatalf("seed service: %v", err)
	}

	repo := NewRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	txn := Transaction{
		ID:         uuid.NewString(),
		State:      StateNegotiating,
		ServiceID:  serviceID,
		ClientID:   clientID,
		ProviderID: providerID,
		CreatedAt:  now,
	}
	pairing := Pairing{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		ClientID:      clientID,
		ProviderID:    providerID,
		CreatedAt:     now,
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM pairings WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM transactions WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM services WHERE id = $1`, serviceID)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, clientID, providerID)
	})

	if err := repo.Create(ctx, txn, pairing); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A second active transaction for the same pair must hit the index.
	dup := txn
	dup.ID = uuid.NewString()
	dupPairing := pairing
	dupPairing.ID = uuid.NewString()
	dupPairing.TransactionID = dup.ID
	if err := repo.Create(ctx, dup, dupPairing); !errors.Is(err, ErrActivePairExists) {
		t.Fatalf("expected active-pair conflict, got %v", err)
	}

	got, err := repo.Get(ctx, txn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StateNegotiating || got.ClientID != clientID || got.ProviderID != providerID {
		t.Fatalf("unexpected record: %+v", got)
	}

	validated := now.Add(time.Minute)
	got.State = StateAccepted
	got.RequestValidationDate = &validated
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := repo.Get(ctx, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.State != StateAccepted {
		t.Fatalf("expected ACCEPTED, got %s", reloaded.State)
	}
	if reloaded.RequestValidationDate == nil {
		t.Fatal("expected requestValidationDate persisted")
	}

	for _, participant := range []string{clientID, providerID} {
		listed, err := repo.ListByParticipant(ctx, participant)
		if err != nil {
			t.Fatalf("list for %s: %v", participant, err)
		}
		if len(listed) != 1 || listed[0].ID != txn.ID {
			t.Fatalf("expected one transaction for %s, got %d", participant, len(listed))
		}
	}

	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Update(ctx, Transaction{ID: uuid.NewString(), State: StateRequested}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
