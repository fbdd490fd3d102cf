package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed Store. The single-active-transaction
// guard rides on the partial unique index over (client_id, service_id) for
// non-terminal states, so racing creates resolve inside the database.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, txn Transaction, pairing Pairing) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertTransaction = `
INSERT INTO transactions (id, state, service_id, client_id, provider_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := tx.Exec(ctx, insertTransaction,
		txn.ID, string(txn.State), txn.ServiceID, txn.ClientID, txn.ProviderID, txn.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("booking: create %s/%s: %w", txn.ClientID, txn.ServiceID, ErrActivePairExists)
		}
		return fmt.Errorf("booking: insert transaction: %w", err)
	}

	const insertPairing = `
INSERT INTO pairings (id, transaction_id, client_id, provider_id, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := tx.Exec(ctx, insertPairing,
		pairing.ID, pairing.TransactionID, pairing.ClientID, pairing.ProviderID, pairing.CreatedAt,
	); err != nil {
		return fmt.Errorf("booking: insert pairing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit create: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (Transaction, error) {
	const query = `
SELECT id, state, service_id, client_id, provider_id, created_at, request_validation_date, finish_date
FROM transactions
WHERE id = $1
`
	var (
		txn   Transaction
		state string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&txn.ID,
		&state,
		&txn.ServiceID,
		&txn.ClientID,
		&txn.ProviderID,
		&txn.CreatedAt,
		&txn.RequestValidationDate,
		&txn.FinishDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("booking: query transaction: %w", err)
	}
	txn.State = State(state)
	return txn, nil
}

func (r *Repository) Update(ctx context.Context, txn Transaction) error {
	const query = `
UPDATE transactions
SET state = $1,
    request_validation_date = $2,
    finish_date = $3
WHERE id = $4
`
	tag, err := r.pool.Exec(ctx, query,
		string(txn.State), txn.RequestValidationDate, txn.FinishDate, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("booking: update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListByParticipant(ctx context.Context, participantID string) ([]Transaction, error) {
	const query = `
SELECT id, state, service_id, client_id, provider_id, created_at, request_validation_date, finish_date
FROM transactions
WHERE client_id = $1 OR provider_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("booking: list by participant: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			txn   Transaction
			state string
		)
		if err := rows.Scan(
			&txn.ID,
			&state,
			&txn.ServiceID,
			&txn.ClientID,
			&txn.ProviderID,
			&txn.CreatedAt,
			&txn.RequestValidationDate,
			&txn.FinishDate,
		); err != nil {
			return nil, fmt.Errorf("booking: scan transaction: %w", err)
		}
		txn.State = State(state)
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate transactions: %w", err)
	}
	return out, nil
}
