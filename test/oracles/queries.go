package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the database during and after
// a stress run. Every query must return zero rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_active_pair",
			SQL: `SELECT client_id, service_id, COUNT(*) FROM transactions
                  WHERE state NOT IN ('SETTLED','CANCELED')
                  GROUP BY client_id, service_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_terminal_has_finish_date",
			SQL: `SELECT id FROM transactions
                  WHERE state IN ('SETTLED','CANCELED') AND finish_date IS NULL`,
		},
		{
			Name: "O3_accepted_has_validation_date",
			SQL: `SELECT id FROM transactions
                  WHERE state IN ('ACCEPTED','PREPAID','CLIENT_CONFIRMED','PROVIDER_CONFIRMED','DOUBLE_CONFIRMED','SETTLED')
                    AND request_validation_date IS NULL`,
		},
		{
			Name: "O4_known_states_only",
			SQL: `SELECT id, state FROM transactions
                  WHERE state NOT IN ('NEGOTIATING','REQUESTED','ACCEPTED','PREPAID',
                                      'CLIENT_CONFIRMED','PROVIDER_CONFIRMED','DOUBLE_CONFIRMED',
                                      'SETTLED','CANCELED')`,
		},
		{
			Name: "O5_pairing_per_transaction",
			SQL: `SELECT t.id FROM transactions t
                  LEFT JOIN pairings p ON p.transaction_id = t.id
                  WHERE p.id IS NULL`,
		},
		{
			Name: "O6_canceled_before_prepayment",
			SQL: `SELECT t.id FROM transactions t
                  WHERE t.state = 'CANCELED'
                    AND EXISTS (
                        SELECT 1 FROM timeline_events e
                        WHERE e.transaction_id = t.id
                          AND e.payload->>'next_state' IN ('PREPAID','CLIENT_CONFIRMED','PROVIDER_CONFIRMED')
                    )`,
		},
	}
}

// Check runs every oracle and returns the names of the ones that found
// violations.
func Check(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	var failed []string
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return nil, fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		violated := rows.Next()
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if violated {
			failed = append(failed, o.Name)
		}
	}
	return failed, nil
}
