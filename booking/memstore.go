package booking

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store used by tests and single-node
// deployments without Postgres. The active-pair guard is enforced under the
// store mutex so concurrent creates for the same pair cannot both pass.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]Transaction
	pairings     map[string]Pairing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]Transaction),
		pairings:     make(map[string]Pairing),
	}
}

func (m *MemoryStore) Create(_ context.Context, tx Transaction, pairing Pairing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.transactions {
		if existing.ClientID == tx.ClientID && existing.ServiceID == tx.ServiceID && !existing.State.Terminal() {
			return fmt.Errorf("booking: create %s/%s: %w", tx.ClientID, tx.ServiceID, ErrActivePairExists)
		}
	}
	if _, ok := m.transactions[tx.ID]; ok {
		return fmt.Errorf("booking: duplicate transaction id %s", tx.ID)
	}

	m.transactions[tx.ID] = tx.clone()
	m.pairings[pairing.ID] = pairing
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx.clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[tx.ID]; !ok {
		return ErrNotFound
	}
	m.transactions[tx.ID] = tx.clone()
	return nil
}

func (m *MemoryStore) ListByParticipant(_ context.Context, participantID string) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Transaction
	for _, tx := range m.transactions {
		if tx.ClientID == participantID || tx.ProviderID == participantID {
			out = append(out, tx.clone())
		}
	}
	return out, nil
}

// clone duplicates pointer fields so callers never share timestamps with the
// stored record.
func (t Transaction) clone() Transaction {
	out := t
	if t.RequestValidationDate != nil {
		v := *t.RequestValidationDate
		out.RequestValidationDate = &v
	}
	if t.FinishDate != nil {
		v := *t.FinishDate
		out.FinishDate = &v
	}
	return out
}
