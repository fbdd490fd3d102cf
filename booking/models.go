package booking

import "time"

// Transaction is the record of a single client-provider exchange. It is
// mutated only through the Service's guarded transition path and becomes
// immutable once its state is terminal.
type Transaction struct {
	ID                    string
	State                 State
	ServiceID             string
	ClientID              string
	ProviderID            string
	CreatedAt             time.Time
	RequestValidationDate *time.Time
	FinishDate            *time.Time
}

// Pairing associates the two parties of a transaction so that unrelated
// negotiation messaging can resolve to them. It is created alongside the
// transaction and never mutated afterwards.
type Pairing struct {
	ID            string
	TransactionID string
	ClientID      string
	ProviderID    string
	CreatedAt     time.Time
}

// Snapshot is the immutable value derived from a Transaction at the moment a
// transition commits. It is the unit of delivery to subscribers.
type Snapshot struct {
	ID                    string     `json:"id"`
	State                 State      `json:"state"`
	ServiceID             string     `json:"serviceId"`
	ClientID              string     `json:"clientId"`
	ProviderID            string     `json:"providerId"`
	CreatedAt             time.Time  `json:"createdAt"`
	RequestValidationDate *time.Time `json:"requestValidationDate,omitempty"`
	FinishDate            *time.Time `json:"finishDate,omitempty"`
}

// Snapshot copies the transaction's current field values into an immutable
// event value. Pointer fields are duplicated so later mutations of the record
// cannot leak into an already published snapshot.
func (t Transaction) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         t.ID,
		State:      t.State,
		ServiceID:  t.ServiceID,
		ClientID:   t.ClientID,
		ProviderID: t.ProviderID,
		CreatedAt:  t.CreatedAt,
	}
	if t.RequestValidationDate != nil {
		v := *t.RequestValidationDate
		snap.RequestValidationDate = &v
	}
	if t.FinishDate != nil {
		v := *t.FinishDate
		snap.FinishDate = &v
	}
	return snap
}

// CreateParams carries the caller-supplied inputs for a new transaction.
type CreateParams struct {
	ClientID      string
	ServiceID     string
	DirectRequest bool
}

// TransitionParams identifies a requested state change and the actor
// requesting it.
type TransitionParams struct {
	TransactionID string
	ActorID       string
	Target        State
}
