package booking

import "fmt"

// State enumerates the lifecycle states of a transaction.
type State string

const (
	StateNegotiating       State = "NEGOTIATING"
	StateRequested         State = "REQUESTED"
	StateAccepted          State = "ACCEPTED"
	StatePrepaid           State = "PREPAID"
	StateClientConfirmed   State = "CLIENT_CONFIRMED"
	StateProviderConfirmed State = "PROVIDER_CONFIRMED"
	StateDoubleConfirmed   State = "DOUBLE_CONFIRMED"
	StateSettled           State = "SETTLED"
	StateCanceled          State = "CANCELED"
)

// Terminal reports whether no further transitions are permitted from s.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateCanceled
}

// SystemActorID is the reserved actor identity for engine-internal
// transitions: the prepayment trigger and the settlement cascade. It is never
// a valid user id.
const SystemActorID = "system"

type actorRole int

const (
	roleClient actorRole = iota
	roleProvider
	roleEither
	roleSystem
)

type edge struct {
	from State
	to   State
}

type transitionRule struct {
	role actorRole
	// merge promotes the target to DOUBLE_CONFIRMED when the opposite side
	// has already confirmed.
	merge bool
}

// transitionTable is the single source of truth for which actor may move a
// transaction along which edge. Any (current, target) pair absent from the
// table is an illegal transition.
var transitionTable = map[edge]transitionRule{
	{StateNegotiating, StateRequested}:             {role: roleClient},
	{StateRequested, StateAccepted}:                {role: roleProvider},
	{StateAccepted, StatePrepaid}:                  {role: roleSystem},
	{StatePrepaid, StateClientConfirmed}:           {role: roleClient},
	{StatePrepaid, StateProviderConfirmed}:         {role: roleProvider},
	{StateClientConfirmed, StateProviderConfirmed}: {role: roleProvider, merge: true},
	{StateProviderConfirmed, StateClientConfirmed}: {role: roleClient, merge: true},
	{StateDoubleConfirmed, StateSettled}:           {role: roleSystem},
	{StateNegotiating, StateCanceled}:              {role: roleEither},
	{StateRequested, StateCanceled}:                {role: roleEither},
	{StateAccepted, StateCanceled}:                 {role: roleEither},
}

// allowTransition validates the requested edge against the transition table
// and the actor's relationship to the transaction. It returns the effective
// target state, which differs from the requested one only when a second-side
// confirmation merges into DOUBLE_CONFIRMED.
func allowTransition(tx Transaction, actorID string, target State) (State, error) {
	rule, ok := transitionTable[edge{tx.State, target}]
	if !ok {
		return "", fmt.Errorf("booking: illegal transition %s -> %s: %w", tx.State, target, ErrConflict)
	}

	var permitted bool
	switch rule.role {
	case roleClient:
		permitted = actorID == tx.ClientID
	case roleProvider:
		permitted = actorID == tx.ProviderID
	case roleEither:
		permitted = actorID == tx.ClientID || actorID == tx.ProviderID
	case roleSystem:
		permitted = actorID == SystemActorID
	}
	if !permitted {
		return "", fmt.Errorf("booking: actor %s may not apply %s -> %s: %w", actorID, tx.State, target, ErrForbidden)
	}

	if rule.merge {
		return StateDoubleConfirmed, nil
	}
	return target, nil
}
