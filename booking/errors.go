package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals the referenced transaction does not exist.
	ErrNotFound = errors.New("booking: transaction not found")
	// ErrConflict signals a transition or create request that is illegal in
	// the transaction's current state.
	ErrConflict = errors.New("booking: conflict")
	// ErrForbidden signals the actor is a party to the transaction but not
	// entitled to the requested edge.
	ErrForbidden = errors.New("booking: forbidden")
	// ErrUnauthorized signals a subscription requester that is not a party to
	// the transaction.
	ErrUnauthorized = errors.New("booking: unauthorized")
	// ErrUpstreamUnavailable signals a catalog or settlement dependency
	// failure.
	ErrUpstreamUnavailable = errors.New("booking: upstream unavailable")
)

// ErrActivePairExists is returned by a Store when a non-terminal transaction
// already exists for the same (clientId, serviceId) pair.
var ErrActivePairExists = fmt.Errorf("active transaction exists for pair: %w", ErrConflict)
