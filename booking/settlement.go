package booking

import "context"

// Settler performs the payment-capture side effect once both parties have
// confirmed. Implementations may be slow; the engine never holds the
// per-transaction lock while Settle runs. Settle is re-invoked only when the
// capture itself failed; a failed terminal commit after a successful capture
// retries the commit alone.
type Settler interface {
	Settle(ctx context.Context, snap Snapshot) error
}

// SettlerFunc adapts a plain function to the Settler interface.
type SettlerFunc func(ctx context.Context, snap Snapshot) error

func (f SettlerFunc) Settle(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// NoopSettler completes settlement immediately. It is the default when no
// payment integration is wired.
var NoopSettler = SettlerFunc(func(context.Context, Snapshot) error { return nil })

// FailureReporter receives settlement errors that survived the retry. The
// transaction stays in DOUBLE_CONFIRMED until an operator intervenes.
type FailureReporter func(transactionID string, err error)
