package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the durable home of transaction and pairing records. Create must
// enforce the single-active-transaction-per-pair guard atomically and return
// ErrActivePairExists on violation.
type Store interface {
	Create(ctx context.Context, tx Transaction, pairing Pairing) error
	Get(ctx context.Context, id string) (Transaction, error)
	Update(ctx context.Context, tx Transaction) error
	ListByParticipant(ctx context.Context, participantID string) ([]Transaction, error)
}

// Directory resolves a service id to the provider offering it.
type Directory interface {
	Resolve(ctx context.Context, serviceID string) (providerID string, err error)
}

// Publisher receives the snapshot of every committed transition.
type Publisher interface {
	Publish(snap Snapshot)
}

// TimelineWriter appends an immutable audit event for a transaction.
type TimelineWriter interface {
	Append(ctx context.Context, transactionID, eventType, actorID string, payload map[string]any) error
}

// Service is the lifecycle engine. It owns the transition table, serializes
// same-transaction mutations, and runs the settlement cascade.
type Service struct {
	store         Store
	directory     Directory
	publisher     Publisher
	settler       Settler
	timeline      TimelineWriter
	reportFailure FailureReporter
	locks         *lockTable
	idGenerator   func() string
	now           func() time.Time

	settling sync.WaitGroup
}

func NewService(store Store, directory Directory, publisher Publisher, settler Settler) *Service {
	if settler == nil {
		settler = NoopSettler
	}
	return &Service{
		store:     store,
		directory: directory,
		publisher: publisher,
		settler:   settler,
		reportFailure: func(id string, err error) {
			log.Printf("booking: settlement failed for transaction %s: %v", id, err)
		},
		locks:       newLockTable(),
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// WithPublisher wires the notification fan-out. Set before the first
// transition; the hub construction needs the service as its snapshot source,
// so the two are tied together after both exist.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) WithTimeline(w TimelineWriter) *Service {
	s.timeline = w
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithFailureReporter(r FailureReporter) *Service {
	s.reportFailure = r
	return s
}

// Create opens a new transaction between the client and the provider resolved
// from the catalog, along with its pairing record. The initial state is
// REQUESTED for a direct request, NEGOTIATING otherwise.
func (s *Service) Create(ctx context.Context, params CreateParams) (Snapshot, error) {
	if params.ClientID == "" {
		return Snapshot{}, fmt.Errorf("booking: missing client id")
	}
	if params.ServiceID == "" {
		return Snapshot{}, fmt.Errorf("booking: missing service id")
	}

	providerID, err := s.directory.Resolve(ctx, params.ServiceID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("booking: resolve provider for service %s: %w: %v", params.ServiceID, ErrUpstreamUnavailable, err)
	}

	state := StateNegotiating
	if params.DirectRequest {
		state = StateRequested
	}

	tx := Transaction{
		ID:         s.idGenerator(),
		State:      state,
		ServiceID:  params.ServiceID,
		ClientID:   params.ClientID,
		ProviderID: providerID,
		CreatedAt:  s.now().UTC(),
	}
	pairing := Pairing{
		ID:            s.idGenerator(),
		TransactionID: tx.ID,
		ClientID:      tx.ClientID,
		ProviderID:    tx.ProviderID,
		CreatedAt:     tx.CreatedAt,
	}

	if err := s.store.Create(ctx, tx, pairing); err != nil {
		if errors.Is(err, ErrConflict) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("booking: create transaction: %w", err)
	}

	snap := tx.Snapshot()
	s.appendTimeline(ctx, tx.ID, "TRANSACTION_CREATED", params.ClientID, map[string]any{
		"service_id": tx.ServiceID,
		"state":      string(tx.State),
	})
	if s.publisher != nil {
		s.publisher.Publish(snap)
	}
	return snap, nil
}

// Transition applies a validated state change on behalf of the actor. When a
// second-side confirmation merges into DOUBLE_CONFIRMED the settlement
// cascade starts asynchronously; the SETTLED snapshot is published once the
// cascade commits.
func (s *Service) Transition(ctx context.Context, params TransitionParams) (Snapshot, error) {
	snap, err := s.apply(ctx, params)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.State == StateDoubleConfirmed {
		s.beginSettlement(snap)
	}
	return snap, nil
}

// apply performs one guarded mutation under the per-transaction lock.
func (s *Service) apply(ctx context.Context, params TransitionParams) (Snapshot, error) {
	if params.TransactionID == "" {
		return Snapshot{}, fmt.Errorf("booking: missing transaction id")
	}
	if params.ActorID == "" {
		return Snapshot{}, fmt.Errorf("booking: missing actor id")
	}

	release := s.locks.acquire(params.TransactionID)
	defer release()

	tx, err := s.store.Get(ctx, params.TransactionID)
	if err != nil {
		return Snapshot{}, err
	}
	if tx.State.Terminal() {
		return Snapshot{}, fmt.Errorf("booking: transaction %s is %s: %w", tx.ID, tx.State, ErrConflict)
	}

	previous := tx.State
	effective, err := allowTransition(tx, params.ActorID, params.Target)
	if err != nil {
		return Snapshot{}, err
	}

	tx.State = effective
	now := s.now().UTC()
	if effective == StateAccepted {
		tx.RequestValidationDate = &now
	}
	if effective.Terminal() {
		tx.FinishDate = &now
	}

	if err := s.store.Update(ctx, tx); err != nil {
		return Snapshot{}, fmt.Errorf("booking: persist transition: %w", err)
	}

	s.appendTimeline(ctx, tx.ID, "STATUS_CHANGED", params.ActorID, map[string]any{
		"previous_state": string(previous),
		"next_state":     string(effective),
	})

	snap := tx.Snapshot()
	if s.publisher != nil {
		s.publisher.Publish(snap)
	}
	return snap, nil
}

// beginSettlement runs the DOUBLE_CONFIRMED -> SETTLED cascade without
// holding the per-transaction lock for the duration of the capture. The
// terminal commit re-enters the guarded path as the system actor. Capture
// and commit retry independently, one attempt each: a transient store
// failure on the terminal commit must never invoke Settle a second time.
// Anything beyond the retries is surfaced to the failure reporter.
func (s *Service) beginSettlement(snap Snapshot) {
	s.settling.Add(1)
	go func() {
		defer s.settling.Done()
		ctx := context.Background()

		if err := s.capture(ctx, snap); err != nil {
			if err = s.capture(ctx, snap); err != nil {
				s.reportFailure(snap.ID, err)
				return
			}
		}

		_, err := s.commitSettled(ctx, snap)
		if err != nil {
			_, err = s.commitSettled(ctx, snap)
		}
		if err != nil {
			s.reportFailure(snap.ID, err)
		}
	}()
}

func (s *Service) capture(ctx context.Context, snap Snapshot) error {
	if err := s.settler.Settle(ctx, snap); err != nil {
		return fmt.Errorf("booking: capture settlement: %w: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *Service) commitSettled(ctx context.Context, snap Snapshot) (Snapshot, error) {
	return s.apply(ctx, TransitionParams{
		TransactionID: snap.ID,
		ActorID:       SystemActorID,
		Target:        StateSettled,
	})
}

// Drain blocks until in-flight settlement cascades have finished. Called on
// shutdown and by tests that need the terminal commit observed.
func (s *Service) Drain() {
	s.settling.Wait()
}

// Get returns the current snapshot of one transaction.
func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return tx.Snapshot(), nil
}

// ListByParticipant returns snapshots of every transaction where the given id
// is the client or the provider.
func (s *Service) ListByParticipant(ctx context.Context, participantID string) ([]Snapshot, error) {
	txs, err := s.store.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(txs))
	for _, tx := range txs {
		snaps = append(snaps, tx.Snapshot())
	}
	return snaps, nil
}

func (s *Service) appendTimeline(ctx context.Context, transactionID, eventType, actorID string, payload map[string]any) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.Append(ctx, transactionID, eventType, actorID, payload); err != nil {
		log.Printf("booking: append timeline %s for %s: %v", eventType, transactionID, err)
	}
}
