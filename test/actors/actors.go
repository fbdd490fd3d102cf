package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"dealflow/booking"
	"dealflow/notify"
)

// Seed is the fixed population a stress run operates on.
type Seed struct {
	Clients  []string
	Services []SeededService
}

type SeededService struct {
	ID         string
	ProviderID string
}

func (s Seed) randomClient() string {
	return s.Clients[rand.Intn(len(s.Clients))]
}

func (s Seed) randomService() SeededService {
	return s.Services[rand.Intn(len(s.Services))]
}

// Creator opens transactions for random (client, service) pairs. Conflicts
// are expected under contention: only one active transaction may exist per
// pair.
func Creator(ctx context.Context, engine *booking.Service, seed Seed, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := engine.Create(ctx, booking.CreateParams{
			ClientID:      seed.randomClient(),
			ServiceID:     seed.randomService().ID,
			DirectRequest: rand.Intn(2) == 0,
		})
		if err != nil && !errors.Is(err, booking.ErrConflict) {
			return fmt.Errorf("creator: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Driver advances a random client's transactions one edge at a time, playing
// whichever actor the current state calls for. Racing drivers produce the
// simultaneous-confirmation contention the engine must absorb; guard
// rejections are expected, anything else is a failure.
func Driver(ctx context.Context, engine *booking.Service, seed Seed, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		client := seed.randomClient()
		snaps, err := engine.ListByParticipant(ctx, client)
		if err != nil {
			return fmt.Errorf("driver list: %w", err)
		}

		for _, snap := range snaps {
			if snap.State.Terminal() {
				continue
			}
			actorID, target := nextEdge(snap)
			if target == "" {
				continue
			}
			_, err := engine.Transition(ctx, booking.TransitionParams{
				TransactionID: snap.ID,
				ActorID:       actorID,
				Target:        target,
			})
			if err != nil && !errors.Is(err, booking.ErrConflict) && !errors.Is(err, booking.ErrForbidden) && !errors.Is(err, booking.ErrNotFound) {
				return fmt.Errorf("driver transition %s -> %s: %w", snap.State, target, err)
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

func nextEdge(snap booking.Snapshot) (actorID string, target booking.State) {
	switch snap.State {
	case booking.StateNegotiating:
		if rand.Intn(10) == 0 {
			return snap.ClientID, booking.StateCanceled
		}
		return snap.ClientID, booking.StateRequested
	case booking.StateRequested:
		if rand.Intn(10) == 0 {
			return snap.ProviderID, booking.StateCanceled
		}
		return snap.ProviderID, booking.StateAccepted
	case booking.StateAccepted:
		if rand.Intn(10) == 0 {
			return snap.ClientID, booking.StateCanceled
		}
		return booking.SystemActorID, booking.StatePrepaid
	case booking.StatePrepaid:
		if rand.Intn(2) == 0 {
			return snap.ClientID, booking.StateClientConfirmed
		}
		return snap.ProviderID, booking.StateProviderConfirmed
	case booking.StateClientConfirmed:
		return snap.ProviderID, booking.StateProviderConfirmed
	case booking.StateProviderConfirmed:
		return snap.ClientID, booking.StateClientConfirmed
	default:
		return "", ""
	}
}

// Subscriber churns live subscriptions: attach to a random participant or
// transaction stream, read for a while, then drop the channel mid-stream.
func Subscriber(ctx context.Context, engine *booking.Service, hub *notify.Hub, seed Seed, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		client := seed.randomClient()
		ch, err := hub.SubscribeParticipant(ctx, client)
		if err != nil {
			return fmt.Errorf("subscriber: %w", err)
		}

		deadline := time.After(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	drain:
		for {
			select {
			case <-ch.Events():
			case <-ch.Done():
				break drain
			case <-deadline:
				break drain
			}
		}
		ch.Close()
	}
}
