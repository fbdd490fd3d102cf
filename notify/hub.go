package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dealflow/booking"
)

// defaultBuffer is the per-channel event backlog tolerated before a delivery
// counts as failed.
const defaultBuffer = 16

// SnapshotSource provides the current snapshot of a transaction for the
// initial delivery and the authorization check on subscribe. The lifecycle
// engine implements it.
type SnapshotSource interface {
	Get(ctx context.Context, id string) (booking.Snapshot, error)
}

// Hub is the subscriber registry and fan-out point. Publishes for one
// transaction serialize against each other and against subscriptions to that
// transaction, so every channel observes commits in order.
type Hub struct {
	source SnapshotSource
	buffer int

	mu            sync.RWMutex
	byTransaction map[string][]*Channel
	byParticipant map[string][]*Channel

	publishLocks keyMutex
}

func NewHub(source SnapshotSource) *Hub {
	return &Hub{
		source:        source,
		buffer:        defaultBuffer,
		byTransaction: make(map[string][]*Channel),
		byParticipant: make(map[string][]*Channel),
	}
}

// WithBuffer overrides the per-channel event buffer size.
func (h *Hub) WithBuffer(n int) *Hub {
	if n > 0 {
		h.buffer = n
	}
	return h
}

// SubscribeTransaction registers a channel for one transaction's commits. The
// requester must be the transaction's client or provider. The current
// snapshot is delivered before any subsequent commit, and the channel is
// removed when ctx is cancelled or the channel is closed. A subscribe racing
// a commit whose publish has not reached the hub yet may see that commit's
// state in the initial snapshot and again from the publish; duplicates are
// possible, ordering inversions are not.
func (h *Hub) SubscribeTransaction(ctx context.Context, transactionID, requesterID string) (*Channel, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("notify: missing requester id")
	}

	release := h.publishLocks.acquire(transactionID)
	defer release()

	snap, err := h.source.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if requesterID != snap.ClientID && requesterID != snap.ProviderID {
		return nil, fmt.Errorf("notify: requester %s is not a party to transaction %s: %w",
			requesterID, transactionID, booking.ErrUnauthorized)
	}

	ch := newChannel(uuid.NewString(), kindTransaction, transactionID, h.buffer)
	h.register(ch)
	h.watch(ctx, ch)

	ch.deliver(Event{Kind: KindSnapshot, At: time.Now().UTC(), Snapshot: &snap})
	return ch, nil
}

// SubscribeParticipant registers a channel for every transaction where the
// participant is client or provider. Only commits after registration are
// delivered.
func (h *Hub) SubscribeParticipant(ctx context.Context, participantID string) (*Channel, error) {
	if participantID == "" {
		return nil, fmt.Errorf("notify: missing participant id")
	}

	ch := newChannel(uuid.NewString(), kindParticipant, participantID, h.buffer)
	h.register(ch)
	h.watch(ctx, ch)
	return ch, nil
}

// Publish fans a committed snapshot out to every channel keyed by the
// transaction id and by either participant id. A failed delivery evicts that
// channel only; the rest of the fan-out proceeds.
func (h *Hub) Publish(snap booking.Snapshot) {
	release := h.publishLocks.acquire(snap.ID)
	defer release()

	ev := Event{Kind: KindSnapshot, At: time.Now().UTC(), Snapshot: &snap}

	h.mu.RLock()
	targets := make([]*Channel, 0,
		len(h.byTransaction[snap.ID])+len(h.byParticipant[snap.ClientID])+len(h.byParticipant[snap.ProviderID]))
	targets = append(targets, h.byTransaction[snap.ID]...)
	targets = append(targets, h.byParticipant[snap.ClientID]...)
	targets = append(targets, h.byParticipant[snap.ProviderID]...)
	h.mu.RUnlock()

	for _, ch := range targets {
		if !ch.deliver(ev) {
			h.remove(ch)
		}
	}
}

// broadcast pushes a synthetic event to every registered channel and prunes
// the ones that are closed or have been idle past the cutoff. Used by the
// heartbeat ticker.
func (h *Hub) broadcast(ev Event, idleCutoff time.Time) {
	h.mu.RLock()
	targets := make([]*Channel, 0, len(h.byTransaction)+len(h.byParticipant))
	for _, chans := range h.byTransaction {
		targets = append(targets, chans...)
	}
	for _, chans := range h.byParticipant {
		targets = append(targets, chans...)
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		if ch.closed() {
			h.remove(ch)
			continue
		}
		if !ch.deliver(ev) && ch.idleSince(idleCutoff) {
			h.remove(ch)
		}
	}
}

// ActiveChannels reports the number of currently registered channels.
func (h *Hub) ActiveChannels() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, chans := range h.byTransaction {
		n += len(chans)
	}
	for _, chans := range h.byParticipant {
		n += len(chans)
	}
	return n
}

// Close tears down every registered channel.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Channel
	for _, chans := range h.byTransaction {
		all = append(all, chans...)
	}
	for _, chans := range h.byParticipant {
		all = append(all, chans...)
	}
	h.byTransaction = make(map[string][]*Channel)
	h.byParticipant = make(map[string][]*Channel)
	h.mu.Unlock()

	for _, ch := range all {
		ch.Close()
	}
}

func (h *Hub) register(ch *Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch ch.kind {
	case kindTransaction:
		h.byTransaction[ch.key] = append(h.byTransaction[ch.key], ch)
	case kindParticipant:
		h.byParticipant[ch.key] = append(h.byParticipant[ch.key], ch)
	}
}

// remove unregisters the channel and closes it. Empty key entries are dropped
// so registry memory stays bounded by live subscriptions.
func (h *Hub) remove(ch *Channel) {
	h.mu.Lock()
	registry := h.byTransaction
	if ch.kind == kindParticipant {
		registry = h.byParticipant
	}
	chans := registry[ch.key]
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(chans) == 0 {
		delete(registry, ch.key)
	} else {
		registry[ch.key] = chans
	}
	h.mu.Unlock()

	ch.Close()
}

// watch unregisters the channel as soon as the subscriber disconnects,
// without waiting for the next publish to notice.
func (h *Hub) watch(ctx context.Context, ch *Channel) {
	go func() {
		select {
		case <-ctx.Done():
		case <-ch.done:
		}
		h.remove(ch)
	}()
}

// keyMutex hands out one mutex per key with reference-counted cleanup,
// serializing publishes per transaction without coupling unrelated keys.
type keyMutex struct {
	mu      sync.Mutex
	entries map[string]*keyMutexEntry
}

type keyMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyMutex) acquire(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyMutexEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &keyMutexEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
