package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

type channelKind int

const (
	kindTransaction channelKind = iota
	kindParticipant
)

// Channel is the delivery path to one connected observer. It is registered
// under exactly one key and owned by the Hub that created it.
type Channel struct {
	id   string
	kind channelKind
	key  string

	events chan Event
	done   chan struct{}
	once   sync.Once

	// lastActive is the unix-nano time of the last successful delivery,
	// refreshed by heartbeats; stale channels get pruned.
	lastActive atomic.Int64
}

func newChannel(id string, kind channelKind, key string, buffer int) *Channel {
	ch := &Channel{
		id:     id,
		kind:   kind,
		key:    key,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	ch.lastActive.Store(time.Now().UnixNano())
	return ch
}

// Events is the receive side of the channel. The events channel is never
// closed; consumers must select on Done to observe disconnection:
//
//	for {
//		select {
//		case ev := <-ch.Events():
//			...
//		case <-ch.Done():
//			return
//		}
//	}
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done is closed when the channel is removed from the hub, whatever the
// cause: explicit Close, context cancellation, failed delivery, or idle
// timeout.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close marks the channel dead. Safe to call multiple times and from any
// goroutine; the hub notices and unregisters it.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Channel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// deliver pushes an event without ever blocking the caller. A full buffer or
// a closed channel reports failure; the hub decides whether that evicts.
func (c *Channel) deliver(ev Event) bool {
	if c.closed() {
		return false
	}
	select {
	case c.events <- ev:
		c.lastActive.Store(ev.At.UnixNano())
		return true
	default:
		return false
	}
}

func (c *Channel) idleSince(cutoff time.Time) bool {
	return c.lastActive.Load() < cutoff.UnixNano()
}
