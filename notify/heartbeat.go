package notify

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultIdleTimeout       = 2 * time.Minute
)

// Heartbeat periodically pushes a liveness marker through the hub's delivery
// path so dead channels get detected and pruned, and idle connections keep
// traffic flowing through intermediaries.
type Heartbeat struct {
	hub         *Hub
	interval    time.Duration
	idleTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHeartbeat(hub *Hub, interval, idleTimeout time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Heartbeat{hub: hub, interval: interval, idleTimeout: idleTimeout}
}

// Start launches the ticker. Calling Start on a running heartbeat is a no-op.
func (hb *Heartbeat) Start(ctx context.Context) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	if hb.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	hb.cancel = cancel
	hb.done = make(chan struct{})

	go hb.run(ctx, hb.done)
}

// Stop halts the ticker and waits for the in-flight tick to finish.
func (hb *Heartbeat) Stop() {
	hb.mu.Lock()
	cancel := hb.cancel
	done := hb.done
	hb.cancel = nil
	hb.done = nil
	hb.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (hb *Heartbeat) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			hb.tick(now.UTC())
		}
	}
}

// tick delivers the marker non-blocking per channel so one slow subscriber
// cannot stall the sweep for the others.
func (hb *Heartbeat) tick(now time.Time) {
	hb.hub.broadcast(Event{Kind: KindHeartbeat, At: now}, now.Add(-hb.idleTimeout))
}
