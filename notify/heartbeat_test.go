package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/booking"
)

func TestHeartbeat_DeliversLivenessMarkers(t *testing.T) {
	hub := NewHub(newFakeSource(testSnapshot(booking.StateNegotiating)))
	hb := NewHeartbeat(hub, 10*time.Millisecond, time.Minute)

	ch, err := hub.SubscribeTransaction(context.Background(), "tx-1", "client-1")
	require.NoError(t, err)
	defer ch.Close()

	// Drain the initial snapshot first.
	ev := receive(t, ch)
	require.Equal(t, KindSnapshot, ev.Kind)

	hb.Start(context.Background())
	defer hb.Stop()

	ev = receive(t, ch)
	assert.Equal(t, KindHeartbeat, ev.Kind)
	assert.Nil(t, ev.Snapshot)
	assert.False(t, ev.At.IsZero())
}

func TestHeartbeat_PrunesClosedChannels(t *testing.T) {
	hub := NewHub(newFakeSource(testSnapshot(booking.StateNegotiating)))
	hb := NewHeartbeat(hub, 5*time.Millisecond, time.Minute)

	ch, err := hub.SubscribeParticipant(context.Background(), "client-1")
	require.NoError(t, err)
	require.Equal(t, 1, hub.ActiveChannels())

	ch.Close()
	hb.Start(context.Background())
	defer hb.Stop()

	require.Eventually(t, func() bool {
		return hub.ActiveChannels() == 0
	}, 2*time.Second, 5*time.Millisecond, "closed channel should be pruned by the ticker")
}

func TestHeartbeat_PrunesStalledChannels(t *testing.T) {
	src := newFakeSource(testSnapshot(booking.StateNegotiating))
	hub := NewHub(src).WithBuffer(1)
	hb := NewHeartbeat(hub, 5*time.Millisecond, 20*time.Millisecond)

	// This subscriber never reads, so its buffer stays full and heartbeats
	// cannot land. Once past the idle timeout it must be evicted.
	_, err := hub.SubscribeTransaction(context.Background(), "tx-1", "client-1")
	require.NoError(t, err)

	hb.Start(context.Background())
	defer hb.Stop()

	require.Eventually(t, func() bool {
		return hub.ActiveChannels() == 0
	}, 2*time.Second, 5*time.Millisecond, "stalled channel should be pruned after the idle timeout")
}

func TestHeartbeat_KeepsHealthyIdleChannels(t *testing.T) {
	hub := NewHub(newFakeSource(testSnapshot(booking.StateNegotiating)))
	hb := NewHeartbeat(hub, 5*time.Millisecond, 15*time.Millisecond)

	ch, err := hub.SubscribeParticipant(context.Background(), "client-1")
	require.NoError(t, err)
	defer ch.Close()

	// Keep draining heartbeats; the channel is idle business-wise but alive.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-ch.Events():
			case <-ch.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	hb.Start(context.Background())
	defer hb.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, hub.ActiveChannels(), "healthy idle channel must survive heartbeats")
}

func TestHeartbeat_StartStopIdempotent(t *testing.T) {
	hub := NewHub(newFakeSource())
	hb := NewHeartbeat(hub, 5*time.Millisecond, time.Minute)

	hb.Start(context.Background())
	hb.Start(context.Background())
	hb.Stop()
	hb.Stop()
}
