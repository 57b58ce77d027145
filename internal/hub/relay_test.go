package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/roster-sync/internal/engine"
)

func recvCommand(t *testing.T, ch <-chan engine.Command, within time.Duration) engine.Command {
	t.Helper()
	select {
	case cmd, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return cmd
	case <-time.After(within):
		t.Fatalf("timed out waiting for command")
		return engine.Command{} // unreachable
	}
}

func TestRelay_DeliversToEverySubscriberInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRelay(ctx, nil)

	sender := make(chan engine.Command, 8)
	other := make(chan engine.Command, 8)
	r.Subscribe("sender", sender)
	r.Subscribe("other", other)

	r.ClaimTransmitRight(7)
	for v := int64(1); v <= 3; v++ {
		require.NoError(t, r.PushState(ctx, engine.Command{Version: v, Operation: engine.OpSyncAll}))
	}

	for _, ch := range []chan engine.Command{sender, other} {
		for v := int64(1); v <= 3; v++ {
			assert.Equal(t, v, recvCommand(t, ch, 100*time.Millisecond).Version)
		}
	}
}

func TestRelay_UnsubscribeStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRelay(ctx, nil)

	a := make(chan engine.Command, 4)
	b := make(chan engine.Command, 4)
	r.Subscribe("a", a)
	r.Subscribe("b", b)
	r.Unsubscribe("a")
	require.NoError(t, r.PushState(ctx, engine.Command{Version: 1}))

	recvCommand(t, b, 100*time.Millisecond)
	select {
	case cmd := <-a:
		t.Fatalf("unsubscribed outbox got %v", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_DropsSlowSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRelay(ctx, nil)

	slow := make(chan engine.Command, 1)
	r.Subscribe("slow", slow)
	require.NoError(t, r.PushState(ctx, engine.Command{Version: 1}))
	require.NoError(t, r.PushState(ctx, engine.Command{Version: 2}))

	assert.Equal(t, int64(1), recvCommand(t, slow, 100*time.Millisecond).Version)
	select {
	case _, ok := <-slow:
		assert.False(t, ok, "expected slow outbox to be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("slow subscriber was not dropped")
	}
}

func TestRelay_PushAfterClose(t *testing.T) {
	r := NewRelay(context.Background(), nil)
	out := make(chan engine.Command, 1)
	r.Subscribe("x", out)
	require.NoError(t, r.PushState(context.Background(), engine.Command{Version: 1}))
	recvCommand(t, out, 100*time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox not closed on relay close")
	}
	assert.ErrorIs(t, r.PushState(context.Background(), engine.Command{Version: 1}), ErrRelayClosed)
}

func TestRelay_ReliableSubscriberIsNeverDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRelay(ctx, nil)

	feed := make(chan engine.Command, 1)
	r.SubscribeReliable("feed", feed)
	for v := int64(1); v <= 5; v++ {
		require.NoError(t, r.PushState(ctx, engine.Command{Version: v}))
	}

	for v := int64(1); v <= 5; v++ {
		assert.Equal(t, v, recvCommand(t, feed, 100*time.Millisecond).Version)
	}
}

func TestRelay_ReliableSubscriberBacksUpPush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRelay(ctx, nil)

	stalled := make(chan engine.Command)
	r.SubscribeReliable("stalled", stalled)

	// The loop holds one publish while the rest fill the inbox, then PushState waits.
	pctx, pcancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer pcancel()
	var err error
	for v := int64(1); err == nil; v++ {
		err = r.PushState(pctx, engine.Command{Version: v})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, int64(1), recvCommand(t, stalled, 100*time.Millisecond).Version)
}

func TestRelay_CloseReleasesReliableSubscriber(t *testing.T) {
	r := NewRelay(context.Background(), nil)
	stalled := make(chan engine.Command)
	r.SubscribeReliable("stalled", stalled)
	require.NoError(t, r.PushState(context.Background(), engine.Command{Version: 1}))
	require.NoError(t, r.Close())

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-stalled:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("reliable outbox not closed on relay close")
		}
	}
}
