package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stewardbot/steward/sdk"
)

func TestHandoffQueueFIFO(t *testing.T) {
	q := NewHandoffQueue()
	q.Push(sdk.NewUserTurn("", "a"))
	q.Push(sdk.NewUserTurn("", "b"))

	turn, ok, err := q.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", turn.Content)

	turn, ok, err = q.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", turn.Content)

	assert.Equal(t, 0, q.Len())
}

func TestHandoffQueueSuspendThenDeliver(t *testing.T) {
	q := NewHandoffQueue()

	got := make(chan sdk.UserTurn, 1)
	go func() {
		turn, ok, err := q.Next(context.Background())
		if err == nil && ok {
			got <- turn
		}
	}()

	select {
	case <-got:
		t.Fatal("Next resolved before any push")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(sdk.NewUserTurn("", "hello"))

	select {
	case turn := <-got:
		assert.Equal(t, "hello", turn.Content)
	case <-time.After(time.Second):
		t.Fatal("Next did not resolve after push")
	}
}

func TestHandoffQueueCloseOnEmptyQueue(t *testing.T) {
	q := NewHandoffQueue()
	q.Close()

	_, ok, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "closed empty queue should report end-of-stream")
}

func TestHandoffQueueCloseWakesParkedConsumer(t *testing.T) {
	q := NewHandoffQueue()

	eos := make(chan bool, 1)
	go func() {
		_, ok, err := q.Next(context.Background())
		eos <- !ok && err == nil
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case sawEOS := <-eos:
		assert.True(t, sawEOS, "parked consumer should observe end-of-stream on close")
	case <-time.After(time.Second):
		t.Fatal("parked consumer was not woken by Close")
	}
}

func TestHandoffQueuePushAfterCloseDiscarded(t *testing.T) {
	q := NewHandoffQueue()
	q.Close()
	q.Push(sdk.NewUserTurn("", "late"))

	assert.Equal(t, 0, q.Len())

	_, ok, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandoffQueueCloseIsIdempotent(t *testing.T) {
	q := NewHandoffQueue()
	q.Close()
	q.Close()
	assert.True(t, q.IsClosed())
}

func TestHandoffQueueNextContextCancelled(t *testing.T) {
	q := NewHandoffQueue()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, _, err := q.Next(ctx)
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next did not observe cancellation")
	}

	// The cancelled waiter must not swallow a later push.
	q.Push(sdk.NewUserTurn("", "after-cancel"))
	turn, ok, err := q.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "after-cancel", turn.Content)
}

func TestHandoffQueueStream(t *testing.T) {
	q := NewHandoffQueue()
	q.Push(sdk.NewUserTurn("", "one"))
	q.Push(sdk.NewUserTurn("", "two"))

	out := q.Stream(context.Background())

	assert.Equal(t, "one", (<-out).Content)
	assert.Equal(t, "two", (<-out).Content)

	q.Push(sdk.NewUserTurn("", "three"))
	assert.Equal(t, "three", (<-out).Content)

	q.Close()
	_, open := <-out
	assert.False(t, open, "stream channel should close when the queue closes")
}
