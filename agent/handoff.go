// Package agent implements the long-lived agent-process manager: one
// conversational session kept alive across many independent calls, with
// serialized access, token-budget recycling, and backed-off restarts.
package agent

import (
	"context"
	"sync"

	"github.com/stewardbot/steward/sdk"
)

// handoff is one delivery to a parked consumer. ok is false at end-of-stream.
type handoff struct {
	turn sdk.UserTurn
	ok   bool
}

// HandoffQueue bridges the caller and the single streaming session: pushed
// turns are delivered to the consumer in strict FIFO order. Unlike a plain
// channel it distinguishes "empty, wait for more" from "closed": consumers
// parked at close time receive an explicit end-of-stream, and pushes after
// close are silently discarded.
type HandoffQueue struct {
	mu      sync.Mutex
	items   []sdk.UserTurn
	waiters []chan handoff
	closed  bool
}

// NewHandoffQueue creates an empty, open queue.
func NewHandoffQueue() *HandoffQueue {
	return &HandoffQueue{}
}

// Push enqueues a turn. If a consumer is already parked it receives the turn
// directly. Pushes after Close are no-ops.
func (q *HandoffQueue) Push(turn sdk.UserTurn) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		w <- handoff{turn: turn, ok: true}
		return
	}

	q.items = append(q.items, turn)
}

// Next returns the oldest buffered turn. With the queue empty it returns
// end-of-stream (ok == false) if the queue is closed, and otherwise parks
// until Push or Close. A ctx cancellation while parked returns ctx.Err().
func (q *HandoffQueue) Next(ctx context.Context) (sdk.UserTurn, bool, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		turn := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return turn, true, nil
	}
	if q.closed {
		q.mu.Unlock()
		return sdk.UserTurn{}, false, nil
	}

	w := make(chan handoff, 1)
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case h := <-w:
		return h.turn, h.ok, nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, cand := range q.waiters {
			if cand == w {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return sdk.UserTurn{}, false, ctx.Err()
			}
		}
		q.mu.Unlock()
		// A push or close already claimed this waiter; its delivery is
		// buffered and must not be dropped.
		h := <-w
		return h.turn, h.ok, nil
	}
}

// Close marks the queue closed and wakes every parked consumer with
// end-of-stream. Closing an already-closed queue is a no-op.
func (q *HandoffQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	for _, w := range q.waiters {
		w <- handoff{}
	}
	q.waiters = nil
}

// IsClosed reports whether Close has been called.
func (q *HandoffQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of buffered, unconsumed turns.
func (q *HandoffQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stream exposes the queue as a receive-only channel for the SDK client's
// streaming entry point. The pump goroutine exits when the queue closes or
// ctx is cancelled, closing the returned channel either way.
func (q *HandoffQueue) Stream(ctx context.Context) <-chan sdk.UserTurn {
	out := make(chan sdk.UserTurn)
	go func() {
		defer close(out)
		for {
			turn, ok, err := q.Next(ctx)
			if err != nil || !ok {
				return
			}
			select {
			case out <- turn:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
