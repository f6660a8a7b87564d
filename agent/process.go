package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stewardbot/steward/errors"
	"github.com/stewardbot/steward/internal/logger"
	"github.com/stewardbot/steward/sdk"
	"go.uber.org/zap"
)

const (
	// DefaultMaxProcessTokens is the cumulative token budget of one session
	// instance before it is proactively recycled.
	DefaultMaxProcessTokens int64 = 20000

	// MaxRestartAttempts bounds failure-driven restarts.
	MaxRestartAttempts = 3

	restartBaseDelay = time.Second
	restartMaxDelay  = 30 * time.Second
)

// turnResult is the resolution of one pending call: exactly one of event or
// err is set.
type turnResult struct {
	event *sdk.Event
	err   error
}

// ProcessOptions configures a Process.
type ProcessOptions struct {
	// Name labels the process in logs and error messages.
	Name string

	// Client is the underlying session capability.
	Client sdk.Client

	// Query is the immutable per-invocation configuration. A configuration
	// that cannot stream (structured output format) puts the process in
	// single-shot mode, where every Send spawns an independent invocation.
	Query *sdk.Options

	// MaxProcessTokens overrides DefaultMaxProcessTokens when positive.
	MaxProcessTokens int64

	// MaxRestartAttempts overrides the default restart budget when positive.
	MaxRestartAttempts int
}

// Process keeps a single conversational agent session alive across many
// independent calls. Concurrent callers are serialized onto the one session,
// at most one turn is in flight at any instant, and the session is replaced
// transparently when its token budget is spent or it fails.
type Process struct {
	name        string
	client      sdk.Client
	queryOpts   *sdk.Options
	maxTokens   int64
	maxRestarts int
	streaming   bool

	// sendSem serializes Send callers; capacity 1.
	sendSem chan struct{}

	mu         sync.Mutex
	alive      bool
	sessionID  string
	tokens     int64
	queue      *HandoffQueue
	pending    chan turnResult
	readCancel context.CancelFunc

	// gen identifies the current session instance. The read loop of a retired
	// instance carries the generation it was started with, so its termination
	// cannot touch the instance that replaced it.
	gen uint64

	// skipResults counts turns whose caller gave up waiting. Their late
	// results are consumed by the read loop without resolving anyone.
	skipResults int

	restartBase time.Duration
	restartCap  time.Duration

	log *logger.FieldLogger
}

// NewProcess constructs an inert process. Call Start before Send.
func NewProcess(opts *ProcessOptions) (*Process, error) {
	if opts == nil || opts.Client == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sdk client is required")
	}

	name := opts.Name
	if name == "" {
		name = "agent-process"
	}

	maxTokens := opts.MaxProcessTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxProcessTokens
	}

	maxRestarts := opts.MaxRestartAttempts
	if maxRestarts <= 0 {
		maxRestarts = MaxRestartAttempts
	}

	query := opts.Query
	if query == nil {
		query = &sdk.Options{}
	}

	return &Process{
		name:        name,
		client:      opts.Client,
		queryOpts:   query,
		maxTokens:   maxTokens,
		maxRestarts: maxRestarts,
		streaming:   query.SupportsStreaming(),
		sendSem:     make(chan struct{}, 1),
		restartBase: restartBaseDelay,
		restartCap:  restartMaxDelay,
		log:         logger.Component("agent-process").With(zap.String("process", name)),
	}, nil
}

// Name returns the process label.
func (p *Process) Name() string {
	return p.name
}

// Alive reports whether the process accepts streaming sends.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// SessionID returns the identifier captured from the current session's init
// event, or "" before the first turn has been answered.
func (p *Process) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// AccumulatedTokens returns the cumulative input+output tokens attributed to
// the current session instance.
func (p *Process) AccumulatedTokens() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens
}

// Streaming reports whether the process keeps a persistent session.
func (p *Process) Streaming() bool {
	return p.streaming
}

// Start transitions the process to alive. In streaming mode it opens the
// persistent session and its background read loop; the session's own init
// handshake is captured asynchronously, so Start returns without waiting for
// it. In single-shot mode nothing runs until the first Send.
//
// The session runs on its own background context so that its lifetime is
// owned by the process, not by whichever caller happened to start it.
func (p *Process) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked()
}

func (p *Process) startLocked() error {
	if p.alive {
		return nil
	}

	p.gen++
	p.tokens = 0
	p.sessionID = ""
	p.skipResults = 0

	if !p.streaming {
		p.alive = true
		return nil
	}

	queue := NewHandoffQueue()
	readCtx, cancel := context.WithCancel(context.Background())

	// The manager owns session continuity across calls, so the underlying
	// session must not persist its own.
	streamOpts := *p.queryOpts
	streamOpts.PersistSession = false

	events, err := p.client.QueryStream(readCtx, queue.Stream(readCtx), &streamOpts)
	if err != nil {
		cancel()
		queue.Close()
		return errors.Wrapf(err, errors.ErrCodeSDKStartFailed, "%s failed to open streaming session", p.name)
	}

	p.queue = queue
	p.readCancel = cancel
	p.alive = true
	go p.readLoop(p.gen, events)

	return nil
}

// Send submits one user input and returns the matched result event. Callers
// are admitted one at a time; the serializer is released on every exit path.
func (p *Process) Send(ctx context.Context, input string) (*sdk.Event, error) {
	select {
	case p.sendSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sendSem }()

	var (
		result *sdk.Event
		err    error
	)
	if p.streaming {
		result, err = p.sendStreaming(ctx, input)
	} else {
		result, err = p.sendOneShot(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	// The result is already committed to the caller; a budget-driven recycle
	// happens off the caller's critical path.
	p.maybeRecycle()
	return result, nil
}

func (p *Process) sendStreaming(ctx context.Context, input string) (*sdk.Event, error) {
	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		return nil, errors.New(errors.ErrCodeProcessNotAlive, p.name+" is not alive")
	}
	pending := make(chan turnResult, 1)
	p.pending = pending
	queue := p.queue
	sessionID := p.sessionID
	p.mu.Unlock()

	queue.Push(sdk.NewUserTurn(sessionID, input))

	select {
	case res := <-pending:
		if res.err != nil {
			return nil, res.err
		}
		return p.extractResult(res.event)
	case <-ctx.Done():
		// The turn is already in flight; its late result belongs to nobody
		// and must not resolve the next caller's slot.
		p.mu.Lock()
		if p.pending == pending {
			p.pending = nil
			p.skipResults++
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (p *Process) sendOneShot(ctx context.Context, input string) (*sdk.Event, error) {
	events, err := p.client.Query(ctx, input, p.queryOpts)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSDKError, "%s single-shot invocation failed", p.name)
	}

	var (
		last      *sdk.Event
		streamErr error
	)
	for ev := range events {
		switch ev.Type {
		case sdk.EventTypeResult:
			last = ev
		case sdk.EventTypeStreamError:
			streamErr = ev.Err
		}
	}

	if streamErr != nil {
		return nil, errors.Wrapf(streamErr, errors.ErrCodeSDKError, "%s single-shot invocation failed", p.name)
	}
	if last == nil {
		return nil, errors.New(errors.ErrCodeEmptyResult, p.name+" produced no result")
	}

	p.mu.Lock()
	if last.Usage != nil {
		p.tokens += last.Usage.Total()
	}
	p.mu.Unlock()

	return p.extractResult(last)
}

// extractResult rejects error-flagged results and passes through successful
// ones unmodified so callers can inspect usage and cost metadata.
func (p *Process) extractResult(ev *sdk.Event) (*sdk.Event, error) {
	if ev.IsError {
		msg := strings.Join(ev.Errors, "; ")
		if msg == "" {
			msg = "agent returned an error result"
		}
		return nil, errors.New(errors.ErrCodeSDKError, p.name+": "+msg)
	}
	return ev, nil
}

// readLoop consumes the output of one session instance. It is the sole
// resolver of the pending slot. gen pins the loop to the instance that
// spawned it: after a recycle the retired loop keeps draining its stream, and
// nothing it observes may touch the replacement's state.
func (p *Process) readLoop(gen uint64, events <-chan *sdk.Event) {
	for ev := range events {
		switch {
		case ev.Type == sdk.EventTypeSystem && ev.Subtype == sdk.SubtypeInit:
			p.mu.Lock()
			if p.gen == gen {
				p.sessionID = ev.SessionID
			}
			p.mu.Unlock()
			p.log.Debug("session initialized", zap.String("session_id", ev.SessionID))

		case ev.Type == sdk.EventTypeResult:
			p.mu.Lock()
			if p.gen != gen {
				p.mu.Unlock()
				continue
			}
			if ev.Usage != nil {
				p.tokens += ev.Usage.Total()
			}
			if p.skipResults > 0 {
				// Answer to a turn whose caller already gave up.
				p.skipResults--
				p.mu.Unlock()
				continue
			}
			pending := p.pending
			p.pending = nil
			p.mu.Unlock()
			if pending != nil {
				pending <- turnResult{event: ev}
			}

		case ev.Type == sdk.EventTypeStreamError:
			p.failStream(gen, ev.Err)
			return
		}
	}

	// The stream ended without Close having been called: the session died
	// out from under us.
	p.failStream(gen, nil)
}

// failStream marks the process not-alive and rejects the pending call, if
// any. Callers that were not pending observe the failure on their next Send.
// A failure reported by a retired instance's loop is ignored, as is one
// arriving after Close already tore the instance down.
func (p *Process) failStream(gen uint64, cause error) {
	if cause == nil {
		cause = errors.New(errors.ErrCodeStreamFailed, "session output stream ended unexpectedly")
	}

	p.mu.Lock()
	if p.gen != gen || !p.alive {
		p.mu.Unlock()
		return
	}
	p.alive = false
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	p.log.Error("session stream failed", zap.Error(cause))

	if pending != nil {
		pending <- turnResult{err: errors.Wrap(cause, errors.ErrCodeStreamFailed, p.name+" stream failed")}
	}
}

// maybeRecycle checks the token budget after a committed turn and triggers a
// background recycle when the budget is spent. A recycle failure is logged,
// never propagated to the caller whose turn triggered it.
func (p *Process) maybeRecycle() {
	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()

	if tokens < p.maxTokens {
		return
	}

	p.log.Info("token budget reached, recycling session",
		zap.Int64("accumulatedTokens", tokens),
		zap.Int64("maxTokens", p.maxTokens))

	go func() {
		if err := p.Recycle(context.Background()); err != nil {
			p.log.Error("background recycle failed", zap.Error(err))
		}
	}()
}

// Recycle retires the current session instance and immediately starts a
// fresh one. The process keeps its external identity; the token counter and
// captured session identifier reset.
func (p *Process) Recycle(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return p.startLocked()
}

// Close tears the session down without replacement. A pending call is
// rejected so no caller is left hanging.
func (p *Process) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Process) closeLocked() {
	if p.queue != nil {
		p.queue.Close()
		p.queue = nil
	}
	if p.readCancel != nil {
		p.readCancel()
		p.readCancel = nil
	}

	p.alive = false
	p.sessionID = ""

	if p.pending != nil {
		p.pending <- turnResult{err: errors.New(errors.ErrCodeProcessClosed, p.name+" closed")}
		p.pending = nil
	}
}

// Restart recovers from a terminal failure. attempt is the zero-based retry
// counter: each try waits min(restartBase << attempt, restartCap) before
// recycling, and attempts beyond the configured budget propagate the error
// to the invoking supervisor.
func (p *Process) Restart(ctx context.Context, attempt int) error {
	var lastErr error
	for ; attempt <= p.maxRestarts; attempt++ {
		delay := p.restartDelay(attempt)
		p.log.Warn("restarting agent session",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if lastErr = p.Recycle(ctx); lastErr == nil {
			p.log.Info("agent session restarted", zap.Int("attempt", attempt))
			return nil
		}
		p.log.Error("restart attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	if lastErr == nil {
		return errors.New(errors.ErrCodeRestartExhausted, p.name+" restart attempts exhausted")
	}
	return errors.Wrap(lastErr, errors.ErrCodeRestartExhausted, p.name+" failed to restart")
}

func (p *Process) restartDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.restartBase << uint(attempt)
	if delay <= 0 || delay > p.restartCap {
		return p.restartCap
	}
	return delay
}
