// Package sdk defines the narrow interface to the underlying conversational
// agent capability: typed events streamed from an agent invocation, the
// structured turns fed into it, and a subprocess transport that speaks the
// event protocol over stdio.
package sdk

import (
	"context"
	"encoding/json"
)

// EventType identifies an event emitted by an agent invocation.
type EventType string

const (
	// EventTypeSystem carries out-of-band session information. The "init"
	// subtype announces the session identifier.
	EventTypeSystem EventType = "system"

	// EventTypeResult is the final result of one turn.
	EventTypeResult EventType = "result"

	// EventTypeStreamError is synthesized by transports when the underlying
	// stream fails. It never appears on the wire and is always the last
	// event before the channel closes.
	EventTypeStreamError EventType = "stream_error"
)

// SubtypeInit is the system event subtype announcing session initialization.
const SubtypeInit = "init"

// Usage reports token consumption for a turn. Agent builds disagree on the
// field spelling, so both snake_case and camelCase are accepted; readers
// should go through Input/Output/Total rather than the raw fields.
type Usage struct {
	InputTokens       int64 `json:"input_tokens,omitempty"`
	OutputTokens      int64 `json:"output_tokens,omitempty"`
	InputTokensCamel  int64 `json:"inputTokens,omitempty"`
	OutputTokensCamel int64 `json:"outputTokens,omitempty"`
}

// Input returns the input token count under either naming convention.
func (u *Usage) Input() int64 {
	if u.InputTokens != 0 {
		return u.InputTokens
	}
	return u.InputTokensCamel
}

// Output returns the output token count under either naming convention.
func (u *Usage) Output() int64 {
	if u.OutputTokens != 0 {
		return u.OutputTokens
	}
	return u.OutputTokensCamel
}

// Total returns input plus output tokens.
func (u *Usage) Total() int64 {
	return u.Input() + u.Output()
}

// Event is one typed event from an agent invocation's output stream.
// Fields beyond Type are populated depending on the event type; unknown
// event types are preserved so callers can skip them.
type Event struct {
	Type    EventType `json:"type"`
	Subtype string    `json:"subtype,omitempty"`

	// SessionID is set on system/init events.
	SessionID string `json:"session_id,omitempty"`

	// Result fields.
	IsError          bool            `json:"is_error,omitempty"`
	Errors           []string        `json:"errors,omitempty"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
	Result           string          `json:"result,omitempty"`
	Usage            *Usage          `json:"usage,omitempty"`
	TotalCostUSD     float64         `json:"total_cost_usd,omitempty"`
	DurationMS       int64           `json:"duration_ms,omitempty"`

	// Err carries the transport failure on stream_error events.
	Err error `json:"-"`
}

// UserTurn is one user-originated input submitted to a session.
type UserTurn struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
}

// NewUserTurn builds a user turn addressed to sessionID. An empty sessionID
// is valid before the session has announced itself.
func NewUserTurn(sessionID, content string) UserTurn {
	return UserTurn{Type: "user", SessionID: sessionID, Content: content}
}

// Options is the configuration bag passed to every agent invocation.
type Options struct {
	Model        string
	SystemPrompt string

	// OutputFormat requests structured output. Structured output cannot be
	// produced incrementally, so a non-empty format disables streaming input.
	OutputFormat string

	// PersistSession lets the agent keep its own session continuity. The
	// process manager disables this for streaming sessions because it owns
	// continuity itself.
	PersistSession bool
}

// SupportsStreaming reports whether this configuration can drive a
// persistent streaming session.
func (o *Options) SupportsStreaming() bool {
	return o == nil || o.OutputFormat == ""
}

// Client is the underlying session capability. Both entry points return an
// ordered stream of events that is closed when the invocation ends; a
// failing stream delivers a final EventTypeStreamError event before closing.
type Client interface {
	// Query runs a single prompt to completion.
	Query(ctx context.Context, prompt string, opts *Options) (<-chan *Event, error)

	// QueryStream drives one persistent session fed by an ordered,
	// possibly-unbounded sequence of turns. The invocation ends when the
	// turns channel is closed or ctx is cancelled.
	QueryStream(ctx context.Context, turns <-chan UserTurn, opts *Options) (<-chan *Event, error)
}
