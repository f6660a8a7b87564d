package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventInit(t *testing.T) {
	line := []byte(`{"type":"system","subtype":"init","session_id":"sess-abc123"}`)

	ev, err := DecodeEvent(line)
	require.NoError(t, err)

	assert.Equal(t, EventTypeSystem, ev.Type)
	assert.Equal(t, SubtypeInit, ev.Subtype)
	assert.Equal(t, "sess-abc123", ev.SessionID)
}

func TestDecodeEventResultSnakeCaseUsage(t *testing.T) {
	line := []byte(`{"type":"result","usage":{"input_tokens":500,"output_tokens":200},"total_cost_usd":0.012,"duration_ms":1500}`)

	ev, err := DecodeEvent(line)
	require.NoError(t, err)

	assert.Equal(t, EventTypeResult, ev.Type)
	require.NotNil(t, ev.Usage)
	assert.Equal(t, int64(500), ev.Usage.Input())
	assert.Equal(t, int64(200), ev.Usage.Output())
	assert.Equal(t, int64(700), ev.Usage.Total())
	assert.Equal(t, 0.012, ev.TotalCostUSD)
	assert.Equal(t, int64(1500), ev.DurationMS)
}

func TestDecodeEventResultCamelCaseUsage(t *testing.T) {
	line := []byte(`{"type":"result","usage":{"inputTokens":300,"outputTokens":100}}`)

	ev, err := DecodeEvent(line)
	require.NoError(t, err)

	require.NotNil(t, ev.Usage)
	assert.Equal(t, int64(300), ev.Usage.Input())
	assert.Equal(t, int64(100), ev.Usage.Output())
	assert.Equal(t, int64(400), ev.Usage.Total())
}

func TestDecodeEventErrorResult(t *testing.T) {
	line := []byte(`{"type":"result","is_error":true,"errors":["rate limited","try again later"]}`)

	ev, err := DecodeEvent(line)
	require.NoError(t, err)

	assert.True(t, ev.IsError)
	assert.Equal(t, []string{"rate limited", "try again later"}, ev.Errors)
}

func TestDecodeEventRejectsMalformed(t *testing.T) {
	_, err := DecodeEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"session_id":"x"}`))
	assert.Error(t, err, "events without a type are malformed")
}

func TestOptionsSupportsStreaming(t *testing.T) {
	var nilOpts *Options
	assert.True(t, nilOpts.SupportsStreaming())
	assert.True(t, (&Options{Model: "claude-opus-4-5"}).SupportsStreaming())
	assert.False(t, (&Options{OutputFormat: "json"}).SupportsStreaming())
}

func TestBuildArgs(t *testing.T) {
	transport := NewCLITransport("agent", []string{"run"}, nil)

	args := transport.buildArgs(&Options{
		Model:        "claude-opus-4-5",
		SystemPrompt: "be helpful",
	}, true)

	assert.Equal(t, []string{
		"run",
		"--model", "claude-opus-4-5",
		"--system-prompt", "be helpful",
		"--no-persist",
		"--input-format", "stream-json",
	}, args)

	args = transport.buildArgs(&Options{OutputFormat: "json", PersistSession: true}, false)
	assert.Equal(t, []string{"run", "--output-format", "json"}, args)
}

func TestNewUserTurn(t *testing.T) {
	turn := NewUserTurn("sess-1", "hello")
	assert.Equal(t, "user", turn.Type)
	assert.Equal(t, "sess-1", turn.SessionID)
	assert.Equal(t, "hello", turn.Content)
}
