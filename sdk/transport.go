package sdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/stewardbot/steward/internal/logger"
	"go.uber.org/zap"
)

const (
	// eventBuffer decouples the read pump from slow consumers.
	eventBuffer = 64

	// maxEventBytes bounds a single event line. Structured outputs can be
	// large, so this is generous.
	maxEventBytes = 4 * 1024 * 1024
)

// CLITransport runs an agent executable and exchanges line-delimited JSON
// over stdio: user turns in, typed events out. It implements Client for both
// single-shot and streaming invocations.
type CLITransport struct {
	agentPath string
	agentArgs []string
	env       []string
	log       *logger.FieldLogger
}

var _ Client = (*CLITransport)(nil)

// NewCLITransport creates a transport for the given agent executable.
// agentArgs are prepended to the arguments of every invocation; env entries
// (KEY=VALUE) are added to the inherited process environment.
func NewCLITransport(agentPath string, agentArgs, env []string) *CLITransport {
	return &CLITransport{
		agentPath: agentPath,
		agentArgs: append([]string(nil), agentArgs...),
		env:       append([]string(nil), env...),
		log:       logger.Component("sdk-transport"),
	}
}

// Query runs a single prompt to completion.
func (t *CLITransport) Query(ctx context.Context, prompt string, opts *Options) (<-chan *Event, error) {
	cmd, stdin, stdout, invocationID, err := t.startProcess(ctx, opts, false)
	if err != nil {
		return nil, err
	}

	go func() {
		defer func() { _ = stdin.Close() }()
		if err := json.NewEncoder(stdin).Encode(NewUserTurn("", prompt)); err != nil {
			t.log.Warn("failed to write prompt to agent stdin",
				zap.String("invocation_id", invocationID),
				zap.Error(err))
		}
	}()

	events := make(chan *Event, eventBuffer)
	go t.readPump(cmd, stdout, events, invocationID)
	return events, nil
}

// QueryStream drives one persistent session fed by turns. The agent process
// stays up until turns is closed or ctx is cancelled.
func (t *CLITransport) QueryStream(ctx context.Context, turns <-chan UserTurn, opts *Options) (<-chan *Event, error) {
	cmd, stdin, stdout, invocationID, err := t.startProcess(ctx, opts, true)
	if err != nil {
		return nil, err
	}

	go t.writePump(ctx, stdin, turns, invocationID)

	events := make(chan *Event, eventBuffer)
	go t.readPump(cmd, stdout, events, invocationID)
	return events, nil
}

// startProcess spawns the agent with stdio pipes and returns the running
// command, its pipes, and the invocation id used in log correlation.
func (t *CLITransport) startProcess(ctx context.Context, opts *Options, streaming bool) (*exec.Cmd, io.WriteCloser, io.ReadCloser, string, error) {
	invocationID := uuid.NewString()

	cmd := exec.CommandContext(ctx, t.agentPath, t.buildArgs(opts, streaming)...)
	cmd.Env = append(os.Environ(), t.env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, nil, nil, "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, nil, nil, "", fmt.Errorf("failed to start agent process: %w", err)
	}

	t.log.Debug("agent process started",
		zap.String("invocation_id", invocationID),
		zap.String("path", t.agentPath),
		zap.Bool("streaming", streaming),
		zap.Int("pid", cmd.Process.Pid))

	return cmd, stdin, stdout, invocationID, nil
}

// buildArgs assembles the invocation arguments from the configured base args
// and the per-invocation options.
func (t *CLITransport) buildArgs(opts *Options, streaming bool) []string {
	args := append([]string(nil), t.agentArgs...)
	if opts != nil {
		if opts.Model != "" {
			args = append(args, "--model", opts.Model)
		}
		if opts.SystemPrompt != "" {
			args = append(args, "--system-prompt", opts.SystemPrompt)
		}
		if opts.OutputFormat != "" {
			args = append(args, "--output-format", opts.OutputFormat)
		}
		if !opts.PersistSession {
			args = append(args, "--no-persist")
		}
	}
	if streaming {
		args = append(args, "--input-format", "stream-json")
	}
	return args
}

// writePump copies turns onto the agent's stdin, one JSON line per turn.
// Closing stdin tells the agent to finish up and exit.
func (t *CLITransport) writePump(ctx context.Context, stdin io.WriteCloser, turns <-chan UserTurn, invocationID string) {
	defer func() { _ = stdin.Close() }()

	enc := json.NewEncoder(stdin)
	for {
		select {
		case turn, ok := <-turns:
			if !ok {
				return
			}
			if err := enc.Encode(turn); err != nil {
				t.log.Warn("failed to write turn to agent stdin",
					zap.String("invocation_id", invocationID),
					zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump decodes stdout lines into events until the process exits.
// Malformed lines are skipped; a scan or exit failure is surfaced as a final
// stream_error event.
func (t *CLITransport) readPump(cmd *exec.Cmd, stdout io.Reader, events chan<- *Event, invocationID string) {
	defer close(events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxEventBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, err := DecodeEvent(line)
		if err != nil {
			t.log.Warn("skipping malformed event line",
				zap.String("invocation_id", invocationID),
				zap.Error(err))
			continue
		}
		events <- ev
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if scanErr != nil {
		events <- &Event{Type: EventTypeStreamError, Err: scanErr}
		return
	}
	if waitErr != nil {
		t.log.Warn("agent process exited with error",
			zap.String("invocation_id", invocationID),
			zap.Error(waitErr))
		events <- &Event{Type: EventTypeStreamError, Err: waitErr}
	}
}

// DecodeEvent parses one line of the agent's stream-json output.
func DecodeEvent(line []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event missing type")
	}
	return &ev, nil
}
