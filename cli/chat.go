package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
	"github.com/stewardbot/steward/agent"
	"github.com/stewardbot/steward/config"
	apperrors "github.com/stewardbot/steward/errors"
	"github.com/stewardbot/steward/internal/logger"
	"github.com/stewardbot/steward/sdk"
	"go.uber.org/zap"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the managed agent session",
	Long: `Open an interactive prompt against the managed agent process. The
session persists across inputs and is recycled automatically when its token
budget runs out. /tokens shows the current counter, /recycle rotates the
session by hand, /quit exits.`,
	Run: runChat,
}

func runChat(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.JSON); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	client := sdk.NewCLITransport(cfg.Agent.Path, cfg.Agent.Args, cfg.Agent.Env)

	proc, err := agent.NewProcess(&agent.ProcessOptions{
		Name:   cfg.Agent.Name,
		Client: client,
		Query: &sdk.Options{
			Model:        cfg.Agent.Model,
			SystemPrompt: cfg.Agent.SystemPrompt,
			OutputFormat: cfg.Agent.OutputFormat,
		},
		MaxProcessTokens:   cfg.Agent.MaxProcessTokens,
		MaxRestartAttempts: cfg.Agent.MaxRestartAttempts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create agent process: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := proc.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start agent process: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	rl, err := readline.NewFromConfig(&readline.Config{Prompt: "> "})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open terminal: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	mode := "streaming"
	if !proc.Streaming() {
		mode = "single-shot"
	}
	fmt.Printf("Connected to %s (%s mode). /tokens, /recycle, /quit\n", proc.Name(), mode)

	for {
		line, err := rl.ReadLine()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			return
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/tokens":
			fmt.Printf("accumulated tokens: %d\n", proc.AccumulatedTokens())
			continue
		case "/recycle":
			if err := proc.Recycle(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Recycle failed: %v\n", err)
			} else {
				fmt.Println("session recycled")
			}
			continue
		}

		ev, err := proc.Send(ctx, line)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrCodeProcessNotAlive) ||
				apperrors.Is(err, apperrors.ErrCodeStreamFailed) {
				logger.Warn("Session lost, attempting restart", zap.Error(err))
				if rerr := proc.Restart(ctx, 0); rerr != nil {
					fmt.Fprintf(os.Stderr, "Restart failed: %v\n", rerr)
					return
				}
				fmt.Println("session restarted, input was not processed")
				continue
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		printResult(ev)
	}
}

func printResult(ev *sdk.Event) {
	switch {
	case len(ev.StructuredOutput) > 0:
		fmt.Println(string(ev.StructuredOutput))
	case ev.Result != "":
		fmt.Println(ev.Result)
	}
	if ev.Usage != nil {
		fmt.Printf("[tokens in=%d out=%d, cost=$%.4f, %dms]\n",
			ev.Usage.Input(), ev.Usage.Output(), ev.TotalCostUSD, ev.DurationMS)
	}
}
