package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stewardbot/steward/config"
)

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Long-lived agent-process manager",
	Long: `steward keeps a conversational agent session alive across many calls:
concurrent callers are serialized onto one session, token consumption is
tracked to rotate the session before its context grows unbounded, and
failures recover through backed-off restarts.`,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run:   runConfigShow,
}

// Flag shared by all commands
var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
