package config

// Config is the root configuration for the steward agent subsystem.
type Config struct {
	Agent AgentConfig `mapstructure:"agent" json:"agent"`
	Log   LogConfig   `mapstructure:"log" json:"log"`
}

// AgentConfig configures the managed agent process.
type AgentConfig struct {
	// Name labels the managed process in logs and errors.
	Name string `mapstructure:"name" json:"name"`

	// Path is the agent executable; Args are prepended to every invocation.
	Path string   `mapstructure:"path" json:"path"`
	Args []string `mapstructure:"args" json:"args"`

	// Env entries (KEY=VALUE) are added to the agent process environment.
	Env []string `mapstructure:"env" json:"env,omitempty"`

	Model        string `mapstructure:"model" json:"model"`
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt,omitempty"`

	// OutputFormat, when set, requests structured output from the agent.
	// Structured output cannot be streamed, so setting it switches the
	// process manager to single-shot invocations.
	OutputFormat string `mapstructure:"output_format" json:"output_format,omitempty"`

	// MaxProcessTokens is the cumulative token budget of one session
	// instance before it is recycled.
	MaxProcessTokens int64 `mapstructure:"max_process_tokens" json:"max_process_tokens"`

	// MaxRestartAttempts bounds failure-driven restarts.
	MaxRestartAttempts int `mapstructure:"max_restart_attempts" json:"max_restart_attempts"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	JSON  bool   `mapstructure:"json" json:"json"`
}
