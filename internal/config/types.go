package config

// Config is the root configuration for finchat.
type Config struct {
	Gateway     GatewayConfig  `yaml:"gateway,omitempty"`
	LLM         LLMConfig      `yaml:"llm,omitempty"`
	Database    DatabaseConfig `yaml:"database,omitempty"`
	Chat        ChatConfig     `yaml:"chat,omitempty"`
	Logging     LoggingConfig  `yaml:"logging,omitempty"`
	Hooks       HooksConfig    `yaml:"hooks,omitempty"`
	AutoRestart bool           `yaml:"autorestart,omitempty"` // re-exec the binary when it is rebuilt
}

// GatewayConfig controls the chat HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	TLS            GatewayTLS `yaml:"tls,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LLMConfig selects the model provider behind the SQL agent.
type LLMConfig struct {
	Provider    string   `yaml:"provider,omitempty"` // "gemini" | "mock"
	APIKey      string   `yaml:"apiKey,omitempty"`   // falls back to $GOOGLE_API_KEY
	Model       string   `yaml:"model,omitempty"`
	Fallbacks   []string `yaml:"fallbacks,omitempty"` // further models tried on retryable errors
	Endpoint    string   `yaml:"endpoint,omitempty"`  // override the provider base URL
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// DatabaseConfig locates the two SQLite databases.
type DatabaseConfig struct {
	Finance string `yaml:"finance,omitempty"` // business data, opened read-only
	Memory  string `yaml:"memory,omitempty"`  // sessions and conversation turns
}

// ChatConfig tunes the dispatcher and the SQL agent loop.
type ChatConfig struct {
	HistoryWindow  int `yaml:"historyWindow,omitempty"`
	MaxIterations  int `yaml:"maxIterations,omitempty"`
	TimeoutSeconds int `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig maps hook events to shell commands.
type HooksConfig struct {
	LoginSucceeded []HookEntry `yaml:"loginSucceeded,omitempty"`
	LoginRejected  []HookEntry `yaml:"loginRejected,omitempty"`
	AfterAgentRun  []HookEntry `yaml:"afterAgentRun,omitempty"`
	AgentFailed    []HookEntry `yaml:"agentFailed,omitempty"`
	GatewayStart   []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop    []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
