package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort          = 18790
	DefaultModel         = "gemini-2.5-flash"
	DefaultHistoryWindow = 10
	DefaultMaxIterations = 10
	DefaultTimeout       = 300
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	zero := 0.0
	return Config{
		Gateway: GatewayConfig{
			Port: DefaultPort,
			Bind: "loopback",
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       DefaultModel,
			Temperature: &zero,
		},
		Chat: ChatConfig{
			HistoryWindow:  DefaultHistoryWindow,
			MaxIterations:  DefaultMaxIterations,
			TimeoutSeconds: DefaultTimeout,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// Timeout returns the per-message dispatch timeout.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
