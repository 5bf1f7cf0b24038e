package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	// LLM validation
	validProviders := []string{"gemini", "mock"}
	if !slices.Contains(validProviders, cfg.LLM.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.LLM.Provider),
		})
	}
	if cfg.LLM.Provider == "gemini" && cfg.LLM.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.apiKey",
			Message: "required for gemini (set it here or export GOOGLE_API_KEY)",
		})
	}
	if cfg.LLM.Model == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.model",
			Message: "model is required",
		})
	}
	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", *t),
		})
	}

	// Chat validation
	if cfg.Chat.HistoryWindow < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.historyWindow",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Chat.HistoryWindow),
		})
	}
	if cfg.Chat.MaxIterations < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.maxIterations",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Chat.MaxIterations),
		})
	}
	if cfg.Chat.TimeoutSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.timeoutSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Chat.TimeoutSeconds),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Hooks validation
	for event, entries := range cfg.Hooks.byEvent() {
		for i, h := range entries {
			if h.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].command", event, i),
					Message: "command is required",
				})
			}
		}
	}

	return issues
}

func (h HooksConfig) byEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"loginSucceeded": h.LoginSucceeded,
		"loginRejected":  h.LoginRejected,
		"afterAgentRun":  h.AfterAgentRun,
		"agentFailed":    h.AgentFailed,
		"gatewayStart":   h.GatewayStart,
		"gatewayStop":    h.GatewayStop,
	}
}
