package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/finchat/internal/config"
	"github.com/soyeahso/finchat/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show paths and a configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "finchat %s (commit %s)\n\n", version.Version, version.Commit)

			configState := ""
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				configState = " (not found, using defaults)"
			}
			fmt.Fprintf(out, "Config:   %s%s\n", paths.Config, configState)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Gateway:  port=%d bind=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled)
			key := "missing"
			if cfg.LLM.APIKey != "" {
				key = "set"
			}
			fmt.Fprintf(out, "LLM:      provider=%s model=%s fallbacks=%v apiKey=%s\n",
				cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.Fallbacks, key)
			fmt.Fprintf(out, "Finance:  %s%s\n", cfg.Database.Finance, existence(cfg.Database.Finance))
			fmt.Fprintf(out, "Memory:   %s%s\n", cfg.Database.Memory, existence(cfg.Database.Memory))
			fmt.Fprintf(out, "Chat:     historyWindow=%d maxIterations=%d timeout=%s\n",
				cfg.Chat.HistoryWindow, cfg.Chat.MaxIterations, cfg.Chat.Timeout())

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}

func existence(path string) string {
	if _, err := os.Stat(path); err != nil {
		return " (missing)"
	}
	return ""
}
