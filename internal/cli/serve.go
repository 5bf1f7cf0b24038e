package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/finchat/internal/config"
	"github.com/soyeahso/finchat/internal/gateway"
	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server (HTTP + WebSocket)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			if cfg.AutoRestart {
				log.Info().Msg("autorestart enabled; the server restarts when its binary changes")
				go autorestart.RestartOnChange()
			}

			st, err := openStack(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := gateway.New(cfg, st.auth, st.dispatch, log,
				gateway.WithHooks(st.hooks),
				gateway.WithHistory(st.memory),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("finance", cfg.Database.Finance).
				Str("memory", cfg.Database.Memory).
				Msg("databases open")

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}
