package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/soyeahso/finchat/internal/domain"
	"github.com/soyeahso/finchat/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored chat sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

func openMemory() (*store.DB, *store.MemoryStore, error) {
	db, err := store.Open(cfg.Database.Memory, log)
	if err != nil {
		return nil, nil, err
	}
	return db, store.NewMemoryStore(db), nil
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, memory, err := openMemory()
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := memory.ListSessions(context.Background())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found")
				return nil
			}
			for _, s := range sessions {
				last := "-"
				if !s.LastActivity.IsZero() {
					last = s.LastActivity.Local().Format(time.DateTime)
				}
				fmt.Fprintf(out, "%s  %-20s %-15s %3d turns  %s\n",
					s.SessionID, s.Username, s.Department, s.Turns, color.HiBlackString(last))
			}
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, memory, err := openMemory()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			b, found, err := memory.LookupIdentity(ctx, args[0])
			if err != nil {
				return err
			}
			turns, err := memory.LoadHistory(ctx, args[0])
			if err != nil {
				return err
			}
			if !found && len(turns) == 0 {
				return fmt.Errorf("session %q not found", args[0])
			}

			out := cmd.OutOrStdout()
			if found {
				fmt.Fprintf(out, "%s %s (%s)\n\n", color.CyanString("Session"), b.Username, b.Department)
			}
			printTurns(out, turns)
			return nil
		},
	}
}

func printTurns(w io.Writer, turns []domain.Turn) {
	for _, t := range turns {
		label := color.GreenString(t.Role.Label())
		if t.Role == domain.RoleAssistant {
			label = color.BlueString(t.Role.Label())
			if t.Kind == domain.TurnError {
				label = color.RedString(t.Role.Label())
			}
		}
		fmt.Fprintf(w, "%s %s: %s\n", color.HiBlackString(t.CreatedAt.Local().Format("15:04")), label, t.Message)
	}
}
