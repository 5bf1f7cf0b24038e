package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/soyeahso/finchat/internal/finance"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or prepare the finance database",
	}

	cmd.AddCommand(newDBTablesCmd())
	cmd.AddCommand(newDBSeedDemoCmd())
	return cmd
}

func newDBTablesCmd() *cobra.Command {
	var schema bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables in the finance database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := finance.Open(cfg.Database.Finance, finance.Options{ReadOnly: true}, log)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			tables, err := db.Tables(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tables) == 0 {
				fmt.Fprintln(out, "(no tables)")
				return nil
			}
			if schema {
				info, err := db.TableInfo(ctx, tables)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, info)
				return nil
			}

			color.New(color.FgCyan).Fprintf(out, "Tables in %s\n", cfg.Database.Finance)
			for _, t := range tables {
				fmt.Fprintf(out, "  - %s\n", t)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&schema, "schema", false, "print each table's DDL and sample rows")
	return cmd
}

func newDBSeedDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Create the demo finance schema with a few sample rows",
		Long: "Creates the demo tables (employee, payroll_budget, actual_tb_data, ...) in the\n" +
			"configured finance database. Existing rows are left alone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Finance), 0o700); err != nil {
				return err
			}
			db, err := finance.Open(cfg.Database.Finance, finance.Options{}, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SeedDemo(context.Background()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s demo data ready in %s\n", color.GreenString("✓"), cfg.Database.Finance)
			return nil
		},
	}
}
