package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending rule store migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "print migration status without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	database, err := db.Open(e.cfg.Store.DBURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if statusOnly, _ := cmd.Flags().GetBool("status"); !statusOnly {
		if err := db.MigrateUp(ctx, database); err != nil {
			return err
		}
		e.log.Info("migrations applied", "db", e.cfg.Store.DBURL)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tMS")
	for _, s := range statuses {
		if !s.Applied {
			fmt.Fprintf(w, "%s\tpending\t-\t-\n", s.ID)
			continue
		}
		at := "-"
		if s.AppliedAt != nil {
			at = *s.AppliedAt
		}
		fmt.Fprintf(w, "%s\tapplied\t%s\t%d\n", s.ID, at, s.ExecutionMs)
	}
	return nil
}
