package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/client"
	"github.com/solatis/rulekeeper/internal/types"
)

var sqlCmd = &cobra.Command{
	Use:   "sql [file]",
	Short: "Generate SQL for a rule with the SQL-generation service",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSQL,
}

func init() {
	rootCmd.AddCommand(sqlCmd)
}

func runSQL(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	if e.cfg.Services.SQLURL == "" {
		return fmt.Errorf("services.sql_url not configured")
	}
	r, err := readRule(cmd, argOrStdin(args))
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	sql, err := client.NewSQLClient(e.cfg.Services.SQLURL, e.clientOptions()).Generate(cmd.Context(), r)
	if err != nil {
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			printDiagnostics(cmd.OutOrStdout(), ve.Diagnostics)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sql)
	return nil
}
