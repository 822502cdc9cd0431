package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/client"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check a rule against the catalog",
	Long: `Checks a rule against the configured catalog and prints every diagnostic.
With --remote the rule is also sent to the validation service.
Exits non-zero when any error is reported; warnings alone pass.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("remote", false, "also validate with services.validation_url")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	r, err := readRule(cmd, argOrStdin(args))
	if err != nil {
		return err
	}
	src, err := e.catalogSource(ctx)
	if err != nil {
		return err
	}

	ds := rules.Check(r, src.Current())
	printDiagnostics(cmd.OutOrStdout(), ds)
	if n := len(ds.Errors()); n > 0 {
		return fmt.Errorf("%w: %d error(s)", types.ErrInvalidRule, n)
	}

	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		if e.cfg.Services.ValidationURL == "" {
			return fmt.Errorf("--remote needs services.validation_url")
		}
		report, err := client.NewValidationClient(e.cfg.Services.ValidationURL, e.clientOptions()).Validate(ctx, r)
		printDiagnostics(cmd.OutOrStdout(), report.Diagnostics)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func printDiagnostics(w io.Writer, ds types.Diagnostics) {
	for _, d := range ds {
		if d.Warning {
			fmt.Fprintf(w, "warning: %s\n", d)
			continue
		}
		fmt.Fprintf(w, "error: %s\n", d)
	}
}
