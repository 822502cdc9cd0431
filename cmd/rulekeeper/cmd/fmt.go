package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/canon"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Rewrite rule JSON in canonical form",
	Long: `Reads rule JSON from a file or stdin and prints its canonical persisted form.
With --raw only presentation keys are removed, keeping unknown keys and key order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFmt,
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	fmtCmd.Flags().String("indent", "", "indent string (compact when empty)")
	fmtCmd.Flags().BoolP("write", "w", false, "write result back to the file")
	fmtCmd.Flags().Bool("raw", false, "strip presentation keys without parsing the rule")
}

func runFmt(cmd *cobra.Command, args []string) error {
	indent, _ := cmd.Flags().GetString("indent")
	write, _ := cmd.Flags().GetBool("write")
	raw, _ := cmd.Flags().GetBool("raw")

	path := argOrStdin(args)
	if write && (path == "" || path == "-") {
		return fmt.Errorf("--write needs a file argument")
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	var out []byte
	if raw {
		out, err = canon.StripRaw(data)
	} else {
		out, err = canonicalize(data, indent)
	}
	if err != nil {
		return err
	}

	if write {
		return os.WriteFile(path, append(out, '\n'), 0o644)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
	return err
}

func canonicalize(data []byte, indent string) ([]byte, error) {
	r, err := canon.Hydrate(data)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if indent != "" {
		return canon.MarshalIndent(r, indent)
	}
	return canon.Marshal(r)
}
