package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview RULE",
	Short: "Evaluate a rule against sample records",
	Long: `Evaluates a rule against a JSON record read from --record (stdin by default).
With --lines every input line is a record and one result is printed per line;
a record that fails evaluation prints an error entry and does not stop the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().String("record", "-", "record file (- for stdin)")
	previewCmd.Flags().Bool("lines", false, "read one JSON record per line")
	previewCmd.Flags().Bool("resolve", false, "resolve rule references through the rule store")
	previewCmd.Flags().String("on-coercion-fail", "", "error or null (overrides preview.on_coercion_fail)")
}

type previewOutput struct {
	Value      any    `json:"value"`
	Clause     int    `json:"clause"`
	ResultName string `json:"resultName,omitempty"`
	Matched    bool   `json:"matched"`
	Error      string `json:"error,omitempty"`
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("on-coercion-fail") {
		e.cfg.Preview.OnCoercionFail, _ = cmd.Flags().GetString("on-coercion-fail")
	}

	r, err := readRule(cmd, args[0])
	if err != nil {
		return err
	}
	src, err := e.catalogSource(ctx)
	if err != nil {
		return err
	}

	opts := preview.Options{}
	switch e.cfg.Preview.OnCoercionFail {
	case "error":
	case "null":
		opts.OnCoercionFail = preview.OnCoercionNull
	default:
		return fmt.Errorf("on-coercion-fail must be error or null, got %q", e.cfg.Preview.OnCoercionFail)
	}
	if resolve, _ := cmd.Flags().GetBool("resolve"); resolve {
		st, closeStore, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		opts.Resolver = store.Resolver{Store: st}
	}

	prog, err := preview.NewEngine(src.Current, opts).Compile(ctx, r)
	if err != nil {
		return err
	}

	recordPath, _ := cmd.Flags().GetString("record")
	input, err := readInput(cmd, recordPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())

	if lines, _ := cmd.Flags().GetBool("lines"); !lines {
		res, err := prog.Evaluate(input)
		if err != nil {
			return err
		}
		return enc.Encode(output(res))
	}

	sc := bufio.NewScanner(bytes.NewReader(input))
	sc.Buffer(make([]byte, 0, 64*1024), e.cfg.Server.MaxMessageBytes)
	n, failed := 0, 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		n++
		res, err := prog.Evaluate(line)
		if err != nil {
			failed++
			if err := enc.Encode(previewOutput{Clause: -1, Error: err.Error()}); err != nil {
				return err
			}
			continue
		}
		if err := enc.Encode(output(res)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	e.log.Debug("preview finished", "records", n, "failed", failed)
	return nil
}

func output(res preview.Result) previewOutput {
	v := res.Value
	if t, ok := v.(time.Time); ok {
		v = t.UTC().Format(time.RFC3339)
	}
	return previewOutput{Value: v, Clause: res.Clause, ResultName: res.ResultName, Matched: res.Matched()}
}
