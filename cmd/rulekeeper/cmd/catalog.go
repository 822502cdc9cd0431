package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/types"
)

var catalogCmd = &cobra.Command{
	Use:       "catalog [fields|functions|operators|types]",
	Short:     "List the configured catalog",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"fields", "functions", "operators", "types"},
	RunE:      runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().String("type", "", "only fields or functions of this type")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	src, err := e.catalogSource(cmd.Context())
	if err != nil {
		return err
	}
	cat := src.Current()
	typ, _ := cmd.Flags().GetString("type")

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	kind := "fields"
	if len(args) == 1 {
		kind = args[0]
	}
	switch kind {
	case "fields":
		printTree(w, cat.ListFields(types.Type(typ)), cat.Settings().FieldSeparator, nil)
	case "functions":
		printTree(w, cat.ListFunctions(types.Type(typ)), cat.Settings().FieldSeparator, nil)
	case "operators":
		fmt.Fprintln(w, "KEY\tLABEL\tOPERANDS\tTYPES")
		for _, op := range cat.Operators() {
			applies := "all"
			if len(op.AppliesTo) > 0 {
				applies = joinTypes(op.AppliesTo)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", op.Key, op.Label, op.Cardinality, applies)
		}
	case "types":
		fmt.Fprintln(w, "TYPE\tLABEL\tDEFAULT OPERATOR\tEXPRESSION OPERATORS")
		for _, td := range cat.Types() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", td.Name, td.Label, td.DefaultConditionOperator, strings.Join(td.ValidExpressionOperators, ","))
		}
	}
	return nil
}

// printTree prints one line per leaf: dotted path, type and label.
func printTree(w io.Writer, t catalog.Tree, sep string, prefix []string) {
	for _, e := range t {
		segs := append(append([]string(nil), prefix...), e.Name)
		switch n := e.Node.(type) {
		case *catalog.Category:
			printTree(w, n.Children, sep, segs)
		case *catalog.Field:
			fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Join(segs, sep), n.Type, n.Label)
		case *catalog.Function:
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", strings.Join(segs, sep), n.ReturnType, n.Label, signature(n))
		}
	}
}

func signature(f *catalog.Function) string {
	if f.IsDynamic() {
		return fmt.Sprintf("(%s x %d..%d)", f.Dynamic.ArgType, f.Dynamic.MinArgs, f.Dynamic.MaxArgs)
	}
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.Name + " " + string(a.Type)
	}
	return "(" + strings.Join(args, ", ") + ")"
}

func joinTypes(ts []types.Type) string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return strings.Join(out, ",")
}
