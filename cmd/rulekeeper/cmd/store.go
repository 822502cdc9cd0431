package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/types"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage versioned rules in the rule store",
	Long: `Manages rules in the storage service when services.storage_url is set, and in
the local database (--db-url, store.db_url) otherwise.`,
}

var storeCreateCmd = &cobra.Command{
	Use:   "create [file]",
	Short: "Store a new rule as version 1",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st store.RuleStore, args []string) error {
		r, err := readRule(cmd, argOrStdin(args))
		if err != nil {
			return err
		}
		created, err := st.Create(cmd.Context(), r)
		if err != nil {
			return err
		}
		return writeRule(cmd.OutOrStdout(), created)
	}),
}

var storeUpdateCmd = &cobra.Command{
	Use:   "update [file]",
	Short: "Store a rule as a new latest version",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st store.RuleStore, args []string) error {
		r, err := readRule(cmd, argOrStdin(args))
		if err != nil {
			return err
		}
		updated, err := st.Update(cmd.Context(), r)
		if err != nil {
			return err
		}
		return writeRule(cmd.OutOrStdout(), updated)
	}),
}

var storeGetCmd = &cobra.Command{
	Use:   "get UUID",
	Short: "Print a stored rule version",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st store.RuleStore, args []string) error {
		version, _ := cmd.Flags().GetInt("version")
		r, err := st.Get(cmd.Context(), types.RuleUUID(args[0]), version)
		if err != nil {
			return err
		}
		return writeRule(cmd.OutOrStdout(), r)
	}),
}

var storeVersionsCmd = &cobra.Command{
	Use:   "versions UUID",
	Short: "List the versions of a rule",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st store.RuleStore, args []string) error {
		versions, err := st.Versions(cmd.Context(), types.RuleUUID(args[0]))
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	}),
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rule uuids",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, st store.RuleStore, _ []string) error {
		ids, err := st.RuleIDs(cmd.Context())
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}),
}

var storeRestoreCmd = &cobra.Command{
	Use:   "restore UUID VERSION",
	Short: "Copy an old version into a new latest version",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, st store.RuleStore, args []string) error {
		version, err := strconv.Atoi(args[1])
		if err != nil || version < 1 {
			return fmt.Errorf("version must be a positive integer, got %q", args[1])
		}
		restored, err := st.Restore(cmd.Context(), types.RuleUUID(args[0]), version)
		if err != nil {
			return err
		}
		return writeRule(cmd.OutOrStdout(), restored)
	}),
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeCreateCmd, storeUpdateCmd, storeGetCmd, storeVersionsCmd, storeListCmd, storeRestoreCmd)
	storeGetCmd.Flags().Int("version", store.Latest, "version to print (latest when 0)")
	storeListCmd.Flags().Bool("json", false, "print a JSON array")
}

// withStore opens the configured store around fn.
func withStore(fn func(cmd *cobra.Command, st store.RuleStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		st, closeStore, err := e.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(cmd, st, args)
	}
}
