package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/core/catalogsrc"
	"github.com/solatis/rulekeeper/internal/core/client"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// env is the configuration and logger of one command invocation.
type env struct {
	cfg *config.Config
	log *slog.Logger
}

// setup loads configuration, applies the global flags and builds the logger.
// Logs go to stderr; command output goes to stdout.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.Store.DBURL = dbURL
	}
	log, err := logging.New(logLevel, logFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) clientOptions() client.Options {
	return client.Options{
		Token:   e.cfg.Services.Token,
		Timeout: e.cfg.Services.Timeout,
		Logger:  e.log,
	}
}

// catalogSource loads the catalog from catalog.path, or else catalog.url.
func (e *env) catalogSource(ctx context.Context) (*catalogsrc.Source, error) {
	switch {
	case e.cfg.Catalog.Path != "":
		return catalogsrc.New(ctx, catalogsrc.FileLoader(e.cfg.Catalog.Path), e.log)
	case e.cfg.Catalog.URL != "":
		cc := client.NewCatalogClient(e.cfg.Catalog.URL, e.clientOptions())
		return catalogsrc.New(ctx, cc.Fetch, e.log)
	}
	return nil, fmt.Errorf("no catalog configured (set catalog.path or catalog.url, or RK_CATALOG_PATH)")
}

// openStore returns the remote storage service when services.storage_url is
// set, else the local database store. The local database must be migrated.
func (e *env) openStore(ctx context.Context) (store.RuleStore, func() error, error) {
	if url := e.cfg.Services.StorageURL; url != "" {
		return client.NewStorageClient(url, e.clientOptions()), func() error { return nil }, nil
	}

	database, err := db.Open(e.cfg.Store.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'rulekeeper migrate' first", s.ID)
		}
	}
	st, err := db.NewStore(database, types.UUIDGenerator{}, e.log)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return st, database.Close, nil
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func readRule(cmd *cobra.Command, path string) (rules.Rule, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return rules.Rule{}, err
	}
	return canon.Hydrate(data)
}

func argOrStdin(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// writeRule prints r in canonical form, indented for terminals.
func writeRule(w io.Writer, r rules.Rule) error {
	data, err := canon.MarshalIndent(r, "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
