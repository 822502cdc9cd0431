package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/server"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/preview"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC rule tools service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9101, "prometheus metrics port (0 disables)")
	serveCmd.Flags().Bool("watch", false, "reload catalog.path when it changes")
	serveCmd.Flags().Bool("resolve", false, "resolve rule references through the rule store")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg := e.cfg
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.Server.MetricsPort, _ = cmd.Flags().GetInt("metrics-port")
	}
	if cmd.Flags().Changed("watch") {
		cfg.Catalog.Watch, _ = cmd.Flags().GetBool("watch")
	}

	src, err := e.catalogSource(ctx)
	if err != nil {
		return err
	}
	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		go func() {
			if err := src.Watch(ctx, cfg.Catalog.Path, 0); err != nil {
				e.log.Error("catalog watcher stopped", "error", err)
			}
		}()
	}
	if cfg.Catalog.Refresh != "" {
		stop, err := src.Schedule(ctx, cfg.Catalog.Refresh)
		if err != nil {
			return err
		}
		defer stop()
	}

	popts := preview.Options{}
	if cfg.Preview.OnCoercionFail == "null" {
		popts.OnCoercionFail = preview.OnCoercionNull
	}
	if resolve, _ := cmd.Flags().GetBool("resolve"); resolve {
		st, closeStore, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		popts.Resolver = store.Resolver{Store: st}
	}

	service, err := api.NewService(src, api.Options{
		Preview:         popts,
		MaxBatchRecords: cfg.Server.MaxBatchRecords,
		Logger:          e.log,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	var authenticator *auth.Authenticator
	if cfg.Server.Token != "" {
		if authenticator, err = auth.NewAuthenticator(cfg.Server.Token); err != nil {
			return err
		}
	} else {
		e.log.Warn("no server token configured (set RK_SERVER_TOKEN); requests are not authenticated")
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, authenticator, e.log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	e.log.Info("starting rulekeeper rule tools service", "version", Version, "addr", cfg.Server.Addr())
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		e.log.Info("shutting down gracefully")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
		defer done()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
