// Command host runs a lattice host: it initializes the Registration
// Tables, brings up the claims and refmap stores, publishes host_started,
// and blocks until a termination signal triggers a graceful shutdown of
// every running provider.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/latticerun/host/claims"
	"github.com/latticerun/host/hostconfig"
	"github.com/latticerun/host/host"
	"github.com/latticerun/host/lattice"
	"github.com/latticerun/host/provider"
	"github.com/latticerun/host/registry"
)

func main() {
	var dataDir = flag.String("data-dir", ".", "directory for the claims and refmap sqlite databases")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	logger.Info("starting lattice host")

	cfg := hostconfig.Load()
	if cfg.HostKey == "" {
		logger.Error("HOST_KEY is required")
		os.Exit(1)
	}
	if cfg.LatticePrefix == "" {
		logger.Error("LATTICE_PREFIX is required")
		os.Exit(1)
	}

	claimsDB := sqlx.MustConnect("sqlite3", filepath.Join(*dataDir, "claims.db"))
	claimsStore, err := claims.NewStore(claimsDB)
	if err != nil {
		logger.Error("failed to initialize claims store", "error", err)
		os.Exit(1)
	}

	refmapsDB := sqlx.MustConnect("sqlite3", filepath.Join(*dataDir, "refmaps.db"))
	refmapStore, err := claims.NewRefmapStore(refmapsDB)
	if err != nil {
		logger.Error("failed to initialize refmap store", "error", err)
		os.Exit(1)
	}

	tables := registry.NewTables()

	// The real lattice bus transport is an out-of-scope collaborator (see
	// spec.md §1 Non-goals); the in-memory client keeps this host runnable
	// standalone until one is wired in.
	client := lattice.NewMemoryClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := provider.Dependencies{
		Tables:  tables,
		Client:  client,
		Claims:  claimsStore,
		Refmaps: refmapStore,
		Logger:  logger,
	}

	state, err := host.Start(ctx, cfg, host.Params{
		Client: client,
		Tables: tables,
		Logger: logger,
		Deps:   deps,
	})
	if err != nil {
		logger.Error("failed to start host", "error", err)
		os.Exit(1)
	}
	logger.Info("host started", "host_key", cfg.HostKey, "friendly_name", state.FriendlyName())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig.String())

	state.Shutdown(context.Background())
	logger.Info("host shutdown complete")
}
