package host

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/latticerun/host/hostconfig"
	"github.com/latticerun/host/lattice"
	"github.com/latticerun/host/provider"
	"github.com/latticerun/host/registry"
)

func testParams(t *testing.T) (Params, *lattice.MemoryClient) {
	t.Helper()
	client := lattice.NewMemoryClient()
	tables := registry.NewTables()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := provider.Dependencies{
		Tables: tables,
		Client: client,
		Logger: logger,
		// Encoder is filled in by Start itself once the host's identity
		// exists. Claims/Refmaps are omitted here; provider tests exercise
		// that wiring directly.
	}

	return Params{
		Client: client,
		Tables: tables,
		Logger: logger,
		Deps:   deps,
	}, client
}

func TestStartPublishesHostStarted(t *testing.T) {
	params, client := testParams(t)
	cfg := hostconfig.Config{HostKey: "NHOSTKEY", LatticePrefix: "default"}

	state, err := Start(context.Background(), cfg, params)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	events := client.Events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one published event, got %d", len(events))
	}
	if events[0].Topic != lattice.EvtTopic("default") {
		t.Errorf("unexpected topic: %s", events[0].Topic)
	}
	if state.FriendlyName() == "" {
		t.Error("expected a non-empty friendly name")
	}
}

func TestShutdownPublishesHostStoppedAndPurges(t *testing.T) {
	params, client := testParams(t)
	cfg := hostconfig.Config{HostKey: "NHOSTKEY2", LatticePrefix: "default"}

	state, err := Start(context.Background(), cfg, params)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	state.Shutdown(context.Background())

	events := client.Events()
	if len(events) != 2 {
		t.Fatalf("expected host_started and host_stopped, got %d events", len(events))
	}
	if len(state.Providers().List()) != 0 {
		t.Error("expected no providers remaining after shutdown")
	}
}
