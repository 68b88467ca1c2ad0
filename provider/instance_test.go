package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/latticerun/host/claims"
	"github.com/latticerun/host/hostconfig"
	"github.com/latticerun/host/hostinfo"
	"github.com/latticerun/host/lattice"
	"github.com/latticerun/host/registry"
	_ "github.com/mattn/go-sqlite3"
)

func testDeps(t *testing.T) (Dependencies, *lattice.MemoryClient) {
	t.Helper()

	db := sqlx.MustConnect("sqlite3", t.TempDir()+"/test.db")
	t.Cleanup(func() { db.Close() })

	claimsStore, err := claims.NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	refmapStore, err := claims.NewRefmapStore(db)
	if err != nil {
		t.Fatalf("NewRefmapStore: %v", err)
	}

	tables := registry.NewTables()
	tables.SetConfig(hostconfig.Config{
		HostKey:       "NHOSTKEY",
		LatticePrefix: "default",
		RPCTimeoutMS:  200,
	})

	client := lattice.NewMemoryClient()

	deps := Dependencies{
		Tables:  tables,
		Client:  client,
		Encoder: lattice.NewEncoder(memoryHost{}),
		Claims:  claimsStore,
		Refmaps: refmapStore,
		Links:   nil,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return deps, client
}

type memoryHost struct{}

func (memoryHost) HostKey() string       { return "NHOSTKEY" }
func (memoryHost) LatticePrefix() string { return "default" }

func testClaims(pubKey string) claims.Claims {
	return claims.Claims{
		PublicKey: pubKey,
		Issuer:    "NISSUER",
		Name:      "test-provider",
		Version:   "0.1.0",
		Tags:      []string{"test"},
	}
}

// waitFor polls cond until it returns true or the deadline elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestStartPublishesProviderStarted(t *testing.T) {
	deps, client := testDeps(t)

	inst, err := Start(context.Background(), deps, StartRequest{
		ExecutablePath: "/bin/sleep",
		Claims:         testClaims("NPUBKEY1"),
		LinkName:       "default",
		ContractID:     "wasmcloud:test",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(inst.Halt)

	waitFor(t, time.Second, func() bool { return len(client.Events()) > 0 })

	events := client.Events()
	if len(events) == 0 {
		t.Fatal("expected at least one published event")
	}
	if events[0].Topic != lattice.EvtTopic("default") {
		t.Errorf("unexpected topic: %s", events[0].Topic)
	}

	if inst.InstanceID() == deadSentinel {
		t.Error("expected a real instance id while running")
	}
}

func TestStartRejectsDuplicateIdentity(t *testing.T) {
	deps, _ := testDeps(t)

	first, err := Start(context.Background(), deps, StartRequest{
		ExecutablePath: "/bin/sleep",
		Claims:         testClaims("NPUBKEY2"),
		LinkName:       "default",
		ContractID:     "wasmcloud:test",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(first.Halt)

	_, err = Start(context.Background(), deps, StartRequest{
		ExecutablePath: "/bin/sleep",
		Claims:         testClaims("NPUBKEY2"),
		LinkName:       "default",
		ContractID:     "wasmcloud:test",
	})
	var dup *registry.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		t.Fatalf("expected *registry.AlreadyRegisteredError, got %v", err)
	}
}

func TestHaltIsIdempotentAndEmitsStopped(t *testing.T) {
	deps, client := testDeps(t)

	inst, err := Start(context.Background(), deps, StartRequest{
		ExecutablePath: "/bin/sleep",
		Claims:         testClaims("NPUBKEY3"),
		LinkName:       "default",
		ContractID:     "wasmcloud:test",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	inst.Halt()
	inst.Halt() // must not panic or double-publish

	waitFor(t, time.Second, func() bool { return len(client.Events()) >= 2 })

	if _, ok := deps.Tables.Lookup(inst.Identity()); ok {
		t.Error("expected identity to be deregistered after halt")
	}
	if inst.InstanceID() != deadSentinel {
		t.Errorf("expected dead sentinel after halt, got %q", inst.InstanceID())
	}
}

func TestExitReasonNormalExit(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	err := cmd.Run()
	if got := exitReason(err); got != "normal" {
		t.Errorf("exitReason(nil-exit) = %q, want normal", got)
	}
}

func TestExitReasonNonZeroExit(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	err := cmd.Run()
	if got := exitReason(err); got != "7" {
		t.Errorf("exitReason(exit 7) = %q, want 7", got)
	}
}

func TestFilteredEnvDropsEverythingUnlisted(t *testing.T) {
	t.Setenv("SOME_UNRELATED_VAR", "leak-me-not")
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	env := filteredEnv()
	if len(env) != 1 || env[0] != "OTEL_TRACES_EXPORTER=otlp" {
		t.Errorf("filteredEnv() = %v, want exactly [OTEL_TRACES_EXPORTER=otlp]", env)
	}
}

// newTestInstance builds an *Instance directly, bypassing Start's spawn
// protocol, so the health edge-only state machine can be driven without a
// real child process or the healthLoop timers.
func newTestInstance(deps Dependencies, pubKey string) *Instance {
	return &Instance{
		deps:          deps,
		identity:      registry.Identity{PublicKey: pubKey, LinkName: "default"},
		instanceID:    "test-instance",
		latticePrefix: "default",
		rpcTimeout:    20 * time.Millisecond,
		logs:          newLogBuffer(logBufferCapacity),
	}
}

func TestHealthCheckFiresOnlyOnEdges(t *testing.T) {
	deps, client := testDeps(t)
	inst := newTestInstance(deps, "NPUBKEYHEALTH")

	healthEvents := func() int {
		n := 0
		for _, e := range client.Events() {
			if e.Topic == lattice.EvtTopic("default") {
				n++
			}
		}
		return n
	}

	// No responder installed: every probe times out. The instance starts
	// unhealthy (atomic.Bool zero value), so repeated failures must not
	// publish health_check_failed.
	inst.performHealthCheck()
	inst.performHealthCheck()
	if inst.Healthy() {
		t.Fatal("expected instance to remain unhealthy with no responder")
	}
	if n := healthEvents(); n != 0 {
		t.Fatalf("expected no health events while staying unhealthy, got %d", n)
	}

	// First success: false->true edge, must publish health_check_passed.
	client.SetResponder(func(topic string, body []byte) ([]byte, bool) { return []byte("ok"), true })
	inst.performHealthCheck()
	if !inst.Healthy() {
		t.Fatal("expected instance to become healthy")
	}
	if n := healthEvents(); n != 1 {
		t.Fatalf("expected exactly one health event after the first success, got %d", n)
	}

	// Repeated success: no edge, no new event.
	inst.performHealthCheck()
	inst.performHealthCheck()
	if n := healthEvents(); n != 1 {
		t.Fatalf("expected no additional health events while staying healthy, got %d", n)
	}

	// Failure: true->false edge, must publish health_check_failed.
	client.SetResponder(func(topic string, body []byte) ([]byte, bool) { return nil, false })
	inst.performHealthCheck()
	if inst.Healthy() {
		t.Fatal("expected instance to become unhealthy")
	}
	if n := healthEvents(); n != 2 {
		t.Fatalf("expected a second health event after the failure edge, got %d", n)
	}

	// Repeated failure: no edge, no new event.
	inst.performHealthCheck()
	if n := healthEvents(); n != 2 {
		t.Fatalf("expected no additional health events while staying unhealthy, got %d", n)
	}
}

func TestHostinfoLookupFailureStillYieldsFullDescriptor(t *testing.T) {
	// Regression guard for the documented fix: a nil LinkDefinitionLookup
	// must never shrink the descriptor's shape.
	d := hostinfo.Default()
	if d.EnvValues == nil || d.LinkDefinitions == nil {
		t.Error("expected empty, non-nil collections in the default descriptor")
	}
	if d.DefaultRPCTimeoutMS == 0 {
		t.Error("expected the documented default RPC timeout")
	}
}
