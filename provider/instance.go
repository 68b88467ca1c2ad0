// Package provider implements the Provider Instance and Provider
// Supervisor: the per-provider supervised worker that owns a child process,
// monitors it, runs health probes, emits lifecycle events, serves identity
// queries, and performs cleanup, plus the factory/registry that enforces
// identity uniqueness across instances.
//
// Each Instance is its own long-lived task with a serialized command
// inbox, following the same "one goroutine owns this entity's mutable
// state" discipline the teacher's ManagedProcess/ProcessManager pair uses —
// generalized here from a mailboxed-process model to an explicit channel
// per instance.
package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/latticerun/host/hostinfo"
	"github.com/latticerun/host/lattice"
	"github.com/latticerun/host/registry"
)

const (
	firstHealthProbeDelay = 5 * time.Second
	healthProbeInterval   = 30 * time.Second

	deadSentinel = "n/a"

	logBufferCapacity = 1000
	inboxCapacity     = 32
)

// envAllowlist is the only environment the child process inherits from its
// parent, per spec.md §6.
var envAllowlist = []string{"OTEL_TRACES_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT"}

// Instance is a Provider Instance: a supervised worker owning one child
// process. Exported methods are safe to call from any goroutine; internal
// state transitions are all executed on the instance's own loop goroutine.
type Instance struct {
	deps Dependencies

	identity       registry.Identity
	contractID     string
	instanceID     string
	executablePath string
	imageRef       string
	annotations    map[string]string
	latticePrefix  string // snapshot of host config at start
	rpcTimeout     time.Duration

	pid  int
	logs *logBuffer

	healthy    atomic.Bool
	dead       atomic.Bool
	terminated bool // loop-goroutine-only; guards inbox teardown

	inbox chan func()
	done  chan struct{}
}

// Start executes the ordered start protocol of spec.md §4.4: mint an
// instance id, register identity, insert the triple row, build the host
// descriptor, spawn the child with a filtered environment, write the
// descriptor to its stdin, persist claims, publish provider_started,
// record the refmap, and schedule health probes.
func Start(ctx context.Context, deps Dependencies, req StartRequest) (*Instance, error) {
	identity := registry.Identity{PublicKey: req.Claims.PublicKey, LinkName: req.LinkName}
	if identity.LinkName == "" {
		identity.LinkName = "default"
	}

	cfg, _ := deps.Tables.Config()

	inst := &Instance{
		deps:           deps,
		identity:       identity,
		contractID:     req.ContractID,
		instanceID:     uuid.NewString(),
		executablePath: req.ExecutablePath,
		imageRef:       req.ImageRef,
		annotations:    copyStringMap(req.Annotations),
		latticePrefix:  cfg.LatticePrefix,
		rpcTimeout:     time.Duration(cfg.RPCTimeoutMS) * time.Millisecond,
		logs:           newLogBuffer(logBufferCapacity),
		inbox:          make(chan func(), inboxCapacity),
		done:           make(chan struct{}),
	}

	// Steps 2-3: register identity and the triple row. Both table writes
	// happen inside registry.Tables.Register under one lock, so external
	// observers never see one without the other.
	rec := registry.Record{
		Identity:   identity,
		ContractID: req.ContractID,
		InstanceID: inst.instanceID,
		Handle:     inst,
	}
	if err := deps.Tables.Register(rec); err != nil {
		return nil, err
	}

	go inst.loop()

	// Step 4: build the host descriptor.
	var linkDefs []hostinfo.LinkDefinition
	if deps.Links != nil {
		defs, err := deps.Links.Lookup(identity.PublicKey, identity.LinkName)
		if err != nil {
			deps.Logger.Warn("failed to look up link definitions", "identity", identity.String(), "error", err)
		} else {
			linkDefs = defs
		}
	}
	descriptor := hostinfo.Build(hostinfo.Params{
		HostID:                  cfg.HostKey,
		LatticeRPCPrefix:        cfg.LatticePrefix,
		LinkName:                identity.LinkName,
		ProviderKey:             identity.PublicKey,
		InstanceID:              inst.instanceID,
		LatticeRPCURL:           fmt.Sprintf("%s:%s", cfg.ProvRPCHost, cfg.ProvRPCPort),
		LatticeRPCUserJWT:       cfg.ProvRPCJWT,
		LatticeRPCUserSeed:      cfg.ProvRPCSeed,
		LatticeRPCTLS:           cfg.ProvRPCTLS,
		DefaultRPCTimeoutMS:     cfg.RPCTimeoutMS,
		ClusterIssuers:          cfg.ClusterIssuers,
		InvocationSeed:          uuid.NewString(),
		JSDomain:                cfg.JSDomain,
		EnableStructuredLogging: cfg.EnableStructuredLogging,
		ConfigJSON:              req.ConfigJSON,
		LinkDefinitions:         linkDefs,
	})

	// Step 5: spawn with the filtered environment and streamed stdio.
	cmd := exec.Command(req.ExecutablePath)
	cmd.Env = filteredEnv()

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, inst.abortStart(&SpawnFailedError{Path: req.ExecutablePath, Err: err})
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, inst.abortStart(&SpawnFailedError{Path: req.ExecutablePath, Err: err})
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, inst.abortStart(&SpawnFailedError{Path: req.ExecutablePath, Err: err})
	}

	if err := cmd.Start(); err != nil {
		return nil, inst.abortStart(&SpawnFailedError{Path: req.ExecutablePath, Err: err})
	}
	inst.pid = cmd.Process.Pid

	// Step 6: write the base64 descriptor line. The contract closes no
	// streams afterward, including stdin.
	line, err := hostinfo.EncodeStdinLine(descriptor)
	if err != nil {
		deps.Logger.Error("failed to encode host descriptor", "identity", identity.String(), "error", err)
	} else if _, err := stdinPipe.Write(line); err != nil {
		deps.Logger.Error("failed to write host descriptor to provider stdin", "identity", identity.String(), "error", err)
	}

	// Step 7: persist claims. A failure here is logged, not fatal.
	if err := deps.Claims.Put(req.Claims); err != nil {
		deps.Logger.Error("failed to persist provider claims", "identity", identity.String(), "error", err)
	}

	go inst.readOutput(stdoutPipe, "stdout")
	go inst.readOutput(stderrPipe, "stderr")

	// Step 8: publish provider_started, through the same inbox monitorChild
	// uses for provider_stopped, so the two can never reorder. monitorChild
	// starts only after provider_started is enqueued.
	inst.send(func() {
		inst.publish("provider_started", startedPayload{
			PublicKey:   identity.PublicKey,
			ImageRef:    req.ImageRef,
			LinkName:    identity.LinkName,
			ContractID:  req.ContractID,
			InstanceID:  inst.instanceID,
			Annotations: inst.annotations,
			Claims:      toClaimsPayload(req.Claims),
		})
	})
	go inst.monitorChild(cmd)

	// Step 9: record the refmap if an image ref was supplied.
	if req.ImageRef != "" {
		if err := deps.Refmaps.Put(req.ImageRef, identity.PublicKey); err != nil {
			deps.Logger.Error("failed to persist provider refmap", "identity", identity.String(), "error", err)
		}
	}

	// Step 10: schedule health probes.
	go inst.healthLoop()

	return inst, nil
}

// abortStart undoes registration when spawn fails: failures up to and
// including spawn leave no registry residue at all.
func (p *Instance) abortStart(err error) error {
	p.deps.Tables.Deregister(p.identity)
	close(p.inbox)
	return err
}

// loop is the instance's serialized command inbox: every state transition
// (health outcome, child exit, halt) runs here, one at a time.
func (p *Instance) loop() {
	for cmd := range p.inbox {
		cmd()
		if p.terminated {
			close(p.done)
			return
		}
	}
}

// send delivers cmd to the instance's inbox. It reports false without
// enqueuing anything if the instance has already finished tearing down.
func (p *Instance) send(cmd func()) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.inbox <- cmd:
		return true
	case <-p.done:
		return false
	}
}

// Identity returns the provider's (public_key, link_name) pair.
func (p *Instance) Identity() registry.Identity { return p.identity }

// ContractID returns the capability contract this instance implements.
func (p *Instance) ContractID() string { return p.contractID }

// InstanceID returns the freshly minted identifier assigned at start, or
// the sentinel "n/a" if the instance is dead.
func (p *Instance) InstanceID() string {
	if p.dead.Load() {
		return deadSentinel
	}
	return p.instanceID
}

// Annotations returns the caller-supplied annotation map, or an empty map
// if the instance is dead.
func (p *Instance) Annotations() map[string]string {
	if p.dead.Load() {
		return map[string]string{}
	}
	return copyStringMap(p.annotations)
}

// OCIRef returns the provider's image reference, or the sentinel "n/a" if
// the instance is dead.
func (p *Instance) OCIRef() string {
	if p.dead.Load() {
		return deadSentinel
	}
	return p.imageRef
}

// Path returns the provider's executable path, or the sentinel "n/a" if the
// instance is dead.
func (p *Instance) Path() string {
	if p.dead.Load() {
		return deadSentinel
	}
	return p.executablePath
}

// Healthy reports the current health state.
func (p *Instance) Healthy() bool { return p.healthy.Load() }

// RecentLogs returns up to count of the most recent stdout/stderr lines
// recorded from the child process, oldest first.
func (p *Instance) RecentLogs(count int) []LogEntry {
	return p.logs.latest(count)
}

// Halt voluntarily stops the provider. It is idempotent — a second call on
// an already-dead instance is a no-op — and synchronous: it returns only
// after provider_stopped has been handed to the lattice client.
func (p *Instance) Halt() {
	done := make(chan struct{})
	accepted := p.send(func() {
		p.stop("normal", true)
		close(done)
	})
	if !accepted {
		return
	}
	// If another command stopped the instance first, this one never runs;
	// the loop's own done channel closes only after that provider_stopped.
	select {
	case <-done:
	case <-p.done:
	}
}

// stop runs on the loop goroutine. sendSignal is true for a voluntary halt
// (SIGKILL is sent as a safety net even though the caller-side handle may
// already believe the child is gone) and false when the child has already
// exited on its own.
func (p *Instance) stop(reason string, sendSignal bool) {
	if p.dead.Load() {
		return
	}
	p.dead.Store(true)

	if sendSignal && p.pid > 0 {
		if err := syscall.Kill(p.pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			p.deps.Logger.Warn("failed to signal provider process", "identity", p.identity.String(), "pid", p.pid, "error", err)
		}
	}

	if !sendSignal && reason != "normal" {
		p.deps.Logger.Error("provider died", "identity", p.identity.String(), "error", &DiedError{Reason: reason})
	}

	p.publish("provider_stopped", stoppedPayload{
		PublicKey:  p.identity.PublicKey,
		LinkName:   p.identity.LinkName,
		ContractID: p.contractID,
		InstanceID: p.instanceID,
		Reason:     reason,
	})

	p.deps.Tables.Deregister(p.identity)
	p.terminated = true
}

// monitorChild waits for the child to exit and reports it to the instance's
// inbox as an ordinary command, preserving serialized inbox ordering.
func (p *Instance) monitorChild(cmd *exec.Cmd) {
	err := cmd.Wait()
	reason := exitReason(err)
	p.send(func() {
		p.stop(reason, false)
	})
}

// readOutput streams one of the child's stdio pipes into the instance's log
// buffer and the structured logger, one line at a time.
func (p *Instance) readOutput(pipe io.ReadCloser, source string) {
	defer pipe.Close()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		p.send(func() {
			p.logs.add(LogEntry{Source: source, Message: line, PID: p.pid})
			p.deps.Logger.Info("provider output",
				"provider_id", p.identity.PublicKey,
				"link_name", p.identity.LinkName,
				"contract_id", p.contractID,
				"source", source,
				"message", line)
		})
	}
}

// healthLoop schedules the first probe at +5s and every 30s thereafter,
// per spec.md §4.4.
func (p *Instance) healthLoop() {
	timer := time.NewTimer(firstHealthProbeDelay)
	defer timer.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-timer.C:
			if !p.send(p.performHealthCheck) {
				return
			}
			timer.Reset(healthProbeInterval)
		}
	}
}

// performHealthCheck runs on the loop goroutine. The RPC probe itself
// blocks the owning instance for up to the configured RPC timeout, per
// spec.md §5.
func (p *Instance) performHealthCheck() {
	if p.dead.Load() {
		return
	}

	body, err := encodeHealthProbe()
	if err != nil {
		p.deps.Logger.Error("failed to encode health probe payload", "identity", p.identity.String(), "error", err)
		return
	}

	topic := lattice.HealthTopic(p.latticePrefix, p.identity.PublicKey, p.identity.LinkName)
	ctx, cancel := context.WithTimeout(context.Background(), p.rpcTimeout)
	defer cancel()

	_, err = p.deps.Client.Request(ctx, topic, body, p.rpcTimeout)
	p.updateHealthy(err == nil)
}

// updateHealthy applies the edge-only state machine of spec.md §4.4:
// events fire only on false->true and true->false transitions.
func (p *Instance) updateHealthy(healthy bool) {
	if p.healthy.Load() == healthy {
		return
	}
	p.healthy.Store(healthy)

	kind := "health_check_failed"
	if healthy {
		kind = "health_check_passed"
	}
	p.publish(kind, healthPayload{PublicKey: p.identity.PublicKey, LinkName: p.identity.LinkName})
}

// publish encodes and sends a lattice event, absorbing any failure as
// PublishFailed: logged, never fatal (spec.md §7).
func (p *Instance) publish(kind string, payload any) {
	if err := p.deps.Encoder.Publish(context.Background(), p.deps.Client, kind, payload); err != nil {
		p.deps.Logger.Error("failed to publish lattice event", "kind", kind, "identity", p.identity.String(), "error", err)
	}
}

// exitReason interprets a child's exit status as either "normal" or the
// decimal status / signal name, per spec.md §6.
func exitReason(err error) string {
	if err == nil {
		return "normal"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return status.Signal().String()
			}
			if status.ExitStatus() == 0 {
				return "normal"
			}
			return strconv.Itoa(status.ExitStatus())
		}
	}
	return err.Error()
}

// filteredEnv returns the parent's environment restricted to the allowlist
// of spec.md §6, dropping empty values.
func filteredEnv() []string {
	var out []string
	for _, key := range envAllowlist {
		if v := os.Getenv(key); v != "" {
			out = append(out, key+"="+v)
		}
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
