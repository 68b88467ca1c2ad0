// Package host implements the Host Supervisor: the process-wide lifecycle
// that owns the Registration Tables, assembles startup labels, publishes
// host_started/host_stopped, and tears down every provider on shutdown.
package host

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/latticerun/host/hostconfig"
	"github.com/latticerun/host/lattice"
	"github.com/latticerun/host/provider"
	"github.com/latticerun/host/registry"
)

// drainDelay is the pause between publishing host_stopped and exiting the
// process, giving the lattice client a chance to flush, per spec.md §4.6.
const drainDelay = 300 * time.Millisecond

// State is the running Host Supervisor: its identity, its Registration
// Tables, its Provider Supervisor, and the collaborators both need.
type State struct {
	hostKey       string
	latticePrefix string
	labels        map[string]string
	friendlyName  string

	supplementalConfig map[string]string

	tables     *registry.Tables
	client     lattice.Client
	encoder    *lattice.Encoder
	supervisor *provider.Supervisor
	logger     *slog.Logger

	configFetcher SupplementalConfigFetcher
}

// HostKey implements lattice.HostIdentity.
func (s *State) HostKey() string { return s.hostKey }

// LatticePrefix implements lattice.HostIdentity.
func (s *State) LatticePrefix() string { return s.latticePrefix }

// Labels returns the assembled startup labels.
func (s *State) Labels() map[string]string { return s.labels }

// FriendlyName returns the deterministic two-word name derived from the
// host key.
func (s *State) FriendlyName() string { return s.friendlyName }

// SupplementalConfig returns the configuration fetched at boot, if any.
func (s *State) SupplementalConfig() map[string]string { return s.supplementalConfig }

// Providers returns the Provider Supervisor this host drives.
func (s *State) Providers() *provider.Supervisor { return s.supervisor }

// Params are the inputs Start needs beyond the process environment.
type Params struct {
	Client        lattice.Client
	Tables        *registry.Tables
	Logger        *slog.Logger
	ConfigFetcher SupplementalConfigFetcher
	Deps          provider.Dependencies
}

// Start initializes the Registration Tables' Config Table, assembles
// labels, publishes host_started, optionally fetches supplemental
// configuration, and returns a running State. Per spec.md §4.6.
func Start(ctx context.Context, cfg hostconfig.Config, p Params) (*State, error) {
	p.Tables.SetConfig(cfg)

	s := &State{
		hostKey:       cfg.HostKey,
		latticePrefix: cfg.LatticePrefix,
		labels:        assembleLabels(os.Environ()),
		friendlyName:  friendlyName(cfg.HostKey),
		tables:        p.Tables,
		client:        p.Client,
		logger:        p.Logger,
		configFetcher: p.ConfigFetcher,
	}
	s.encoder = lattice.NewEncoder(s)

	// The encoder is only available once the host's own identity (s) exists,
	// so it cannot be part of the Dependencies the caller assembles; wire it
	// in here before any provider is started.
	p.Deps.Encoder = s.encoder
	s.supervisor = provider.NewSupervisor(p.Deps)

	if err := s.encoder.Publish(ctx, s.client, "host_started", hostStartedPayload{
		Labels:       s.labels,
		FriendlyName: s.friendlyName,
	}); err != nil {
		s.logger.Error("failed to publish host_started", "error", err)
	}

	if cfg.ConfigServiceEnabled && s.configFetcher != nil {
		fetched, err := s.configFetcher.Fetch(ctx, s.labels)
		if err != nil {
			s.logger.Warn("failed to fetch supplemental configuration", "error", err)
		} else {
			s.supplementalConfig = fetched
		}
	}

	return s, nil
}

// Shutdown purges every running provider — each halt publishes its own
// provider_stopped — then publishes host_stopped and sleeps drainDelay to
// let the events flush. The caller is expected to exit the process
// immediately afterward.
//
// §4.6's prose and the purge/shutdown scenario disagree on ordering; this
// follows the scenario (provider_stopped events precede host_stopped) since
// it is the more specific, testable of the two. See DESIGN.md.
func (s *State) Shutdown(ctx context.Context) {
	s.purge()

	if err := s.encoder.Publish(ctx, s.client, "host_stopped", hostStoppedPayload{Labels: s.labels}); err != nil {
		s.logger.Error("failed to publish host_stopped", "error", err)
	}

	time.Sleep(drainDelay)
}

// purge terminates every running provider. Actor termination is out of
// scope for this subsystem (see spec.md §1 Non-goals).
func (s *State) purge() {
	s.supervisor.TerminateAll()
}

type hostStartedPayload struct {
	Labels       map[string]string `json:"labels"`
	FriendlyName string            `json:"friendly_name"`
}

type hostStoppedPayload struct {
	Labels map[string]string `json:"labels"`
}
