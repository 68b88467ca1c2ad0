package provider

import (
	"context"
	"sync"

	"github.com/latticerun/host/registry"
)

// Supervisor is the Provider Supervisor of spec.md §4.5: the component the
// Host Supervisor calls into to start a provider and to tear every running
// provider down during shutdown. Registration state lives in the
// Registration Tables; the Supervisor additionally keeps its own map of
// live Instances, the same way the teacher's ProcessManager holds its
// processes directly, so log queries (RecentLogs) don't need a channel
// round trip through the narrow registry.Handle the tables expose.
type Supervisor struct {
	deps   Dependencies
	tables *registry.Tables

	mu        sync.Mutex
	instances map[registry.Identity]*Instance
}

// NewSupervisor builds a Provider Supervisor over the shared dependencies
// and Registration Tables the Host Supervisor owns.
func NewSupervisor(deps Dependencies) *Supervisor {
	return &Supervisor{
		deps:      deps,
		tables:    deps.Tables,
		instances: make(map[registry.Identity]*Instance),
	}
}

// StartProvider runs the full start protocol for req and returns the new
// Instance, or *registry.AlreadyRegisteredError if an instance with the
// same (public_key, link_name) is already running.
func (s *Supervisor) StartProvider(ctx context.Context, req StartRequest) (*Instance, error) {
	inst, err := Start(ctx, s.deps, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.instances[inst.Identity()] = inst
	s.mu.Unlock()

	return inst, nil
}

// Stop halts the provider registered under identity, if any. It is a no-op
// if no such provider is running.
func (s *Supervisor) Stop(identity registry.Identity) {
	rec, ok := s.tables.Lookup(identity)
	if !ok {
		return
	}
	rec.Handle.Halt()

	s.mu.Lock()
	delete(s.instances, identity)
	s.mu.Unlock()
}

// TerminateAll halts every currently registered provider concurrently and
// waits for all of them to finish, per the host's purge/shutdown path
// (spec.md §4.6).
func (s *Supervisor) TerminateAll() {
	var wg sync.WaitGroup
	for _, rec := range s.tables.List() {
		wg.Add(1)
		go func(h registry.Handle) {
			defer wg.Done()
			h.Halt()
		}(rec.Handle)
	}
	wg.Wait()

	s.mu.Lock()
	s.instances = make(map[registry.Identity]*Instance)
	s.mu.Unlock()
}

// List returns a snapshot of every provider currently registered.
func (s *Supervisor) List() []registry.Record {
	return s.tables.List()
}

// Logs returns up to count of the most recent stdout/stderr lines recorded
// by the provider started under identity through this supervisor, oldest
// first. The second return value is false if no such provider is known;
// providers removed by Stop or TerminateAll are no longer known.
func (s *Supervisor) Logs(identity registry.Identity, count int) ([]LogEntry, bool) {
	s.mu.Lock()
	inst, ok := s.instances[identity]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return inst.RecentLogs(count), true
}
