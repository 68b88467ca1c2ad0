package provider

import "fmt"

// SpawnFailedError is returned when the OS refuses to exec the provider
// binary or pipe setup fails.
type SpawnFailedError struct {
	Path string
	Err  error
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("provider: failed to spawn %q: %v", e.Path, e.Err)
}

func (e *SpawnFailedError) Unwrap() error { return e.Err }

// DiedError describes a provider that exited unexpectedly; it is reported
// exactly once via provider_stopped and is never retried by this
// subsystem (restart policy is transient — see spec.md §4.5).
type DiedError struct {
	Reason string
}

func (e *DiedError) Error() string {
	return fmt.Sprintf("provider: died: %s", e.Reason)
}
