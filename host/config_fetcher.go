package host

import "context"

// SupplementalConfigFetcher is the out-of-scope supplemental-configuration
// collaborator, normally backed by a request on the lattice config topic.
// It is optional: a nil fetcher simply skips the supplemental_config step.
type SupplementalConfigFetcher interface {
	Fetch(ctx context.Context, labels map[string]string) (map[string]string, error)
}
