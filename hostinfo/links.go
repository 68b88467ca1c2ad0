package hostinfo

import "sync"

// StaticLinkLookup is an in-memory LinkDefinitionLookup that returns
// whatever has been seeded for a (providerKey, linkName) pair, or an empty
// slice if nothing was seeded. It stands in for the out-of-scope
// admin/registry-credential subsystem that would normally serve this.
type StaticLinkLookup struct {
	mu    sync.RWMutex
	links map[string][]LinkDefinition
}

// NewStaticLinkLookup returns an empty StaticLinkLookup.
func NewStaticLinkLookup() *StaticLinkLookup {
	return &StaticLinkLookup{links: make(map[string][]LinkDefinition)}
}

// Seed records defs as the link definitions for (providerKey, linkName).
func (l *StaticLinkLookup) Seed(providerKey, linkName string, defs []LinkDefinition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links[linkKey(providerKey, linkName)] = defs
}

// Lookup implements LinkDefinitionLookup.
func (l *StaticLinkLookup) Lookup(providerKey, linkName string) ([]LinkDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.links[linkKey(providerKey, linkName)], nil
}

func linkKey(providerKey, linkName string) string {
	return providerKey + "/" + linkName
}
