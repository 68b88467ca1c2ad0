// Package hostinfo builds the JSON host descriptor handed to a starting
// provider on its standard input, and encodes it the way the child expects
// to receive it: base64(json(descriptor)) + "\n".
package hostinfo

import (
	"encoding/base64"
	"encoding/json"
)

// LinkDefinition is a binding between an actor public key and a
// (provider_key, link_name) pair, describing parameters for capability
// calls. The full definition lives in the out-of-scope link subsystem;
// only the fields a provider's bootstrap needs are modeled here.
type LinkDefinition struct {
	ActorID    string            `json:"actor_id"`
	ProviderKey string           `json:"provider_key"`
	LinkName   string            `json:"link_name"`
	ContractID string            `json:"contract_id"`
	Values     map[string]string `json:"values"`
}

// Descriptor is the JSON bootstrap document written to a provider's stdin
// at start, exactly per spec.md §4.3.
type Descriptor struct {
	HostID            string `json:"host_id"`
	LatticeRPCPrefix  string `json:"lattice_rpc_prefix"`
	LinkName          string `json:"link_name"`
	ProviderKey       string `json:"provider_key"`
	InstanceID        string `json:"instance_id"`

	LatticeRPCURL      string `json:"lattice_rpc_url"`
	LatticeRPCUserJWT  string `json:"lattice_rpc_user_jwt"`
	LatticeRPCUserSeed string `json:"lattice_rpc_user_seed"`
	LatticeRPCTLS      bool   `json:"lattice_rpc_tls"`

	DefaultRPCTimeoutMS int `json:"default_rpc_timeout_ms"`

	ClusterIssuers []string `json:"cluster_issuers"`
	InvocationSeed string   `json:"invocation_seed"`

	JSDomain string `json:"js_domain,omitempty"`

	EnableStructuredLogging bool `json:"enable_structured_logging"`

	EnvValues map[string]string `json:"env_values"`

	ConfigJSON string `json:"config_json"`

	LinkDefinitions []LinkDefinition `json:"link_definitions"`
}

const defaultRPCTimeoutMS = 2000

// LinkDefinitionLookup is the out-of-scope link-definition collaborator,
// normally served by the admin/registry-credential subsystem. It resolves
// the existing link definitions matching a (provider_key, link_name) pair
// at start time.
type LinkDefinitionLookup interface {
	Lookup(providerKey, linkName string) ([]LinkDefinition, error)
}

// Params are the caller-supplied inputs the builder has no other way to
// derive: everything else comes from the host's own state or config.
type Params struct {
	HostID             string
	LatticeRPCPrefix   string
	LinkName           string
	ProviderKey        string
	InstanceID         string
	LatticeRPCURL      string
	LatticeRPCUserJWT  string
	LatticeRPCUserSeed string
	LatticeRPCTLS      bool
	DefaultRPCTimeoutMS int // 0 means "use the default"
	ClusterIssuers     []string
	InvocationSeed     string
	JSDomain           string
	EnableStructuredLogging bool
	ConfigJSON         string
	LinkDefinitions    []LinkDefinition
}

// Build assembles a Descriptor from p, applying defaults for the fields
// spec.md §4.3 says default.
func Build(p Params) Descriptor {
	timeout := p.DefaultRPCTimeoutMS
	if timeout == 0 {
		timeout = defaultRPCTimeoutMS
	}

	linkDefs := p.LinkDefinitions
	if linkDefs == nil {
		linkDefs = []LinkDefinition{}
	}

	return Descriptor{
		HostID:                   p.HostID,
		LatticeRPCPrefix:         p.LatticeRPCPrefix,
		LinkName:                 p.LinkName,
		ProviderKey:              p.ProviderKey,
		InstanceID:               p.InstanceID,
		LatticeRPCURL:            p.LatticeRPCURL,
		LatticeRPCUserJWT:        p.LatticeRPCUserJWT,
		LatticeRPCUserSeed:       p.LatticeRPCUserSeed,
		LatticeRPCTLS:            p.LatticeRPCTLS,
		DefaultRPCTimeoutMS:      timeout,
		ClusterIssuers:           p.ClusterIssuers,
		InvocationSeed:           p.InvocationSeed,
		JSDomain:                 p.JSDomain,
		EnableStructuredLogging:  p.EnableStructuredLogging,
		EnvValues:                map[string]string{},
		ConfigJSON:               p.ConfigJSON,
		LinkDefinitions:          linkDefs,
	}
}

// EncodeStdinLine returns the exact bytes the parent writes to the child's
// stdin: base64(json(descriptor)) followed by a single newline.
func EncodeStdinLine(d Descriptor) ([]byte, error) {
	js, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(js)
	return append([]byte(encoded), '\n'), nil
}

// DecodeStdinLine reverses EncodeStdinLine; it is provided so both sides of
// the contract (and tests asserting the round-trip invariant) share one
// implementation.
func DecodeStdinLine(line []byte) (Descriptor, error) {
	trimmed := trimNewline(line)
	js, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return Descriptor{}, err
	}
	var d Descriptor
	if err := json.Unmarshal(js, &d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Default returns the zero-valued but structurally complete Descriptor that
// Build produces from empty Params; Build itself does no Config Table
// lookup and does not call Default. One source this
// design draws on returns a short tuple in that branch, omitting several
// required fields — a latent bug. This implementation always returns the
// full Descriptor shape instead, with every REQUIRED field present (RPC
// timeout at its documented default, env_values/link_definitions as empty
// collections rather than nil) even when the lookup it would normally use
// to populate it is unavailable.
func Default() Descriptor {
	return Build(Params{})
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
