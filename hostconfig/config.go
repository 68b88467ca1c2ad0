// Package hostconfig loads the process-wide configuration keys the host
// supervisor ingests at startup, and exposes the small set of shared
// helpers (truthiness parsing, default values) those keys need.
package hostconfig

import (
	"os"
	"strconv"
	"strings"
)

// Config is the immutable snapshot of host startup options, stored in the
// Registration Tables' Config Table and read by every component that needs
// it (lattice prefix, RPC timeout, and so on).
type Config struct {
	HostKey       string
	LatticePrefix string

	ClusterKey     string
	ClusterIssuers []string
	ClusterSeed    string
	ClusterAdhoc   bool

	HostSeed string

	ProvRPCHost string
	ProvRPCPort string
	ProvRPCJWT  string
	ProvRPCSeed string
	ProvRPCTLS  bool

	RPCTimeoutMS  int
	ProviderDelay int

	EnableStructuredLogging bool
	JSDomain                string
	ConfigServiceEnabled    bool
}

const (
	defaultRPCTimeoutMS  = 2000
	defaultProviderDelay = 300
)

// Load reads every key spec.md §6 names from the environment, applying the
// documented defaults where a key is absent.
func Load() Config {
	return Config{
		HostKey:       os.Getenv("HOST_KEY"),
		LatticePrefix: os.Getenv("LATTICE_PREFIX"),

		ClusterKey:     os.Getenv("CLUSTER_KEY"),
		ClusterIssuers: splitNonEmpty(os.Getenv("CLUSTER_ISSUERS"), ","),
		ClusterSeed:    os.Getenv("CLUSTER_SEED"),
		ClusterAdhoc:   Truthy(os.Getenv("CLUSTER_ADHOC")),

		HostSeed: os.Getenv("HOST_SEED"),

		ProvRPCHost: os.Getenv("PROV_RPC_HOST"),
		ProvRPCPort: os.Getenv("PROV_RPC_PORT"),
		ProvRPCJWT:  os.Getenv("PROV_RPC_JWT"),
		ProvRPCSeed: os.Getenv("PROV_RPC_SEED"),
		ProvRPCTLS:  Truthy(os.Getenv("PROV_RPC_TLS")),

		RPCTimeoutMS:  intOrDefault(os.Getenv("RPC_TIMEOUT_MS"), defaultRPCTimeoutMS),
		ProviderDelay: intOrDefault(os.Getenv("PROVIDER_DELAY"), defaultProviderDelay),

		EnableStructuredLogging: Truthy(os.Getenv("ENABLE_STRUCTURED_LOGGING")),
		JSDomain:                os.Getenv("JS_DOMAIN"),
		ConfigServiceEnabled:    Truthy(os.Getenv("CONFIG_SERVICE_ENABLED")),
	}
}

// Truthy recognizes the recognized truthy tokens of spec.md §6,
// case-insensitively, including the informal aliases preserved from the
// original host implementation.
func Truthy(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "YES", "Y", "ENABLED", "YOU BETCHA", "YUPPERS", "TOTES":
		return true
	default:
		return false
	}
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
