package host

import (
	"os"
	"runtime"
	"strings"
)

// hostEnvPrefix is the environment-variable prefix from which host labels
// are derived, per spec.md §4.6.
const hostEnvPrefix = "HOST_"

// assembleLabels merges environment-derived labels (every variable
// prefixed HOST_, lowercased and stripped of that prefix) with
// platform-detected labels. Environment-derived labels win on conflict,
// since they are the operator's explicit override.
func assembleLabels(environ []string) map[string]string {
	labels := platformLabels()

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, hostEnvPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, hostEnvPrefix))
		if name == "" {
			continue
		}
		labels[name] = value
	}

	return labels
}

// platformLabels reports the small set of labels this host can derive from
// its own runtime without any external collaborator.
func platformLabels() map[string]string {
	labels := map[string]string{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		labels["hostname"] = hostname
	}
	return labels
}
