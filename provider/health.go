package provider

import (
	"github.com/vmihailenco/msgpack/v5"
)

// healthProbePayload is the MessagePack-encoded placeholder body sent on a
// provider's health topic, per spec.md §4.4/§6.
type healthProbePayload struct {
	Placeholder bool `msgpack:"placeholder"`
}

func encodeHealthProbe() ([]byte, error) {
	return msgpack.Marshal(healthProbePayload{Placeholder: true})
}
