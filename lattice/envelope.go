package lattice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HostIdentity is the minimal information the encoder needs to stamp onto
// every outgoing event: the host's own key (source) and the lattice prefix
// (to compute the publication topic).
type HostIdentity interface {
	HostKey() string
	LatticePrefix() string
}

// Envelope is a CloudEvents-1.0-compliant event envelope, canonically
// serialized as JSON.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Time            string          `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

const typePrefix = "com.wasmcloud.lattice."

// Encoder wraps payloads in the CloudEvents envelope and knows which topic
// they publish on. Encode is publication-agnostic and only returns the
// serialized bytes; Publish hands them to a caller-supplied lattice.Client.
type Encoder struct {
	host HostIdentity
}

// NewEncoder builds an Encoder that reads host_key and lattice_prefix from
// host at call time, so event payloads never need to cache them.
func NewEncoder(host HostIdentity) *Encoder {
	return &Encoder{host: host}
}

// Encode wraps payload (any JSON-marshalable value) in a CloudEvents
// envelope of the given kind (e.g. "provider_started") and returns the
// canonical JSON bytes along with the topic to publish them on.
func (e *Encoder) Encode(kind string, payload any) (topic string, body []byte, err error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}

	env := Envelope{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Source:          e.host.HostKey(),
		Type:            typePrefix + kind,
		Time:            time.Now().UTC().Format(time.RFC3339Nano),
		DataContentType: "application/json",
		Data:            data,
	}

	body, err = json.Marshal(env)
	if err != nil {
		return "", nil, err
	}
	return EvtTopic(e.host.LatticePrefix()), body, nil
}

// Publish encodes payload and hands it to client on the topic derived from
// the host's current lattice prefix.
func (e *Encoder) Publish(ctx context.Context, client Client, kind string, payload any) error {
	topic, body, err := e.Encode(kind, payload)
	if err != nil {
		return err
	}
	return client.Publish(ctx, topic, body)
}
