package provider

import "github.com/latticerun/host/claims"

// startedPayload is the data field of a provider_started event, per
// spec.md §6.
type startedPayload struct {
	PublicKey   string            `json:"public_key"`
	ImageRef    string            `json:"image_ref"`
	LinkName    string            `json:"link_name"`
	ContractID  string            `json:"contract_id"`
	InstanceID  string            `json:"instance_id"`
	Annotations map[string]string `json:"annotations"`
	Claims      claimsPayload     `json:"claims"`
}

type claimsPayload struct {
	Issuer         string   `json:"issuer"`
	Tags           []string `json:"tags"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	NotBeforeHuman string   `json:"not_before_human"`
	ExpiresHuman   string   `json:"expires_human"`
}

func toClaimsPayload(c claims.Claims) claimsPayload {
	return claimsPayload{
		Issuer:         c.Issuer,
		Tags:           c.Tags,
		Name:           c.Name,
		Version:        c.Version,
		NotBeforeHuman: c.NotBeforeHuman,
		ExpiresHuman:   c.ExpiresHuman,
	}
}

// stoppedPayload is the data field of a provider_stopped event.
type stoppedPayload struct {
	PublicKey  string `json:"public_key"`
	LinkName   string `json:"link_name"`
	ContractID string `json:"contract_id"`
	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason"`
}

// healthPayload is the data field of health_check_passed/failed events.
type healthPayload struct {
	PublicKey string `json:"public_key"`
	LinkName  string `json:"link_name"`
}
