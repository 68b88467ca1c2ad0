// Package claims models the signed metadata associated with a provider and
// persists it, alongside the image-reference map, to sqlite via sqlx —
// following the same store-per-concern shape the rest of this host uses for
// its other small persisted tables.
package claims

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed metadata describing a provider's identity and
// attributes, exactly the fields of spec.md §3.
type Claims struct {
	PublicKey      string   `json:"public_key" db:"public_key"`
	Issuer         string   `json:"issuer" db:"issuer"`
	Name           string   `json:"name" db:"name"`
	Version        string   `json:"version" db:"version"`
	Tags           []string `json:"tags" db:"-"`
	NotBeforeHuman string   `json:"not_before_human" db:"not_before_human"`
	ExpiresHuman   string   `json:"expires_human" db:"expires_human"`
}

// token is the JWT claim set a signed provider claims blob is expected to
// carry, modeled the same way this host's user-session JWTs are shaped: a
// thin wrapper implementing jwt.Claims plus the domain-specific fields.
type token struct {
	jwt.RegisteredClaims
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Tags    []string `json:"tags"`
}

// ParseUnverified extracts Claims from a signed JWT without verifying the
// signature. Claim verification against a cluster issuer key is explicitly
// out of scope for this subsystem (spec.md "Non-goals"); this host trusts
// claims handed to it by its caller and only needs to read the fields back
// out.
func ParseUnverified(signed string) (Claims, error) {
	var t token
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(signed, &t); err != nil {
		return Claims{}, err
	}

	return Claims{
		PublicKey:      t.Subject,
		Issuer:         t.Issuer,
		Name:           t.Name,
		Version:        t.Version,
		Tags:           t.Tags,
		NotBeforeHuman: formatNumericDate(t.NotBefore),
		ExpiresHuman:   formatNumericDate(t.ExpiresAt),
	}, nil
}

func formatNumericDate(d *jwt.NumericDate) string {
	if d == nil {
		return ""
	}
	return d.Time.UTC().Format("2006-01-02T15:04:05Z")
}
