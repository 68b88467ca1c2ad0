package claims

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// row is the sqlite-mapped representation of a Claims record; tags are
// stored as a JSON array since sqlite has no native array column.
type row struct {
	PublicKey      string `db:"public_key"`
	Issuer         string `db:"issuer"`
	Name           string `db:"name"`
	Version        string `db:"version"`
	TagsJSON       string `db:"tags_json"`
	NotBeforeHuman string `db:"not_before_human"`
	ExpiresHuman   string `db:"expires_human"`
}

// Store persists Claims, keyed by public_key, overwritten on every start —
// modeled on the teacher's audit.Logger: one small sqlx-backed table, a
// DBInit schema function, and a handful of typed accessors.
type Store struct {
	db *sqlx.DB
}

// NewStore initializes the claims table (if absent) and returns a Store.
func NewStore(db *sqlx.DB) (*Store, error) {
	if err := DBInit(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DBInit creates the claims table.
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provider_claims (
			public_key TEXT PRIMARY KEY,
			issuer TEXT NOT NULL,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			tags_json TEXT NOT NULL,
			not_before_human TEXT NOT NULL,
			expires_human TEXT NOT NULL
		)
	`)
	return err
}

// Put persists c, replacing any existing claims for the same public key.
func (s *Store) Put(c Claims) error {
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("claims: failed to marshal tags: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO provider_claims (public_key, issuer, name, version, tags_json, not_before_human, expires_human)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(public_key) DO UPDATE SET
			issuer = excluded.issuer,
			name = excluded.name,
			version = excluded.version,
			tags_json = excluded.tags_json,
			not_before_human = excluded.not_before_human,
			expires_human = excluded.expires_human
	`, c.PublicKey, c.Issuer, c.Name, c.Version, string(tagsJSON), c.NotBeforeHuman, c.ExpiresHuman)
	return err
}

// Get returns the stored claims for publicKey, if any.
func (s *Store) Get(publicKey string) (Claims, bool, error) {
	var r row
	err := s.db.Get(&r, `SELECT * FROM provider_claims WHERE public_key = $1`, publicKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Claims{}, false, nil
		}
		return Claims{}, false, err
	}

	var tags []string
	if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil {
		return Claims{}, false, fmt.Errorf("claims: failed to unmarshal tags: %w", err)
	}

	return Claims{
		PublicKey:      r.PublicKey,
		Issuer:         r.Issuer,
		Name:           r.Name,
		Version:        r.Version,
		Tags:           tags,
		NotBeforeHuman: r.NotBeforeHuman,
		ExpiresHuman:   r.ExpiresHuman,
	}, true, nil
}

// Delete removes any stored claims for publicKey. Idempotent.
func (s *Store) Delete(publicKey string) error {
	_, err := s.db.Exec(`DELETE FROM provider_claims WHERE public_key = $1`, publicKey)
	return err
}
