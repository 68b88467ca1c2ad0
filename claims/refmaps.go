package claims

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// RefmapStore persists image_ref -> public_key associations, recorded when
// a provider starts with a non-empty image_ref (spec.md §4.4 step 9).
type RefmapStore struct {
	db *sqlx.DB
}

// NewRefmapStore initializes the refmaps table (if absent) and returns a
// RefmapStore.
func NewRefmapStore(db *sqlx.DB) (*RefmapStore, error) {
	if err := RefmapDBInit(db); err != nil {
		return nil, err
	}
	return &RefmapStore{db: db}, nil
}

// RefmapDBInit creates the refmaps table.
func RefmapDBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provider_refmaps (
			image_ref TEXT PRIMARY KEY,
			public_key TEXT NOT NULL
		)
	`)
	return err
}

// Put records that imageRef resolves to publicKey.
func (s *RefmapStore) Put(imageRef, publicKey string) error {
	_, err := s.db.Exec(`
		INSERT INTO provider_refmaps (image_ref, public_key)
		VALUES ($1, $2)
		ON CONFLICT(image_ref) DO UPDATE SET public_key = excluded.public_key
	`, imageRef, publicKey)
	return err
}

// Get returns the public key associated with imageRef, if any.
func (s *RefmapStore) Get(imageRef string) (string, bool, error) {
	var publicKey string
	err := s.db.Get(&publicKey, `SELECT public_key FROM provider_refmaps WHERE image_ref = $1`, imageRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return publicKey, true, nil
}

// Delete removes any refmap entry for imageRef. Idempotent.
func (s *RefmapStore) Delete(imageRef string) error {
	_, err := s.db.Exec(`DELETE FROM provider_refmaps WHERE image_ref = $1`, imageRef)
	return err
}
