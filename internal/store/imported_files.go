package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetImportedFileHash returns the sha256 recorded for a seed file path.
// Returns empty string and nil error if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records that path was imported with the given content hash.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, sha256, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = excluded.sha256, imported_at = excluded.imported_at`,
		path, hash, time.Now().UTC(),
	)
	return err
}

// HasImportedHash reports whether any file with this content hash was imported.
func (s *Store) HasImportedHash(hash string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM imported_files WHERE sha256 = ?`, hash).Scan(&n)
	return n > 0, err
}
