package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// IsLoaded reports whether a file with the same path, size and
// modification time has already been loaded.
func (s *Store) IsLoaded(fp FileFingerprint) (bool, error) {
	var size int64
	var modTime time.Time
	err := s.db.QueryRow("SELECT size, mod_time FROM loaded_files WHERE path=?", fp.Path).Scan(&size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query loaded file: %w", err)
	}
	return size == fp.Size && modTime.Equal(fp.ModTime.UTC().Truncate(time.Microsecond)), nil
}

// RecordLoad stores the fingerprint of a loaded file together with the
// site ids its records got, replacing any earlier entry for the path.
func (s *Store) RecordLoad(fp FileFingerprint, firstSiteID, records int64) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO loaded_files VALUES (?, ?, ?, ?, ?)`,
		fp.Path, fp.Size, fp.ModTime.UTC().Truncate(time.Microsecond), firstSiteID, records); err != nil {
		return fmt.Errorf("record loaded file: %w", err)
	}
	return nil
}

// RemoveFile deletes the sites and genotypes of an earlier load of path,
// and its entry in loaded_files. It returns the number of sites removed;
// a path that was never loaded removes nothing.
func (s *Store) RemoveFile(path string) (int64, error) {
	var first, records int64
	err := s.db.QueryRow("SELECT first_site_id, records FROM loaded_files WHERE path=?", path).Scan(&first, &records)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query loaded file: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	end := first + records
	if _, err := tx.Exec("DELETE FROM genotypes WHERE site_id >= ? AND site_id < ?", first, end); err != nil {
		return 0, fmt.Errorf("delete genotypes: %w", err)
	}
	res, err := tx.Exec("DELETE FROM sites WHERE site_id >= ? AND site_id < ?", first, end)
	if err != nil {
		return 0, fmt.Errorf("delete sites: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM loaded_files WHERE path=?", path); err != nil {
		return 0, fmt.Errorf("delete loaded file: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return res.RowsAffected()
}
