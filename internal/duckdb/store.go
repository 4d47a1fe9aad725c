// Package duckdb loads variant records into DuckDB for ad-hoc querying.
// Sites and per-sample genotypes go to separate tables joined by site_id;
// loaded files are fingerprinted so an unchanged file is not loaded twice.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding loaded variants.
type Store struct {
	db     *sql.DB
	path   string
	nextID int64
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := db.QueryRow("SELECT COALESCE(MAX(site_id), 0) FROM sites").Scan(&s.nextID); err != nil {
		db.Close()
		return nil, fmt.Errorf("read site ids: %w", err)
	}
	s.nextID++

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextSiteID returns the site_id given to the next written record. Ids
// of one WriteVariants call, and of consecutive calls, are contiguous.
func (s *Store) NextSiteID() int64 {
	return s.nextID
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sites (
			site_id BIGINT PRIMARY KEY,
			chrom VARCHAR,
			pos BIGINT,
			end_pos BIGINT,
			id VARCHAR,
			ref VARCHAR,
			alt VARCHAR,
			qual DOUBLE,
			filter VARCHAR,
			type VARCHAR,
			info VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS genotypes (
			site_id BIGINT,
			sample VARCHAR,
			gt VARCHAR,
			type VARCHAR,
			gq INTEGER,
			dp INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS loaded_files (
			path VARCHAR PRIMARY KEY,
			size BIGINT,
			mod_time TIMESTAMP,
			first_site_id BIGINT,
			records BIGINT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
