// Package metadata implements the MetadataStore: the durable local index
// of files, shard placements, and human names. A writer mutex
// serializes all mutations; readers run transactional, snapshot-consistent
// queries that may proceed concurrently with each other.
package metadata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ioustamora/datamesh-sub004/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	content_key     BLOB PRIMARY KEY,
	original_name   TEXT NOT NULL,
	byte_size       INTEGER NOT NULL,
	created_at      INTEGER NOT NULL,
	owner_identity  TEXT NOT NULL,
	plan_k          INTEGER NOT NULL,
	plan_m          INTEGER NOT NULL,
	sealed_file_key BLOB NOT NULL,
	tags            TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS placements (
	shard_key      BLOB PRIMARY KEY,
	content_key    BLOB NOT NULL REFERENCES files(content_key) ON DELETE CASCADE,
	shard_index    INTEGER NOT NULL,
	observed_peers TEXT NOT NULL DEFAULT '[]',
	refreshed_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_placements_content_key ON placements(content_key);

CREATE TABLE IF NOT EXISTS names (
	name        TEXT NOT NULL,
	owner       TEXT NOT NULL,
	content_key BLOB NOT NULL,
	tags        TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (name, owner)
);
`

// Store is the MetadataStore: one *sql.DB plus a writer mutex enforcing
// the single-writer discipline the concurrency model requires.
type Store struct {
	db       *sql.DB
	writerMu sync.Mutex
	maxBytes int64
}

// Open opens (creating if absent) the sqlite database at path, applies
// the schema, and enables WAL mode so readers never block on the writer.
// maxBytes bounds the on-disk size Commit will allow growth past (0
// disables the check).
func Open(path string, maxBytes int64) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metadata: open: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: foreign_keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: apply schema: %w", err)
	}
	return &Store{db: db, maxBytes: maxBytes}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CommitFile durably records a FileEnvelope and its placements in one
// transaction. A second commit for the same content_key (the only way
// two PUTs for the same content race, since content_key is deterministic)
// is a no-op: MetadataStore never leaves partial state behind a failed
// or retried PUT.
func (s *Store) CommitFile(env model.FileEnvelope, placements []model.PlacementRecord) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if s.maxBytes > 0 {
		var pageCount, pageSize int64
		_ = s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount)
		_ = s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize)
		if pageCount*pageSize > s.maxBytes {
			return ErrMetadataFull
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM files WHERE content_key = ?`, env.ContentKey[:]).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return tx.Commit()
	}

	tagsJSON, err := json.Marshal(env.Tags)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO files (content_key, original_name, byte_size, created_at, owner_identity, plan_k, plan_m, sealed_file_key, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		env.ContentKey[:], env.OriginalName, env.ByteSize, env.CreatedAt.Unix(), env.OwnerIdentity,
		env.Plan.K, env.Plan.M, env.SealedFileKey, string(tagsJSON),
	)
	if err != nil {
		return wrapConstraint(err)
	}

	for _, p := range placements {
		peersJSON, err := json.Marshal(p.ObservedPeers)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO placements (shard_key, content_key, shard_index, observed_peers, refreshed_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(shard_key) DO UPDATE SET observed_peers = excluded.observed_peers, refreshed_at = excluded.refreshed_at`,
			p.ShardKey[:], p.ContentKey[:], p.ShardIndex, string(peersJSON), p.RefreshedAt.Unix(),
		)
		if err != nil {
			return wrapConstraint(err)
		}
	}
	return tx.Commit()
}

// UpsertPlacement refreshes a single placement row, used by NetworkActor's
// republication pass when a PlacementRecord goes stale.
func (s *Store) UpsertPlacement(p model.PlacementRecord) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	peersJSON, err := json.Marshal(p.ObservedPeers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO placements (shard_key, content_key, shard_index, observed_peers, refreshed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(shard_key) DO UPDATE SET observed_peers = excluded.observed_peers, refreshed_at = excluded.refreshed_at`,
		p.ShardKey[:], p.ContentKey[:], p.ShardIndex, string(peersJSON), p.RefreshedAt.Unix(),
	)
	return wrapConstraint(err)
}

// RegisterName binds name → content_key for owner. Fails with
// ErrNameAlreadyExists if owner already has a name entry by this name.
func (s *Store) RegisterName(name, owner string, contentKey [32]byte, tags []string) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO names (name, owner, content_key, tags) VALUES (?, ?, ?, ?)`,
		name, owner, contentKey[:], string(tagsJSON),
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrNameAlreadyExists
		}
		return wrapConstraint(err)
	}
	return nil
}

// ReplaceName binds name → content_key for owner, overwriting any
// existing binding. Used by put_file's overwrite path.
func (s *Store) ReplaceName(name, owner string, contentKey [32]byte, tags []string) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO names (name, owner, content_key, tags) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name, owner) DO UPDATE SET content_key = excluded.content_key, tags = excluded.tags`,
		name, owner, contentKey[:], string(tagsJSON),
	)
	return wrapConstraint(err)
}

// ResolveName looks up the content_key a name is bound to for owner.
func (s *Store) ResolveName(name, owner string) ([32]byte, error) {
	var key [32]byte
	var raw []byte
	err := s.db.QueryRow(`SELECT content_key FROM names WHERE name = ? AND owner = ?`, name, owner).Scan(&raw)
	if err == sql.ErrNoRows {
		return key, ErrUnknownName
	}
	if err != nil {
		return key, err
	}
	if len(raw) != 32 {
		return key, ErrMetadataCorrupt
	}
	copy(key[:], raw)
	return key, nil
}

// GetFile loads the FileEnvelope for contentKey.
func (s *Store) GetFile(contentKey [32]byte) (model.FileEnvelope, error) {
	var env model.FileEnvelope
	var createdUnix int64
	var tagsJSON string
	row := s.db.QueryRow(
		`SELECT original_name, byte_size, created_at, owner_identity, plan_k, plan_m, sealed_file_key, tags
		 FROM files WHERE content_key = ?`, contentKey[:])
	err := row.Scan(&env.OriginalName, &env.ByteSize, &createdUnix, &env.OwnerIdentity,
		&env.Plan.K, &env.Plan.M, &env.SealedFileKey, &tagsJSON)
	if err == sql.ErrNoRows {
		return env, ErrUnknownFile
	}
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &env.Tags); err != nil {
		return env, ErrMetadataCorrupt
	}
	env.ContentKey = contentKey
	env.CreatedAt = time.Unix(createdUnix, 0).UTC()
	return env, nil
}

// ListFilter narrows ListFiles to files whose tag_set intersects Tags
// (empty Tags matches everything) and whose OwnerIdentity equals Owner
// (empty Owner matches everything).
type ListFilter struct {
	Owner string
	Tags  []string
}

// ListFiles returns FileEnvelope summaries matching filter, newest first.
// Purely local: committed (not in-flight) files only.
func (s *Store) ListFiles(filter ListFilter) ([]model.FileEnvelope, error) {
	query := `SELECT content_key, original_name, byte_size, created_at, owner_identity, plan_k, plan_m, sealed_file_key, tags
	          FROM files`
	var args []any
	if filter.Owner != "" {
		query += ` WHERE owner_identity = ?`
		args = append(args, filter.Owner)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FileEnvelope
	for rows.Next() {
		var env model.FileEnvelope
		var rawKey []byte
		var createdUnix int64
		var tagsJSON string
		if err := rows.Scan(&rawKey, &env.OriginalName, &env.ByteSize, &createdUnix, &env.OwnerIdentity,
			&env.Plan.K, &env.Plan.M, &env.SealedFileKey, &tagsJSON); err != nil {
			return nil, err
		}
		if len(rawKey) != 32 {
			return nil, ErrMetadataCorrupt
		}
		copy(env.ContentKey[:], rawKey)
		if err := json.Unmarshal([]byte(tagsJSON), &env.Tags); err != nil {
			return nil, ErrMetadataCorrupt
		}
		env.CreatedAt = time.Unix(createdUnix, 0).UTC()
		if len(filter.Tags) > 0 && !tagsIntersect(filter.Tags, env.Tags) {
			continue
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

// PlacementsForFile returns every placement row for contentKey.
func (s *Store) PlacementsForFile(contentKey [32]byte) ([]model.PlacementRecord, error) {
	rows, err := s.db.Query(
		`SELECT shard_key, shard_index, observed_peers, refreshed_at FROM placements WHERE content_key = ?`,
		contentKey[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlacementRecord
	for rows.Next() {
		var rec model.PlacementRecord
		var rawShardKey []byte
		var peersJSON string
		var refreshedUnix int64
		if err := rows.Scan(&rawShardKey, &rec.ShardIndex, &peersJSON, &refreshedUnix); err != nil {
			return nil, err
		}
		if len(rawShardKey) != 32 {
			return nil, ErrMetadataCorrupt
		}
		copy(rec.ShardKey[:], rawShardKey)
		rec.ContentKey = contentKey
		if err := json.Unmarshal([]byte(peersJSON), &rec.ObservedPeers); err != nil {
			return nil, ErrMetadataCorrupt
		}
		rec.RefreshedAt = time.Unix(refreshedUnix, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StalePlacements returns placements across every file whose
// RefreshedAt is older than refreshInterval relative to now. Only these
// are re-provided on the republish timer (resolves the specification's
// Open Question on republication scope).
func (s *Store) StalePlacements(refreshInterval time.Duration, now time.Time) ([]model.PlacementRecord, error) {
	cutoff := now.Add(-refreshInterval).Unix()
	rows, err := s.db.Query(
		`SELECT shard_key, content_key, shard_index, observed_peers, refreshed_at FROM placements WHERE refreshed_at < ?`,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlacementRecord
	for rows.Next() {
		var rec model.PlacementRecord
		var rawShardKey, rawContentKey []byte
		var peersJSON string
		var refreshedUnix int64
		if err := rows.Scan(&rawShardKey, &rawContentKey, &rec.ShardIndex, &peersJSON, &refreshedUnix); err != nil {
			return nil, err
		}
		if len(rawShardKey) != 32 || len(rawContentKey) != 32 {
			return nil, ErrMetadataCorrupt
		}
		copy(rec.ShardKey[:], rawShardKey)
		copy(rec.ContentKey[:], rawContentKey)
		if err := json.Unmarshal([]byte(peersJSON), &rec.ObservedPeers); err != nil {
			return nil, ErrMetadataCorrupt
		}
		rec.RefreshedAt = time.Unix(refreshedUnix, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteFile removes the file row, every placement row for it, and any
// name entries bound to it. Shards already placed on the DHT are left
// for TTL expiry to garbage-collect; this only unwinds local state.
func (s *Store) DeleteFile(contentKey [32]byte) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM names WHERE content_key = ?`, contentKey[:]); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM placements WHERE content_key = ?`, contentKey[:]); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM files WHERE content_key = ?`, contentKey[:])
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnknownFile
	}
	return tx.Commit()
}

func tagsIntersect(want, have []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func wrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraint(err) {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	return err
}

// isUniqueConstraint reports whether err came from a UNIQUE/PRIMARY KEY
// violation. modernc.org/sqlite surfaces these as plain errors whose text
// contains the sqlite message, so we match on substring like the
// database/sql ecosystem commonly does for drivers without a typed error.
func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
