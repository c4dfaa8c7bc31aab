// Package sqlite provides the local search index and ingestion ledger
// backed by a single SQLite database. Vectors are stored as little-endian
// float32 blobs; nearest neighbour queries scan the collection, which is
// exact and fast enough for corpora in the tens of thousands of chunks.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/junyang168/smart-answer/internal/adapters/driven/index/sqlite/migrations"
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

// Store is the SQLite-backed storage providing the search index and the
// ingestion ledger over one database file.
type Store struct {
	db           *sql.DB
	path         string
	modelVersion string
}

// NewStore opens (or creates) the store at the given data directory.
// If dataDir is empty, defaults to ~/.smart-answer/data/index.db.
// modelVersion is the embedding model version this writer produces;
// collections created by a different version reject upserts.
func NewStore(dataDir, modelVersion string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".smart-answer", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// WAL keeps queries usable while an ingestion run is writing.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:           db,
		path:         dbPath,
		modelVersion: modelVersion,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SearchIndex returns a SearchIndex backed by this store.
func (s *Store) SearchIndex() driven.SearchIndex {
	return &searchIndex{store: s}
}

// Ledger returns an IngestionLedger backed by this store.
func (s *Store) Ledger() driven.IngestionLedger {
	return &ledgerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Search Index ====================

// searchIndex implements driven.SearchIndex.
type searchIndex struct {
	store *Store
}

var _ driven.SearchIndex = (*searchIndex)(nil)

// Upsert writes chunks inside one transaction per call. Existing chunks
// for each touched content id are deleted first so a re-chunking never
// leaves stale trailing chunks.
func (s *searchIndex) Upsert(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.ensureCollection(ctx, tx, collection); err != nil {
		return err
	}

	byContent := map[string][]domain.Chunk{}
	for _, c := range chunks {
		byContent[c.ContentID] = append(byContent[c.ContentID], c)
	}

	deleteStmt, err := tx.PrepareContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND content_id = ?")
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, content_id, chunk_index, content, metadata, embedding, oversized, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer insertStmt.Close()

	now := time.Now().UTC()
	for contentID, group := range byContent {
		if _, err := deleteStmt.ExecContext(ctx, collection, contentID); err != nil {
			return fmt.Errorf("clearing chunks for %s: %w", contentID, err)
		}

		for _, chunk := range group {
			metadataJSON, err := marshalMetadata(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling chunk metadata: %w", err)
			}

			indexedAt := chunk.IndexedAt
			if indexedAt.IsZero() {
				indexedAt = now
			}

			if _, err := insertStmt.ExecContext(ctx, collection, chunk.ContentID, chunk.Index,
				chunk.Text, metadataJSON, float32SliceToBytes(chunk.Embedding),
				boolToInt(chunk.Oversized), indexedAt); err != nil {
				return fmt.Errorf("saving chunk %s: %w", chunk.ID(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ensureCollection creates the collection row on first write and rejects
// writers carrying a different embedding model version.
func (s *searchIndex) ensureCollection(ctx context.Context, tx *sql.Tx, collection string) error {
	var stored string
	err := tx.QueryRowContext(ctx,
		"SELECT model_version FROM collections WHERE name = ?", collection).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, model_version) VALUES (?, ?)",
			collection, s.store.modelVersion); err != nil {
			return fmt.Errorf("creating collection %s: %w", collection, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading collection %s: %w", collection, err)
	}

	if stored != s.store.modelVersion {
		return fmt.Errorf("%w: collection %s was built with %s, writer has %s",
			domain.ErrModelVersionMismatch, collection, stored, s.store.modelVersion)
	}
	return nil
}

// DeleteByContent removes every chunk for a content id.
func (s *searchIndex) DeleteByContent(ctx context.Context, collection, contentID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND content_id = ?", collection, contentID)
	if err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", contentID, err)
	}
	return nil
}

// Query scans the collection's vectors and returns the top k chunks by
// cosine similarity, ties broken by (content_id, chunk_index) ascending.
func (s *searchIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT content_id, chunk_index, content, metadata, embedding, oversized, indexed_at
		FROM chunks WHERE collection = ?
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredChunk
	for rows.Next() {
		var (
			chunk        domain.Chunk
			metadataJSON string
			embedding    []byte
			oversized    int
		)
		if err := rows.Scan(&chunk.ContentID, &chunk.Index, &chunk.Text,
			&metadataJSON, &embedding, &oversized, &chunk.IndexedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		chunk.Collection = collection
		chunk.Oversized = oversized != 0
		chunk.Embedding = bytesToFloat32Slice(embedding)
		if chunk.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}

		scored = append(scored, domain.ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(vector, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.ContentID != scored[j].Chunk.ContentID {
			return scored[i].Chunk.ContentID < scored[j].Chunk.ContentID
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// ModelVersion returns the version the collection was created with, or
// empty if the collection has never been written.
func (s *searchIndex) ModelVersion(ctx context.Context, collection string) (string, error) {
	var version string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT model_version FROM collections WHERE name = ?", collection).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading collection %s: %w", collection, err)
	}
	return version, nil
}

// Close is satisfied by the owning Store.
func (s *searchIndex) Close() error {
	return nil
}

// ==================== Ingestion Ledger ====================

// ledgerStore implements driven.IngestionLedger.
type ledgerStore struct {
	store *Store
}

var _ driven.IngestionLedger = (*ledgerStore)(nil)

// Get retrieves the ledger entry for a content id.
func (l *ledgerStore) Get(ctx context.Context, collection, contentID string) (*driven.LedgerEntry, error) {
	row := l.store.db.QueryRowContext(ctx, `
		SELECT collection, content_id, content_hash, state, last_error, updated_at
		FROM ingestion_ledger WHERE collection = ? AND content_id = ?
	`, collection, contentID)

	var (
		entry driven.LedgerEntry
		state string
	)
	if err := row.Scan(&entry.Collection, &entry.ContentID, &entry.ContentHash,
		&state, &entry.LastError, &entry.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning ledger entry: %w", err)
	}

	entry.State = domain.ParseIngestionState(state)
	return &entry, nil
}

// Put stores or updates an entry.
func (l *ledgerStore) Put(ctx context.Context, entry driven.LedgerEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_ledger (collection, content_id, content_hash, state, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, content_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			state = excluded.state,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, entry.Collection, entry.ContentID, entry.ContentHash,
		entry.State.String(), entry.LastError, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving ledger entry: %w", err)
	}
	return nil
}

// List returns all entries for a collection.
func (l *ledgerStore) List(ctx context.Context, collection string) ([]driven.LedgerEntry, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT collection, content_id, content_hash, state, last_error, updated_at
		FROM ingestion_ledger WHERE collection = ?
		ORDER BY content_id
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []driven.LedgerEntry
	for rows.Next() {
		var (
			entry driven.LedgerEntry
			state string
		)
		if err := rows.Scan(&entry.Collection, &entry.ContentID, &entry.ContentHash,
			&state, &entry.LastError, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entry.State = domain.ParseIngestionState(state)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger: %w", err)
	}

	return entries, nil
}

// ==================== Helper Functions ====================

// marshalMetadata serialises ordered metadata as a JSON pair array so
// key order survives the round trip.
func marshalMetadata(m *domain.Metadata) (string, error) {
	if m == nil {
		return "[]", nil
	}
	data, err := json.Marshal(m.Pairs())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalMetadata restores ordered metadata from its pair-array form.
func unmarshalMetadata(data string) (*domain.Metadata, error) {
	if data == "" || data == "[]" {
		return domain.NewMetadata(), nil
	}
	var pairs [][2]string
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, err
	}
	return domain.MetadataFromPairs(pairs), nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
