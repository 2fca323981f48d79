package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"patentrag/internal/domain"
	"patentrag/internal/embedding"
	"patentrag/internal/vectorstore"
)

// FileName is the database file created inside the index directory.
const FileName = "index.db"

//go:embed schema.sql
var schema string

// Storage is a durable passage index in a single SQLite file. Vectors are kept
// as float32 BLOBs and scanned with cosine distance at query time.
type Storage struct {
	db   *sql.DB
	path string
}

// NewStorage opens (or creates) the index under dir.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: sqlite index directory is empty", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Storage{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

// Close closes the database connection.
func (s *Storage) Close() error { return s.db.Close() }

// Ingest inserts all entries in one transaction. A passage id that already
// exists fails the whole batch.
func (s *Storage) Ingest(ctx context.Context, entries []domain.IndexedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for _, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return fmt.Errorf("sqlite index: vector dimension mismatch: got %d, want %d", len(e.Vector), dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO index_meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("recording dimension: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, document_id, page_number, section_title, kind, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		md := e.Metadata
		if _, err := stmt.ExecContext(ctx, e.PassageID, md.DocumentID, md.PageNumber,
			md.SectionTitle, md.Kind, e.Text, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("inserting passage %s: %w", e.PassageID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing passages: %w", err)
	}
	return nil
}

type scored struct {
	seq      int64
	distance float64
}

// Query scans every stored vector and returns the k nearest by cosine
// distance. Ties keep insertion order.
func (s *Storage) Query(ctx context.Context, vector domain.Vector, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq, embedding FROM passages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("scanning embeddings: %w", err)
	}
	defer rows.Close()

	var hits []scored
	for rows.Next() {
		var (
			seq  int64
			blob []byte
		)
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, fmt.Errorf("reading embedding: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("passage row %d: %w", seq, err)
		}
		if len(vec) != len(vector) {
			return nil, fmt.Errorf("sqlite index: query dimension %d, index dimension %d", len(vector), len(vec))
		}
		hits = append(hits, scored{seq: seq, distance: 1 - embedding.Similarity(vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning embeddings: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		var (
			id      string
			md      domain.PassageMetadata
			content string
		)
		err := s.db.QueryRowContext(ctx, `
			SELECT id, document_id, page_number, section_title, kind, content
			FROM passages WHERE seq = ?`, h.seq).
			Scan(&id, &md.DocumentID, &md.PageNumber, &md.SectionTitle, &md.Kind, &content)
		if err != nil {
			return nil, fmt.Errorf("loading passage row %d: %w", h.seq, err)
		}
		results = append(results, domain.RetrievalResult{
			PassageID:  id,
			Text:       content,
			Similarity: vectorstore.Similarity(vectorstore.CosineDistance, h.distance),
			Metadata:   md,
		})
	}
	return results, nil
}

// GetByID loads a passage with its vector.
func (s *Storage) GetByID(ctx context.Context, passageID string) (domain.IndexedEntry, bool, error) {
	var (
		e    domain.IndexedEntry
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, page_number, section_title, kind, content, embedding
		FROM passages WHERE id = ?`, passageID).
		Scan(&e.PassageID, &e.Metadata.DocumentID, &e.Metadata.PageNumber,
			&e.Metadata.SectionTitle, &e.Metadata.Kind, &e.Text, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IndexedEntry{}, false, nil
	}
	if err != nil {
		return domain.IndexedEntry{}, false, fmt.Errorf("loading passage %s: %w", passageID, err)
	}
	if e.Vector, err = decodeVector(blob); err != nil {
		return domain.IndexedEntry{}, false, fmt.Errorf("passage %s: %w", passageID, err)
	}
	return e, true, nil
}

// Stats returns the number of stored passages.
func (s *Storage) Stats(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return n, nil
}

// DeleteDocument removes the passages of documentID.
func (s *Storage) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE document_id = ?`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting passages of %s: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting passages of %s: %w", documentID, err)
	}
	return int(n), nil
}

// Reset deletes all passages and the recorded dimension in one transaction,
// so the next ingest may use a different embedder.
func (s *Storage) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range []string{`DELETE FROM passages`, `DELETE FROM index_meta`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	return nil
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'dimension'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index dimension: %w", err)
	}
	dim, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: dimension %q", domain.ErrIndexCorrupted, v)
	}
	return dim, nil
}

var _ vectorstore.Storage = (*Storage)(nil)
