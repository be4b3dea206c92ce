package remote

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store with blobs on a local bucket directory and a
// SQLite index of uploaded figures and their captions. It stands in for the
// hosted storage backend and shares its public-URL scheme.
type SQLiteStore struct {
	db      *sql.DB
	root    string
	baseURL string
}

// NewSQLiteStore opens (or creates) the index database and bucket root.
// baseURL is the public prefix under which the bucket is served.
func NewSQLiteStore(dbPath, bucketRoot, baseURL string) (*SQLiteStore, error) {
	if err := os.MkdirAll(bucketRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating bucket root: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, root: bucketRoot, baseURL: strings.TrimSuffix(baseURL, "/")}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS figures (
		paper_id TEXT NOT NULL,
		figure_id TEXT NOT NULL,
		url TEXT NOT NULL,
		caption TEXT,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (paper_id, figure_id)
	);

	CREATE INDEX IF NOT EXISTS idx_figures_paper ON figures(paper_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func splitKey(key string) (paperID, figureID string, ok bool) {
	paperID, rest, found := strings.Cut(key, "/")
	if !found || paperID == "" || rest == "" {
		return "", "", false
	}
	return paperID, strings.TrimSuffix(rest, ".png"), true
}

// Put writes the blob into the bucket and upserts its index row. Repeating
// a put with the same key overwrites the same file with the same bytes.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	paperID, figureID, ok := splitKey(key)
	if !ok {
		return "", fmt.Errorf("malformed storage key %q", key)
	}

	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("creating bucket dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", key, err)
	}

	url := s.baseURL + "/" + key
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO figures (paper_id, figure_id, url, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(paper_id, figure_id) DO UPDATE SET url = excluded.url, uploaded_at = excluded.uploaded_at
	`, paperID, figureID, url, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("indexing blob %s: %w", key, err)
	}
	return url, nil
}

// GetURL looks up the public URL of an uploaded figure.
func (s *SQLiteStore) GetURL(ctx context.Context, paperID, figureID string) (string, bool) {
	var url string
	err := s.db.QueryRowContext(ctx,
		`SELECT url FROM figures WHERE paper_id = ? AND figure_id = ?`,
		paperID, figureID).Scan(&url)
	if err != nil || url == "" {
		return "", false
	}
	return url, true
}

// GetCaption looks up the caption recorded for an uploaded figure.
func (s *SQLiteStore) GetCaption(ctx context.Context, paperID, figureID string) (string, bool) {
	var caption sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT caption FROM figures WHERE paper_id = ? AND figure_id = ?`,
		paperID, figureID).Scan(&caption)
	if err != nil || !caption.Valid || caption.String == "" {
		return "", false
	}
	return caption.String, true
}

// FigureIDs lists the figure ids uploaded for a paper.
func (s *SQLiteStore) FigureIDs(ctx context.Context, paperID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT figure_id FROM figures WHERE paper_id = ? ORDER BY figure_id`, paperID)
	if err != nil {
		return nil, fmt.Errorf("listing figures for %s: %w", paperID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordCaption stores caption metadata for an uploaded figure. Inserts a
// caption-only row when the blob has not been uploaded yet.
func (s *SQLiteStore) RecordCaption(ctx context.Context, paperID, figureID, caption string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO figures (paper_id, figure_id, url, caption)
		VALUES (?, ?, '', ?)
		ON CONFLICT(paper_id, figure_id) DO UPDATE SET caption = excluded.caption
	`, paperID, figureID, caption)
	if err != nil {
		return fmt.Errorf("recording caption for %s/%s: %w", paperID, figureID, err)
	}
	return nil
}

// Close closes the index database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
