// Package assets downloads and tracks local model files. Records live in
// the same SQLite database as the experience store, one row per asset, with
// the file bytes on disk under a configured directory.
package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Common errors for asset operations.
var (
	ErrNotFound = errors.New("asset not found")
)

// DownloadError wraps a failed or rejected download with its source URL.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func downloadErr(url string, format string, args ...any) error {
	return &DownloadError{URL: url, Err: fmt.Errorf(format, args...)}
}

// AssetRecord describes one downloaded model file.
type AssetRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`

	// Path is the absolute location of the file on disk.
	Path string `json:"path"`

	SizeBytes int64 `json:"size_bytes"`

	// Digest is the SHA-256 of the file contents, hex encoded. Recorded
	// for later integrity checks; the download itself only enforces the
	// minimum-size floor.
	Digest string `json:"digest"`

	// Active marks the asset selected for local execution. At most one
	// record is active at a time.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
}

const assetSchemaSQL = `
CREATE TABLE IF NOT EXISTS assets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	path       TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
`

// DefaultMinSizeBytes is the integrity floor: completed downloads smaller
// than this are rejected and removed.
const DefaultMinSizeBytes = 1 << 20

// Manager downloads model files and tracks them in the database.
type Manager struct {
	db      *sql.DB
	dir     string
	minSize int64
	client  *http.Client
	logger  *zap.Logger
}

// NewManager creates a manager storing files under dir. A minSize of zero
// selects the 1MB default floor; a nil logger falls back to a no-op logger.
func NewManager(db *sql.DB, dir string, minSize int64, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minSize <= 0 {
		minSize = DefaultMinSizeBytes
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	if _, err := db.Exec(assetSchemaSQL); err != nil {
		return nil, fmt.Errorf("creating asset schema: %w", err)
	}

	return &Manager{
		db:      db,
		dir:     dir,
		minSize: minSize,
		client:  &http.Client{},
		logger:  logger,
	}, nil
}

// SetHTTPClient overrides the download transport. Used in tests.
func (m *Manager) SetHTTPClient(client *http.Client) {
	if client != nil {
		m.client = client
	}
}

// ListAll returns all asset records in insertion order. Read failures
// degrade to an empty slice.
func (m *Manager) ListAll(ctx context.Context) []AssetRecord {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, url, path, size_bytes, digest, active, created_at
		FROM assets ORDER BY rowid ASC`)
	if err != nil {
		m.logger.Warn("asset read failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []AssetRecord
	for rows.Next() {
		var (
			rec       AssetRecord
			active    int
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Path,
			&rec.SizeBytes, &rec.Digest, &active, &createdAt); err != nil {
			m.logger.Warn("asset row scan failed", zap.Error(err))
			continue
		}
		rec.Active = active == 1
		rec.CreatedAt = time.Unix(0, createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		m.logger.Warn("asset read failed", zap.Error(err))
	}
	return out
}

// Get returns the matching record or ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*AssetRecord, error) {
	var (
		rec       AssetRecord
		active    int
		createdAt int64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, url, path, size_bytes, digest, active, created_at
		FROM assets WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Path,
			&rec.SizeBytes, &rec.Digest, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	rec.Active = active == 1
	rec.CreatedAt = time.Unix(0, createdAt)
	return &rec, nil
}

// SetActive marks the asset as the one selected for local execution,
// clearing the flag on every other record.
func (m *Manager) SetActive(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE assets SET active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("activating asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("activating asset: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE assets SET active = 0 WHERE id != ?`, id); err != nil {
		return fmt.Errorf("deactivating other assets: %w", err)
	}
	return tx.Commit()
}

// Delete removes the record and its file. Missing IDs are a no-op;
// a missing file is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	rec, err := m.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := m.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("asset file removal failed",
			zap.String("path", rec.Path), zap.Error(err))
	}
	return nil
}

func (m *Manager) insert(ctx context.Context, rec *AssetRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO assets (id, name, url, path, size_bytes, digest, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		rec.ID, rec.Name, rec.URL, rec.Path, rec.SizeBytes, rec.Digest,
		rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting asset: %w", err)
	}
	return nil
}

// filePath builds the on-disk location for a named asset, stripping any
// directory components from the name.
func (m *Manager) filePath(name string) string {
	return filepath.Join(m.dir, filepath.Base(name))
}
