package experience

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// schemaVersion is stored in store_meta and bumped on schema changes so a
// future migration hook has something to key on.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS experiences (
	id               TEXT PRIMARY KEY,
	task_description TEXT NOT NULL,
	input            TEXT NOT NULL,
	output           TEXT NOT NULL,
	mode             TEXT NOT NULL,
	model            TEXT NOT NULL,
	reasoning        TEXT NOT NULL,
	success          INTEGER NOT NULL,
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_experiences_created_at ON experiences(created_at);
CREATE INDEX IF NOT EXISTS idx_experiences_model ON experiences(model);
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	metaKeyStats         = "stats"
	metaKeySchemaVersion = "schema_version"
)

// SQLiteStore persists experiences in an embedded SQLite database, one row
// per record. Insert, delete, and eviction run inside transactions, so
// concurrent writers cannot lose updates the way a read-modify-write blob
// store can.
type SQLiteStore struct {
	db     *sql.DB
	max    int
	logger *zap.Logger

	// statsMu guards the read-modify-write of the advisory stats row.
	statsMu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, max int, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max < 1 {
		max = 1
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite is single-writer; serialize access at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		max:    max,
		logger: logger,
	}

	if err := s.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) ensureSchemaVersion() error {
	_, err := s.db.Exec(
		`INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		metaKeySchemaVersion, fmt.Sprintf("%d", schemaVersion))
	if err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}

// Initialize ensures the aggregate stats record exists. Failures are logged
// and swallowed: stats are derived state, recomputable from the record set.
func (s *SQLiteStore) Initialize(ctx context.Context) {
	if err := s.recomputeStats(ctx, false); err != nil {
		s.logger.Warn("stats initialization failed", zap.Error(err))
	}
}

// Store appends one record inside a transaction, evicting the oldest 20%
// first when the store is at capacity.
func (s *SQLiteStore) Store(ctx context.Context, exp *Experience) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	reasoning, err := json.Marshal(exp.Reasoning)
	if err != nil {
		return fmt.Errorf("%w: encoding reasoning: %w", ErrStore, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiences`).Scan(&count); err != nil {
		return fmt.Errorf("%w: counting records: %w", ErrStore, err)
	}

	evicted := false
	if count >= s.max {
		retain := retainCount(s.max)
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM experiences WHERE id NOT IN (
				SELECT id FROM experiences ORDER BY created_at DESC, rowid DESC LIMIT ?
			)`, retain); err != nil {
			return fmt.Errorf("%w: evicting old records: %w", ErrStore, err)
		}
		evicted = true
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO experiences
			(id, task_description, input, output, mode, model, reasoning, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.TaskDescription, exp.Input, exp.Output,
		string(exp.Mode), exp.Model, string(reasoning),
		boolToInt(exp.Success), exp.ErrorMessage, exp.Timestamp.UnixNano(),
	); err != nil {
		return fmt.Errorf("%w: inserting experience: %w", ErrStore, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", ErrStore, err)
	}

	if err := s.recomputeStats(ctx, evicted); err != nil {
		s.logger.Warn("stats recompute failed", zap.Error(err))
	}

	s.logger.Debug("experience stored",
		zap.String("id", exp.ID),
		zap.Bool("success", exp.Success),
		zap.Bool("evicted", evicted))
	return nil
}

// GetAll returns all records in insertion order. Read failures degrade to
// an empty slice.
func (s *SQLiteStore) GetAll(ctx context.Context) []Experience {
	return s.query(ctx, `SELECT `+columns+` FROM experiences ORDER BY rowid ASC`)
}

// GetByID returns the matching record or ErrNotFound.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Experience, error) {
	rows := s.query(ctx, `SELECT `+columns+` FROM experiences WHERE id = ?`, id)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Search returns records containing query as a case-insensitive substring
// of task description, input, or output, in store order.
func (s *SQLiteStore) Search(ctx context.Context, query string) []Experience {
	// instr avoids LIKE wildcard escaping. SQLite lower() is ASCII-only,
	// which matches the substring-containment contract.
	return s.query(ctx, `
		SELECT `+columns+` FROM experiences
		WHERE instr(lower(task_description), lower(?)) > 0
		   OR instr(lower(input), lower(?)) > 0
		   OR instr(lower(output), lower(?)) > 0
		ORDER BY rowid ASC`, query, query, query)
}

// FilterByModel returns records with an exact model match.
func (s *SQLiteStore) FilterByModel(ctx context.Context, model string) []Experience {
	return s.query(ctx, `SELECT `+columns+` FROM experiences WHERE model = ? ORDER BY rowid ASC`, model)
}

// FilterByMode returns records with an exact mode match.
func (s *SQLiteStore) FilterByMode(ctx context.Context, mode Mode) []Experience {
	return s.query(ctx, `SELECT `+columns+` FROM experiences WHERE mode = ? ORDER BY rowid ASC`, string(mode))
}

// Delete removes the record; missing IDs are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM experiences WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: deleting experience: %w", ErrStore, err)
	}
	if err := s.recomputeStats(ctx, false); err != nil {
		s.logger.Warn("stats recompute failed", zap.Error(err))
	}
	return nil
}

// ClearAll removes every record, resets stats, and stamps the cleanup time.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM experiences`); err != nil {
		return fmt.Errorf("%w: clearing experiences: %w", ErrStore, err)
	}
	if err := s.recomputeStats(ctx, true); err != nil {
		s.logger.Warn("stats recompute failed", zap.Error(err))
	}
	return nil
}

// SuccessRate returns (successful, failed, rate).
func (s *SQLiteStore) SuccessRate(ctx context.Context) (int, int, float64) {
	var successful, failed int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM experiences`).Scan(&successful, &failed)
	if err != nil {
		s.logger.Warn("success rate query failed", zap.Error(err))
		return 0, 0, 0
	}
	total := successful + failed
	if total == 0 {
		return 0, 0, 0
	}
	return successful, failed, 100 * float64(successful) / float64(total)
}

// Stats returns the aggregate stats record, zero-valued on read failure.
func (s *SQLiteStore) Stats(ctx context.Context) Stats {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = ?`, metaKeyStats).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("stats read failed", zap.Error(err))
		}
		return Stats{}
	}
	var st Stats
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Warn("stats decode failed", zap.Error(err))
		return Stats{}
	}
	return st
}

// Export serializes the full record set to JSON.
func (s *SQLiteStore) Export(ctx context.Context) (string, error) {
	records := s.GetAll(ctx)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encoding export: %w", ErrStore, err)
	}
	return string(data), nil
}

// DB exposes the underlying handle so other components can keep their
// tables in the same database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const columns = `id, task_description, input, output, mode, model, reasoning, success, error_message, created_at`

// query runs a SELECT and degrades to an empty slice on failure.
func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) []Experience {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logger.Warn("experience read failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []Experience
	for rows.Next() {
		var (
			exp       Experience
			mode      string
			reasoning string
			success   int
			createdAt int64
		)
		if err := rows.Scan(&exp.ID, &exp.TaskDescription, &exp.Input, &exp.Output,
			&mode, &exp.Model, &reasoning, &success, &exp.ErrorMessage, &createdAt); err != nil {
			s.logger.Warn("experience row scan failed", zap.Error(err))
			continue
		}
		exp.Mode = Mode(mode)
		exp.Success = success == 1
		exp.Timestamp = time.Unix(0, createdAt)
		if err := json.Unmarshal([]byte(reasoning), &exp.Reasoning); err != nil {
			s.logger.Warn("reasoning decode failed",
				zap.String("id", exp.ID), zap.Error(err))
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("experience read failed", zap.Error(err))
	}
	return out
}

// recomputeStats refreshes the advisory aggregate row. LastCleanup is
// preserved unless cleanup just ran.
func (s *SQLiteStore) recomputeStats(ctx context.Context, cleanupRan bool) error {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	prev := s.Stats(ctx)

	records := s.GetAll(ctx)
	serialized, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding records for stats: %w", err)
	}

	st := Stats{
		TotalExperiences: len(records),
		TotalMemorySize:  int64(len(serialized)),
		LastCleanup:      prev.LastCleanup,
	}
	if cleanupRan {
		st.LastCleanup = time.Now()
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaKeyStats, string(raw))
	if err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
