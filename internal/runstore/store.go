package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/export"
	"srcreg/internal/paths"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 20

// Store provides persistence for runs in a SQLite database.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// OpenStore opens or creates the runs database at <root>/.srcreg/runs.db
func OpenStore(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, err := paths.EnsureWorkspaceDir(root); err != nil {
		return nil, err
	}
	return openAt(paths.RunsDBPath(root), logger)
}

func openAt(dbPath string, logger *slog.Logger) (*Store, error) {
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open runs database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	// Pragmas are per connection.
	conn.SetMaxOpenConns(1)

	store := &Store{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("Creating runs database", "path", dbPath)
	}
	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize runs schema: %w", err)
	}

	return store, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input_path TEXT NOT NULL,
			input_format TEXT,
			input_digest TEXT NOT NULL,
			output_dir TEXT,
			created_at TEXT NOT NULL,
			input_rows INTEGER NOT NULL,
			valid_rows INTEGER NOT NULL,
			duplicate_rows INTEGER NOT NULL,
			invalid_rows INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(input_digest);

		CREATE TABLE IF NOT EXISTS run_records (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			row INTEGER NOT NULL,
			source_type TEXT,
			source_locator_raw TEXT,
			source_locator_normalized TEXT,
			source_section TEXT,
			evidence_level TEXT,
			priority TEXT,
			notes TEXT,
			canonical_key TEXT,
			file_key TEXT,
			node_id TEXT,
			page_id TEXT,
			path TEXT,
			line TEXT,
			status TEXT NOT NULL,
			invalid_code TEXT,
			invalid_reason TEXT,
			duplicate_of INTEGER,
			PRIMARY KEY (run_id, row)
		);
		CREATE INDEX IF NOT EXISTS idx_run_records_key ON run_records(canonical_key);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Save stores a run and its records in one transaction.
func (s *Store) Save(ctx context.Context, run *Run, rows []export.Row) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, input_format, input_digest, output_dir, created_at,
			input_rows, valid_rows, duplicate_rows, invalid_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.InputPath,
		nullString(run.InputFormat),
		run.InputDigest,
		nullString(run.OutputDir),
		run.CreatedAt.UTC().Format(timeLayout),
		run.InputRows,
		run.ValidRows,
		run.DuplicateRows,
		run.InvalidRows,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_records (run_id, row, source_type, source_locator_raw,
			source_locator_normalized, source_section, evidence_level, priority, notes,
			canonical_key, file_key, node_id, page_id, path, line, status,
			invalid_code, invalid_reason, duplicate_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		_, err = stmt.ExecContext(ctx,
			run.ID,
			r.SourceRow,
			r.SourceType,
			r.SourceLocatorRaw,
			nullString(r.SourceLocatorNormalized),
			r.SourceSection,
			r.EvidenceLevel,
			r.Priority,
			r.Notes,
			nullString(r.CanonicalKey),
			nullString(r.FileKey),
			nullString(r.NodeID),
			nullString(r.PageID),
			nullString(r.Path),
			nullString(r.Line),
			r.Status,
			nullString(r.InvalidCode),
			nullString(r.InvalidReason),
			nullInt(r.DuplicateOf),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", r.SourceRow, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("Saved run", "runId", run.ID, "records", len(rows))
	return nil
}

const runColumns = `id, input_path, input_format, input_digest, output_dir, created_at,
	input_rows, valid_rows, duplicate_rows, invalid_rows`

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return collectRuns(rows)
}

// Get returns the run with the given id. A unique id prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, srcerrors.New(srcerrors.RunNotFound, "run id is empty", nil)
	}

	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\\' ORDER BY id LIMIT 2",
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}

	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	switch len(runs) {
	case 0:
		return nil, srcerrors.New(srcerrors.RunNotFound, fmt.Sprintf("no run matches %q", id), nil)
	case 1:
		return runs[0], nil
	}
	return nil, srcerrors.New(srcerrors.RunNotFound, fmt.Sprintf("run id %q is ambiguous", id), nil)
}

// Records returns the stored records of a run in row order, optionally filtered.
func (s *Store) Records(ctx context.Context, runID string, filter *Filter) ([]export.Row, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT row, source_type, source_locator_raw, source_locator_normalized, source_section,
			evidence_level, priority, notes, canonical_key, file_key, node_id, page_id, path,
			line, status, invalid_code, invalid_reason, duplicate_of
		FROM run_records WHERE run_id = ?
		ORDER BY row
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []export.Row
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			ok, err := filter.Match(r)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return out, nil
}

// Prune removes runs older than retention and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeLayout)

	result, err := s.conn.ExecContext(ctx, "DELETE FROM runs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Pruned runs", "count", n, "retention", retention.String())
	}
	return n, nil
}

// FindByDigest returns earlier runs over byte-identical input, newest first.
func (s *Store) FindByDigest(ctx context.Context, digest string) ([]*Run, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE input_digest = ? ORDER BY created_at DESC, id", digest)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs by digest: %w", err)
	}
	return collectRuns(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func collectRuns(rows *sql.Rows) ([]*Run, error) {
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var inputFormat, outputDir sql.NullString
	var createdAt string

	err := sc.Scan(
		&run.ID,
		&run.InputPath,
		&inputFormat,
		&run.InputDigest,
		&outputDir,
		&createdAt,
		&run.InputRows,
		&run.ValidRows,
		&run.DuplicateRows,
		&run.InvalidRows,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.InputFormat = inputFormat.String
	run.OutputDir = outputDir.String
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		run.CreatedAt = t
	}
	return &run, nil
}

func scanRecord(sc scanner) (export.Row, error) {
	var r export.Row
	var normalized, key, fileKey, nodeID, pageID, path, line, code, reason sql.NullString
	var dup sql.NullInt64

	err := sc.Scan(
		&r.SourceRow,
		&r.SourceType,
		&r.SourceLocatorRaw,
		&normalized,
		&r.SourceSection,
		&r.EvidenceLevel,
		&r.Priority,
		&r.Notes,
		&key,
		&fileKey,
		&nodeID,
		&pageID,
		&path,
		&line,
		&r.Status,
		&code,
		&reason,
		&dup,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}

	r.SourceLocatorNormalized = normalized.String
	r.CanonicalKey = key.String
	r.FileKey = fileKey.String
	r.NodeID = nodeID.String
	r.PageID = pageID.String
	r.Path = path.String
	r.Line = line.String
	r.InvalidCode = code.String
	r.InvalidReason = reason.String
	r.DuplicateOf = int(dup.Int64)
	return r, nil
}

// IsNotFound reports whether err is a missing or ambiguous run id.
func IsNotFound(err error) bool {
	var se *srcerrors.SrcregError
	return errors.As(err, &se) && se.Code == srcerrors.RunNotFound
}

// Helper functions for nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
