package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/autokuro/internal/artifact"
	"github.com/nao1215/autokuro/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "autokuro.db"

// timeLayout is fixed-width so that stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// RunDB stores pipeline runs and their stage records.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scan first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; batch workers share this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

func (rdb *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		mode TEXT NOT NULL,
		dir TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		finding_count INTEGER NOT NULL DEFAULT 0,
		findings_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		stage TEXT NOT NULL,
		tool TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		throttles INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		artifact TEXT NOT NULL DEFAULT '',
		lines INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT NOT NULL DEFAULT '',
		diagnostic TEXT NOT NULL DEFAULT '',
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, stage)
	);

	CREATE INDEX IF NOT EXISTS idx_stages_run ON stages(run_id);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun inserts the run row for a report that has just started.
func (rdb *RunDB) StartRun(ctx context.Context, report *model.RunReport) error {
	query := `
	INSERT INTO runs (id, target, mode, dir, started_at, status)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := rdb.db.ExecContext(ctx, query,
		report.ID,
		report.Target,
		report.Mode,
		report.Dir,
		report.StartedAt.UTC().Format(timeLayout),
		string(report.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordStage stores one stage record of a run, fingerprinting its artifact.
// Recording the same stage twice keeps the latest values.
func (rdb *RunDB) RecordStage(ctx context.Context, runID string, rec model.StageRecord) error {
	var fingerprint string
	if rec.Artifact != "" {
		fp, err := artifact.Fingerprint(rec.Artifact)
		if err != nil {
			return fmt.Errorf("failed to fingerprint %s: %w", rec.Artifact, err)
		}
		fingerprint = fp
	}

	query := `
	INSERT INTO stages (run_id, stage, tool, status, attempts, throttles, elapsed_ms, artifact, lines, fingerprint, diagnostic)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, stage) DO UPDATE SET
		tool = excluded.tool,
		status = excluded.status,
		attempts = excluded.attempts,
		throttles = excluded.throttles,
		elapsed_ms = excluded.elapsed_ms,
		artifact = excluded.artifact,
		lines = excluded.lines,
		fingerprint = excluded.fingerprint,
		diagnostic = excluded.diagnostic,
		recorded_at = CURRENT_TIMESTAMP
	`

	_, err := rdb.db.ExecContext(ctx, query,
		runID,
		rec.Stage,
		rec.Tool,
		string(rec.Status),
		rec.Attempts,
		rec.Throttles,
		rec.Elapsed.Milliseconds(),
		rec.Artifact,
		rec.Lines,
		fingerprint,
		rec.Diagnostic,
	)
	if err != nil {
		return fmt.Errorf("failed to record stage %s: %w", rec.Stage, err)
	}
	return nil
}

// FinishRun stores the final status and findings of a run.
func (rdb *RunDB) FinishRun(ctx context.Context, report *model.RunReport) error {
	findings := report.Findings
	if findings == nil {
		findings = []model.Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("failed to serialize findings: %w", err)
	}

	var finishedAt any
	if !report.FinishedAt.IsZero() {
		finishedAt = report.FinishedAt.UTC().Format(timeLayout)
	}

	query := `
	UPDATE runs
	SET finished_at = ?, status = ?, error = ?, finding_count = ?, findings_json = ?
	WHERE id = ?
	`

	result, err := rdb.db.ExecContext(ctx, query,
		finishedAt,
		string(report.Status),
		report.Error,
		len(report.Findings),
		string(findingsJSON),
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, report.ID)
	}
	return nil
}
