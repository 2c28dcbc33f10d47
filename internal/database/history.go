package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/autokuro/internal/model"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID           string
	Target       string
	Mode         string
	Dir          string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       model.RunStatus
	Error        string
	FindingCount int
	Findings     []model.Finding
}

// Duration returns how long the run took, or zero for an unfinished run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// StageEntry is one stored stage record with its artifact fingerprint.
type StageEntry struct {
	model.StageRecord

	// Fingerprint is the hex SHA3-256 of the artifact when it was recorded,
	// or empty if the artifact did not exist.
	Fingerprint string

	// RecordedAt is when the stage row was last written.
	RecordedAt time.Time
}

const runColumns = `id, target, mode, dir, started_at, finished_at, status, error, finding_count, findings_json`

// ListTargets returns every target with at least one recorded run.
func (rdb *RunDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// ListRuns returns the runs of target, newest first. An empty target lists
// every run.
func (rdb *RunDB) ListRuns(ctx context.Context, target string) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0, 1)
	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}
	query += " ORDER BY started_at DESC, rowid DESC"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (rdb *RunDB) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	row := rdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetStages returns the stage records of a run in the order they were first
// recorded.
func (rdb *RunDB) GetStages(ctx context.Context, runID string) ([]StageEntry, error) {
	query := `
	SELECT stage, tool, status, attempts, throttles, elapsed_ms, artifact, lines, fingerprint, diagnostic, recorded_at
	FROM stages
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := rdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	defer rows.Close()

	var entries []StageEntry
	for rows.Next() {
		var (
			e         StageEntry
			status    string
			elapsedMS int64
			recorded  string
		)
		err := rows.Scan(
			&e.Stage,
			&e.Tool,
			&status,
			&e.Attempts,
			&e.Throttles,
			&elapsedMS,
			&e.Artifact,
			&e.Lines,
			&e.Fingerprint,
			&e.Diagnostic,
			&recorded,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		e.Status = model.StageStatus(status)
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.RecordedAt = parseTimestamp(recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		run          RunSummary
		startedAt    string
		finishedAt   sql.NullString
		status       string
		findingsJSON string
	)
	err := row.Scan(
		&run.ID,
		&run.Target,
		&run.Mode,
		&run.Dir,
		&startedAt,
		&finishedAt,
		&status,
		&run.Error,
		&run.FindingCount,
		&findingsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = model.RunStatus(status)
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	if findingsJSON != "" {
		if err := json.Unmarshal([]byte(findingsJSON), &run.Findings); err != nil {
			return run, fmt.Errorf("failed to parse findings: %w", err)
		}
	}
	return run, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
