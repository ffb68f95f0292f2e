// Package store archives completed simulation runs in a SQL database.
//
// The same schema and statements serve Postgres (lib/pq) and SQLite
// (modernc.org/sqlite); dates are stored as ISO-8601 text so both drivers
// scan them identically.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/metrics"
	"github.com/Mindburn-Labs/lexsim/pkg/report"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is an archived run header.
type Run struct {
	ID        string
	Scenario  string
	Digest    string // scenario digest
	Mode      string
	Start     time.Time
	End       time.Time
	Step      string
	CreatedAt time.Time
	Counts    metrics.Counts
	// Document is the canonical metrics JSON. ListRuns leaves it empty.
	Document []byte
}

// SnapshotRow is one archived step.
type SnapshotRow struct {
	Seq            int
	Date           time.Time
	ActiveAgents   int
	ActiveStatutes int
	Events         int
	Counts         metrics.Counts
}

// SQLStore implements the archive over database/sql.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Open connects to a postgres:// or postgresql:// URL, or otherwise treats dsn
// as a SQLite path, and initializes the schema.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s archive: %w", driver, err)
	}
	s := NewSQLStore(db)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	digest TEXT NOT NULL,
	mode TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	step TEXT NOT NULL,
	created_at TEXT NOT NULL,
	deterministic BIGINT NOT NULL,
	discretionary BIGINT NOT NULL,
	void BIGINT NOT NULL,
	document TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	date TEXT NOT NULL,
	active_agents INTEGER NOT NULL,
	active_statutes INTEGER NOT NULL,
	events INTEGER NOT NULL,
	deterministic BIGINT NOT NULL,
	discretionary BIGINT NOT NULL,
	void BIGINT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS trend_points (
	run_id TEXT NOT NULL REFERENCES runs(id),
	statute_id TEXT NOT NULL,
	date TEXT NOT NULL,
	effectiveness DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, statute_id, date)
);
CREATE TABLE IF NOT EXISTS events (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	date TEXT NOT NULL,
	agent_id TEXT,
	statute_id TEXT,
	attr_key TEXT,
	old_value TEXT,
	new_value TEXT,
	version TEXT,
	PRIMARY KEY (run_id, seq)
);
`

// Init creates the tables if they do not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init archive schema: %w", err)
	}
	return nil
}

func day(t time.Time) string { return t.Format(time.DateOnly) }

func counts(c metrics.Counts) (int64, int64, int64) {
	return int64(c.Deterministic), int64(c.Discretionary), int64(c.Void)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveRun writes the run header and its snapshots, trends and events in one
// transaction.
func (s *SQLStore) SaveRun(ctx context.Context, run Run, doc *report.Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	det, disc, void := counts(run.Counts)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, digest, mode, start_date, end_date, step, created_at, deterministic, discretionary, void, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.Scenario, run.Digest, run.Mode, day(run.Start), day(run.End), run.Step,
		run.CreatedAt.UTC().Format(time.RFC3339Nano), det, disc, void, string(run.Document),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, snap := range doc.Snapshots {
		det, disc, void := counts(snap.Metrics.Counts)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshots (run_id, seq, date, active_agents, active_statutes, events, deterministic, discretionary, void)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, i, snap.Date, snap.ActiveAgents, snap.ActiveStatutes, snap.Events, det, disc, void,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %d: %w", i, err)
		}
	}

	for _, id := range doc.StatuteIDs() {
		for _, p := range doc.Trends[id] {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO trend_points (run_id, statute_id, date, effectiveness)
				VALUES ($1, $2, $3, $4)`,
				run.ID, id, day(p.Date), p.Effectiveness,
			)
			if err != nil {
				return fmt.Errorf("insert trend point %s: %w", id, err)
			}
		}
	}

	for i, rec := range doc.Events {
		var old sql.NullString
		if rec.Old != nil {
			old = sql.NullString{String: *rec.Old, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (run_id, seq, kind, date, agent_id, statute_id, attr_key, old_value, new_value, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			run.ID, i, string(rec.Kind), rec.Date.UTC().Format(time.RFC3339Nano),
			nullable(rec.AgentID), nullable(rec.StatuteID), nullable(rec.Key), old, nullable(rec.New), nullable(rec.Version),
		)
		if err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, withDocument bool) (Run, error) {
	var (
		r                   Run
		start, end, created string
		det, disc, void     int64
		document            string
	)
	dest := []any{&r.ID, &r.Scenario, &r.Digest, &r.Mode, &start, &end, &r.Step, &created, &det, &disc, &void}
	if withDocument {
		dest = append(dest, &document)
	}
	if err := row.Scan(dest...); err != nil {
		return Run{}, err
	}

	var err error
	if r.Start, err = time.Parse(time.DateOnly, start); err != nil {
		return Run{}, fmt.Errorf("run %s start: %w", r.ID, err)
	}
	if r.End, err = time.Parse(time.DateOnly, end); err != nil {
		return Run{}, fmt.Errorf("run %s end: %w", r.ID, err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("run %s created_at: %w", r.ID, err)
	}
	r.Counts = metrics.Counts{Deterministic: uint64(det), Discretionary: uint64(disc), Void: uint64(void)}
	if withDocument {
		r.Document = []byte(document)
	}
	return r, nil
}

const runColumns = `id, scenario, digest, mode, start_date, end_date, step, created_at, deterministic, discretionary, void`

// GetRun loads a run header and its document.
func (s *SQLStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+`, document FROM runs WHERE id = $1`, id)
	r, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first, without documents.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return result, nil
}

// Snapshots returns a run's steps in order.
func (s *SQLStore) Snapshots(ctx context.Context, runID string) ([]SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, date, active_agents, active_statutes, events, deterministic, discretionary, void
		FROM snapshots WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]SnapshotRow, 0)
	for rows.Next() {
		var (
			sr              SnapshotRow
			date            string
			det, disc, void int64
		)
		if err := rows.Scan(&sr.Seq, &date, &sr.ActiveAgents, &sr.ActiveStatutes, &sr.Events, &det, &disc, &void); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if sr.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("snapshot %d date: %w", sr.Seq, err)
		}
		sr.Counts = metrics.Counts{Deterministic: uint64(det), Discretionary: uint64(disc), Void: uint64(void)}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// Trend returns a statute's archived effectiveness series.
func (s *SQLStore) Trend(ctx context.Context, runID, statuteID string) ([]engine.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, effectiveness FROM trend_points
		WHERE run_id = $1 AND statute_id = $2 ORDER BY date`, runID, statuteID)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]engine.TrendPoint, 0)
	for rows.Next() {
		var (
			p    engine.TrendPoint
			date string
		)
		if err := rows.Scan(&date, &p.Effectiveness); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		if p.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("trend point date: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
