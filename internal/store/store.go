// Package store archives simulation runs and resolved emulation rounds in a
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/nudge/internal/models"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunKind distinguishes simulated from emulated runs.
type RunKind string

const (
	KindSimulation RunKind = "simulation"
	KindEmulation  RunKind = "emulation"
)

// Run describes one archived run.
type Run struct {
	ID          string          `json:"id"`
	Kind        RunKind         `json:"kind"`
	Agent       string          `json:"agent"`
	Environment string          `json:"environment,omitempty"`
	Behavior    string          `json:"behavior,omitempty"`
	Label       string          `json:"label,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunSummary aggregates a run's steps.
type RunSummary struct {
	Run
	Steps         int     `json:"steps"`
	Notifications int     `json:"notifications"`
	Accepted      int     `json:"accepted"`
	Dismissed     int     `json:"dismissed"`
	TotalReward   float64 `json:"total_reward"`
}

// Store is a SQLite-backed run archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmulationRunID derives a stable run ID from an emulation folder, so every
// round of one emulation lands in the same run.
func EmulationRunID(folder string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(folder))).String()
}

// CreateRun inserts run, assigning a random ID and the current time when
// unset, and returns the ID. An existing run with the same ID is kept.
func (s *Store) CreateRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	var config any
	if len(run.Config) > 0 {
		config = string(run.Config)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, kind, agent, environment, behavior, label, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Agent, run.Environment, run.Behavior, run.Label, config,
		run.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// Run returns the run with the given ID.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, agent, environment, behavior, label, config, created_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (Run, error) {
	var (
		run                        Run
		kind, createdAt            string
		env, behavior, label, conf sql.NullString
	)
	dest := append([]any{&run.ID, &kind, &run.Agent, &env, &behavior, &label, &conf, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Run{}, err
	}
	run.Kind = RunKind(kind)
	run.Environment = env.String
	run.Behavior = behavior.String
	run.Label = label.String
	if conf.Valid {
		run.Config = json.RawMessage(conf.String)
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing created_at of run %s: %w", run.ID, err)
	}
	run.CreatedAt = t
	return run, nil
}

// AppendSteps appends records to a run in one transaction, numbering them
// after the run's existing steps.
func (s *Store) AppendSteps(ctx context.Context, runID string, records []models.EmulationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(idx) + 1, 0) FROM steps WHERE run_id = ?`, runID).Scan(&next); err != nil {
		return fmt.Errorf("failed to read step count: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (run_id, idx, day, hour, minute, weekday, location, activity, since_last, send, reward)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		c := r.Context
		var reward any
		if r.Reward != nil {
			reward = *r.Reward
		}
		if _, err := stmt.ExecContext(ctx, runID, next+i, c.DaysPassed, c.Hour, c.Minute, c.Weekday,
			int(c.Location), int(c.Activity), c.MinutesSinceLast, r.Send, reward); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", next+i, err)
		}
	}
	return tx.Commit()
}

// Steps returns a run's records in order. States are derived from the
// stored contexts.
func (s *Store) Steps(ctx context.Context, runID string) ([]models.EmulationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, hour, minute, weekday, location, activity, since_last, send, reward
		FROM steps WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var out []models.EmulationRecord
	for rows.Next() {
		var (
			c        models.Context
			loc, act int
			r        models.EmulationRecord
			reward   sql.NullFloat64
		)
		if err := rows.Scan(&c.DaysPassed, &c.Hour, &c.Minute, &c.Weekday, &loc, &act, &c.MinutesSinceLast, &r.Send, &reward); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		c.Location = models.Location(loc)
		c.Activity = models.Activity(act)
		r.Context = c
		r.State = c.State()
		if reward.Valid {
			v := reward.Float64
			r.Reward = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summaries returns every run with aggregated step counts, newest first.
func (s *Store) Summaries(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.kind, r.agent, r.environment, r.behavior, r.label, r.config, r.created_at,
		       COUNT(st.idx),
		       COALESCE(SUM(st.send), 0),
		       COALESCE(SUM(CASE WHEN st.send = 1 AND st.reward > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN st.send = 1 AND st.reward < 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(st.reward), 0)
		FROM runs r
		LEFT JOIN steps st ON st.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		run, err := scanRun(rows, &sum.Steps, &sum.Notifications, &sum.Accepted, &sum.Dismissed, &sum.TotalReward)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.Run = run
		out = append(out, sum)
	}
	return out, rows.Err()
}
