// Package store handles SQLite persistence of Monte Carlo run summaries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/adamsim/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout keeps a fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run id is not stored.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for saved runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			trials INTEGER NOT NULL,
			operator TEXT NOT NULL,
			strategy TEXT NOT NULL,
			base_task_sec REAL NOT NULL,
			task_jitter_sec REAL NOT NULL,
			preempt_threshold REAL NOT NULL,
			conditions INTEGER NOT NULL,
			horizon_sec INTEGER NOT NULL,
			harm_weight TEXT NOT NULL,
			pause_sec INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_summaries (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			policy TEXT NOT NULL,
			count INTEGER NOT NULL,
			incomplete INTEGER NOT NULL,
			elapsed_mean REAL NOT NULL,
			elapsed_p50 REAL NOT NULL,
			elapsed_p90 REAL NOT NULL,
			fatigue_mean REAL NOT NULL,
			fatigue_p50 REAL NOT NULL,
			fatigue_p90 REAL NOT NULL,
			accuracy_mean REAL NOT NULL,
			accuracy_p50 REAL NOT NULL,
			accuracy_p90 REAL NOT NULL,
			harm_mean REAL NOT NULL,
			harm_p50 REAL NOT NULL,
			harm_p90 REAL NOT NULL,
			score_mean REAL NOT NULL,
			score_p50 REAL NOT NULL,
			score_p90 REAL NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_summaries_policy ON run_summaries(policy);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a run header and its per-policy summaries. Per-trial results
// are not persisted.
func (s *Store) SaveRun(ctx context.Context, out model.RunOutput) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p := out.Profile
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, seed, trials, operator, strategy, base_task_sec, task_jitter_sec, preempt_threshold, conditions, horizon_sec, harm_weight, pause_sec)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID,
		out.StartedAt.UTC().Format(timeLayout),
		out.Seed,
		out.Trials,
		p.Name,
		p.Strategy.String(),
		p.BaseTaskTimeSec,
		p.TaskTimeJitter,
		p.PreemptThreshold,
		out.Params.Conditions,
		out.Params.HorizonSec,
		out.Params.HarmWeight.String(),
		out.Params.PauseSec,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", out.ID, err)
	}

	if len(out.Summaries) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_summaries (run_id, position, policy, count, incomplete,
				elapsed_mean, elapsed_p50, elapsed_p90,
				fatigue_mean, fatigue_p50, fatigue_p90,
				accuracy_mean, accuracy_p50, accuracy_p90,
				harm_mean, harm_p50, harm_p90,
				score_mean, score_p50, score_p90)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() {
			_ = stmt.Close()
		}()
		for i, sum := range out.Summaries {
			args := []any{out.ID, i, sum.Policy.String(), sum.Count, sum.Incomplete}
			for _, m := range []model.MetricSummary{sum.ElapsedSec, sum.Fatigue, sum.Accuracy, sum.Harm, sum.Score} {
				args = append(args, m.Mean, m.P50, m.P90)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert %s summary: %w", sum.Policy, err)
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns saved runs, newest first. A non-empty cfg.Policy keeps
// only runs that compared that policy.
func (s *Store) ListRuns(ctx context.Context, cfg model.HistoryConfig) ([]model.RunRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Policy != "" {
		clauses = append(clauses, "id IN (SELECT run_id FROM run_summaries WHERE policy = ?)")
		args = append(args, cfg.Policy)
	}
	limit := ""
	if cfg.Last > 0 {
		limit = "LIMIT ?"
		args = append(args, cfg.Last)
	}
	query := fmt.Sprintf(`SELECT id, created_at, seed, trials, operator, strategy, base_task_sec, task_jitter_sec, preempt_threshold, conditions, horizon_sec, harm_weight, pause_sec
		FROM runs
		WHERE %s
		ORDER BY created_at DESC
		%s`, strings.Join(clauses, " AND "), limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var createdAt, strategy, harmWeight string
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Seed, &rec.Trials,
			&rec.Profile.Name, &strategy, &rec.Profile.BaseTaskTimeSec, &rec.Profile.TaskTimeJitter, &rec.Profile.PreemptThreshold,
			&rec.Params.Conditions, &rec.Params.HorizonSec, &harmWeight, &rec.Params.PauseSec); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = parsed
		if rec.Profile.Strategy, err = model.ParseStrategy(strategy); err != nil {
			return nil, fmt.Errorf("run %s: %w", rec.ID, err)
		}
		if rec.Params.HarmWeight, err = model.ParseHarmWeight(harmWeight); err != nil {
			return nil, fmt.Errorf("run %s: %w", rec.ID, err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListSummaries returns the per-policy summaries of a run in saved order.
func (s *Store) ListSummaries(ctx context.Context, runID string) ([]model.Summary, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT policy, count, incomplete,
			elapsed_mean, elapsed_p50, elapsed_p90,
			fatigue_mean, fatigue_p50, fatigue_p90,
			accuracy_mean, accuracy_p50, accuracy_p90,
			harm_mean, harm_p50, harm_p90,
			score_mean, score_p50, score_p90
		FROM run_summaries
		WHERE run_id = ?
		ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []model.Summary
	for rows.Next() {
		var sum model.Summary
		var policy string
		if err := rows.Scan(&policy, &sum.Count, &sum.Incomplete,
			&sum.ElapsedSec.Mean, &sum.ElapsedSec.P50, &sum.ElapsedSec.P90,
			&sum.Fatigue.Mean, &sum.Fatigue.P50, &sum.Fatigue.P90,
			&sum.Accuracy.Mean, &sum.Accuracy.P50, &sum.Accuracy.P90,
			&sum.Harm.Mean, &sum.Harm.P50, &sum.Harm.P90,
			&sum.Score.Mean, &sum.Score.P50, &sum.Score.P90); err != nil {
			return nil, err
		}
		sum.Policy, _ = model.ParsePolicy(policy)
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
