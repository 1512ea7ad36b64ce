package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS datasets (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  group_column TEXT NOT NULL DEFAULT 'Species',
  value_column TEXT NOT NULL DEFAULT 'PetalLength',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS observations (
  id BIGSERIAL PRIMARY KEY,
  dataset_id BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
  group_key TEXT NOT NULL,
  value DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS observations_dataset_id_idx ON observations (dataset_id, id);
CREATE TABLE IF NOT EXISTS summary_runs (
  id BIGSERIAL PRIMARY KEY,
  dataset_id BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
  observation_count INTEGER NOT NULL,
  group_count INTEGER NOT NULL,
  duration DOUBLE PRECISION NOT NULL,
  memory DOUBLE PRECISION NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS group_summaries (
  summary_run_id BIGINT NOT NULL REFERENCES summary_runs(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  group_key TEXT NOT NULL,
  q1 DOUBLE PRECISION NOT NULL,
  median DOUBLE PRECISION NOT NULL,
  q3 DOUBLE PRECISION NOT NULL,
  iqr DOUBLE PRECISION NOT NULL,
  lower_bound DOUBLE PRECISION NOT NULL,
  upper_bound DOUBLE PRECISION NOT NULL,
  PRIMARY KEY (summary_run_id, group_key)
);
`

// summaryRun describes one summarize pass over a stored dataset.
type summaryRun struct {
	DatasetID        int64
	ObservationCount int
	Duration         time.Duration
	MemoryBytes      float64
}

type pgStore struct {
	db        *sql.DB
	batchSize int
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	return db, nil
}

func newPGStore(db *sql.DB, batchSize int) *pgStore {
	return &pgStore{db: db, batchSize: normalizePositiveInt(int64(batchSize), defaultFetchBatchSize)}
}

func (s *pgStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}

func (s *pgStore) datasetExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM datasets WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// fetchObservations pages through a dataset in id order. Rows with a NULL
// value are skipped.
func (s *pgStore) fetchObservations(ctx context.Context, datasetID int64) ([]Observation[string], error) {
	const q = `
SELECT group_key, value
FROM observations
WHERE dataset_id = $1
ORDER BY id ASC
LIMIT $2 OFFSET $3`

	out := make([]Observation[string], 0, s.batchSize)
	for page := 1; ; page++ {
		limit, offset := windowLimitOffset(page, s.batchSize)
		n, err := s.fetchPage(ctx, q, datasetID, limit, offset, &out)
		if err != nil {
			return nil, err
		}
		if n < limit {
			return out, nil
		}
	}
}

func (s *pgStore) fetchPage(ctx context.Context, q string, datasetID int64, limit, offset int, out *[]Observation[string]) (int, error) {
	rows, err := s.db.QueryContext(ctx, q, datasetID, limit, offset)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var group string
		var v sql.NullFloat64
		if err := rows.Scan(&group, &v); err != nil {
			return 0, err
		}
		n++
		if v.Valid {
			*out = append(*out, Observation[string]{Group: group, Value: v.Float64})
		}
	}
	return n, rows.Err()
}

// saveSummaries writes the run row and every group summary in one
// transaction.
func (s *pgStore) saveSummaries(ctx context.Context, run summaryRun, summaries *Summaries[string]) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRun = `
INSERT INTO summary_runs
  (dataset_id, observation_count, group_count, duration, memory, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id`
	var runID int64
	err = tx.QueryRowContext(ctx, insertRun,
		run.DatasetID, run.ObservationCount, summaries.Len(), run.Duration.Seconds(), run.MemoryBytes,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("insert summary_run: %w", err)
	}

	const insertGroup = `
INSERT INTO group_summaries
  (summary_run_id, position, group_key, q1, median, q3, iqr, lower_bound, upper_bound)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	stmt, err := tx.PrepareContext(ctx, insertGroup)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pos, group := range summaries.Keys() {
		gs, _ := summaries.Get(group)
		if _, err = stmt.ExecContext(ctx, runID, pos, group,
			gs.Q1, gs.Median, gs.Q3, gs.IQR, gs.LowerBound, gs.UpperBound); err != nil {
			return fmt.Errorf("insert group_summary %q: %w", group, err)
		}
	}
	return tx.Commit()
}

func windowLimitOffset(page, perPage int) (limit, offset int) {
	pp := perPage
	if pp <= 0 {
		pp = 1
	}
	pg := page
	if pg <= 0 {
		pg = 1
	}
	return pp, (pg - 1) * pp
}

func normalizePositiveInt(value int64, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return int(value)
}
