package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobwatch-engine/internal/domain"
)

// CreateRun records the start of a crawl and returns its id. The run row is
// written up front so partial progress is attributable after a crash.
func (s *Store) CreateRun(ctx context.Context, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (started_at, status) VALUES (?, ?);`,
		startedAt.UTC().Format(time.RFC3339), string(domain.RunRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun writes the terminal state of a run. Only the owning orchestrator
// calls this, exactly once.
func (s *Store) FinishRun(ctx context.Context, run domain.CrawlRun) error {
	summary, _ := json.Marshal(run.ErrorSummary)
	if run.ErrorSummary == nil {
		summary = []byte("[]")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE crawl_runs SET
  ended_at = ?, status = ?, pages_fetched = ?, records_found = ?,
  records_new = ?, error_summary = ?
WHERE id = ?;`,
		run.EndedAt.UTC().Format(time.RFC3339), string(run.Status),
		run.PagesFetched, run.RecordsFound, run.RecordsNew, string(summary),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]domain.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, ended_at, status, pages_fetched, records_found, records_new, error_summary
FROM crawl_runs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CrawlRun
	for rows.Next() {
		var r domain.CrawlRun
		var started, ended, status, summary string
		if err := rows.Scan(&r.ID, &started, &ended, &status, &r.PagesFetched, &r.RecordsFound, &r.RecordsNew, &summary); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		if ended != "" {
			r.EndedAt, _ = time.Parse(time.RFC3339, ended)
		}
		r.Status = domain.RunStatus(status)
		_ = json.Unmarshal([]byte(summary), &r.ErrorSummary)
		out = append(out, r)
	}
	return out, rows.Err()
}
