package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scrapdeouf-engine/internal/domain"
)

var ErrJobNotFound = errors.New("extraction job not found")

// jobConfig is the tagged payload stored in the config column. Only the
// variant matching the template is non-nil.
type jobConfig struct {
	Map      *domain.MapSearchConfig      `json:"map,omitempty"`
	Commerce *domain.CommerceSearchConfig `json:"commerce,omitempty"`
}

func CreateJob(ctx context.Context, db *sql.DB, j *domain.ExtractionJob) error {
	cfgB, err := json.Marshal(jobConfig{Map: j.Map, Commerce: j.Commerce})
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO extraction_jobs(id, account_id, template, status, config, run_key, is_scheduled, next_run_at, created_at)
VALUES(?,?,?,?,?,?,?,?,?);`,
		j.ID, j.AccountID, string(j.Template), string(j.Status), string(cfgB),
		j.RunKey, boolToInt(j.IsScheduled), timePtrToStr(j.NextRunAt),
		j.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func GetJob(ctx context.Context, db *sql.DB, id string) (*domain.ExtractionJob, error) {
	row := db.QueryRowContext(ctx, `
SELECT id, account_id, template, status, config, run_key, is_scheduled,
       next_run_at, last_run_at, result, monitoring, credits_used, error_text, created_at
FROM extraction_jobs
WHERE id = ?;`, id)
	return scanJob(row)
}

func ListJobs(ctx context.Context, db *sql.DB, accountID string, limit int) ([]*domain.ExtractionJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, account_id, template, status, config, run_key, is_scheduled,
       next_run_at, last_run_at, result, monitoring, credits_used, error_text, created_at
FROM extraction_jobs
WHERE account_id = ?
ORDER BY created_at DESC
LIMIT ?;`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExtractionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListScheduledJobs returns every job with a live schedule, used to
// rebuild the in-memory queue after a restart.
func ListScheduledJobs(ctx context.Context, db *sql.DB) ([]*domain.ExtractionJob, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, account_id, template, status, config, run_key, is_scheduled,
       next_run_at, last_run_at, result, monitoring, credits_used, error_text, created_at
FROM extraction_jobs
WHERE is_scheduled = 1
ORDER BY next_run_at ASC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExtractionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func MarkJobRunning(ctx context.Context, db *sql.DB, id string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = ?, last_run_at = ?
WHERE id = ?;`, string(domain.StatusRunning), at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return checkFound(res)
}

// SaveJobRun persists the full outcome of one run in a single update:
// final status, result payload, monitoring snapshot, consumed credits.
func SaveJobRun(ctx context.Context, db *sql.DB, id string, status domain.Status,
	resultJSON string, mon *domain.MonitoringSnapshot, credits int, errText string) error {

	var monStr sql.NullString
	if mon != nil {
		b, err := json.Marshal(mon)
		if err != nil {
			return fmt.Errorf("marshal monitoring: %w", err)
		}
		monStr = sql.NullString{String: string(b), Valid: true}
	}
	if resultJSON == "" {
		resultJSON = "[]"
	}

	res, err := db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = ?, result = ?, monitoring = ?, credits_used = ?, error_text = ?, is_scheduled = 0, next_run_at = NULL
WHERE id = ?;`, string(status), resultJSON, monStr, credits, errText, id)
	if err != nil {
		return fmt.Errorf("save job run: %w", err)
	}
	return checkFound(res)
}

func SetJobSchedule(ctx context.Context, db *sql.DB, id string, runAt time.Time) error {
	res, err := db.ExecContext(ctx, `
UPDATE extraction_jobs
SET is_scheduled = 1, next_run_at = ?
WHERE id = ?;`, runAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("set job schedule: %w", err)
	}
	return checkFound(res)
}

func ClearJobSchedule(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `
UPDATE extraction_jobs
SET is_scheduled = 0, next_run_at = NULL
WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("clear job schedule: %w", err)
	}
	return checkFound(res)
}

func scanJob(row interface{ Scan(...any) error }) (*domain.ExtractionJob, error) {
	var (
		j          domain.ExtractionJob
		tmpl       string
		status     string
		cfgStr     string
		sched      int
		nextRun    sql.NullString
		lastRun    sql.NullString
		monitoring sql.NullString
		createdAt  string
	)
	err := row.Scan(&j.ID, &j.AccountID, &tmpl, &status, &cfgStr, &j.RunKey, &sched,
		&nextRun, &lastRun, &j.ResultJSON, &monitoring, &j.CreditsUsed, &j.ErrorText, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	j.Template = domain.Template(tmpl)
	j.Status = domain.Status(status)
	j.IsScheduled = sched != 0
	j.NextRunAt = strToTimePtr(nextRun)
	j.LastRunAt = strToTimePtr(lastRun)
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	var cfg jobConfig
	if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
		return nil, fmt.Errorf("decode job config: %w", err)
	}
	j.Map = cfg.Map
	j.Commerce = cfg.Commerce

	if monitoring.Valid {
		var mon domain.MonitoringSnapshot
		if err := json.Unmarshal([]byte(monitoring.String), &mon); err == nil {
			j.Monitoring = &mon
		}
	}
	return &j, nil
}

func checkFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToStr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func strToTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
