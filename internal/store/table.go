package store

import (
	"database/sql"
)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS extraction_jobs (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  template TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  config TEXT NOT NULL DEFAULT '{}',
  run_key TEXT NOT NULL,
  is_scheduled INTEGER NOT NULL DEFAULT 0,
  next_run_at TEXT,
  last_run_at TEXT,
  result TEXT NOT NULL DEFAULT '[]',
  monitoring TEXT,
  credits_used INTEGER NOT NULL DEFAULT 0,
  error_text TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  plan TEXT NOT NULL DEFAULT 'free',
  interval TEXT NOT NULL DEFAULT 'monthly',
  subscription_active INTEGER NOT NULL DEFAULT 0,
  credits_used INTEGER NOT NULL DEFAULT 0,
  credits_limit INTEGER NOT NULL DEFAULT 50,
  last_reset TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_account
ON extraction_jobs(account_id);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_extraction_jobs_run_key
ON extraction_jobs(run_key);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}
