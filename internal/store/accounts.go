package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scrapdeouf-engine/internal/credits"
)

var ErrAccountNotFound = errors.New("account not found")

// Accounts adapts the sql pool to the credit ledger's AccountStore.
type Accounts struct {
	DB *sql.DB
}

func (s Accounts) GetAccount(ctx context.Context, id string) (credits.Account, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, plan, interval, subscription_active, credits_used, credits_limit, last_reset
FROM accounts
WHERE id = ?;`, id)

	var (
		a         credits.Account
		plan      string
		interval  string
		active    int
		lastReset string
	)
	err := row.Scan(&a.ID, &plan, &interval, &active, &a.Used, &a.Limit, &lastReset)
	if errors.Is(err, sql.ErrNoRows) {
		return credits.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return credits.Account{}, err
	}
	a.Plan = credits.Plan(plan)
	a.Interval = credits.Interval(interval)
	a.SubscriptionActive = active != 0
	a.LastReset, _ = time.Parse(time.RFC3339, lastReset)
	return a, nil
}

func (s Accounts) UpdateAccount(ctx context.Context, a credits.Account) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE accounts
SET plan = ?, interval = ?, subscription_active = ?, credits_used = ?, credits_limit = ?, last_reset = ?
WHERE id = ?;`,
		string(a.Plan), string(a.Interval), boolToInt(a.SubscriptionActive),
		a.Used, a.Limit, a.LastReset.UTC().Format(time.RFC3339), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// EnsureAccount inserts a default free-tier row if the account is new.
func (s Accounts) EnsureAccount(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT OR IGNORE INTO accounts(id, plan, interval, subscription_active, credits_used, credits_limit, last_reset)
VALUES(?, 'free', 'monthly', 0, 0, ?, ?);`,
		id, credits.PlanLimit(credits.PlanFree), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}
