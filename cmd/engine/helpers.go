package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"scrapdeouf-engine/internal/config"
	"scrapdeouf-engine/internal/proxy"
	"scrapdeouf-engine/internal/queue"
	"scrapdeouf-engine/internal/secrets"
	"scrapdeouf-engine/internal/store"
)

// resolveProxies turns config entries into usable proxy configs. An
// entry without an inline password is resolved from the OS keychain;
// entries that resolve nothing are skipped rather than failing startup.
func resolveProxies(entries []config.ProxyEntry) []proxy.Config {
	var out []proxy.Config
	for _, e := range entries {
		pw := e.Password
		if pw == "" && e.Username != "" {
			account := secrets.ProxyKeyringAccount(e.Username, e.Host, e.Port)
			got, err := secrets.GetProxyPassword(account)
			if err != nil {
				log.Printf("[proxy] %s:%d skipped: %v", e.Host, e.Port, err)
				continue
			}
			pw = got
		}
		out = append(out, proxy.Config{Host: e.Host, Port: e.Port, Username: e.Username, Password: pw})
	}
	if len(out) > 0 {
		log.Printf("[proxy] pool loaded with %d endpoints", len(out))
	}
	return out
}

// requeueScheduled rebuilds the in-memory queue from schedules that
// survived a restart. Run times missed while the engine was down fire
// on the next sweep.
func requeueScheduled(ctx context.Context, db *sql.DB, q *queue.Queue) {
	jobs, err := store.ListScheduledJobs(ctx, db)
	if err != nil {
		log.Printf("[queue] requeue failed: %v", err)
		return
	}
	for _, j := range jobs {
		if j.NextRunAt == nil {
			continue
		}
		runAt := *j.NextRunAt
		if !runAt.After(time.Now()) {
			runAt = time.Now().Add(2 * time.Second)
		}
		if err := q.Schedule(j.RunKey, j.ID, runAt); err != nil {
			log.Printf("[queue] requeue job %s: %v", j.ID, err)
			continue
		}
		log.Printf("[queue] restored schedule for job %s at %s", j.ID, runAt.UTC().Format(time.RFC3339))
	}
}
