package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/config"
	"scrapdeouf-engine/internal/credits"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/events"
	"scrapdeouf-engine/internal/httpapi"
	"scrapdeouf-engine/internal/proxy"
	"scrapdeouf-engine/internal/queue"
	"scrapdeouf-engine/internal/scrape/commerce"
	"scrapdeouf-engine/internal/scrape/maps"
	"scrapdeouf-engine/internal/scrape/types"
	"scrapdeouf-engine/internal/scrape/util"
	"scrapdeouf-engine/internal/store"
	"scrapdeouf-engine/internal/worker"
)

func main() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	dataDir := os.Getenv("SCRAPDEOUF_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir: two processes sharing the sqlite file and
	// the run queue would double-run scheduled jobs.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("data dir lock: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance already owns %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	userCfgPath, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		normalized, vr := config.NormalizeAndValidate(cfg)
		if !vr.OK() {
			return cfg, fmt.Errorf("invalid config: %s", strings.Join(vr.Errors, "; "))
		}
		for _, warn := range vr.Warnings {
			log.Printf("[config] warning: %s", warn)
		}
		return normalized, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "scrapdeouf.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts := store.Accounts{DB: db.Pool}
	if err := accounts.EnsureAccount(ctx, httpapi.DefaultAccountID); err != nil {
		log.Fatal(err)
	}

	pool := proxy.NewStaticPool(resolveProxies(cfg.Proxies), time.Now().UnixNano())
	hub := events.NewHub()
	ledger := credits.NewLedger(accounts)

	limiter := util.NewHostLimiter(cfg.Enrich.HostReqPerSec, cfg.Enrich.HostBurst)
	batchPause := time.Duration(cfg.Worker.BatchPauseMS) * time.Millisecond
	orchestrators := map[domain.Template]types.Orchestrator{
		domain.TemplateMapSearch:      maps.New(cfg.Worker.BatchSize, batchPause, limiter, log.Default()),
		domain.TemplateCommerceSearch: commerce.New(cfg.Worker.BatchSize, batchPause, log.Default()),
	}

	browserOpts := browser.Options{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Browser.UserAgent,
		DelayMin:   time.Duration(cfg.Browser.DelayMinMS) * time.Millisecond,
		DelayMax:   time.Duration(cfg.Browser.DelayMaxMS) * time.Millisecond,
		NavTimeout: time.Duration(cfg.Worker.NavTimeoutSeconds) * time.Second,
	}

	w := worker.New(db.Pool, ledger, pool, hub, orchestrators, browserOpts, cfg.Worker.PoolSize, log.Default())

	q := queue.New(w.Execute, log.Default())
	if err := q.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer q.Stop()

	requeueScheduled(ctx, db.Pool, q)

	handler := httpapi.Chain(
		httpapi.Routes(httpapi.Handlers{
			Jobs: httpapi.JobsHandler{DB: db.Pool, Hub: hub, Accounts: accounts},
			Runs: httpapi.RunHandler{DB: db.Pool, Hub: hub, Queue: q, Execute: w.Execute},
			Config: httpapi.ConfigHandler{
				CfgVal:      &cfgVal,
				UserCfgPath: userCfgPath,
				LoadCfg:     loadCfg,
			},
			Events: httpapi.EventsHandler{Hub: hub},
		}),
		httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors,
	)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("engine listening on http://%s (db=%s)", addr, dbPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
