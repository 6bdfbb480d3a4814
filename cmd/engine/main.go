package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/crawl"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/export"
	"jobwatch-engine/internal/scheduler"
	"jobwatch-engine/internal/source"
	"jobwatch-engine/internal/source/townwork"
	"jobwatch-engine/internal/store"
)

func main() {
	var (
		dataDir  = flag.String("data", "", "data directory (default $JOBWATCH_DATA_DIR or .)")
		cfgFlag  = flag.String("config", "", "config file (default <data>/config.yml, bootstrapped from config/config.yml)")
		once     = flag.Bool("once", false, "run a single crawl and exit")
		doExport = flag.Bool("export", false, "run the export path and exit")
	)
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		dir = os.Getenv("JOBWATCH_DATA_DIR")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One process per data dir. The store assumes a single writer; the lock
	// makes that true even if the engine is launched twice.
	lock := flock.New(filepath.Join(dir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance already owns %s", dir)
	}
	defer func() { _ = lock.Unlock() }()

	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath, err = config.EnsureUserConfig(dir, filepath.Join("config", "config.yml"))
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
	}

	raw, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", cfgPath, err)
	}
	cfg, val := config.NormalizeAndValidate(raw)
	for _, w := range val.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !val.OK() {
		for _, e := range val.Errors {
			log.Printf("[config] error: %s", e)
		}
		log.Fatalf("config rejected (%d errors)", len(val.Errors))
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = dir
	}
	if !filepath.IsAbs(cfg.App.OutputDir) {
		cfg.App.OutputDir = filepath.Join(dir, cfg.App.OutputDir)
	}

	st, err := store.Open(filepath.Join(dir, "jobwatch.db"))
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer st.Close()

	hub := events.NewHub()
	evCh := hub.Subscribe()
	defer hub.Unsubscribe(evCh)
	go func() {
		for evt := range evCh {
			log.Printf("[event] %s", evt)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportSvc := &export.Service{
		Store:    st,
		Exporter: export.NewCSVExporter(cfg.App.OutputDir),
		Hub:      hub,
		Cfg:      cfg,
	}

	if *doExport {
		if _, err := exportSvc.Run(ctx); err != nil {
			log.Fatalf("export: %v", err)
		}
		return
	}

	src, err := buildSource(cfg)
	if err != nil {
		log.Fatal(err)
	}
	runner := crawl.New(src, st, hub)
	params := crawl.SearchParams{
		Keyword:      cfg.Crawl.Keyword,
		Area:         cfg.Crawl.Area,
		MaxPages:     cfg.Crawl.MaxPages,
		Concurrency:  cfg.Crawl.Concurrency,
		RequestDelay: cfg.RequestDelay(),
	}

	if *once {
		run, err := runner.Run(ctx, params)
		if err != nil {
			log.Fatalf("crawl: %v", err)
		}
		log.Printf("[engine] run %d %s: %d new", run.ID, run.Status, run.RecordsNew)
		return
	}

	if !cfg.Schedule.Enabled {
		log.Fatal("schedule.enabled is false; use -once or -export for one-shot runs")
	}
	win, err := scheduler.ParseWindow(cfg.Schedule.WindowStart, cfg.Schedule.WindowEnd)
	if err != nil {
		log.Fatalf("schedule window: %v", err)
	}

	runOnce := func(ctx context.Context) (domain.CrawlRun, error) {
		return runner.Run(ctx, params)
	}
	sched := scheduler.New(cfg.Interval(), win, runOnce, hub, func(recordsNew int) {
		if recordsNew > 0 {
			log.Printf("[engine] %d new postings", recordsNew)
		}
	})

	log.Printf("[engine] up: source=%s data=%s interval=%s window=%s-%s",
		src.Name(), dir, cfg.Interval(), cfg.Schedule.WindowStart, cfg.Schedule.WindowEnd)
	sched.Start(ctx)
	log.Printf("[engine] shutting down")
}

func buildSource(cfg config.Config) (source.Source, error) {
	switch cfg.Crawl.Source {
	case townwork.SourceName:
		return townwork.New(&http.Client{Timeout: cfg.FetchTimeout()}), nil
	}
	return nil, fmt.Errorf("unknown crawl.source %q", cfg.Crawl.Source)
}
