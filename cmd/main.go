// jobmate-aggregator-service
//
// Collects job postings from the configured sources, merges the ones that
// point at the same posting, scores them against a search profile and
// writes the batch to the configured store and export sinks.
//
// Two ways to run it:
//   - serve (default): HTTP API, runs triggered with POST /v1/runs
//   - -once:           run the selected profiles, print the summaries, exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/export"
	"jobmate/aggregator-service/internal/httpapi"
	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/pipeline"
	"jobmate/aggregator-service/internal/scraper"
	"jobmate/aggregator-service/internal/storage"
	"jobmate/aggregator-service/internal/throttle"
)

const version = "1.0.0"

func main() {
	once := flag.Bool("once", false, "run the profiles once and exit instead of serving HTTP")
	profile := flag.String("profile", "", "with -once: only run this profile")
	mode := flag.String("mode", model.ModeSearch, "with -once: search or employers")
	flag.Parse()

	logger.Init(logger.FromEnv())
	log := logger.Named("main")

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	file, err := config.LoadFile(cfg.PipelineFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PipelineFile).Msg("pipeline config error")
	}
	if *mode != model.ModeSearch && *mode != model.ModeEmployers {
		log.Fatal().Str("mode", *mode).Msg("-mode must be search or employers")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── Store ───────────────────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("storage error")
	}
	defer closeStore()
	log.Info().Str("driver", cfg.StorageDriver).Msg("store connected ✓")

	// ── Export ──────────────────────────────────────────────────────────────
	exporter, closeExport, err := openExporter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.ExportDriver).Msg("export error")
	}
	defer closeExport()

	// ── Sources ─────────────────────────────────────────────────────────────
	fetcher := scraper.NewFetcher(cfg.HTTPTimeout, throttle.New(cfg.ThrottleDelay))
	adapters := scraper.Build(file.Sources, fetcher)
	manager := scraper.NewManager(adapters, scraper.Options{
		IncludeDomains: file.IncludeDomains,
		ExcludeDomains: file.ExcludeDomains,
		AdapterTimeout: cfg.AdapterTimeout,
		MaxParallel:    cfg.MaxParallel,
	})
	log.Info().Int("sources", len(adapters)).Int("profiles", len(file.Profiles)).Msg("sources built")

	opt := pipeline.Options{
		Store:             store,
		Exporter:          exporter,
		ExportDestination: cfg.ExportPath,
	}
	if cfg.FetchPages {
		opt.Pages = fetcher
	}
	pl := pipeline.New(manager, opt)

	if *once {
		if err := runOnce(ctx, pl, file, *profile, *mode); err != nil {
			log.Fatal().Err(err).Msg("run failed")
		}
		return
	}

	// ── HTTP server ─────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     httpapi.NewHandler(pl, file, version).Router(),
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("version", version).Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("stopped.")
}

// runOnce runs every profile (or just name) in file order and writes one
// JSON summary per line to stdout.
func runOnce(ctx context.Context, pl *pipeline.Pipeline, file *config.File, name, mode string) error {
	profiles := file.Profiles
	if name != "" {
		p, ok := file.Profile(name)
		if !ok {
			return fmt.Errorf("unknown profile %q", name)
		}
		profiles = []model.SearchProfile{p}
	}
	if len(profiles) == 0 {
		return errors.New("no profiles configured")
	}

	enc := json.NewEncoder(os.Stdout)
	for _, p := range profiles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var sum model.RunSummary
		if mode == model.ModeEmployers {
			_, sum = pl.RunEmployers(ctx, p, file.H1BEmployers)
		} else {
			_, sum = pl.Run(ctx, p)
		}
		if err := enc.Encode(sum); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (pipeline.Store, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	default:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.NewSQLite(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return s, func() { conn.Close() }, nil
	}
}

func openExporter(ctx context.Context, cfg *config.Config) (pipeline.Exporter, func(), error) {
	switch cfg.ExportDriver {
	case config.ExportRedis:
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return export.NewRedis(rdb), func() { rdb.Close() }, nil
	case config.ExportXLSX:
		return export.NewXLSX(), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
