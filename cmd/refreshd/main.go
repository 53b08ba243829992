package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"refreshd/internal/auth"
	"refreshd/internal/config"
	"refreshd/internal/db"
	httpx "refreshd/internal/http"
	"refreshd/internal/logging"
	"refreshd/internal/metrics"
	"refreshd/internal/migrate"
	"refreshd/internal/runs"
	"refreshd/internal/scheduler"
	"refreshd/internal/sqljob"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DatabaseURL, cfg.PoolMinSize, cfg.PoolMaxSize)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	recorder := &runs.Recorder{
		DB:  gdb,
		Log: log.With().Str("component", "recorder").Logger(),
		Obs: m,
	}

	// Definitions rebuild from disk on every start; a file that fails
	// to parse drops out, the rest of the corpus loads.
	files, parseErrs := sqljob.LoadDir(cfg.SQLJobsDir)
	for _, perr := range parseErrs {
		log.Warn().Err(perr).Msg("definition file dropped")
	}
	if len(parseErrs) > 0 {
		log.Warn().Int("files", len(parseErrs)).Msg("some definition files failed to parse")
	}
	log.Info().Str("dir", cfg.SQLJobsDir).Int("files", len(files)).Msg("sql job corpus loaded")

	applier := &migrate.Applier{
		DB:   gdb,
		Runs: recorder,
		Log:  log.With().Str("component", "migrate").Logger(),
	}
	sum, err := applier.Apply(context.Background(), files)
	if err != nil {
		// Failed files stay out of the ledger and retry next startup;
		// the process keeps going with whatever applied.
		log.Warn().Err(err).Strs("failed", sum.Failed).Msg("some sql files failed to apply")
	}
	log.Info().
		Strs("applied", sum.Applied).
		Int("skipped", len(sum.Skipped)).
		Msg("migration pass complete")

	sched := scheduler.New(
		runs.GormConn{DB: gdb},
		recorder,
		log.With().Str("component", "scheduler").Logger(),
		cfg.TickResolution,
	)
	registerJobs(log, cfg, sched, files)

	var jwtSvc *auth.JWT
	if cfg.APIAuthSecret != "" {
		jwtSvc = auth.NewJWT(cfg.APIAuthSecret)
	}

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:        gdb,
		Scheduler: sched,
		Recorder:  recorder,
		JWT:       jwtSvc,
		Registry:  registry,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Blocks until shutdown; in-flight executions run to
		// completion before this returns.
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

// registerJobs builds the recurring registry: every refresh-bearing
// definition from the corpus plus the config-defined maintenance
// procedures. Jobs outside the active set register disabled.
func registerJobs(log zerolog.Logger, cfg config.Config, sched *scheduler.Scheduler, files []sqljob.File) {
	for _, def := range sqljob.Definitions(files) {
		if !def.Recurring() {
			continue
		}
		enabled := cfg.JobEnabled(def.Name)
		if err := sched.Register(def, cfg.IntervalFor(def.Kind), enabled); err != nil {
			log.Warn().Err(err).Str("job", def.Name).Msg("job not registered")
			continue
		}
		log.Info().
			Str("job", def.Name).
			Str("kind", string(def.Kind)).
			Bool("enabled", enabled).
			Dur("interval", cfg.IntervalFor(def.Kind)).
			Msg("job registered")
	}

	if cfg.RetentionProcedure != "" {
		def := scheduler.ProcedureDefinition("retention_maintenance", sqljob.KindRetention, cfg.RetentionProcedure)
		if err := sched.Register(def, cfg.RetentionInterval, cfg.JobEnabled(def.Name)); err != nil {
			log.Warn().Err(err).Msg("retention job not registered")
		}
	}
	if cfg.PartitionProcedure != "" {
		def := scheduler.ProcedureDefinition("partition_maintenance", sqljob.KindPartition, cfg.PartitionProcedure)
		if err := sched.Register(def, cfg.PartitionInterval, cfg.JobEnabled(def.Name)); err != nil {
			log.Warn().Err(err).Msg("partition job not registered")
		}
	}
}
