package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"onlinemon/internal/analyzer"
	"onlinemon/internal/catalogue"
	"onlinemon/internal/factory"
	"onlinemon/internal/monitor"
	"onlinemon/internal/monitor/handler"
	"onlinemon/internal/platform/config"
	"onlinemon/internal/platform/httpserver"
	"onlinemon/internal/platform/kafka"
	"onlinemon/internal/platform/logger"
	"onlinemon/internal/platform/metrics"
	"onlinemon/internal/platform/postgres"
	"onlinemon/internal/platform/redis"
	"onlinemon/internal/platform/tracing"
	"onlinemon/internal/registry"
	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
	snapkafka "onlinemon/internal/snapshot/store/kafka"
	"onlinemon/internal/snapshot/store/memory"
	snappg "onlinemon/internal/snapshot/store/postgres"
	snapredis "onlinemon/internal/snapshot/store/redis"
	httptransport "onlinemon/internal/transport/http"
	"onlinemon/internal/unpacker"
)

var (
	serveCfg = config.FromEnv()

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Register histograms, fill them from events and serve them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, serveCfg)
		},
	}
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveCfg.Addr, "addr", serveCfg.Addr, "HTTP listen address")
	f.StringVar(&serveCfg.Catalogue, "catalogue", serveCfg.Catalogue, "catalogue YAML file (default: built-in layout)")
	f.StringVar(&serveCfg.Source, "source", serveCfg.Source, `JSON-lines event file, "-" for stdin`)
	f.StringVar(&serveCfg.LogLevel, "log-level", serveCfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&serveCfg.LogFormat, "log-format", serveCfg.LogFormat, "json or text")
	f.DurationVar(&serveCfg.SnapshotInterval, "snapshot-interval", serveCfg.SnapshotInterval, "interval between snapshot batches")
	f.DurationVar(&serveCfg.SnapshotTimeout, "snapshot-timeout", serveCfg.SnapshotTimeout, "deadline for one snapshot store save")
	f.StringVar(&serveCfg.Tracing.Exporter, "tracing-exporter", serveCfg.Tracing.Exporter, `trace exporter: "stdout", "otlp" or empty to disable`)
}

// shutdownTimeout bounds flushing buffered spans on exit.
const shutdownTimeout = 5 * time.Second

func loadCatalogue(path string) (*catalogue.Catalogue, error) {
	if path == "" {
		return catalogue.Default(), nil
	}
	return catalogue.Load(path)
}

// serve wires the process. Startup stops on the first registration error:
// a layout that cannot be encoded or flattened is never served.
func serve(ctx context.Context, cfg config.Server) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	cat, err := loadCatalogue(cfg.Catalogue)
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.WarnContext(ctx, "tracing shutdown failed", "error", err)
		}
	}()

	reg := registry.New()
	maker := factory.New(reg, factory.WithLogger(log))
	groups, err := maker.BuildAll(ctx, cat)
	if err != nil {
		return fmt.Errorf("register histograms: %w", err)
	}
	table, err := maker.Flatten()
	if err != nil {
		return fmt.Errorf("flatten histograms: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)
	m.SetRegistrySize(reg.Count())
	promReg.MustRegister(monitor.NewCollector(reg, table, monitor.DefaultMaxBuckets))
	log.InfoContext(ctx, "histograms registered", "histograms", reg.Count(), "blocks", len(groups))

	anOpts := []analyzer.Option{analyzer.WithLogger(log), analyzer.WithMetrics(m)}
	svcOpts := []monitor.Option{monitor.WithLogger(log), monitor.WithMetrics(m)}
	if cat.Scaler != nil {
		sc, err := scaler.New(cat.Scaler, scaler.WithLogger(log), scaler.WithMetrics(m))
		if err != nil {
			return fmt.Errorf("build scaler monitor: %w", err)
		}
		anOpts = append(anOpts, analyzer.WithScaler(sc))
		svcOpts = append(svcOpts, monitor.WithScaler(sc))
		log.InfoContext(ctx, "scaler monitoring enabled", "device", cat.Scaler.Device, "counters", len(cat.Scaler.Counters))
	}

	an, err := analyzer.New(cat, table, anOpts...)
	if err != nil {
		return fmt.Errorf("build analyzer: %w", err)
	}

	svc, err := monitor.New(reg, table, groups, append(svcOpts, monitor.WithStatus(an))...)
	if err != nil {
		return fmt.Errorf("build monitor: %w", err)
	}

	stores, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	publisher, err := snapshot.NewPublisher(svc, cfg.SnapshotInterval, stores,
		snapshot.WithLogger(log),
		snapshot.WithMetrics(m),
		snapshot.WithSaveTimeout(cfg.SnapshotTimeout),
		snapshot.WithRetryInterval(cfg.SnapshotRetryInterval),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(log, promReg, handler.New(svc, log, cfg.AdminToken))
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting onlinemon", "addr", cfg.Addr)
		return httpserver.Serve(gctx, srv)
	})
	g.Go(func() error {
		return publisher.Run(gctx)
	})
	if cfg.Source != "" {
		g.Go(func() error {
			return runSource(gctx, cfg.Source, an, log)
		})
	}

	err = g.Wait()
	final := cfg.SnapshotTimeout
	if final <= 0 {
		final = snapshot.DefaultSaveTimeout
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), final)
	defer cancel()
	if _, perr := publisher.PublishNow(fctx); perr != nil {
		log.WarnContext(ctx, "final snapshot failed", "error", perr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.InfoContext(ctx, "onlinemon stopped")
	return nil
}

// runSource drains the event source. Reaching the end of the input leaves
// the server up so the final histograms stay readable.
func runSource(ctx context.Context, path string, an *analyzer.Analyzer, log *slog.Logger) error {
	src, err := unpacker.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()
	if err := an.Run(ctx, src); err != nil {
		return err
	}
	st := an.Status()
	log.InfoContext(ctx, "event source drained", "events", st.Events, "skipped", st.Skipped, "run", st.Run)
	return nil
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) ([]snapshot.Store, func(), error) {
	stores := []snapshot.Store{memory.New(memory.DefaultHistory)}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		stores = append(stores, snapredis.New(rc.Client, snapredis.WithTTL(cfg.Redis.SnapshotTTL)))
		log.InfoContext(ctx, "redis snapshot store enabled")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("connect postgres: %w", err)
	}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
		pg := snappg.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("prepare postgres: %w", err)
		}
		stores = append(stores, pg)
		log.InfoContext(ctx, "postgres snapshot store enabled")
	}

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("connect kafka: %w", err)
	}
	if kc != nil {
		closers = append(closers, kc.Close)
		if err := kc.EnsureTopic(ctx, 1, 1); err != nil {
			log.WarnContext(ctx, "could not ensure snapshot topic", "topic", kc.Topic(), "error", err)
		}
		stores = append(stores, snapkafka.New(kc, kc.Topic()))
		log.InfoContext(ctx, "kafka snapshot store enabled", "topic", kc.Topic())
	}

	return stores, closeAll, nil
}
