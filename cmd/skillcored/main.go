package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skillcore/skillcore/internal/analyzer"
	"github.com/skillcore/skillcore/internal/archive"
	"github.com/skillcore/skillcore/internal/cli"
	"github.com/skillcore/skillcore/internal/config"
	"github.com/skillcore/skillcore/internal/creative"
	"github.com/skillcore/skillcore/internal/daemonlock"
	"github.com/skillcore/skillcore/internal/engine"
	"github.com/skillcore/skillcore/internal/eventbus"
	"github.com/skillcore/skillcore/internal/evolution"
	"github.com/skillcore/skillcore/internal/failure"
	"github.com/skillcore/skillcore/internal/httpserver"
	"github.com/skillcore/skillcore/internal/learningstore"
	"github.com/skillcore/skillcore/internal/marketplace"
	"github.com/skillcore/skillcore/internal/metrics"
	"github.com/skillcore/skillcore/internal/progress"
	"github.com/skillcore/skillcore/internal/registry"
	"github.com/skillcore/skillcore/internal/skills"
	"github.com/skillcore/skillcore/internal/strategy"
	"github.com/skillcore/skillcore/pkg/observability"
	"github.com/skillcore/skillcore/pkg/resilience"
)

func main() {
	// A bare CLI invocation (e.g. `skillcored skill status`) talks to the
	// running daemon's state instead of booting a second one.
	if len(os.Args) > 1 && os.Args[1] == "skill" {
		os.Exit(runCLI(os.Args[2:]))
	}
	runDaemon()
}

func runDaemon() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := observability.NewLogger("skillcored")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.Persistence.DataDir, 0o755); err != nil {
		logger.Fatalf("failed to create data dir: %v", err)
	}

	lock, err := daemonlock.Acquire(filepath.Join(cfg.Persistence.DataDir, "skillcored.pid"))
	if err != nil {
		logger.Fatalf("failed to acquire daemon lock: %v", err)
	}
	defer lock.Release()

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing()

	metricsClient := observability.NewMetricsClient()

	var archiver metrics.Archiver
	if cfg.Persistence.S3.Enabled {
		s3Archiver, err := archive.NewS3Archiver(ctx, cfg.Persistence.S3.Bucket, cfg.Persistence.S3.Region, cfg.Persistence.S3.Prefix)
		if err != nil {
			logger.Warn("s3 archiver disabled: failed to initialize", map[string]interface{}{"error": err.Error()})
		} else {
			archiver = s3Archiver
		}
	}
	collector := metrics.NewCollector(archiver)

	// C1 (classifier) lives inside C2's retry loop; C2/C3 wired here.
	retry := resilience.NewRetryStrategy(resilience.RetryConfig{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseDelay:         cfg.Retry.BaseDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		Jitter:            cfg.Retry.Jitter,
	})
	breakers := resilience.NewManager(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		CooldownTimeout:  cfg.CircuitBreaker.CooldownTimeout,
	}, logger, metricsClient)
	bulkhead := resilience.NewBulkhead("resilience-engine", resilience.BulkheadConfig{
		MaxConcurrentCalls: cfg.Resilience.MaxParallelStrategies,
		QueueTimeout:       5 * time.Second,
	}, logger, metricsClient)

	var bus failure.EventBus
	var inProcessBus *eventbus.InProcessBus
	var redisBus *eventbus.RedisBus
	switch cfg.EventBus.Type {
	case "redis":
		redisBus = eventbus.NewRedisBus(cfg.EventBus.RedisAddr, cfg.EventBus.StreamKey, logger)
		bus = redisBus
	default:
		inProcessBus = eventbus.NewInProcessBus(256)
		bus = inProcessBus
	}

	failureAnalyzer := failure.New(failure.Config{
		Capacity:         cfg.Analyzer.RingCapacity,
		Retention:        cfg.Analyzer.RetentionWindow,
		PatternThreshold: cfg.Analyzer.PatternThreshold,
		CascadeWindow:    cfg.Analyzer.CascadeWindow,
	}, bus)

	explorer := strategy.NewExplorer()
	solver := creative.NewSolver(nil)
	tracker := progress.NewTracker()
	resilienceEngine := engine.New(engine.Config{
		EnableCreativeSolving: cfg.Resilience.EnableCreativeSolving,
		MaxParallelStrategies: cfg.Resilience.MaxParallelStrategies,
		MaxTotalTime:          cfg.Resilience.MaxTotalTime,
	}, retry, breakers, failureAnalyzer, explorer, solver, tracker, bulkhead)

	skillTracker := skills.NewTracker()
	skillSnapshotPath := filepath.Join(cfg.Persistence.DataDir, "skill_evolution", "skill_metrics.json")
	if err := skillTracker.LoadSnapshot(skillSnapshotPath); err != nil {
		logger.Warn("failed to load skill metrics snapshot", map[string]interface{}{"error": err.Error()})
	}

	fileRegistry, err := registry.NewFileRegistry(filepath.Join(cfg.Persistence.DataDir, "skills"))
	if err != nil {
		logger.Fatalf("failed to initialize skill registry: %v", err)
	}

	marketplaceClient := marketplace.NewHTTPMarketplace(os.Getenv("SKILLCORE_MARKETPLACE_URL"))

	var learningStore learningstore.Store
	if cfg.Persistence.Postgres.Enabled {
		pgStore, err := learningstore.NewPostgresStore(cfg.Persistence.Postgres.DSN)
		if err != nil {
			logger.Warn("postgres learning store disabled: failed to connect", map[string]interface{}{"error": err.Error()})
		} else {
			defer pgStore.Close()
			learningStore = pgStore
		}
	}
	if learningStore == nil {
		jsonlStore, err := learningstore.NewJSONLStore(filepath.Join(cfg.Persistence.DataDir, "skill_optimization", "pruning_log.jsonl"))
		if err != nil {
			logger.Fatalf("failed to initialize learning store: %v", err)
		}
		learningStore = jsonlStore
	}

	var failureEvents <-chan failure.Record
	if inProcessBus != nil {
		failureEvents = inProcessBus.Events()
	}

	evolutionManager := evolution.New(evolution.Config{
		ExplorationIntervalHours:  cfg.Evolution.ExplorationIntervalHours,
		OptimizationIntervalHours: cfg.Evolution.OptimizationIntervalHours,
		PruningIntervalHours:      cfg.Evolution.PruningIntervalHours,
		MaxSkillsPerExploration:   cfg.Evolution.MaxSkillsPerExploration,
		MinUsesBeforePrune:        cfg.Evolution.MinUsesBeforePrune,
		MinSuccessRate:            cfg.Evolution.MinSuccessRate,
		MinOverallScore:           cfg.Evolution.MinOverallScore,
		MaxUnusedDays:             cfg.Evolution.MaxUnusedDays,
		MinCompatibilityScore:     cfg.Evolution.MinCompatibilityScore,
		DryRunPrune:               cfg.Evolution.DryRunPrune,
	}, skillTracker, marketplaceClient, fileRegistry, learningStore, logger, failureEvents)
	evolutionManager.Start(ctx)
	defer evolutionManager.Stop()

	if redisBus != nil {
		go func() {
			if err := redisBus.Consume(ctx, "", func(rec failure.Record) {
				evolutionManager.TriggerExplorationForFailure(ctx, rec.OperationName, nil)
			}); err != nil && ctx.Err() == nil {
				logger.Warn("redis failure bus consumer stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	go sampleSystemMetrics(ctx, collector, cfg.Metrics.SampleInterval, logger)
	go flushMetricsPeriodically(ctx, collector, cfg.Persistence.DataDir, logger)
	go generateReportsPeriodically(ctx, collector, cfg.Persistence.DataDir, logger)
	go saveSkillSnapshotPeriodically(ctx, skillTracker, skillSnapshotPath, logger)

	server := httpserver.New(resilienceEngine, skillTracker, collector, logger)
	httpSrv := &http.Server{Addr: cfg.Server.ListenAddress, Handler: server.Handler()}

	go func() {
		logger.Info("listening", map[string]interface{}{"address": cfg.Server.ListenAddress})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", map[string]interface{}{"error": err.Error()})
	}

	cancel()
	if err := collector.SaveMetrics(shutdownCtx, finalMetricsPath(cfg.Persistence.DataDir)); err != nil {
		logger.Error("failed to save final metrics snapshot", map[string]interface{}{"error": err.Error()})
	}
	if err := skillTracker.SaveSnapshot(skillSnapshotPath); err != nil {
		logger.Error("failed to save skill metrics snapshot", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("stopped gracefully", nil)
}

func sampleSystemMetrics(ctx context.Context, collector *metrics.Collector, interval time.Duration, logger observability.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := collector.CollectSystemMetrics(ctx); err != nil {
				logger.Warn("system metrics sample failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func flushMetricsPeriodically(ctx context.Context, collector *metrics.Collector, dataDir string, logger observability.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := collector.SaveMetrics(ctx, finalMetricsPath(dataDir)); err != nil {
				logger.Warn("periodic metrics flush failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// saveSkillSnapshotPeriodically keeps the on-disk skill metrics snapshot
// reasonably fresh between startup load and shutdown save, so a crashed
// daemon (or a `skill` CLI invocation run concurrently) doesn't see
// arbitrarily stale data.
func saveSkillSnapshotPeriodically(ctx context.Context, tracker *skills.Tracker, path string, logger observability.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tracker.SaveSnapshot(path); err != nil {
				logger.Warn("periodic skill snapshot save failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func finalMetricsPath(dataDir string) string {
	return filepath.Join(dataDir, "metrics", fmt.Sprintf("metrics_%s.json", time.Now().Format("20060102_150405")))
}

// generateReportsPeriodically runs C10's threshold rules over the live
// metrics summary. There is no structured error-log aggregation pipeline
// wired yet, so it always passes an empty error-log group slice; a future
// log-shipping integration would populate it from the analyzer's tracked
// failures.
func generateReportsPeriodically(ctx context.Context, collector *metrics.Collector, dataDir string, logger observability.Logger) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			findings := analyzer.Analyze(collector.GetSummary(), nil, 0)
			path := filepath.Join(dataDir, "reports", fmt.Sprintf("performance_report_%s", time.Now().Format("20060102_150405")))
			if _, err := analyzer.GenerateReport(findings, path); err != nil {
				logger.Warn("report generation failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func runCLI(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return cli.ExitUnexpectedFail
	}

	logger := observability.NewNoopLogger()
	skillTracker := skills.NewTracker()
	skillSnapshotPath := filepath.Join(cfg.Persistence.DataDir, "skill_evolution", "skill_metrics.json")
	if err := skillTracker.LoadSnapshot(skillSnapshotPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load skill metrics snapshot: %v\n", err)
		return cli.ExitUnexpectedFail
	}
	fileRegistry, err := registry.NewFileRegistry(filepath.Join(cfg.Persistence.DataDir, "skills"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open skill registry: %v\n", err)
		return cli.ExitUnexpectedFail
	}
	marketplaceClient := marketplace.NewHTTPMarketplace(os.Getenv("SKILLCORE_MARKETPLACE_URL"))

	jsonlStore, err := learningstore.NewJSONLStore(filepath.Join(cfg.Persistence.DataDir, "skill_optimization", "pruning_log.jsonl"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open learning store: %v\n", err)
		return cli.ExitUnexpectedFail
	}

	evolutionManager := evolution.New(evolution.Config{
		MaxSkillsPerExploration: cfg.Evolution.MaxSkillsPerExploration,
		MinUsesBeforePrune:      cfg.Evolution.MinUsesBeforePrune,
		MinSuccessRate:          cfg.Evolution.MinSuccessRate,
		MinOverallScore:         cfg.Evolution.MinOverallScore,
		MaxUnusedDays:           cfg.Evolution.MaxUnusedDays,
		MinCompatibilityScore:   cfg.Evolution.MinCompatibilityScore,
		DryRunPrune:             cfg.Evolution.DryRunPrune,
	}, skillTracker, marketplaceClient, fileRegistry, jsonlStore, logger, nil)

	return cli.Run(context.Background(), cli.Dependencies{
		Tracker: skillTracker,
		Manager: evolutionManager,
		Out:     os.Stdout,
	}, args)
}
