package main

// Package main is the entry point for the intent-agent server.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Build the structured logger and the rotated provenance sink
//   - Wire the tool registry, broker, router, and workflow strategy
//   - Start the HTTP server and serve until SIGINT/SIGTERM
//   - Shut down gracefully, flushing the provenance sink
//
// Request Flow:
//   1. POST /api/v1/query → workflow strategy (pipeline or agent)
//   2. Router classifies the query (LLM primary, keyword fallback)
//   3. Planner fills slots or decides a clarification
//   4. Executor invokes tools through the retrying broker
//   5. Every decision lands in the provenance trace, readable via
//      GET /api/v1/trace and streamable over websocket

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/asheeshfzr/intent-agent/internal/cache"
	"github.com/asheeshfzr/intent-agent/internal/config"
	"github.com/asheeshfzr/intent-agent/internal/router"
	"github.com/asheeshfzr/intent-agent/internal/server"
	"github.com/asheeshfzr/intent-agent/internal/session"
	"github.com/asheeshfzr/intent-agent/internal/tools"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "intent-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var manager config.Manager
	var err error
	if configPath := os.Getenv("INTENT_AGENT_CONFIG"); configPath != "" {
		manager, err = config.NewManager(configPath)
	} else {
		manager, err = config.NewManagerWithDefaults()
	}
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := manager.Load(ctx); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := manager.Validate(ctx); err != nil {
		return err
	}
	cfg := manager.Get(ctx)

	logger, err := buildLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// File watch only notifies; components read their settings once at
	// startup, so a change needs a restart to apply.
	watchCh := manager.Watch(ctx)
	go func() {
		for range watchCh {
			logger.Info("configuration file changed; restart to apply")
		}
	}()

	// Provenance sink and trace recorder.
	var traceOpts []trace.Option
	if cfg.Provenance.Path != "" {
		sink := trace.NewFileSink(trace.SinkConfig{
			Path:       cfg.Provenance.Path,
			MaxSize:    cfg.Provenance.MaxSizeMB,
			MaxBackups: cfg.Provenance.MaxBackups,
			MaxAge:     cfg.Provenance.MaxAgeDays,
			Compress:   cfg.Provenance.Compress,
		})
		traceOpts = append(traceOpts, trace.WithSink(sink))
	}
	sweep := time.Duration(cfg.State.SweepIntervalSeconds) * time.Second
	if ttl := time.Duration(cfg.State.TraceTTLSeconds) * time.Second; ttl > 0 {
		traceOpts = append(traceOpts, trace.WithTTL(ttl, sweep))
	}
	recorder := trace.NewRecorder(traceOpts...)
	defer recorder.Close()

	var sessionOpts []session.Option
	if ttl := time.Duration(cfg.State.SessionTTLSeconds) * time.Second; ttl > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(ttl, sweep))
	}
	sessions := session.NewStore(sessionOpts...)
	defer sessions.Close()

	// Tool layer.
	httpTimeout := time.Duration(cfg.Tools.HTTPTimeoutSeconds) * time.Second
	sqlTool, err := tools.NewSQLTool(cfg.Workflow.ServiceCatalog, cfg.Tools.FixturePath)
	if err != nil {
		return fmt.Errorf("open sql tool: %w", err)
	}
	defer sqlTool.Close()

	registry := tools.NewRegistry()
	registry.Register(tools.NewMetricsTool(cfg.Tools.MetricsBaseURL, httpTimeout))
	registry.Register(tools.NewKnowledgeTool(cfg.Tools.VectorBaseURL, cfg.Tools.VectorCollection, httpTimeout))
	registry.Register(tools.NewDocsTool(cfg.Tools.DocsBaseURL, httpTimeout))
	registry.Register(sqlTool)

	brokerCfg := tools.BrokerConfig{
		Retries:     cfg.Tools.Retries,
		BackoffBase: time.Duration(cfg.Tools.BackoffBaseMs) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.Tools.BackoffMaxMs) * time.Millisecond,
	}
	brokerOpts := []tools.BrokerOption{tools.WithLogger(logger)}
	if cfg.Cache.Enabled {
		brokerCfg.CacheTTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second
		resultCache := cache.New(time.Minute)
		defer resultCache.Close()
		brokerOpts = append(brokerOpts, tools.WithCache(resultCache))
	}
	broker := tools.NewBroker(brokerCfg, brokerOpts...)

	// Routing and workflow.
	var classifier router.Classifier
	if cfg.LLM.Enabled {
		classifier = router.NewLLMClassifier(cfg.LLM.BaseURL, cfg.LLM.Model,
			cfg.LLM.MaxTokens, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	}
	rt := router.NewRouter(classifier, cfg.Workflow.ServiceCatalog, logger)

	params := workflow.Params{
		ServiceCatalog:      cfg.Workflow.ServiceCatalog,
		ConfidenceThreshold: cfg.Workflow.ConfidenceThreshold,
		KnowledgeScoreMin:   cfg.Workflow.KnowledgeScoreMin,
		P95ThresholdMs:      float64(cfg.Workflow.P95ThresholdMs),
		AgentMaxIterations:  cfg.Workflow.AgentMaxIterations,
	}
	planner := workflow.NewPlanner(params, sessions)
	executor := workflow.NewExecutor(params, registry, broker, recorder, logger)

	var strategy workflow.Strategy
	switch cfg.Workflow.Mode {
	case "agent":
		strategy = workflow.NewAgent(params, rt, planner, executor, registry, broker, sessions, recorder, logger)
	default:
		strategy = workflow.NewPipeline(rt, planner, executor, sessions, recorder, logger)
	}

	srv, err := server.NewServer(cfg, strategy, sessions, recorder, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal")

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	if format == "text" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return zcfg.Build()
}
