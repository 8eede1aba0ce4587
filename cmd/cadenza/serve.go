package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cadenza-ai/cadenza/internal/agent"
	"github.com/cadenza-ai/cadenza/internal/agent/providers"
	"github.com/cadenza-ai/cadenza/internal/config"
	"github.com/cadenza-ai/cadenza/internal/gateway"
	"github.com/cadenza-ai/cadenza/internal/memory"
	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/internal/planning"
	"github.com/cadenza-ai/cadenza/internal/sessions"
	"github.com/cadenza-ai/cadenza/internal/tools"
)

const shutdownGrace = 10 * time.Second

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		Output:         os.Stderr,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})
	logger.Info(ctx, "starting cadenza",
		"version", version, "config", configPath, "addr", cfg.Server.Addr())

	metrics := observability.NewMetrics()

	provider, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		MaxRetries: cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize provider: %w", err)
	}

	registry := agent.NewRegistry()
	tools.RegisterBuiltins(registry, tools.Config{
		Workspace:          cfg.Tools.Workspace,
		MaxReadBytes:       cfg.Tools.MaxReadBytes,
		ExecTimeoutSeconds: cfg.Tools.ExecTimeoutSeconds,
	})

	memoryService := memory.NewService(memory.ServiceConfig{
		GlobalMaxShortTerm:  cfg.Memory.GlobalShortTerm,
		GlobalMaxLongTerm:   cfg.Memory.GlobalLongTerm,
		SessionMaxShortTerm: cfg.Memory.SessionShortTerm,
		SessionMaxLongTerm:  cfg.Memory.SessionLongTerm,
		AgentMaxShortTerm:   cfg.Memory.AgentShortTerm,
		AgentMaxLongTerm:    cfg.Memory.AgentLongTerm,
	}, logger, metrics)
	hooks := memory.NewHooks(memoryService)

	executor := agent.NewExecutor(provider, logger, metrics)
	manager := agent.NewManager(logger)

	registerAgents(cfg, executor, registry, hooks, manager)

	planner := planning.NewPlanner(planning.Config{
		Model:         cfg.LLM.Model,
		MaxTasks:      cfg.Agents.MaxTasks,
		ExecutorAgent: cfg.Agents.Executor,
	}, provider, manager, logger, metrics)
	manager.Register(planner, cfg.Agents.Default == planner.Name())

	store := sessions.NewStore(logger, metrics)
	server := gateway.NewServer(store, manager, memoryService, logger, metrics)

	wsServer := &http.Server{Addr: cfg.Server.Addr(), Handler: server.Routes()}
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr(), Handler: server.MetricsRoutes()}

	errCh := make(chan error, 2)
	go func() {
		logger.Info(ctx, "websocket server listening", "addr", cfg.Server.Addr())
		if err := wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	go func() {
		logger.Info(ctx, "metrics server listening", "addr", cfg.Server.MetricsAddr())
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info(ctx, "shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info(ctx, "shutting down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "websocket server shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "metrics server shutdown", "error", err)
	}
	return nil
}

// registerAgents creates the stock agents. The configured default wins;
// otherwise "general" is the default by registration order.
func registerAgents(cfg *config.Config, executor *agent.Executor, registry *agent.Registry, hooks *memory.Hooks, manager *agent.Manager) {
	model := cfg.LLM.Model

	configs := []agent.Config{
		agent.GeneralConfig("general", model, registry, hooks),
		agent.SimpleConfig("simple", model),
		agent.AnalysisConfig("analysis", model, registry),
		agent.CodeConfig("code", model, registry),
	}
	for i := range configs {
		configs[i].MaxTokens = cfg.LLM.MaxTokens
		configs[i].Temperature = cfg.LLM.Temperature
		if cfg.Agents.MaxIterations > 0 {
			configs[i].MaxIterations = cfg.Agents.MaxIterations
		}
		a := agent.NewAgent(configs[i], executor)
		manager.Register(a, a.Name() == cfg.Agents.Default)
	}
}
