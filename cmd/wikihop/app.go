package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ncolesummers/wikihop/pkg/config"
	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/fetch"
	"github.com/ncolesummers/wikihop/pkg/llm"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/resilience"
	"github.com/ncolesummers/wikihop/pkg/search"
	"github.com/ncolesummers/wikihop/pkg/state"
	"github.com/ncolesummers/wikihop/pkg/tools"
	"github.com/ncolesummers/wikihop/pkg/workflow"
)

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	logger    *observability.StructuredLogger
	engine    *workflow.Engine

	metricsServer *http.Server
}

// newApp loads configuration and wires the agent
func newApp(ctx context.Context) (*app, error) {
	cfg := config.LoadOrDefault(configPath)

	observability.ConfigureLogging(os.Stderr, observability.LogLevel(cfg.Observability.Logging.Level), cfg.Observability.Logging.Format)
	a := &app{cfg: cfg, logger: observability.NewStructuredLogger("cli")}

	if err := a.initObservability(); err != nil {
		return nil, err
	}

	oracle, err := a.newOracle(ctx)
	if err != nil {
		a.shutdown(ctx)
		return nil, err
	}

	registry, err := a.newRegistry()
	if err != nil {
		a.shutdown(ctx)
		return nil, err
	}

	engineCfg, err := a.engineConfig()
	if err != nil {
		a.shutdown(ctx)
		return nil, err
	}

	a.engine, err = workflow.NewEngine(oracle, registry, engineCfg,
		workflow.WithTelemetry(a.telemetry),
		workflow.WithMetrics(a.metrics),
	)
	if err != nil {
		a.shutdown(ctx)
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	a.logger.Debug(ctx, "Agent initialized", map[string]interface{}{
		"config":   configPath,
		"provider": cfg.LLM.Provider,
		"model":    cfg.LLM.Model,
		"search":   cfg.Search.Backend,
	})
	return a, nil
}

func (a *app) initObservability() error {
	obs := a.cfg.Observability
	telConfig := &observability.TelemetryConfig{
		ServiceName:    "wikihop",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   obs.Tracing.Endpoint,
		OTLPInsecure:   obs.Tracing.Insecure,
		SamplingRate:   obs.Tracing.SamplingRate,
		EnableTracing:  obs.Tracing.Enabled,
		EnableMetrics:  obs.Metrics.Enabled,
	}

	var err error
	a.telemetry, err = observability.NewTelemetry(telConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a.metrics, err = observability.NewMetrics(a.telemetry.Meter())
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if obs.Metrics.Enabled {
		a.serveMetrics(obs.Metrics.Port)
	}
	return nil
}

// serveMetrics exposes the Prometheus registry on /metrics
func (a *app) serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(context.Background(), "Metrics server stopped", err)
		}
	}()
}

func (a *app) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn(ctx, "Error shutting down metrics server", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn(ctx, "Error shutting down telemetry", map[string]interface{}{"error": err.Error()})
		}
	}
	_ = a.logger.Sync()
}

func (a *app) retryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts: a.cfg.Retry.MaxAttempts,
		BaseDelay:   a.cfg.GetDuration(a.cfg.Retry.BaseDelay, 2*time.Second),
	}
}

// newOracle builds the provider client wrapped with retries and
// instrumentation
func (a *app) newOracle(ctx context.Context) (domain.LLMClient, error) {
	c := a.cfg.LLM
	timeout := a.cfg.GetDuration(c.Timeout, 2*time.Minute)

	var client domain.LLMClient
	switch c.Provider {
	case config.ProviderOllama:
		ollama := llm.NewOllamaClient(c.BaseURL, c.Model, &llm.OllamaOptions{
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     timeout,
		})
		if err := ollama.CheckHealth(ctx); err != nil {
			return nil, fmt.Errorf("ollama health check failed: %w", err)
		}
		client = ollama
	case config.ProviderOpenAI:
		if c.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key (set OPENAI_API_KEY)")
		}
		client = llm.NewOpenAIClient(c.BaseURL, c.APIKey, c.Model, c.MaxTokens, timeout)
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiClient(ctx, c.APIKey, c.Model, c.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		client = gemini
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}

	retrying := llm.NewRetryingClient(client, a.retryPolicy(), llm.WithRetryMetrics(a.metrics))
	instrumented, err := llm.NewInstrumentedLLMClient(retrying, a.telemetry, a.metrics, c.Provider, c.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to instrument llm client: %w", err)
	}
	return instrumented, nil
}

func (a *app) newSearchBackend(httpClient *http.Client) (search.Backend, error) {
	s := a.cfg.Search
	switch s.Backend {
	case config.BackendMediaWiki:
		return search.NewMediaWiki(s.APIURL, httpClient), nil
	case config.BackendDuckDuckGo:
		return search.NewDuckDuckGo(s.APIURL, httpClient), nil
	case config.BackendGoogle:
		return search.NewGoogle(s.GoogleAPIKey, s.GoogleEngineID, s.APIURL, httpClient)
	default:
		return nil, fmt.Errorf("unknown search backend %q", s.Backend)
	}
}

// newRegistry wires search and fetch behind the default tool set
func (a *app) newRegistry() (*tools.Registry, error) {
	fetchTimeout := a.cfg.GetDuration(a.cfg.Fetch.Timeout, 10*time.Second)
	httpClient := &http.Client{Timeout: fetchTimeout}

	backend, err := a.newSearchBackend(httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create search backend: %w", err)
	}
	searcher, err := search.NewClient(backend, search.Config{
		SiteFilter: a.cfg.Search.SiteFilter,
		MaxResults: a.cfg.Search.MaxResults,
		RateLimit:  a.cfg.GetDuration(a.cfg.Search.RateLimit, time.Second),
		Retry:      a.retryPolicy(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	fetcher := fetch.NewWikipediaFetcher(fetch.Config{
		APIURL:    a.cfg.Fetch.APIURL,
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   fetchTimeout,
		Retry:     a.retryPolicy(),
	})

	return tools.NewDefaultRegistry(
		tools.NewSearchTool(searcher, a.cfg.Search.MaxResults),
		tools.NewInspectTool(fetcher),
		tools.NewReadSectionTool(fetcher),
		tools.WithTelemetry(a.telemetry),
		tools.WithMetrics(a.metrics),
	)
}

func (a *app) engineConfig() (workflow.Config, error) {
	prompt, err := a.cfg.SystemPrompt()
	if err != nil {
		return workflow.Config{}, err
	}
	agent := a.cfg.Agent
	return workflow.Config{
		MaxSteps:         agent.MaxSteps,
		HistoryWindow:    agent.HistoryWindow,
		RepeatThreshold:  agent.RepeatThreshold,
		ObservationLimit: agent.ObservationLimit,
		Model:            a.cfg.LLM.Model,
		Temperature:      a.cfg.LLM.Temperature,
		MaxTokens:        a.cfg.LLM.MaxTokens,
		SystemPrompt:     prompt,
		Session: &state.Config{
			SnippetLimit: agent.SnippetLimit,
			SeedPriority: agent.SeedPriority,
		},
	}, nil
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
