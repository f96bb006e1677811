package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ncolesummers/wikihop/pkg/observability"
)

// Supported decision-oracle providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Supported search backends.
const (
	BackendMediaWiki  = "mediawiki"
	BackendDuckDuckGo = "duckduckgo"
	BackendGoogle     = "google"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	defaultOpenAIURL = "https://api.openai.com/v1"
)

// Config represents the complete application configuration
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Agent         AgentConfig         `yaml:"agent"`
	Retry         RetryConfig         `yaml:"retry"`
	Search        SearchConfig        `yaml:"search"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig selects and configures the decision oracle
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "ollama", "openai", "gemini"
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// AgentConfig contains control loop configuration
type AgentConfig struct {
	MaxSteps         int    `yaml:"max_steps"`
	HistoryWindow    int    `yaml:"history_window"`
	RepeatThreshold  int    `yaml:"repeat_threshold"`
	ObservationLimit int    `yaml:"observation_limit"`
	SnippetLimit     int    `yaml:"snippet_limit"`
	SeedPriority     int    `yaml:"seed_priority"`
	SystemPromptFile string `yaml:"system_prompt_file,omitempty"`
}

// RetryConfig contains the retry policy shared by external calls
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
}

// SearchConfig contains search backend configuration
type SearchConfig struct {
	Backend        string `yaml:"backend"` // "mediawiki", "duckduckgo", "google"
	SiteFilter     string `yaml:"site_filter"`
	MaxResults     int    `yaml:"max_results"`
	RateLimit      string `yaml:"rate_limit"`
	APIURL         string `yaml:"api_url,omitempty"`
	GoogleAPIKey   string `yaml:"google_api_key,omitempty"`
	GoogleEngineID string `yaml:"google_engine_id,omitempty"`
}

// FetchConfig contains article fetcher configuration
type FetchConfig struct {
	APIURL    string `yaml:"api_url"`
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// EvaluationConfig contains benchmark evaluation configuration
type EvaluationConfig struct {
	BenchmarkFile string `yaml:"benchmark_file"`
	ResultsDir    string `yaml:"results_dir"`
	SampleSize    int    `yaml:"sample_size"`
	Seed          int64  `yaml:"seed"`
	Concurrency   int    `yaml:"concurrency"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "console"
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file or returns default config.
// Environment overrides apply either way.
func LoadOrDefault(path string) *Config {
	config, err := Load(path)
	if err != nil {
		config = Default()
		config.overrideFromEnv()
		config.applyDefaults()
	}
	return config
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			BaseURL:     defaultOllamaURL,
			Model:       "llama3.2",
			Temperature: 0,
			MaxTokens:   1024,
			Timeout:     "2m",
		},
		Agent: AgentConfig{
			MaxSteps:         25,
			HistoryWindow:    5,
			RepeatThreshold:  1,
			ObservationLimit: 1000,
			SnippetLimit:     120,
			SeedPriority:     10,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "2s",
		},
		Search: SearchConfig{
			Backend:    BackendMediaWiki,
			SiteFilter: "site:wikipedia.org",
			MaxResults: 5,
			RateLimit:  "1s",
		},
		Fetch: FetchConfig{
			APIURL:    "https://en.wikipedia.org/w/api.php",
			Timeout:   "10s",
			UserAgent: "wikihop/0.1 (multi-hop question answering agent)",
		},
		Evaluation: EvaluationConfig{
			BenchmarkFile: "./data/benchmark.json",
			ResultsDir:    "./evaluation/results",
			SampleSize:    10,
			Seed:          42,
			Concurrency:   1,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      false,
				Endpoint:     "localhost:4318",
				SamplingRate: 1.0,
				Insecure:     true,
			},
			Metrics: MetricsConfig{
				Enabled: false,
				Port:    2223,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
		},
	}
}

// applyDefaults applies default values to missing fields. Temperature is
// left alone since zero is a meaningful setting.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.LLM.Provider == "" {
		c.LLM.Provider = defaults.LLM.Provider
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.BaseURL == "" {
		switch c.LLM.Provider {
		case ProviderOllama:
			c.LLM.BaseURL = defaultOllamaURL
		case ProviderOpenAI:
			c.LLM.BaseURL = defaultOpenAIURL
		}
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI:
			c.LLM.Model = "gpt-4"
		case ProviderGemini:
			c.LLM.Model = "gemini-2.0-flash"
		default:
			c.LLM.Model = defaults.LLM.Model
		}
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = defaults.LLM.Timeout
	}

	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = defaults.Agent.MaxSteps
	}
	if c.Agent.HistoryWindow == 0 {
		c.Agent.HistoryWindow = defaults.Agent.HistoryWindow
	}
	if c.Agent.RepeatThreshold == 0 {
		c.Agent.RepeatThreshold = defaults.Agent.RepeatThreshold
	}
	if c.Agent.ObservationLimit == 0 {
		c.Agent.ObservationLimit = defaults.Agent.ObservationLimit
	}
	if c.Agent.SnippetLimit == 0 {
		c.Agent.SnippetLimit = defaults.Agent.SnippetLimit
	}
	if c.Agent.SeedPriority == 0 {
		c.Agent.SeedPriority = defaults.Agent.SeedPriority
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay == "" {
		c.Retry.BaseDelay = defaults.Retry.BaseDelay
	}

	if c.Search.Backend == "" {
		c.Search.Backend = defaults.Search.Backend
	}
	c.Search.Backend = strings.ToLower(c.Search.Backend)
	if c.Search.SiteFilter == "" {
		c.Search.SiteFilter = defaults.Search.SiteFilter
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = defaults.Search.MaxResults
	}
	if c.Search.RateLimit == "" {
		c.Search.RateLimit = defaults.Search.RateLimit
	}

	if c.Fetch.APIURL == "" {
		c.Fetch.APIURL = defaults.Fetch.APIURL
	}
	if c.Fetch.Timeout == "" {
		c.Fetch.Timeout = defaults.Fetch.Timeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaults.Fetch.UserAgent
	}

	if c.Evaluation.BenchmarkFile == "" {
		c.Evaluation.BenchmarkFile = defaults.Evaluation.BenchmarkFile
	}
	if c.Evaluation.ResultsDir == "" {
		c.Evaluation.ResultsDir = defaults.Evaluation.ResultsDir
	}
	if c.Evaluation.SampleSize == 0 {
		c.Evaluation.SampleSize = defaults.Evaluation.SampleSize
	}
	if c.Evaluation.Concurrency == 0 {
		c.Evaluation.Concurrency = defaults.Evaluation.Concurrency
	}

	if c.Observability.Tracing.Endpoint == "" {
		c.Observability.Tracing.Endpoint = defaults.Observability.Tracing.Endpoint
	}
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = defaults.Observability.Tracing.SamplingRate
	}
	if c.Observability.Metrics.Port == 0 {
		c.Observability.Metrics.Port = defaults.Observability.Metrics.Port
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = defaults.Observability.Logging.Level
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = defaults.Observability.Logging.Format
	}
}

// overrideFromEnv overrides configuration from environment variables.
// Provider credentials only apply to the provider they belong to.
func (c *Config) overrideFromEnv() {
	if provider := strings.ToLower(os.Getenv("LLM_PROVIDER")); provider != "" && provider != c.LLM.Provider {
		// Endpoint and model belong to the previous provider.
		c.LLM.Provider = provider
		c.LLM.BaseURL = ""
		c.LLM.Model = ""
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
		setString(&c.LLM.APIKey, "OPENAI_API_KEY")
		setString(&c.LLM.BaseURL, "OPENAI_API_BASE")
		setString(&c.LLM.Model, "OPENAI_MODEL")
	case ProviderGemini:
		setString(&c.LLM.APIKey, "GEMINI_API_KEY")
		setString(&c.LLM.Model, "GEMINI_MODEL")
	case ProviderOllama:
		setString(&c.LLM.BaseURL, "OLLAMA_BASE_URL")
		setString(&c.LLM.Model, "OLLAMA_MODEL")
	}
	setFloat(&c.LLM.Temperature, "TEMPERATURE")

	setString(&c.Search.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&c.Search.GoogleEngineID, "GOOGLE_CSE_ID")
	// SEARCH_DELAY is given in seconds.
	if raw := os.Getenv("SEARCH_DELAY"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs >= 0 {
			c.Search.RateLimit = time.Duration(secs * float64(time.Second)).String()
		} else {
			warnInvalidEnv("SEARCH_DELAY", raw)
		}
	}
	setInt(&c.Search.MaxResults, "MAX_SEARCH_RESULTS")

	setInt(&c.Agent.MaxSteps, "MAX_STEPS")
	setInt(&c.Retry.MaxAttempts, "MAX_RETRIES")
	setInt(&c.Evaluation.SampleSize, "SAMPLE_SIZE")
	if raw := os.Getenv("RANDOM_SEED"); raw != "" {
		if seed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.Evaluation.Seed = seed
		} else {
			warnInvalidEnv("RANDOM_SEED", raw)
		}
	}

	setString(&c.Observability.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		warnInvalidEnv(key, raw)
		return
	}
	*dst = v
}

func setFloat(dst *float64, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		warnInvalidEnv(key, raw)
		return
	}
	*dst = v
}

func warnInvalidEnv(key, value string) {
	observability.NewStructuredLogger("config").Warn(context.Background(), "Ignoring invalid environment value", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

// validate validates the configuration
func (c *Config) validate() error {
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm base_url is required for provider %s", c.LLM.Provider)
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2")
	}

	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent max_steps must be at least 1")
	}
	if c.Agent.RepeatThreshold < 1 {
		return fmt.Errorf("agent repeat_threshold must be at least 1")
	}
	if c.Agent.HistoryWindow < 0 {
		return fmt.Errorf("agent history_window must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}

	switch c.Search.Backend {
	case BackendMediaWiki, BackendDuckDuckGo:
	case BackendGoogle:
		if c.Search.GoogleAPIKey == "" || c.Search.GoogleEngineID == "" {
			return fmt.Errorf("google search requires google_api_key and google_engine_id")
		}
	default:
		return fmt.Errorf("unknown search backend %q", c.Search.Backend)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search max_results must be at least 1")
	}

	if c.Evaluation.Concurrency < 1 {
		return fmt.Errorf("evaluation concurrency must be at least 1")
	}
	if c.Observability.Metrics.Enabled && (c.Observability.Metrics.Port < 1 || c.Observability.Metrics.Port > 65535) {
		return fmt.Errorf("metrics port must be between 1 and 65535")
	}

	durations := map[string]string{
		"llm timeout":       c.LLM.Timeout,
		"retry base_delay":  c.Retry.BaseDelay,
		"search rate_limit": c.Search.RateLimit,
		"fetch timeout":     c.Fetch.Timeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDuration parses a duration string from config. An unparsable value
// yields fallback.
func (c *Config) GetDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// SystemPrompt reads the configured prompt override. An unset file yields
// the empty string, which selects the built-in prompt.
func (c *Config) SystemPrompt() (string, error) {
	if c.Agent.SystemPromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Agent.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	return string(data), nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "production" || env == "prod"
}
