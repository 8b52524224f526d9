package config

import "context"

// Package config provides configuration management for the intent-agent
// service.
//
// Responsibilities:
//   - Load configuration from YAML files and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration change notification (file watch)
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (INTENT_AGENT_* prefix)
//   2. YAML config file (default: /etc/intent-agent/config.yaml)
//   3. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Server
//      - host/port: HTTP listen address (default 0.0.0.0:8080)
//
//   2. Workflow
//      - mode: "pipeline" (deterministic) or "agent" (iterative tool loop)
//      - confidence_threshold: below this the router answer is a clarification
//      - knowledge_score_min: minimum score to accept a knowledge hit
//      - p95_threshold_ms: latency threshold for the above/ok verdict
//      - agent_max_iterations: tool-call budget in agent mode
//      - service_catalog: known service names for slot validation
//
//   3. Tools
//      - metrics/docs/vector base URLs, HTTP timeout
//      - retries / backoff_base_ms / backoff_max_ms: broker retry policy
//      - fixture_path: optional p95 seed fixture for the SQL utility tool
//
//   4. LLM
//      - enabled, base_url, model, max_tokens, timeout for the primary
//        classifier endpoint; when disabled or unreachable the keyword
//        fallback classifier runs instead
//
//   5. Cache
//      - enabled, ttl_seconds: broker-side tool result cache
//
//   6. State
//      - session_ttl_seconds / trace_ttl_seconds: eviction of idle
//        per-user clarification slots and completed traces (0 = keep forever)
//      - sweep_interval_seconds: janitor period
//
//   7. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - format: "json" | "text"
//
//   8. Provenance
//      - path + rotation settings for the append-only trace file sink

// Config contains all configuration fields.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int

		// RateLimitPerMinute bounds query requests per client per
		// minute. Zero disables rate limiting.
		RateLimitPerMinute int
	}

	// Workflow configuration
	Workflow struct {
		Mode                string
		ConfidenceThreshold float64
		KnowledgeScoreMin   float64
		P95ThresholdMs      int
		AgentMaxIterations  int
		ServiceCatalog      []string
	}

	// Tools configuration
	Tools struct {
		MetricsBaseURL     string
		DocsBaseURL        string
		VectorBaseURL      string
		VectorCollection   string
		HTTPTimeoutSeconds int
		Retries            int
		BackoffBaseMs      int
		BackoffMaxMs       int
		FixturePath        string
	}

	// LLM classifier configuration
	LLM struct {
		Enabled        bool
		BaseURL        string
		Model          string
		MaxTokens      int
		TimeoutSeconds int
	}

	// Cache configuration
	Cache struct {
		Enabled    bool
		TTLSeconds int
	}

	// State lifecycle configuration
	State struct {
		SessionTTLSeconds    int
		TraceTTLSeconds      int
		SweepIntervalSeconds int
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Provenance file sink configuration
	Provenance struct {
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}
}

// Manager defines the interface for configuration access.
type Manager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewManager creates a new configuration manager for the given file path.
func NewManager(configPath string) (Manager, error) {
	mgr := &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewManagerWithDefaults creates a config manager with the default config path.
func NewManagerWithDefaults() (Manager, error) {
	return NewManager("/etc/intent-agent/config.yaml")
}
