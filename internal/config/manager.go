package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("INTENT_AGENT")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// The config file is optional; defaults plus env vars are a complete
	// configuration on their own.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No file - use defaults
		} else if os.IsNotExist(err) {
			// No file - use defaults
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		select {
		case m.watchChan <- *m.config:
		default:
			// Channel full, skip this update
		}
	})

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	return nil
}

// setDefaults sets default values in viper.
func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	// Server defaults
	m.viper.SetDefault("server.host", defaults.Server.Host)
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.rate_limit_per_minute", defaults.Server.RateLimitPerMinute)

	// Workflow defaults
	m.viper.SetDefault("workflow.mode", defaults.Workflow.Mode)
	m.viper.SetDefault("workflow.confidence_threshold", defaults.Workflow.ConfidenceThreshold)
	m.viper.SetDefault("workflow.knowledge_score_min", defaults.Workflow.KnowledgeScoreMin)
	m.viper.SetDefault("workflow.p95_threshold_ms", defaults.Workflow.P95ThresholdMs)
	m.viper.SetDefault("workflow.agent_max_iterations", defaults.Workflow.AgentMaxIterations)
	m.viper.SetDefault("workflow.service_catalog", defaults.Workflow.ServiceCatalog)

	// Tools defaults
	m.viper.SetDefault("tools.metrics_base_url", defaults.Tools.MetricsBaseURL)
	m.viper.SetDefault("tools.docs_base_url", defaults.Tools.DocsBaseURL)
	m.viper.SetDefault("tools.vector_base_url", defaults.Tools.VectorBaseURL)
	m.viper.SetDefault("tools.vector_collection", defaults.Tools.VectorCollection)
	m.viper.SetDefault("tools.http_timeout_seconds", defaults.Tools.HTTPTimeoutSeconds)
	m.viper.SetDefault("tools.retries", defaults.Tools.Retries)
	m.viper.SetDefault("tools.backoff_base_ms", defaults.Tools.BackoffBaseMs)
	m.viper.SetDefault("tools.backoff_max_ms", defaults.Tools.BackoffMaxMs)
	m.viper.SetDefault("tools.fixture_path", defaults.Tools.FixturePath)

	// LLM defaults
	m.viper.SetDefault("llm.enabled", defaults.LLM.Enabled)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)
	m.viper.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	m.viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)

	// Cache defaults
	m.viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	m.viper.SetDefault("cache.ttl_seconds", defaults.Cache.TTLSeconds)

	// State defaults
	m.viper.SetDefault("state.session_ttl_seconds", defaults.State.SessionTTLSeconds)
	m.viper.SetDefault("state.trace_ttl_seconds", defaults.State.TraceTTLSeconds)
	m.viper.SetDefault("state.sweep_interval_seconds", defaults.State.SweepIntervalSeconds)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)

	// Provenance defaults
	m.viper.SetDefault("provenance.path", defaults.Provenance.Path)
	m.viper.SetDefault("provenance.max_size_mb", defaults.Provenance.MaxSizeMB)
	m.viper.SetDefault("provenance.max_backups", defaults.Provenance.MaxBackups)
	m.viper.SetDefault("provenance.max_age_days", defaults.Provenance.MaxAgeDays)
	m.viper.SetDefault("provenance.compress", defaults.Provenance.Compress)
}

// unmarshalConfig unmarshals viper config into the Config struct.
func (m *viperManager) unmarshalConfig() error {
	cfg := &Config{}

	// Server
	cfg.Server.Host = m.viper.GetString("server.host")
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.RateLimitPerMinute = m.viper.GetInt("server.rate_limit_per_minute")

	// Workflow
	cfg.Workflow.Mode = m.viper.GetString("workflow.mode")
	cfg.Workflow.ConfidenceThreshold = m.viper.GetFloat64("workflow.confidence_threshold")
	cfg.Workflow.KnowledgeScoreMin = m.viper.GetFloat64("workflow.knowledge_score_min")
	cfg.Workflow.P95ThresholdMs = m.viper.GetInt("workflow.p95_threshold_ms")
	cfg.Workflow.AgentMaxIterations = m.viper.GetInt("workflow.agent_max_iterations")
	cfg.Workflow.ServiceCatalog = m.viper.GetStringSlice("workflow.service_catalog")

	// Tools
	cfg.Tools.MetricsBaseURL = m.viper.GetString("tools.metrics_base_url")
	cfg.Tools.DocsBaseURL = m.viper.GetString("tools.docs_base_url")
	cfg.Tools.VectorBaseURL = m.viper.GetString("tools.vector_base_url")
	cfg.Tools.VectorCollection = m.viper.GetString("tools.vector_collection")
	cfg.Tools.HTTPTimeoutSeconds = m.viper.GetInt("tools.http_timeout_seconds")
	cfg.Tools.Retries = m.viper.GetInt("tools.retries")
	cfg.Tools.BackoffBaseMs = m.viper.GetInt("tools.backoff_base_ms")
	cfg.Tools.BackoffMaxMs = m.viper.GetInt("tools.backoff_max_ms")
	cfg.Tools.FixturePath = m.viper.GetString("tools.fixture_path")

	// LLM
	cfg.LLM.Enabled = m.viper.GetBool("llm.enabled")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")
	cfg.LLM.Model = m.viper.GetString("llm.model")
	cfg.LLM.MaxTokens = m.viper.GetInt("llm.max_tokens")
	cfg.LLM.TimeoutSeconds = m.viper.GetInt("llm.timeout_seconds")

	// Cache
	cfg.Cache.Enabled = m.viper.GetBool("cache.enabled")
	cfg.Cache.TTLSeconds = m.viper.GetInt("cache.ttl_seconds")

	// State
	cfg.State.SessionTTLSeconds = m.viper.GetInt("state.session_ttl_seconds")
	cfg.State.TraceTTLSeconds = m.viper.GetInt("state.trace_ttl_seconds")
	cfg.State.SweepIntervalSeconds = m.viper.GetInt("state.sweep_interval_seconds")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")

	// Provenance
	cfg.Provenance.Path = m.viper.GetString("provenance.path")
	cfg.Provenance.MaxSizeMB = m.viper.GetInt("provenance.max_size_mb")
	cfg.Provenance.MaxBackups = m.viper.GetInt("provenance.max_backups")
	cfg.Provenance.MaxAgeDays = m.viper.GetInt("provenance.max_age_days")
	cfg.Provenance.Compress = m.viper.GetBool("provenance.compress")

	m.config = cfg
	return nil
}
