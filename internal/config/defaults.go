package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.RateLimitPerMinute = 120

	// Workflow defaults
	cfg.Workflow.Mode = "pipeline"
	cfg.Workflow.ConfidenceThreshold = 0.6
	cfg.Workflow.KnowledgeScoreMin = 0.4
	cfg.Workflow.P95ThresholdMs = 500
	cfg.Workflow.AgentMaxIterations = 6
	cfg.Workflow.ServiceCatalog = []string{"payments", "orders", "loans"}

	// Tools defaults
	cfg.Tools.MetricsBaseURL = "http://localhost:9000"
	cfg.Tools.DocsBaseURL = "http://localhost:9010"
	cfg.Tools.VectorBaseURL = "http://localhost:6333"
	cfg.Tools.VectorCollection = "ops_docs"
	cfg.Tools.HTTPTimeoutSeconds = 5
	cfg.Tools.Retries = 2
	cfg.Tools.BackoffBaseMs = 200
	cfg.Tools.BackoffMaxMs = 5000
	cfg.Tools.FixturePath = ""

	// LLM defaults: disabled until an endpoint is configured; the keyword
	// fallback classifier handles routing on its own.
	cfg.LLM.Enabled = false
	cfg.LLM.BaseURL = "http://localhost:11434"
	cfg.LLM.Model = "llama3"
	cfg.LLM.MaxTokens = 128
	cfg.LLM.TimeoutSeconds = 10

	// Cache defaults
	cfg.Cache.Enabled = true
	cfg.Cache.TTLSeconds = 30

	// State defaults: idle clarification slots and completed traces are
	// evicted after an hour.
	cfg.State.SessionTTLSeconds = 3600
	cfg.State.TraceTTLSeconds = 3600
	cfg.State.SweepIntervalSeconds = 60

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// Provenance defaults
	cfg.Provenance.Path = "logs/provenance.log"
	cfg.Provenance.MaxSizeMB = 100
	cfg.Provenance.MaxBackups = 10
	cfg.Provenance.MaxAgeDays = 30
	cfg.Provenance.Compress = true

	return cfg
}
