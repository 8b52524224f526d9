package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: fmt.Sprintf("rate limit cannot be negative (0 disables), got %d", c.Server.RateLimitPerMinute),
		})
	}

	// Workflow
	switch c.Workflow.Mode {
	case "pipeline", "agent":
	default:
		errs = append(errs, &ValidationError{
			Field:   "workflow.mode",
			Message: fmt.Sprintf("mode must be pipeline or agent, got %q", c.Workflow.Mode),
		})
	}
	if c.Workflow.ConfidenceThreshold < 0 || c.Workflow.ConfidenceThreshold > 1 {
		errs = append(errs, &ValidationError{
			Field:   "workflow.confidence_threshold",
			Message: fmt.Sprintf("threshold must be in [0,1], got %v", c.Workflow.ConfidenceThreshold),
		})
	}
	if c.Workflow.KnowledgeScoreMin < 0 || c.Workflow.KnowledgeScoreMin > 1 {
		errs = append(errs, &ValidationError{
			Field:   "workflow.knowledge_score_min",
			Message: fmt.Sprintf("score must be in [0,1], got %v", c.Workflow.KnowledgeScoreMin),
		})
	}
	if c.Workflow.P95ThresholdMs <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "workflow.p95_threshold_ms",
			Message: fmt.Sprintf("threshold must be positive, got %d", c.Workflow.P95ThresholdMs),
		})
	}
	if c.Workflow.AgentMaxIterations < 1 {
		errs = append(errs, &ValidationError{
			Field:   "workflow.agent_max_iterations",
			Message: fmt.Sprintf("must allow at least one iteration, got %d", c.Workflow.AgentMaxIterations),
		})
	}
	if len(c.Workflow.ServiceCatalog) == 0 {
		errs = append(errs, &ValidationError{
			Field:   "workflow.service_catalog",
			Message: "service catalog cannot be empty",
		})
	}

	// Tools
	for field, base := range map[string]string{
		"tools.metrics_base_url": c.Tools.MetricsBaseURL,
		"tools.docs_base_url":    c.Tools.DocsBaseURL,
		"tools.vector_base_url":  c.Tools.VectorBaseURL,
	} {
		if base == "" {
			errs = append(errs, &ValidationError{Field: field, Message: "base URL is required"})
			continue
		}
		if _, err := url.Parse(base); err != nil {
			errs = append(errs, &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid URL %q: %v", base, err),
			})
		}
	}
	if c.Tools.HTTPTimeoutSeconds <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "tools.http_timeout_seconds",
			Message: fmt.Sprintf("timeout must be positive, got %d", c.Tools.HTTPTimeoutSeconds),
		})
	}
	if c.Tools.Retries < 0 {
		errs = append(errs, &ValidationError{
			Field:   "tools.retries",
			Message: fmt.Sprintf("retries cannot be negative, got %d", c.Tools.Retries),
		})
	}
	if c.Tools.BackoffBaseMs <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "tools.backoff_base_ms",
			Message: fmt.Sprintf("backoff base must be positive, got %d", c.Tools.BackoffBaseMs),
		})
	}

	// LLM
	if c.LLM.Enabled && c.LLM.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.base_url",
			Message: "base_url is required when llm.enabled is true",
		})
	}

	// State
	if c.State.SessionTTLSeconds < 0 || c.State.TraceTTLSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "state",
			Message: "TTLs cannot be negative (0 disables eviction)",
		})
	}
	if c.State.SweepIntervalSeconds <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "state.sweep_interval_seconds",
			Message: fmt.Sprintf("sweep interval must be positive, got %d", c.State.SweepIntervalSeconds),
		})
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("level must be debug, info, warn, or error, got %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("format must be json or text, got %q", c.Logging.Format),
		})
	}

	return errs
}
