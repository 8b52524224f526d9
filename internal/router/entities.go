package router

import (
	"regexp"
	"strings"
)

var (
	// "for payments", "for service payments"
	serviceRe = regexp.MustCompile(`\bfor (?:service )?([a-z0-9_-]+)`)
	// "last 15m", "last 30 min", "last 90s"
	lastWindowRe = regexp.MustCompile(`\blast (\d+)\s*(m|min|s)\b`)
	// bare "5m", "1h", "7d"
	bareWindowRe = regexp.MustCompile(`\b(\d+)(m|h|d)\b`)
	// "payments vs orders"
	vsRe = regexp.MustCompile(`\b([a-z0-9_-]+)\s+vs\.?\s+([a-z0-9_-]+)\b`)
)

// EntityExtractor pulls service names, time windows, and comparison
// targets out of a query with regexes and a catalog scan. It is
// intentionally shallow; the classifier may override anything it finds.
type EntityExtractor struct {
	catalog []string
}

func NewEntityExtractor(catalog []string) *EntityExtractor {
	return &EntityExtractor{catalog: catalog}
}

// Extract returns only keys it actually found.
func (e *EntityExtractor) Extract(query string) map[string]any {
	q := strings.ToLower(query)
	out := map[string]any{}

	if svc := e.extractService(q); svc != "" {
		out["service"] = svc
	}
	if w := extractWindow(q); w != "" {
		out["window"] = w
	}
	if targets := e.extractTargets(q); len(targets) > 0 {
		out["targets"] = targets
	}
	return out
}

func (e *EntityExtractor) extractService(q string) string {
	if m := serviceRe.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	for _, name := range e.catalog {
		if strings.Contains(q, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}

func extractWindow(q string) string {
	if m := lastWindowRe.FindStringSubmatch(q); m != nil {
		unit := m[2]
		if unit == "min" {
			unit = "m"
		}
		return m[1] + unit
	}
	if m := bareWindowRe.FindStringSubmatch(q); m != nil {
		return m[1] + m[2]
	}
	return ""
}

// extractTargets returns comparison targets in query order. Catalog
// members found in the query win; an explicit "X vs Y" pair is the
// fallback when fewer than two catalog names appear.
func (e *EntityExtractor) extractTargets(q string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, name := range e.catalog {
		if i := strings.Index(q, strings.ToLower(name)); i >= 0 {
			hits = append(hits, hit{name: name, pos: i})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j-1].pos > hits[j].pos; j-- {
			hits[j-1], hits[j] = hits[j], hits[j-1]
		}
	}
	if len(hits) >= 2 {
		targets := make([]string, 0, len(hits))
		for _, h := range hits {
			targets = append(targets, h.name)
		}
		return targets
	}
	if m := vsRe.FindStringSubmatch(q); m != nil {
		return []string{m[1], m[2]}
	}
	return nil
}
