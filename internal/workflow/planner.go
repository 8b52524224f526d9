package workflow

import (
	"fmt"
	"strings"

	"github.com/asheeshfzr/intent-agent/internal/router"
	"github.com/asheeshfzr/intent-agent/internal/session"
)

// Clarification prompts. The texts are deterministic so the same
// ambiguity always produces the same question across turns.
const (
	clarifyGeneric    = "Could you clarify what you want to do? For example: metrics for which service and time window, or a topic to search?"
	clarifyService    = "Which service should I get metrics for? (e.g., payments or orders)"
	clarifyWindow     = "What time window should I use (e.g., 5m, 1h)?"
	clarifyTargets    = "Which two services should I compare (e.g., payments vs orders)?"
	clarifyNoMetrics  = "No metrics found"
	clarifyNoDocs     = "No reliable docs found. Clarify?"
	clarifyNoTargets  = "Targets not found in table"
	clarifyAgentStuck = "I couldn't find that. Which service(s) should I use? For example: payments and orders, and a time window."
)

// Planner decides whether the state holds enough information to act, or
// whether the turn must end in a clarifying question.
type Planner struct {
	params   Params
	catalog  map[string]struct{}
	sessions session.Store
}

func NewPlanner(params Params, sessions session.Store) *Planner {
	catalog := make(map[string]struct{}, len(params.ServiceCatalog))
	for _, name := range params.ServiceCatalog {
		catalog[name] = struct{}{}
	}
	return &Planner{params: params, catalog: catalog, sessions: sessions}
}

// Plan sets ClarifyQuestion when information is missing. Policy order:
// global confidence gate first, then intent-specific completeness, then
// cross-turn continuity. The ordering keeps clarification prompts
// consistent and explainable.
func (p *Planner) Plan(st *State) {
	question := p.missingInfo(st)
	if question == "" {
		return
	}

	// Continuity: when the user was already asked a targeted question
	// and this turn is again too vague to route, repeat the stored
	// question instead of regressing to the generic one.
	if question == clarifyGeneric {
		if pending, ok := p.sessions.PendingClarification(st.UserID); ok {
			question = pending
		}
	}
	st.ClarifyQuestion = question
}

func (p *Planner) missingInfo(st *State) string {
	if st.Confidence < p.params.ConfidenceThreshold ||
		st.Intent == "" || st.Intent == router.IntentUnknown {
		return clarifyGeneric
	}

	switch st.Intent {
	case router.IntentMetricsLookup:
		svc := st.entityString("service")
		if svc == "" {
			return clarifyService
		}
		if _, known := p.catalog[svc]; !known {
			return fmt.Sprintf("I don't recognize service '%s'. Should I use one of: %s?",
				svc, strings.Join(p.params.ServiceCatalog, ", "))
		}
		if st.entityString("window") == "" {
			return clarifyWindow
		}
	case router.IntentCalcCompare:
		if len(st.entityStrings("targets")) < 2 {
			return clarifyTargets
		}
	case router.IntentKnowledgeLookup:
		// The whole query is the slot; always actionable.
	}
	return ""
}
