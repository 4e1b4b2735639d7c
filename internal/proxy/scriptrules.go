package proxy

import (
	"fmt"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/fault"
	"github.com/oriys/rift/internal/scriptpool"
)

// compiledScriptRule pairs a ScriptRule's compiled script with a compiled
// matcher for its MatchConfig, built from a synthetic fault.Rule so the
// proxy handler can reuse fault.Match's matching logic instead of
// duplicating it for script rules.
type compiledScriptRule struct {
	rule    domain.ScriptRule
	script  scriptpool.Compiled
	matcher *fault.CompiledRule
}

func compileScriptRules(rules []domain.ScriptRule) ([]*compiledScriptRule, error) {
	out := make([]*compiledScriptRule, 0, len(rules))
	for _, sr := range rules {
		script, err := scriptpool.Compile(sr.Engine, sr.Script)
		if err != nil {
			return nil, fmt.Errorf("proxy: script rule %s: %w", sr.ID, err)
		}
		matcher, err := fault.Compile(domain.Rule{ID: sr.ID, Match: sr.Match, Upstream: sr.Upstream})
		if err != nil {
			return nil, fmt.Errorf("proxy: script rule %s: %w", sr.ID, err)
		}
		out = append(out, &compiledScriptRule{rule: sr, script: script, matcher: matcher})
	}
	return out, nil
}

// matchScriptRule returns the first script rule matching req/upstream,
// first-match-wins over declaration order, mirroring fault.Match.
func matchScriptRule(rules []*compiledScriptRule, req *domain.Request, upstream string) *compiledScriptRule {
	for _, r := range rules {
		if fault.Match([]*fault.CompiledRule{r.matcher}, req, upstream) != nil {
			return r
		}
	}
	return nil
}

// toFaultDecision converts a script's should_inject Decision into the
// same domain.FaultDecision shape rule decisions produce, so applying the
// decision has one code path regardless of which source won.
func toFaultDecision(ruleID string, d scriptpool.Decision) domain.FaultDecision {
	if !d.Inject {
		return domain.FaultDecision{Kind: domain.DecisionNone}
	}
	switch d.Fault {
	case "error":
		return domain.FaultDecision{
			Kind:    domain.DecisionError,
			RuleID:  ruleID,
			Status:  d.Status,
			Body:    d.Body,
			Headers: d.Headers,
		}
	case "latency":
		return domain.FaultDecision{
			Kind:       domain.DecisionLatency,
			RuleID:     ruleID,
			DurationMs: d.DurationMs,
		}
	default:
		return domain.FaultDecision{Kind: domain.DecisionNone}
	}
}
