package fault

import (
	"math/rand"

	"github.com/oriys/rift/internal/domain"
)

// Decide evaluates cr's FaultConfig and returns the resulting decision.
// Priority is unconditional tcp_fault > probability-gated error >
// probability-gated latency, matching the declared evaluation order.
func Decide(cr *CompiledRule) domain.FaultDecision {
	cfg := cr.Rule.Fault

	if cfg.TCPFault != "" {
		return domain.FaultDecision{Kind: domain.DecisionTCP, RuleID: cr.Rule.ID, TCPFault: cfg.TCPFault}
	}

	if cfg.Error != nil && probabilityHit(cfg.Error.Probability) {
		return domain.FaultDecision{
			Kind:      domain.DecisionError,
			RuleID:    cr.Rule.ID,
			Status:    cfg.Error.Status,
			Body:      cfg.Error.Body,
			Headers:   cfg.Error.Headers,
			Behaviors: cfg.Error.Behaviors,
		}
	}

	if cfg.Latency != nil && probabilityHit(cfg.Latency.Probability) {
		return domain.FaultDecision{
			Kind:       domain.DecisionLatency,
			RuleID:     cr.Rule.ID,
			DurationMs: uniformInt(cfg.Latency.MinMs, cfg.Latency.MaxMs),
		}
	}

	return domain.FaultDecision{Kind: domain.DecisionNone}
}

func probabilityHit(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rand.Float64() < p
}

func uniformInt(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}
