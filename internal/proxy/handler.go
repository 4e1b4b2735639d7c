package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/oriys/rift/internal/behavior"
	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/fault"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/metrics"
	"github.com/oriys/rift/internal/observability"
	"github.com/oriys/rift/internal/recording"
	"github.com/oriys/rift/internal/scriptpool"
)

// listenerLabel is the metrics/logging label for the fault-injection
// proxy, parallel to an imposter's port-as-string label.
const listenerLabel = "fault-injection-proxy"

// Handler implements the composite fault-injection pipeline: route
// selection, rule/script fault matching against the decision cache, fault
// application, and upstream forwarding with record/replay.
type Handler struct {
	// rulesMu guards router/rules/scriptRules, which Reload swaps out as a
	// unit on a config reload. Every other field is set once at
	// construction and never mutated.
	rulesMu     sync.RWMutex
	router      *Router
	rules       []*fault.CompiledRule
	scriptRules []*compiledScriptRule

	pool          *scriptpool.Pool
	decisionCache *scriptpool.DecisionCache
	flowStore     flowstore.Store

	store               *recording.Store
	predicateGenerators []domain.PredicateGenerator

	httpClient *http.Client
}

// ruleSet is the unit Reload swaps atomically: a router plus its compiled
// fault and script rules, all built from the same config snapshot.
type ruleSet struct {
	router      *Router
	rules       []*fault.CompiledRule
	scriptRules []*compiledScriptRule
}

func compileRuleSet(cfg *config.Config) (*ruleSet, error) {
	router, err := NewRouter(cfg)
	if err != nil {
		return nil, err
	}

	rules := make([]*fault.CompiledRule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		cr, err := fault.Compile(rule)
		if err != nil {
			return nil, fmt.Errorf("proxy: %w", err)
		}
		rules = append(rules, cr)
	}

	scriptRules, err := compileScriptRules(cfg.ScriptRules)
	if err != nil {
		return nil, err
	}

	return &ruleSet{router: router, rules: rules, scriptRules: scriptRules}, nil
}

// New builds a Handler from cfg, sharing pool/flowStore/httpClient with
// the rest of the process.
func New(cfg *config.Config, pool *scriptpool.Pool, flowStore flowstore.Store, httpClient *http.Client) (*Handler, error) {
	rs, err := compileRuleSet(cfg)
	if err != nil {
		return nil, err
	}

	var cache *scriptpool.DecisionCache
	if cfg.DecisionCache.Enabled {
		cache = scriptpool.NewDecisionCache(cfg.DecisionCache.MaxSize, time.Duration(cfg.DecisionCache.TTLSeconds)*time.Second)
	}

	mode := domain.ProxyMode(cfg.Recording.Mode)
	if mode == "" {
		mode = domain.ProxyTransparent
	}

	return &Handler{
		router:              rs.router,
		rules:               rs.rules,
		scriptRules:         rs.scriptRules,
		pool:                pool,
		decisionCache:       cache,
		flowStore:           flowStore,
		store:               recording.New(mode),
		predicateGenerators: cfg.Recording.PredicateGenerators,
		httpClient:          httpClient,
	}, nil
}

// Reload recompiles the router and fault/script rule sets from cfg and
// swaps them in as a unit. In-flight requests already past rule matching
// are unaffected; everything after sees the new rules.
func (h *Handler) Reload(cfg *config.Config) error {
	rs, err := compileRuleSet(cfg)
	if err != nil {
		return err
	}
	h.rulesMu.Lock()
	h.router = rs.router
	h.rules = rs.rules
	h.scriptRules = rs.scriptRules
	h.rulesMu.Unlock()
	return nil
}

func (h *Handler) currentRuleSet() ruleSet {
	h.rulesMu.RLock()
	defer h.rulesMu.RUnlock()
	return ruleSet{router: h.router, rules: h.rules, scriptRules: h.scriptRules}
}

// Store exposes the handler's recording store (for admin savedProxyResponses
// reads/clears and periodic Save persistence).
func (h *Handler) Store() *recording.Store { return h.store }

// LoadPersistedStore replaces the handler's recording store with one
// loaded from a previously persisted JSON file at path, restoring
// recorded responses across a restart. Called once at startup before
// traffic begins; an empty path is a no-op.
func (h *Handler) LoadPersistedStore(path string) error {
	if path == "" {
		return nil
	}
	store, err := recording.Load(path)
	if err != nil {
		return err
	}
	h.store = store
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(r.Context(), "proxy.handle")
	defer span.End()

	req, err := domain.NewRequestFromHTTP(r)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"failed to read request body: %v"}`, err), http.StatusBadRequest)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read request body")
		return
	}

	rs := h.currentRuleSet()

	upstream := rs.router.Route(req)
	span.SetAttributes(attribute.String("rift.upstream", upstream), attribute.String("http.method", req.Method), attribute.String("http.path", req.Path))

	sig := recording.Signature(req, h.predicateGenerators)
	flowID := req.Headers.Get("X-Flow-Id")

	decision := domain.FaultDecision{Kind: domain.DecisionNone}
	if cr := fault.Match(rs.rules, req, upstream); cr != nil {
		decision = fault.Decide(cr)
	}

	if scriptDecision, ruleID, ok := h.evalScriptRules(ctx, rs.scriptRules, req, upstream, flowID); ok {
		converted := toFaultDecision(ruleID, scriptDecision)
		if !converted.None() {
			decision = converted
		}
	}

	if decision.Kind != domain.DecisionNone {
		metrics.Global().RecordFault(decision.RuleID, faultKindLabel(decision.Kind))
		span.SetAttributes(attribute.String("rift.fault.kind", faultKindLabel(decision.Kind)), attribute.String("rift.fault.rule_id", decision.RuleID))
	}

	ok := h.apply(ctx, w, r, req, sig, upstream, decision)
	metrics.Global().RecordRequest(listenerLabel, time.Since(start).Milliseconds(), ok)
	if !ok {
		span.SetStatus(codes.Error, "request failed")
	}
}

// evalScriptRules matches req against the configured script rules,
// consulting the decision cache before falling through to the pool. ok is
// false when no script rule matched at all (as opposed to matching and
// deciding not to inject).
func (h *Handler) evalScriptRules(ctx context.Context, scriptRules []*compiledScriptRule, req *domain.Request, upstream, flowID string) (scriptpool.Decision, string, bool) {
	sr := matchScriptRule(scriptRules, req, upstream)
	if sr == nil {
		return scriptpool.Decision{}, "", false
	}

	if h.decisionCache != nil {
		key := scriptpool.NewDecisionCacheKey(req, sr.rule.ID)
		if cached, hit := h.decisionCache.Get(key); hit {
			metrics.Global().RecordDecisionCache("hit")
			return cached, sr.rule.ID, true
		}
		metrics.Global().RecordDecisionCache("miss")
	}

	decision, err := h.pool.Submit(ctx, sr.script, req, h.flowStore, flowID)
	if err != nil {
		// QueueFull and TimedOut both fail open: no fault injected, and the
		// pool itself has already recorded the metric for the failure kind.
		logging.Op().Warn("script rule evaluation failed, failing open", "rule_id", sr.rule.ID, "error", err)
		return scriptpool.Decision{}, sr.rule.ID, true
	}

	if h.decisionCache != nil {
		key := scriptpool.NewDecisionCacheKey(req, sr.rule.ID)
		h.decisionCache.Put(key, decision)
	}
	return decision, sr.rule.ID, true
}

func faultKindLabel(k domain.DecisionKind) string {
	switch k {
	case domain.DecisionLatency:
		return "latency"
	case domain.DecisionError:
		return "error"
	case domain.DecisionTCP:
		return "tcp"
	default:
		return ""
	}
}

// apply carries out the decided fault: TCP closes the connection, Error
// synthesizes a response (sleeping first if behaviors.wait is set),
// Latency sleeps then forwards, None forwards immediately.
func (h *Handler) apply(ctx context.Context, w http.ResponseWriter, r *http.Request, req *domain.Request, sig domain.RequestSignature, upstream string, decision domain.FaultDecision) bool {
	switch decision.Kind {
	case domain.DecisionTCP:
		injectTCPFault(w, decision.TCPFault)
		return false
	case domain.DecisionError:
		behavior.ApplyWait(decision.Behaviors)
		status, headers, body := fault.BuildErrorResponse(decision.Status, decision.Body, decision.Headers, nil)
		writeErrorResponse(w, status, headers, body)
		return status < 500
	case domain.DecisionLatency:
		time.Sleep(time.Duration(decision.DurationMs) * time.Millisecond)
		return h.forward(ctx, w, r, req, sig, upstream)
	default:
		return h.forward(ctx, w, r, req, sig, upstream)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, headers map[string]string, body string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func injectTCPFault(w http.ResponseWriter, kind domain.TCPFaultKind) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	defer conn.Close()
	if kind == domain.FaultRandomDataThenClose {
		_, _ = conn.Write(randomTCPPayload(64))
	}
}
