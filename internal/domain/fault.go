package domain

// Rule is a fault-injection rule matched against requests on the
// fault-injection proxy listener.
type Rule struct {
	ID       string       `json:"id"`
	Match    MatchConfig  `json:"match"`
	Fault    FaultConfig  `json:"fault"`
	Upstream string       `json:"upstream,omitempty"` // not consulted by fault.Match; Match.Upstream is the restriction it applies
}

// ScriptRule pairs a MatchConfig with a script source compiled once and
// cached for the process lifetime.
type ScriptRule struct {
	ID       string      `json:"id"`
	Match    MatchConfig `json:"match"`
	Engine   string      `json:"engine"` // rhai, lua, javascript/js
	Script   string      `json:"script"`
	Upstream string      `json:"upstream,omitempty"`
}

// MatchConfig restricts a Rule/ScriptRule to a subset of requests.
type MatchConfig struct {
	Methods       []string            `json:"methods,omitempty"`
	Path          PathMatch           `json:"path,omitempty"`
	Headers       map[string]string   `json:"headers,omitempty"`
	Query         map[string]string   `json:"query,omitempty"`
	Body          *BodyMatch          `json:"body,omitempty"`
	CaseSensitive bool                `json:"caseSensitive,omitempty"`
	Upstream      string              `json:"upstream,omitempty"`
}

// PathMatch supports prefix, exact, or regex matching on the request path.
type PathMatch struct {
	Exact  string `json:"exact,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Regex  string `json:"regex,omitempty"`
}

// Empty reports whether no path constraint was configured (matches all).
func (p PathMatch) Empty() bool {
	return p.Exact == "" && p.Prefix == "" && p.Regex == ""
}

// BodyMatch restricts on request body content. The raw body is matched as
// a whole; no JSONPath/XPath selector is applied first.
type BodyMatch struct {
	Contains string `json:"contains,omitempty"`
	Equals   string `json:"equals,omitempty"`
	Matches  string `json:"matches,omitempty"`
}

// FaultConfig is the union of fault kinds a Rule may specify. Priority on
// evaluation is TCP > error > latency.
type FaultConfig struct {
	Latency  *LatencyFault  `json:"latency,omitempty"`
	Error    *ErrorFault    `json:"error,omitempty"`
	TCPFault TCPFaultKind   `json:"tcpFault,omitempty"`
}

// LatencyFault injects a uniformly-random delay in [MinMs, MaxMs] with the
// given Probability gate.
type LatencyFault struct {
	Probability float64 `json:"probability"`
	MinMs       int     `json:"minMs"`
	MaxMs       int     `json:"maxMs"`
}

// ErrorFault synthesizes an error response with the given Probability gate.
type ErrorFault struct {
	Probability float64                `json:"probability"`
	Status      int                    `json:"status"`
	Body        string                 `json:"body,omitempty"`
	Headers     map[string]string      `json:"headers,omitempty"`
	Behaviors   *Behaviors             `json:"behaviors,omitempty"`
}

// DecisionKind enumerates the outcomes of a fault decision.
type DecisionKind int

const (
	DecisionNone DecisionKind = iota
	DecisionLatency
	DecisionError
	DecisionTCP
)

// FaultDecision is the outcome of evaluating a FaultConfig or a script's
// should_inject result.
type FaultDecision struct {
	Kind       DecisionKind
	RuleID     string
	DurationMs int
	Status     int
	Body       string
	Headers    map[string]string
	Behaviors  *Behaviors
	TCPFault   TCPFaultKind
	Cacheable  bool
}

// None reports whether this decision injects nothing.
func (d FaultDecision) None() bool { return d.Kind == DecisionNone }
