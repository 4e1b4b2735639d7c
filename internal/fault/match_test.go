package fault

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/oriys/rift/internal/domain"
)

func mustCompile(t *testing.T, rule domain.Rule) *CompiledRule {
	t.Helper()
	cr, err := Compile(rule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return cr
}

func TestMatchFirstRuleWins(t *testing.T) {
	rules := []*CompiledRule{
		mustCompile(t, domain.Rule{ID: "r1", Match: domain.MatchConfig{Path: domain.PathMatch{Prefix: "/orders"}}}),
		mustCompile(t, domain.Rule{ID: "r2", Match: domain.MatchConfig{}}),
	}
	req := &domain.Request{Method: "GET", Path: "/orders/1", Headers: http.Header{}, Query: url.Values{}}

	matched := Match(rules, req, "")
	if matched == nil || matched.Rule.ID != "r1" {
		t.Fatalf("expected r1 to match first, got %+v", matched)
	}
}

func TestMatchRespectsUpstreamRestriction(t *testing.T) {
	rules := []*CompiledRule{
		mustCompile(t, domain.Rule{ID: "r1", Match: domain.MatchConfig{Upstream: "billing"}}),
	}
	req := &domain.Request{Method: "GET", Path: "/", Headers: http.Header{}, Query: url.Values{}}

	if m := Match(rules, req, "inventory"); m != nil {
		t.Fatalf("expected no match for wrong upstream, got %+v", m)
	}
	if m := Match(rules, req, "billing"); m == nil {
		t.Fatal("expected match for correct upstream")
	}
}

func TestMatchPathRegex(t *testing.T) {
	rules := []*CompiledRule{
		mustCompile(t, domain.Rule{ID: "r1", Match: domain.MatchConfig{Path: domain.PathMatch{Regex: `^/widgets/\d+$`}}}),
	}
	req := &domain.Request{Method: "GET", Path: "/widgets/42", Headers: http.Header{}, Query: url.Values{}}
	if Match(rules, req, "") == nil {
		t.Fatal("expected regex path match")
	}
	req.Path = "/widgets/abc"
	if Match(rules, req, "") != nil {
		t.Fatal("expected no match for non-numeric id")
	}
}

func TestMatchHeadersCaseInsensitiveByDefault(t *testing.T) {
	rules := []*CompiledRule{
		mustCompile(t, domain.Rule{ID: "r1", Match: domain.MatchConfig{Headers: map[string]string{"X-Test": "yes"}}}),
	}
	req := &domain.Request{Method: "GET", Path: "/", Headers: http.Header{"x-test": {"YES"}}, Query: url.Values{}}
	if Match(rules, req, "") == nil {
		t.Fatal("expected case-insensitive header match")
	}
}

func TestDecideTCPFaultUnconditional(t *testing.T) {
	cr := mustCompile(t, domain.Rule{ID: "r1", Fault: domain.FaultConfig{
		TCPFault: domain.FaultConnectionResetByPeer,
		Error:    &domain.ErrorFault{Probability: 1, Status: 500},
	}})
	d := Decide(cr)
	if d.Kind != domain.DecisionTCP {
		t.Fatalf("expected TCP fault to take priority, got %+v", d)
	}
}

func TestDecideErrorBeforeLatency(t *testing.T) {
	cr := mustCompile(t, domain.Rule{ID: "r1", Fault: domain.FaultConfig{
		Error:   &domain.ErrorFault{Probability: 1, Status: 503},
		Latency: &domain.LatencyFault{Probability: 1, MinMs: 100, MaxMs: 100},
	}})
	d := Decide(cr)
	if d.Kind != domain.DecisionError || d.Status != 503 {
		t.Fatalf("expected error fault to take priority over latency, got %+v", d)
	}
}

func TestDecideLatencyWithinRange(t *testing.T) {
	cr := mustCompile(t, domain.Rule{ID: "r1", Fault: domain.FaultConfig{
		Latency: &domain.LatencyFault{Probability: 1, MinMs: 50, MaxMs: 60},
	}})
	for i := 0; i < 20; i++ {
		d := Decide(cr)
		if d.Kind != domain.DecisionLatency {
			t.Fatalf("expected latency decision, got %+v", d)
		}
		if d.DurationMs < 50 || d.DurationMs > 60 {
			t.Fatalf("duration %d out of [50,60] range", d.DurationMs)
		}
	}
}

func TestDecideZeroProbabilityNeverFires(t *testing.T) {
	cr := mustCompile(t, domain.Rule{ID: "r1", Fault: domain.FaultConfig{
		Error: &domain.ErrorFault{Probability: 0, Status: 500},
	}})
	if d := Decide(cr); d.Kind != domain.DecisionNone {
		t.Fatalf("expected no decision at probability 0, got %+v", d)
	}
}

func TestBuildErrorResponseMergeAndContentLength(t *testing.T) {
	fixed := map[string]string{"Content-Type": "text/plain", "X-Fixed": "a"}
	dynamic := map[string]string{"X-Fixed": "b", "Transfer-Encoding": "chunked"}

	status, headers, body := BuildErrorResponse(999, "hello", fixed, dynamic)
	if status != 500 {
		t.Fatalf("expected invalid status to fall back to 500, got %d", status)
	}
	if headers["x-fixed"] != "b" {
		t.Fatalf("expected dynamic to win on collision, got %q", headers["x-fixed"])
	}
	if _, ok := headers["transfer-encoding"]; ok {
		t.Fatal("expected transfer-encoding to be stripped")
	}
	if headers["content-length"] != "5" {
		t.Fatalf("expected content-length 5, got %q", headers["content-length"])
	}
	if headers["content-type"] != "text/plain" {
		t.Fatalf("expected fixed content-type preserved, got %q", headers["content-type"])
	}
}

func TestBuildErrorResponseDefaultsContentType(t *testing.T) {
	_, headers, _ := BuildErrorResponse(500, "{}", nil, nil)
	if headers["content-type"] != "application/json" {
		t.Fatalf("expected default content-type application/json, got %q", headers["content-type"])
	}
}
