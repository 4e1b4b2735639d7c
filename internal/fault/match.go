// Package fault implements the fault-injection rule matcher and decision
// engine behind the proxy listener: compiling MatchConfig into a fast
// matcher, deciding which fault (if any) a matched rule injects, and
// constructing the synthesized error response.
package fault

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oriys/rift/internal/domain"
)

// CompiledRule is a Rule with its path regex and body matcher pre-compiled
// once at registration time, so the hot matching path never compiles a
// regex.
type CompiledRule struct {
	Rule       domain.Rule
	pathRegex  *regexp.Regexp
	bodyRegex  *regexp.Regexp
}

// Compile validates and pre-compiles rule's regex fields.
func Compile(rule domain.Rule) (*CompiledRule, error) {
	cr := &CompiledRule{Rule: rule}
	if rule.Match.Path.Regex != "" {
		re, err := regexp.Compile(rule.Match.Path.Regex)
		if err != nil {
			return nil, fmt.Errorf("fault: rule %s: compile path regex: %w", rule.ID, err)
		}
		cr.pathRegex = re
	}
	if rule.Match.Body != nil && rule.Match.Body.Matches != "" {
		re, err := regexp.Compile(rule.Match.Body.Matches)
		if err != nil {
			return nil, fmt.Errorf("fault: rule %s: compile body regex: %w", rule.ID, err)
		}
		cr.bodyRegex = re
	}
	return cr, nil
}

// Match returns the first rule in rules whose MatchConfig matches req and
// whose upstream restriction (if any) equals upstream, first-match-wins
// over declaration order.
func Match(rules []*CompiledRule, req *domain.Request, upstream string) *CompiledRule {
	for _, cr := range rules {
		if cr.matches(req, upstream) {
			return cr
		}
	}
	return nil
}

func (cr *CompiledRule) matches(req *domain.Request, upstream string) bool {
	m := cr.Rule.Match
	if m.Upstream != "" && m.Upstream != upstream {
		return false
	}
	if len(m.Methods) > 0 && !containsFold(m.Methods, req.Method, m.CaseSensitive) {
		return false
	}
	if !cr.matchesPath(req.Path, m) {
		return false
	}
	if !matchesHeaders(req.Headers, m.Headers, m.CaseSensitive) {
		return false
	}
	if !matchesQuery(req.Query, m.Query, m.CaseSensitive) {
		return false
	}
	if !cr.matchesBody(req.Body, m) {
		return false
	}
	return true
}

func (cr *CompiledRule) matchesPath(path string, m domain.MatchConfig) bool {
	if m.Path.Empty() {
		return true
	}
	if m.Path.Exact != "" {
		return compareFold(path, m.Path.Exact, m.CaseSensitive)
	}
	if m.Path.Prefix != "" {
		if m.CaseSensitive {
			return strings.HasPrefix(path, m.Path.Prefix)
		}
		return strings.HasPrefix(strings.ToLower(path), strings.ToLower(m.Path.Prefix))
	}
	if cr.pathRegex != nil {
		return cr.pathRegex.MatchString(path)
	}
	return true
}

func (cr *CompiledRule) matchesBody(body string, m domain.MatchConfig) bool {
	if m.Body == nil {
		return true
	}
	actual := body
	if !m.CaseSensitive {
		actual = strings.ToLower(actual)
	}
	if m.Body.Contains != "" {
		needle := m.Body.Contains
		if !m.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		if !strings.Contains(actual, needle) {
			return false
		}
	}
	if m.Body.Equals != "" {
		want := m.Body.Equals
		if !m.CaseSensitive {
			want = strings.ToLower(want)
		}
		if actual != want {
			return false
		}
	}
	if cr.bodyRegex != nil && !cr.bodyRegex.MatchString(body) {
		return false
	}
	return true
}

func matchesHeaders(actual map[string][]string, want map[string]string, caseSensitive bool) bool {
	for k, v := range want {
		vals, ok := lookupHeader(actual, k, caseSensitive)
		if !ok || !containsFold(vals, v, caseSensitive) {
			return false
		}
	}
	return true
}

func lookupHeader(headers map[string][]string, name string, caseSensitive bool) ([]string, bool) {
	if vals, ok := headers[name]; ok {
		return vals, true
	}
	if caseSensitive {
		return nil, false
	}
	for k, vals := range headers {
		if strings.EqualFold(k, name) {
			return vals, true
		}
	}
	return nil, false
}

func matchesQuery(actual map[string][]string, want map[string]string, caseSensitive bool) bool {
	for k, v := range want {
		vals, ok := actual[k]
		if !ok || !containsFold(vals, v, caseSensitive) {
			return false
		}
	}
	return true
}

func containsFold(haystack []string, needle string, caseSensitive bool) bool {
	for _, h := range haystack {
		if compareFold(h, needle, caseSensitive) {
			return true
		}
	}
	return false
}

func compareFold(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}
