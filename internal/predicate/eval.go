package predicate

import (
	"strings"

	"github.com/oriys/rift/internal/domain"
)

// Eval evaluates a compiled predicate tree against a request. It never
// returns an error: a runtime failure inside a leaf (e.g. the body fails to
// parse as JSON for a jsonpath extraction) degrades to "no match", not a
// panic or error return, so one malformed request never aborts matching
// for the rest of the stub list.
func Eval(c *Compiled, req *domain.Request) bool {
	if c == nil {
		return true
	}
	switch c.op {
	case domain.OpNot:
		return !Eval(c.not, req)
	case domain.OpOr:
		for _, child := range c.children {
			if Eval(child, req) {
				return true
			}
		}
		return len(c.children) == 0 && false // or([]) ≡ false
	case domain.OpAnd:
		for _, child := range c.children {
			if !Eval(child, req) {
				return false
			}
		}
		return true // and([]) ≡ true, and([p]) ≡ p
	default:
		return evalFields(c, req)
	}
}

func evalFields(c *Compiled, req *domain.Request) bool {
	for field, expected := range c.fields {
		actual := req.FieldValue(field)
		if field == domain.FieldBody {
			actual = extractBody(c, req.Body)
		}
		if !evalField(c.op, expected, actual, c) {
			return false
		}
	}
	return true
}

func extractBody(c *Compiled, body string) interface{} {
	if c.jsonpath != "" {
		return jsonPathExtract(body, c.jsonpath)
	}
	if c.xpath != "" {
		return xpathExtract(body, c.xpath)
	}
	return body
}

func evalField(op domain.Operator, expected compiledField, actual interface{}, c *Compiled) bool {
	if objActual, ok := asStringMap(actual); ok {
		return evalObjectField(op, expected, objActual, c)
	}
	actualStr, _ := actual.(string)
	return evalScalarField(op, expected, actualStr, c)
}

func asStringMap(v interface{}) (map[string][]string, bool) {
	m, ok := v.(map[string][]string)
	return m, ok
}

func evalScalarField(op domain.Operator, expected compiledField, actual string, c *Compiled) bool {
	actual = stripExcept(c, actual)
	switch op {
	case domain.OpExists:
		want, _ := expected.raw.(bool)
		return (actual != "") == want
	case domain.OpEquals:
		return compareStrings(expected, actual, c.caseSensitive, equalsCmp)
	case domain.OpDeepEquals:
		return compareStrings(expected, actual, c.caseSensitive, equalsCmp)
	case domain.OpContains:
		return compareStrings(expected, actual, c.caseSensitive, containsCmp)
	case domain.OpStartsWith:
		return compareStrings(expected, actual, c.caseSensitive, startsWithCmp)
	case domain.OpEndsWith:
		return compareStrings(expected, actual, c.caseSensitive, endsWithCmp)
	case domain.OpMatches:
		if expected.regex == nil {
			return false
		}
		return expected.regex.MatchString(actual)
	default:
		return false
	}
}

func evalObjectField(op domain.Operator, expected compiledField, actual map[string][]string, c *Compiled) bool {
	if op == domain.OpDeepEquals && len(expected.objKeys) != len(actual) {
		return false
	}
	for key, exp := range expected.objKeys {
		actualVal, found := lookupKey(actual, key, c.keyCaseSensitive)
		if op == domain.OpExists {
			want, _ := exp.raw.(bool)
			if found != want {
				return false
			}
			continue
		}
		if !found {
			return false
		}
		actualVal = stripExcept(c, actualVal)
		switch op {
		case domain.OpEquals, domain.OpDeepEquals:
			if !compareStrings(exp, actualVal, c.caseSensitive, equalsCmp) {
				return false
			}
		case domain.OpContains:
			if !compareStrings(exp, actualVal, c.caseSensitive, containsCmp) {
				return false
			}
		case domain.OpStartsWith:
			if !compareStrings(exp, actualVal, c.caseSensitive, startsWithCmp) {
				return false
			}
		case domain.OpEndsWith:
			if !compareStrings(exp, actualVal, c.caseSensitive, endsWithCmp) {
				return false
			}
		case domain.OpMatches:
			if exp.regex == nil || !exp.regex.MatchString(actualVal) {
				return false
			}
		}
	}
	return true
}

func lookupKey(m map[string][]string, key string, keyCaseSensitive bool) (string, bool) {
	if keyCaseSensitive {
		if v, ok := m[key]; ok && len(v) > 0 {
			return v[0], true
		}
		return "", false
	}
	lowered := lower(key)
	for k, v := range m {
		if lower(k) == lowered && len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

func stripExcept(c *Compiled, s string) string {
	if c.except == nil {
		return s
	}
	return c.except.ReplaceAllString(s, "")
}

type cmpFunc func(expected, actual string) bool

func equalsCmp(expected, actual string) bool     { return expected == actual }
func containsCmp(expected, actual string) bool   { return strings.Contains(actual, expected) }
func startsWithCmp(expected, actual string) bool { return strings.HasPrefix(actual, expected) }
func endsWithCmp(expected, actual string) bool    { return strings.HasSuffix(actual, expected) }

func compareStrings(expected compiledField, actual string, caseSensitive bool, cmp cmpFunc) bool {
	if !expected.isString {
		return false
	}
	exp := expected.raw.(string)
	if !caseSensitive {
		exp = expected.lowered
		actual = lower(actual)
	}
	return cmp(exp, actual)
}

func lower(s string) string { return strings.ToLower(s) }
