// Package predicate compiles and evaluates stub-matching predicate trees:
// a tagged tree over equals/deepEquals/contains/startsWith/endsWith/
// matches/exists/not/or/and, with case-sensitivity, except-regex
// stripping, and JSONPath/XPath body extraction.
//
// Compilation is pure and side-effect free: it lowercases string literals
// for case-insensitive comparison and pre-builds every regex the tree
// needs (matches operators, except stripping) so Eval never compiles a
// regex on the request path.
package predicate

import (
	"fmt"
	"regexp"

	"github.com/oriys/rift/internal/domain"
)

// Compiled is an evaluatable predicate tree. The zero value is not usable;
// construct via Compile.
type Compiled struct {
	op       domain.Operator
	fields   map[string]compiledField
	not      *Compiled
	children []*Compiled // or/and operands (including the implicit-AND case)

	jsonpath string
	xpath    string
	except   *regexp.Regexp

	caseSensitive    bool
	keyCaseSensitive bool
}

type compiledField struct {
	raw      interface{}
	lowered  string // for string values, pre-lowered
	isString bool
	objKeys  map[string]compiledField // for headers/query/form maps
	regex    *regexp.Regexp           // for "matches"
}

// CompileError reports a compilation failure with a stable Kind for
// callers that branch on it (admin API 400 bodies).
type CompileError struct {
	Kind    string // InvalidRegex, UnknownOperator, MalformedShape
	Message string
}

func (e *CompileError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func invalidRegex(pattern string, err error) error {
	return &CompileError{Kind: "InvalidRegex", Message: fmt.Sprintf("%q: %v", pattern, err)}
}

func unknownOperator(op domain.Operator) error {
	return &CompileError{Kind: "UnknownOperator", Message: string(op)}
}

func malformedShape(msg string) error {
	return &CompileError{Kind: "MalformedShape", Message: msg}
}

// Compile turns a domain.Predicate tree into an evaluatable Compiled tree.
func Compile(p *domain.Predicate) (*Compiled, error) {
	if p == nil {
		return nil, malformedShape("nil predicate")
	}

	c := &Compiled{
		op:               p.Op,
		caseSensitive:    p.CaseSensitive,
		keyCaseSensitive: p.CaseSensitive,
		jsonpath:         p.JSONPath,
		xpath:            p.XPath,
	}
	if p.KeyCaseSensitive != nil {
		c.keyCaseSensitive = *p.KeyCaseSensitive
	}
	if p.Except != "" {
		re, err := regexp.Compile(p.Except)
		if err != nil {
			return nil, invalidRegex(p.Except, err)
		}
		c.except = re
	}

	if len(p.Implicit) > 0 {
		c.op = domain.OpAnd
		for _, leaf := range p.Implicit {
			cc, err := Compile(leaf)
			if err != nil {
				return nil, err
			}
			c.children = append(c.children, cc)
		}
		return c, nil
	}

	switch p.Op {
	case domain.OpEquals, domain.OpDeepEquals, domain.OpContains, domain.OpStartsWith, domain.OpEndsWith, domain.OpMatches, domain.OpExists:
		fields, err := compileFields(p.Fields, p.Op, c.caseSensitive, c.keyCaseSensitive)
		if err != nil {
			return nil, err
		}
		c.fields = fields
		return c, nil
	case domain.OpNot:
		inner, err := Compile(p.Not)
		if err != nil {
			return nil, err
		}
		c.not = inner
		return c, nil
	case domain.OpOr, domain.OpAnd:
		list := p.Or
		if p.Op == domain.OpAnd {
			list = p.And
		}
		for _, child := range list {
			cc, err := Compile(child)
			if err != nil {
				return nil, err
			}
			c.children = append(c.children, cc)
		}
		return c, nil
	default:
		return nil, unknownOperator(p.Op)
	}
}

func compileFields(fields map[string]interface{}, op domain.Operator, caseSensitive, keyCaseSensitive bool) (map[string]compiledField, error) {
	out := make(map[string]compiledField, len(fields))
	for field, val := range fields {
		cf, err := compileFieldValue(val, op, caseSensitive, keyCaseSensitive)
		if err != nil {
			return nil, err
		}
		out[field] = cf
	}
	return out, nil
}

func compileFieldValue(val interface{}, op domain.Operator, caseSensitive, keyCaseSensitive bool) (compiledField, error) {
	switch v := val.(type) {
	case string:
		cf := compiledField{raw: v, isString: true}
		if !caseSensitive {
			cf.lowered = lower(v)
		}
		if op == domain.OpMatches {
			pattern := v
			var re *regexp.Regexp
			var err error
			if caseSensitive {
				re, err = regexp.Compile(pattern)
			} else {
				re, err = regexp.Compile("(?i)" + pattern)
			}
			if err != nil {
				return compiledField{}, invalidRegex(pattern, err)
			}
			cf.regex = re
		}
		return cf, nil
	case map[string]interface{}:
		obj := make(map[string]compiledField, len(v))
		for k, kv := range v {
			key := k
			if !keyCaseSensitive {
				key = lower(k)
			}
			cf, err := compileFieldValue(kv, op, caseSensitive, keyCaseSensitive)
			if err != nil {
				return compiledField{}, err
			}
			obj[key] = cf
		}
		return compiledField{objKeys: obj}, nil
	case bool:
		return compiledField{raw: v}, nil
	case nil:
		return compiledField{raw: nil}, nil
	default:
		return compiledField{raw: v}, nil
	}
}
