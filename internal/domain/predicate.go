package domain

import "encoding/json"

// Predicate is a tagged matcher node. Exactly the fields relevant to the
// predicate's operator are populated; Fields carries the field-keyed body
// for the aggregate leaf operators (equals/deepEquals/contains/...).
//
// The JSON shape is mountebank-family: a predicate object has exactly one
// of the operator keys (equals, deepEquals, contains, startsWith, endsWith,
// matches, exists, not, or, and) as its top-level key, plus sibling option
// keys (caseSensitive, keyCaseSensitive, except, jsonpath, xpath). Multiple
// operator keys on one object are implicitly ANDed.
type Predicate struct {
	Op       Operator               `json:"-"`
	Fields   map[string]interface{} `json:"-"` // for equals/deepEquals/.../matches/exists
	Not      *Predicate             `json:"-"`
	Or       []*Predicate           `json:"-"`
	And      []*Predicate           `json:"-"`
	Implicit []*Predicate           `json:"-"` // sibling operators folded into an implicit AND

	CaseSensitive    bool            `json:"-"`
	KeyCaseSensitive *bool           `json:"-"` // nil ⇒ inherits CaseSensitive
	Except           string          `json:"-"` // regex stripped from actual before comparison
	JSONPath         string          `json:"-"`
	XPath            string          `json:"-"`
}

// Operator is the predicate's matcher kind.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpDeepEquals Operator = "deepEquals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpMatches    Operator = "matches"
	OpExists     Operator = "exists"
	OpNot        Operator = "not"
	OpOr         Operator = "or"
	OpAnd        Operator = "and"
)

// Field names recognized in a predicate's field-keyed body.
const (
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldHeaders     = "headers"
	FieldBody        = "body"
	FieldForm        = "form"
	FieldRequestFrom = "requestFrom"
	FieldIP          = "ip"
)

// jsonPredicate mirrors the wire shape for decode/encode.
type jsonPredicate struct {
	Equals     map[string]interface{} `json:"equals,omitempty"`
	DeepEquals map[string]interface{} `json:"deepEquals,omitempty"`
	Contains   map[string]interface{} `json:"contains,omitempty"`
	StartsWith map[string]interface{} `json:"startsWith,omitempty"`
	EndsWith   map[string]interface{} `json:"endsWith,omitempty"`
	Matches    map[string]interface{} `json:"matches,omitempty"`
	Exists     map[string]interface{} `json:"exists,omitempty"`
	Not        *jsonPredicate         `json:"not,omitempty"`
	Or         []*jsonPredicate       `json:"or,omitempty"`
	And        []*jsonPredicate       `json:"and,omitempty"`

	CaseSensitive    bool   `json:"caseSensitive,omitempty"`
	KeyCaseSensitive *bool  `json:"keyCaseSensitive,omitempty"`
	Except           string `json:"except,omitempty"`
	JSONPath         *struct {
		Selector string `json:"selector"`
	} `json:"jsonpath,omitempty"`
	XPath *struct {
		Selector string `json:"selector"`
	} `json:"xpath,omitempty"`
}

func (p *Predicate) UnmarshalJSON(data []byte) error {
	var jp jsonPredicate
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}
	return p.fromJSON(&jp)
}

func (p *Predicate) fromJSON(jp *jsonPredicate) error {
	p.CaseSensitive = jp.CaseSensitive
	p.KeyCaseSensitive = jp.KeyCaseSensitive
	p.Except = jp.Except
	if jp.JSONPath != nil {
		p.JSONPath = jp.JSONPath.Selector
	}
	if jp.XPath != nil {
		p.XPath = jp.XPath.Selector
	}

	var leaves []*Predicate
	set := func(op Operator, fields map[string]interface{}) {
		leaves = append(leaves, &Predicate{Op: op, Fields: fields, CaseSensitive: jp.CaseSensitive, KeyCaseSensitive: jp.KeyCaseSensitive, Except: jp.Except, JSONPath: p.JSONPath, XPath: p.XPath})
	}
	if jp.Equals != nil {
		set(OpEquals, jp.Equals)
	}
	if jp.DeepEquals != nil {
		set(OpDeepEquals, jp.DeepEquals)
	}
	if jp.Contains != nil {
		set(OpContains, jp.Contains)
	}
	if jp.StartsWith != nil {
		set(OpStartsWith, jp.StartsWith)
	}
	if jp.EndsWith != nil {
		set(OpEndsWith, jp.EndsWith)
	}
	if jp.Matches != nil {
		set(OpMatches, jp.Matches)
	}
	if jp.Exists != nil {
		set(OpExists, jp.Exists)
	}
	if jp.Not != nil {
		inner := &Predicate{}
		if err := inner.fromJSON(jp.Not); err != nil {
			return err
		}
		leaves = append(leaves, &Predicate{Op: OpNot, Not: inner})
	}
	if jp.Or != nil {
		var ors []*Predicate
		for _, o := range jp.Or {
			ip := &Predicate{}
			if err := ip.fromJSON(o); err != nil {
				return err
			}
			ors = append(ors, ip)
		}
		leaves = append(leaves, &Predicate{Op: OpOr, Or: ors})
	}
	if jp.And != nil {
		var ands []*Predicate
		for _, a := range jp.And {
			ip := &Predicate{}
			if err := ip.fromJSON(a); err != nil {
				return err
			}
			ands = append(ands, ip)
		}
		leaves = append(leaves, &Predicate{Op: OpAnd, And: ands})
	}

	switch len(leaves) {
	case 0:
		return errUnknownOperator
	case 1:
		*p = *leaves[0]
	default:
		p.Op = OpAnd
		p.Implicit = leaves
	}
	return nil
}

var errUnknownOperator = jsonShapeError("predicate: no recognized operator key")

type jsonShapeError string

func (e jsonShapeError) Error() string { return string(e) }

// StubResponse is a tagged union: exactly one of Is, Proxy, Inject, Fault,
// or RiftScript is populated, matching the StubResponse variants.
type StubResponse struct {
	Is         *IsResponse  `json:"-"`
	Proxy      *ProxyConfig `json:"-"`
	Inject     string       `json:"-"`
	Fault      TCPFaultKind `json:"-"`
	RiftScript *RiftScript  `json:"-"`
}

// RiftScript is a direct engine+code response variant, distinct from Inject
// (which is JS-only legacy shorthand retained for stub compatibility).
type RiftScript struct {
	Engine string `json:"engine"`
	Code   string `json:"code"`
}

// IsResponse is a literal response: status/headers/body plus behaviors.
type IsResponse struct {
	StatusCode interface{}            `json:"statusCode,omitempty"` // number or numeric string
	Headers    map[string]interface{} `json:"headers,omitempty"`
	Body       interface{}            `json:"body,omitempty"`
	Mode       string                 `json:"_mode,omitempty"` // "text" (default) or "binary" (base64)
	Behaviors  *Behaviors             `json:"behaviors,omitempty"`
}

// ProxyConfig is the Proxy response variant.
type ProxyConfig struct {
	To                 string      `json:"to"`
	Mode               ProxyMode   `json:"mode,omitempty"`
	PredicateGenerators []PredicateGenerator `json:"predicateGenerators,omitempty"`
	Decorate           string      `json:"decorate,omitempty"`
}

// ProxyMode selects record/replay semantics for a Proxy response.
type ProxyMode string

const (
	ProxyOnce        ProxyMode = "proxyOnce"
	ProxyAlways      ProxyMode = "proxyAlways"
	ProxyTransparent ProxyMode = "proxyTransparent"
)

// PredicateGenerator selects which request fields feed the recording
// signature / the auto-generated stub predicates for a Proxy response.
type PredicateGenerator struct {
	Matches PredicateGeneratorMatch `json:"matches"`
}

// PredicateGeneratorMatch names the header set used to build a
// RequestSignature.
type PredicateGeneratorMatch struct {
	Headers []string `json:"headers,omitempty"`
}

// Behaviors is the decoded behaviors object. Wire format accepts
// either an object or an array-of-single-key-objects merged left to right;
// decoding that shape lives in Behaviors.UnmarshalJSON (behaviors_json.go),
// this struct is the normalized in-memory form.
type Behaviors struct {
	Wait           *WaitSpec `json:"wait,omitempty"`
	Repeat         int       `json:"repeat,omitempty"`
	Decorate       string    `json:"decorate,omitempty"`
	ShellTransform string    `json:"shellTransform,omitempty"`
	Copy           []CopySpec `json:"copy,omitempty"`
	Lookup         []LookupSpec `json:"lookup,omitempty"`
}

// WaitSpec is either a fixed millisecond delay or a uniform range.
type WaitSpec struct {
	Fixed int
	Min   int
	Max   int
}

func (w *WaitSpec) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		w.Fixed = n
		return nil
	}
	var rng struct {
		Min int `json:"min"`
		Max int `json:"max"`
	}
	if err := json.Unmarshal(data, &rng); err != nil {
		return err
	}
	w.Min, w.Max = rng.Min, rng.Max
	return nil
}

func (w WaitSpec) MarshalJSON() ([]byte, error) {
	if w.Min == 0 && w.Max == 0 {
		return json.Marshal(w.Fixed)
	}
	return json.Marshal(struct {
		Min int `json:"min"`
		Max int `json:"max"`
	}{w.Min, w.Max})
}

// CopySpec and LookupSpec back the copy/lookup behaviors. Lookup is
// implemented by behavior.CSVLookup; Copy is applied by behavior.Apply.
type CopySpec struct {
	From string `json:"from"`
	Into string `json:"into"`
}

type LookupSpec struct {
	Key struct {
		From  string `json:"from"`
		Index int    `json:"index"`
	} `json:"key"`
	FromDataSource struct {
		CSV struct {
			Path      string `json:"path"`
			KeyColumn string `json:"keyColumn"`
		} `json:"csv"`
	} `json:"fromDataSource"`
	Into string `json:"into"`
}
