package domain

import (
	"encoding/json"
	"fmt"
)

// jsonStubResponse mirrors the wire shape of a single StubResponse variant.
type jsonStubResponse struct {
	Is     *IsResponse  `json:"is,omitempty"`
	Proxy  *ProxyConfig `json:"proxy,omitempty"`
	Inject *string      `json:"inject,omitempty"`
	Fault  *string      `json:"fault,omitempty"`
	Rift   *RiftScript  `json:"rift,omitempty"`
}

// UnmarshalJSON decodes exactly one populated variant; more than one or
// none is a MalformedShape compilation error — exactly one variant per
// response, unknown variants reject on load.
func (r *StubResponse) UnmarshalJSON(data []byte) error {
	var jr jsonStubResponse
	if err := json.Unmarshal(data, &jr); err != nil {
		return err
	}
	count := 0
	if jr.Is != nil {
		count++
		r.Is = jr.Is
	}
	if jr.Proxy != nil {
		count++
		r.Proxy = jr.Proxy
		if r.Proxy.Mode == "" {
			r.Proxy.Mode = ProxyOnce
		}
	}
	if jr.Inject != nil {
		count++
		r.Inject = *jr.Inject
	}
	if jr.Fault != nil {
		count++
		r.Fault = TCPFaultKind(*jr.Fault)
	}
	if jr.Rift != nil {
		count++
		r.RiftScript = jr.Rift
	}
	if count != 1 {
		return fmt.Errorf("stub response: expected exactly one of is/proxy/inject/fault/rift, got %d", count)
	}
	return nil
}

// MarshalJSON re-encodes whichever variant is populated.
func (r StubResponse) MarshalJSON() ([]byte, error) {
	var jr jsonStubResponse
	switch {
	case r.Is != nil:
		jr.Is = r.Is
	case r.Proxy != nil:
		jr.Proxy = r.Proxy
	case r.Inject != "":
		jr.Inject = &r.Inject
	case r.Fault != "":
		s := string(r.Fault)
		jr.Fault = &s
	case r.RiftScript != nil:
		jr.Rift = r.RiftScript
	default:
		return nil, fmt.Errorf("stub response: no variant populated")
	}
	return json.Marshal(jr)
}

// MarshalJSON re-encodes a predicate back to its single-operator wire shape.
// Implicit multi-operator predicates (sibling keys folded into an AND on
// decode) are re-emitted the same way, as sibling operator keys on one
// object, so they decode back into the same implicit AND.
func (p Predicate) MarshalJSON() ([]byte, error) {
	jp, err := p.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(jp)
}

func (p *Predicate) toJSON() (*jsonPredicate, error) {
	jp := &jsonPredicate{
		CaseSensitive:    p.CaseSensitive,
		KeyCaseSensitive: p.KeyCaseSensitive,
		Except:           p.Except,
	}
	if p.JSONPath != "" {
		jp.JSONPath = &struct {
			Selector string `json:"selector"`
		}{p.JSONPath}
	}
	if p.XPath != "" {
		jp.XPath = &struct {
			Selector string `json:"selector"`
		}{p.XPath}
	}
	if len(p.Implicit) > 0 {
		for _, leaf := range p.Implicit {
			leafJSON, err := leaf.toJSON()
			if err != nil {
				return nil, err
			}
			mergeJSONPredicate(jp, leafJSON)
		}
		return jp, nil
	}
	switch p.Op {
	case OpEquals:
		jp.Equals = p.Fields
	case OpDeepEquals:
		jp.DeepEquals = p.Fields
	case OpContains:
		jp.Contains = p.Fields
	case OpStartsWith:
		jp.StartsWith = p.Fields
	case OpEndsWith:
		jp.EndsWith = p.Fields
	case OpMatches:
		jp.Matches = p.Fields
	case OpExists:
		jp.Exists = p.Fields
	case OpNot:
		inner, err := p.Not.toJSON()
		if err != nil {
			return nil, err
		}
		jp.Not = inner
	case OpOr:
		for _, o := range p.Or {
			oj, err := o.toJSON()
			if err != nil {
				return nil, err
			}
			jp.Or = append(jp.Or, oj)
		}
	case OpAnd:
		for _, a := range p.And {
			aj, err := a.toJSON()
			if err != nil {
				return nil, err
			}
			jp.And = append(jp.And, aj)
		}
	default:
		return nil, fmt.Errorf("predicate: unknown operator %q", p.Op)
	}
	return jp, nil
}

func mergeJSONPredicate(dst, src *jsonPredicate) {
	if src.Equals != nil {
		dst.Equals = src.Equals
	}
	if src.DeepEquals != nil {
		dst.DeepEquals = src.DeepEquals
	}
	if src.Contains != nil {
		dst.Contains = src.Contains
	}
	if src.StartsWith != nil {
		dst.StartsWith = src.StartsWith
	}
	if src.EndsWith != nil {
		dst.EndsWith = src.EndsWith
	}
	if src.Matches != nil {
		dst.Matches = src.Matches
	}
	if src.Exists != nil {
		dst.Exists = src.Exists
	}
	if src.Not != nil {
		dst.Not = src.Not
	}
	if src.Or != nil {
		dst.Or = src.Or
	}
	if src.And != nil {
		dst.And = src.And
	}
}
