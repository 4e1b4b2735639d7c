// Package analysis implements the stub-set diagnostics consulted on
// admin-API writes: duplicate ids, catch-all placement, exact duplicate
// predicate sets, and predicates that shadow a later stub's more specific
// ones. It is never on the runtime request path.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/oriys/rift/internal/domain"
)

// WarningKind enumerates the diagnostic kinds a stub set can produce.
type WarningKind string

const (
	DuplicateID         WarningKind = "DuplicateId"
	CatchAll            WarningKind = "CatchAll"
	CatchAllNotLast     WarningKind = "CatchAllNotLast"
	ExactDuplicate      WarningKind = "ExactDuplicate"
	PotentiallyShadowed WarningKind = "PotentiallyShadowed"
)

// Warning is one diagnostic finding, indexed by stub position for the
// admin API to report back to the caller.
type Warning struct {
	Kind          WarningKind `json:"kind"`
	StubIndex     int         `json:"stubIndex"`
	ShadowedByIdx int         `json:"shadowedByIndex,omitempty"`
	Message       string      `json:"message"`
}

// Analyze runs every diagnostic over stubs in declaration order and
// returns all warnings found. Order among different warning kinds is not
// significant; within a kind, warnings are emitted in stub order.
func Analyze(stubs []*domain.Stub) []Warning {
	var warnings []Warning
	warnings = append(warnings, duplicateIDs(stubs)...)
	warnings = append(warnings, catchAllPlacement(stubs)...)
	warnings = append(warnings, exactDuplicates(stubs)...)
	warnings = append(warnings, potentiallyShadowed(stubs)...)
	return warnings
}

func duplicateIDs(stubs []*domain.Stub) []Warning {
	var warnings []Warning
	seen := make(map[string]int)
	for i, s := range stubs {
		if s.ID == "" {
			continue
		}
		if first, ok := seen[s.ID]; ok {
			warnings = append(warnings, Warning{
				Kind:      DuplicateID,
				StubIndex: i,
				Message:   fmt.Sprintf("stub %d shares id %q with stub %d", i, s.ID, first),
			})
			continue
		}
		seen[s.ID] = i
	}
	return warnings
}

func catchAllPlacement(stubs []*domain.Stub) []Warning {
	var warnings []Warning
	for i, s := range stubs {
		if !s.CatchAll() {
			continue
		}
		warnings = append(warnings, Warning{
			Kind:      CatchAll,
			StubIndex: i,
			Message:   fmt.Sprintf("stub %d has no predicates and matches every request", i),
		})
		if i != len(stubs)-1 {
			warnings = append(warnings, Warning{
				Kind:      CatchAllNotLast,
				StubIndex: i,
				Message:   fmt.Sprintf("stub %d is a catch-all but precedes %d later stub(s), which will never be reached", i, len(stubs)-1-i),
			})
		}
	}
	return warnings
}

// canonicalPredicateSet renders a stub's predicates as a sorted list of
// canonical JSON strings, so set equality ignores declaration order.
func canonicalPredicateSet(s *domain.Stub) []string {
	out := make([]string, 0, len(s.Predicates))
	for _, p := range s.Predicates {
		b, err := json.Marshal(p)
		if err != nil {
			// A predicate that fails to marshal can't be meaningfully
			// compared; fold it into a sentinel so it still participates
			// in set-length comparisons without panicking.
			out = append(out, fmt.Sprintf("<unmarshalable:%v>", err))
			continue
		}
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out
}

func exactDuplicates(stubs []*domain.Stub) []Warning {
	var warnings []Warning
	canonical := make([]string, len(stubs))
	for i, s := range stubs {
		canonical[i] = strings.Join(canonicalPredicateSet(s), "\x00")
	}
	seen := make(map[string]int)
	for i, key := range canonical {
		if len(stubs[i].Predicates) == 0 {
			continue // catch-alls are reported separately, not as duplicates of each other
		}
		if first, ok := seen[key]; ok {
			warnings = append(warnings, Warning{
				Kind:      ExactDuplicate,
				StubIndex: i,
				Message:   fmt.Sprintf("stub %d has the same predicate set as stub %d", i, first),
			})
			continue
		}
		seen[key] = i
	}
	return warnings
}

func potentiallyShadowed(stubs []*domain.Stub) []Warning {
	var warnings []Warning
	for later := 1; later < len(stubs); later++ {
		for earlier := 0; earlier < later; earlier++ {
			if stubShadows(stubs[earlier], stubs[later]) {
				warnings = append(warnings, Warning{
					Kind:          PotentiallyShadowed,
					StubIndex:     later,
					ShadowedByIdx: earlier,
					Message:       fmt.Sprintf("stub %d may never be reached: stub %d's predicates are more general and sort first", later, earlier),
				})
				break // one shadowing earlier stub is enough to report
			}
		}
	}
	return warnings
}

// stubShadows reports whether every request matching later is guaranteed
// to already match earlier, field by field. It is a conservative,
// single-leaf-predicate analysis: fields whose predicates aren't simple
// equals/startsWith/endsWith/contains/exists leaves are treated as
// non-comparable and block the shadow determination for safety.
func stubShadows(earlier, later *domain.Stub) bool {
	if earlier.CatchAll() {
		return len(later.Predicates) > 0 // reported here as well as by CatchAllNotLast
	}
	if len(earlier.Predicates) == 0 || len(later.Predicates) == 0 {
		return false
	}

	laterByField := leafPredicatesByField(later)
	for _, ep := range earlier.Predicates {
		field, ok := leafField(ep)
		if !ok {
			return false
		}
		lp, ok := laterByField[field]
		if !ok {
			return false
		}
		if !implies(ep, lp) {
			return false
		}
	}
	return true
}

func leafPredicatesByField(s *domain.Stub) map[string]*domain.Predicate {
	out := make(map[string]*domain.Predicate, len(s.Predicates))
	for _, p := range s.Predicates {
		if field, ok := leafField(p); ok {
			out[field] = p
		}
	}
	return out
}

// leafField returns the single field name a simple leaf predicate
// constrains, and false for composite (not/or/and) or multi-field
// predicates, which this analysis doesn't reason about.
func leafField(p *domain.Predicate) (string, bool) {
	if p.Not != nil || len(p.Or) > 0 || len(p.And) > 0 || len(p.Implicit) > 0 {
		return "", false
	}
	if len(p.Fields) != 1 {
		return "", false
	}
	for field := range p.Fields {
		return field, true
	}
	return "", false
}

// implies reports whether satisfying `specific`'s constraint on a field
// guarantees satisfying `general`'s constraint on the same field — i.e.
// whether general is a weaker, more inclusive version of specific.
func implies(general, specific *domain.Predicate) bool {
	if general.Op == domain.OpExists {
		return true // any value-bearing predicate on the field implies the field exists
	}

	gv, ok := leafStringValue(general)
	if !ok {
		return false
	}
	sv, ok := leafStringValue(specific)
	if !ok {
		return false
	}

	switch general.Op {
	case domain.OpEquals:
		return specific.Op == domain.OpEquals && gv == sv
	case domain.OpStartsWith:
		return strings.HasPrefix(sv, gv)
	case domain.OpEndsWith:
		return strings.HasSuffix(sv, gv)
	case domain.OpContains:
		return strings.Contains(sv, gv)
	default:
		return false
	}
}

// leafStringValue extracts a predicate's single scalar string value from
// its Fields map (equals/startsWith/endsWith/contains all carry the
// constrained field's literal value there).
func leafStringValue(p *domain.Predicate) (string, bool) {
	for _, v := range p.Fields {
		s, ok := v.(string)
		return s, ok
	}
	return "", false
}
