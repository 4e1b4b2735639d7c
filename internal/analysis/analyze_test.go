package analysis

import (
	"testing"

	"github.com/oriys/rift/internal/domain"
)

func eqPredicate(field, value string) *domain.Predicate {
	return &domain.Predicate{Op: domain.OpEquals, Fields: map[string]interface{}{field: value}}
}

func startsWithPredicate(field, value string) *domain.Predicate {
	return &domain.Predicate{Op: domain.OpStartsWith, Fields: map[string]interface{}{field: value}}
}

func hasWarning(warnings []Warning, kind WarningKind, stubIndex int) bool {
	for _, w := range warnings {
		if w.Kind == kind && w.StubIndex == stubIndex {
			return true
		}
	}
	return false
}

func TestAnalyzeFlagsDuplicateIds(t *testing.T) {
	stubs := []*domain.Stub{
		{ID: "a", Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/x")}},
		{ID: "a", Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/y")}},
	}
	warnings := Analyze(stubs)
	if !hasWarning(warnings, DuplicateID, 1) {
		t.Fatalf("expected DuplicateId on stub 1, got %+v", warnings)
	}
}

func TestAnalyzeIgnoresEmptyIds(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/x")}},
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/y")}},
	}
	warnings := Analyze(stubs)
	if hasWarning(warnings, DuplicateID, 1) {
		t.Fatalf("should not flag DuplicateId when both ids are empty, got %+v", warnings)
	}
}

func TestAnalyzeFlagsCatchAllAndCatchAllNotLast(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: nil},
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/x")}},
	}
	warnings := Analyze(stubs)
	if !hasWarning(warnings, CatchAll, 0) {
		t.Fatalf("expected CatchAll on stub 0, got %+v", warnings)
	}
	if !hasWarning(warnings, CatchAllNotLast, 0) {
		t.Fatalf("expected CatchAllNotLast on stub 0, got %+v", warnings)
	}
}

func TestAnalyzeDoesNotFlagCatchAllNotLastWhenCatchAllIsLast(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/x")}},
		{Predicates: nil},
	}
	warnings := Analyze(stubs)
	if hasWarning(warnings, CatchAllNotLast, 1) {
		t.Fatalf("a trailing catch-all should not be flagged as out of place, got %+v", warnings)
	}
	if !hasWarning(warnings, CatchAll, 1) {
		t.Fatalf("expected CatchAll on the trailing stub, got %+v", warnings)
	}
}

func TestAnalyzeFlagsExactDuplicatePredicateSetsIgnoringOrder(t *testing.T) {
	p1 := eqPredicate(domain.FieldPath, "/x")
	p2 := eqPredicate(domain.FieldMethod, "GET")
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{p1, p2}},
		{Predicates: []*domain.Predicate{p2, p1}}, // same set, reversed order
	}
	warnings := Analyze(stubs)
	if !hasWarning(warnings, ExactDuplicate, 1) {
		t.Fatalf("expected ExactDuplicate on stub 1 regardless of predicate order, got %+v", warnings)
	}
}

func TestAnalyzeDoesNotFlagDifferentPredicateSetsAsDuplicates(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/x")}},
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/y")}},
	}
	warnings := Analyze(stubs)
	if hasWarning(warnings, ExactDuplicate, 1) {
		t.Fatalf("distinct predicate sets should not be flagged, got %+v", warnings)
	}
}

func TestAnalyzeFlagsStartsWithShadowingLaterEquals(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{startsWithPredicate(domain.FieldPath, "/billing")}},
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/billing/invoices")}},
	}
	warnings := Analyze(stubs)
	if !hasWarning(warnings, PotentiallyShadowed, 1) {
		t.Fatalf("expected PotentiallyShadowed on stub 1, got %+v", warnings)
	}
}

func TestAnalyzeDoesNotFlagShadowingWhenPrefixDoesNotMatch(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{startsWithPredicate(domain.FieldPath, "/billing")}},
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/accounts/invoices")}},
	}
	warnings := Analyze(stubs)
	if hasWarning(warnings, PotentiallyShadowed, 1) {
		t.Fatalf("unrelated path prefixes should not be flagged, got %+v", warnings)
	}
}

func TestAnalyzeDoesNotFlagShadowingAcrossDifferentFields(t *testing.T) {
	stubs := []*domain.Stub{
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldMethod, "GET")}},
		{Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/billing")}},
	}
	warnings := Analyze(stubs)
	if hasWarning(warnings, PotentiallyShadowed, 1) {
		t.Fatalf("predicates on unrelated fields should not be flagged, got %+v", warnings)
	}
}

func TestAnalyzeReturnsNoWarningsForWellFormedStubSet(t *testing.T) {
	stubs := []*domain.Stub{
		{ID: "a", Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/x")}},
		{ID: "b", Predicates: []*domain.Predicate{eqPredicate(domain.FieldPath, "/y")}},
	}
	warnings := Analyze(stubs)
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
}
