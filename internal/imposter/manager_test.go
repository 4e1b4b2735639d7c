package imposter

import (
	"net/http"
	"testing"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
)

func newTestManager() *Manager {
	return NewManager(nil, flowstore.NewNoopStore(), &http.Client{})
}

func TestManagerCreateWithExplicitPort(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.Port = 18081
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.DeleteAll()

	got, err := m.Get(18081)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Port != 18081 {
		t.Fatalf("got port %d, want 18081", got.Port)
	}
}

func TestManagerCreateRejectsPortInUse(t *testing.T) {
	m := newTestManager()
	a := domain.NewImposter(0, domain.ProtocolHTTP)
	a.Port = 18082
	if err := m.Create(a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	defer m.DeleteAll()

	b := domain.NewImposter(0, domain.ProtocolHTTP)
	b.Port = 18082
	err := m.Create(b)
	if err == nil {
		t.Fatalf("expected PortInUse error")
	}
	merr, ok := err.(*ManagerError)
	if !ok || merr.Kind != "PortInUse" {
		t.Fatalf("got %v, want ManagerError{Kind: PortInUse}", err)
	}
}

func TestManagerCreateWithZeroPortScansDynamicRange(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.DeleteAll()

	if imp.Port < dynamicPortRangeLow || imp.Port > dynamicPortRangeHigh {
		t.Fatalf("got port %d, want a port in [%d, %d]", imp.Port, dynamicPortRangeLow, dynamicPortRangeHigh)
	}
}

func TestManagerGetUnknownPortReturnsNotFound(t *testing.T) {
	m := newTestManager()
	_, err := m.Get(9999)
	if err == nil {
		t.Fatalf("expected NotFound error")
	}
	if merr, ok := err.(*ManagerError); !ok || merr.Kind != "NotFound" {
		t.Fatalf("got %v, want ManagerError{Kind: NotFound}", err)
	}
}

func TestManagerDeleteRemovesImposterAndFreesPort(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.Port = 18083
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := m.Delete(18083)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Port != 18083 {
		t.Fatalf("got deleted port %d, want 18083", deleted.Port)
	}

	if _, err := m.Get(18083); err == nil {
		t.Fatalf("expected imposter to be gone after delete")
	}

	// The port should be bindable again immediately.
	replacement := domain.NewImposter(0, domain.ProtocolHTTP)
	replacement.Port = 18083
	if err := m.Create(replacement); err != nil {
		t.Fatalf("re-create on freed port: %v", err)
	}
	m.DeleteAll()
}

func TestManagerDeleteAllClearsRegistry(t *testing.T) {
	m := newTestManager()
	for _, port := range []uint16{18084, 18085, 18086} {
		imp := domain.NewImposter(0, domain.ProtocolHTTP)
		imp.Port = port
		if err := m.Create(imp); err != nil {
			t.Fatalf("create %d: %v", port, err)
		}
	}

	deleted := m.DeleteAll()
	if len(deleted) != 3 {
		t.Fatalf("got %d deleted imposters, want 3", len(deleted))
	}
	if len(m.List()) != 0 {
		t.Fatalf("expected empty registry after DeleteAll")
	}
}

func TestManagerSetEnabledTogglesImposter(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.Port = 18087
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.DeleteAll()

	if err := m.SetEnabled(18087, false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	got, _ := m.Get(18087)
	if got.Enabled {
		t.Fatalf("expected imposter to be disabled")
	}
}

func TestManagerStubCRUDRoundTrips(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.Port = 18088
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.DeleteAll()

	stubA := isStub(nil, 200, "a")
	if err := m.AddStub(18088, stubA, -1); err != nil {
		t.Fatalf("add stub: %v", err)
	}
	if got, err := m.GetStub(18088, 0); err != nil || got != stubA {
		t.Fatalf("get stub: got %v, %v", got, err)
	}

	stubB := isStub(nil, 201, "b")
	if err := m.ReplaceStub(18088, 0, stubB); err != nil {
		t.Fatalf("replace stub: %v", err)
	}
	if got, _ := m.GetStub(18088, 0); got != stubB {
		t.Fatalf("expected stub 0 to be replaced")
	}

	if err := m.DeleteStub(18088, 0); err != nil {
		t.Fatalf("delete stub: %v", err)
	}
	if _, err := m.GetStub(18088, 0); err == nil {
		t.Fatalf("expected out-of-bounds error after deleting the only stub")
	}
}

func TestManagerReplaceStubOutOfBoundsReturnsError(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.Port = 18089
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.DeleteAll()

	if err := m.ReplaceStub(18089, 5, isStub(nil, 200, "x")); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
}

func TestManagerClearRecordedRequests(t *testing.T) {
	m := newTestManager()
	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.Port = 18090
	imp.RecordRequests = true
	if err := m.Create(imp); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.DeleteAll()

	imp.CaptureRequest(domain.RecordedRequest{Method: "GET", Path: "/x"})
	if imp.NumberOfRequests() != 1 {
		t.Fatalf("expected 1 recorded request before clearing")
	}
	if err := m.ClearRecordedRequests(18090); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if imp.NumberOfRequests() != 0 {
		t.Fatalf("expected 0 recorded requests after clearing")
	}
}
