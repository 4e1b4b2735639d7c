package imposter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/rift/internal/domain"
)

func TestMaterializeInjectJavaScriptSetsStatusAndBody(t *testing.T) {
	source := `function (request, response) {
		response.statusCode = 201;
		response.body = "hello " + request.method;
	}`
	rec := httptest.NewRecorder()
	req := &domain.Request{Method: "GET", Path: "/x"}
	rt := &Runtime{}
	rt.materializeInject(rec, req, source)

	if rec.Code != 201 {
		t.Fatalf("got status %d, want 201", rec.Code)
	}
	if rec.Body.String() != "hello GET" {
		t.Fatalf("got body %q, want %q", rec.Body.String(), "hello GET")
	}
}

func TestMaterializeInjectJavaScriptStringReturnDefaultsTo200(t *testing.T) {
	source := `function (request, response) { return "plain body"; }`
	rec := httptest.NewRecorder()
	req := &domain.Request{Method: "GET", Path: "/x"}

	// The function's return value becomes the response; a returned string
	// is used as the body with the default 200 status.
	rt := &Runtime{}
	rt.materializeInject(rec, req, source)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestMaterializeRiftScriptLuaEngine(t *testing.T) {
	source := `function inject(request)
		return { statusCode = 202, body = "lua:" .. request.method }
	end`
	rec := httptest.NewRecorder()
	req := &domain.Request{Method: "POST", Path: "/x"}
	rt := &Runtime{}
	rt.materializeRiftScript(rec, req, &domain.RiftScript{Engine: "lua", Code: source})

	if rec.Code != 202 {
		t.Fatalf("got status %d, want 202", rec.Code)
	}
	if rec.Body.String() != "lua:POST" {
		t.Fatalf("got body %q, want %q", rec.Body.String(), "lua:POST")
	}
}

func TestMaterializeRiftScriptUnknownEngineWrites500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := &domain.Request{Method: "GET", Path: "/x"}
	rt := &Runtime{}
	rt.materializeRiftScript(rec, req, &domain.RiftScript{Engine: "cobol", Code: ""})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", rec.Code)
	}
}

func TestIsResponseFromValueAcceptsPlainString(t *testing.T) {
	is, err := isResponseFromValue("just a body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if is.Body != "just a body" {
		t.Fatalf("got body %v, want %q", is.Body, "just a body")
	}
}

func TestIsResponseFromValueRejectsUnsupportedType(t *testing.T) {
	if _, err := isResponseFromValue(42); err == nil {
		t.Fatalf("expected an error for a bare number return value")
	}
}
