package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/imposter"
	"github.com/oriys/rift/internal/scriptpool"
)

func newTestHandler(t *testing.T) (*Handler, *imposter.Manager) {
	t.Helper()
	pool := scriptpool.New(scriptpool.Config{Workers: 2, QueueSize: 8, JobTimeout: time.Second})
	pool.Start()
	t.Cleanup(pool.Stop)

	mgr := imposter.NewManager(pool, flowstore.NewNoopStore(), &http.Client{Timeout: 5 * time.Second})
	cfg := config.DefaultConfig()
	return New(mgr, nil, cfg, "/nonexistent/rift-admin-test.yaml"), mgr
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Host = "admin.local"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsUp(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, newMux(h), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "up" {
		t.Fatalf("expected status up, got %+v", body)
	}
}

func TestCreateImposterReturns201WithLinks(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)

	rec := doRequest(t, mux, http.MethodPost, "/imposters", map[string]interface{}{
		"port":     0,
		"protocol": "http",
		"stubs": []map[string]interface{}{
			{
				"predicates": []map[string]interface{}{
					{"equals": map[string]interface{}{"path": "/hello"}},
				},
				"responses": []map[string]interface{}{
					{"is": map[string]interface{}{"statusCode": 200, "body": "hi"}},
				},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["_links"]; !ok {
		t.Fatalf("expected _links in response, got %+v", body)
	}
	if body["port"] == nil || body["port"].(float64) == 0 {
		t.Fatalf("expected a dynamically assigned port, got %+v", body["port"])
	}
}

func TestCreateImposterRejectsInvalidProtocol(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)

	rec := doRequest(t, mux, http.MethodPost, "/imposters", map[string]interface{}{
		"protocol": "gopher",
		"stubs":    []map[string]interface{}{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateImposterRejectsBadRiftScript(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)

	rec := doRequest(t, mux, http.MethodPost, "/imposters", map[string]interface{}{
		"protocol": "http",
		"stubs": []map[string]interface{}{
			{
				"responses": []map[string]interface{}{
					{"rift": map[string]interface{}{"engine": "javascript", "code": "this is not valid {{{ js"}},
				},
			},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a script that fails to compile, got %d: %s", rec.Code, rec.Body.String())
	}
}

func createTestImposter(t *testing.T, mux *http.ServeMux) uint16 {
	t.Helper()
	rec := doRequest(t, mux, http.MethodPost, "/imposters", map[string]interface{}{
		"protocol": "http",
		"stubs": []map[string]interface{}{
			{"responses": []map[string]interface{}{{"is": map[string]interface{}{"statusCode": 200}}}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup: failed to create imposter: %d %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("setup: decode body: %v", err)
	}
	return uint16(body["port"].(float64))
}

func TestGetImposterRoundTripsCreatedStub(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	port := createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodGet, "/imposters/"+strconv.Itoa(int(port)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	stubs, ok := body["stubs"].([]interface{})
	if !ok || len(stubs) != 1 {
		t.Fatalf("expected one stub, got %+v", body["stubs"])
	}
}

func TestGetImposterUnknownPortReturns404(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	rec := doRequest(t, mux, http.MethodGet, "/imposters/59999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteImposterRemovesIt(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	port := createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodDelete, "/imposters/"+strconv.Itoa(int(port)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/imposters/"+strconv.Itoa(int(port)), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestListImpostersSummaryOmitsStubsUnlessReplayable(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodGet, "/imposters", nil)
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	imps := body["imposters"].([]interface{})
	if len(imps) != 1 {
		t.Fatalf("expected one imposter, got %d", len(imps))
	}
	entry := imps[0].(map[string]interface{})
	if _, ok := entry["stubs"]; ok {
		t.Fatalf("summary listing should not include stubs, got %+v", entry)
	}

	rec = doRequest(t, mux, http.MethodGet, "/imposters?replayable=true", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	imps = body["imposters"].([]interface{})
	entry = imps[0].(map[string]interface{})
	if _, ok := entry["stubs"]; !ok {
		t.Fatalf("replayable listing should include stubs, got %+v", entry)
	}
}

func TestGetImposterRemoveProxiesStripsProxyResponses(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)

	rec := doRequest(t, mux, http.MethodPost, "/imposters", map[string]interface{}{
		"protocol": "http",
		"stubs": []map[string]interface{}{
			{
				"responses": []map[string]interface{}{
					{"proxy": map[string]interface{}{"to": "http://example.invalid"}},
					{"is": map[string]interface{}{"statusCode": 200}},
				},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup create: %d %s", rec.Code, rec.Body.String())
	}
	var created map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &created)
	port := uint16(created["port"].(float64))

	rec = doRequest(t, mux, http.MethodGet, "/imposters/"+strconv.Itoa(int(port))+"?removeProxies=true", nil)
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	stubs := body["stubs"].([]interface{})
	responses := stubs[0].(map[string]interface{})["responses"].([]interface{})
	if len(responses) != 1 {
		t.Fatalf("expected the proxy response stripped, leaving 1, got %d", len(responses))
	}
}

func TestEnableDisableImposter(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	port := createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodPost, "/imposters/"+strconv.Itoa(int(port))+"/disable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on disable, got %d", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodPost, "/imposters/"+strconv.Itoa(int(port))+"/enable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on enable, got %d", rec.Code)
	}
}

func TestAddAndDeleteStub(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	port := createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodPost, "/imposters/"+strconv.Itoa(int(port))+"/stubs", map[string]interface{}{
		"stub": map[string]interface{}{
			"responses": []map[string]interface{}{{"is": map[string]interface{}{"statusCode": 201}}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, mux, http.MethodGet, "/imposters/"+strconv.Itoa(int(port))+"/stubs", nil)
	var listBody map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &listBody)
	if len(listBody["stubs"].([]interface{})) != 2 {
		t.Fatalf("expected 2 stubs after add, got %+v", listBody)
	}

	rec = doRequest(t, mux, http.MethodDelete, "/imposters/"+strconv.Itoa(int(port))+"/stubs/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
}

func TestGetStubOutOfBoundsReturns404(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	port := createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodGet, "/imposters/"+strconv.Itoa(int(port))+"/stubs/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestClearSavedRequestsAndProxyResponses(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)
	port := createTestImposter(t, mux)

	rec := doRequest(t, mux, http.MethodDelete, "/imposters/"+strconv.Itoa(int(port))+"/savedRequests", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodDelete, "/imposters/"+strconv.Itoa(int(port))+"/savedProxyResponses", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetConfigReturnsCurrentSnapshot(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newMux(h)

	rec := doRequest(t, mux, http.MethodGet, "/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["listen"]; !ok {
		t.Fatalf("expected config snapshot to include listen, got %+v", body)
	}
}
