package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/controller"
	"github.com/dgnsrekt/growthchart/internal/relay"
	"github.com/dgnsrekt/growthchart/internal/render/chartjs"
	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/snapshot"
	"github.com/dgnsrekt/growthchart/internal/view"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	broker := relay.NewBroker()
	backend := chartjs.New(broker)
	reg, err := chartbind.DefaultRegistry(chartbind.WHOEnglish(), backend)
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	svc := controller.NewService(view.New(reg, nil), store, nil, chartbind.Presets(), "")
	return NewServer(svc, Streams{
		WS:     relay.WSHandler(broker, backend.Replay),
		Events: relay.SSEHandler(broker),
	})
}

func growthPayload() map[string]any {
	curve := []map[string]float64{{"x": 0, "y": 3}, {"x": 1, "y": 4}, {"x": 2, "y": 5}}
	m := map[string]any{
		"labels": []float64{0, 1, 2},
		"child":  []map[string]float64{{"x": 1, "y": 4.2}},
		"label":  "Weight (kg)",
	}
	for _, key := range []string{"sd3neg", "sd2neg", "sd1neg", "median", "sd1", "sd2", "sd3"} {
		m[key] = curve
	}
	return m
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createNode(t *testing.T, h http.Handler, id string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodPost, "/api/v1/nodes", map[string]any{
		"node_id": id,
		"hook":    chartbind.HookGrowthChart,
		"payload": payload,
	})
}

func TestDocsDarkMode(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/docs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
}

func TestDocsLinkMountedStreams(t *testing.T) {
	body := do(t, newTestServer(t), http.MethodGet, "/docs", nil).Body.String()
	for _, want := range []string{`href="/"`, `href="/api/v1/nodes"`, `href="/events"`, "ws /ws"} {
		if !strings.Contains(body, want) {
			t.Fatalf("docs missing %q", want)
		}
	}

	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	reg, err := chartbind.DefaultRegistry(chartbind.WHOEnglish(), pngchart.New())
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	bare := NewServer(controller.NewService(view.New(reg, nil), store, nil, chartbind.Presets(), ""), Streams{})
	body = do(t, bare, http.MethodGet, "/docs", nil).Body.String()
	if strings.Contains(body, "/events") || strings.Contains(body, "ws /ws") {
		t.Fatal("docs link streams that are not mounted")
	}
}

func TestHealthCountsBoundNodes(t *testing.T) {
	h := newTestServer(t)
	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	w := do(t, h, http.MethodGet, "/health", nil)
	var got struct {
		Status     string `json:"status"`
		BoundNodes int    `json:"bound_nodes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if got.Status != "ok" || got.BoundNodes != 1 {
		t.Fatalf("health = %+v", got)
	}
}

func TestNodeLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t)

	w := createNode(t, h, "n1", growthPayload())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	var info view.ElementInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	if !info.Bound || info.Datasets != 8 || info.Attribute != chartbind.DefaultAttribute {
		t.Fatalf("info = %+v", info)
	}

	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d; want 409", w.Code)
	}

	w = do(t, h, http.MethodPut, "/api/v1/nodes/n1/payload", map[string]any{"payload": `{"labels":[0]}`})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed update status = %d; want 422", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/v1/nodes/n1/spec", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"type":"scatter"`) {
		t.Fatalf("spec status = %d body = %s", w.Code, w.Body)
	}

	w = do(t, h, http.MethodGet, "/api/v1/nodes/n1/render.png", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("render.png status = %d content-type = %q", w.Code, w.Header().Get("Content-Type"))
	}

	if w := do(t, h, http.MethodDelete, "/api/v1/nodes/n1", nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/nodes/n1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d; want 404", w.Code)
	}
}

func TestCreateRejectsMalformedAndUnknownHook(t *testing.T) {
	h := newTestServer(t)
	bad := growthPayload()
	delete(bad, "labels")
	if w := createNode(t, h, "n1", bad); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed create status = %d; want 422", w.Code)
	}
	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusCreated {
		t.Fatalf("create after malformed status = %d: %s", w.Code, w.Body)
	}

	w := do(t, h, http.MethodPost, "/api/v1/nodes", map[string]any{"node_id": "n2", "hook": "Pie", "payload": "{}"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown hook status = %d; want 400", w.Code)
	}
}

func TestPagesCarryPayloadAttribute(t *testing.T) {
	h := newTestServer(t)
	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	w := do(t, h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `data-node-id="n1"`) {
		t.Fatalf("page status = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/nodes/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing node page status = %d; want 404", w.Code)
	}
}

func TestRasterSnapshotOverHTTP(t *testing.T) {
	h := newTestServer(t)
	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	w := do(t, h, http.MethodPost, "/api/v1/nodes/n1/snapshots", map[string]any{"format": "svg"})
	if w.Code != http.StatusCreated {
		t.Fatalf("snapshot status = %d: %s", w.Code, w.Body)
	}
	var meta snapshot.Meta
	if err := json.Unmarshal(w.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	w = do(t, h, http.MethodGet, "/api/v1/snapshots/"+meta.ID+"/image", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("image status = %d content-type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	w = do(t, h, http.MethodPost, "/api/v1/nodes/n1/snapshots", map[string]any{"source": "browser"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("browser snapshot without capturer status = %d; want 502", w.Code)
	}
}

func TestLiveOutputOverHTTP(t *testing.T) {
	h := newTestServer(t)
	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/api/v1/nodes/n1/live", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("live with chartjs = %d; want 400", w.Code)
	}

	backend := pngchart.New()
	reg, err := chartbind.DefaultRegistry(chartbind.WHOEnglish(), backend)
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	svc := controller.NewService(view.New(reg, nil), store, nil, chartbind.Presets(), "").WithLiveSource(backend)
	h = NewServer(svc, Streams{})
	if w := createNode(t, h, "n1", growthPayload()); w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	w := do(t, h, http.MethodGet, "/api/v1/nodes/n1/live", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("live = %d %q; want 200 image/png", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Fatal("live body is not a PNG")
	}
	if w := do(t, h, http.MethodGet, "/api/v1/nodes/missing/live", nil); w.Code != http.StatusNotFound {
		t.Fatalf("live missing = %d; want 404", w.Code)
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{chartbind.CodeValidation, http.StatusBadRequest},
		{chartbind.CodeUnknownHook, http.StatusBadRequest},
		{chartbind.CodeNodeNotFound, http.StatusNotFound},
		{chartbind.CodeSnapshotNotFound, http.StatusNotFound},
		{chartbind.CodeNotBound, http.StatusConflict},
		{chartbind.CodeAlreadyBound, http.StatusConflict},
		{chartbind.CodeMalformedPayload, http.StatusUnprocessableEntity},
		{chartbind.CodeRenderBackend, http.StatusBadGateway},
		{chartbind.CodeCaptureFailed, http.StatusBadGateway},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		err := mapErr(&chartbind.CodedError{Code: tt.code, Message: "x"})
		var se huma.StatusError
		if !errors.As(err, &se) || se.GetStatus() != tt.want {
			t.Fatalf("mapErr(%s) = %v; want status %d", tt.code, err, tt.want)
		}
	}
	if mapErr(nil) != nil {
		t.Fatal("mapErr(nil) != nil")
	}
}
