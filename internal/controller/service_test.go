package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/relay"
	"github.com/dgnsrekt/growthchart/internal/render/chartjs"
	"github.com/dgnsrekt/growthchart/internal/render/echarts"
	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/snapshot"
	"github.com/dgnsrekt/growthchart/internal/view"
)

var pngMagic = []byte("\x89PNG")

type fakeCapturer struct {
	pageURL string
	err     error
}

func (f *fakeCapturer) Capture(ctx context.Context, pageURL, nodeID string, width, height int) ([]byte, error) {
	f.pageURL = pageURL
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte(nil), pngMagic...), nil
}

func growthPayload(t *testing.T) string {
	t.Helper()
	curve := []map[string]float64{{"x": 0, "y": 3}, {"x": 1, "y": 4}, {"x": 2, "y": 5}}
	m := map[string]any{
		"labels": []float64{0, 1, 2},
		"child":  []map[string]float64{{"x": 1, "y": 4.2}},
		"label":  "Weight (kg)",
	}
	for _, key := range []string{"sd3neg", "sd2neg", "sd1neg", "median", "sd1", "sd2", "sd3"} {
		m[key] = curve
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	return string(raw)
}

func newService(t *testing.T, capture Capturer) *Service {
	t.Helper()
	reg, err := chartbind.DefaultRegistry(chartbind.WHOEnglish(), chartjs.New(relay.NewBroker()))
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	return NewService(view.New(reg, nil), store, capture, chartbind.Presets(), "http://127.0.0.1:8190/")
}

type liveBackend interface {
	chartbind.Backend
	LiveSource
}

// newLiveService builds a service whose charts are drawn server-side by backend.
func newLiveService(t *testing.T, backend liveBackend) *Service {
	t.Helper()
	reg, err := chartbind.DefaultRegistry(chartbind.WHOEnglish(), backend)
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	return NewService(view.New(reg, nil), store, nil, chartbind.Presets(), "").WithLiveSource(backend)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var got *chartbind.CodedError
	if !errors.As(err, &got) {
		t.Fatalf("error = %T %v; want *chartbind.CodedError", err, err)
	}
	if got.Code != code {
		t.Fatalf("code = %q; want %q (%v)", got.Code, code, err)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("GrowthChart", "hook"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}
	err := s.requireNonEmpty("   ", "hook")
	requireCode(t, err, chartbind.CodeValidation)
	if got := err.(*chartbind.CodedError).Message; got != "hook is required" {
		t.Fatalf("message = %q; want %q", got, "hook is required")
	}
}

func TestCreateNodeValidatesInput(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	tests := []struct {
		name   string
		nodeID string
		hook   string
		width  int
	}{
		{"empty id", "", chartbind.HookGrowthChart, 0},
		{"id with slash", "a/b", chartbind.HookGrowthChart, 0},
		{"id too long", strings.Repeat("x", 65), chartbind.HookGrowthChart, 0},
		{"empty hook", "n1", " ", 0},
		{"width too large", "n1", chartbind.HookGrowthChart, maxCanvasSide + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateNode(ctx, tt.nodeID, tt.hook, tt.width, 0, growthPayload(t))
			requireCode(t, err, chartbind.CodeValidation)
		})
	}
}

func TestNodeLifecycle(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	info, err := s.CreateNode(ctx, "baby-1", chartbind.HookGrowthChart, 640, 360, growthPayload(t))
	if err != nil {
		t.Fatalf("CreateNode() = %v", err)
	}
	if !info.Bound || info.Datasets != 8 {
		t.Fatalf("CreateNode() info = %+v", info)
	}
	if s.BoundCount() != 1 || len(s.ListNodes(ctx)) != 1 {
		t.Fatalf("BoundCount() = %d", s.BoundCount())
	}

	_, err = s.SetPayload(ctx, "baby-1", `{"labels":[]}`)
	requireCode(t, err, chartbind.CodeMalformedPayload)

	spec, err := s.NodeSpec(ctx, "baby-1")
	if err != nil {
		t.Fatalf("NodeSpec() = %v", err)
	}
	if spec.Options.Scales.Y.Title.Text != "Weight (kg)" {
		t.Fatalf("y title = %q", spec.Options.Scales.Y.Title.Text)
	}

	if err := s.DeleteNode(ctx, "baby-1"); err != nil {
		t.Fatalf("DeleteNode() = %v", err)
	}
	_, err = s.GetNode(ctx, "baby-1")
	requireCode(t, err, chartbind.CodeNodeNotFound)
}

func TestRenderExports(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	if _, err := s.CreateNode(ctx, "n1", chartbind.HookGrowthChart, 0, 0, growthPayload(t)); err != nil {
		t.Fatalf("CreateNode() = %v", err)
	}

	img, err := s.RenderImage(ctx, "n1", pngchart.PNG)
	if err != nil {
		t.Fatalf("RenderImage(png) = %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatal("RenderImage(png) did not return a PNG")
	}
	svg, err := s.RenderImage(ctx, "n1", pngchart.SVG)
	if err != nil || !bytes.Contains(svg, []byte("<svg")) {
		t.Fatalf("RenderImage(svg) = %d bytes, %v", len(svg), err)
	}
	page, err := s.RenderHTML(ctx, "n1")
	if err != nil || !bytes.Contains(page, []byte("echarts")) {
		t.Fatalf("RenderHTML() = %d bytes, %v", len(page), err)
	}

	var buf bytes.Buffer
	if err := s.RenderNodePage(&buf, "n1"); err != nil {
		t.Fatalf("RenderNodePage() = %v", err)
	}
	_, err = s.RenderImage(ctx, "missing", pngchart.PNG)
	requireCode(t, err, chartbind.CodeNodeNotFound)
}

func TestRasterSnapshotRoundTrip(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	if _, err := s.CreateNode(ctx, "n1", chartbind.HookGrowthChart, 0, 0, growthPayload(t)); err != nil {
		t.Fatalf("CreateNode() = %v", err)
	}

	meta, err := s.TakeSnapshot(ctx, "n1", "", "svg", " first visit ")
	if err != nil {
		t.Fatalf("TakeSnapshot() = %v", err)
	}
	if meta.Source != SourceRaster || meta.Format != "svg" || meta.Notes != "first visit" || meta.AxisLabel != "Weight (kg)" {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.SizeBytes == 0 {
		t.Fatal("meta.SizeBytes = 0")
	}

	list, err := s.ListSnapshots(ctx, "n1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSnapshots() = %v, %v", list, err)
	}
	data, format, err := s.ReadSnapshotImage(ctx, meta.ID)
	if err != nil || format != "svg" || len(data) != meta.SizeBytes {
		t.Fatalf("ReadSnapshotImage() = %d bytes %q, %v", len(data), format, err)
	}
	if err := s.DeleteSnapshot(ctx, meta.ID); err != nil {
		t.Fatalf("DeleteSnapshot() = %v", err)
	}
	_, err = s.GetSnapshot(ctx, meta.ID)
	requireCode(t, err, chartbind.CodeSnapshotNotFound)
}

func TestBrowserSnapshot(t *testing.T) {
	capture := &fakeCapturer{}
	s := newService(t, capture)
	ctx := context.Background()
	if _, err := s.CreateNode(ctx, "n1", chartbind.HookGrowthChart, 0, 0, growthPayload(t)); err != nil {
		t.Fatalf("CreateNode() = %v", err)
	}

	meta, err := s.TakeSnapshot(ctx, "n1", "browser", "", "")
	if err != nil {
		t.Fatalf("TakeSnapshot(browser) = %v", err)
	}
	if capture.pageURL != "http://127.0.0.1:8190/nodes/n1" {
		t.Fatalf("page URL = %q", capture.pageURL)
	}
	if meta.Source != SourceBrowser || meta.Format != "png" {
		t.Fatalf("meta = %+v", meta)
	}

	_, err = s.TakeSnapshot(ctx, "n1", "browser", "svg", "")
	requireCode(t, err, chartbind.CodeValidation)

	capture.err = errors.New("chromium gone")
	_, err = s.TakeSnapshot(ctx, "n1", "browser", "png", "")
	requireCode(t, err, chartbind.CodeCaptureFailed)
}

func TestBrowserSnapshotWithoutCapturer(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	if _, err := s.CreateNode(ctx, "n1", chartbind.HookGrowthChart, 0, 0, growthPayload(t)); err != nil {
		t.Fatalf("CreateNode() = %v", err)
	}
	_, err := s.TakeSnapshot(ctx, "n1", "browser", "png", "")
	requireCode(t, err, chartbind.CodeCaptureFailed)
}

func TestProfilesSorted(t *testing.T) {
	s := newService(t, nil)
	profiles := s.Profiles()
	if len(profiles) != 2 || profiles[0].Name != "who-en" || profiles[1].Name != "who-ptbr" {
		t.Fatalf("Profiles() = %v", profiles)
	}
	if hooks := s.Hooks(); len(hooks) != 2 {
		t.Fatalf("Hooks() = %v", hooks)
	}
}

func TestLiveOutputServesServerSideBackends(t *testing.T) {
	tests := []struct {
		name        string
		backend     liveBackend
		contentType string
		marker      []byte
	}{
		{"png", pngchart.New(), "image/png", pngMagic},
		{"echarts", echarts.New(), "text/html; charset=utf-8", []byte("echarts")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newLiveService(t, tt.backend)
			ctx := context.Background()
			if _, err := s.CreateNode(ctx, "n1", chartbind.HookGrowthChart, 0, 0, growthPayload(t)); err != nil {
				t.Fatalf("CreateNode() = %v", err)
			}
			first, contentType, err := s.LiveOutput(ctx, "n1")
			if err != nil {
				t.Fatalf("LiveOutput() = %v", err)
			}
			if contentType != tt.contentType || !bytes.Contains(first, tt.marker) {
				t.Fatalf("LiveOutput() = %d bytes of %q; want %q", len(first), contentType, tt.contentType)
			}

			updated := strings.Replace(growthPayload(t), "Weight (kg)", "Height (cm)", 1)
			if _, err := s.SetPayload(ctx, "n1", updated); err != nil {
				t.Fatalf("SetPayload() = %v", err)
			}
			second, _, err := s.LiveOutput(ctx, "n1")
			if err != nil {
				t.Fatalf("LiveOutput() after update = %v", err)
			}
			if bytes.Equal(first, second) {
				t.Fatal("LiveOutput() unchanged after update")
			}

			if err := s.DeleteNode(ctx, "n1"); err != nil {
				t.Fatalf("DeleteNode() = %v", err)
			}
			_, _, err = s.LiveOutput(ctx, "n1")
			requireCode(t, err, chartbind.CodeNodeNotFound)
		})
	}
}

func TestLiveOutputWithoutSource(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	if _, err := s.CreateNode(ctx, "n1", chartbind.HookGrowthChart, 0, 0, growthPayload(t)); err != nil {
		t.Fatalf("CreateNode() = %v", err)
	}
	_, _, err := s.LiveOutput(ctx, "n1")
	requireCode(t, err, chartbind.CodeValidation)
}
