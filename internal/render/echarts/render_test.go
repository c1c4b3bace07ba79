package echarts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/growth"
)

func growthSpec(t *testing.T) *chartbind.Spec {
	t.Helper()
	s := &growth.Series{
		Labels:    []float64{0, 1, 2},
		Child:     []growth.Point{{X: 1, Y: 4}},
		Curves:    map[growth.Curve][]growth.Point{},
		AxisLabel: "Weight (kg)",
	}
	for _, c := range growth.Curves {
		s.Curves[c] = []growth.Point{{X: 0, Y: 3}, {X: 1, Y: 4}, {X: 2, Y: 5}}
	}
	return chartbind.GrowthSpec(chartbind.WHOEnglish(), s)
}

func TestRenderGrowthPage(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, growthSpec(t), chartbind.Canvas{ID: "n1", Width: 640, Height: 400}); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"echarts", "Median", "Child", "Weight (kg)", "640px"} {
		if !strings.Contains(out, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestRenderDashboardPage(t *testing.T) {
	spec, err := chartbind.DashboardBuilder{}.Build([]byte(`{"labels":["Jan","Feb"],"datasets":[{"label":"Visits","data":[1,2]}]}`))
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, spec, chartbind.Canvas{}); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if !strings.Contains(buf.String(), "Visits") || !strings.Contains(buf.String(), "800px") {
		t.Fatal("dashboard page missing series or default size")
	}
}

func TestBackendKeepsLatestPage(t *testing.T) {
	b := New()
	canvas := chartbind.Canvas{ID: "n1"}
	h, err := b.Create(canvas, growthSpec(t))
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	first, ok := b.Page("n1")
	if !ok || len(first) == 0 {
		t.Fatal("Page() empty after Create()")
	}

	updated := growthSpec(t)
	updated.Options.Scales.Y.Title.Text = "Height (cm)"
	if err := b.Update(h, updated); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	page, _ := b.Page("n1")
	if !strings.Contains(string(page), "Height (cm)") {
		t.Fatal("Page() not refreshed by Update()")
	}

	if err := h.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if _, ok := b.Page("n1"); ok {
		t.Fatal("Page() still present after Release()")
	}
	if err := h.Release(); err == nil {
		t.Fatal("second Release() succeeded")
	}
}
