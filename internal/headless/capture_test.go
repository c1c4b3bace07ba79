package headless

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"
)

func TestCanvasSelector(t *testing.T) {
	got := CanvasSelector("weight-1")
	want := `canvas[data-node-id="weight-1"][data-rendered="true"]`
	if got != want {
		t.Fatalf("CanvasSelector() = %s; want %s", got, want)
	}
}

func TestNewAppliesDefaultTimeout(t *testing.T) {
	if c := New(Config{}); c.cfg.Timeout != defaultTimeout {
		t.Fatalf("Timeout = %v; want %v", c.cfg.Timeout, defaultTimeout)
	}
}

func findBrowser(t *testing.T) {
	t.Helper()
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chromium binary on PATH")
}

const page = `<!doctype html><html><body>
<canvas id="c" data-node-id="n1" width="120" height="80"></canvas>
<script>
const c = document.getElementById("c");
const ctx = c.getContext("2d");
ctx.fillStyle = "#4b0082";
ctx.fillRect(0, 0, 120, 80);
c.setAttribute("data-rendered", "true");
</script></body></html>`

func TestCaptureCanvas(t *testing.T) {
	findBrowser(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 20 * time.Second})
	defer c.Close()

	img, err := c.Capture(context.Background(), srv.URL, "n1", 400, 300)
	if err != nil {
		t.Fatalf("Capture() = %v", err)
	}
	if !bytes.HasPrefix(img, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("Capture() did not return a PNG")
	}
}
