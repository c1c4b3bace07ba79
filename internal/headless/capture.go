// Package headless captures rendered chart canvases through a headless
// Chromium driven over CDP.
package headless

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

const (
	defaultTimeout = 15 * time.Second
	// Canvases are marked rendered by the page client after their first draw.
	renderedAttr = "data-rendered"
)

// Config selects the browser. An empty RemoteURL launches a local headless Chromium.
type Config struct {
	RemoteURL string
	Timeout   time.Duration
}

// Capturer screenshots chart canvases. The browser allocator is started on
// first use and shared by later captures.
type Capturer struct {
	cfg Config

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func New(cfg Config) *Capturer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Capturer{cfg: cfg}
}

func (c *Capturer) allocator() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCtx != nil {
		return c.allocCtx
	}
	if c.cfg.RemoteURL != "" {
		slog.Info("headless capture using remote chromium", "url", c.cfg.RemoteURL)
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cfg.RemoteURL)
	} else {
		slog.Info("headless capture launching local chromium")
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
		)
		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return c.allocCtx
}

// CanvasSelector returns the CSS selector of a node's canvas once it has drawn.
func CanvasSelector(nodeID string) string {
	return fmt.Sprintf(`canvas[data-node-id=%s][%s="true"]`, strconv.Quote(nodeID), renderedAttr)
}

// Capture loads pageURL, waits for the node's canvas to finish drawing and
// returns a PNG screenshot of it.
func (c *Capturer) Capture(ctx context.Context, pageURL, nodeID string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		width, height = 1280, 800
	}
	tabCtx, tabCancel := chromedp.NewContext(c.allocator())
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancel()

	// Caller cancellation ends the tab as well.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	sel := CanvasSelector(nodeID)
	var buf []byte
	start := time.Now()
	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false).Do(ctx)
		}),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Screenshot(sel, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("headless: capture %s from %s: %w", nodeID, pageURL, err)
	}
	slog.Debug("headless capture complete", "node_id", nodeID, "bytes", len(buf), "elapsed", time.Since(start))
	return buf, nil
}

// Close shuts down the browser allocator.
func (c *Capturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCtx, c.allocCancel = nil, nil
	}
}
