package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/growthchart/internal/api"
	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/config"
	"github.com/dgnsrekt/growthchart/internal/controller"
	"github.com/dgnsrekt/growthchart/internal/headless"
	"github.com/dgnsrekt/growthchart/internal/journal"
	"github.com/dgnsrekt/growthchart/internal/netutil"
	"github.com/dgnsrekt/growthchart/internal/relay"
	"github.com/dgnsrekt/growthchart/internal/render/chartjs"
	"github.com/dgnsrekt/growthchart/internal/render/echarts"
	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/snapshot"
	"github.com/dgnsrekt/growthchart/internal/tracing"
	"github.com/dgnsrekt/growthchart/internal/view"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.SlogLevel(), cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("growthchart config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"profile", cfg.Profile,
		"profiles_file", cfg.ProfilesFile,
		"backend", cfg.Backend,
		"journal_dir", cfg.JournalDir,
		"snapshot_dir", cfg.SnapshotDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		slog.Error("failed to set up tracing", "endpoint", cfg.OTLPEndpoint, "error", err)
		os.Exit(1)
	}

	profiles, err := chartbind.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		slog.Error("failed to load profiles", "file", cfg.ProfilesFile, "error", err)
		os.Exit(1)
	}
	profile, ok := profiles[cfg.Profile]
	if !ok {
		slog.Error("unknown growth profile", "profile", cfg.Profile)
		os.Exit(1)
	}

	broker := relay.NewBroker()
	backend, replay, live := newBackend(cfg.Backend, broker)

	reg, err := chartbind.DefaultRegistry(profile, backend)
	if err != nil {
		slog.Error("failed to build hook registry", "error", err)
		os.Exit(1)
	}

	jw := journal.NewWriter(cfg.JournalDir, cfg.JournalBuffer, cfg.JournalMaxSizeMB)
	v := view.New(reg, jw)

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	baseURL := netutil.BaseURL(ln)

	capturer := headless.New(headless.Config{RemoteURL: cfg.ChromiumCDPURL, Timeout: cfg.CaptureTimeout()})
	svc := controller.NewService(v, snapStore, capturer, profiles, baseURL).WithLiveSource(live)
	h := api.NewServer(svc, api.Streams{
		WS:     relay.WSHandler(broker, replay),
		Events: relay.SSEHandler(broker),
	})

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("growthchart listening", "addr", ln.Addr().String(), "page", baseURL+"/", "docs", baseURL+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("growthchart server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Release every chart before the streams go away so clients see release frames.
	if err := v.Close(ctx); err != nil {
		slog.Warn("chart release on shutdown incomplete", "error", err)
	}
	broker.Close()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("growthchart shutdown failed", "error", err)
	}
	capturer.Close()
	if err := jw.Close(); err != nil {
		slog.Debug("journal close failed", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		slog.Debug("tracing shutdown failed", "error", err)
	}
}

// newBackend returns the live rendering backend, the frames a new stream
// client should replay and, for server-side backends, the source of their
// latest output.
func newBackend(name string, broker *relay.Broker) (chartbind.Backend, func() []relay.Event, controller.LiveSource) {
	switch name {
	case config.BackendECharts:
		b := echarts.New()
		return b, noReplay, b
	case config.BackendPNG:
		b := pngchart.New()
		return b, noReplay, b
	default:
		b := chartjs.New(broker)
		return b, b.Replay, nil
	}
}

func noReplay() []relay.Event { return nil }

func setupLogger(level slog.Level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
	return nil
}
