package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crimson-sun/updash/internal/config"
	"github.com/crimson-sun/updash/internal/dashboard"
	"github.com/crimson-sun/updash/internal/logging"
	"github.com/crimson-sun/updash/internal/logview"
	"github.com/crimson-sun/updash/internal/protocol"
	"github.com/crimson-sun/updash/internal/render"
	"github.com/crimson-sun/updash/internal/render/async"
	"github.com/crimson-sun/updash/internal/render/multi"
	"github.com/crimson-sun/updash/internal/render/png"
	"github.com/crimson-sun/updash/internal/render/strip"
	"github.com/crimson-sun/updash/internal/series"
	"github.com/crimson-sun/updash/internal/session"
	"github.com/crimson-sun/updash/internal/tui"

	// Register streaming transports.
	_ "github.com/crimson-sun/updash/internal/session/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Client.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// The terminal belongs to the TUI, so slog goes to a file unless headless.
	level := logging.ParseLevel(cfg.Client.LogLevel)
	if cfg.Client.Headless {
		logging.Init(os.Stderr, false, level)
	} else {
		f, err := logging.OpenFile(cfg.Client.LogFile)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logging.Init(f, true, level)
	}

	unit := protocol.ParseUnit(cfg.Client.TimestampUnit)
	parser := protocol.New(
		protocol.WithUnit(unit),
		protocol.WithLayout(cfg.Client.TimeLayout),
	)

	// Initialize renderers.
	var (
		renderers []render.Renderer
		st        *strip.Strip
	)
	if !cfg.Client.Headless {
		st = strip.New(80, unit.Time)
		renderers = append(renderers, st)
	}
	if cfg.Client.ChartPath != "" {
		chart, err := png.New(cfg.Client.ChartPath, png.WithTimeFunc(unit.Time))
		if err != nil {
			log.Fatalf("failed to create chart renderer: %v", err)
		}
		renderers = append(renderers, async.New(chart, async.WithOnError(func(err error) {
			slog.Warn("chart write failed", "path", cfg.Client.ChartPath, "error", err)
		})))
	}

	// Initialize the log panel.
	var (
		sink dashboard.LogSink
		lv   *logview.View
	)
	if cfg.Client.Headless {
		sink = logview.NewPrinter(os.Stdout)
	} else {
		lv = logview.New(80, 20)
		sink = lv
	}
	if cfg.Client.Transcript != "" {
		tr, err := logview.NewTranscript(cfg.Client.Transcript, logview.WithMaxSize(cfg.Client.TranscriptMax))
		if err != nil {
			log.Fatalf("failed to open transcript: %v", err)
		}
		defer tr.Close()
		sink = logview.Tee{sink, tr}
	}

	dash := dashboard.New(parser, series.New(), sink, multi.New(renderers...))
	defer dash.Close()

	// Set up graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// Open the session.
	mgr := session.NewManager(session.WithHandshake(cfg.Client.Handshake))
	var sender tui.Sender
	events, err := mgr.Open(ctx, cfg.Client.Endpoint)
	switch {
	case errors.Is(err, session.ErrTransportUnsupported):
		// No chart without a session.
		st = nil
		dash.Unsupported(scheme(cfg.Client.Endpoint))
	case err != nil:
		log.Fatalf("failed to open session: %v", err)
	default:
		sender = mgr
		defer mgr.Close()
	}
	slog.Info("updash starting", "endpoint", cfg.Client.Endpoint, "headless", cfg.Client.Headless)

	if cfg.Client.Headless {
		if events == nil {
			return
		}
		if err := dash.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("dashboard error: %v", err)
		}
		return
	}

	title := fmt.Sprintf("updash  %s", cfg.Client.Endpoint)
	prog := tea.NewProgram(tui.New(ctx, title, dash, lv, st, sender, events), tea.WithAltScreen(), tea.WithMouseCellMotion())
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()
	if _, err := prog.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

func scheme(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" {
		return endpoint
	}
	return u.Scheme
}
