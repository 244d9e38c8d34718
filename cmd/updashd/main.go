package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crimson-sun/updash/internal/config"
	"github.com/crimson-sun/updash/internal/history"
	"github.com/crimson-sun/updash/internal/logging"
	"github.com/crimson-sun/updash/internal/monitor"
	"github.com/crimson-sun/updash/internal/notify"
	"github.com/crimson-sun/updash/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sc := cfg.Server
	if err := sc.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logging.Init(os.Stderr, false, logging.ParseLevel(sc.LogLevel))

	hist, err := history.Open(sc.DBPath)
	if err != nil {
		log.Fatalf("failed to open history: %v", err)
	}
	defer hist.Close()

	mon := monitor.New(
		monitor.PingProber{Timeout: sc.ProbeTimeout, Privileged: sc.Privileged},
		sc.Target,
		monitor.WithInterval(sc.ProbeInterval),
		monitor.WithRecorder(hist),
	)
	opts := []server.Option{
		server.WithKeepalive(sc.Keepalive),
		server.WithHandshake(cfg.Client.Handshake),
	}
	if sc.WebhookURL != "" {
		var headers map[string]string
		if sc.WebhookToken != "" {
			headers = map[string]string{"Authorization": "Bearer " + sc.WebhookToken}
		}
		hook := notify.New(sc.WebhookURL, notify.WithTarget(sc.Target), notify.WithHeaders(headers))
		defer hook.Close()
		opts = append(opts, server.WithSink(hook))
	}
	srv := server.New(hist, opts...)
	httpSrv := &http.Server{
		Addr:              sc.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

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

	go func() {
		if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("monitor stopped", "error", err)
		}
	}()
	go func() {
		if err := srv.Run(ctx, mon.Changes()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("hub stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("updashd listening", "addr", sc.Listen, "target", sc.Target, "db", sc.DBPath)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
