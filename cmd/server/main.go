package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wangqiqi/md2docx/internal/api"
	"github.com/wangqiqi/md2docx/internal/config"
	"github.com/wangqiqi/md2docx/internal/convert"
	"github.com/wangqiqi/md2docx/internal/metrics"
	"github.com/wangqiqi/md2docx/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to load .env", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	conv, err := config.LoadConversion(cfg.ConversionFile)
	if err != nil {
		log.Error("invalid conversion settings", "error", err)
		os.Exit(1)
	}
	// Uploaded documents must not reach the server's filesystem.
	conv.Images.AllowLocal = false
	conv.Images.AllowRemote = cfg.AllowRemoteImages
	conv.Images.Timeout = cfg.ImageTimeout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	// Initialize pipeline.
	converter := convert.New(conv, log, convert.WithMetrics(rec, "http"))
	orch := pipeline.NewOrchestrator(cfg, converter, rec, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, metrics.HTTPHandler(reg), log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop accepting requests before closing the queue.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting md2docx",
		"port", cfg.Port,
		"workers", cfg.WorkerCount,
		"remote_images", conv.Images.AllowRemote)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
