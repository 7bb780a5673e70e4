package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nupi-ai/plugin-vad-local-silero/internal/config"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/controller"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/engine"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/httpapi"
)

// version is set at build time by GoReleaser via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting vad-service",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"rate", cfg.Rate,
		"out_dir", cfg.OutDir,
		"model_path", cfg.ModelPath,
		"speech_threshold", cfg.SpeechThreshold,
		"silence_threshold", cfg.SilenceThreshold,
	)

	// Bind the port before resolving the engine, so the process holds its
	// listen address even if engine probing takes a while.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}
	logger.Info("listener bound", "addr", lis.Addr().String())

	newEngine := resolveEngineFactory(cfg, logger)

	ctrl := controller.New(cfg, newEngine, logger)
	api := httpapi.New(ctrl, logger)

	srv := &http.Server{Handler: api.Router()}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info("vad-service ready to serve requests")

	select {
	case err := <-serverErr:
		logger.Error("http server terminated with error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	ctrl.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful http shutdown failed, forcing close", "error", err)
		srv.Close()
	}

	logger.Info("vad-service stopped")
}

// resolveEngineFactory picks the native Silero engine when it is compiled
// in and probes successfully. When the native engine is not compiled in,
// it logs a warning and uses the deterministic stub engine. When it is
// compiled in but the probe fails, it falls back to the stub engine only
// with VAD_DEV_MODE=1 and otherwise exits the process.
func resolveEngineFactory(cfg config.Config, logger *slog.Logger) controller.EngineFactory {
	if !engine.NativeAvailable() {
		logger.Warn("native silero engine not compiled in, using stub engine (build with -tags silero for production)")
		return func() (engine.Engine, error) { return engine.NewStubEngine(), nil }
	}

	probe, err := engine.NewNativeEngine(cfg.ModelPath)
	if err != nil {
		devMode := os.Getenv("VAD_DEV_MODE") == "1"
		if devMode {
			logger.Warn("native engine probe failed, falling back to stub engine (VAD_DEV_MODE=1)", "error", err)
			return func() (engine.Engine, error) { return engine.NewStubEngine(), nil }
		}
		logger.Error("native engine probe failed — cannot start", "error", err, "hint", "set VAD_DEV_MODE=1 to allow fallback to stub engine")
		os.Exit(1)
	}
	probe.Close()
	logger.Info("engine ready", "type", "silero")

	return func() (engine.Engine, error) {
		return engine.NewNativeEngine(cfg.ModelPath)
	}
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
