package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/ocrpdf"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("loading .env", "error", err)
	}

	cfg := ocrpdf.DefaultConfig()
	if *configPath != "" {
		if err := ocrpdf.LoadConfigFile(*configPath, &cfg); err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		slog.Error("reading environment", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
		slog.Warn("no provider api key configured; OCR requests will fail", "provider", cfg.LLM.Provider)
	}

	svc, err := ocrpdf.New(cfg)
	if err != nil {
		slog.Error("creating service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newServer(svc, cfg),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 0, // OCR batches run one provider call per image
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newServer builds the routed, wrapped handler.
func newServer(svc ocrpdf.Service, cfg ocrpdf.Config) http.Handler {
	h := newHandler(svc, cfg.MaxUploadBytes)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /ocr", h.handleOCR)
	mux.HandleFunc("POST /pdf/generate", h.handleGeneratePDF)
	mux.HandleFunc("POST /xlsx/generate", h.handleGenerateXLSX)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(cfg.APIKey, handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
