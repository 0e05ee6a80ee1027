package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/palisadeproject/palisade/pkg/clock"
	"github.com/palisadeproject/palisade/pkg/config"
	"github.com/palisadeproject/palisade/pkg/firewall"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	addr := flag.String("addr", "", "Listen address (or use PALISADE_ADDR env)")
	flag.Parse()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = os.Getenv("PALISADE_ADDR")
	}
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *configPath == "" {
		logger.Error("a configuration file is required (-config)")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatcher, err := firewall.Build(cfg, clock.Real(),
		logger.With(slog.String("component", "firewall")), registry)
	if err != nil {
		logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("starting palisade",
		slog.String("addr", listenAddr),
		slog.Int("firewalls", len(dispatcher.Firewalls())),
	)

	app := http.NewServeMux()
	app.HandleFunc("/whoami", whoamiHandler)
	app.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthzHandler)
	mux.Handle("/", dispatcher.Middleware(app))

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrChan:
		logger.Error("server error triggered shutdown", slog.String("error", err.Error()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
	}

	logger.Info("palisade stopped")
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// whoamiHandler reports the authenticated principal, demonstrating the
// context accessor behind the middleware.
func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	principal := firewall.PrincipalFromContext(r.Context())
	if principal == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"anonymous": true})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"key":        principal.Key(),
		"identifier": principal.Identifier(),
		"roles":      principal.Roles(),
		"virtual":    principal.Virtual(),
	})
}
