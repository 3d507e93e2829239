package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/guestdesk/concierge/internal/config"
	"github.com/guestdesk/concierge/internal/desk"
	"github.com/guestdesk/concierge/internal/handlers"
	"github.com/guestdesk/concierge/internal/presenter"
	"github.com/guestdesk/concierge/internal/restapi"
	"github.com/guestdesk/concierge/internal/transport"
)

func main() {
	godotenv.Load()

	configPath := os.Getenv("CONCIERGE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	slog.Info("starting concierge daemon", "hotel", cfg.Hotel.ID, "transport", cfg.Transport.Kind)

	tr, err := newTransport(cfg, logger)
	if err != nil {
		slog.Error("failed to connect transport", "kind", cfg.Transport.Kind, "error", err)
		os.Exit(1)
	}
	defer tr.Close()
	slog.Info("transport connected", "kind", cfg.Transport.Kind)

	api := restapi.New(cfg.API.BaseURL, cfg.API.Token, nil)

	hub := presenter.NewHub(logger)
	d := desk.New(cfg.Hotel.ID, api, tr, hub, logger)
	hub.Bind(d)
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		slog.Error("failed to start desk", "error", err)
		os.Exit(1)
	}
	go d.RunReconciler(ctx, cfg.Reconcile.Interval)

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.Health).Methods("GET")
	router.HandleFunc("/ws", presenter.ServeWS(hub, cfg.Server.UIToken)).Methods("GET")
	router.HandleFunc("/api/unread", handlers.Unread(d)).Methods("GET")
	router.HandleFunc("/api/channels", handlers.Channels(d)).Methods("GET")
	router.HandleFunc("/api/conversations/{id}/read", handlers.MarkRead(d)).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("daemon listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	cancel()
	d.Stop()
	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("daemon stopped gracefully")
}

func newTransport(cfg *config.Config, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Transport.Kind {
	case "nats":
		tr, err := transport.NewNATS(cfg.Transport.NATS.URL, cfg.Transport.NATS.MaxReconnects,
			cfg.Transport.NATS.ReconnectWait, logger)
		if err != nil {
			return nil, err
		}
		return tr, nil
	case "memory":
		return transport.NewMemory(), nil
	default:
		tr, err := transport.NewRedis(cfg.Transport.Redis.URL, logger)
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
