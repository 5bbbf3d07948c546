package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/xtrntr/cryptopro/internal/api"
	"github.com/xtrntr/cryptopro/internal/config"
	"github.com/xtrntr/cryptopro/internal/db"
	"github.com/xtrntr/cryptopro/internal/events"
	"github.com/xtrntr/cryptopro/internal/feed"
	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/logger"
	"github.com/xtrntr/cryptopro/internal/metrics"
)

// Main entry point: sets up the store, ledger, live feed and HTTP server
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	defer store.Close(context.Background())

	m := metrics.New(prometheus.DefaultRegisterer)

	// Live price and trade feed
	hub := feed.NewHub(cfg.Ledger.Prices, log)
	go hub.Run(ctx, cfg.Server.FeedInterval)

	opts := []ledger.Option{
		ledger.WithOpeningBalances(cfg.Ledger.OpeningBalances),
		ledger.WithLogger(log),
		ledger.WithRecorder(m),
		ledger.WithNotifier(hub),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, ledger.WithNotifier(publisher))
		log.WithField("topic", cfg.Kafka.Topic).Info("publishing trade events to kafka")
	}
	l := ledger.New(store, cfg.Ledger.Prices, opts...)
	defer l.Close()

	// Initialize API handlers
	handler := api.NewHandler(l, store, log)
	router := handler.Routes(api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		Feed:           hub,
		Metrics:        promhttp.Handler(),
		Instrument:     m.Middleware,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	log.WithFields(logrus.Fields{
		"addr":   cfg.Server.Addr,
		"driver": cfg.Database.Driver,
	}).Info("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Info("Server stopped")
}
