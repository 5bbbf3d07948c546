package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/xtrntr/cryptopro/internal/bot"
	"github.com/xtrntr/cryptopro/internal/config"
	"github.com/xtrntr/cryptopro/internal/db"
	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/logger"
	"github.com/xtrntr/cryptopro/internal/metrics"
)

// Telegram front end: long-polls updates and renders ledger state as menus
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.New(cfg.Logging)

	if cfg.Bot.Token == "" {
		log.Fatal("BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	defer store.Close(context.Background())

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Bot.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Bot.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
		defer srv.Close()
	}

	l := ledger.New(store, cfg.Ledger.Prices,
		ledger.WithOpeningBalances(cfg.Ledger.OpeningBalances),
		ledger.WithLogger(log),
		ledger.WithRecorder(m),
	)
	defer l.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}
	api.Debug = cfg.Bot.Debug
	log.WithField("username", api.Self.UserName).Info("Bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.PollTimeout
	updates := api.GetUpdatesChan(u)

	b := bot.New(api, l, cfg.Bot.WebAppURL, log, bot.WithRecorder(m))
	b.Run(ctx, updates)

	api.StopReceivingUpdates()
	log.Info("Bot stopped")
}
