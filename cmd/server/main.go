package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fieldsentry/backend/internal/alerting"
	"github.com/fieldsentry/backend/internal/broadcast"
	"github.com/fieldsentry/backend/internal/config"
	"github.com/fieldsentry/backend/internal/db"
	"github.com/fieldsentry/backend/internal/geo"
	"github.com/fieldsentry/backend/internal/geocode"
	httpapi "github.com/fieldsentry/backend/internal/http"
	"github.com/fieldsentry/backend/internal/notify"
	"github.com/fieldsentry/backend/internal/presence"
	"github.com/fieldsentry/backend/internal/report"
	"github.com/fieldsentry/backend/internal/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "fieldsentry-backend").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis")
	}
	queue := alerting.NewRedisQueue(redisClient, alerting.DefaultQueueKey)

	var notifier notify.Notifier
	if cfg.NotifierURL == "" {
		notifier = &notify.MockNotifier{Logger: logger}
		logger.Info().Msg("using mock notifier")
	} else {
		notifier = notify.NewHTTPNotifier(cfg.NotifierURL, cfg.NotifierToken)
	}

	dispatcher := alerting.Dispatcher{
		Queue:    queue,
		Notifier: notifier,
		Logger:   logger,
	}
	go dispatcher.Run(ctx)

	hub := broadcast.NewHub(logger)

	policy := &alerting.Policy{
		Queue:           queue,
		SupervisorPhone: cfg.SupervisorPhone,
		EscalateAfter:   cfg.EscalateAfter,
		LowBatteryPct:   cfg.LowBatteryPct,
		Logger:          logger,
	}

	geocoder := &geocode.NominatimReverser{BaseURL: cfg.GeocoderURL}

	tracker := presence.NewTracker(store, policy, hub, geocoder, presence.Options{
		Movement: geo.MovementParams{
			IdleAfter:   cfg.IdleAfter,
			IdleRadiusM: cfg.IdleRadiusM,
		},
		LowBatteryPct: cfg.LowBatteryPct,
		Logger:        logger,
	})

	var summarizer summary.Adapter
	if cfg.SummaryURL == "" {
		summarizer = summary.MockAdapter{}
		logger.Info().Msg("using mock summary adapter")
	} else {
		summarizer = summary.HTTPAdapter{BaseURL: cfg.SummaryURL}
	}
	reports := &report.Generator{
		Store:      store,
		Summarizer: summarizer,
		Logger:     logger,
	}

	router := httpapi.Router(cfg, store, tracker, reports, hub, queue, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
