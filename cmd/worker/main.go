package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/evlink/warranty-notify/internal/config"
	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository/postgres"
	campaignService "github.com/evlink/warranty-notify/internal/service/campaign"
	notificationService "github.com/evlink/warranty-notify/internal/service/notification"
	"github.com/evlink/warranty-notify/internal/service/recipient"
	"github.com/evlink/warranty-notify/internal/transport"
	"github.com/evlink/warranty-notify/internal/worker"
	"github.com/evlink/warranty-notify/pkg/logger"
	"github.com/evlink/warranty-notify/pkg/messaging/redis"
	"github.com/evlink/warranty-notify/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories
	notificationRepo := postgres.NewNotificationRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	campaignRepo := postgres.NewCampaignRepository(db)
	recipientRepo := postgres.NewRecipientRepository(db)

	// Services
	m := metrics.New("warranty_notify_worker")
	resolver := recipient.NewResolver(recipientRepo, time.Minute)
	notificationSvc := notificationService.NewService(notificationRepo, queueRepo, resolver, appLogger)
	campaignSvc := campaignService.NewService(campaignRepo, queueRepo, recipientRepo, appLogger, m)

	// Transports, one per channel
	transports := map[model.Channel]transport.Transport{
		model.ChannelEmail: transport.NewEmailTransport(transport.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		}),
		model.ChannelSMS: transport.NewSMSTransport(transport.SMSConfig{
			APIBaseURL: cfg.SMS.APIBaseURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
		}),
		model.ChannelInApp: transport.NewInAppTransport(broker),
	}

	dispatcher := worker.NewDispatcher(
		queueRepo,
		transports,
		notificationSvc,
		campaignSvc,
		broker,
		worker.DispatcherConfig{
			BatchSize:    cfg.Dispatcher.BatchSize,
			PollInterval: cfg.Dispatcher.PollInterval(),
			SendTimeout:  cfg.Dispatcher.SendTimeout(),
		},
		appLogger,
		m,
	)

	janitor := worker.NewJanitor(
		queueRepo,
		worker.JanitorConfig{
			Interval:      time.Duration(cfg.Janitor.IntervalSeconds) * time.Second,
			StuckAfter:    time.Duration(cfg.Janitor.StuckAfterMinutes) * time.Minute,
			RetentionDays: cfg.Janitor.RetentionDays,
			RetrySweepAge: time.Duration(cfg.Janitor.RetrySweepHours) * time.Hour,
		},
		appLogger,
		m,
	)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		janitor.Start(ctx)
	}()
	wg.Wait()
}

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}
