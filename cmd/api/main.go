package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evlink/warranty-notify/internal/config"
	"github.com/evlink/warranty-notify/internal/handler"
	campaignHandler "github.com/evlink/warranty-notify/internal/handler/campaign"
	notificationHandler "github.com/evlink/warranty-notify/internal/handler/notification"
	"github.com/evlink/warranty-notify/internal/repository/postgres"
	"github.com/evlink/warranty-notify/internal/router"
	campaignService "github.com/evlink/warranty-notify/internal/service/campaign"
	notificationService "github.com/evlink/warranty-notify/internal/service/notification"
	"github.com/evlink/warranty-notify/internal/service/recipient"
	"github.com/evlink/warranty-notify/pkg/logger"
	"github.com/evlink/warranty-notify/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	notificationRepo := postgres.NewNotificationRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	campaignRepo := postgres.NewCampaignRepository(db)
	recipientRepo := postgres.NewRecipientRepository(db)

	// Services
	m := metrics.New("warranty_notify_api")
	resolver := recipient.NewResolver(recipientRepo, time.Minute)
	notificationSvc := notificationService.NewService(notificationRepo, queueRepo, resolver, appLogger)
	campaignSvc := campaignService.NewService(campaignRepo, queueRepo, recipientRepo, appLogger, m)

	// Router
	r := router.NewRouter(
		handler.NewHandler(),
		router.Config{},
		notificationHandler.NewHandler(notificationSvc),
		campaignHandler.NewHandler(campaignSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}
}
