package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"equipment-pm-backend/config"
	"equipment-pm-backend/internal/alert"
	"equipment-pm-backend/internal/api"
	"equipment-pm-backend/internal/db"
	"equipment-pm-backend/internal/notification"
	"equipment-pm-backend/internal/scheduler"
	"equipment-pm-backend/internal/store"
	"equipment-pm-backend/internal/ticket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Infof("configuration loaded from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatal("VAPID keys must be configured for push notifications")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	tickets := ticket.NewManager(gormDB, logger)

	dispatcher := notification.NewDispatcher(cfg.WorkerPool.Size, gormDB, &webpushOptions, logger)
	dispatcher.Start(ctx)

	engine := alert.NewEngine(
		appStore,
		tickets,
		dispatcher,
		alert.Thresholds{
			ApproachingDays:  cfg.Alert.ApproachingDays,
			UsageFraction:    cfg.Alert.UsageFraction,
			ApproachingUnits: cfg.Alert.ApproachingUnits,
			WarningUnits:     cfg.Alert.WarningUnits,
		},
		cfg.Alert.SuppressionWindow,
		cfg.Scheduler.Location(),
		logger,
	)

	sched := scheduler.NewService(&cfg.Scheduler, engine, appStore, logger)
	go sched.Run(ctx)

	handler := api.NewHandler(appStore, engine, sched, tickets, &webpushOptions, logger)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server shutdown: %v", err)
	}
	logger.Info("server gracefully stopped")
}
