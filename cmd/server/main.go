package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/app"
	"github.com/segyhp/fee-ledger/internal/config"
	"github.com/segyhp/fee-ledger/internal/handler"
	"github.com/segyhp/fee-ledger/pkg/logger"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.IsDevelopment() {
		log.WithFields(logrus.Fields{
			"driver":       cfg.Database.Driver,
			"auto_migrate": cfg.Database.AutoMigrate,
			"smtp":         cfg.SMTPEnabled(),
		}).Warn("running in development mode")
	}

	ledger, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer ledger.Close()

	billingHandler := handler.NewBillingHandler(ledger.Service, log)
	healthHandler := handler.NewHealthHandler(ledger.DB, ledger.Redis, cfg.Health.Timeout)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler.NewRouter(billingHandler, healthHandler, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server exited")
}
