package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/app"
	"github.com/segyhp/fee-ledger/internal/config"
	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting billing scheduler")

	ledger, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer ledger.Close()

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.SchedulerLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if err := setupCronJobs(c, cfg, ledger, log); err != nil {
		log.WithError(err).Fatal("failed to schedule jobs")
	}

	c.Start()
	log.Info("scheduler started")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, ledger *app.App, log *logrus.Logger) error {
	loc := cfg.SchedulerLocation()

	// Lock policy fines onto everything that went overdue
	_, err := c.AddFunc(cfg.Scheduler.FineAssessmentSpec, func() {
		run(log, "fine assessment", func(ctx context.Context) (*domain.Job, error) {
			return ledger.Service.AssessOverdueFines(ctx, time.Now().In(loc))
		})
	})
	if err != nil {
		return err
	}

	// Remind payers about overdue balances
	_, err = c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		run(log, "overdue reminders", func(ctx context.Context) (*domain.Job, error) {
			return ledger.Service.SendOverdueReminders(ctx, time.Now().In(loc))
		})
	})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"fine_assessment": cfg.Scheduler.FineAssessmentSpec,
		"reminders":       cfg.Scheduler.ReminderSpec,
		"timezone":        loc.String(),
	}).Info("cron jobs scheduled")
	return nil
}

func run(log *logrus.Logger, name string, job func(ctx context.Context) (*domain.Job, error)) {
	entry := log.WithField("job", name)
	entry.Info("job starting")

	result, err := job(context.Background())
	if err != nil {
		entry.WithError(err).Error("job failed")
		return
	}

	entry.WithFields(logrus.Fields{
		"job_id":    result.ID,
		"status":    result.Status,
		"processed": result.Processed,
		"failed":    result.Failed,
	}).Info("job finished")
}
