package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/leadpilot/pkg/followup"
	"github.com/jordanlanch/leadpilot/pkg/lifecycle"
)

// CronManager manages the recurring background jobs: the follow-up send tick
// and the inbound reply poll.
type CronManager struct {
	cron       *cron.Cron
	scheduler  *followup.Scheduler
	reconciler *lifecycle.Reconciler
	logger     *log.Logger

	tickInterval time.Duration
	pollInterval time.Duration
}

// NewCronManager creates a new cron manager
func NewCronManager(scheduler *followup.Scheduler, reconciler *lifecycle.Reconciler, tickInterval, pollInterval time.Duration, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	if tickInterval == 0 {
		tickInterval = time.Minute
	}
	if pollInterval == 0 {
		pollInterval = 30 * time.Second
	}

	return &CronManager{
		cron:         cron.New(),
		scheduler:    scheduler,
		reconciler:   reconciler,
		logger:       logger,
		tickInterval: tickInterval,
		pollInterval: pollInterval,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Every minute: promote due follow-up drafts to sent
	_, err := cm.cron.AddFunc("@every "+cm.tickInterval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cm.tickInterval)
		defer cancel()

		if err := cm.scheduler.ProcessDueCampaigns(ctx); err != nil {
			cm.logger.Printf("❌ Follow-up tick failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	// Every 30 seconds: poll the inbox and reconcile replies
	_, err = cm.cron.AddFunc("@every "+cm.pollInterval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cm.pollInterval)
		defer cancel()

		if err := cm.reconciler.PollReplies(ctx); err != nil {
			cm.logger.Printf("❌ Reply poll failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - Every %s: process due follow-ups", cm.tickInterval)
	cm.logger.Printf("  - Every %s: poll inbox for replies", cm.pollInterval)

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler and waits for running jobs to finish
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	ctx := cm.cron.Stop()
	<-ctx.Done()
}
