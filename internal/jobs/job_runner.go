package jobs

import (
	"context"

	"chronobank/internal/config"
	"chronobank/internal/logger"
)

type LoanSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

type InvestmentSweeper interface {
	SweepMatured(ctx context.Context) (int, error)
}

type NotificationRelay interface {
	Run(ctx context.Context) (int, error)
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Loans       LoanSweeper
	Investments InvestmentSweeper
	Relay       NotificationRelay
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	log := logger.WithService("jobs")
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	log.Info("Starting job", "job", jobName)
	jobFunc()
	log.Info("Job completed", "job", jobName)
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.SweepOverdueLoans()
	jr.SweepMaturedInvestments()
	jr.RelayNotifications()
}
