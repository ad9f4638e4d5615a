package jobs

import (
	"time"

	"consultation-queue-backend/internal/config"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/metrics"
	"consultation-queue-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Queue      service.QueueService
	AdminCodes service.AdminCodeService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery; jobFunc reports success
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func() bool) {
	start := time.Now()
	ok := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
		metrics.RecordJobRun(jobName, time.Since(start), ok)
	}()

	logger.Info("Starting job", "job", jobName)
	ok = jobFunc()
	logger.Info("Job completed", "job", jobName, "success", ok, "duration", time.Since(start))
}

// RunAll runs every queue maintenance job (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.RecalculateApprovedPositions()
	jr.ReconcileWaitingPositions()
}
