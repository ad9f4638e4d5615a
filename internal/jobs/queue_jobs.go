package jobs

import (
	"context"
	"fmt"
	"time"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
)

const jobTimeout = 2 * time.Minute

// RecalculateApprovedPositions renumbers every approved queue. No emails are sent;
// a running server's position monitor picks up any changed rows.
func (jr *JobRunner) RecalculateApprovedPositions() {
	jr.runWithRecovery("RecalculateApprovedPositions", func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		ok := true
		for _, qt := range domain.QueueTypes {
			approved, err := jr.services.Queue.RecalculateQueuePositions(ctx, qt)
			if err != nil {
				logger.Error("Failed to recalculate approved positions", "queue_type", qt, "error", err)
				ok = false
				continue
			}
			logger.Info("Approved positions recalculated", "queue_type", qt, "approved", len(approved))
		}
		return ok
	})
}

// ReconcileWaitingPositions repairs waiting positions written outside the queue service.
func (jr *JobRunner) ReconcileWaitingPositions() {
	jr.runWithRecovery("ReconcileWaitingPositions", func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		ok := true
		for _, qt := range domain.QueueTypes {
			changed, err := jr.services.Queue.ReconcileWaitingPositions(ctx, qt)
			if err != nil {
				logger.Error("Failed to reconcile waiting positions", "queue_type", qt, "error", err)
				ok = false
				continue
			}
			logger.Info("Waiting positions reconciled", "queue_type", qt, "changed", changed)
		}
		return ok
	})
}

// EnsureAdminCodes creates missing admin codes and returns them as printable lines.
func (jr *JobRunner) EnsureAdminCodes() []string {
	var lines []string
	jr.runWithRecovery("EnsureAdminCodes", func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		created, err := jr.services.AdminCodes.EnsureCodes(ctx)
		if err != nil {
			logger.Error("Failed to ensure admin codes", "error", err)
			return false
		}
		for _, role := range domain.AdminRoles {
			if code, ok := created[role]; ok {
				lines = append(lines, fmt.Sprintf("%s: %s", role, code))
			}
		}
		return true
	})
	return lines
}
