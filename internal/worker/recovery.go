package worker

import (
	"context"

	"go.uber.org/zap"
)

// recoverySweepJob releases payout claims that never reached a terminal
// state, usually because a previous run died between the claim and the
// finalizing transaction.
func (w *Worker) recoverySweepJob(ctx context.Context, run *jobRun) error {
	recovered, err := w.payoutSvc.RecoverStuckPayouts(ctx, w.cfg.RecoveryThreshold)
	run.AddProcessed(recovered)
	if err != nil {
		w.logWorkerError(run, "worker.recovery.failed", "", err,
			zap.Int("recovered", recovered),
		)
		return err
	}
	if recovered > 0 {
		w.log.Warn("stuck payout claims recovered",
			zap.Int("recovered", recovered),
			zap.Duration("threshold", w.cfg.RecoveryThreshold),
		)
	}
	return nil
}
