package worker

import (
	"time"

	obsmetrics "github.com/territorio/backend/internal/observability/metrics"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (w *Worker) newJobRun(job string) *jobRun {
	return &jobRun{
		job:       job,
		runID:     w.genID.Generate().String(),
		startedAt: time.Now(),
	}
}

func (w *Worker) logJobStart(run *jobRun) {
	w.log.Info("worker.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (w *Worker) logJobFinish(run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	if run.errorCount > 0 {
		w.log.Warn("worker.job.finish", fields...)
		return
	}
	w.log.Info("worker.job.finish", fields...)
}

func (w *Worker) logWorkerError(run *jobRun, msg string, territoryID string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	baseFields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("territory_id", territoryID),
		zap.String("error_type", obsmetrics.ClassifyWorkerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsWorkerErrorRetryable(err)),
		zap.Error(err),
	}
	w.log.Error(msg, append(baseFields, fields...)...)
}
