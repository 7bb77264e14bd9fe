package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/clock"
	obsmetrics "github.com/territorio/backend/internal/observability/metrics"
	payoutdomain "github.com/territorio/backend/internal/payout/domain"
	territorydomain "github.com/territorio/backend/internal/territory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidParams = errors.New("worker: missing dependency")

// systemActor is stamped as InitiatedBy on payouts the worker creates.
const systemActor = "system:payout-worker"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	PayoutSvc   payoutdomain.Service
	Territories territorydomain.Repository
	Config      Config `optional:"true"`
}

// Worker drives the payout pipeline on a fixed interval: it batches due
// territories and sweeps claims abandoned by crashed runs.
type Worker struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	payoutSvc   payoutdomain.Service
	territories territorydomain.Repository
}

func New(p Params) (*Worker, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.PayoutSvc == nil || p.Territories == nil {
		return nil, ErrInvalidParams
	}
	return &Worker{
		db:          p.DB,
		log:         p.Log.Named("worker").With(zap.String("component", "payout_worker")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		payoutSvc:   p.PayoutSvc,
		territories: p.Territories,
	}, nil
}

func (w *Worker) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := w.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := w.newJobRun(name)
	w.logJobStart(run)
	workerMetrics := obsmetrics.Worker()
	workerMetrics.IncJobRun(name)

	err := fn(ctx, run)
	workerMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	w.logJobFinish(run)
	workerMetrics.AddBatchProcessed(name, run.processedCount)
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		workerMetrics.IncJobTimeout(name)
	}
	workerMetrics.IncJobError(name, err)
	if isTimeout {
		w.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (w *Worker) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"payout_batching", func(ctx context.Context) error {
			return w.runJob(ctx, "payout_batching", w.cfg.TickTimeout, w.payoutBatchingJob)
		}},
		{"recovery_sweep", func(ctx context.Context) error {
			return w.runJob(ctx, "recovery_sweep", w.cfg.TickTimeout, w.recoverySweepJob)
		}},
	}

	for _, job := range jobs {
		if w.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := w.clock.Now().Add(w.cfg.RunInterval)
	workerMetrics := obsmetrics.Worker()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			workerMetrics.ObserveRunLoopLag(runLag)
		}
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("worker run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(w.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs enables everything (monolith mode).
	if len(w.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range w.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// payoutBatchingJob walks every active territory and pays out the ones
// whose schedule is due. A territory failing never blocks the rest.
func (w *Worker) payoutBatchingJob(ctx context.Context, run *jobRun) error {
	territories, err := w.territories.ListActive(ctx, w.db)
	if err != nil {
		w.logWorkerError(run, "worker.territory.list.failed", "", err)
		return err
	}

	now := w.clock.Now()
	var jobErr error

	for _, t := range territories {
		if ctx.Err() != nil {
			jobErr = errors.Join(jobErr, ctx.Err())
			break
		}

		cfg, err := w.payoutSvc.ResolveConfig(ctx, t.ID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			w.logWorkerError(run, "worker.payout.config.failed", t.ID.String(), err)
			continue
		}
		if !cfg.AutoPayoutEnabled {
			continue
		}
		if !w.frequencyDue(cfg.Frequency, now) {
			continue
		}

		paid, err := w.payoutSvc.ProcessPendingPayouts(ctx, t.ID, systemActor)
		run.AddProcessed(paid)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			w.logWorkerError(run, "worker.payout.process.failed", t.ID.String(), err,
				zap.Int("paid", paid),
			)
			continue
		}
		if paid > 0 {
			w.log.Info("territory payouts processed",
				zap.String("territory_id", t.ID.String()),
				zap.Int("paid", paid),
			)
		}
	}

	return jobErr
}

// frequencyDue reports whether a territory's payout schedule fires at
// now. Daily fires on every tick; weekly and monthly fire within the
// configured window after their boundary so a slow tick still catches
// the slot. Manual territories never fire.
func (w *Worker) frequencyDue(frequency payoutdomain.PayoutFrequency, now time.Time) bool {
	now = now.UTC()
	switch frequency {
	case payoutdomain.FrequencyDaily:
		return true
	case payoutdomain.FrequencyWeekly:
		if now.Weekday() != time.Monday {
			return false
		}
		return withinWindow(now, w.cfg.FrequencyWindow)
	case payoutdomain.FrequencyMonthly:
		if now.Day() != 1 {
			return false
		}
		return withinWindow(now, w.cfg.FrequencyWindow)
	default:
		return false
	}
}

func withinWindow(now time.Time, window time.Duration) bool {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return now.Sub(midnight) <= window
}
