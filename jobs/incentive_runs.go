package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashiercounter/internal/incentive"
	jobmetrics "github.com/odyssey-erp/cashiercounter/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IncentiveScheduler describes the periodic incentive routines.
type IncentiveScheduler interface {
	RunDaily(ctx context.Context) (incentive.DailyResult, error)
	RunWeekly(ctx context.Context) (incentive.WeeklyResult, error)
	RunCleanup(ctx context.Context) (incentive.CleanupResult, error)
}

// IncentiveJob adapts the scheduler to Asynq task handlers.
type IncentiveJob struct {
	Scheduler IncentiveScheduler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewIncentiveJob constructs the job handlers.
func NewIncentiveJob(scheduler IncentiveScheduler, logger *slog.Logger, metrics *jobmetrics.Metrics) *IncentiveJob {
	return &IncentiveJob{
		Scheduler: scheduler,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers lists the task handlers served by the worker.
func (j *IncentiveJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskIncentiveDaily, Handler: j.HandleDaily},
		{Type: TaskIncentiveWeekly, Handler: j.HandleWeekly},
		{Type: TaskIncentiveCleanup, Handler: j.HandleCleanup},
	}
}

// HandleDaily executes the daily run.
func (j *IncentiveJob) HandleDaily(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Scheduler == nil {
		return errors.New("incentive daily: scheduler not configured")
	}
	tracker := j.metrics().Track(TaskIncentiveDaily)
	start := j.now()

	result, err := j.Scheduler.RunDaily(ctx)
	j.metrics().AddReminders("sent", result.RemindersSent)
	j.metrics().AddReminders("failed", result.ReminderFailure)
	if err != nil {
		j.log(TaskIncentiveDaily).Error("daily incentive run", slog.Any("error", err))
		return tracker.End(err)
	}
	j.log(TaskIncentiveDaily).Info("daily incentive run finished",
		slog.Int64("activated", result.Activated),
		slog.Int64("deactivated", result.Deactivated),
		slog.Int("reminders_sent", result.RemindersSent),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return tracker.End(nil)
}

// HandleWeekly executes the weekly snapshot run. Individual supplier
// failures are counted but do not fail the task.
func (j *IncentiveJob) HandleWeekly(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Scheduler == nil {
		return errors.New("incentive weekly: scheduler not configured")
	}
	tracker := j.metrics().Track(TaskIncentiveWeekly)
	start := j.now()

	result, err := j.Scheduler.RunWeekly(ctx)
	if err != nil {
		j.log(TaskIncentiveWeekly).Error("weekly incentive run", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().AddBatchFailures(TaskIncentiveWeekly, len(result.Failed))
	j.log(TaskIncentiveWeekly).Info("weekly incentive run finished",
		slog.Int("suppliers", result.Suppliers),
		slog.Int("written", result.Written),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return tracker.End(nil)
}

// HandleCleanup executes the retention cleanup.
func (j *IncentiveJob) HandleCleanup(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Scheduler == nil {
		return errors.New("incentive cleanup: scheduler not configured")
	}
	tracker := j.metrics().Track(TaskIncentiveCleanup)
	result, err := j.Scheduler.RunCleanup(ctx)
	if err != nil {
		j.log(TaskIncentiveCleanup).Error("incentive cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.log(TaskIncentiveCleanup).Info("incentive cleanup finished",
		slog.Int64("promotions_deleted", result.PromotionsDeleted),
		slog.Int64("snapshots_archived", result.SnapshotsArchived),
	)
	return tracker.End(nil)
}

// CronRegistrations returns the recurring schedule of the incentive runs.
func CronRegistrations(daily, weekly, cleanup string) []CronRegistration {
	var out []CronRegistration
	for _, entry := range []struct{ spec, task string }{
		{daily, TaskIncentiveDaily},
		{weekly, TaskIncentiveWeekly},
		{cleanup, TaskIncentiveCleanup},
	} {
		if entry.spec == "" {
			continue
		}
		out = append(out, CronRegistration{Spec: entry.spec, Task: NewIncentiveTask(entry.task)})
	}
	return out
}

func (j *IncentiveJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IncentiveJob) log(task string) *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *IncentiveJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *IncentiveJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
