package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/pichator/pichator/internal/jobs"
	"github.com/pichator/pichator/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DepartmentWarmer rebuilds department reports for a period.
type DepartmentWarmer interface {
	WarmDepartments(ctx context.Context, period string) (int, error)
}

// DepartmentWarmupJob pre-populates the department report cache so the
// first manager of the day does not pay for the aggregation.
type DepartmentWarmupJob struct {
	Warmer  DepartmentWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
	clock   func() time.Time
}

// NewDepartmentWarmupJob wires dependencies for the warmup handler.
func NewDepartmentWarmupJob(warmer DepartmentWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepartmentWarmupJob {
	return &DepartmentWarmupJob{
		Warmer:  warmer,
		Logger:  logger,
		Metrics: metrics,
		Timeout: 5 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes department warmup tasks.
func (j *DepartmentWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Warmer == nil {
		return errors.New("department warmup: handler not configured")
	}
	var payload DepartmentWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	start := j.now()
	if payload.Period == "" {
		payload.Period = shared.CurrentPeriod(start)
	}

	tracker := j.metrics().Track(TaskDepartmentWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("period", payload.Period))
	logger.Info("starting department warmup")

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	warmed, err := j.Warmer.WarmDepartments(ctx, payload.Period)
	j.metrics().AddWarmed(warmed)
	if err != nil {
		logger.Error("department warmup", slog.Int("warmed", warmed), slog.Any("error", err))
		return err
	}
	logger.Info("completed department warmup", slog.Int("departments", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *DepartmentWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDepartmentWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDepartmentWarmup))
}

func (j *DepartmentWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DepartmentWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
