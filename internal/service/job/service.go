package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"go.uber.org/multierr"

	"github.com/aliskhannn/subcat/internal/model"
)

// processor runs a single job and returns the path of its output.
type processor interface {
	Process(ctx context.Context, job model.Job) (string, error)
}

// repository records job runs.
type repository interface {
	SaveJob(ctx context.Context, job model.Job) error
	UpdateJob(ctx context.Context, id uuid.UUID, outputPath, status, message string) error
}

// publisher announces finished jobs (e.g., on a Kafka topic).
type publisher interface {
	Publish(ctx context.Context, res model.JobResult) error
}

// Service runs jobs received in worker mode and keeps their records.
type Service struct {
	processor processor
	repo      repository
	publisher publisher
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates a new Service. A positive timeout bounds each job run.
func NewService(p processor, r repository, pub publisher, timeout time.Duration) *Service {
	return &Service{
		processor: p,
		repo:      r,
		publisher: pub,
		timeout:   timeout,
		now:       time.Now,
	}
}

// ProcessJob records job as pending, runs it, stores the outcome and
// publishes it.
//
// A failed job is a normal outcome: it is reported in the returned result
// with status failed. The error is non-nil only when the job could not be
// recorded or its result could not be stored or published.
func (s *Service) ProcessJob(ctx context.Context, job model.Job) (model.JobResult, error) {
	res := model.JobResult{
		ID:        job.ID,
		StartedAt: s.now(),
	}

	if err := s.repo.SaveJob(ctx, job); err != nil {
		return res, fmt.Errorf("process: failed to save job: %w", err)
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	dst, err := s.processor.Process(runCtx, job)
	res.FinishedAt = s.now()
	if err != nil {
		res.Status = model.StatusFailed
		res.Message = err.Error()

		zlog.Logger.Warn().
			Err(err).
			Str("job_id", job.ID.String()).
			Msg("job failed")
	} else {
		res.Status = model.StatusProcessed
		res.OutputPath = dst
	}

	var errs error
	if err := s.repo.UpdateJob(ctx, job.ID, res.OutputPath, res.Status, res.Message); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("process: failed to update job: %w", err))
	}
	if err := s.publisher.Publish(ctx, res); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("process: failed to publish result: %w", err))
	}

	return res, errs
}
