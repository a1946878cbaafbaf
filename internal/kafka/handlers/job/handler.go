package job

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/subcat/internal/jobfile"
	"github.com/aliskhannn/subcat/internal/model"
)

// service defines the interface for running received jobs.
type service interface {
	ProcessJob(ctx context.Context, job model.Job) (model.JobResult, error)
}

// Handler handles Kafka messages carrying job descriptors in JSON.
type Handler struct {
	service service
}

// NewHandler creates a new handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Handle decodes the job in msg and runs it.
//
// A job that runs and fails is handled: its failure is recorded and
// published by the service. Handle returns an error only for undecodable
// messages and for failures to record or publish the result.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	job, err := jobfile.Decode(msg.Value, "json")
	if err != nil {
		return fmt.Errorf("decode job: %w", err)
	}

	res, err := h.service.ProcessJob(ctx, job)
	if err != nil {
		return fmt.Errorf("process job %s: %w", job.ID, err)
	}

	zlog.Logger.Info().
		Str("job_id", res.ID.String()).
		Str("status", res.Status).
		Str("output", res.OutputPath).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("job handled")

	return nil
}
