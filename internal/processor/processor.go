package processor

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/subcat/internal/compositor"
	"github.com/aliskhannn/subcat/internal/loader"
	"github.com/aliskhannn/subcat/internal/metrics"
	"github.com/aliskhannn/subcat/internal/model"
)

// Stages a job can fail in.
const (
	StageLoad   = "load"
	StageEncode = "encode"
)

// PipelineError is a fatal job failure: the first load error of any entry,
// or the encode error.
type PipelineError struct {
	JobID uuid.UUID
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// imageLoader produces the crop of a single job entry.
type imageLoader interface {
	Load(ctx context.Context, index int, src model.SourceImage) (loader.Crop, error)
}

// imageEncoder encodes and stores the composite.
type imageEncoder interface {
	Write(ctx context.Context, canvas *image.NRGBA, dir, filename string, f model.OutputFormat) (string, error)
}

// Processor runs jobs: it loads every entry concurrently, stacks the crops
// in the declared order and writes the encoded result.
type Processor struct {
	loader      imageLoader
	encoder     imageEncoder
	metrics     *metrics.Metrics
	concurrency int
}

// New creates a new Processor. At most concurrency entries of a job are
// loaded at once; a non-positive value means GOMAXPROCS.
func New(l imageLoader, e imageEncoder, m *metrics.Metrics, concurrency int) *Processor {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Processor{
		loader:      l,
		encoder:     e,
		metrics:     m,
		concurrency: concurrency,
	}
}

// Process runs job and returns the path of the written output.
//
// The job is validated before any I/O; an empty job fails with
// model.ErrEmptyJob. Any entry failing to load fails the whole job with a
// *PipelineError and nothing is written.
func (p *Processor) Process(ctx context.Context, job model.Job) (dst string, err error) {
	finish := p.metrics.StartJob()
	defer func() {
		finish(err == nil)
	}()

	if err := job.Validate(); err != nil {
		return "", err
	}

	zlog.Logger.Info().
		Str("job_id", job.ID.String()).
		Int("images", len(job.Images)).
		Str("format", job.Format.String()).
		Msg("processing job")

	crops, err := p.gather(ctx, job.ID, job.Images)
	if err != nil {
		return "", &PipelineError{JobID: job.ID, Stage: StageLoad, Err: err}
	}

	done := p.metrics.Composite()
	canvas := compositor.Stack(crops)
	done()

	zlog.Logger.Debug().
		Str("job_id", job.ID.String()).
		Int("width", canvas.Bounds().Dx()).
		Int("height", canvas.Bounds().Dy()).
		Msg("crops stacked")

	dst, err = p.encoder.Write(ctx, canvas, job.Dir, job.Filename, job.Format)
	if err != nil {
		return "", &PipelineError{JobID: job.ID, Stage: StageEncode, Err: err}
	}

	zlog.Logger.Info().
		Str("job_id", job.ID.String()).
		Str("output", dst).
		Msg("job processed")

	return dst, nil
}
