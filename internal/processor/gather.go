package processor

import (
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/subcat/internal/model"
)

// loadResult is what a loader goroutine hands back, tagged with the index
// of its entry.
type loadResult struct {
	index int
	image *image.NRGBA
	err   error
}

// gather loads every entry in its own goroutine and returns the crops
// indexed by entry position, whatever order they complete in.
//
// The first failure cancels the remaining loads and is returned at once.
// Results that arrive afterwards are drained in the background and logged.
func (p *Processor) gather(ctx context.Context, jobID uuid.UUID, images []model.SourceImage) ([]*image.NRGBA, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so that no loader blocks on send after gather returns.
	results := make(chan loadResult, len(images))
	sem := make(chan struct{}, p.concurrency)

	for i, src := range images {
		go func(i int, src model.SourceImage) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- loadResult{index: i, err: fmt.Errorf("image %d (%s): %w", i, src.Path, ctx.Err())}
				return
			}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results <- loadResult{index: i, err: fmt.Errorf("image %d (%s): %w", i, src.Path, err)}
				return
			}

			crop, err := p.loader.Load(ctx, i, src)
			results <- loadResult{index: i, image: crop.Image, err: err}
		}(i, src)
	}

	crops := make([]*image.NRGBA, len(images))
	for received := 1; received <= len(images); received++ {
		r := <-results
		if r.err != nil {
			zlog.Logger.Error().
				Err(r.err).
				Str("job_id", jobID.String()).
				Int("index", r.index).
				Str("path", images[r.index].Path).
				Msg("failed to load image")

			go discard(jobID, results, len(images)-received)

			return nil, r.err
		}

		crops[r.index] = r.image
	}

	return crops, nil
}

// discard receives the n outstanding results of a failed job.
func discard(jobID uuid.UUID, results <-chan loadResult, n int) {
	for i := 0; i < n; i++ {
		r := <-results

		ev := zlog.Logger.Debug().
			Str("job_id", jobID.String()).
			Int("index", r.index)
		if r.err != nil {
			ev = ev.Err(r.err)
		}
		ev.Msg("discarded image of failed job")
	}
}
