package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrEmptyJob is returned for a job without any source images.
	ErrEmptyJob = errors.New("job has no images")

	// ErrInvalidJob is returned when a job fails validation for any other reason.
	ErrInvalidJob = errors.New("invalid job")
)

// SourceImage describes a single entry of a job: where to read the image from
// and which rectangle of it ends up in the composite.
type SourceImage struct {
	Path    string `json:"path"`
	OffsetX uint32 `json:"offset_x"` // optional, defaults to 0
	OffsetY uint32 `json:"offset_y"`
	Width   uint32 `json:"width"`
	Height  uint32 `json:"height"`
}

// Job is a request to stack the cropped images vertically, in order,
// and write the result to Dir/Filename with the extension of Format.
type Job struct {
	ID       uuid.UUID     `json:"id"`
	Images   []SourceImage `json:"imgs"` // top to bottom
	Dir      string        `json:"dir"`
	Filename string        `json:"filename"` // without extension
	Format   OutputFormat  `json:"format"`
}

// OutputName returns the output filename including its extension.
func (j Job) OutputName() string {
	return j.Filename + j.Format.Extension()
}

// Validate checks the job before any work is started.
func (j Job) Validate() error {
	if len(j.Images) == 0 {
		return ErrEmptyJob
	}

	for i, img := range j.Images {
		if strings.TrimSpace(img.Path) == "" {
			return fmt.Errorf("%w: image %d: empty path", ErrInvalidJob, i)
		}
		if img.Width == 0 || img.Height == 0 {
			return fmt.Errorf("%w: image %d (%s): crop size %dx%d must be positive",
				ErrInvalidJob, i, img.Path, img.Width, img.Height)
		}
	}

	if strings.TrimSpace(j.Dir) == "" {
		return fmt.Errorf("%w: empty output dir", ErrInvalidJob)
	}
	if strings.TrimSpace(j.Filename) == "" {
		return fmt.Errorf("%w: empty output filename", ErrInvalidJob)
	}
	if strings.ContainsAny(j.Filename, `/\`) {
		return fmt.Errorf("%w: output filename %q contains a path separator", ErrInvalidJob, j.Filename)
	}

	if err := j.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	return nil
}
