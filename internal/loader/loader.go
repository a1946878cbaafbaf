package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/sourcegraph/conc/panics"
	"github.com/wb-go/wbf/zlog"

	// Registers the webp decoder with image.Decode.
	_ "golang.org/x/image/webp"

	"github.com/aliskhannn/subcat/internal/metrics"
	"github.com/aliskhannn/subcat/internal/model"
)

const unknownContentType = "unknown"

// fileStorage defines the interface for reading source images.
type fileStorage interface {
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// Crop is the decoded sub-image of one job entry.
// Image bounds always start at (0, 0).
type Crop struct {
	Index int
	Image *image.NRGBA
}

// Loader reads, decodes and crops source images. It holds no per-call
// state and is safe for concurrent use.
type Loader struct {
	fileStorage fileStorage
	metrics     *metrics.Metrics
}

// New creates a new Loader reading from the given storage.
func New(fs fileStorage, m *metrics.Metrics) *Loader {
	return &Loader{fileStorage: fs, metrics: m}
}

// Load produces the crop for entry index of a job. Failures are returned as
// *LoadError. The rectangle is never clamped: a crop reaching past the
// decoded image fails with ErrCropOutOfBounds.
func (l *Loader) Load(ctx context.Context, index int, src model.SourceImage) (Crop, error) {
	done := l.metrics.LoadImage()
	defer done()

	raw, err := l.read(ctx, src.Path)
	if err != nil {
		return Crop{}, &LoadError{Index: index, Path: src.Path, Kind: ErrIO, Err: err}
	}

	l.metrics.BytesRead(len(raw))

	// The format is detected from content only.
	contentType := unknownContentType
	if t, _ := filetype.Match(raw); t != filetype.Unknown {
		if !filetype.IsImage(raw) {
			return Crop{}, &LoadError{
				Index: index,
				Path:  src.Path,
				Kind:  ErrDecode,
				Err:   fmt.Errorf("unsupported content type %s", t.MIME.Value),
			}
		}
		contentType = t.MIME.Value
	}

	if err := ctx.Err(); err != nil {
		return Crop{}, fmt.Errorf("image %d (%s): %w", index, src.Path, err)
	}

	img, err := decode(raw)
	if err != nil {
		return Crop{}, &LoadError{Index: index, Path: src.Path, Kind: ErrDecode, Err: err}
	}

	rect, err := cropRect(img.Bounds(), src)
	if err != nil {
		return Crop{}, &LoadError{Index: index, Path: src.Path, Kind: ErrCropOutOfBounds, Err: err}
	}

	l.metrics.ImageLoaded(contentType)

	zlog.Logger.Debug().
		Int("index", index).
		Str("path", src.Path).
		Str("content_type", contentType).
		Str("crop", rect.String()).
		Msg("image loaded")

	return Crop{Index: index, Image: imaging.Crop(img, rect)}, nil
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	r, err := l.fileStorage.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return raw, nil
}

// decode turns a panicking decoder into an error.
func decode(raw []byte) (img image.Image, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		img, err = imaging.Decode(bytes.NewReader(raw))
	})
	if r := pc.Recovered(); r != nil {
		return nil, r.AsError()
	}

	return img, err
}

// cropRect returns the crop rectangle of src in the coordinate space of bounds.
func cropRect(bounds image.Rectangle, src model.SourceImage) (image.Rectangle, error) {
	x, y := int(src.OffsetX), int(src.OffsetY)
	rect := image.Rect(x, y, x+int(src.Width), y+int(src.Height)).Add(bounds.Min)

	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("empty crop %dx%d", src.Width, src.Height)
	}
	if !rect.In(bounds) {
		return image.Rectangle{}, fmt.Errorf("crop %dx%d at (%d,%d) exceeds image %dx%d",
			src.Width, src.Height, x, y, bounds.Dx(), bounds.Dy())
	}

	return rect, nil
}
