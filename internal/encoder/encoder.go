package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/subcat/internal/metrics"
	"github.com/aliskhannn/subcat/internal/model"
)

// Kinds of encode failures, matched with errors.Is.
var (
	ErrIO    = errors.New("io")
	ErrCodec = errors.New("codec")
)

// Background is the opaque color that transparent canvas areas are
// flattened against for formats without an alpha channel.
var Background = color.NRGBA{A: 255}

// EncodeError reports a failure to encode or store the output image.
type EncodeError struct {
	Path string // destination, dir/filename.ext
	Kind error  // ErrIO or ErrCodec
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("output %s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// fileStorage defines the interface for storing the encoded output.
type fileStorage interface {
	Save(ctx context.Context, dir, filename string, src io.Reader) (string, error)
}

// Encoder serializes canvases and stores them.
type Encoder struct {
	fileStorage fileStorage
	metrics     *metrics.Metrics
}

// New creates a new Encoder writing to the given storage.
func New(fs fileStorage, m *metrics.Metrics) *Encoder {
	return &Encoder{fileStorage: fs, metrics: m}
}

// Write encodes canvas in format f and stores it as dir/filename plus the
// format's extension, replacing any existing file. It returns the stored path.
// Failures are returned as *EncodeError and are not retried.
func (e *Encoder) Write(ctx context.Context, canvas *image.NRGBA, dir, filename string, f model.OutputFormat) (string, error) {
	done := e.metrics.Encode()
	defer done()

	name := filename + f.Extension()
	target := filepath.Join(dir, name)

	// Encode fully before touching the destination.
	var buf bytes.Buffer
	if err := Encode(&buf, canvas, f); err != nil {
		return "", &EncodeError{Path: target, Kind: ErrCodec, Err: err}
	}
	size := buf.Len()

	dst, err := e.fileStorage.Save(ctx, dir, name, &buf)
	if err != nil {
		return "", &EncodeError{Path: target, Kind: ErrIO, Err: err}
	}

	e.metrics.BytesWritten(size)

	zlog.Logger.Debug().
		Str("path", dst).
		Str("format", f.String()).
		Int("bytes", size).
		Msg("output written")

	return dst, nil
}

// Encode writes img to w in format f.
//
// PNG output is lossless and keeps the alpha channel. JPEG output is
// flattened against Background first.
func Encode(w io.Writer, img *image.NRGBA, f model.OutputFormat) error {
	switch f.Kind {
	case model.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(f.Compression)))
	case model.FormatJPEG:
		return imaging.Encode(w, Flatten(img, Background), imaging.JPEG, imaging.JPEGQuality(f.Quality))
	default:
		return fmt.Errorf("unknown output format %v", f.Kind)
	}
}

// Flatten composites img over an opaque background of color bg.
func Flatten(img *image.NRGBA, bg color.Color) *image.NRGBA {
	if img.Opaque() {
		return img
	}

	b := img.Bounds()
	background := imaging.New(b.Dx(), b.Dy(), bg)

	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

func pngLevel(c model.PNGCompression) png.CompressionLevel {
	if c == model.PNGBest {
		return png.BestCompression
	}

	return png.BestSpeed
}
