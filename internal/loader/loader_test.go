package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/subcat/internal/metrics"
	"github.com/aliskhannn/subcat/internal/model"
	"github.com/aliskhannn/subcat/internal/storage/file"
	fixture "github.com/aliskhannn/subcat/internal/testutil"
)

func newLoader() *Loader {
	return New(file.NewLocal(""), metrics.New(metrics.Options{}))
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := fixture.Pattern(80, 60, 1)
	path := fixture.Save(t, dir, "src.png", src)

	crop, err := newLoader().Load(context.Background(), 3, model.SourceImage{
		Path:    path,
		OffsetX: 10,
		OffsetY: 20,
		Width:   30,
		Height:  15,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, crop.Index)
	assert.Equal(t, image.Rect(0, 0, 30, 15), crop.Image.Bounds())

	for _, p := range []image.Point{{0, 0}, {29, 0}, {0, 14}, {29, 14}, {12, 7}} {
		assert.Equal(t, fixture.NRGBA(src, p.X+10, p.Y+20), crop.Image.NRGBAAt(p.X, p.Y), "pixel %v", p)
	}
}

func TestLoader_LoadWholeImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := fixture.Save(t, dir, "src.png", fixture.Pattern(40, 20, 2))

	crop, err := newLoader().Load(context.Background(), 0, model.SourceImage{Path: path, Width: 40, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), crop.Image.Bounds())
}

func TestLoader_DetectsFormatFromContent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, fixture.Pattern(10, 10, 3)))

	// PNG bytes behind a .jpg name.
	path := fixture.WriteFile(t, t.TempDir(), "misnamed.jpg", buf.Bytes())

	m := metrics.New(metrics.Options{})
	crop, err := New(file.NewLocal(""), m).Load(context.Background(), 0, model.SourceImage{Path: path, Width: 10, Height: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, crop.Image.Bounds().Dx())
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pngPath := fixture.Save(t, dir, "src.png", fixture.Pattern(50, 50, 4))
	garbage := fixture.WriteFile(t, dir, "garbage.png", []byte("definitely not an image"))
	zip := fixture.WriteFile(t, dir, "archive.png", append([]byte("PK\x03\x04"), make([]byte, 64)...))
	empty := fixture.WriteFile(t, dir, "empty.png", nil)

	tests := []struct {
		name string
		src  model.SourceImage
		kind error
	}{
		{
			name: "missing file",
			src:  model.SourceImage{Path: filepath.Join(dir, "missing.png"), Width: 1, Height: 1},
			kind: ErrIO,
		},
		{
			name: "not an image",
			src:  model.SourceImage{Path: garbage, Width: 1, Height: 1},
			kind: ErrDecode,
		},
		{
			name: "archive content",
			src:  model.SourceImage{Path: zip, Width: 1, Height: 1},
			kind: ErrDecode,
		},
		{
			name: "empty file",
			src:  model.SourceImage{Path: empty, Width: 1, Height: 1},
			kind: ErrDecode,
		},
		{
			name: "too wide",
			src:  model.SourceImage{Path: pngPath, Width: 51, Height: 10},
			kind: ErrCropOutOfBounds,
		},
		{
			name: "offset pushes past bottom",
			src:  model.SourceImage{Path: pngPath, OffsetY: 45, Width: 10, Height: 6},
			kind: ErrCropOutOfBounds,
		},
		{
			name: "offset pushes past right edge",
			src:  model.SourceImage{Path: pngPath, OffsetX: 41, Width: 10, Height: 6},
			kind: ErrCropOutOfBounds,
		},
		{
			name: "empty crop",
			src:  model.SourceImage{Path: pngPath, Width: 0, Height: 6},
			kind: ErrCropOutOfBounds,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := newLoader().Load(context.Background(), 7, tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, 7, le.Index)
			assert.Equal(t, tt.src.Path, le.Path)
			assert.Contains(t, err.Error(), tt.src.Path)
		})
	}
}

func TestLoader_MissingFileWrapsCause(t *testing.T) {
	t.Parallel()

	_, err := newLoader().Load(context.Background(), 0, model.SourceImage{
		Path:   filepath.Join(t.TempDir(), "missing.png"),
		Width:  1,
		Height: 1,
	})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoader_CanceledContext(t *testing.T) {
	t.Parallel()

	path := fixture.Save(t, t.TempDir(), "src.png", fixture.Pattern(4, 4, 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newLoader().Load(ctx, 0, model.SourceImage{Path: path, Width: 1, Height: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
