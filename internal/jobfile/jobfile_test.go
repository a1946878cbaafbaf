package jobfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/subcat/internal/model"
)

const camelJSON = `{
  "imgs": [
    {"path": "a.png", "offsetY": 10, "offsetX": 5, "width": 100, "height": 50},
    {"path": "b.png", "offsetY": 0, "width": 60, "height": 50}
  ],
  "dir": "/tmp/out",
  "filename": "merged",
  "format": {"Png": "Best"}
}`

func TestDecode_CamelCaseJSON(t *testing.T) {
	job, err := Decode([]byte(camelJSON), "json")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, []model.SourceImage{
		{Path: "a.png", OffsetX: 5, OffsetY: 10, Width: 100, Height: 50},
		{Path: "b.png", OffsetX: 0, OffsetY: 0, Width: 60, Height: 50},
	}, job.Images)
	assert.Equal(t, "/tmp/out", job.Dir)
	assert.Equal(t, "merged", job.Filename)
	assert.Equal(t, model.PNG(model.PNGBest), job.Format)
}

func TestDecode_SnakeCaseYAML(t *testing.T) {
	data := []byte(`
id: 0b9a2f6c-3f1e-4c36-9c7e-9a1d3c0f5e11
imgs:
  - path: a.png
    offset_y: 3
    offset_x: 1
    width: 4
    height: 2
dir: out
filename: merged
format:
  JPG: 85
`)

	job, err := Decode(data, "yaml")
	require.NoError(t, err)

	assert.Equal(t, uuid.MustParse("0b9a2f6c-3f1e-4c36-9c7e-9a1d3c0f5e11"), job.ID)
	assert.Equal(t, []model.SourceImage{{Path: "a.png", OffsetX: 1, OffsetY: 3, Width: 4, Height: 2}}, job.Images)
	assert.Equal(t, model.JPEG(85), job.Format)
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   model.OutputFormat
		err    bool
	}{
		{format: `{"Png": "Fast"}`, want: model.PNG(model.PNGFast)},
		{format: `{"PNG": "best"}`, want: model.PNG(model.PNGBest)},
		{format: `{"png": "Best"}`, want: model.PNG(model.PNGBest)},
		{format: `{"Jpg": 1}`, want: model.JPEG(1)},
		{format: `{"jpeg": 100}`, want: model.JPEG(100)},
		{format: `{"JPG": 0}`, err: true},
		{format: `{"JPG": 101}`, err: true},
		{format: `{"Png": "Medium"}`, err: true},
		{format: `{"Png": 3}`, err: true},
		{format: `{"Gif": 1}`, err: true},
		{format: `{"Png": "Fast", "Jpg": 3}`, err: true},
		{format: `"png"`, err: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.format, func(t *testing.T) {
			data := []byte(`{"imgs": [], "dir": "d", "filename": "f", "format": ` + tt.format + `}`)

			job, err := Decode(data, "json")
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidJob)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, job.Format)
		})
	}
}

func TestDecode_EmptyImagesIsNotAConfigError(t *testing.T) {
	job, err := Decode([]byte(`{"imgs": [], "dir": "d", "filename": "f", "format": {"Png": "Fast"}}`), "json")
	require.NoError(t, err)

	assert.Empty(t, job.Images)
	assert.ErrorIs(t, job.Validate(), model.ErrEmptyJob)
}

func TestDecode_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "no imgs", data: `{"dir": "d", "filename": "f", "format": {"Png": "Fast"}}`},
		{name: "no format", data: `{"imgs": [], "dir": "d", "filename": "f"}`},
		{name: "no offset_y", data: `{"imgs": [{"path": "a", "width": 1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "no width", data: `{"imgs": [{"path": "a", "offsetY": 0, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "no height", data: `{"imgs": [{"path": "a", "offsetY": 0, "width": 1}], "format": {"Png": "Fast"}}`},
		{name: "no path", data: `{"imgs": [{"offsetY": 0, "width": 1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "negative offset", data: `{"imgs": [{"path": "a", "offsetY": -1, "width": 1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "bad id", data: `{"id": "nope", "imgs": [], "format": {"Png": "Fast"}}`},
		{name: "not json", data: `{`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), "json")
			assert.ErrorIs(t, err, ErrInvalidJob)
		})
	}
}

func TestDecode_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name       string
		configType string
		data       string
	}{
		{name: "width overflows uint32", configType: "json", data: `{"imgs": [{"path": "a", "offsetY": 0, "width": 4294967297, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "height way out of range", configType: "json", data: `{"imgs": [{"path": "a", "offsetY": 0, "width": 1, "height": 1e20}], "format": {"Png": "Fast"}}`},
		{name: "fractional offset_y", configType: "json", data: `{"imgs": [{"path": "a", "offsetY": 10.9, "width": 1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "fractional offset_x", configType: "json", data: `{"imgs": [{"path": "a", "offsetX": 0.5, "offsetY": 0, "width": 1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "negative offset_x", configType: "json", data: `{"imgs": [{"path": "a", "offsetX": -3, "offsetY": 0, "width": 1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "negative width", configType: "json", data: `{"imgs": [{"path": "a", "offsetY": 0, "width": -1, "height": 1}], "format": {"Png": "Fast"}}`},
		{name: "fractional quality", configType: "json", data: `{"imgs": [], "format": {"Jpg": 90.7}}`},
		{name: "quality wrapping into range", configType: "json", data: `{"imgs": [], "format": {"Jpg": 4294967386}}`},
		{name: "yaml width overflows uint32", configType: "yaml", data: "imgs:\n  - {path: a, offset_y: 0, width: 4294967297, height: 1}\nformat: {png: fast}\n"},
		{name: "yaml negative offset_y", configType: "yaml", data: "imgs:\n  - {path: a, offset_y: -2, width: 1, height: 1}\nformat: {png: fast}\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.configType)
			assert.ErrorIs(t, err, ErrInvalidJob)
		})
	}
}

func TestDecode_IntegralNumbers(t *testing.T) {
	data := []byte(`{
  "imgs": [{"path": "a", "offsetX": 4294967295, "offsetY": 10.0, "width": 4294967295, "height": 1}],
  "format": {"Jpg": 90.0}
}`)

	job, err := Decode(data, "json")
	require.NoError(t, err)

	assert.Equal(t, []model.SourceImage{
		{Path: "a", OffsetX: 4294967295, OffsetY: 10, Width: 4294967295, Height: 1},
	}, job.Images)
	assert.Equal(t, model.JPEG(90), job.Format)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(camelJSON), 0o644))

	job, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, job.Images, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
