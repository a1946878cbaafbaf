// Package jobfile decodes job descriptors from JSON or YAML.
//
// Keys are matched case-insensitively and with underscores ignored, so
// "offsetY", "offset_y" and "OFFSET_Y" are the same key. The output format
// is a single-key object naming the format, e.g. {"Png": "Best"} or
// {"JPG": 90}.
package jobfile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/aliskhannn/subcat/internal/model"
)

// ErrInvalidJob is returned for descriptors that are malformed or miss
// required fields.
var ErrInvalidJob = errors.New("invalid job descriptor")

// canonicalKeys maps normalized spellings to the keys used in the raw structs.
var canonicalKeys = map[string]string{
	"id":       "id",
	"imgs":     "imgs",
	"dir":      "dir",
	"filename": "filename",
	"format":   "format",
	"path":     "path",
	"offsetx":  "offset_x",
	"offsety":  "offset_y",
	"width":    "width",
	"height":   "height",
}

type rawImage struct {
	Path    string  `mapstructure:"path"`
	OffsetX *uint32 `mapstructure:"offset_x"`
	OffsetY *uint32 `mapstructure:"offset_y"`
	Width   *uint32 `mapstructure:"width"`
	Height  *uint32 `mapstructure:"height"`
}

type rawJob struct {
	ID       string      `mapstructure:"id"`
	Images   []rawImage  `mapstructure:"imgs"`
	Dir      string      `mapstructure:"dir"`
	Filename string      `mapstructure:"filename"`
	Format   interface{} `mapstructure:"format"`
}

// Load reads the descriptor at path; the extension selects JSON or YAML.
func Load(path string) (model.Job, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return model.Job{}, fmt.Errorf("read job file %s: %w", filepath.Clean(path), err)
	}

	return fromSettings(v.AllSettings())
}

// Decode parses data of the given config type ("json", "yaml").
func Decode(data []byte, configType string) (model.Job, error) {
	v := viper.New()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return model.Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	return fromSettings(v.AllSettings())
}

func fromSettings(settings map[string]interface{}) (model.Job, error) {
	var raw rawJob
	if err := decode(normalize(settings), &raw); err != nil {
		return model.Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	return raw.toJob()
}

func (r rawJob) toJob() (model.Job, error) {
	job := model.Job{
		ID:       uuid.New(),
		Dir:      r.Dir,
		Filename: r.Filename,
	}

	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return model.Job{}, fmt.Errorf("%w: id: %v", ErrInvalidJob, err)
		}
		job.ID = id
	}

	if r.Images == nil {
		return model.Job{}, fmt.Errorf("%w: missing imgs", ErrInvalidJob)
	}

	job.Images = make([]model.SourceImage, 0, len(r.Images))
	for i, img := range r.Images {
		src, err := img.toSourceImage()
		if err != nil {
			return model.Job{}, fmt.Errorf("%w: imgs[%d]: %v", ErrInvalidJob, i, err)
		}
		job.Images = append(job.Images, src)
	}

	if r.Format == nil {
		return model.Job{}, fmt.Errorf("%w: missing format", ErrInvalidJob)
	}

	format, err := parseFormat(r.Format)
	if err != nil {
		return model.Job{}, fmt.Errorf("%w: format: %v", ErrInvalidJob, err)
	}
	job.Format = format

	return job, nil
}

func (r rawImage) toSourceImage() (model.SourceImage, error) {
	switch {
	case r.Path == "":
		return model.SourceImage{}, errors.New("missing path")
	case r.OffsetY == nil:
		return model.SourceImage{}, errors.New("missing offset_y")
	case r.Width == nil:
		return model.SourceImage{}, errors.New("missing width")
	case r.Height == nil:
		return model.SourceImage{}, errors.New("missing height")
	}

	src := model.SourceImage{
		Path:    r.Path,
		OffsetY: *r.OffsetY,
		Width:   *r.Width,
		Height:  *r.Height,
	}
	if r.OffsetX != nil {
		src.OffsetX = *r.OffsetX
	}

	return src, nil
}

// decode is mapstructure.Decode with integer fields checked by integerHook.
func decode(input, result interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: integerHook,
		Result:     result,
	})
	if err != nil {
		return err
	}

	return d.Decode(input)
}

// integerHook rejects numbers that would not survive conversion to the
// integer field they decode into.
func integerHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	var lo, hi float64
	switch to.Kind() {
	case reflect.Uint32:
		lo, hi = 0, math.MaxUint32
	case reflect.Int:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return data, nil
	}

	var f float64
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f = v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", data)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(v.Uint())
	default:
		return data, nil
	}

	if f < lo || f > hi {
		return nil, fmt.Errorf("%v is out of range [%v, %v]", data, lo, hi)
	}

	return data, nil
}

// parseFormat accepts {"Png": "Fast"|"Best"} or {"Jpg"|"Jpeg": quality},
// with tags and compression names matched case-insensitively.
func parseFormat(v interface{}) (model.OutputFormat, error) {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) != 1 {
		return model.OutputFormat{}, fmt.Errorf("expected an object with exactly one format tag, got %v", v)
	}

	for tag, param := range m {
		switch strings.ToLower(tag) {
		case "png":
			s, ok := param.(string)
			if !ok {
				return model.OutputFormat{}, fmt.Errorf("png compression must be Fast or Best, got %v", param)
			}
			switch strings.ToLower(s) {
			case "fast":
				return model.PNG(model.PNGFast), nil
			case "best":
				return model.PNG(model.PNGBest), nil
			default:
				return model.OutputFormat{}, fmt.Errorf("png compression must be Fast or Best, got %q", s)
			}
		case "jpg", "jpeg":
			var q int
			if err := decode(param, &q); err != nil {
				return model.OutputFormat{}, fmt.Errorf("jpg quality: %v", err)
			}
			f := model.JPEG(q)
			if err := f.Validate(); err != nil {
				return model.OutputFormat{}, err
			}
			return f, nil
		default:
			return model.OutputFormat{}, fmt.Errorf("unknown format %q", tag)
		}
	}

	return model.OutputFormat{}, errors.New("unreachable")
}

// normalize rewrites the keys of every nested map to their canonical form.
// Unknown keys are kept, lower-cased.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[canonicalKey(k)] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[canonicalKey(fmt.Sprint(k))] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func canonicalKey(k string) string {
	n := strings.ToLower(strings.ReplaceAll(k, "_", ""))
	if c, ok := canonicalKeys[n]; ok {
		return c
	}

	return strings.ToLower(k)
}
