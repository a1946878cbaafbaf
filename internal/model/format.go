package model

import (
	"encoding/json"
	"fmt"
)

// FormatKind selects the encoder used for the output file.
type FormatKind int32

const (
	_ FormatKind = iota
	FormatPNG
	FormatJPEG
)

func (k FormatKind) String() string {
	switch k {
	case FormatPNG:
		return "PNG"
	case FormatJPEG:
		return "JPG"
	default:
		return fmt.Sprintf("UNKNOWN FORMAT %d", k)
	}
}

// PNGCompression trades encoding speed for output size.
type PNGCompression int32

const (
	_ PNGCompression = iota
	PNGFast
	PNGBest
)

func (c PNGCompression) String() string {
	switch c {
	case PNGFast:
		return "Fast"
	case PNGBest:
		return "Best"
	default:
		return fmt.Sprintf("UNKNOWN COMPRESSION %d", c)
	}
}

const (
	MinJPEGQuality = 1
	MaxJPEGQuality = 100
)

// OutputFormat is either PNG with a compression level or JPEG with a quality.
// Only the parameter matching Kind is meaningful.
type OutputFormat struct {
	Kind        FormatKind
	Compression PNGCompression
	Quality     int
}

// PNG returns a PNG output format.
func PNG(c PNGCompression) OutputFormat {
	return OutputFormat{Kind: FormatPNG, Compression: c}
}

// JPEG returns a JPEG output format with the given quality (1-100).
func JPEG(quality int) OutputFormat {
	return OutputFormat{Kind: FormatJPEG, Quality: quality}
}

// Extension returns the file extension for the format, dot included.
func (f OutputFormat) Extension() string {
	switch f.Kind {
	case FormatPNG:
		return ".png"
	case FormatJPEG:
		return ".jpg"
	default:
		return ""
	}
}

// Validate reports whether the format parameter is in range.
func (f OutputFormat) Validate() error {
	switch f.Kind {
	case FormatPNG:
		if f.Compression != PNGFast && f.Compression != PNGBest {
			return fmt.Errorf("unknown png compression %d", f.Compression)
		}
	case FormatJPEG:
		if f.Quality < MinJPEGQuality || f.Quality > MaxJPEGQuality {
			return fmt.Errorf("jpeg quality %d out of range [%d, %d]", f.Quality, MinJPEGQuality, MaxJPEGQuality)
		}
	default:
		return fmt.Errorf("unknown output format %d", f.Kind)
	}

	return nil
}

func (f OutputFormat) String() string {
	switch f.Kind {
	case FormatPNG:
		return fmt.Sprintf("PNG(%s)", f.Compression)
	case FormatJPEG:
		return fmt.Sprintf("JPG(%d)", f.Quality)
	default:
		return f.Kind.String()
	}
}

// MarshalJSON writes the format in the externally tagged shape used by job
// files, e.g. {"Png":"Best"} or {"Jpg":90}.
func (f OutputFormat) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FormatPNG:
		return json.Marshal(map[string]string{"Png": f.Compression.String()})
	case FormatJPEG:
		return json.Marshal(map[string]int{"Jpg": f.Quality})
	default:
		return nil, fmt.Errorf("marshal format: unknown kind %d", f.Kind)
	}
}
