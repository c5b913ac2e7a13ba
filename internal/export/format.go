// Package export defines the output encodings and download file naming.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output encoding.
type Format string

const (
	JPEG95 Format = "jpeg-95"
	JPEG85 Format = "jpeg-85"
	PNG    Format = "png"
)

// Formats lists the supported output formats.
var Formats = []Format{JPEG95, JPEG85, PNG}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// JPEGQuality returns the encoder quality for JPEG formats and false for PNG.
func (f Format) JPEGQuality() (int, bool) {
	switch f {
	case JPEG95:
		return 95, true
	case JPEG85:
		return 85, true
	default:
		return 0, false
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == PNG {
		return ".png"
	}
	return ".jpg"
}

// FormatForPath picks a format from a file extension. JPEG files use
// fallback when it is a JPEG format, otherwise JPEG95.
func FormatForPath(path string, fallback Format) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG
	case ".jpg", ".jpeg":
		if _, ok := fallback.JPEGQuality(); ok {
			return fallback
		}
		return JPEG95
	default:
		return fallback
	}
}

// DefaultFilename returns painting_enhanced_<unix-ms><ext> for t.
func DefaultFilename(f Format, t time.Time) string {
	return fmt.Sprintf("painting_enhanced_%d%s", t.UnixMilli(), f.Extension())
}
