// Package loader decodes and validates uploaded photographs.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the upload size limit.
const DefaultMaxBytes = 100 << 20

var (
	// ErrUnsupportedType is returned for files that are not JPEG, PNG, WebP
	// or TIFF.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned for files over the size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrEmpty is returned for zero-sized files or images.
	ErrEmpty = errors.New("empty image")
)

// Source is a decoded upload.
type Source struct {
	Path   string
	Image  image.Image
	Format string  // decoder name: jpeg, png, webp or tiff
	Size   int64   // file size in bytes
	DPI    float64 // from TIFF resolution tags, 0 if unknown
}

// Width returns the image width in pixels.
func (s *Source) Width() int { return s.Image.Bounds().Dx() }

// Height returns the image height in pixels.
func (s *Source) Height() int { return s.Image.Bounds().Dy() }

// Options control validation.
type Options struct {
	// MaxBytes rejects larger files; 0 uses DefaultMaxBytes.
	MaxBytes int64
}

// SupportedFormats returns the accepted file extensions.
func SupportedFormats() []string {
	return []string{".jpg", ".jpeg", ".png", ".webp", ".tiff", ".tif"}
}

// IsSupportedFormat checks if the given path has a supported image extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// FileFilter returns a description for file dialogs.
func FileFilter() string {
	return "Images (*.jpg, *.jpeg, *.png, *.webp, *.tif, *.tiff)"
}

// Validate checks the extension and size of a file without decoding it.
func Validate(path string, opts Options) (int64, error) {
	if !IsSupportedFormat(path) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat image: %w", err)
	}
	return info.Size(), checkSize(info.Size(), opts)
}

func checkSize(size int64, opts Options) error {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if size == 0 {
		return ErrEmpty
	}
	if size > limit {
		return fmt.Errorf("%w: %d MB exceeds %d MB", ErrTooLarge, size>>20, limit>>20)
	}
	return nil
}

// Load validates and decodes the image at path. JPEG EXIF orientation is
// applied so phone photos come out upright.
func Load(path string, opts Options) (*Source, error) {
	size, err := Validate(path, opts)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	src, err := decode(file, size)
	if err != nil {
		return nil, err
	}
	src.Path = path

	if src.Format == "tiff" {
		if dpi, err := extractTIFFDPI(path); err == nil {
			src.DPI = dpi
		}
	}
	return src, nil
}

// Decode reads an image from r, enforcing the size limit on the stream.
func Decode(r io.Reader, opts Options) (*Source, error) {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := checkSize(int64(len(data)), opts); err != nil {
		return nil, err
	}
	return decode(bytes.NewReader(data), int64(len(data)))
}

func decode(r io.Reader, size int64) (*Source, error) {
	br := bufio.NewReader(r)
	header, _ := br.Peek(16)
	format := sniff(header)
	if format == "" {
		return nil, ErrUnsupportedType
	}

	img, err := imaging.Decode(br, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmpty
	}
	return &Source{Image: img, Format: format, Size: size}, nil
}

// sniff identifies a supported format from its magic bytes.
func sniff(h []byte) string {
	switch {
	case bytes.HasPrefix(h, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(h, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case bytes.HasPrefix(h, []byte("II*\x00")), bytes.HasPrefix(h, []byte("MM\x00*")):
		return "tiff"
	case len(h) >= 12 && string(h[0:4]) == "RIFF" && string(h[8:12]) == "WEBP":
		return "webp"
	default:
		return ""
	}
}
