// Package imageops implements the pipeline's image operations with OpenCV.
package imageops

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"painting-enhancer/internal/pipeline"
)

var (
	// ErrEmptyMat is returned when an operation produces no pixels.
	ErrEmptyMat = errors.New("empty mat")
	// ErrForeignBitmap is returned for bitmaps not created by this package.
	ErrForeignBitmap = errors.New("bitmap is not an OpenCV image")
)

// Tracker counts live native images so leaks show up in the logs.
type Tracker struct {
	active   atomic.Int64
	bytes    atomic.Int64
	peak     atomic.Int64
	created  atomic.Int64
	released atomic.Int64
}

func (t *Tracker) add(size int64) {
	if t == nil {
		return
	}
	t.created.Add(1)
	t.active.Add(1)
	n := t.bytes.Add(size)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			break
		}
	}
}

func (t *Tracker) remove(size int64) {
	if t == nil {
		return
	}
	t.released.Add(1)
	t.active.Add(-1)
	t.bytes.Add(-size)
}

// Active returns the number of unreleased images.
func (t *Tracker) Active() int64 { return t.active.Load() }

// Bytes returns the pixel bytes held by unreleased images.
func (t *Tracker) Bytes() int64 { return t.bytes.Load() }

// LogStats writes the counters at debug level.
func (t *Tracker) LogStats(log zerolog.Logger) {
	log.Debug().
		Int64("active", t.active.Load()).
		Int64("bytes", t.bytes.Load()).
		Int64("peak_bytes", t.peak.Load()).
		Int64("created", t.created.Load()).
		Int64("released", t.released.Load()).
		Msg("mat stats")
}

// Image is a BGR OpenCV matrix. It implements pipeline.Bitmap.
type Image struct {
	mat     gocv.Mat
	w, h    int
	size    int64
	tracker *Tracker
	once    sync.Once
}

var _ pipeline.Bitmap = (*Image)(nil)

// wrap takes ownership of mat. An empty mat is closed and rejected.
func wrap(mat gocv.Mat, tracker *Tracker) (*Image, error) {
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyMat
	}
	size := int64(mat.Total()) * int64(mat.ElemSize())
	tracker.add(size)
	return &Image{mat: mat, w: mat.Cols(), h: mat.Rows(), size: size, tracker: tracker}, nil
}

// Width returns the number of columns.
func (m *Image) Width() int { return m.w }

// Height returns the number of rows.
func (m *Image) Height() int { return m.h }

// Release closes the native matrix. Further calls do nothing.
func (m *Image) Release() {
	m.once.Do(func() {
		m.mat.Close()
		m.tracker.remove(m.size)
	})
}

// Mat exposes the matrix for read-only use. The caller must not close it.
func (m *Image) Mat() gocv.Mat { return m.mat }

// ToImage converts the matrix to a Go image.
func (m *Image) ToImage() (image.Image, error) {
	img, err := m.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return img, nil
}

func asImage(b pipeline.Bitmap) (*Image, error) {
	img, ok := b.(*Image)
	if !ok || img == nil {
		return nil, ErrForeignBitmap
	}
	if img.mat.Empty() {
		return nil, ErrEmptyMat
	}
	return img, nil
}
