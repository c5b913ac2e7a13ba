package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"painting-enhancer/internal/config"
	"painting-enhancer/internal/export"
)

func writePhoto(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), 90, 255})
		}
	}
	path := filepath.Join(dir, "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestRunRejectsBadOptions(t *testing.T) {
	cfg := config.Default()
	log := zerolog.Nop()

	assert.Error(t, run(cfg, log, options{input: "x.png", target: "varnish"}))
	assert.ErrorIs(t, run(cfg, log, options{input: "x.png", target: "color", format: "gif"}), export.ErrUnknownFormat)
	assert.Error(t, run(cfg, log, options{input: "x.png", target: "color", size: "5x7"}))
}

func TestRunWritesResultAndSession(t *testing.T) {
	dir := t.TempDir()
	input := writePhoto(t, dir)
	out := filepath.Join(dir, "result.png")

	err := run(config.Default(), zerolog.Nop(), options{
		input:       input,
		output:      out,
		target:      "color",
		format:      "png",
		detect:      true,
		saveSession: true,
	})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(120, 90), img.Bounds().Size())

	assert.FileExists(t, filepath.Join(dir, "photo.painting.json"))
}
