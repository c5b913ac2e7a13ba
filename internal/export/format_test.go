package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JPEG-85 ")
	require.NoError(t, err)
	assert.Equal(t, JPEG85, f)

	_, err = ParseFormat("heic")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatProperties(t *testing.T) {
	q, ok := JPEG95.JPEGQuality()
	assert.True(t, ok)
	assert.Equal(t, 95, q)

	q, ok = JPEG85.JPEGQuality()
	assert.True(t, ok)
	assert.Equal(t, 85, q)

	_, ok = PNG.JPEGQuality()
	assert.False(t, ok)

	assert.Equal(t, ".jpg", JPEG85.Extension())
	assert.Equal(t, ".png", PNG.Extension())
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, PNG, FormatForPath("out/a.PNG", JPEG95))
	assert.Equal(t, JPEG85, FormatForPath("a.jpeg", JPEG85))
	assert.Equal(t, JPEG95, FormatForPath("a.jpg", PNG))
	assert.Equal(t, JPEG85, FormatForPath("a", JPEG85))
}

func TestDefaultFilename(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	assert.Equal(t, "painting_enhanced_1700000000123.jpg", DefaultFilename(JPEG95, ts))
	assert.Equal(t, "painting_enhanced_1700000000123.png", DefaultFilename(PNG, ts))
}
