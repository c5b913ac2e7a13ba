package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFileGivesDefaults(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), "none.json"))
	assert.Equal(t, Defaults(), p.Get())
	assert.True(t, p.Get().ShowGrid)
	assert.False(t, p.Changed())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.json")
	p := LoadFrom(path)
	p.Update(func(v *Values) {
		v.LastDirectory = "/photos"
		v.CompareAmount = 0.25
		v.ShowGrid = false
	})
	require.True(t, p.Changed())
	require.NoError(t, p.Save())
	assert.False(t, p.Changed())

	r := LoadFrom(path)
	assert.Equal(t, path, r.Path())
	got := r.Get()
	assert.Equal(t, "/photos", got.LastDirectory)
	assert.Equal(t, 0.25, got.CompareAmount)
	assert.False(t, got.ShowGrid)
	assert.NoFileExists(t, path+".tmp")
}

func TestSaveSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	p := LoadFrom(path)

	p.Update(func(v *Values) { v.ShowGrid = true })
	assert.False(t, p.Changed(), "same value is not a change")
	require.NoError(t, p.Save())
	assert.NoFileExists(t, path)
}

func TestLoadFillsMissingFieldsAndClamps(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Values
	}{
		{
			name: "partial file keeps defaults",
			data: `{"lastImage": "/photos/a.jpg"}`,
			want: Values{LastImage: "/photos/a.jpg", CompareAmount: 0.5, ShowGrid: true},
		},
		{
			name: "amount out of range",
			data: `{"compareAmount": 3, "showGrid": false}`,
			want: Values{CompareAmount: 1},
		},
		{
			name: "corrupt file",
			data: `{"compareAmount": `,
			want: Defaults(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "preferences.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))
			assert.Equal(t, tt.want, LoadFrom(path).Get())
		})
	}
}
