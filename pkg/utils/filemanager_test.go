package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOutputFileName(t *testing.T) {
	tests := []struct {
		name   string
		format string
		input  string
		ext    string
		want   string
	}{
		{"default", "", "feed.csv", "", "ShopifyCSV-feed.csv"},
		{"path input", "ShopifyCSV-{name}.csv", "feeds/Spring.xlsx", "", "ShopifyCSV-Spring.csv"},
		{"xlsx output", "ShopifyCSV-{name}.csv", "feed.csv", ".xlsx", "ShopifyCSV-feed.xlsx"},
		{"no extension in format", "{name}-out", "feed.csv", ".csv", "feed-out.csv"},
		{"no input name", "{name}.csv", "", "", "output.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateOutputFileName(tt.format, tt.input, tt.ext))
		})
	}
}

func TestGenerateOutputFileNamePlaceholders(t *testing.T) {
	got := GenerateOutputFileName("{date}_{uuid}.csv", "feed.csv", "")
	assert.NotContains(t, got, "{")
	assert.Len(t, strings.TrimSuffix(got, ".csv"), len("20060102_")+36)
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name\nLamp\n"), 0644))

	data, err := ReadInput(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "Name\nLamp\n", string(data))

	_, err = ReadInput(path, 4)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = ReadInput(filepath.Join(dir, "missing.csv"), 0)
	assert.Error(t, err)
}

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.csv", "notes.txt", "c.XLS"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0755))

	files, err := DiscoverInputFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.xlsx"),
		filepath.Join(dir, "c.XLS"),
	}, files)
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ShopifyCSV-feed.csv")

	require.NoError(t, WriteOutput(path, []byte("Handle\n")))
	assert.True(t, FileExists(path))

	size, err := GetFileSize(path)
	require.NoError(t, err)
	assert.EqualValues(t, 7, size)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed away")
}
