// =============================================================================
// Inventory CSV Mapper - File Manager Utility
// =============================================================================
//
// File-system helpers shared by the CLI and the HTTP API:
//   - Output file naming from a format string
//   - Size-checked input reads
//   - Output writes that never leave a partial file behind
//   - Input discovery for directory arguments
//
// =============================================================================

package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultOutputFormat is the output name used when none is configured.
const DefaultOutputFormat = "ShopifyCSV-{name}.csv"

// InputExtensions are the file extensions the ingestion pipeline accepts.
var InputExtensions = []string{".csv", ".xlsx", ".xlsm", ".xltx", ".xls"}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName builds an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {name}      - Input base name without its extension
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//   - inputName: The input file name or path.
//   - ext: The output extension, e.g. ".xlsx". The extension in format is
//     replaced with ext when they differ; "" keeps format's extension.
//
// RETURNS:
//   - The generated file name (no directory).
//
// EXAMPLE:
//
//	GenerateOutputFileName("ShopifyCSV-{name}.csv", "feeds/Spring.xlsx", ".xlsx")
//	// "ShopifyCSV-Spring.xlsx"
func GenerateOutputFileName(format, inputName, ext string) string {
	if format == "" {
		format = DefaultOutputFormat
	}
	now := time.Now()

	base := filepath.Base(inputName)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		name = "output"
	}

	result := strings.NewReplacer(
		"{name}", name,
		"{uuid}", uuid.NewString(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
	).Replace(format)

	if ext == "" {
		return result
	}
	if current := filepath.Ext(result); !strings.EqualFold(current, ext) {
		result = strings.TrimSuffix(result, current) + ext
	}
	return result
}

// =============================================================================
// INPUT
// =============================================================================

// ReadInput reads a file after checking its size.
//
// PARAMETERS:
//   - path: The file to read.
//   - maxBytes: The size limit; 0 disables the check.
//
// RETURNS:
//   - The file content.
//   - ErrTooLarge (wrapped) when the file exceeds maxBytes, or the read error.
func ReadInput(path string, maxBytes int64) ([]byte, error) {
	size, err := GetFileSize(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}
	if maxBytes > 0 && size > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, filepath.Base(path), size, maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// ErrTooLarge is returned by ReadInput for files over the limit.
var ErrTooLarge = errors.New("file too large")

// DiscoverInputFiles lists the supported input files directly inside dir,
// sorted by name.
func DiscoverInputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsInputFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// IsInputFile reports whether name has a supported input extension.
func IsInputFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range InputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// =============================================================================
// OUTPUT
// =============================================================================

// WriteOutput writes data to path through a temporary file in the same
// directory, creating the directory when needed.
//
// RETURNS:
//   - An error if the directory, the temporary file or the rename fails.
func WriteOutput(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".mapper-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
