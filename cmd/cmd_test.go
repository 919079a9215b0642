package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
)

const feedCSV = "Title,Price,Brand Name\nLamp,10,Acme\nDesk,99,Other\n"

// testEnv is a temp directory with a config file pointing all state into it.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := "output:\n  dir: " + filepath.Join(dir, "out") + "\n" +
		"store:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "mapper.db") + "\n  free_limit: 2\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return &testEnv{dir: dir, config: path}
}

func (e *testEnv) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run executes the root command with fresh flag values.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	convertOpts = convertOptions{weightAdjustment: 2.0, workers: 4}
	automapSheet, automapWrite, automapSemantic = "", "", false
	mappingsUser, serveAddr = "", ""
	verbose, logFormat = false, ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--env-file", filepath.Join(e.dir, ".env")}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func readOutput(t *testing.T, path string) (headers []string, rows []map[string]string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	h, r, err := csvparser.ReadAll(f)
	require.NoError(t, err)
	for _, row := range r {
		rows = append(rows, row)
	}
	return h, rows
}

func TestFieldsCommand(t *testing.T) {
	env := newTestEnv(t)
	out, _, err := env.run(t, "fields")
	require.NoError(t, err)
	assert.Contains(t, out, "required (4):\n  Handle\n  Title\n")
	assert.Contains(t, out, "optional (")
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)
	out, _, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+Version)
}

func TestConvertCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "feed.csv", feedCSV)
	output := filepath.Join(env.dir, "result.csv")

	out, _, err := env.run(t, "convert", input, "-o", output, "--brand", "Acme")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ feed.csv")
	assert.Contains(t, out, "1 filtered")
	assert.Contains(t, out, "WARNING: required field(s) unmapped: Handle, Variant Inventory Qty")

	headers, rows := readOutput(t, output)
	assert.Equal(t, mapping.Fields(), headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "Lamp", rows[0][mapping.FieldTitle])
	assert.Equal(t, "10", rows[0][mapping.FieldPrice])
}

func TestConvertDefaultOutputName(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "spring.csv", feedCSV)

	_, _, err := env.run(t, "convert", input)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.dir, "out", "ShopifyCSV-spring.csv"))
}

func TestConvertXLSXOutput(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "feed.csv", feedCSV)
	output := filepath.Join(env.dir, "result.xlsx")

	_, _, err := env.run(t, "convert", input, "-o", output)
	require.NoError(t, err)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestConvertRequiresSheet(t *testing.T) {
	env := newTestEnv(t)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetName("Sheet1", "Products"))
	require.NoError(t, wb.SetSheetRow("Products", "A1", &[]any{"Title", "Price"}))
	require.NoError(t, wb.SetSheetRow("Products", "A2", &[]any{"Lamp", "10"}))
	_, err := wb.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Notes", "A1", &[]any{"Note"}))
	require.NoError(t, wb.SetSheetRow("Notes", "A2", &[]any{"x"}))
	input := filepath.Join(env.dir, "book.xlsx")
	require.NoError(t, wb.SaveAs(input))
	wb.Close()

	out, _, err := env.run(t, "convert", input)
	assert.ErrorIs(t, err, errSheetRequired)
	assert.Contains(t, out, "Products")
	assert.Contains(t, out, "Notes")

	output := filepath.Join(env.dir, "book.csv")
	_, _, err = env.run(t, "convert", input, "--sheet", "Products", "-o", output)
	require.NoError(t, err)
	_, rows := readOutput(t, output)
	assert.Len(t, rows, 1)
}

func TestAutoMapThenConvert(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "feed.csv", "Product Name,Price\nLamp,10\n")
	mappingFile := filepath.Join(env.dir, "mapping.yaml")

	out, _, err := env.run(t, "automap", input)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `Handle: ""`), out)
	assert.Contains(t, out, `Variant Price: "Price"`)

	_, _, err = env.run(t, "automap", input, "--write", mappingFile)
	require.NoError(t, err)

	// Map the title by hand, as a user editing the file would.
	data, err := os.ReadFile(mappingFile)
	require.NoError(t, err)
	edited := strings.Replace(string(data), `Title: ""`, `Title: "Product Name"`, 1)
	require.NoError(t, os.WriteFile(mappingFile, []byte(edited), 0644))

	output := filepath.Join(env.dir, "result.csv")
	_, _, err = env.run(t, "convert", input, "--mapping", mappingFile, "-o", output)
	require.NoError(t, err)
	_, rows := readOutput(t, output)
	require.Len(t, rows, 1)
	assert.Equal(t, "Lamp", rows[0][mapping.FieldTitle])
}

func TestConvertBadMappingFile(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "feed.csv", feedCSV)
	mappingFile := env.file(t, "mapping.yaml", "Title: Missing Column\n")

	out, _, err := env.run(t, "convert", input, "--mapping", mappingFile)
	require.Error(t, err)
	assert.Contains(t, out, "MAP030")
}

func TestConvertDirectory(t *testing.T) {
	env := newTestEnv(t)
	env.file(t, "in/a.csv", feedCSV)
	env.file(t, "in/b.csv", feedCSV)
	env.file(t, "in/readme.txt", "ignored")
	outDir := filepath.Join(env.dir, "converted")

	out, _, err := env.run(t, "convert", filepath.Join(env.dir, "in"), "-o", outDir, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Total files:  2")
	assert.FileExists(t, filepath.Join(outDir, "ShopifyCSV-a.csv"))
	assert.FileExists(t, filepath.Join(outDir, "ShopifyCSV-b.csv"))
}

func TestConvertDirectorySameBaseName(t *testing.T) {
	env := newTestEnv(t)
	env.file(t, "in/a.csv", feedCSV)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"Title", "Price"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"Stove", "49"}))
	require.NoError(t, wb.SaveAs(filepath.Join(env.dir, "in", "a.xlsx")))
	wb.Close()
	outDir := filepath.Join(env.dir, "converted")

	out, _, err := env.run(t, "convert", filepath.Join(env.dir, "in"), "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Total files:  2")

	_, rows := readOutput(t, filepath.Join(outDir, "ShopifyCSV-a-csv.csv"))
	assert.Len(t, rows, 2)
	_, rows = readOutput(t, filepath.Join(outDir, "ShopifyCSV-a-xlsx.csv"))
	require.Len(t, rows, 1)
	assert.Equal(t, "Stove", rows[0][mapping.FieldTitle])
	assert.NoFileExists(t, filepath.Join(outDir, "ShopifyCSV-a.csv"))
}

func TestSaveAndListMappings(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "feed.csv", feedCSV)

	_, _, err := env.run(t, "convert", input, "--save")
	assert.Error(t, err, "--save needs --user")

	out, _, err := env.run(t, "convert", input, "--save", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "mapping saved as ")

	out, _, err = env.run(t, "mappings", "list", "--user", "u1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "feed.csv")

	id := strings.Fields(lines[1])[0]
	out, _, err = env.run(t, "mappings", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	_, _, err = env.run(t, "mappings", "delete", id)
	assert.Error(t, err)
}

func TestSheetsCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.file(t, "feed.csv", feedCSV)

	out, _, err := env.run(t, "sheets", input)
	require.NoError(t, err)
	assert.Contains(t, out, "feed.csv:")
	assert.Contains(t, out, "1. feed")
}
