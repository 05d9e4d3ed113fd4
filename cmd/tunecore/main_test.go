package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOptionsFile(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestRun_MissingInputs_ExitsWithDocumentedCode(t *testing.T) {
	t.Parallel()
	path := writeOptionsFile(t, `
opt:output: ["cr"]
opt:search: guess_midpoint
`)
	var out bytes.Buffer
	code := run([]string{"-options", path}, &out)
	assert.Equal(t, exitMissingInputs, code)
}

func TestRun_MissingOutput_ExitsWithDocumentedCode(t *testing.T) {
	t.Parallel()
	path := writeOptionsFile(t, `
opt:inputs: ["x"]
opt:search: guess_midpoint
`)
	var out bytes.Buffer
	code := run([]string{"-options", path}, &out)
	assert.Equal(t, exitMissingOutputs, code)
}

func TestRun_UnknownCompressorBackend_ExitsWithSearchOrCompError(t *testing.T) {
	t.Parallel()
	path := writeOptionsFile(t, `
opt:inputs: ["x"]
opt:output: ["cr"]
opt:search: guess_midpoint
opt:lower_bound: [0.0]
opt:upper_bound: [1.0]
`)
	var out bytes.Buffer
	code := run([]string{"-options", path, "-compressor", "not-a-real-one"}, &out)
	assert.Equal(t, exitSearchOrCompError, code)
}

func TestRun_EndToEnd_GuessMidpoint_ExitsOK(t *testing.T) {
	t.Parallel()
	path := writeOptionsFile(t, `
opt:inputs: ["x"]
opt:output: ["cr"]
opt:search: guess_midpoint
opt:lower_bound: [0.0]
opt:upper_bound: [1.0]
`)
	var out bytes.Buffer
	code := run([]string{"-options", path}, &out)
	require.Equal(t, exitOK, code, "stderr/stdout=%s", out.String())
	assert.Contains(t, out.String(), "status=0")
}

func TestRun_UnknownSearchID_ExitsWithSearchOrCompError(t *testing.T) {
	t.Parallel()
	path := writeOptionsFile(t, `
opt:inputs: ["x"]
opt:output: ["cr"]
opt:search: does_not_exist
`)
	var out bytes.Buffer
	code := run([]string{"-options", path}, &out)
	assert.Equal(t, exitSearchOrCompError, code)
}

func TestLoadOptions_EmptyPath_ReturnsEmptyOptions(t *testing.T) {
	t.Parallel()
	opts, err := loadOptions("")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestBuildCompressor_Mock(t *testing.T) {
	t.Parallel()
	c, err := buildCompressor("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", c.Name())
}

func TestBuildCompressor_Unknown_Errors(t *testing.T) {
	t.Parallel()
	_, err := buildCompressor("sz3")
	assert.Error(t, err)
}
