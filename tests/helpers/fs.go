package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TempDirWithFiles creates a temporary directory containing a file for each
// of the suffixes provided. The file names are randomised, but end with the
// suffix given so that tests can reason about file extensions.
func TempDirWithFiles(t *testing.T, suffixes []string) (string, []string) {
	dirPath := t.TempDir()
	filePaths := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		filePaths = append(filePaths, TempFile(t, dirPath, suffix))
	}

	assert.Len(t, filePaths, len(suffixes), "Expected file paths recorded to match length of requested files")
	return dirPath, filePaths
}

// TempFile creates a randomly named file in the directory provided,
// returning the full path to the new file.
func TempFile(t *testing.T, dirPath string, suffix string) string {
	path := filepath.Join(dirPath, random.String(12, random.Lowercase)+suffix)
	require.NoError(t, os.WriteFile(path, []byte(random.String(32)), 0o644), "failed to create temporary file in temporary dir")
	return path
}
