package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineFileFullPath(t *testing.T) {
	type testCase struct {
		name         string
		inputPath    string
		nameTemplate string
		expectFile   string
		expectFolder string
		setup        func(t *testing.T) (inputPath, expectFile, expectFolder string)
	}

	tmpDir := t.TempDir()

	tests := []testCase{
		{
			name:         "Directory path with name template",
			inputPath:    tmpDir,
			nameTemplate: "output.json",
			expectFile:   filepath.Join(tmpDir, "output.json"),
			expectFolder: tmpDir,
		},
		{
			name:         "File path with extension",
			inputPath:    filepath.Join(tmpDir, "data.json"),
			nameTemplate: "ignored.txt",
			expectFile:   filepath.Join(tmpDir, "data.json"),
			expectFolder: tmpDir,
			setup: func(t *testing.T) (string, string, string) {
				f := filepath.Join(tmpDir, "data.json")
				_ = os.WriteFile(f, []byte("test"), 0644)
				return f, f, tmpDir
			},
		},
		{
			name:         "Path with no extension, treat as folder",
			inputPath:    filepath.Join(tmpDir, "output_folder"),
			nameTemplate: "report.log",
			expectFile:   filepath.Join(tmpDir, "output_folder", "report.log"),
			expectFolder: filepath.Join(tmpDir, "output_folder"),
		},
		{
			name:         "Non-existent file with extension",
			inputPath:    filepath.Join(tmpDir, "nonexistent.yaml"),
			nameTemplate: "ignored.txt",
			expectFile:   filepath.Join(tmpDir, "nonexistent.yaml"),
			expectFolder: tmpDir,
		},
		{
			name:         "Non-existent folder",
			inputPath:    filepath.Join(tmpDir, "missing_folder"),
			nameTemplate: "result.json",
			expectFile:   filepath.Join(tmpDir, "missing_folder", "result.json"),
			expectFolder: filepath.Join(tmpDir, "missing_folder"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actualPath := tt.inputPath
			expectFile := tt.expectFile
			expectFolder := tt.expectFolder

			if tt.setup != nil {
				actualPath, expectFile, expectFolder = tt.setup(t)
			}

			filePath, folderPath, err := DetermineFileFullPath(actualPath, tt.nameTemplate)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if filePath != expectFile {
				t.Errorf("Expected file path %s, got %s", expectFile, filePath)
			}
			if folderPath != expectFolder {
				t.Errorf("Expected folder path %s, got %s", expectFolder, folderPath)
			}
		})
	}
}

func TestReadPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.py")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0600))

	data, err := ReadPrefix(path, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))

	data, err = ReadPrefix(path, 100)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestReadTextReplacesInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.go")
	require.NoError(t, os.WriteFile(path, []byte{'a', 0xff, 'b'}, 0600))

	text, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "a\uFFFDb", text)
}

func TestEnsureWithinRoot(t *testing.T) {
	root := t.TempDir()

	got, err := EnsureWithinRoot(root, filepath.Join(root, "a", "b.go"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b.go"), got)

	_, err = EnsureWithinRoot(root, filepath.Join(root, "..", "escape.go"))
	assert.Error(t, err)

	got, err = EnsureWithinRoot(root, filepath.Join(root, "..data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "..data"), got)
}
