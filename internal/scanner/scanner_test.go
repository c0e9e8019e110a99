package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func paths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestScanDiscoversFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "pkg/util.go", "package pkg")
	writeFile(t, root, "docs/readme.md", "# readme")

	files, err := Scan(context.Background(), Options{RootDir: root})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "pkg/util.go", "docs/readme.md"}, paths(files))
}

func TestScanSkipsExcludedDirsAndHiddenFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, ".git/config", "gitdata")
	writeFile(t, root, "node_modules/lib/index.js", "module.exports = {}")
	writeFile(t, root, ".env", "SECRET=1")

	files, err := Scan(context.Background(), Options{RootDir: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, paths(files))
}

func TestScanFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "script.py", "print(1)")
	writeFile(t, root, "notes.txt", "notes")

	files, err := Scan(context.Background(), Options{RootDir: root, Extensions: []string{".go", ".py"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "script.py"}, paths(files))
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "package main")
	writeFile(t, root, "big.go", strings.Repeat("x", 2048))

	files, err := Scan(context.Background(), Options{RootDir: root, MaxFileSize: 1024})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.go"}, paths(files))
}

func TestScanRejectsNonDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.go", "package main")

	_, err := Scan(context.Background(), Options{RootDir: filepath.Join(root, "file.go")})
	assert.Error(t, err)

	_, err = Scan(context.Background(), Options{RootDir: filepath.Join(root, "missing")})
	assert.Error(t, err)
}
