// Package scanner discovers indexable files under a project root,
// respecting exclusion lists and size limits.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marlonsc/mcb/internal/errors"
)

// DefaultMaxFileSize skips files larger than 2MB.
const DefaultMaxFileSize = 2 * 1024 * 1024

// defaultExcludes are directory names never descended into.
var defaultExcludes = []string{
	".git", ".hg", ".svn", "node_modules", "vendor", "target",
	"dist", "build", "__pycache__", ".idea", ".vscode",
}

// FileInfo describes one discovered file.
type FileInfo struct {
	// Path is relative to the scan root, slash-separated.
	Path string
	// AbsPath is the absolute path on disk.
	AbsPath string
	// Size is the file size in bytes.
	Size int64
}

// Options configures a scan.
type Options struct {
	// RootDir is the directory to scan.
	RootDir string
	// MaxFileSize skips larger files; zero means DefaultMaxFileSize.
	MaxFileSize int64
	// Exclude lists directory names to skip; nil means the default set.
	Exclude []string
	// Extensions restricts results to these file extensions (with dot).
	// Empty means all regular files.
	Extensions []string
}

// Scan walks the root and returns discovered files in walk order (lexical
// within each directory).
func Scan(ctx context.Context, opts Options) ([]FileInfo, error) {
	root := opts.RootDir
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.CodeFileRead, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.Wrap(errors.CodeFileNotFound, err)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.CodeInvalidInput, "root path is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	excluded := make(map[string]struct{})
	names := opts.Exclude
	if names == nil {
		names = defaultExcludes
	}
	for _, name := range names {
		excluded[name] = struct{}{}
	}

	wantExt := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		wantExt[strings.ToLower(ext)] = struct{}{}
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if _, skip := excluded[d.Name()]; skip && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		// Hidden files are not indexed.
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		if len(wantExt) > 0 {
			if _, ok := wantExt[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
				return nil
			}
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > maxSize {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		files = append(files, FileInfo{
			Path:    filepath.ToSlash(rel),
			AbsPath: path,
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
