package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// DefaultImportExcludes skips dependency and build trees on import.
var DefaultImportExcludes = []string{
	"node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	"**/.DS_Store",
}

const (
	// DefaultImportMaxFileBytes skips files larger than this on import.
	DefaultImportMaxFileBytes = 1 << 20
	// DefaultImportMaxFiles bounds the number of imported files.
	DefaultImportMaxFiles = 2000
)

// ErrTooManyFiles indicates an import exceeding the file limit.
var ErrTooManyFiles = errors.New("too many files to import")

// ImportOptions configures a project import.
type ImportOptions struct {
	Excludes     []string
	MaxFileBytes int64
	MaxFiles     int
}

// Import reads a project directory into file entries. Binary files, files
// above the size limit and excluded paths are skipped.
func Import(ctx context.Context, dir string, opts ImportOptions) ([]schema.WireFile, error) {
	if opts.Excludes == nil {
		opts.Excludes = DefaultImportExcludes
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultImportMaxFileBytes
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultImportMaxFiles
	}
	for _, pattern := range opts.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	log := pslog.Ctx(ctx).With("dir", dir)
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var files []schema.WireFile
	skipped := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if excluded(opts.Excludes, rel) || excluded(opts.Excludes, rel+"/_") {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(opts.Excludes, rel) {
			skipped++
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > opts.MaxFileBytes {
			skipped++
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !isText(data) {
			skipped++
			return nil
		}
		if len(files) >= opts.MaxFiles {
			return ErrTooManyFiles
		}
		files = append(files, schema.WireFile{Name: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("workspace import done", "files", len(files), "skipped", skipped)
	return files, nil
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

func isText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) == -1
}
