package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

const (
	// DefaultMinFileBytes skips files too small to hold business logic.
	DefaultMinFileBytes int64 = 200
)

// SupportedExtensions lists the source file extensions considered for scanning.
var SupportedExtensions = []string{
	".js", ".ts", ".py", ".go", ".rb", ".java", ".php",
	".c", ".cpp", ".cs", ".h", ".hpp", ".rs", ".kt",
}

var skippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
}

// SourceFile is a discovered file of the checkout.
type SourceFile struct {
	RelPath  string        `json:"relpath"`
	AbsPath  string        `json:"-"`
	Size     int64         `json:"size"`
	Hash     string        `json:"hash"`
	PrevHash string        `json:"prev_hash,omitempty"`
	Changed  bool          `json:"changed"`
	Score    int           `json:"score"`
	Tier     findings.Tier `json:"tier"`
}

// Options controls discovery.
type Options struct {
	MinFileBytes int64
}

// Discover walks root and returns every supported source file sorted by
// relative path, together with the manifest of all discovered files.
// A file is changed when its fingerprint differs from the prior manifest entry.
func Discover(root string, prior Manifest, opts Options, logger hclog.Logger) ([]SourceFile, Manifest, error) {
	if opts.MinFileBytes <= 0 {
		opts.MinFileBytes = DefaultMinFileBytes
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var discovered []SourceFile
	manifest := make(Manifest)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access %q: %w", path, err)
		}
		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsSupported(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("failed to stat file", "path", path, "error", err)
			return nil
		}
		if info.Size() < opts.MinFileBytes {
			return nil
		}

		sf, err := load(root, path, info.Size(), prior)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		manifest[sf.RelPath] = sf.Hash
		discovered = append(discovered, sf)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %q: %w", root, err)
	}

	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].RelPath < discovered[j].RelPath
	})

	logger.Debug("discovery completed", "root", root, "files", len(discovered), "removed", len(prior.Removed(manifest)))
	return discovered, manifest, nil
}

// IsSupported reports whether the file name carries a supported extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

func load(root, path string, size int64, prior Manifest) (SourceFile, error) {
	abs, err := files.EnsureWithinRoot(root, path)
	if err != nil {
		return SourceFile{}, err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to relativize %q: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	content, err := os.ReadFile(abs)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to read %q: %w", path, err)
	}

	hash := Fingerprint(content)
	return SourceFile{
		RelPath:  rel,
		AbsPath:  abs,
		Size:     size,
		Hash:     hash,
		PrevHash: prior[rel],
		Changed:  prior.Changed(rel, hash),
	}, nil
}
