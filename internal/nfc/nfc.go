// Package nfc keeps file and directory names in Unicode Normalization Form C,
// so visually identical names have exactly one on-disk byte representation.
package nfc

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/capcom6/nfc-watch/internal/exclude"
	"github.com/capcom6/nfc-watch/internal/metrics"
	"golang.org/x/text/unicode/norm"
)

// Canonical returns the composed form of name.
func Canonical(name string) string {
	return norm.NFC.String(name)
}

// NeedsNormalization reports whether name differs from its composed form.
func NeedsNormalization(name string) bool {
	return !norm.NFC.IsNormalString(name)
}

// Decision describes what normalizing a path would do.
type Decision struct {
	NeedsNormalization bool
	CanonicalPath      string
}

type Options struct {
	Exclude []string
	Logger  *log.Logger
}

// Normalizer renames entries strictly inside Root to their canonical names.
// Only the final path segment is ever changed.
type Normalizer struct {
	Root string

	excluded *exclude.Matcher
	logger   *log.Logger
}

func New(root string, opts Options) *Normalizer {
	root = filepath.Clean(root)

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Normalizer{
		Root: root,

		excluded: exclude.New(root, opts.Exclude),
		logger:   logger,
	}
}

// Inside reports whether path lies strictly below the root.
func (n *Normalizer) Inside(path string) bool {
	rel, err := filepath.Rel(n.Root, filepath.Clean(path))
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Excluded reports whether path is skipped by the exclude patterns.
func (n *Normalizer) Excluded(path string) bool {
	return n.excluded.Match(path)
}

func (n *Normalizer) Decide(path string) Decision {
	path = filepath.Clean(path)
	if !n.Inside(path) || n.Excluded(path) {
		return Decision{CanonicalPath: path}
	}

	dir, name := filepath.Split(path)
	canonical := Canonical(name)
	if canonical == name {
		return Decision{CanonicalPath: path}
	}

	return Decision{
		NeedsNormalization: true,
		CanonicalPath:      filepath.Join(dir, canonical),
	}
}

// Normalize renames the entry at path to its canonical name and returns the
// resulting path. When nothing has to be done, or the rename fails, path is
// returned unchanged; failures are logged.
func (n *Normalizer) Normalize(path string) string {
	newPath, err := n.rename(path)
	if err != nil {
		metrics.RecordRenameFailure()
		n.logger.Printf("[ERROR] Can't normalize %s: %s", path, err)
		return path
	}

	return newPath
}

func (n *Normalizer) rename(path string) (string, error) {
	decision := n.Decide(path)
	if !decision.NeedsNormalization {
		return path, nil
	}

	srcInfo, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		n.logger.Printf("[DEBUG] %s is gone, nothing to normalize", path)
		return path, nil
	}
	if err != nil {
		return path, fmt.Errorf("can't stat source: %w", err)
	}

	// On normalization-insensitive filesystems both names resolve to the same
	// entry, and the rename only rewrites the stored bytes.
	dstInfo, err := os.Lstat(decision.CanonicalPath)
	switch {
	case err == nil && !os.SameFile(srcInfo, dstInfo):
		return path, fmt.Errorf("%w: %s", ErrTargetExists, decision.CanonicalPath)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return path, fmt.Errorf("can't stat target: %w", err)
	}

	if renameErr := os.Rename(path, decision.CanonicalPath); renameErr != nil {
		return path, fmt.Errorf("can't rename: %w", renameErr)
	}

	metrics.RecordRename()
	n.logger.Printf("[INFO] Name normalized: %s -> %s", path, decision.CanonicalPath)

	return decision.CanonicalPath, nil
}
