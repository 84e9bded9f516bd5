package nfc

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sweep walks the whole tree depth-first and normalizes every non-canonical
// entry. A directory is renamed before it is entered, so its children are
// visited under the new name. It returns the number of renamed entries.
func (n *Normalizer) Sweep() (int, error) {
	info, err := os.Stat(n.Root)
	if err != nil {
		return 0, fmt.Errorf("can't stat %s: %w", n.Root, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrNotDirectory, n.Root)
	}

	return n.SweepDir(n.Root), nil
}

// SweepDir normalizes everything below dir, which must lie inside the root or
// be the root itself. Unreadable directories are logged and skipped.
func (n *Normalizer) SweepDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		n.logger.Printf("[WARN] Can't read directory %s: %s", dir, err)
		return 0
	}

	renamed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if n.Excluded(path) {
			continue
		}

		if NeedsNormalization(entry.Name()) {
			if newPath := n.Normalize(path); newPath != path {
				renamed++
				path = newPath
			}
		}

		if entry.IsDir() {
			renamed += n.SweepDir(path)
		}
	}

	return renamed
}
