// Package exclude matches paths below a watched root against doublestar
// patterns.
package exclude

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"
)

type Matcher struct {
	root     string
	patterns []string
}

func New(root string, patterns []string) *Matcher {
	return &Matcher{
		root:     filepath.Clean(root),
		patterns: patterns,
	}
}

// Match reports whether path or one of its ancestors below the root matches
// any pattern. The root itself and paths outside of it never match.
func (m *Matcher) Match(path string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i := range segments {
		candidate := strings.Join(segments[:i+1], "/")
		if lo.ContainsBy(m.patterns, func(pattern string) bool {
			ok, _ := doublestar.Match(pattern, candidate)
			return ok
		}) {
			return true
		}
	}

	return false
}
