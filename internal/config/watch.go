package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Watch is an immutable snapshot of the watch configuration file.
type Watch struct {
	// Folders are absolute, cleaned and unique, in file order.
	Folders []string
	// Exclude holds doublestar patterns matched against root-relative paths.
	Exclude []string
}

type watchFile struct {
	WatchFolders *[]string `json:"watch_folders" yaml:"watch_folders" toml:"watch_folders"`
	Exclude      []string  `json:"exclude"       yaml:"exclude"       toml:"exclude"`
}

// Equal reports whether both snapshots describe the same watch set.
func (w Watch) Equal(other Watch) bool {
	return slices.Equal(w.Folders, other.Folders) && slices.Equal(w.Exclude, other.Exclude)
}

// Load reads and validates the watch configuration stored at path. The
// format is selected by the file extension.
func Load(path string) (Watch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Watch{}, fmt.Errorf("can't read configuration %s: %w", path, err)
	}

	var raw watchFile
	if decErr := decode(path, data, &raw); decErr != nil {
		return Watch{}, decErr
	}

	return raw.build(filepath.Dir(path))
}

func decode(path string, data []byte, v *watchFile) error {
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".toml":
		err = toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err != nil {
		return fmt.Errorf("%w: can't parse %s: %w", ErrInvalidConfig, path, err)
	}

	return nil
}

func (f watchFile) build(baseDir string) (Watch, error) {
	if f.WatchFolders == nil {
		return Watch{}, fmt.Errorf("%w: watch_folders is required", ErrInvalidConfig)
	}

	folders := make([]string, 0, len(*f.WatchFolders))
	for i, folder := range *f.WatchFolders {
		folder = strings.TrimSpace(folder)
		if folder == "" {
			return Watch{}, fmt.Errorf("%w: watch_folders[%d] is empty", ErrInvalidConfig, i)
		}
		if !filepath.IsAbs(folder) {
			folder = filepath.Join(baseDir, folder)
		}
		folders = append(folders, filepath.Clean(folder))
	}

	for _, pattern := range f.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return Watch{}, fmt.Errorf("%w: bad exclude pattern %q", ErrInvalidConfig, pattern)
		}
	}

	return Watch{
		Folders: lo.Uniq(folders),
		Exclude: lo.Uniq(f.Exclude),
	}, nil
}
