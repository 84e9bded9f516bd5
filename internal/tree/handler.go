package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/capcom6/nfc-watch/internal/metrics"
	"github.com/capcom6/nfc-watch/internal/watcher"
)

// Handle applies one event. Errors never leave the handler.
func (w *Watcher) Handle(event watcher.Event) {
	metrics.RecordEvent(string(event.Kind))

	switch event.Kind {
	case watcher.Created:
		w.diagnose(event.Path)
		w.handleCreated(event)
	case watcher.Modified:
		w.diagnose(event.Path)
		w.handleModified(event)
	case watcher.Deleted:
		w.handleDeleted(event)
	case watcher.Moved:
		w.diagnose(event.DestPath)
		if err := w.handleMoved(event); err != nil {
			w.logger.Printf("[ERROR] Can't process move %s -> %s: %s", event.Path, event.DestPath, err)
		}
	default:
		w.logger.Printf("[DEBUG] Unknown event %q for %s", event.Kind, event.Path)
	}
}

func (w *Watcher) handleCreated(event watcher.Event) {
	path := w.current(event.Path)
	if event.IsDir && path == event.Path {
		// the name is live again, older moves away from it are history
		w.renames.Forget(path)
	}

	newPath := w.normalize(path, event.IsDir)

	if event.IsDir {
		// content of a directory moved in from outside arrives without events
		w.normalizer.SweepDir(newPath)
		w.logger.Printf("[INFO] Directory created: %s", newPath)
		return
	}
	w.logger.Printf("[INFO] File created: %s", newPath)
}

func (w *Watcher) handleModified(event watcher.Event) {
	newPath := w.normalize(w.current(event.Path), event.IsDir)

	if event.IsDir {
		w.logger.Printf("[INFO] Directory modified: %s", newPath)
		return
	}
	w.logger.Printf("[INFO] File modified: %s", newPath)
}

func (w *Watcher) handleDeleted(event watcher.Event) {
	switch {
	case event.Path == w.Root:
		w.logger.Printf("[WARN] Watched folder deleted: %s", event.Path)
	case event.IsDir:
		w.logger.Printf("[INFO] Directory deleted: %s", event.Path)
	default:
		w.logger.Printf("[INFO] File deleted: %s", event.Path)
	}
}

func (w *Watcher) handleMoved(event watcher.Event) error {
	if event.Path == "" || event.DestPath == "" {
		return ErrIncompleteMove
	}
	for _, p := range []string{event.Path, event.DestPath} {
		if !w.normalizer.Inside(p) {
			return fmt.Errorf("%w: %s", ErrOutsideRoot, p)
		}
	}

	src := w.renames.Resolve(event.Path)
	dest := w.current(event.DestPath)

	if !event.IsDir {
		w.logger.Printf("[INFO] File moved: %s -> %s", src, w.normalizer.Normalize(dest))
		return nil
	}

	dst := w.normalize(dest, true)
	// entries created before the new name was watched produced no events
	w.normalizer.SweepDir(dst)

	if src == dst {
		// our own normalization coming back
		return nil
	}
	w.logger.Printf("[INFO] Directory moved: %s -> %s", src, dst)

	w.renames.Record(event.Path, dst)
	if src != event.Path {
		w.renames.Record(src, dst)
	}

	return nil
}

// diagnose only reports; renames happen in the kind specific handlers.
func (w *Watcher) diagnose(path string) {
	decision := w.normalizer.Decide(path)
	if decision.NeedsNormalization {
		w.logger.Printf("[DEBUG] Normalization needed: %s -> %s", path, decision.CanonicalPath)
		return
	}
	w.logger.Printf("[DEBUG] Normalization not needed: %s", path)
}

// current returns path itself while it exists and its remapped location
// otherwise, as the event may predate the move of an ancestor.
func (w *Watcher) current(path string) string {
	if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		return path
	}

	return w.renames.Resolve(path)
}

func (w *Watcher) normalize(path string, isDir bool) string {
	newPath := w.normalizer.Normalize(path)
	if isDir && newPath != path {
		// events for children may still carry the old name
		w.renames.Record(path, newPath)
	}

	return newPath
}
