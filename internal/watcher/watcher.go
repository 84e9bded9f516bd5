// Package watcher turns fsnotify notifications for a directory tree into a
// stream of created, modified, deleted and moved events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/capcom6/nfc-watch/internal/exclude"
	"github.com/fsnotify/fsnotify"
)

// DefaultMoveWindow is how long a rename waits for its matching create before
// it is reported as a deletion.
const DefaultMoveWindow = 100 * time.Millisecond

const eventsBuffer = 64

// pendingRename is a Rename waiting for its Create. info is the cached
// directory info, nil for files.
type pendingRename struct {
	path string
	info os.FileInfo
}

func (p pendingRename) isDir() bool {
	return p.info != nil
}

// Watcher watches RootPath recursively. fsnotify only watches single
// directories, so every directory of the tree gets its own watch.
type Watcher struct {
	RootPath   string
	Excludes   []string
	MoveWindow time.Duration

	excluded  *exclude.Matcher
	fswatcher *fsnotify.Watcher
	events    chan Event

	// dirs holds every watched directory. fsnotify drops its own watch on
	// delete before the parent reports it, so the watch list can't tell.
	dirs map[string]os.FileInfo

	pending   *pendingRename
	lastMoved string
}

func New(rootPath string, excludes []string) *Watcher {
	return &Watcher{
		RootPath:   rootPath,
		Excludes:   excludes,
		MoveWindow: DefaultMoveWindow,
	}
}

// Watch installs the watches and starts delivering events until ctx is done.
// The returned channel is closed when the watcher stops.
func (w *Watcher) Watch(ctx context.Context, wg *sync.WaitGroup) (EventsChannel, error) {
	if w.events != nil {
		return w.events, nil
	}

	rootPath, err := w.prepareRoot()
	if err != nil {
		return nil, fmt.Errorf("prepareRoot: %w", err)
	}
	w.RootPath = rootPath
	w.excluded = exclude.New(rootPath, w.Excludes)

	w.fswatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	w.dirs = make(map[string]os.FileInfo)

	if addErr := w.addRecursive(rootPath); addErr != nil {
		_ = w.fswatcher.Close()
		return nil, fmt.Errorf("addRecursive: %w", addErr)
	}

	if w.MoveWindow <= 0 {
		w.MoveWindow = DefaultMoveWindow
	}

	events := make(chan Event, eventsBuffer)
	w.events = events

	wg.Add(1)
	go func() {
		defer func() {
			_ = w.fswatcher.Close()
			close(events)
			w.fswatcher = nil
			w.excluded = nil
			w.events = nil
			w.pending = nil
			w.dirs = nil
			wg.Done()
		}()

		var flush <-chan time.Time
		for {
			select {
			case event, ok := <-w.fswatcher.Events:
				if !ok {
					return
				}

				if err := w.processEvent(ctx, event); err != nil {
					log.Println("[ERROR] watcher:", err)
				}

				flush = nil
				if w.pending != nil {
					flush = time.After(w.MoveWindow)
				}

			case <-flush:
				flush = nil
				w.flushPending(ctx)

			case err, ok := <-w.fswatcher.Errors:
				if !ok {
					return
				}
				log.Println("[ERROR] watcher:", err)

			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (w *Watcher) processEvent(ctx context.Context, source fsnotify.Event) error {
	if source.Op == fsnotify.Chmod {
		return nil
	}
	if source.Name == "" || source.Name == "." {
		return nil
	}
	if w.excluded.Match(source.Name) {
		return nil
	}

	// A renamed watched directory reports its own move once more.
	echo := w.lastMoved
	w.lastMoved = ""
	if source.Has(fsnotify.Rename) {
		if source.Name == echo || (w.pending != nil && w.pending.path == source.Name) {
			return nil
		}
	}

	if w.pending != nil {
		pending := *w.pending
		w.pending = nil

		if source.Has(fsnotify.Create) && w.sameEntry(pending, source.Name) {
			return w.completeMove(ctx, pending, source.Name)
		}

		w.emit(ctx, Event{Kind: Deleted, Path: pending.path, IsDir: pending.isDir()})
	}

	switch {
	case source.Has(fsnotify.Rename):
		w.pending = &pendingRename{
			path: source.Name,
			info: w.forget(source.Name),
		}
		return nil

	case source.Has(fsnotify.Remove):
		info := w.forget(source.Name)
		w.emit(ctx, Event{Kind: Deleted, Path: source.Name, IsDir: info != nil})
		return nil

	case source.Has(fsnotify.Create):
		isDir, err := w.isDir(source.Name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("isDir: %w", err)
		}
		if isDir {
			if addErr := w.addRecursive(source.Name); addErr != nil {
				log.Println("[WARN] watcher:", addErr)
			}
		}
		w.emit(ctx, Event{Kind: Created, Path: source.Name, IsDir: isDir})
		return nil

	case source.Has(fsnotify.Write):
		isDir, err := w.isDir(source.Name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("isDir: %w", err)
		}
		w.emit(ctx, Event{Kind: Modified, Path: source.Name, IsDir: isDir})
		return nil
	}

	return nil
}

func (w *Watcher) completeMove(ctx context.Context, pending pendingRename, dest string) error {
	isDir, err := w.isDir(dest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		isDir = pending.isDir()
	case err != nil:
		return fmt.Errorf("isDir: %w", err)
	}

	if isDir {
		if addErr := w.addRecursive(dest); addErr != nil {
			log.Println("[WARN] watcher:", addErr)
		}
	}
	if pending.isDir() {
		w.lastMoved = pending.path
	}

	w.emit(ctx, Event{Kind: Moved, Path: pending.path, DestPath: dest, IsDir: isDir})

	return nil
}

func (w *Watcher) flushPending(ctx context.Context) {
	if w.pending == nil {
		return
	}

	pending := *w.pending
	w.pending = nil

	w.emit(ctx, Event{Kind: Deleted, Path: pending.path, IsDir: pending.isDir()})
}

// sameEntry reports whether dest is where the pending rename went. A
// directory must be the very same inode. For a file only the name is known,
// so it must keep either its directory or its base name.
func (w *Watcher) sameEntry(pending pendingRename, dest string) bool {
	info, err := os.Lstat(dest)
	if err != nil {
		return false
	}

	if pending.isDir() {
		return os.SameFile(pending.info, info)
	}
	if info.IsDir() {
		return false
	}

	return filepath.Dir(dest) == filepath.Dir(pending.path) ||
		filepath.Base(dest) == filepath.Base(pending.path)
}

func (w *Watcher) emit(ctx context.Context, event Event) {
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}

// forget drops the watches of path and everything below it. It returns the
// cached info of path when it was a watched directory and nil otherwise.
func (w *Watcher) forget(path string) os.FileInfo {
	info := w.dirs[path]
	prefix := path + string(filepath.Separator)

	for dir := range w.dirs {
		if dir != path && !strings.HasPrefix(dir, prefix) {
			continue
		}
		delete(w.dirs, dir)
		// the kernel may have dropped the watch already
		_ = w.fswatcher.Remove(dir)
	}

	return info
}

func (w *Watcher) isDir(fullpath string) (bool, error) {
	info, err := os.Lstat(fullpath)
	if err != nil {
		return false, fmt.Errorf("os.Lstat: %w", err)
	}

	return info.IsDir(), nil
}

func (w *Watcher) prepareRoot() (string, error) {
	rootPath, err := filepath.Abs(w.RootPath)
	if err != nil {
		return rootPath, fmt.Errorf("filepath.Abs: %w", err)
	}

	if ok, err := w.isDir(rootPath); err != nil {
		return rootPath, fmt.Errorf("isDir: %w", err)
	} else if !ok {
		return rootPath, fmt.Errorf("%w: %s", ErrNotDirectory, rootPath)
	}

	return rootPath, nil
}

func (w *Watcher) addRecursive(path string) error {
	if w.excluded.Match(path) {
		return nil
	}

	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("os.Lstat: %w", err)
	}

	if addErr := w.fswatcher.Add(path); addErr != nil {
		return fmt.Errorf("fswatcher.Add: %w", addErr)
	}
	w.dirs[path] = info

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("os.ReadDir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(path, entry.Name())
		err := w.addRecursive(path)
		if err != nil {
			return err
		}
	}

	return nil
}
