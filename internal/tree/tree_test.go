package tree

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capcom6/nfc-watch/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cafeNFD = "cafe\u0301.txt"
	cafeNFC = "caf\u00e9.txt"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestWatcher(t *testing.T) (*Watcher, *syncBuffer) {
	t.Helper()

	buf := &syncBuffer{}
	w := New(t.TempDir(), Options{Logger: log.New(buf, "", 0)})

	return w, buf
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestHandle_Created(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, cafeNFD)
	touch(t, src)

	w.Handle(watcher.Event{Kind: watcher.Created, Path: src})

	want := filepath.Join(w.Root, cafeNFC)
	assert.FileExists(t, want)
	assert.Contains(t, buf.String(), "[INFO] File created: "+want)
	assert.Contains(t, buf.String(), "[DEBUG] Normalization needed: "+src)
}

func TestHandle_CreatedDirectoryRecordsNormalization(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, "Mu\u0308sik")
	require.NoError(t, os.Mkdir(src, 0o700))
	touch(t, filepath.Join(src, cafeNFD))

	w.Handle(watcher.Event{Kind: watcher.Created, Path: src, IsDir: true})

	dst := filepath.Join(w.Root, "M\u00fcsik")
	assert.Contains(t, buf.String(), "[INFO] Directory created: "+dst)
	assert.FileExists(t, filepath.Join(dst, cafeNFC), "content is swept")
	assert.Equal(t, filepath.Join(dst, "a.txt"), w.renames.Resolve(filepath.Join(src, "a.txt")))
}

func TestHandle_CreatedInsideRenamedDirectory(t *testing.T) {
	w, buf := newTestWatcher(t)
	oldDir := filepath.Join(w.Root, "old")
	newDir := filepath.Join(w.Root, "new")
	require.NoError(t, os.Mkdir(newDir, 0o700))
	touch(t, filepath.Join(newDir, "x.txt"))

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: oldDir, DestPath: newDir, IsDir: true})
	w.Handle(watcher.Event{Kind: watcher.Created, Path: filepath.Join(oldDir, "x.txt")})

	assert.Contains(t, buf.String(), "[INFO] Directory moved: "+oldDir+" -> "+newDir)
	assert.Contains(t, buf.String(), "[INFO] File created: "+filepath.Join(newDir, "x.txt"))
}

func TestHandle_CreatedDirectoryAtMovedAwayLocation(t *testing.T) {
	w, _ := newTestWatcher(t)
	oldDir := filepath.Join(w.Root, "old")
	newDir := filepath.Join(w.Root, "new")
	require.NoError(t, os.Mkdir(newDir, 0o700))

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: oldDir, DestPath: newDir, IsDir: true})
	require.Equal(t, 1, w.renames.Len())

	require.NoError(t, os.Mkdir(oldDir, 0o700))
	w.Handle(watcher.Event{Kind: watcher.Created, Path: oldDir, IsDir: true})

	assert.Zero(t, w.renames.Len())
	assert.Equal(t, filepath.Join(oldDir, "f"), w.renames.Resolve(filepath.Join(oldDir, "f")))
}

func TestHandle_Modified(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, cafeNFD)
	touch(t, src)

	w.Handle(watcher.Event{Kind: watcher.Modified, Path: src})

	assert.Contains(t, buf.String(), "[INFO] File modified: "+filepath.Join(w.Root, cafeNFC))
}

func TestHandle_DeletedDoesNotNormalize(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, cafeNFD)
	touch(t, src)

	w.Handle(watcher.Event{Kind: watcher.Deleted, Path: src})
	w.Handle(watcher.Event{Kind: watcher.Deleted, Path: filepath.Join(w.Root, "dir"), IsDir: true})
	w.Handle(watcher.Event{Kind: watcher.Deleted, Path: w.Root, IsDir: true})

	entries, err := os.ReadDir(w.Root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cafeNFD, entries[0].Name())

	out := buf.String()
	assert.Contains(t, out, "[INFO] File deleted: "+src)
	assert.Contains(t, out, "[INFO] Directory deleted: "+filepath.Join(w.Root, "dir"))
	assert.Contains(t, out, "[WARN] Watched folder deleted: "+w.Root)
	assert.NotContains(t, out, "Normalization")
}

func TestHandle_MovedFile(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, "draft.txt")
	dest := filepath.Join(w.Root, cafeNFD)
	touch(t, dest)

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: src, DestPath: dest})

	assert.Contains(t, buf.String(), "[INFO] File moved: "+src+" -> "+filepath.Join(w.Root, cafeNFC))
	assert.Zero(t, w.renames.Len(), "file moves are not tracked")
}

func TestHandle_MovedDirectoryWithStaleEndpoints(t *testing.T) {
	w, buf := newTestWatcher(t)
	a := filepath.Join(w.Root, "a")
	b := filepath.Join(w.Root, "b")
	require.NoError(t, os.MkdirAll(filepath.Join(b, "sub2"), 0o700))

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: a, DestPath: b, IsDir: true})
	// reported with the pre-move parent
	w.Handle(watcher.Event{
		Kind:     watcher.Moved,
		Path:     filepath.Join(a, "sub"),
		DestPath: filepath.Join(a, "sub2"),
		IsDir:    true,
	})

	assert.Contains(t, buf.String(),
		"[INFO] Directory moved: "+filepath.Join(b, "sub")+" -> "+filepath.Join(b, "sub2"))
	assert.Equal(t, filepath.Join(b, "sub2", "f"), w.renames.Resolve(filepath.Join(a, "sub", "f")))
	assert.Equal(t, filepath.Join(b, "sub2", "f"), w.renames.Resolve(filepath.Join(b, "sub", "f")))
}

func TestHandle_MovedDirectorySweepsDestination(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, "inbox")
	dst := filepath.Join(w.Root, "archive")
	require.NoError(t, os.Mkdir(dst, 0o700))
	touch(t, filepath.Join(dst, cafeNFD))

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: src, DestPath: dst, IsDir: true})

	assert.FileExists(t, filepath.Join(dst, cafeNFC))
	assert.Contains(t, buf.String(), "[INFO] Directory moved: "+src+" -> "+dst)
}

func TestHandle_OwnDirectoryRenameIsNotReported(t *testing.T) {
	w, buf := newTestWatcher(t)
	src := filepath.Join(w.Root, "Mu\u0308sik")
	dst := filepath.Join(w.Root, "M\u00fcsik")
	require.NoError(t, os.Mkdir(src, 0o700))

	w.Handle(watcher.Event{Kind: watcher.Created, Path: src, IsDir: true})
	require.DirExists(t, dst)
	// appeared after the rename, before the new name was watched
	touch(t, filepath.Join(dst, cafeNFD))

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: src, DestPath: dst, IsDir: true})

	assert.FileExists(t, filepath.Join(dst, cafeNFC))
	assert.NotContains(t, buf.String(), "Directory moved")
}

func TestHandle_MovedErrorsAreContained(t *testing.T) {
	w, buf := newTestWatcher(t)

	w.Handle(watcher.Event{Kind: watcher.Moved, Path: filepath.Join(w.Root, "a")})
	w.Handle(watcher.Event{Kind: watcher.Moved, Path: "/elsewhere/a", DestPath: filepath.Join(w.Root, "a")})

	out := buf.String()
	assert.Contains(t, out, ErrIncompleteMove.Error())
	assert.Contains(t, out, ErrOutsideRoot.Error())
	assert.Zero(t, w.renames.Len())
}

func TestWatcher_StartSweepsThenWatches(t *testing.T) {
	w, buf := newTestWatcher(t)
	w.options.MoveWindow = 20 * time.Millisecond
	touch(t, filepath.Join(w.Root, cafeNFD))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.FileExists(t, filepath.Join(w.Root, cafeNFC))
	assert.Equal(t, 1, strings.Count(buf.String(), "Name normalized"))
	assert.Contains(t, buf.String(), "1 renamed")

	require.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)

	live := filepath.Join(w.Root, "Mu\u0308nchen.txt")
	touch(t, live)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(w.Root, "M\u00fcnchen.txt"))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, buf := newTestWatcher(t)

	w.Stop()
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()

	assert.Equal(t, 1, strings.Count(buf.String(), "Stopped watching"))
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), Options{Logger: log.New(&syncBuffer{}, "", 0)})

	err := w.Start(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
	w.Stop()
}
