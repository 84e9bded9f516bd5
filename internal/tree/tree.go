// Package tree keeps the names inside one watched folder canonical: it sweeps
// the folder once, then normalizes entries as filesystem events arrive.
package tree

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/capcom6/nfc-watch/internal/nfc"
	"github.com/capcom6/nfc-watch/internal/renames"
	"github.com/capcom6/nfc-watch/internal/watcher"
)

type Options struct {
	Exclude    []string
	MoveWindow time.Duration
	Logger     *log.Logger
}

// Watcher owns the recursive watch of a single root. Its rename history is
// private and dies with it.
type Watcher struct {
	Root string

	options    Options
	normalizer *nfc.Normalizer
	renames    *renames.Tracker
	logger     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func New(root string, opts Options) *Watcher {
	root = filepath.Clean(root)

	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Watcher{
		Root: root,

		options: opts,
		normalizer: nfc.New(root, nfc.Options{
			Exclude: opts.Exclude,
			Logger:  opts.Logger,
		}),
		renames: renames.New(),
		logger:  opts.Logger,
	}
}

// Start sweeps the existing tree and only then installs the watch, so live
// events never meet a name the sweep has not seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	w.logger.Printf("[INFO] Processing existing entries of %s...", w.Root)
	renamed, err := w.normalizer.Sweep()
	if err != nil {
		return fmt.Errorf("can't sweep %s: %w", w.Root, err)
	}
	w.logger.Printf("[INFO] Existing entries of %s processed, %d renamed", w.Root, renamed)

	ctx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}

	source := watcher.New(w.Root, w.options.Exclude)
	if w.options.MoveWindow > 0 {
		source.MoveWindow = w.options.MoveWindow
	}

	events, err := source.Watch(ctx, wg)
	if err != nil {
		cancel()
		return fmt.Errorf("can't watch %s: %w", w.Root, err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		for event := range events {
			w.Handle(event)
		}
	}()

	w.cancel = cancel
	w.wg = wg
	w.logger.Printf("[INFO] Watching %s", w.Root)

	return nil
}

// Stop cancels the watch and waits for its goroutines. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, wg := w.cancel, w.wg
	w.cancel, w.wg = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	wg.Wait()

	w.logger.Printf("[INFO] Stopped watching %s", w.Root)
}
