package supervisor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultConfigDebounce = 200 * time.Millisecond

// ConfigWatcher calls OnChange when the configuration file is written or
// replaced. The containing directory is watched, so editors that save by
// renaming a temporary file over the original are noticed too.
type ConfigWatcher struct {
	Path     string
	OnChange func()
	Debounce time.Duration

	logger *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewConfigWatcher(path string, onChange func(), logger *log.Logger) *ConfigWatcher {
	if logger == nil {
		logger = log.Default()
	}

	return &ConfigWatcher{
		Path:     filepath.Clean(path),
		OnChange: onChange,
		Debounce: DefaultConfigDebounce,

		logger: logger,
	}
}

func (c *ConfigWatcher) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return nil
	}

	fswatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}

	if addErr := fswatcher.Add(filepath.Dir(c.Path)); addErr != nil {
		_ = fswatcher.Close()
		return fmt.Errorf("can't watch %s: %w", filepath.Dir(c.Path), addErr)
	}

	ctx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer func() {
			_ = fswatcher.Close()
			wg.Done()
		}()

		var fire <-chan time.Time
		for {
			select {
			case event, ok := <-fswatcher.Events:
				if !ok {
					return
				}
				if event.Name != c.Path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				fire = time.After(c.Debounce)

			case <-fire:
				fire = nil
				c.logger.Printf("[INFO] %s changed, reloading configuration", c.Path)
				c.OnChange()

			case err, ok := <-fswatcher.Errors:
				if !ok {
					return
				}
				c.logger.Println("[ERROR] config watcher:", err)

			case <-ctx.Done():
				return
			}
		}
	}()

	c.cancel = cancel
	c.wg = wg
	c.logger.Printf("[INFO] Watching configuration %s", c.Path)

	return nil
}

// Stop returns once the watch goroutine has exited. Safe to call repeatedly.
func (c *ConfigWatcher) Stop() {
	c.mu.Lock()
	cancel, wg := c.cancel, c.wg
	c.cancel, c.wg = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	wg.Wait()
}
