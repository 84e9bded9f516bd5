// Package supervisor runs one tree watcher per configured folder and rebuilds
// the whole set whenever the watch configuration changes.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/capcom6/nfc-watch/internal/config"
	"github.com/capcom6/nfc-watch/internal/metrics"
	"github.com/capcom6/nfc-watch/internal/tree"
	"github.com/samber/lo"
)

type Watcher interface {
	Start(ctx context.Context) error
	Stop()
}

type Factory func(root string, cfg config.Watch, logger *log.Logger) Watcher

func TreeFactory(root string, cfg config.Watch, logger *log.Logger) Watcher {
	return tree.New(root, tree.Options{
		Exclude: cfg.Exclude,
		Logger:  logger,
	})
}

type Options struct {
	Factory        Factory
	Logger         *log.Logger
	ConfigDebounce time.Duration
}

type Supervisor struct {
	configPath string
	options    Options
	logger     *log.Logger

	mu      sync.Mutex
	state   *state
	stopped bool

	// active outlives state while a restart swaps generations.
	active    config.Watch
	hasActive bool

	restart  chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// state is everything one configuration generation owns.
type state struct {
	cfg         config.Watch
	roots       map[string]Watcher
	configWatch *ConfigWatcher
}

func (s *state) stop() {
	if s == nil {
		return
	}

	for _, w := range s.roots {
		w.Stop()
	}
	if s.configWatch != nil {
		s.configWatch.Stop()
	}
}

func New(configPath string, opts Options) *Supervisor {
	if opts.Factory == nil {
		opts.Factory = TreeFactory
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.ConfigDebounce <= 0 {
		opts.ConfigDebounce = DefaultConfigDebounce
	}

	return &Supervisor{
		configPath: configPath,
		options:    opts,
		logger:     opts.Logger,

		restart: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called. Only a failure to load
// the initial configuration or to watch the configuration file is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("can't load configuration: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	st, err := s.build(ctx, cfg)
	if err == nil {
		s.activate(st)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return nil
		case <-s.done:
			return nil
		case <-s.restart:
			if err := s.restartWatchers(ctx); err != nil {
				s.Stop()
				return err
			}
		}
	}
}

// Reload compares the configuration on disk with the active one and asks Run
// to restart when they differ. It never touches running watchers itself.
func (s *Supervisor) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := config.Load(s.configPath)
	if err != nil {
		metrics.RecordReload(metrics.ReloadFailed)
		s.logger.Printf("[ERROR] Can't reload configuration, keeping the current one: %s", err)
		return
	}

	if s.hasActive && cfg.Equal(s.active) {
		metrics.RecordReload(metrics.ReloadUnchanged)
		s.logger.Println("[INFO] Configuration unchanged")
		return
	}

	metrics.RecordReload(metrics.ReloadChanged)
	s.logger.Println("[INFO] Configuration changed, restarting watchers")

	select {
	case s.restart <- struct{}{}:
	default:
	}
}

// Stop stops every watcher and the configuration watch. Safe to call
// repeatedly and from any goroutine.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	st := s.state
	s.state = nil
	s.stopped = true
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })

	if st == nil {
		return
	}

	st.stop()
	metrics.SetWatchedRoots(0)
	s.logger.Println("[INFO] All watches stopped")
}

func (s *Supervisor) restartWatchers(ctx context.Context) error {
	s.mu.Lock()
	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.mu.Unlock()
		s.logger.Printf("[ERROR] Restart aborted, keeping the current configuration: %s", err)
		return nil
	}
	if s.stopped || s.hasActive && cfg.Equal(s.active) {
		s.mu.Unlock()
		return nil
	}
	old := s.state
	s.state = nil
	s.mu.Unlock()

	// joins happen without the lock: a config callback may be waiting on it
	old.stop()
	s.logger.Println("[INFO] Previous watchers stopped")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	if latest, err := config.Load(s.configPath); err == nil {
		cfg = latest
	}

	st, err := s.build(ctx, cfg)
	if err != nil {
		return err
	}
	s.activate(st)
	s.logger.Printf("[INFO] Watchers restarted for %d folder(s)", len(st.roots))

	return nil
}

// activate must be called with s.mu held.
func (s *Supervisor) activate(st *state) {
	s.state = st
	s.active = st.cfg
	s.hasActive = true
}

// build must be called with s.mu held.
func (s *Supervisor) build(ctx context.Context, cfg config.Watch) (*state, error) {
	st := &state{
		cfg:   cfg,
		roots: make(map[string]Watcher, len(cfg.Folders)),
	}

	for _, folder := range cfg.Folders {
		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			s.logger.Printf("[WARN] Folder %s does not exist, skipping", folder)
			continue
		}

		w := s.options.Factory(folder, cfg, s.logger)
		if err := w.Start(ctx); err != nil {
			s.logger.Printf("[ERROR] Can't watch %s: %s", folder, err)
			continue
		}
		st.roots[folder] = w
	}

	cw := NewConfigWatcher(s.configPath, s.Reload, s.logger)
	cw.Debounce = s.options.ConfigDebounce
	if err := cw.Start(ctx); err != nil {
		st.stop()
		return nil, fmt.Errorf("can't watch configuration: %w", err)
	}
	st.configWatch = cw

	roots := lo.Keys(st.roots)
	slices.Sort(roots)
	s.logger.Printf("[INFO] Watching folders: %v", roots)
	metrics.SetWatchedRoots(len(roots))

	return st, nil
}
