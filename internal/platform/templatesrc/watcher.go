package templatesrc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ehr/notewriter/internal/domain/catalog"
)

// Watcher invalidates loader entries when template files change on disk.
// Bursts of writes for the same mode are coalesced by a debounce window.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	loader      *Loader
	dir         string
	debounceDur time.Duration
	pending     map[catalog.Mode]time.Time
	onChange    func(catalog.Mode)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	logger      zerolog.Logger
}

// NewWatcher watches dir and invalidates loader entries for changed modes.
func NewWatcher(dir string, loader *Loader, logger zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher:     w,
		loader:      loader,
		dir:         dir,
		debounceDur: 250 * time.Millisecond,
		pending:     make(map[catalog.Mode]time.Time),
		logger:      logger,
	}, nil
}

// OnChange registers a callback fired after a mode is invalidated.
func (w *Watcher) OnChange(fn func(catalog.Mode)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Start begins watching. It returns once the directory is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx)
	w.logger.Info().Str("dir", w.dir).Msg("watching template directory")
	return nil
}

// Stop halts the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounceDur / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("template watcher error")
		case <-ticker.C:
			w.flushPending(time.Now())
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	mode, ok := modeForFile(ev.Name)
	if !ok {
		return
	}
	w.mu.Lock()
	w.pending[mode] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushPending(now time.Time) {
	w.mu.Lock()
	var ready []catalog.Mode
	for mode, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, mode)
			delete(w.pending, mode)
		}
	}
	fn := w.onChange
	w.mu.Unlock()

	for _, mode := range ready {
		w.loader.Invalidate(mode)
		w.logger.Info().Str("mode", string(mode)).Msg("template changed, cache invalidated")
		if fn != nil {
			fn(mode)
		}
	}
}

// modeForFile maps template_<mode>.{json,yaml,yml} back to its mode.
func modeForFile(path string) (catalog.Mode, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	known := false
	for _, e := range templateExtensions {
		if ext == e {
			known = true
			break
		}
	}
	if !known {
		return "", false
	}
	name := strings.TrimSuffix(base, ext)
	for _, m := range catalog.Modes() {
		if name == catalog.FileBase(m) {
			return m, true
		}
	}
	return "", false
}
