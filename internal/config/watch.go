package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands the
// fresh config to a callback. Editors often write a file several times in
// quick succession, so events are debounced before reloading.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *log.Logger

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pendingAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const debounceInterval = 250 * time.Millisecond

// NewWatcher creates a watcher for the config file at path. onChange is
// called with each successfully reloaded config; reload failures are
// logged and the previous config stays in effect.
func NewWatcher(path string, onChange func(*Config), logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[config] ", log.LstdFlags)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files by rename
	// and a watch on the old inode goes stale.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Start begins watching in the background until Stop is called.
func (w *Watcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.processPending(ctx)
}

// Stop shuts the watcher down and waits for its goroutines.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			w.pendingMu.Lock()
			w.pendingAt = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.pendingMu.Lock()
			pending := !w.pendingAt.IsZero() && time.Since(w.pendingAt) >= debounceInterval
			if pending {
				w.pendingAt = time.Time{}
			}
			w.pendingMu.Unlock()

			if pending {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Printf("Config reload failed, keeping previous config: %v", err)
		return
	}

	w.logger.Printf("Config reloaded from %s", w.path)
	w.onChange(cfg)
}
