package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/powerwatch/internal/ports"
)

// DefaultDebounceDelay is the delay after the last file event before reloading.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher reloads the config file when it changes and hands every valid
// result to onChange. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	load     func() (Config, error)
	onChange func(Config)
	logger   ports.Logger

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for path. load re-resolves the full
// configuration; onChange receives the result.
func NewWatcher(path string, load func() (Config, error), onChange func(Config), logger ports.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultDebounceDelay,
		load:     load,
		onChange: onChange,
		logger:   logger,
	}
}

// Start begins watching the directory holding the config file. The file
// itself does not need to exist yet.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors usually replace the file, so watch its directory.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx, fw)

	w.logger.Info("watching config file", ports.String("path", w.path))
	return nil
}

// Stop ends the watch and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", ports.Err(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		w.logger.Warn("ignoring invalid config change", ports.String("path", w.path), ports.Err(err))
		return
	}
	w.logger.Info("config file reloaded", ports.String("path", w.path))
	w.onChange(cfg)
}
