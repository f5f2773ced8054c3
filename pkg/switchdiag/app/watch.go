package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
)

// watcher turns YAML file events under the config directories into debounced
// reload calls.
type watcher struct {
	fs     *fsnotify.Watcher
	delay  time.Duration
	logger *slog.Logger
	reload func()

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// newWatcher watches every existing directory in paths. Missing directories
// are skipped, matching config.Load.
func newWatcher(paths config.Paths, delay time.Duration, logger *slog.Logger, reload func()) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &watcher{fs: fw, delay: delay, logger: logger, reload: reload}

	for _, dir := range []string{paths.Devices, paths.Defaults} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Debug("app: not watching missing directory", "dir", dir)
			continue
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Info("app: watching configuration directory", "dir", dir)
	}
	return w, nil
}

func (w *watcher) start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// stop closes the underlying watcher and waits for the loop to exit. Safe to
// call on a watcher that was never started.
func (w *watcher) stop() {
	w.stopOnce.Do(func() {
		if err := w.fs.Close(); err != nil {
			w.logger.Error("app: close file watcher", "error", err.Error())
		}
	})
	w.wg.Wait()
}

func (w *watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("app: config file event", "file", ev.Name, "op", ev.Op.String())
			pending = true
			debounce.Reset(w.delay)

		case <-debounce.C:
			if pending {
				pending = false
				w.reload()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("app: file watcher error", "error", err.Error())
		}
	}
}

// relevant reports whether ev changes a YAML file's content or presence.
func relevant(ev fsnotify.Event) bool {
	ext := strings.ToLower(filepath.Ext(ev.Name))
	if ext != ".yml" && ext != ".yaml" {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
