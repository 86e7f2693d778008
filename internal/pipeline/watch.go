package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch runs the batch once, then again each time channel files under
// cfg.InputDir have been quiet for cfg.WatchDebounce. Sessions finished by an
// earlier run are skipped because their outputs exist. onReport, when
// non-nil, receives every run's report. Watch returns nil when ctx is
// cancelled.
func (p *Pipeline) Watch(ctx context.Context, onReport func(*Report)) error {
	cfg := p.Config
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, cfg.InputDir); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.InputDir, err)
	}

	d := newDebouncer(cfg.WatchDebounce)
	defer d.stop()

	run := func() {
		rep, err := p.Run(ctx)
		if err != nil {
			p.Log.Error("%v", err)
			return
		}
		if onReport != nil {
			onReport(rep)
		}
	}

	run()
	p.Log.Info("Watching %s for new channel files (Ctrl-C to stop)", cfg.InputDir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						p.Log.Warn("Cannot watch %s: %v", event.Name, err)
					}
					d.schedule()
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), cfg.Extension) {
				continue
			}
			p.Log.Debug("Changed: %s", event.Name)
			d.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.Log.Warn("Watcher error: %v", err)

		case <-d.C:
			if ctx.Err() != nil {
				return nil
			}
			run()
			p.Log.Info("Watching %s for new channel files (Ctrl-C to stop)", cfg.InputDir)
		}
	}
}

// watchTree adds root and every non-hidden directory below it.
func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(e.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// debouncer delivers on C once schedule has not been called for delay.
type debouncer struct {
	C     chan struct{}
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{C: make(chan struct{}, 1), delay: delay}
}

func (d *debouncer) schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.C <- struct{}{}:
		default:
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
