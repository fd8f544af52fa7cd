package rules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// Watcher flags a Store as stale when rule files change behind its
// back, e.g. a hand edit or a second instance while an interactive
// session is open. It never refreshes the store itself; the owning
// goroutine polls Stale and refreshes, keeping the store
// single-threaded.
type Watcher struct {
	watcher *fsnotify.Watcher
	dirty   atomic.Bool
}

// NewWatcher watches dir until ctx is cancelled.
// `wg` is waited on before the process exits.
func NewWatcher(ctx context.Context, wg *sync.WaitGroup, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{watcher: fsw}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer w.watcher.Close()

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					klog.V(3).Infof("Rules directory changed (%s)", event)
					w.dirty.Store(true)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				klog.Errorf("Rules watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return w, nil
}

// Stale reports and clears the pending-change flag.
func (w *Watcher) Stale() bool {
	return w.dirty.Swap(false)
}
