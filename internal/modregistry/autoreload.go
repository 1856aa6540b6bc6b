package modregistry

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mercurialworld/pochamoe-api/internal/logx"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// AutoReload watches the directory holding path and reloads list after
// debounce once the file settles. The directory is watched so editors that
// replace the file by rename are still seen.
func AutoReload(list *AllowList, path string, debounce time.Duration) (io.Closer, error) {
	path = strings.TrimSpace(path)
	if list == nil || path == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		resetTimer := func() {
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			timerC = timer.C
		}

		for {
			select {
			case <-stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerC:
				timerC = nil
				diff, err := list.ReloadFile(abs)
				if err != nil {
					logx.Warnf("reload failed (mods auto): %v", err)
					continue
				}
				logx.Infof("reload ok (mods auto): file=%q changed=%s", abs, diff)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logx.Warnf("mods auto-reload watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if shouldTriggerReload(evt, abs) {
					resetTimer()
				}
			}
		}
	}()

	logx.Infof("mods auto-reload enabled: file=%q debounce_ms=%d", abs, debounce.Milliseconds())
	return closerFunc(func() error {
		close(stopCh)
		_ = watcher.Close()
		<-doneCh
		return nil
	}), nil
}

func shouldTriggerReload(evt fsnotify.Event, target string) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(evt.Name) == filepath.Clean(target)
}
