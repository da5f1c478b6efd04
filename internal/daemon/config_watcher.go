package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robolab/robostrap/internal/logfields"
)

// configWatcher monitors the configuration file and triggers a reload after
// a debounce window. Watching the parent directory is more reliable than
// watching the file itself: editors replace files on save.
type configWatcher struct {
	configPath string
	onChange   func()
	watcher    *fsnotify.Watcher
	stopChan   chan struct{}
	debounce   time.Duration
}

func newConfigWatcher(configPath string, onChange func()) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return &configWatcher{
		configPath: absPath,
		onChange:   onChange,
		watcher:    watcher,
		stopChan:   make(chan struct{}),
		debounce:   2 * time.Second,
	}, nil
}

func (cw *configWatcher) start(ctx context.Context) error {
	if err := cw.watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	slog.Info("Watching configuration file", logfields.Path(cw.configPath))
	go cw.loop(ctx)
	return nil
}

func (cw *configWatcher) stop() {
	close(cw.stopChan)
	_ = cw.watcher.Close()
}

func (cw *configWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("Config file changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", logfields.Error(err))
		case <-fire:
			cw.onChange()
		case <-cw.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
