package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/domain/capabilities"
)

// DefaultDebounce collapses the burst of events editors emit on save
const DefaultDebounce = 100 * time.Millisecond

// CapabilityWatcher reloads the model capability table when its file
// changes. A file that fails to parse or validate is ignored and the
// current table stays in place.
type CapabilityWatcher struct {
	path     string
	registry *capabilities.Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	onChange []func(*capabilities.Table)
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// LoadCapabilities reads the capability table at path
func LoadCapabilities(path string) (*capabilities.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capability file: %w", err)
	}
	defer f.Close()
	return capabilities.LoadYAML(f)
}

// NewCapabilityWatcher loads path into registry and prepares to watch it
func NewCapabilityWatcher(path string, registry *capabilities.Registry, logger *zap.Logger) (*CapabilityWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table, err := LoadCapabilities(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial capabilities: %w", err)
	}
	registry.Swap(table)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (write + rename) are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch capability directory: %w", err)
	}

	return &CapabilityWatcher{
		path:     path,
		registry: registry,
		watcher:  watcher,
		debounce: DefaultDebounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// OnChange registers fn to run after every successful reload
func (w *CapabilityWatcher) OnChange(fn func(*capabilities.Table)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for changes
func (w *CapabilityWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Capability watcher started", zap.String("path", w.path))
}

// Stop stops watching
func (w *CapabilityWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		<-w.done
		w.logger.Info("Capability watcher stopped")
	})
}

func (w *CapabilityWatcher) watchLoop() {
	defer close(w.done)

	var debounceTimer *time.Timer
	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *CapabilityWatcher) reload() {
	table, err := LoadCapabilities(w.path)
	if err != nil {
		w.logger.Error("Invalid capability file, keeping current table",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	old := w.registry.Swap(table)
	w.logger.Info("Capabilities reloaded",
		zap.Int("previousModels", old.Len()),
		zap.Int("models", table.Len()))

	w.mu.Lock()
	handlers := append([]func(*capabilities.Table){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(table)
	}
}
