// pkg/config/watcher.go

package config

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"

	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ConfigSet is the current list of resolved borgmatic configs, safe for
// concurrent use by the scrape handler and the watcher.
type ConfigSet struct {
	mu       sync.RWMutex
	patterns []string
	paths    []string
}

// NewConfigSet resolves patterns once.
func NewConfigSet(ctx context.Context, patterns []string) (*ConfigSet, error) {
	paths, err := ResolveConfigs(ctx, patterns)
	if err != nil {
		return nil, err
	}
	return &ConfigSet{patterns: patterns, paths: paths}, nil
}

// Paths returns a copy of the resolved config paths.
func (s *ConfigSet) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.paths...)
}

// Refresh re-resolves the patterns. It reports whether the list changed. A
// failed resolution keeps the previous list.
func (s *ConfigSet) Refresh(ctx context.Context) (bool, error) {
	paths, err := ResolveConfigs(ctx, s.patterns)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if reflect.DeepEqual(paths, s.paths) {
		return false, nil
	}
	s.paths = paths
	return true, nil
}

// Watch refreshes s whenever a directory holding one of its patterns changes.
// It returns once the watcher is running; the watch stops with ctx.
func (s *ConfigSet) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return cerr.Wrap(err, "create config watcher")
	}

	dirs := make(map[string]struct{})
	for _, p := range s.patterns {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			otelzap.Ctx(ctx).Warn("Cannot watch config directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	if len(w.WatchList()) == 0 {
		_ = w.Close()
		return cerr.New("none of the borgmatic config directories can be watched")
	}

	go s.runWatcher(ctx, w)
	return nil
}

func (s *ConfigSet) runWatcher(ctx context.Context, w *fsnotify.Watcher) {
	log := otelzap.Ctx(ctx)
	defer func() { _ = w.Close() }()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			changed, err := s.Refresh(ctx)
			if err != nil {
				log.Warn("Keeping previous borgmatic configs", zap.String("event", ev.String()), zap.Error(err))
				continue
			}
			if changed {
				log.Info("Borgmatic configs changed", zap.Strings("configs", s.Paths()))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("Config watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}
