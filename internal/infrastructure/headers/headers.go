// Package headers supplies the request-header set sent to the marketplace.
//
// The cookie part of that set expires; an external collector refreshes it by
// rewriting a YAML file which FileProvider reloads while the process runs.
package headers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Static returns the same headers on every call
type Static struct {
	headers http.Header
}

// NewStatic builds a provider from a name→value map, skipping empty values
func NewStatic(values map[string]string) *Static {
	h := make(http.Header, len(values))
	for name, value := range values {
		if value != "" {
			h.Set(name, value)
		}
	}
	return &Static{headers: h}
}

// Headers returns a copy of the header set
func (s *Static) Headers() http.Header {
	return s.headers.Clone()
}

// FileProvider layers the headers read from a YAML file over a base set
type FileProvider struct {
	path   string
	base   http.Header
	logger *zap.Logger

	mu      sync.RWMutex
	current http.Header
}

// NewFileProvider reads path once. The file is a flat YAML mapping of header name to value.
func NewFileProvider(path string, base map[string]string, logger *zap.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &FileProvider{
		path:   path,
		base:   NewStatic(base).Headers(),
		logger: logger,
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Headers returns a copy of the current header set
func (p *FileProvider) Headers() http.Header {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// Reload re-reads the headers file. On error the previous set stays in place.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read headers file: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse headers file: %w", err)
	}

	merged := p.base.Clone()
	for name, value := range values {
		if value != "" {
			merged.Set(name, value)
		}
	}

	p.mu.Lock()
	p.current = merged
	p.mu.Unlock()

	p.logger.Info("request headers loaded", zap.String("path", p.path), zap.Int("count", len(merged)))
	return nil
}

// Watch reloads the file whenever it is written or replaced, until ctx is cancelled.
// The parent directory is watched so that atomic rename-over writes are seen too.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", p.path, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(p.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := p.Reload(); err != nil {
					p.logger.Warn("headers reload failed", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("headers watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
