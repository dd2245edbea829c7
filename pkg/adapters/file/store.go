// Package file provides a YAML-file ownership store with hot reload, for
// deployments that manage capability migrations through config files.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/tessera/pkg/domain"
)

// overrideDoc is the on-disk YAML shape, keyed by capability.
type overrideDoc map[string]struct {
	TargetAgent       string `yaml:"target_agent"`
	RolloutPercentage int    `yaml:"rollout_percentage"`
	Enabled           bool   `yaml:"enabled"`
}

// OwnershipStore implements ports.OwnershipStore backed by one YAML file.
// Reads are served from an in-memory table; the file is the source of truth
// and Watch hot-swaps the table when it changes.
type OwnershipStore struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	overrides map[string]domain.OwnershipOverride
}

// NewOwnershipStore loads the store from path. A missing file is an empty
// table, not an error, so deployments can start without overrides.
func NewOwnershipStore(path string, logger *slog.Logger) (*OwnershipStore, error) {
	s := &OwnershipStore{
		path:      path,
		logger:    logger,
		overrides: make(map[string]domain.OwnershipOverride),
	}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Lookup returns the override for a capability, or nil when none exists.
func (s *OwnershipStore) Lookup(_ context.Context, capability string) (*domain.OwnershipOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	override, ok := s.overrides[capability]
	if !ok {
		return nil, nil
	}
	return &override, nil
}

// Snapshot returns all current overrides keyed by capability.
func (s *OwnershipStore) Snapshot(_ context.Context) (map[string]domain.OwnershipOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]domain.OwnershipOverride, len(s.overrides))
	for capability, override := range s.overrides {
		snap[capability] = override
	}
	return snap, nil
}

// Set updates the table and persists it back to the file atomically.
func (s *OwnershipStore) Set(_ context.Context, capability string, override *domain.OwnershipOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if override == nil {
		delete(s.overrides, capability)
	} else {
		s.overrides[capability] = *override
	}
	return s.persistLocked()
}

// Watch hot-reloads the table when the file changes, until ctx is
// cancelled. A malformed edit keeps the previous table serving.
func (s *OwnershipStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting ownership watcher: %w", err)
	}
	// Watch the directory: editors replace files via rename, which drops
	// a watch held on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != filepath.Clean(s.path) {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				if err := s.reload(); err != nil {
					s.logger.Error("ownership reload failed, keeping previous table", "path", s.path, "err", err)
					continue
				}
				s.logger.Info("ownership overrides reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("ownership watcher error", "err", err)
			}
		}
	}()
	return nil
}

func (s *OwnershipStore) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc overrideDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}

	next := make(map[string]domain.OwnershipOverride, len(doc))
	for capability, o := range doc {
		next[capability] = domain.OwnershipOverride{
			TargetAgent:       o.TargetAgent,
			RolloutPercentage: o.RolloutPercentage,
			Enabled:           o.Enabled,
		}
	}

	s.mu.Lock()
	s.overrides = next
	s.mu.Unlock()
	return nil
}

// persistLocked writes the table atomically: temp file, fsync, rename.
func (s *OwnershipStore) persistLocked() error {
	doc := make(overrideDoc, len(s.overrides))
	for capability, o := range s.overrides {
		doc[capability] = struct {
			TargetAgent       string `yaml:"target_agent"`
			RolloutPercentage int    `yaml:"rollout_percentage"`
			Enabled           bool   `yaml:"enabled"`
		}{o.TargetAgent, o.RolloutPercentage, o.Enabled}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding overrides: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ensuring %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "ownership-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}
