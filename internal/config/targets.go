package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Catalog is the YAML target list referenced by TARGETS_FILE.
type Catalog struct {
	Targets []CatalogTarget `yaml:"targets"`
}

type CatalogTarget struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Type     string `yaml:"type"`
	Interval int    `yaml:"interval"` // seconds
	Paused   bool   `yaml:"paused"`
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		ct := &c.Targets[i]
		ct.URL = strings.TrimSpace(ct.URL)
		u, err := url.Parse(ct.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("catalog target %d: invalid url %q", i, ct.URL)
		}
		if seen[ct.URL] {
			return nil, fmt.Errorf("catalog target %d: duplicate url %q", i, ct.URL)
		}
		seen[ct.URL] = true
		if ct.Interval < 0 {
			return nil, fmt.Errorf("catalog target %d: negative interval", i)
		}
		if ct.Interval == 0 {
			ct.Interval = domain.DefaultIntervalSeconds
		}
	}
	return &c, nil
}

// Sync upserts every catalog entry by URL. Existing targets keep their
// status and last probe; targets missing from the catalog are left alone.
func Sync(ctx context.Context, ts repo.TargetStore, c *Catalog) (added, updated int, err error) {
	for _, ct := range c.Targets {
		cur, err := ts.GetByURL(ctx, ct.URL)
		if err != nil {
			return added, updated, fmt.Errorf("lookup %s: %w", ct.URL, err)
		}
		if cur == nil {
			t := &domain.Target{
				Name:            ct.Name,
				URL:             ct.URL,
				Type:            ct.Type,
				IntervalSeconds: ct.Interval,
				Paused:          ct.Paused,
				Status:          domain.StatusOperational,
			}
			if err := ts.Add(ctx, t); err != nil {
				return added, updated, fmt.Errorf("add %s: %w", ct.URL, err)
			}
			added++
			continue
		}
		if cur.Name == ct.Name && cur.Type == ct.Type && cur.IntervalSeconds == ct.Interval && cur.Paused == ct.Paused {
			continue
		}
		cur.Name, cur.Type, cur.IntervalSeconds, cur.Paused = ct.Name, ct.Type, ct.Interval, ct.Paused
		if err := ts.Configure(ctx, cur); err != nil {
			return added, updated, fmt.Errorf("configure %s: %w", ct.URL, err)
		}
		updated++
	}
	return added, updated, nil
}

// WatchCatalog re-syncs the catalog into ts whenever the file changes,
// until ctx is cancelled. A reload that fails to parse is logged and the
// store is left as it was.
func WatchCatalog(ctx context.Context, log *zap.Logger, path string, ts repo.TargetStore) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}
	log.Info("catalog_watching", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// editors often save via rename, so Create counts too
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := reload(ctx, log, path, ts); err != nil {
				log.Error("catalog_reload_failed", zap.String("path", path), zap.Error(err))
			}
			_ = w.Add(path)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("catalog_watch_error", zap.Error(err))
		}
	}
}

func reload(ctx context.Context, log *zap.Logger, path string, ts repo.TargetStore) error {
	c, err := LoadCatalog(path)
	if err != nil {
		return err
	}
	added, updated, err := Sync(ctx, ts, c)
	if err != nil {
		return err
	}
	log.Info("catalog_reloaded",
		zap.String("path", path),
		zap.Int("added", added),
		zap.Int("updated", updated),
	)
	return nil
}
