// Package catalogsrc holds the current catalog snapshot for long-running
// processes and refreshes it from a file or the catalog service.
//
// Readers call Current and get an immutable *catalog.Catalog; a reload swaps
// the pointer atomically, so a rule check or preview always runs against one
// consistent catalog. A failed reload keeps the previous snapshot.
package catalogsrc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/core/logging"
)

// Loader produces a fresh catalog.
type Loader func(ctx context.Context) (*catalog.Catalog, error)

// FileLoader reads a JSON or YAML catalog file.
func FileLoader(path string) Loader {
	return func(context.Context) (*catalog.Catalog, error) {
		return catalog.LoadFile(path)
	}
}

// Source is a reloadable catalog snapshot. Safe for concurrent use.
type Source struct {
	load Loader
	log  *slog.Logger

	cur        atomic.Pointer[catalog.Catalog]
	generation atomic.Int64

	// serializes reloads so snapshots never go backwards
	mu sync.Mutex
}

// New loads the initial catalog. It fails if the first load fails.
func New(ctx context.Context, load Loader, log *slog.Logger) (*Source, error) {
	s := &Source{load: load, log: logging.OrDefault(log).With("component", "catalogsrc")}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Static wraps a fixed catalog.
func Static(cat *catalog.Catalog) *Source {
	s := &Source{
		load: func(context.Context) (*catalog.Catalog, error) { return cat, nil },
		log:  slog.Default(),
	}
	s.cur.Store(cat)
	s.generation.Store(1)
	return s
}

// Current returns the latest successfully loaded catalog.
func (s *Source) Current() *catalog.Catalog {
	return s.cur.Load()
}

// Generation counts successful loads.
func (s *Source) Generation() int64 {
	return s.generation.Load()
}

// Reload loads a new snapshot. On error the current snapshot stays.
func (s *Source) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load(ctx)
	if err != nil {
		s.log.Error("catalog reload failed", "error", err)
		return err
	}
	s.cur.Store(cat)
	gen := s.generation.Add(1)
	s.log.Info("catalog loaded",
		"generation", gen,
		"fields", len(cat.FieldPaths()),
		"functions", len(cat.FunctionPaths()),
	)
	return nil
}

// Schedule reloads on a cron schedule ("*/5 * * * *", "@every 10m") until
// ctx is cancelled. The returned stop function waits for a running reload.
func (s *Source) Schedule(ctx context.Context, schedule string) (stop func(), err error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid catalog refresh schedule %q: %w", schedule, err)
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		// errors are logged by Reload
		_ = s.Reload(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule catalog refresh: %w", err)
	}
	c.Start()
	s.log.Info("catalog refresh scheduled", "schedule", schedule)

	var once sync.Once
	stop = func() {
		once.Do(func() { <-c.Stop().Done() })
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}
