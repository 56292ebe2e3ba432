// Package registry holds the handlers loaded at startup, keyed by model name.
// A Registry is never modified after it is built, so concurrent reads need no
// locking.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getzep/entitylink/internal"
	"github.com/getzep/entitylink/pkg/models"
)

var log = internal.GetLogger()

type Registry[H any] struct {
	kind     string
	handlers map[string]H
	names    []string
}

// New builds a Registry from already loaded handlers. The map is copied.
func New[H any](kind string, handlers map[string]H) *Registry[H] {
	r := &Registry[H]{
		kind:     kind,
		handlers: make(map[string]H, len(handlers)),
		names:    make([]string, 0, len(handlers)),
	}
	for name, h := range handlers {
		r.handlers[name] = h
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Load loads every named model concurrently and returns the populated
// Registry. Duplicate names are loaded once. If any model fails to load, or
// names is empty, no Registry is returned.
func Load[H any](
	ctx context.Context,
	kind string,
	names []string,
	load func(ctx context.Context, name string) (H, error),
) (*Registry[H], error) {
	unique := dedupe(names)
	if len(unique) == 0 {
		return nil, fmt.Errorf("no %s models configured", kind)
	}

	loaded := make([]H, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range unique {
		i, name := i, name
		g.Go(func() error {
			start := time.Now()
			log.Infof("Loading %s model: %s", kind, name)
			h, err := load(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to load %s model %s: %w", kind, name, err)
			}
			loaded[i] = h
			log.Infof("Loaded %s model %s in %s", kind, name, time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handlers := make(map[string]H, len(unique))
	for i, name := range unique {
		handlers[name] = loaded[i]
	}
	return New(kind, handlers), nil
}

// Get returns the handler for name, or a *models.LookupError naming the
// loaded models.
func (r *Registry[H]) Get(name string) (H, error) {
	h, ok := r.handlers[name]
	if !ok {
		var zero H
		return zero, models.NewLookupError(r.kind, name, r.Names())
	}
	return h, nil
}

// Names returns the loaded model names in sorted order.
func (r *Registry[H]) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

func (r *Registry[H]) Len() int {
	return len(r.handlers)
}

func (r *Registry[H]) Kind() string {
	return r.kind
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	return unique
}
