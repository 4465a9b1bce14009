// Package resolver decides which modules belong to each category: either an
// explicit list supplied by the caller, or the registered modules whose
// declaring file matches the category patterns, plus SQL files found on
// disk for migrations and seeds.
package resolver

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/config"
	"github.com/marmos91/rapid/pkg/module"
)

// Error reports a module file that could not be loaded. Resolution stops at
// the first one.
type Error struct {
	Kind module.Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("resolve %s: %v", e.Kind.Plural(), e.Err)
	}
	return fmt.Sprintf("resolve %s: %s: %v", e.Kind.Plural(), e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver produces the descriptor set of an app.
type Resolver[H any] struct {
	root     string
	module   string
	fs       afero.Fs
	patterns config.Patterns
	registry *module.Registry[H]
	explicit map[module.Kind][]module.Descriptor[H]
}

// Option configures a Resolver.
type Option[H any] func(*Resolver[H])

// WithFs reads SQL modules from fs instead of the OS filesystem.
func WithFs[H any](fs afero.Fs) Option[H] {
	return func(r *Resolver[H]) {
		if fs != nil {
			r.fs = fs
		}
	}
}

// WithModulePath sets the import path stripped from module sources built
// with -trimpath. It defaults to the main module of the running binary.
func WithModulePath[H any](modulePath string) Option[H] {
	return func(r *Resolver[H]) { r.module = strings.TrimSuffix(modulePath, "/") }
}

// WithRegistry discovers Go modules from reg.
func WithRegistry[H any](reg *module.Registry[H]) Option[H] {
	return func(r *Resolver[H]) { r.registry = reg }
}

// WithExplicit fixes the modules of a category, bypassing discovery. An
// empty list leaves discovery enabled.
func WithExplicit[H any](kind module.Kind, ds []module.Descriptor[H]) Option[H] {
	return func(r *Resolver[H]) {
		if len(ds) > 0 {
			r.explicit[kind] = ds
		}
	}
}

// New creates a resolver for the project at root.
func New[H any](root string, patterns config.Patterns, opts ...Option[H]) *Resolver[H] {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	r := &Resolver[H]{
		root:     root,
		module:   mainModule(),
		fs:       afero.NewOsFs(),
		patterns: patterns,
		explicit: make(map[module.Kind][]module.Descriptor[H]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func mainModule() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Path
	}
	return ""
}

// Patterns returns the discovery patterns of a category.
func (r *Resolver[H]) Patterns(kind module.Kind) []string {
	switch kind {
	case module.KindModel:
		return r.patterns.Models
	case module.KindRouter:
		return r.patterns.Routers
	case module.KindAction:
		return r.patterns.Actions
	case module.KindSeed:
		return r.patterns.Seeds
	case module.KindMigration:
		return r.patterns.Migrations
	case module.KindHook:
		return r.patterns.Hooks
	}
	return nil
}

// Resolve resolves all categories concurrently. The returned set has an
// entry for every category, possibly empty.
func (r *Resolver[H]) Resolve(ctx context.Context) (*module.Set[H], error) {
	results := make([][]module.Descriptor[H], len(module.Kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range module.Kinds {
		g.Go(func() error {
			ds, err := r.resolveKind(gctx, kind)
			if err != nil {
				return err
			}
			results[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := module.NewSet[H]()
	for i, kind := range module.Kinds {
		set.Put(kind, results[i])
		logger.DebugCtx(ctx, "modules resolved",
			logger.KeyKind, kind.String(),
			logger.KeyCount, len(results[i]))
	}
	return set, nil
}

type candidate[H any] struct {
	path string
	desc module.Descriptor[H]
}

func (r *Resolver[H]) resolveKind(ctx context.Context, kind module.Kind) ([]module.Descriptor[H], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ds, ok := r.explicit[kind]; ok {
		return append([]module.Descriptor[H]{}, ds...), nil
	}

	patterns := r.Patterns(kind)
	if len(patterns) == 0 {
		return []module.Descriptor[H]{}, nil
	}

	var candidates []candidate[H]
	if r.registry != nil {
		for _, d := range r.registry.Entries(kind) {
			rel, ok := r.match(patterns, d.Source)
			if !ok {
				logger.WarnCtx(ctx, "registered module excluded by discovery patterns",
					logger.KeyKind, kind.String(),
					logger.KeyModule, d.Name,
					"source", d.Source)
				continue
			}
			candidates = append(candidates, candidate[H]{path: rel, desc: d})
		}
	}

	if kind == module.KindMigration || kind == module.KindSeed {
		files, err := r.sqlModules(ctx, kind, patterns)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, files...)
	}

	// Modules declared in the same file keep declaration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].path < candidates[j].path
	})

	ds := make([]module.Descriptor[H], 0, len(candidates))
	for _, c := range candidates {
		ds = append(ds, c.desc)
	}
	return ds, nil
}

// match returns the first project-relative form of source accepted by
// patterns.
func (r *Resolver[H]) match(patterns []string, source string) (string, bool) {
	for _, rel := range r.relative(source) {
		if r.matches(patterns, rel) {
			return rel, true
		}
	}
	return "", false
}

// relative returns the slash paths source may stand for relative to the
// root. Sources outside the root come from binaries built elsewhere or with
// -trimpath, so the main module path and everything up to the last
// directory named like the root are stripped as well. The absolute path
// without its leading separator is tried last so that patterns such as
// "**/models/*.go" still apply.
func (r *Resolver[H]) relative(source string) []string {
	if source == "" {
		return nil
	}
	if rel, err := filepath.Rel(r.root, source); err == nil && !strings.HasPrefix(rel, "..") {
		return []string{filepath.ToSlash(rel)}
	}

	slashed := filepath.ToSlash(source)
	var out []string
	if r.module != "" {
		if rest, ok := strings.CutPrefix(slashed, r.module+"/"); ok {
			out = append(out, rest)
		}
	}
	if base := path.Base(filepath.ToSlash(r.root)); base != "/" && base != "." {
		if i := strings.LastIndex("/"+slashed, "/"+base+"/"); i >= 0 {
			out = append(out, slashed[i+len(base)+1:])
		}
	}
	return append(out, strings.TrimPrefix(slashed, "/"))
}

func (r *Resolver[H]) matches(patterns []string, rel string) bool {
	if rel == "" || r.ignored(rel) {
		return false
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (r *Resolver[H]) ignored(rel string) bool {
	for _, p := range r.patterns.Ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
