// Package loader implements spec.md section 4.2: resolving specifiers to
// ids, fetching source text through the external load hook, parsing to an
// AST, and constructing Module records, all running concurrently across the
// transitive closure of a build's entry points.
//
// Grounded on the teacher's internal/bundler.go parse-queue scheduling
// (a work channel drained by a pool of goroutines until no more files are
// pending), generalized from esbuild's source-index bookkeeping to this
// package's id-keyed module.Store, and using golang.org/x/sync/errgroup --
// the idiomatic fan-out/fan-in primitive for exactly this "cancel the whole
// group on the first fatal error" shape -- in place of the teacher's
// hand-rolled WaitGroup + channel.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
	"github.com/jsbuild/bundlecore/internal/scope"
	"golang.org/x/sync/errgroup"
)

// Kind distinguishes why a module is being loaded.
type Kind uint8

const (
	KindEntry Kind = iota
	KindStatic
	KindDynamic
)

// ResolveFn is the external resolve(specifier, importer) -> id | external
// collaborator of spec.md section 1.
type ResolveFn func(ctx context.Context, specifier string, importer string) (id string, external bool, err error)

// LoadResult is what the external load(id) hook hands back: the source text
// plus an optional per-module override of the moduleSideEffects default.
type LoadResult struct {
	Text              string
	ModuleSideEffects *bool
}

type LoadFn func(ctx context.Context, id string) (LoadResult, error)

// ParseFn is the external parse(text) -> AST collaborator of spec.md
// section 1. arena is the new Module's own scope arena: since the returned
// Program's Identifier/Declarator/ImportSpecifier nodes must already carry
// resolved scope.VarRef values (module.Module.Build's doc comment), the
// parser needs somewhere to declare them as it scans -- this is that
// somewhere, populated the same way a real parser's integrated
// scope-resolution pass would.
type ParseFn func(ctx context.Context, id string, text string, arena *scope.Arena) (*bast.Program, error)

// Host bundles the three external collaborators the Loader drives.
type Host struct {
	Resolve ResolveFn
	Load    LoadFn
	Parse   ParseFn
}

// Loader drives the work queue described in spec.md section 4.2.
type Loader struct {
	host  Host
	opts  *config.Options
	log   logger.Log
	store *module.Store
}

func New(host Host, opts *config.Options, log logger.Log, store *module.Store) *Loader {
	return &Loader{host: host, opts: opts, log: log, store: store}
}

// EntryResult is what AddEntries hands back per spec.md section 4.2.
type EntryResult struct {
	EntryModules      []*module.Module
	ManualChunkGroups map[string][]*module.Module
}

type workItem struct {
	specifier string
	importer  string // "" for entries
	kind      Kind
	// entryName is never set: AddEntries resolves entries directly rather
	// than through work items, and keeps input order with its own map.
	entryName string
}

// AddEntries resolves and loads the transitive closure reachable from
// unresolved, running every resolve/load/parse concurrently and completing
// only once the work queue has drained (spec.md section 4.2 and section 5).
func (l *Loader) AddEntries(ctx context.Context, unresolved map[string]string, order []string) (EntryResult, error) {
	if len(unresolved) == 0 {
		return EntryResult{}, fmt.Errorf("loader: no entry points given (spec.md: empty input is fatal)")
	}

	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	entryByName := map[string]*module.Module{}

	var enqueue func(item workItem)
	enqueue = func(item workItem) {
		g.Go(func() error {
			return l.process(gctx, item, enqueue)
		})
	}

	for _, name := range order {
		specifier := unresolved[name]
		name, specifier := name, specifier
		g.Go(func() error {
			id, external, err := l.host.Resolve(gctx, specifier, "")
			if err != nil {
				return fmt.Errorf("loader: failed to resolve entry %q: %w", specifier, err)
			}
			if external {
				return fmt.Errorf("loader: entry point %q cannot resolve to an external module", specifier)
			}
			m, err := l.loadAndParse(gctx, id, "", enqueue)
			if err != nil {
				return err
			}
			mu.Lock()
			m.IsEntryPoint = true
			m.PreserveSignature = l.opts.PreserveEntrySignatures
			entryByName[name] = m
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return EntryResult{}, err
	}

	result := EntryResult{}
	for _, name := range order {
		if m, ok := entryByName[name]; ok {
			result.EntryModules = append(result.EntryModules, m)
		}
	}
	return result, nil
}

// AddManualChunks resolves the seed ids of spec.md section 4.5's manual
// chunk groups. A seed not already reachable from an entry point is pulled
// into the graph the same way an entry is -- its own transitive imports are
// loaded too -- since a manual chunk may legitimately name a module nothing
// else imports.
func (l *Loader) AddManualChunks(ctx context.Context, groups config.ManualChunkGroups) (map[string][]*module.Module, error) {
	out := map[string][]*module.Module{}
	if groups.ByName == nil {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	var enqueue func(item workItem)
	enqueue = func(item workItem) {
		g.Go(func() error {
			return l.process(gctx, item, enqueue)
		})
	}

	for name, seeds := range groups.ByName {
		name := name
		for _, specifier := range seeds {
			specifier := specifier
			g.Go(func() error {
				id, external, err := l.host.Resolve(gctx, specifier, "")
				if err != nil {
					return fmt.Errorf("loader: failed to resolve manual chunk seed %q: %w", specifier, err)
				}
				if external {
					return nil
				}
				m, err := l.loadAndParse(gctx, id, "", enqueue)
				if err != nil {
					return err
				}
				mu.Lock()
				out[name] = append(out[name], m)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) process(ctx context.Context, item workItem, enqueue func(workItem)) error {
	id, external, err := l.host.Resolve(ctx, item.specifier, item.importer)
	if err != nil {
		return fmt.Errorf("loader: failed to resolve %q from %q: %w", item.specifier, item.importer, err)
	}

	l.recordResolution(item, id, external)

	if item.kind == KindDynamic {
		if importer, ok := l.store.Module(item.importer); ok {
			importer.SetDynamicImportTarget(item.specifier, id)
		}
	}

	if external {
		l.touchExternal(id, item)
		return nil
	}

	if _, err := l.loadAndParse(ctx, id, item.importer, enqueue); err != nil {
		return err
	}

	if item.importer != "" {
		switch item.kind {
		case KindDynamic:
			l.store.AddDynamicImporter(id, item.importer)
		default:
			l.store.AddImporter(id, item.importer)
		}
	}
	return nil
}

// recordResolution stores the specifier -> resolved-id mapping onto the
// importing Module's ResolvedIDs/ResolvedExternal, matching spec.md section
// 3's Module.resolvedIds attribute.
func (l *Loader) recordResolution(item workItem, id string, external bool) {
	if item.importer == "" {
		return
	}
	importer, ok := l.store.Module(item.importer)
	if !ok {
		return
	}
	importer.SetResolved(item.specifier, id, external)
}

func (l *Loader) touchExternal(id string, item workItem) {
	sideEffects := l.defaultModuleSideEffects(id, true)
	ext, created := l.store.GetOrCreateExternal(id, func() *module.ExternalModule {
		return module.NewExternal(id, sideEffects)
	})
	if created && item.kind == KindDynamic {
		ext.ReachedOnlyByDynamicImport = true
	} else if item.kind != KindDynamic {
		ext.ReachedOnlyByDynamicImport = false
	}
}

// loadAndParse implements the "at-most-one load per id per build" rule: only
// the call that wins GetOrCreateModule's race actually invokes load()+parse()
// and walks the AST for further imports; every other concurrent caller for
// the same id gets back the already-in-flight (or by-then-finished) Module.
func (l *Loader) loadAndParse(ctx context.Context, id string, importer string, enqueue func(workItem)) (*module.Module, error) {
	var loadErr error
	var parseErr error

	m, created := l.store.GetOrCreateModule(id, func() *module.Module {
		return module.New(id, l.defaultModuleSideEffects(id, false), config.PreserveSignatureNone)
	})

	if !created {
		return m, nil
	}

	res, err := l.host.Load(ctx, id)
	if err != nil {
		loadErr = fmt.Errorf("loader: failed to load %q (imported from %q): %w", id, importer, err)
		return nil, loadErr
	}
	if res.ModuleSideEffects != nil {
		m.ModuleSideEffects = *res.ModuleSideEffects
	}

	ast, err := l.host.Parse(ctx, id, res.Text, m.Arena)
	if err != nil {
		parseErr = fmt.Errorf("loader: failed to parse %q: %w", id, err)
		return nil, parseErr
	}

	m.Build(ast)

	for _, src := range m.Sources {
		src := src
		enqueue(workItem{specifier: src, importer: id, kind: KindStatic})
	}
	// Resolving every source eagerly here isn't possible since resolve() is
	// re-invoked by process(); ResolvedIDs (static sources) and each
	// DynamicImportSite.Target (dynamic ones) are instead populated by
	// process() once its own call to resolve() for that specifier returns.
	for i := range m.DynamicImports {
		site := &m.DynamicImports[i]
		if site.Specifier == "" {
			continue // fully dynamic expression, nothing statically resolvable
		}
		enqueue(workItem{specifier: site.Specifier, importer: id, kind: KindDynamic})
	}

	return m, nil
}

func (l *Loader) defaultModuleSideEffects(id string, isExternal bool) bool {
	switch l.opts.ModuleSideEffectsDefault {
	case config.ModuleSideEffectsFalse:
		return false
	case config.ModuleSideEffectsNoExternal:
		return !isExternal
	default:
		return true
	}
}
