// Package graph implements spec.md section 4.1: the single Orchestrator
// that sequences Loader -> Linker -> Includer -> Chunker over one
// module.Store, instruments each phase, and exposes the read-only
// moduleInfo/cacheSnapshot projections plugins need.
//
// Grounded on the teacher's internal/bundler.go Bundle.Compile top-level
// phase sequencing (resolve/parse, then link, then generate, each wrapped
// in the shared helpers.Timer), generalized from esbuild's single
// link+codegen phase to this package's four named phases.
package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jsbuild/bundlecore/internal/cache"
	"github.com/jsbuild/bundlecore/internal/chunker"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/helpers"
	"github.com/jsbuild/bundlecore/internal/includer"
	"github.com/jsbuild/bundlecore/internal/linker"
	"github.com/jsbuild/bundlecore/internal/loader"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
)

// Phase tracks which stage of spec.md section 4.1's pipeline a Graph is in.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseLoadAndParse
	PhaseAnalyse
	PhaseGenerate
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadAndParse:
		return "LOAD_AND_PARSE"
	case PhaseAnalyse:
		return "ANALYSE"
	case PhaseGenerate:
		return "GENERATE"
	default:
		return "IDLE"
	}
}

// Graph is one build: the Orchestrator of spec.md section 4.1, owning the
// module.Store for its lifetime and exposing the phase-tagged public
// surface (moduleInfo, cacheSnapshot) plugins see during a build.
type Graph struct {
	BuildID string

	host  loader.Host
	opts  *config.Options
	log   logger.Log
	store *module.Store
	timer *helpers.Timer
	cache *cache.PluginCache

	phase Phase

	linker   *linker.Linker
	includer *includer.Includer
	chunker  *chunker.Chunker
}

// New creates a Graph ready to run Build. host supplies the external
// resolve/load/parse collaborators of spec.md section 1; Build's only write
// to opts is its per-call InlineDynamicImports override, restored on return
// (config.Options' own doc comment).
func New(host loader.Host, opts *config.Options, log logger.Log) *Graph {
	buildID := uuid.NewString()
	return &Graph{
		BuildID: buildID,
		host:    host,
		opts:    opts,
		log:     log,
		store:   module.NewStore(),
		timer:   &helpers.Timer{},
		cache:   cache.NewPluginCache(opts.Cache),
	}
}

// EntrySpec is the input to Build, matching spec.md section 4.1's "a single
// id, an ordered sequence of ids, or a mapping from output name to id".
type EntrySpec struct {
	// Unresolved maps output name to entry specifier. A caller passing a
	// single id or a bare sequence names each entry after itself; see
	// NewEntriesFromNames.
	Unresolved map[string]string
	Order      []string
}

// NewEntriesFromNames builds an EntrySpec naming every entry after its own
// specifier, for the single-id / unnamed-sequence input forms.
func NewEntriesFromNames(specifiers ...string) EntrySpec {
	spec := EntrySpec{Unresolved: map[string]string{}, Order: make([]string, 0, len(specifiers))}
	for _, s := range specifiers {
		spec.Unresolved[s] = s
		spec.Order = append(spec.Order, s)
	}
	return spec
}

// Build runs spec.md section 4.1's four phases in order:
// `build(entries, manualChunks, inlineDynamic) -> [Chunk]`. inlineDynamic
// overrides opts.InlineDynamicImports for this call only, matching the
// per-call override the spec's signature implies; pass opts.InlineDynamicImports
// itself to leave the configured default alone.
func (g *Graph) Build(ctx context.Context, entries EntrySpec, manualChunks config.ManualChunkGroups, inlineDynamic bool) ([]chunker.Chunk, error) {
	g.timer.Begin("Build")
	defer g.timer.End("Build")

	savedInline := g.opts.InlineDynamicImports
	g.opts.InlineDynamicImports = inlineDynamic
	defer func() { g.opts.InlineDynamicImports = savedInline }()

	g.phase = PhaseLoadAndParse
	g.timer.Begin("Load and parse")
	ld := loader.New(g.host, g.opts, g.log, g.store)
	entryResult, err := ld.AddEntries(ctx, entries.Unresolved, entries.Order)
	if err != nil {
		g.timer.End("Load and parse")
		return nil, fmt.Errorf("graph: load phase failed: %w", err)
	}
	if len(entryResult.EntryModules) == 0 {
		g.timer.End("Load and parse")
		return nil, fmt.Errorf("graph: build failed, zero entry points resolved")
	}
	manualModules, err := ld.AddManualChunks(ctx, manualChunks)
	if err != nil {
		g.timer.End("Load and parse")
		return nil, fmt.Errorf("graph: loading manual chunk seeds failed: %w", err)
	}
	g.timer.End("Load and parse")

	var manualSeedModules []*module.Module
	for _, ms := range manualModules {
		manualSeedModules = append(manualSeedModules, ms...)
	}

	g.phase = PhaseAnalyse
	g.timer.Begin("Link")
	g.linker = linker.New(g.store, g.opts, g.log)
	g.linker.Link(entryResult.EntryModules, manualSeedModules)
	g.timer.End("Link")

	g.timer.Begin("Include")
	g.includer = includer.New(g.store, g.opts, g.log, g.linker)
	g.includer.Run(entryResult.EntryModules, manualSeedModules)
	g.timer.End("Include")

	g.phase = PhaseGenerate
	g.timer.Begin("Generate chunks")
	g.chunker = chunker.New(g.store, g.linker, g.includer, g.opts, g.log)
	nameByEntryID := map[string]string{}
	for i, name := range entries.Order {
		if i < len(entryResult.EntryModules) {
			nameByEntryID[entryResult.EntryModules[i].ID] = name
		}
	}
	chunks := g.chunker.Generate(entryResult.EntryModules, nameByEntryID, manualChunks, manualModules)
	g.timer.End("Generate chunks")

	g.phase = PhaseIdle
	g.timer.Log(g.log)
	return chunks, nil
}

// ModuleInfo is the read-only Module projection spec.md section 4.1 exposes
// to plugins via moduleInfo(id), mirroring the teacher's plugin-facing
// api.Metafile/OnLoadResult read-only views (SPEC_FULL.md's supplemented
// feature).
type ModuleInfo struct {
	ID                string
	IsEntryPoint      bool
	IsIncluded        bool
	IsExecuted        bool
	ModuleSideEffects bool
	ExecutionOrderIndex int
	Importers         []string
	DynamicImporters  []string
	ImportedIDs       []string
	ExportedNames     []string
}

// ModuleInfo returns a snapshot of the Module known by id, or ok=false if
// no such module has been loaded into this Graph's store.
func (g *Graph) ModuleInfo(id string) (ModuleInfo, bool) {
	m, ok := g.store.Module(id)
	if !ok {
		return ModuleInfo{}, false
	}
	info := ModuleInfo{
		ID:                  m.ID,
		IsEntryPoint:        m.IsEntryPoint,
		IsIncluded:          m.IsIncluded,
		IsExecuted:          m.IsExecuted,
		ModuleSideEffects:   m.ModuleSideEffects,
		ExecutionOrderIndex: m.ExecutionOrderIndex,
	}
	for imp := range m.Importers {
		info.Importers = append(info.Importers, imp)
	}
	for imp := range m.DynamicImporters {
		info.DynamicImporters = append(info.DynamicImporters, imp)
	}
	for _, src := range m.Sources {
		if targetID, _, ok := m.Resolved(src); ok {
			info.ImportedIDs = append(info.ImportedIDs, targetID)
		}
	}
	if g.linker != nil {
		for name := range g.linker.ExportNames(m.ID) {
			info.ExportedNames = append(info.ExportedNames, name)
		}
	} else {
		for name := range m.ExportDescriptions {
			info.ExportedNames = append(info.ExportedNames, name)
		}
	}
	return info, true
}

// CacheSnapshot implements spec.md section 4.1's cacheSnapshot(): evicts
// plugin cache entries whose access counter reaches or exceeds
// opts.ExperimentalCacheExpiry, then serialises every Module for reuse by a
// subsequent build (spec.md section 6, section 8's cache round-trip
// property).
func (g *Graph) CacheSnapshot() config.CacheOptions {
	g.cache.Sweep(g.opts.ExperimentalCacheExpiry)

	out := config.CacheOptions{
		Enabled: g.opts.Cache.Enabled,
		Plugins: g.cache.Snapshot(),
	}
	for _, m := range g.store.AllModules() {
		out.Modules = append(out.Modules, serializeModule(m))
	}
	return out
}

func serializeModule(m *module.Module) config.SerializedModule {
	reassigned := map[string]bool{}
	for _, v := range m.Arena.Vars {
		if v.Reassigned {
			reassigned[v.Name] = true
		}
	}
	return config.SerializedModule{
		ID:                m.ID,
		Dependencies:      append([]string{}, m.Sources...),
		ASTSummary:        astSummary(m),
		Reassigned:        reassigned,
		ModuleSideEffects: m.ModuleSideEffects,
	}
}

// astSummary produces a small stable digest of a module's top-level
// statement shape, good enough to detect "this module's source changed"
// across a cache round trip without persisting the full AST (spec.md
// section 6 only requires the cache to key on content, not replay it).
func astSummary(m *module.Module) string {
	if m.AST == nil {
		return ""
	}
	return fmt.Sprintf("stmts=%d", len(m.AST.Body))
}

// PluginCache exposes the per-build plugin key/value store of spec.md
// section 6 for the resolve/load/transform hooks to read and write through.
func (g *Graph) PluginCache() *cache.PluginCache { return g.cache }

// Phase reports the orchestrator's current stage, for diagnostics.
func (g *Graph) Phase() Phase { return g.phase }
