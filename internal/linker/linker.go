// Package linker implements spec.md section 4.3's three passes over a fully
// loaded module.Store: local dependency linking (resolving every import to
// the concrete Variable it reads), execution ordering, and binding.
//
// Grounded on the teacher's internal/linker package, specifically its
// chunkRepr/graph traversal for dependency-first ordering and its handling
// of import-to-symbol resolution across files (js_parser's NamedImport /
// NamedExport tables generalized here to module.ImportDescription /
// module.ExportDescription keyed by name instead of by AST Ref).
package linker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
	"github.com/jsbuild/bundlecore/internal/scope"
)

type Linker struct {
	store *module.Store
	opts  *config.Options
	log   logger.Log

	exportNamesCache map[string]map[string]bool
}

func New(store *module.Store, opts *config.Options, log logger.Log) *Linker {
	return &Linker{store: store, opts: opts, log: log, exportNamesCache: map[string]map[string]bool{}}
}

// Result is what Link hands back to the orchestrator.
type Result struct {
	// ExecutionOrder lists every reachable Module in dependency-first order:
	// for any static edge A -> B with no cycle between them, B precedes A
	// (spec.md section 4.3 invariant).
	ExecutionOrder []*module.Module
}

// Link runs all three passes described in spec.md section 4.3 in order:
// local dependency linking, execution ordering, then binding. entries is
// walked in declaration order for the execution-order tie-break rule (and so
// for the order cycles are reported in; MISSING_EXPORT warnings follow the
// store's unordered module iteration); manualChunkModules are extra DFS roots for
// modules a manual chunk names that no entry point reaches.
func (l *Linker) Link(entries []*module.Module, manualChunkModules []*module.Module) Result {
	l.linkLocalDependencies()
	order := l.computeExecutionOrder(entries, manualChunkModules)
	l.bind()
	return Result{ExecutionOrder: order}
}

// linkLocalDependencies is pass 1: for every ImportDescription of every
// Module, resolve Source to a producing Module/ExternalModule (already known
// from the Loader's ResolvedIDs) and then resolve ExportedName within it,
// following re-export and star-export chains, and reporting MISSING_EXPORT /
// NON_EXISTENT_EXPORT when a name can't be found.
func (l *Linker) linkLocalDependencies() {
	for _, m := range l.store.AllModules() {
		for name, imp := range m.ImportDescriptions {
			targetID, external, ok := m.Resolved(imp.Source)
			if !ok {
				// Never loaded (e.g. a manual chunk seed whose own imports were
				// never enqueued); nothing to bind.
				continue
			}
			imp.Module = targetID

			var ref scope.VarRef
			var resolved bool
			if external {
				ref = l.store.ExternalVariable(targetID, imp.ExportedName)
				resolved = true
			} else {
				ref, resolved = l.resolveExportRef(targetID, imp.ExportedName, map[string]bool{})
				if !resolved {
					l.reportMissingExport(m, imp)
					if l.opts.ShimMissingExports {
						ref = l.store.UndefinedVariable()
						resolved = true
					}
				}
			}
			if resolved {
				imp.ResolvedRef = ref
			}
			m.ImportDescriptions[name] = imp
		}
	}
}

func (l *Linker) reportMissingExport(m *module.Module, imp module.ImportDescription) {
	id := logger.MsgID_MissingExport
	text := fmt.Sprintf("%q does not export %q", imp.Source, imp.ExportedName)
	if imp.ExportedName == "default" {
		id = logger.MsgID_NonExistentExport
		text = fmt.Sprintf("%q has no default export", imp.Source)
	}
	l.log.AddIDWarning(id, &logger.Source{PrettyPath: m.ID}, imp.Loc, text)
}

// resolveExportRef resolves the export named name of the internal module
// moduleID to a concrete Variable ref, following ExportDescription
// re-export chains and StarExports fallbacks. visited guards against
// `export * from` cycles between modules.
func (l *Linker) resolveExportRef(moduleID, name string, visited map[string]bool) (scope.VarRef, bool) {
	m, ok := l.store.Module(moduleID)
	if !ok {
		return scope.VarRef{}, false
	}
	if name == "*" {
		return m.NamespaceVariable(), true
	}

	key := moduleID + "\x00" + name
	if visited[key] {
		return scope.VarRef{}, false
	}
	visited[key] = true

	if desc, ok := m.ExportDescriptions[name]; ok {
		if !desc.IsReExport() {
			return desc.LocalRef, true
		}
		srcID, srcExternal, ok := m.Resolved(desc.ReExportSource)
		if !ok {
			return scope.VarRef{}, false
		}
		if srcExternal {
			return l.store.ExternalVariable(srcID, desc.ReExportedName), true
		}
		return l.resolveExportRef(srcID, desc.ReExportedName, visited)
	}

	if name == "default" {
		return scope.VarRef{}, false // `export *` never forwards a default export
	}
	for _, star := range m.StarExports {
		srcID, srcExternal, ok := m.Resolved(star.Source)
		if !ok {
			continue
		}
		if star.Exported != "" {
			if star.Exported != name {
				continue
			}
			if srcExternal {
				return l.store.ExternalVariable(srcID, "*"), true
			}
			if src, ok := l.store.Module(srcID); ok {
				return src.NamespaceVariable(), true
			}
			continue
		}
		if srcExternal {
			// An external module's real export surface is unknowable here; a
			// bare `export *` of it is trusted to forward whatever name is
			// asked for, same as importing the name directly.
			return l.store.ExternalVariable(srcID, name), true
		}
		if ref, ok := l.resolveExportRef(srcID, name, visited); ok {
			return ref, true
		}
	}
	return scope.VarRef{}, false
}

// ExportNamesRef resolves one export name of moduleID to its concrete
// Variable ref, exactly as pass 1 does for an ImportDescription. Exposed for
// the Includer, which needs this to seed liveness from an entry's export
// surface (including star-expanded names that have no ImportDescription
// anywhere to have already triggered the resolution).
func (l *Linker) ExportNamesRef(moduleID, name string) (scope.VarRef, bool) {
	return l.resolveExportRef(moduleID, name, map[string]bool{})
}

// ExportNames returns the full, star-export-expanded set of names moduleID
// exports. Used by the chunker to synthesize a facade chunk's public surface
// for PreserveEntrySignatures (spec.md section 4.5).
func (l *Linker) ExportNames(moduleID string) map[string]bool {
	return l.exportNames(moduleID, map[string]bool{})
}

func (l *Linker) exportNames(moduleID string, visiting map[string]bool) map[string]bool {
	if cached, ok := l.exportNamesCache[moduleID]; ok {
		return cached
	}
	if visiting[moduleID] {
		return map[string]bool{}
	}
	visiting[moduleID] = true

	m, ok := l.store.Module(moduleID)
	if !ok {
		return map[string]bool{}
	}
	names := map[string]bool{}
	for name := range m.ExportDescriptions {
		names[name] = true
	}
	for _, star := range m.StarExports {
		srcID, external, ok := m.Resolved(star.Source)
		if !ok {
			continue
		}
		if star.Exported != "" {
			names[star.Exported] = true
			continue
		}
		if external {
			continue // can't enumerate an external module's own export names
		}
		for n := range l.exportNames(srcID, visiting) {
			if n != "default" {
				names[n] = true
			}
		}
	}
	l.exportNamesCache[moduleID] = names
	return names
}

// computeExecutionOrder is pass 2: a dependency-first (post-order) DFS over
// static import edges, rooted first at every entry in declaration order,
// then at each manual chunk seed in the order given, and then at any
// remaining unreached module (e.g. dynamic-import-only) in id order for
// determinism. A back edge to a grey
// node is a cycle; it is reported once, with the full path, and treated as
// already-visited so the traversal still terminates (spec.md section 4.3:
// "cycles are reported, not rejected -- partial initialization is the
// runtime's problem, not the linker's").
func (l *Linker) computeExecutionOrder(entries []*module.Module, manualChunkModules []*module.Module) []*module.Module {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var order []*module.Module
	var path []string
	reportedCycles := map[string]bool{}

	var dfs func(m *module.Module)
	dfs = func(m *module.Module) {
		color[m.ID] = grey
		path = append(path, m.ID)
		for _, src := range m.Sources {
			targetID, external, ok := m.Resolved(src)
			if !ok || external {
				continue
			}
			tm, ok := l.store.Module(targetID)
			if !ok {
				continue
			}
			switch color[tm.ID] {
			case white:
				dfs(tm)
			case grey:
				l.reportCycle(append(append([]string{}, path...), tm.ID), reportedCycles)
			}
		}
		path = path[:len(path)-1]
		color[m.ID] = black
		m.ExecutionOrderIndex = len(order)
		m.IsExecuted = true
		order = append(order, m)
	}

	for _, m := range entries {
		if color[m.ID] == white {
			dfs(m)
		}
	}
	for _, m := range manualChunkModules {
		if color[m.ID] == white {
			dfs(m)
		}
	}

	remaining := l.store.AllModules()
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].ID < remaining[j].ID })
	for _, m := range remaining {
		if color[m.ID] == white {
			dfs(m)
		}
	}
	return order
}

func (l *Linker) reportCycle(path []string, reported map[string]bool) {
	sorted := append([]string{}, path...)
	sort.Strings(sorted)
	key := strings.Join(sorted, "\x00")
	if reported[key] {
		return
	}
	reported[key] = true
	l.log.AddIDWarning(logger.MsgID_CircularDependency, &logger.Source{PrettyPath: path[0]}, logger.Loc{},
		fmt.Sprintf("circular dependency: %s", strings.Join(path, " -> ")))
}

// bind is pass 3: point every import proxy Variable's AliasOf at the
// concrete Variable pass 1 resolved it to (spec.md section 4.3: "Following
// AliasOf chains to a fixed point yields the concrete Variable a read should
// be attributed to").
func (l *Linker) bind() {
	for _, m := range l.store.AllModules() {
		for _, imp := range m.ImportDescriptions {
			if !imp.LocalRef.IsValid() || !imp.ResolvedRef.IsValid() {
				continue
			}
			m.Arena.Get(imp.LocalRef).AliasOf = imp.ResolvedRef
		}
	}
}
