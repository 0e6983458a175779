// Package includer implements spec.md section 4.4: the fixed-point
// tree-shaking pass that decides which statements of which modules survive
// into the output, seeded from each entry's exports and from any statement
// that can't be proven side-effect-free.
//
// Grounded on the teacher's internal/linker.go markFileLiveForTreeShaking /
// markPartLiveForTreeShaking pair (file-liveness gates part-liveness, a live
// part pulls in its declared symbol and that symbol's own dependencies),
// generalized from the teacher's per-part dependency list to this package's
// bast.Node.Include callback dispatch over module.Module statements.
package includer

import (
	"fmt"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/linker"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
	"github.com/jsbuild/bundlecore/internal/scope"
)

type Includer struct {
	store  *module.Store
	opts   *config.Options
	log    logger.Log
	linker *linker.Linker

	includedStmts map[string][]bool // module id -> per top-level statement index
}

func New(store *module.Store, opts *config.Options, log logger.Log, lk *linker.Linker) *Includer {
	return &Includer{
		store:         store,
		opts:          opts,
		log:           log,
		linker:        lk,
		includedStmts: map[string][]bool{},
	}
}

// Run seeds liveness from every entry's exports (respecting
// PreserveEntrySignatures) and from manual chunk seeds (a manually assigned
// chunk must keep its seed module's own side effects even if nothing
// imports a binding from it). Reaching the fixed point of spec.md section
// 4.4 ("repeat until a full pass marks nothing new") doesn't need an outer
// re-walk loop here: IncludeRef/markModuleLive/includeStmt already recurse
// synchronously into every newly-included reference as part of seeding, so
// by the time this function returns nothing more is reachable.
func (c *Includer) Run(entries []*module.Module, manualChunkModules []*module.Module) {
	for _, m := range entries {
		c.markModuleLive(m)
		c.includeEntryExports(m)
	}
	for _, m := range manualChunkModules {
		c.markModuleLive(m)
	}

	c.reportUnusedExternalImports()
}

// includeEntryExports force-includes an entry's public export surface under
// Strict/AllowExtension, matching PreserveEntrySignatures' contract that the
// entry's signature is kept intact regardless of whether anything in the
// graph reads it. Under None there is no such contract (DESIGN.md's "None
// drops unreferenced entry exports" decision): an export survives only if
// something else -- a dynamic import, another chunk -- actually reads it,
// so nothing is force-included here.
func (c *Includer) includeEntryExports(m *module.Module) {
	if m.PreserveSignature == config.PreserveSignatureNone {
		return
	}
	for name := range c.linker.ExportNames(m.ID) {
		if ref, ok := c.resolveExport(m, name); ok {
			c.IncludeRef(ref)
		}
	}
}

func (c *Includer) resolveExport(m *module.Module, name string) (scope.VarRef, bool) {
	return c.linker.ExportNamesRef(m.ID, name)
}

// Treeshake implements bast.IncludeContext.
func (c *Includer) Treeshake() config.Treeshake { return c.opts.Treeshake }

// NeedAnotherPass implements bast.IncludeContext. It's a no-op here: every
// node's Include recurses into its references synchronously, so there is
// never a deferred reference left over for a later pass to pick up.
func (c *Includer) NeedAnotherPass() {}

// IncludeRef implements bast.IncludeContext: marks the Variable behind ref
// (after following any AliasOf chain to its concrete target) as included,
// and pulls in whatever top-level statement(s) declare it.
func (c *Includer) IncludeRef(ref scope.VarRef) bool {
	if !ref.IsValid() {
		return false
	}
	v := c.store.Variable(ref)
	for v.AliasOf.IsValid() {
		ref = v.AliasOf
		v = c.store.Variable(ref)
	}

	switch v.Kind {
	case scope.KindExternal:
		if ext, ok := c.store.External(v.ExternalModuleID); ok {
			ext.UsedImportNames[v.ExternalName] = true
		}
	case scope.KindNamespace:
		if owner, ok := c.store.Module(v.NamespaceOfModule); ok {
			return c.includeNamespace(owner)
		}
		if ext, ok := c.store.External(v.NamespaceOfModule); ok {
			ext.UsedImportNames["*"] = true
		}
		return false
	case scope.KindUndefined:
		return false // shimmed missing export; nothing further to include
	}

	if v.Included {
		return false
	}
	v.Included = true

	m, ok := c.store.Module(ref.ModuleID)
	if !ok {
		return true // external or undefined: no declaring statement to pull in
	}
	c.markModuleLive(m)
	for _, idx := range v.DeclStmtIndices {
		c.includeStmt(m, idx)
	}
	return true
}

// includeNamespace includes every local export of owner, since reading any
// property of a namespace object might read any of them (spec.md section
// 4.4: a namespace import is conservatively treated as using its whole
// module).
func (c *Includer) includeNamespace(owner *module.Module) bool {
	changed := c.IncludeRef(owner.NamespaceVariable()) // marks the namespace Variable itself
	for name := range c.linker.ExportNames(owner.ID) {
		if ref, ok := c.resolveExport(owner, name); ok {
			if c.IncludeRef(ref) {
				changed = true
			}
		}
	}
	return changed
}

// markModuleLive is the module.Module analogue of the teacher's
// markFileLiveForTreeShaking: marks the module itself live, includes every
// statement that can't be proven side-effect-free (or, with tree-shaking
// disabled, every statement), and recurses into static imports kept alive
// for their own side effects.
func (c *Includer) markModuleLive(m *module.Module) {
	if m.IsIncluded {
		return
	}
	m.IsIncluded = true

	ts := c.opts.Treeshake
	if m.AST != nil {
		for i, stmt := range m.AST.Body {
			if !ts.Enabled || stmt.HasEffects(ts) {
				c.includeStmt(m, i)
			}
		}
	}

	for _, src := range m.Sources {
		targetID, external, ok := m.Resolved(src)
		if !ok || external {
			continue // external side effects run regardless of inclusion; nothing to mark
		}
		if tm, ok := c.store.Module(targetID); ok && tm.ModuleSideEffects {
			c.markModuleLive(tm)
		}
	}

	for i := range m.DynamicImports {
		site := &m.DynamicImports[i]
		if site.Target == "" {
			continue
		}
		if tm, ok := c.store.Module(site.Target); ok {
			c.markModuleLive(tm) // a dynamic import always runs its target, side effects or not
		}
	}
}

func (c *Includer) includeStmt(m *module.Module, idx int) {
	bits, ok := c.includedStmts[m.ID]
	if !ok {
		bits = make([]bool, len(m.AST.Body))
		c.includedStmts[m.ID] = bits
	}
	if bits[idx] {
		return
	}
	bits[idx] = true
	m.AST.Body[idx].Include(c)
}

// IncludedStmtIndices returns the sorted set of this module's surviving
// top-level statement indices, for the chunker to slice its output body
// from (spec.md section 4.5).
func (c *Includer) IncludedStmtIndices(m *module.Module) []int {
	bits := c.includedStmts[m.ID]
	var out []int
	for i, b := range bits {
		if b {
			out = append(out, i)
		}
	}
	return out
}

var _ bast.IncludeContext = (*Includer)(nil)

func (c *Includer) reportUnusedExternalImports() {
	for _, m := range c.store.AllModules() {
		for localName, imp := range m.ImportDescriptions {
			targetID, external, ok := m.Resolved(imp.Source)
			if !ok || !external {
				continue
			}
			ext, ok := c.store.External(targetID)
			if !ok {
				continue
			}
			v := c.store.Variable(imp.LocalRef)
			if v.Included {
				continue
			}
			if ext.UsedImportNames[imp.ExportedName] {
				continue
			}
			c.log.AddIDWarning(logger.MsgID_UnusedExternalImport, &logger.Source{PrettyPath: m.ID}, imp.Loc,
				unusedImportText(localName, imp.ExportedName, targetID))
		}
	}
}

func unusedImportText(localName, exportedName, externalID string) string {
	if exportedName == "*" {
		return fmt.Sprintf("import * as %s from %q is unused", localName, externalID)
	}
	return fmt.Sprintf("import %q from %q is unused", exportedName, externalID)
}
