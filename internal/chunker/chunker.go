// Package chunker implements spec.md section 4.5: grouping the modules the
// Includer kept live into output Chunks, by entry-point reachability
// ("colouring"), by an explicit manual assignment, by inline-dynamic mode's
// single chunk, or one-module-per-chunk under preserve-modules, then
// resolving the cross-chunk imports/exports each chunk needs once code on
// one side of a chunk boundary reads a binding declared on the other.
//
// Grounded on the teacher's internal/linker.go computeChunks and its
// EntryBits colouring (internal/graph/meta.go, internal/helpers/bitset.go):
// a module's combined bitset of every entry that reaches it is the chunk it
// belongs to; two modules share a chunk iff they share a bitset. A declared
// entry point is always its own chunk boundary -- its bit never flows
// further than itself the way a plain shared module's does -- matching the
// teacher's "always generate a chunk for the entry point even if it ends up
// empty" rule.
package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/helpers"
	"github.com/jsbuild/bundlecore/internal/includer"
	"github.com/jsbuild/bundlecore/internal/linker"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
)

// Chunk is one unit of output: an ordered group of modules plus the
// cross-chunk bindings it needs to read from other chunks and expose to
// them (spec.md section 4.5).
type Chunk struct {
	Name            string
	IsEntryPoint    bool
	EntryModuleID   string
	ManualChunkName string

	// Modules is dependency-first ordered (module.Module.ExecutionOrderIndex
	// ascending), the order the chunk's statements must appear in.
	Modules []*module.Module

	// Imports maps another chunk's Name to the set of Variable names this
	// chunk reads from it.
	Imports map[string]map[string]bool

	// Exports is the set of Variable names some other chunk (or, for an
	// entry/facade chunk, the host environment) reads from this chunk.
	Exports map[string]bool

	// IsFacade is true when every one of this chunk's own modules
	// contributed zero included statements -- its entire content is
	// re-exports forwarding names from other chunks, synthesized to keep an
	// entry's public signature intact (spec.md section 4.5,
	// PreserveEntrySignatures strict/allow-extension).
	IsFacade bool
}

type Chunker struct {
	store    *module.Store
	linker   *linker.Linker
	includer *includer.Includer
	opts     *config.Options
	log      logger.Log
}

func New(store *module.Store, lk *linker.Linker, inc *includer.Includer, opts *config.Options, log logger.Log) *Chunker {
	return &Chunker{store: store, linker: lk, includer: inc, opts: opts, log: log}
}

// Generate runs spec.md section 4.5 end to end. entries and their chunk
// output names come from nameByEntryID (entry module id -> Options.Input
// key); manualModules is the Loader's resolved form of the manual chunk
// groups' seed specifiers, in declaration order via
// config.ManualChunkGroups.Names.
func (ck *Chunker) Generate(entries []*module.Module, nameByEntryID map[string]string, manualGroups config.ManualChunkGroups, manualModules map[string][]*module.Module) []Chunk {
	live := ck.liveModulesInOrder()
	if len(live) == 0 {
		return nil
	}

	var groups []*Chunk
	switch {
	case ck.opts.PreserveModules:
		groups = ck.generatePreserveModules(live, nameByEntryID)
	case ck.opts.InlineDynamicImports:
		groups = ck.generateInlineSingleChunk(live, nameByEntryID)
	default:
		manualChunkOf := ck.resolveManualChunkClaims(live, manualGroups, manualModules)
		groups = ck.generateColoured(live, entries, nameByEntryID, manualChunkOf)
	}

	ck.link(groups)
	ck.markFacades(groups)
	return ck.order(groups)
}

func (ck *Chunker) liveModulesInOrder() []*module.Module {
	live := make([]*module.Module, 0)
	for _, m := range ck.store.AllModules() {
		if m.IsIncluded {
			live = append(live, m)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ExecutionOrderIndex < live[j].ExecutionOrderIndex })
	return live
}

// generateInlineSingleChunk implements spec.md section 4.5's inline-dynamic
// mode literally: every included module, static or dynamic, folds into one
// chunk, so there is never a code-split boundary at a dynamic import site.
func (ck *Chunker) generateInlineSingleChunk(live []*module.Module, nameByEntryID map[string]string) []*Chunk {
	c := &Chunk{Modules: live}
	var names []string
	for _, m := range live {
		if m.IsEntryPoint {
			c.IsEntryPoint = true
			if c.EntryModuleID == "" {
				c.EntryModuleID = m.ID
			}
			if name, ok := nameByEntryID[m.ID]; ok {
				names = append(names, name)
			}
		}
	}
	if len(names) > 0 {
		c.Name = strings.Join(names, "+")
	} else if c.EntryModuleID != "" {
		c.Name = sanitizeChunkName(c.EntryModuleID)
	} else {
		c.Name = "bundle"
	}
	return []*Chunk{c}
}

func (ck *Chunker) generatePreserveModules(live []*module.Module, nameByEntryID map[string]string) []*Chunk {
	out := make([]*Chunk, 0, len(live))
	for _, m := range live {
		c := &Chunk{Modules: []*module.Module{m}}
		if m.IsEntryPoint {
			c.IsEntryPoint = true
			c.EntryModuleID = m.ID
			if name, ok := nameByEntryID[m.ID]; ok {
				c.Name = name
			} else {
				c.Name = sanitizeChunkName(m.ID)
			}
		} else {
			c.Name = sanitizeChunkName(m.ID)
		}
		out = append(out, c)
	}
	return out
}

// resolveManualChunkClaims implements spec.md section 4.5's manual chunk
// override: "all modules reachable from a manual-chunk seed (before
// reaching another entry) join that named chunk." Groups are walked in
// declaration order (config.ManualChunkGroups.Names) and a module already
// claimed by an earlier group keeps that group -- first declaration wins,
// with a MANUAL_CHUNK_CONFLICT warning on every later conflicting claim.
func (ck *Chunker) resolveManualChunkClaims(live []*module.Module, groups config.ManualChunkGroups, resolved map[string][]*module.Module) map[string]string {
	claimed := map[string]string{}
	claim := func(name string, seed *module.Module) {
		visited := map[string]bool{}
		var walk func(m *module.Module)
		walk = func(m *module.Module) {
			if m.IsEntryPoint && m.ID != seed.ID {
				return // entries are always their own chunk boundary
			}
			if visited[m.ID] {
				return
			}
			visited[m.ID] = true
			if owner, ok := claimed[m.ID]; ok {
				if owner != name {
					ck.log.AddIDWarning(logger.MsgID_ManualChunkConflict, &logger.Source{PrettyPath: m.ID}, logger.Loc{},
						fmt.Sprintf("module %q already claimed by manual chunk %q, ignoring claim by %q", m.ID, owner, name))
				}
				return // first-wins: never overwrite, never recurse past an earlier claim
			}
			claimed[m.ID] = name

			for _, src := range m.Sources {
				targetID, external, ok := m.Resolved(src)
				if !ok || external {
					continue
				}
				if tm, ok := ck.store.Module(targetID); ok && tm.IsIncluded {
					walk(tm)
				}
			}
			for i := range m.DynamicImports {
				target := m.DynamicImports[i].Target
				if target == "" {
					continue
				}
				if tm, ok := ck.store.Module(target); ok && tm.IsIncluded {
					walk(tm)
				}
			}
		}
		walk(seed)
	}

	for _, name := range groups.Names {
		for _, seed := range resolved[name] {
			if !seed.IsIncluded {
				continue
			}
			claim(name, seed)
		}
	}
	if groups.Fn != nil {
		for _, m := range live {
			if _, already := claimed[m.ID]; already {
				continue
			}
			if name, ok := groups.Fn(m.ID); ok {
				claim(name, m)
			}
		}
	}
	return claimed
}

// generateColoured implements spec.md section 4.5's default mode: colour
// each module by the set of entry modules that can reach it via forward
// traversal of both static and dynamic edges, group identical colours into
// one chunk each, then let a manual chunk claim override whatever colour a
// module would otherwise get.
func (ck *Chunker) generateColoured(live []*module.Module, entries []*module.Module, nameByEntryID map[string]string, manualChunkOf map[string]string) []*Chunk {
	bits := map[string]helpers.BitSet{}
	for _, m := range live {
		bits[m.ID] = helpers.NewBitSet(uint(len(entries)))
	}
	for i, e := range entries {
		ck.colourFrom(e, e.ID, uint(i), bits, map[string]bool{})
	}

	chunks := map[string]*Chunk{}
	var chunkOrder []string
	for _, m := range live {
		var key, manualName string
		if name, ok := manualChunkOf[m.ID]; ok {
			key = "manual:" + name
			manualName = name
		} else {
			key = "auto:" + bits[m.ID].String()
		}
		c, ok := chunks[key]
		if !ok {
			c = &Chunk{ManualChunkName: manualName}
			chunks[key] = c
			chunkOrder = append(chunkOrder, key)
		}
		c.Modules = append(c.Modules, m)
		if m.IsEntryPoint {
			c.IsEntryPoint = true
			c.EntryModuleID = m.ID
		}
	}

	out := make([]*Chunk, 0, len(chunkOrder))
	sharedIndex := 0
	for _, key := range chunkOrder {
		c := chunks[key]
		c.Name = ck.nameChunk(c, key, entries, nameByEntryID, &sharedIndex)
		out = append(out, c)
	}
	return out
}

// colourFrom marks m (and everything reachable from it, along static and
// dynamic edges) with seedBit, stopping at any OTHER declared entry point --
// an entry is always its own chunk boundary, so a seed never absorbs
// another entry's subtree even when it imports it, statically or
// dynamically.
func (ck *Chunker) colourFrom(m *module.Module, seedModuleID string, seedBit uint, bits map[string]helpers.BitSet, visited map[string]bool) {
	if m.IsEntryPoint && m.ID != seedModuleID {
		return
	}
	if visited[m.ID] {
		return
	}
	visited[m.ID] = true

	bits[m.ID].SetBit(seedBit)

	for _, src := range m.Sources {
		targetID, external, ok := m.Resolved(src)
		if !ok || external {
			continue
		}
		if tm, ok := ck.store.Module(targetID); ok && tm.IsIncluded {
			ck.colourFrom(tm, seedModuleID, seedBit, bits, visited)
		}
	}
	for i := range m.DynamicImports {
		target := m.DynamicImports[i].Target
		if target == "" {
			continue
		}
		if tm, ok := ck.store.Module(target); ok && tm.IsIncluded {
			ck.colourFrom(tm, seedModuleID, seedBit, bits, visited)
		}
	}
}

func (ck *Chunker) nameChunk(c *Chunk, key string, entries []*module.Module, nameByEntryID map[string]string, sharedIndex *int) string {
	if c.ManualChunkName != "" {
		return c.ManualChunkName
	}
	if c.IsEntryPoint {
		if name, ok := nameByEntryID[c.EntryModuleID]; ok {
			return name
		}
		return sanitizeChunkName(c.EntryModuleID)
	}
	_ = strings.TrimPrefix(key, "auto:")
	*sharedIndex++
	return fmt.Sprintf("shared-%d", *sharedIndex)
}

func sanitizeChunkName(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_")
	return r.Replace(strings.TrimSuffix(id, ".js"))
}

// link resolves spec.md section 4.5's cross-chunk imports ("chunk.link()"):
// for every live import whose concrete Variable belongs to a module in a
// different chunk, record the read on the importing chunk and the publish
// requirement on the owning chunk. It also publishes every entry's own
// preserved export surface, so a facade can be recognised afterward.
func (ck *Chunker) link(chunks []*Chunk) {
	chunkOf := map[string]*Chunk{}
	for _, c := range chunks {
		for _, m := range c.Modules {
			chunkOf[m.ID] = c
		}
	}

	for _, c := range chunks {
		for _, m := range c.Modules {
			for _, imp := range m.ImportDescriptions {
				if !imp.ResolvedRef.IsValid() {
					continue
				}
				v := ck.store.Variable(imp.ResolvedRef)
				if !v.Included {
					continue
				}
				owner, ok := chunkOf[imp.ResolvedRef.ModuleID]
				if !ok || owner == c {
					continue
				}
				ck.recordCrossChunkRead(c, owner, v.Name)
			}
		}
	}

	for _, c := range chunks {
		for _, m := range c.Modules {
			if !m.IsEntryPoint || m.PreserveSignature == config.PreserveSignatureNone {
				continue
			}
			for name := range ck.linker.ExportNames(m.ID) {
				ref, ok := ck.linker.ExportNamesRef(m.ID, name)
				if !ok {
					continue
				}
				v := ck.store.Variable(ref)
				if !v.Included {
					continue
				}
				owner, ok := chunkOf[ref.ModuleID]
				if !ok {
					continue
				}
				if owner != c {
					ck.recordCrossChunkRead(c, owner, v.Name)
				}
				c.addExport(name)
			}
		}
	}
}

func (ck *Chunker) recordCrossChunkRead(reader, owner *Chunk, name string) {
	if reader.Imports == nil {
		reader.Imports = map[string]map[string]bool{}
	}
	if reader.Imports[owner.Name] == nil {
		reader.Imports[owner.Name] = map[string]bool{}
	}
	reader.Imports[owner.Name][name] = true
	owner.addExport(name)
}

func (c *Chunk) addExport(name string) {
	if c.Exports == nil {
		c.Exports = map[string]bool{}
	}
	c.Exports[name] = true
}

// markFacades flags an entry chunk whose every module contributed zero
// included top-level statements of its own -- its whole output is re-export
// forwarding, synthesized purely to keep PreserveEntrySignatures intact
// (spec.md section 4.5: "a facade is synthesised whenever an entry module's
// public signature cannot be expressed with ... its host chunk"). Because
// an entry is always forced to remain its own chunk boundary during
// colouring, that host chunk already exists; nothing needs inserting after
// the fact, only flagging.
func (ck *Chunker) markFacades(chunks []*Chunk) {
	for _, c := range chunks {
		if !c.IsEntryPoint || len(c.Exports) == 0 {
			continue
		}
		anyOwnStatement := false
		for _, m := range c.Modules {
			if len(ck.includer.IncludedStmtIndices(m)) > 0 {
				anyOwnStatement = true
				break
			}
		}
		c.IsFacade = !anyOwnStatement
	}
}

// order returns non-facade chunks first, then facades, each group keeping
// its discovery order, per spec.md section 4.5.
func (ck *Chunker) order(chunks []*Chunk) []Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return !chunks[i].IsFacade && chunks[j].IsFacade
	})
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = *c
	}
	return out
}
