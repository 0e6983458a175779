package module

import (
	"sync"

	"github.com/jsbuild/bundlecore/internal/scope"
)

// Store holds moduleById (spec.md section 3's Graph.moduleById) plus the
// insert-if-absent invariant the Loader's concurrent resolve/load requires
// (spec.md section 5: "serialise mutations of moduleById (insert-if-absent)
// and of per-module reverse edges"). It lives in this package rather than in
// the orchestrator package because the Loader -- which sits below the
// orchestrator in the dependency order of spec.md section 2 -- is the one
// that populates it; the orchestrator merely owns a Store once the Loader
// hands it back.
// sharedArenaModuleID names the Arena that holds the handful of Variable
// records with no single owning Module: ExternalVariables (one per
// (external module, imported name)) and the single UndefinedVariable shared
// by the whole build (spec.md section 3).
const sharedArenaModuleID = "\x00shared"

type Store struct {
	mu        sync.Mutex
	modules   map[string]*Module
	externals map[string]*ExternalModule

	shared       *scope.Arena
	externalVars map[string]scope.VarRef
	undefinedRef scope.VarRef
}

func NewStore() *Store {
	return &Store{
		modules:      map[string]*Module{},
		externals:    map[string]*ExternalModule{},
		shared:       scope.NewArena(sharedArenaModuleID),
		externalVars: map[string]scope.VarRef{},
	}
}

// SharedArena exposes the arena backing External/Undefined variables so the
// Includer can dereference VarRefs it hands out.
func (s *Store) SharedArena() *scope.Arena { return s.shared }

// ExternalVariable returns (creating if necessary) the Variable for one
// imported name of one external module: a NamespaceVariable when name is
// "*" (import * as ns from an external package), otherwise an
// ExternalVariable.
func (s *Store) ExternalVariable(externalID, name string) scope.VarRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := externalID + "\x00" + name
	if ref, ok := s.externalVars[key]; ok {
		return ref
	}
	var v scope.Variable
	if name == "*" {
		v = scope.Variable{Kind: scope.KindNamespace, Name: "*", NamespaceOfModule: externalID}
	} else {
		v = scope.Variable{Kind: scope.KindExternal, Name: name, ExternalModuleID: externalID, ExternalName: name}
	}
	ref := s.shared.Declare(s.shared.ModuleScope(), v)
	s.externalVars[key] = ref
	return ref
}

// UndefinedVariable returns the single shared UndefinedVariable used as a
// substitute binding for a MISSING_EXPORT when shimMissingExports is set.
func (s *Store) UndefinedVariable() scope.VarRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.undefinedRef.IsValid() {
		s.undefinedRef = s.shared.Declare(s.shared.ModuleScope(), scope.Variable{
			Kind: scope.KindUndefined,
			Name: "undefined",
		})
	}
	return s.undefinedRef
}

// Variable dereferences any VarRef produced by this Store or by any Module's
// own Arena that this Store knows about.
func (s *Store) Variable(ref scope.VarRef) *scope.Variable {
	if ref.ModuleID == sharedArenaModuleID {
		return s.shared.Get(ref)
	}
	m, ok := s.Module(ref.ModuleID)
	if !ok {
		panic("module: VarRef refers to an unknown module " + ref.ModuleID)
	}
	return m.Arena.Get(ref)
}

// GetOrCreateModule returns the existing Module for id, or atomically
// creates one with create() and inserts it. The second return value is true
// only when a new Module was created by this call, which the Loader uses to
// decide whether to actually invoke load()+parse() for id (the "at-most-one
// load per id per build" rule of spec.md section 4.2).
func (s *Store) GetOrCreateModule(id string, create func() *Module) (*Module, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modules[id]; ok {
		return m, false
	}
	m := create()
	s.modules[id] = m
	return m, true
}

// GetOrCreateExternal is the ExternalModule equivalent of GetOrCreateModule.
func (s *Store) GetOrCreateExternal(id string, create func() *ExternalModule) (*ExternalModule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.externals[id]; ok {
		return m, false
	}
	m := create()
	s.externals[id] = m
	return m, true
}

func (s *Store) Module(id string) (*Module, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[id]
	return m, ok
}

func (s *Store) External(id string) (*ExternalModule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.externals[id]
	return m, ok
}

// AllModules returns a snapshot slice of every Module, in no particular
// order (Go map iteration order). The slice doesn't change under concurrent
// iteration; actual execution ordering is a Linker concern.
func (s *Store) AllModules() []*Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Module, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	return out
}

func (s *Store) AllExternals() []*ExternalModule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ExternalModule, 0, len(s.externals))
	for _, m := range s.externals {
		out = append(out, m)
	}
	return out
}

// AddImporter records a static reverse edge, synchronised per spec.md
// section 5 ("serialise mutations ... of per-module reverse edges").
func (s *Store) AddImporter(targetID, importerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modules[targetID]; ok {
		m.Importers[importerID] = true
	} else if e, ok := s.externals[targetID]; ok {
		_ = e // external modules don't track importers individually today
	}
}

func (s *Store) AddDynamicImporter(targetID, importerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modules[targetID]; ok {
		m.DynamicImporters[importerID] = true
	}
}
