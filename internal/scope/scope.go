// Package scope models the lexical scope tree and variable bindings of
// spec.md section 3 and section 9 ("Scope/Variable graph with back-edges").
//
// Scopes and Variables form a cyclic object graph (child scopes point back
// to parents, variables point back to their declaring scope). Rather than
// build that out of pointers, each Module owns an arena of Scopes and
// Variables indexed by a stable integer id; parent and declaration
// references are ids, never owning references, the same way the teacher's
// js_ast package indexes symbols by Ref instead of by pointer.
package scope

// VarRef globally identifies a Variable: which module's arena it lives in,
// and its index within that arena. The zero VarRef (ModuleID "", index 0)
// refers to no Variable.
type VarRef struct {
	ModuleID string
	Index    uint32
}

// IsValid reports whether this ref has ever been assigned a target.
func (r VarRef) IsValid() bool {
	return r.ModuleID != "" || r.Index != 0
}

// Kind distinguishes the Variable variants of spec.md section 3.
type Kind uint8

const (
	KindLocal Kind = iota
	KindExportDefault
	KindNamespace
	KindExternal
	KindUndefined
)

// Variable is a binding in some scope. Every variant tracks whether it is
// included by the tree-shaker, its declaration sites, and whether it is
// ever reassigned after its initializing declaration (Reassigned, which is
// only carried into the serialized cache; the includer and linker do not
// read it).
type Variable struct {
	Kind Kind
	Name string

	// Included is flipped to true by the Includer and must never be flipped
	// back to false within one build (spec.md section 9: "once included,
	// never un-included").
	Included bool

	// DeclScope is the id of the scope (within the same module's arena) that
	// declares this variable. Zero for synthetic variables (namespace,
	// external, undefined) that have no lexical declaration site.
	DeclScope uint32

	// DeclStmtIndices are indices into the declaring module's top-level
	// statement list that must be included to produce this variable. Most
	// variables have exactly one; a variable reassigned in multiple places
	// can have more.
	DeclStmtIndices []int

	Reassigned bool

	// AliasOf, when valid, means this Variable is a proxy that forwards to
	// another Variable -- used for import bindings, which start out as a
	// placeholder declared in the importing module's own arena and are
	// pointed at the real producing Variable by the Linker's binding pass
	// (spec.md section 4.3). Following AliasOf chains to a fixed point
	// yields the concrete Variable a read should be attributed to.
	AliasOf VarRef

	// For KindNamespace: the id of the module whose exports this namespace
	// object represents.
	NamespaceOfModule string

	// For KindExternal: the external module id and the imported name, empty
	// for a namespace import ("*").
	ExternalModuleID string
	ExternalName     string
}

// Arena owns every Scope and Variable belonging to one Module. A Module owns
// exactly one Arena; the single process-wide GlobalScope lives outside any
// Arena and is shared across every Module of a build (spec.md section 3).
type Arena struct {
	ModuleID string
	Scopes   []Scope
	Vars     []Variable
}

// ScopeKind distinguishes the scope tree's node types.
type ScopeKind uint8

const (
	ScopeKindModule ScopeKind = iota
	ScopeKindChild
)

// Scope is one lexical environment. Child holds a non-owning back-reference
// to its parent by index; the module scope's Parent is -1 to signal "look up
// into the process-wide GlobalScope next".
type Scope struct {
	Kind    ScopeKind
	Parent  int32 // -1 for the module scope
	Members map[string]uint32 // name -> index into Arena.Vars
}

// NewArena creates an empty arena with its root ModuleScope already present
// at index 0.
func NewArena(moduleID string) *Arena {
	a := &Arena{ModuleID: moduleID}
	a.Scopes = append(a.Scopes, Scope{Kind: ScopeKindModule, Parent: -1, Members: map[string]uint32{}})
	return a
}

// ModuleScope returns the index of this arena's root scope. It is always 0.
func (a *Arena) ModuleScope() uint32 { return 0 }

// PushChild creates a new child scope under parent and returns its index.
func (a *Arena) PushChild(parent uint32) uint32 {
	a.Scopes = append(a.Scopes, Scope{Kind: ScopeKindChild, Parent: int32(parent), Members: map[string]uint32{}})
	return uint32(len(a.Scopes) - 1)
}

// Declare adds a new Variable to scopeIdx and returns its VarRef.
func (a *Arena) Declare(scopeIdx uint32, v Variable) VarRef {
	v.DeclScope = scopeIdx
	a.Vars = append(a.Vars, v)
	idx := uint32(len(a.Vars) - 1)
	a.Scopes[scopeIdx].Members[v.Name] = idx
	return VarRef{ModuleID: a.ModuleID, Index: idx}
}

// Lookup walks from scopeIdx up through parents looking for name, stopping
// at the module scope (the GlobalScope, if any, is consulted separately by
// the caller since it is not owned by this arena).
func (a *Arena) Lookup(scopeIdx uint32, name string) (VarRef, bool) {
	for {
		s := &a.Scopes[scopeIdx]
		if idx, ok := s.Members[name]; ok {
			return VarRef{ModuleID: a.ModuleID, Index: idx}, true
		}
		if s.Parent < 0 {
			return VarRef{}, false
		}
		scopeIdx = uint32(s.Parent)
	}
}

// Get dereferences a VarRef that must belong to this arena.
func (a *Arena) Get(ref VarRef) *Variable {
	if ref.ModuleID != a.ModuleID {
		panic("scope: VarRef belongs to a different module's arena")
	}
	return &a.Vars[ref.Index]
}

// GlobalScope is the single process-lived scope shared by every Module in a
// build (spec.md section 3). It never owns Variables directly; it only
// records which global names have been observed referenced, for
// UnknownGlobalSideEffects accounting in the Includer.
type GlobalScope struct {
	observed map[string]bool
}

func NewGlobalScope() *GlobalScope {
	return &GlobalScope{observed: map[string]bool{}}
}

func (g *GlobalScope) Observe(name string) {
	g.observed[name] = true
}

func (g *GlobalScope) WasObserved(name string) bool {
	return g.observed[name]
}
