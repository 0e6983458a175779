package scope_test

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareThenLookupFindsBindingInModuleScope(t *testing.T) {
	a := scope.NewArena("a.js")
	ref := a.Declare(a.ModuleScope(), scope.Variable{Kind: scope.KindLocal, Name: "x"})

	found, ok := a.Lookup(a.ModuleScope(), "x")
	require.True(t, ok)
	assert.Equal(t, ref, found)
}

func TestLookupWalksUpToParentScope(t *testing.T) {
	a := scope.NewArena("a.js")
	ref := a.Declare(a.ModuleScope(), scope.Variable{Kind: scope.KindLocal, Name: "x"})
	child := a.PushChild(a.ModuleScope())

	found, ok := a.Lookup(child, "x")
	require.True(t, ok)
	assert.Equal(t, ref, found)
}

func TestLookupMissReturnsFalse(t *testing.T) {
	a := scope.NewArena("a.js")
	_, ok := a.Lookup(a.ModuleScope(), "nope")
	assert.False(t, ok)
}

func TestShadowingInChildScopeDoesNotAffectParent(t *testing.T) {
	a := scope.NewArena("a.js")
	outer := a.Declare(a.ModuleScope(), scope.Variable{Kind: scope.KindLocal, Name: "x"})
	child := a.PushChild(a.ModuleScope())
	inner := a.Declare(child, scope.Variable{Kind: scope.KindLocal, Name: "x"})

	foundInChild, _ := a.Lookup(child, "x")
	foundInModule, _ := a.Lookup(a.ModuleScope(), "x")
	assert.Equal(t, inner, foundInChild)
	assert.Equal(t, outer, foundInModule)
	assert.NotEqual(t, foundInChild, foundInModule)
}

func TestGetPanicsOnForeignArenaRef(t *testing.T) {
	a := scope.NewArena("a.js")
	ref := scope.VarRef{ModuleID: "b.js", Index: 0}
	assert.Panics(t, func() { a.Get(ref) })
}

func TestGetReturnsMutableVariable(t *testing.T) {
	a := scope.NewArena("a.js")
	ref := a.Declare(a.ModuleScope(), scope.Variable{Kind: scope.KindLocal, Name: "x"})

	a.Get(ref).Included = true

	assert.True(t, a.Get(ref).Included)
}

func TestGlobalScopeTracksObservedNames(t *testing.T) {
	g := scope.NewGlobalScope()
	assert.False(t, g.WasObserved("console"))
	g.Observe("console")
	assert.True(t, g.WasObserved("console"))
}
