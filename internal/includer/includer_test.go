package includer_test

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/includer"
	"github.com/jsbuild/bundlecore/internal/linker"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWired registers every module in the store, links entries against the
// rest, and returns an Includer ready to Run -- mirroring the Link-then-Run
// ordering internal/graph.Graph.Build drives the two passes in.
func newWired(t *testing.T, entries []*module.Module, modules ...*module.Module) (*module.Store, *linker.Linker, *includer.Includer) {
	t.Helper()
	store := module.NewStore()
	for _, m := range modules {
		mm := m
		store.GetOrCreateModule(mm.ID, func() *module.Module { return mm })
	}
	opts := &config.Options{Treeshake: config.DefaultTreeshake()}
	log := logger.NewDeferLog()
	lk := linker.New(store, opts, log)
	lk.Link(entries, nil)
	inc := includer.New(store, opts, log, lk)
	return store, lk, inc
}

func TestRunIncludesUsedExportAndShakesUnusedOne(t *testing.T) {
	b := module.New("b.js", true, config.PreserveSignatureNone)
	usedFnRef := b.DeclareLocal("used")
	unusedFnRef := b.DeclareLocal("unused")
	b.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExportNamedDeclaration{Declaration: &bast.FunctionDeclaration{Name: "used", Ref: usedFnRef}},
		&bast.ExportNamedDeclaration{Declaration: &bast.FunctionDeclaration{Name: "unused", Ref: unusedFnRef}},
	}})

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	proxyRef := a.DeclareImportProxy("used")
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./b", Specifiers: []bast.ImportSpecifier{{LocalName: "used", ImportedName: "used", LocalRef: proxyRef}}},
		&bast.ExpressionStatement{Expression: &bast.CallExpression{Callee: &bast.Identifier{Name: "used", Ref: proxyRef}}},
	}})
	a.Sources = []string{"./b"}
	a.SetResolved("./b", "b.js", false)

	store, _, inc := newWired(t, []*module.Module{a}, a, b)
	inc.Run([]*module.Module{a}, nil)

	assert.True(t, store.Variable(usedFnRef).Included)
	assert.False(t, store.Variable(unusedFnRef).Included)
	assert.Equal(t, []int{1}, inc.IncludedStmtIndices(a))
	assert.Equal(t, []int{0}, inc.IncludedStmtIndices(b))
}

func TestRunMarksModuleLiveForImportedSideEffectsEvenWithoutUsedBindings(t *testing.T) {
	b := module.New("b.js", true, config.PreserveSignatureNone)
	b.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.OpaqueExpression{}},
	}})

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./b", Specifiers: nil},
	}})
	a.Sources = []string{"./b"}
	a.SetResolved("./b", "b.js", false)

	store, _, inc := newWired(t, []*module.Module{a}, a, b)
	inc.Run([]*module.Module{a}, nil)

	info, ok := store.Module("b.js")
	require.True(t, ok)
	assert.True(t, info.IsIncluded)
	assert.Equal(t, []int{0}, inc.IncludedStmtIndices(b))
}

func TestRunDoesNotDescendIntoSideEffectFreeUnimportedDependency(t *testing.T) {
	c := module.New("c.js", false, config.PreserveSignatureNone)
	c.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.OpaqueExpression{}},
	}})

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(&bast.Program{Body: nil})
	a.Sources = []string{"./c"}
	a.SetResolved("./c", "c.js", false)

	store, _, inc := newWired(t, []*module.Module{a}, a, c)
	inc.Run([]*module.Module{a}, nil)

	info, ok := store.Module("c.js")
	require.True(t, ok)
	assert.False(t, info.IsIncluded)
}

func TestRunFollowsDynamicImportRegardlessOfSideEffectsFlag(t *testing.T) {
	lazy := module.New("lazy.js", false, config.PreserveSignatureNone)
	lazy.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.OpaqueExpression{}},
	}})

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.DynamicImport{Specifier: "./lazy"}},
	}})
	a.SetDynamicImportTarget("./lazy", "lazy.js")

	store, _, inc := newWired(t, []*module.Module{a}, a, lazy)
	inc.Run([]*module.Module{a}, nil)

	info, ok := store.Module("lazy.js")
	require.True(t, ok)
	assert.True(t, info.IsIncluded)
}

func TestRunReportsUnusedExternalImport(t *testing.T) {
	store := module.NewStore()
	store.GetOrCreateExternal("left-pad", func() *module.ExternalModule {
		return module.NewExternal("left-pad", true)
	})

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	proxyRef := a.DeclareImportProxy("leftPad")
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "left-pad", Specifiers: []bast.ImportSpecifier{{LocalName: "leftPad", ImportedName: "default", LocalRef: proxyRef}}},
	}})
	a.Sources = []string{"left-pad"}
	a.SetResolved("left-pad", "left-pad", true)
	store.GetOrCreateModule("a.js", func() *module.Module { return a })

	opts := &config.Options{Treeshake: config.DefaultTreeshake()}
	log := logger.NewDeferLog()
	lk := linker.New(store, opts, log)
	inc := includer.New(store, opts, log, lk)

	lk.Link([]*module.Module{a}, nil)
	inc.Run([]*module.Module{a}, nil)

	msgs := log.Done()
	require.Len(t, msgs, 1)
	assert.Equal(t, logger.MsgID_UnusedExternalImport, msgs[0].ID)
}
