package chunker_test

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/chunker"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/includer"
	"github.com/jsbuild/bundlecore/internal/linker"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeline builds a Store from modules, runs Link then Include, and returns a
// ready Chunker -- the same Link -> Include -> Generate ordering
// internal/graph.Graph.Build drives.
func pipeline(t *testing.T, opts *config.Options, entries []*module.Module, manualSeeds []*module.Module, modules ...*module.Module) (*module.Store, *chunker.Chunker) {
	t.Helper()
	store := module.NewStore()
	for _, m := range modules {
		mm := m
		store.GetOrCreateModule(mm.ID, func() *module.Module { return mm })
	}
	log := logger.NewDeferLog()
	lk := linker.New(store, opts, log)
	lk.Link(entries, manualSeeds)
	inc := includer.New(store, opts, log, lk)
	inc.Run(entries, manualSeeds)
	return store, chunker.New(store, lk, inc, opts, log)
}

func withEffect(name string) *bast.Program {
	return &bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.OpaqueExpression{}},
	}}
}

func TestGenerateProducesSeparateChunksForDisjointEntries(t *testing.T) {
	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(withEffect("a"))

	b := module.New("b.js", true, config.PreserveSignatureNone)
	b.IsEntryPoint = true
	b.Build(withEffect("b"))

	opts := &config.Options{Treeshake: config.DefaultTreeshake()}
	entries := []*module.Module{a, b}
	_, ck := pipeline(t, opts, entries, nil, a, b)

	chunks := ck.Generate(entries, map[string]string{"a.js": "a", "b.js": "b"}, config.ManualChunkGroups{}, nil)

	require.Len(t, chunks, 2)
	names := map[string]bool{}
	for _, c := range chunks {
		assert.True(t, c.IsEntryPoint)
		names[c.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestGenerateSharesCommonDependencyInItsOwnChunk(t *testing.T) {
	common := module.New("common.js", true, config.PreserveSignatureNone)
	sharedRef := common.DeclareLocal("shared")
	common.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExportNamedDeclaration{Declaration: &bast.FunctionDeclaration{Name: "shared", Ref: sharedRef}},
	}})

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	aProxy := a.DeclareImportProxy("shared")
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./common", Specifiers: []bast.ImportSpecifier{{LocalName: "shared", ImportedName: "shared", LocalRef: aProxy}}},
		&bast.ExpressionStatement{Expression: &bast.CallExpression{Callee: &bast.Identifier{Name: "shared", Ref: aProxy}}},
	}})
	a.Sources = []string{"./common"}
	a.SetResolved("./common", "common.js", false)

	b := module.New("b.js", true, config.PreserveSignatureNone)
	b.IsEntryPoint = true
	bProxy := b.DeclareImportProxy("shared")
	b.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./common", Specifiers: []bast.ImportSpecifier{{LocalName: "shared", ImportedName: "shared", LocalRef: bProxy}}},
		&bast.ExpressionStatement{Expression: &bast.CallExpression{Callee: &bast.Identifier{Name: "shared", Ref: bProxy}}},
	}})
	b.Sources = []string{"./common"}
	b.SetResolved("./common", "common.js", false)

	opts := &config.Options{Treeshake: config.DefaultTreeshake()}
	entries := []*module.Module{a, b}
	_, ck := pipeline(t, opts, entries, nil, a, b, common)

	chunks := ck.Generate(entries, map[string]string{"a.js": "a", "b.js": "b"}, config.ManualChunkGroups{}, nil)

	require.Len(t, chunks, 3)
	var shared *chunker.Chunk
	for i := range chunks {
		if !chunks[i].IsEntryPoint {
			shared = &chunks[i]
		}
	}
	require.NotNil(t, shared)
	require.Len(t, shared.Modules, 1)
	assert.Equal(t, "common.js", shared.Modules[0].ID)
	assert.True(t, shared.Exports["shared"])
}

func TestGenerateManualChunkClaimsDependencyOverColouring(t *testing.T) {
	vendor := module.New("vendor.js", true, config.PreserveSignatureNone)
	vendor.Build(withEffect("vendor"))

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./vendor"},
	}})
	a.Sources = []string{"./vendor"}
	a.SetResolved("./vendor", "vendor.js", false)

	opts := &config.Options{Treeshake: config.DefaultTreeshake()}
	entries := []*module.Module{a}
	manualSeeds := []*module.Module{vendor}
	_, ck := pipeline(t, opts, entries, manualSeeds, a, vendor)

	groups := config.ManualChunkGroups{ByName: map[string][]string{"vendor": {"vendor.js"}}, Names: []string{"vendor"}}
	manualModules := map[string][]*module.Module{"vendor": {vendor}}
	chunks := ck.Generate(entries, map[string]string{"a.js": "a"}, groups, manualModules)

	var vendorChunk *chunker.Chunk
	for i := range chunks {
		if chunks[i].Name == "vendor" {
			vendorChunk = &chunks[i]
		}
	}
	require.NotNil(t, vendorChunk)
	assert.False(t, vendorChunk.IsEntryPoint)
	require.Len(t, vendorChunk.Modules, 1)
	assert.Equal(t, "vendor.js", vendorChunk.Modules[0].ID)
}

func TestGeneratePreserveModulesProducesOneChunkPerModule(t *testing.T) {
	dep := module.New("dep.js", true, config.PreserveSignatureNone)
	dep.Build(withEffect("dep"))

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./dep"},
	}})
	a.Sources = []string{"./dep"}
	a.SetResolved("./dep", "dep.js", false)

	opts := &config.Options{Treeshake: config.DefaultTreeshake(), PreserveModules: true}
	entries := []*module.Module{a}
	_, ck := pipeline(t, opts, entries, nil, a, dep)

	chunks := ck.Generate(entries, map[string]string{"a.js": "a"}, config.ManualChunkGroups{}, nil)

	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Len(t, c.Modules, 1)
	}
}

func TestGenerateInlineDynamicFoldsEverythingIntoOneChunk(t *testing.T) {
	lazy := module.New("lazy.js", true, config.PreserveSignatureNone)
	lazy.Build(withEffect("lazy"))

	a := module.New("a.js", true, config.PreserveSignatureNone)
	a.IsEntryPoint = true
	a.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.DynamicImport{Specifier: "./lazy"}},
	}})
	a.SetDynamicImportTarget("./lazy", "lazy.js")

	opts := &config.Options{Treeshake: config.DefaultTreeshake(), InlineDynamicImports: true}
	entries := []*module.Module{a}
	_, ck := pipeline(t, opts, entries, nil, a, lazy)

	chunks := ck.Generate(entries, map[string]string{"a.js": "a"}, config.ManualChunkGroups{}, nil)

	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Modules, 2)
	assert.True(t, chunks[0].IsEntryPoint)
}
