package jshost_test

import (
	"context"
	"testing"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/fs"
	"github.com/jsbuild/bundlecore/internal/jshost"
	"github.com/jsbuild/bundlecore/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRelativeSpecifierTriesJSSuffix(t *testing.T) {
	mock := fs.MockFS(map[string]string{
		"/src/entry.js": "import { helper } from './util'\n",
		"/src/util.js":  "export function helper() {}\n",
	})
	host := jshost.NewHost(mock)

	id, external, err := host.Resolve(context.Background(), "./util", "/src/entry.js")
	require.NoError(t, err)
	assert.False(t, external)
	assert.Equal(t, "/src/util.js", id)
}

func TestResolveBareSpecifierIsExternal(t *testing.T) {
	mock := fs.MockFS(map[string]string{"/src/entry.js": "import 'left-pad'\n"})
	host := jshost.NewHost(mock)

	id, external, err := host.Resolve(context.Background(), "left-pad", "/src/entry.js")
	require.NoError(t, err)
	assert.True(t, external)
	assert.Equal(t, "left-pad", id)
}

func TestResolveUnresolvableSpecifierErrors(t *testing.T) {
	mock := fs.MockFS(map[string]string{"/src/entry.js": "import './missing'\n"})
	host := jshost.NewHost(mock)

	_, _, err := host.Resolve(context.Background(), "./missing", "/src/entry.js")
	assert.Error(t, err)
}

func TestLoadReadsFileContents(t *testing.T) {
	mock := fs.MockFS(map[string]string{"/src/a.js": "const x = 1\n"})
	host := jshost.NewHost(mock)

	res, err := host.Load(context.Background(), "/src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "const x = 1\n", res.Text)
}

func TestParseDeclaresTopLevelBindingsIntoArena(t *testing.T) {
	mock := fs.MockFS(nil)
	host := jshost.NewHost(mock)
	arena := scope.NewArena("a.js")

	prog, err := host.Parse(context.Background(), "a.js", "const x = 1\nexport function f() {}\n", arena)
	require.NoError(t, err)
	require.Len(t, prog.Body, 2)

	decl, ok := prog.Body[0].(*bast.VariableDeclaration)
	require.True(t, ok)
	ref := decl.Declarators[0].Ref
	assert.Equal(t, "x", arena.Get(ref).Name)

	exportDecl, ok := prog.Body[1].(*bast.ExportNamedDeclaration)
	require.True(t, ok)
	fn, ok := exportDecl.Declaration.(*bast.FunctionDeclaration)
	require.True(t, ok)
	assert.Equal(t, "f", arena.Get(fn.Ref).Name)
}

func TestParseRecognisesNamedImport(t *testing.T) {
	mock := fs.MockFS(nil)
	host := jshost.NewHost(mock)
	arena := scope.NewArena("a.js")

	prog, err := host.Parse(context.Background(), "a.js", "import { helper as h } from './util'\n", arena)
	require.NoError(t, err)
	require.Len(t, prog.Body, 1)

	imp, ok := prog.Body[0].(*bast.ImportDeclaration)
	require.True(t, ok)
	require.Len(t, imp.Specifiers, 1)
	assert.Equal(t, "./util", imp.Source)
	assert.Equal(t, "helper", imp.Specifiers[0].ImportedName)
	assert.Equal(t, "h", imp.Specifiers[0].LocalName)
}

func TestParseRecognisesDynamicImportLiteral(t *testing.T) {
	mock := fs.MockFS(nil)
	host := jshost.NewHost(mock)
	arena := scope.NewArena("a.js")

	prog, err := host.Parse(context.Background(), "a.js", "loadLazy(import('./lazy'))\n", arena)
	require.NoError(t, err)
	require.Len(t, prog.Body, 1)

	stmt, ok := prog.Body[0].(*bast.ExpressionStatement)
	require.True(t, ok)
	dyn, ok := stmt.Expression.(*bast.DynamicImport)
	require.True(t, ok)
	assert.Equal(t, "./lazy", dyn.Specifier)
}
