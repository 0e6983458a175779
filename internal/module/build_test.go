package module_test

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRecordsDeclStmtIndicesForPlainDeclaration(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)
	ref := m.DeclareLocal("x")

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.VariableDeclaration{Declarators: []*bast.VariableDeclarator{{Name: "x", Ref: ref}}},
	}})

	v := m.Arena.Get(ref)
	assert.Equal(t, []int{0}, v.DeclStmtIndices)
}

func TestBuildRecordsDeclStmtIndicesForExportedDeclaration(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)
	ref := m.DeclareLocal("f")

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExportNamedDeclaration{Declaration: &bast.FunctionDeclaration{Name: "f", Ref: ref}},
	}})

	v := m.Arena.Get(ref)
	assert.Equal(t, []int{0}, v.DeclStmtIndices)
	assert.Equal(t, ref, m.ExportDescriptions["f"].LocalRef)
}

func TestBuildRecordsDeclStmtIndicesForImportSpecifier(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)
	ref := m.DeclareImportProxy("x")

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./b.js", Specifiers: []bast.ImportSpecifier{
			{LocalName: "x", ImportedName: "x", LocalRef: ref},
		}},
	}})

	v := m.Arena.Get(ref)
	assert.Equal(t, []int{0}, v.DeclStmtIndices)
	assert.Equal(t, "./b.js", m.ImportDescriptions["x"].Source)
}

func TestBuildRecordsDeclStmtIndicesForExportDefaultExpression(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)
	ref := m.DeclareExportDefault("default")

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExportDefaultDeclaration{Ref: ref, Expression: &bast.Literal{Value: 1.0}},
	}})

	v := m.Arena.Get(ref)
	assert.Equal(t, []int{0}, v.DeclStmtIndices)
}

func TestBuildRecordsDeclStmtIndicesForExportDefaultDeclaration(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)
	ref := m.DeclareLocal("C")

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExportDefaultDeclaration{Declared: &bast.ClassDeclaration{Name: "C", Ref: ref}},
	}})

	v := m.Arena.Get(ref)
	require.Len(t, v.DeclStmtIndices, 1)
	assert.Equal(t, 0, v.DeclStmtIndices[0])
}

func TestBuildCollectsDynamicImportSites(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.ExpressionStatement{Expression: &bast.DynamicImport{Specifier: "./lazy.js"}},
	}})

	require.Len(t, m.DynamicImports, 1)
	assert.Equal(t, "./lazy.js", m.DynamicImports[0].Specifier)
}

func TestBuildTracksSourcesInASTOrder(t *testing.T) {
	m := module.New("a.js", true, config.PreserveSignatureNone)
	refA := m.DeclareImportProxy("a")
	refB := m.DeclareImportProxy("b")

	m.Build(&bast.Program{Body: []bast.Statement{
		&bast.ImportDeclaration{Source: "./b.js", Specifiers: []bast.ImportSpecifier{{LocalName: "b", ImportedName: "b", LocalRef: refB}}},
		&bast.ImportDeclaration{Source: "./a.js", Specifiers: []bast.ImportSpecifier{{LocalName: "a", ImportedName: "a", LocalRef: refA}}},
	}})

	assert.Equal(t, []string{"./b.js", "./a.js"}, m.Sources)
}
