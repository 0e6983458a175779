package module

import (
	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/scope"
)

// StarExportSource is one `export * from './x'` or `export * as ns from
// './x'` declaration. Resolution of which names this actually re-exports is
// deferred to the Linker, since it depends on the producing module's own
// (possibly also star-exported) export table.
type StarExportSource struct {
	Source   string
	Exported string // alias for `export * as ns`, empty for a bare `export *`
}

// Build attaches a parsed AST to a freshly-constructed Module and extracts
// its import/export bookkeeping (spec.md section 4.2 step 3: "construct
// Module records"). The AST is expected to already carry resolved local
// scope.VarRef values on every Identifier/Declarator/ImportSpecifier,
// exactly as a real parser's own scope-resolution pass would hand back --
// parse() is external per spec.md section 1, so this function only extracts
// the top-level import/export shape, it never performs scope resolution
// itself.
func (m *Module) Build(ast *bast.Program) {
	m.AST = ast
	seenSource := map[string]bool{}

	addSource := func(src string) {
		if !seenSource[src] {
			seenSource[src] = true
			m.Sources = append(m.Sources, src)
		}
	}

	declareAt := func(ref scope.VarRef, stmtIndex int) {
		v := m.Arena.Get(ref)
		v.DeclStmtIndices = append(v.DeclStmtIndices, stmtIndex)
	}

	for i, stmt := range ast.Body {
		switch n := stmt.(type) {
		case *bast.ImportDeclaration:
			addSource(n.Source)
			for _, spec := range n.Specifiers {
				m.ImportDescriptions[spec.LocalName] = ImportDescription{
					Source:       n.Source,
					ExportedName: spec.ImportedName,
					LocalRef:     spec.LocalRef,
					Loc:          spec.Loc,
				}
				declareAt(spec.LocalRef, i)
			}

		case *bast.ExportNamedDeclaration:
			if n.Source != "" {
				addSource(n.Source)
				for _, spec := range n.Specifiers {
					m.ExportDescriptions[spec.ExportedName] = ExportDescription{
						ReExportSource: n.Source,
						ReExportedName: spec.LocalName,
						Loc:            spec.Loc,
					}
				}
			} else if n.Declaration != nil {
				for _, d := range declaredRefs(n.Declaration) {
					m.ExportDescriptions[d.name] = ExportDescription{LocalRef: d.ref}
					declareAt(d.ref, i)
				}
			} else {
				for _, spec := range n.Specifiers {
					if ref, ok := m.Arena.Lookup(m.Arena.ModuleScope(), spec.LocalName); ok {
						m.ExportDescriptions[spec.ExportedName] = ExportDescription{LocalRef: ref, Loc: spec.Loc}
					}
				}
			}

		case *bast.ExportAllDeclaration:
			addSource(n.Source)
			m.StarExports = append(m.StarExports, StarExportSource{Source: n.Source, Exported: n.Exported})

		case *bast.ExportDefaultDeclaration:
			m.ExportDescriptions["default"] = ExportDescription{LocalRef: n.Ref}
			if n.Ref.IsValid() {
				declareAt(n.Ref, i)
			}
			if n.Declared != nil {
				for _, d := range declaredRefs(n.Declared) {
					declareAt(d.ref, i)
				}
			}

		default:
			for _, d := range declaredRefs(stmt) {
				declareAt(d.ref, i)
			}
		}

		for _, site := range collectDynamicImports(stmt) {
			m.DynamicImports = append(m.DynamicImports, site)
		}
	}
}

type declaredRef struct {
	name string
	ref  scope.VarRef
}

// declaredRefs extracts the (name, VarRef) pairs a top-level declaration
// statement introduces, used to auto-export `export const x = 1` /
// `export function f(){}` / `export class C {}` forms.
func declaredRefs(stmt bast.Statement) []declaredRef {
	switch n := stmt.(type) {
	case *bast.VariableDeclaration:
		out := make([]declaredRef, 0, len(n.Declarators))
		for _, d := range n.Declarators {
			out = append(out, declaredRef{d.Name, d.Ref})
		}
		return out
	case *bast.FunctionDeclaration:
		return []declaredRef{{n.Name, n.Ref}}
	case *bast.ClassDeclaration:
		return []declaredRef{{n.Name, n.Ref}}
	}
	return nil
}
