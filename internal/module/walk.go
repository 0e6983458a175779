package module

import "github.com/jsbuild/bundlecore/internal/bast"

// collectDynamicImports walks stmt looking for bast.DynamicImport expression
// nodes (spec.md section 3: "a set of dynamic import sites, each holding
// either a resolved target or an unresolved expression"). It only recurses
// through the composite node shapes this package's bast nodes define; it is
// intentionally not a general-purpose AST visitor since the AST shape itself
// is a stand-in for whatever a real parser's grammar produces.
func collectDynamicImports(n bast.Node) []DynamicImportSite {
	var out []DynamicImportSite
	var visitExpr func(bast.Expression)
	var visitStmt func(bast.Statement)

	visitExpr = func(e bast.Expression) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *bast.DynamicImport:
			out = append(out, DynamicImportSite{Specifier: v.Specifier, Expr: v.Unresolved, Loc: v.Loc()})
			visitExpr(v.Unresolved)
		case *bast.CallExpression:
			visitExpr(v.Callee)
			for _, a := range v.Args {
				visitExpr(a)
			}
		case *bast.MemberExpression:
			visitExpr(v.Object)
		case *bast.FunctionExpression:
			for _, s := range v.Body {
				visitStmt(s)
			}
		}
	}

	visitStmt = func(s bast.Statement) {
		if s == nil {
			return
		}
		switch v := s.(type) {
		case *bast.ExpressionStatement:
			visitExpr(v.Expression)
		case *bast.VariableDeclaration:
			for _, d := range v.Declarators {
				visitExpr(d.Init)
			}
		case *bast.FunctionDeclaration:
			for _, s := range v.Body {
				visitStmt(s)
			}
		case *bast.ExportDefaultDeclaration:
			visitExpr(v.Expression)
			visitStmt(v.Declared)
		case *bast.ExportNamedDeclaration:
			visitStmt(v.Declaration)
		}
	}

	switch v := n.(type) {
	case bast.Statement:
		visitStmt(v)
	case bast.Expression:
		visitExpr(v)
	}
	return out
}
