package bast

import (
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/scope"
)

// Identifier reads a binding. Ref is resolved once during the Module's own
// AST-construction bind pass (local lookup) and, if it names an import, is
// followed through the import proxy chain by the Linker's binding pass
// before any Includer pass runs.
type Identifier struct {
	base
	Name string
	Ref  scope.VarRef
}

func (n *Identifier) expr() {}

func (n *Identifier) Include(ctx IncludeContext) bool {
	return ctx.IncludeRef(n.Ref)
}

func (n *Identifier) HasEffects(ts config.Treeshake) bool {
	// Reading a binding has no effect by itself; only a call or a property
	// read on an object with unknown side effects does.
	return false
}

// Literal is a compile-time constant (number, string, boolean, null).
type Literal struct {
	base
	Value interface{}
}

// OpaqueExpression stands in for any expression shape a caller's parser
// didn't decompose further. It tracks no references (Include is a no-op)
// and is conservatively treated as effectful, matching the capability set's
// maximally-conservative default for code tree-shaking can't see into.
type OpaqueExpression struct {
	base
}

func (n *OpaqueExpression) expr() {}

func (n *Literal) expr() {}
func (n *Literal) HasEffects(ts config.Treeshake) bool { return false }
func (n *Literal) GetLiteralValueAtPath(path []string) (interface{}, bool) {
	if len(path) == 0 {
		return n.Value, true
	}
	return nil, false
}

// MemberExpression is `Object.Property` or `Object[Property]` (Computed).
type MemberExpression struct {
	base
	Object     Expression
	Property   string
	Computed   bool
	Optional   bool
}

func (n *MemberExpression) expr() {}

func (n *MemberExpression) Include(ctx IncludeContext) bool {
	return n.Object.Include(ctx)
}

func (n *MemberExpression) HasEffects(ts config.Treeshake) bool {
	if n.Object.HasEffects(ts) {
		return true
	}
	if ts.PropertyReadSideEffects {
		// Reading an unknown property is conservatively assumed to call a
		// getter unless we can prove the value at this path is a plain
		// literal (handled by GetLiteralValueAtPath callers upstream).
		return true
	}
	return false
}

func (n *MemberExpression) GetLiteralValueAtPath(path []string) (interface{}, bool) {
	return n.Object.GetLiteralValueAtPath(append([]string{n.Property}, path...))
}

func (n *MemberExpression) DeoptimizePath(path []string) {
	n.Object.DeoptimizePath(append([]string{n.Property}, path...))
}

// CallExpression is a function or method call. Pure records whether a
// "/* @__PURE__ */"-style annotation preceded it in source.
type CallExpression struct {
	base
	Callee Expression
	Args   []Expression
	Pure   bool
}

func (n *CallExpression) expr() {}

func (n *CallExpression) Include(ctx IncludeContext) bool {
	changed := n.Callee.Include(ctx)
	for _, a := range n.Args {
		if a.Include(ctx) {
			changed = true
		}
	}
	return changed
}

func (n *CallExpression) HasEffects(ts config.Treeshake) bool {
	if ts.Annotations && n.Pure {
		for _, a := range n.Args {
			if a.HasEffects(ts) {
				return true
			}
		}
		return false
	}
	return true
}

// FunctionExpression is an inline function value, e.g. the
// initializer of a const binding. Its body is only walked for effects when
// the function is actually called somewhere included; at the declaration
// site itself a function expression has no effects.
type FunctionExpression struct {
	base
	Params []string
	Body   []Statement
}

func (n *FunctionExpression) expr()                              {}
func (n *FunctionExpression) HasEffects(config.Treeshake) bool    { return false }
func (n *FunctionExpression) Include(ctx IncludeContext) bool {
	changed := false
	for _, s := range n.Body {
		if s.Include(ctx) {
			changed = true
		}
	}
	return changed
}

// VariableDeclarator is one `name = init` binding inside a VariableDeclaration.
type VariableDeclarator struct {
	base
	Name string
	Ref  scope.VarRef
	Init Expression // nil if uninitialized
}

func (n *VariableDeclarator) stmt() {}

func (n *VariableDeclarator) Include(ctx IncludeContext) bool {
	changed := ctx.IncludeRef(n.Ref)
	if n.Init != nil && n.Init.Include(ctx) {
		changed = true
	}
	return changed
}

func (n *VariableDeclarator) HasEffects(ts config.Treeshake) bool {
	return n.Init != nil && n.Init.HasEffects(ts)
}

// VariableDeclaration is `const|let|var a = 1, b = 2;`.
type VariableDeclaration struct {
	base
	Kind         string // "const" | "let" | "var"
	Declarators  []*VariableDeclarator
}

func (n *VariableDeclaration) stmt() {}

func (n *VariableDeclaration) Include(ctx IncludeContext) bool {
	changed := false
	for _, d := range n.Declarators {
		if d.Include(ctx) {
			changed = true
		}
	}
	return changed
}

func (n *VariableDeclaration) HasEffects(ts config.Treeshake) bool {
	for _, d := range n.Declarators {
		if d.HasEffects(ts) {
			return true
		}
	}
	return false
}

// FunctionDeclaration is a named top-level function declaration.
type FunctionDeclaration struct {
	base
	Name   string
	Ref    scope.VarRef
	Params []string
	Body   []Statement
}

func (n *FunctionDeclaration) stmt() {}

func (n *FunctionDeclaration) Include(ctx IncludeContext) bool {
	changed := ctx.IncludeRef(n.Ref)
	// A function declaration's own inclusion does not require walking its
	// body for *more* inclusion at declaration time; the body is walked when
	// something proves the function is actually called. Conservatively
	// (matching the teacher's handling of unknown call targets) we include
	// the body as soon as the function binding itself is included, since a
	// called-but-never-proven-pure function must keep its implementation.
	for _, s := range n.Body {
		if s.Include(ctx) {
			changed = true
		}
	}
	return changed
}

func (n *FunctionDeclaration) HasEffects(ts config.Treeshake) bool { return false }

// ClassDeclaration is a named top-level class declaration.
type ClassDeclaration struct {
	base
	Name string
	Ref  scope.VarRef
}

func (n *ClassDeclaration) stmt() {}

func (n *ClassDeclaration) Include(ctx IncludeContext) bool {
	return ctx.IncludeRef(n.Ref)
}

func (n *ClassDeclaration) HasEffects(ts config.Treeshake) bool { return false }

// ExpressionStatement wraps a bare expression used for its side effects,
// e.g. a top-level `foo();`.
type ExpressionStatement struct {
	base
	Expression Expression
}

func (n *ExpressionStatement) stmt() {}

func (n *ExpressionStatement) Include(ctx IncludeContext) bool {
	return n.Expression.Include(ctx)
}

func (n *ExpressionStatement) HasEffects(ts config.Treeshake) bool {
	return n.Expression.HasEffects(ts)
}

// ImportSpecifier is one named binding of an ImportDeclaration. LocalRef is
// the proxy Variable declared in the importing module's arena; ImportedName
// is "*" for a namespace import or "default" for the default export.
type ImportSpecifier struct {
	Loc          logger.Loc
	LocalName    string
	LocalRef     scope.VarRef
	ImportedName string
}

// ImportDeclaration is `import {a, b as c} from './x'` or `import x from
// './x'` or `import * as ns from './x'`.
type ImportDeclaration struct {
	base
	Source      string
	Specifiers  []ImportSpecifier
}

func (n *ImportDeclaration) stmt() {}

// An import declaration is never itself a reason to include anything; the
// Includer only includes the specific proxy Variables that get read
// elsewhere, per spec.md section 4.4.
func (n *ImportDeclaration) HasEffects(ts config.Treeshake) bool { return false }

// DynamicImport is `import('./x')` used as an expression. Specifier holds
// the literal string when parse() could statically determine it; if the
// argument is a computed expression the Loader can't statically analyze,
// Specifier is empty and Unresolved holds the original expression for
// side-effect purposes only.
type DynamicImport struct {
	base
	Specifier  string
	Unresolved Expression
}

func (n *DynamicImport) expr() {}

func (n *DynamicImport) HasEffects(ts config.Treeshake) bool {
	// A dynamic import always has an effect: it triggers execution of the
	// imported module's top-level side effects at runtime.
	return true
}

// ExportSpecifier is one `{local as exported}` entry of an
// ExportNamedDeclaration, or of a re-export when Source is set on the parent.
type ExportSpecifier struct {
	Loc          logger.Loc
	LocalName    string
	ExportedName string
}

// ExportNamedDeclaration is `export {a, b as c}`, `export {a} from './x'`, or
// `export const x = 1` (Declaration set, Specifiers empty).
type ExportNamedDeclaration struct {
	base
	Specifiers  []ExportSpecifier
	Source      string // re-export source, empty if these are local names
	Declaration Statement // non-nil for `export const x = ...` / `export function f(){}`
}

func (n *ExportNamedDeclaration) stmt() {}

func (n *ExportNamedDeclaration) Include(ctx IncludeContext) bool {
	if n.Declaration != nil {
		return n.Declaration.Include(ctx)
	}
	return false
}

func (n *ExportNamedDeclaration) HasEffects(ts config.Treeshake) bool {
	if n.Declaration != nil {
		return n.Declaration.HasEffects(ts)
	}
	return false
}

// ExportAllDeclaration is `export * from './x'` or `export * as ns from './x'`.
type ExportAllDeclaration struct {
	base
	Source   string
	Exported string // empty for a bare `export *`
}

func (n *ExportAllDeclaration) stmt()                              {}
func (n *ExportAllDeclaration) HasEffects(config.Treeshake) bool   { return false }

// ExportDefaultDeclaration is `export default <expr|function|class>`.
type ExportDefaultDeclaration struct {
	base
	Ref        scope.VarRef
	Expression Expression // set when the default export is an expression
	Declared   Statement  // set when it's a named function/class declaration
}

func (n *ExportDefaultDeclaration) stmt() {}

func (n *ExportDefaultDeclaration) Include(ctx IncludeContext) bool {
	changed := ctx.IncludeRef(n.Ref)
	if n.Expression != nil && n.Expression.Include(ctx) {
		changed = true
	}
	if n.Declared != nil && n.Declared.Include(ctx) {
		changed = true
	}
	return changed
}

func (n *ExportDefaultDeclaration) HasEffects(ts config.Treeshake) bool {
	if n.Expression != nil {
		return n.Expression.HasEffects(ts)
	}
	if n.Declared != nil {
		return n.Declared.HasEffects(ts)
	}
	return false
}
