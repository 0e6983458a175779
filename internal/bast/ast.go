// Package bast ("bundle AST") is the tagged-variant AST the Includer and
// binder walk. spec.md treats parse(text) -> AST as an external black-box
// function; this package defines the *shape* the black box is expected to
// hand back, generalized away from any one concrete JS grammar the way
// spec.md section 9 asks for: "Model as a tagged variant per syntactic
// category with a shared capability set ... Do not rely on inheritance;
// dispatch is on the tag."
package bast

import (
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/jsbuild/bundlecore/internal/scope"
)

// IncludeContext is implemented by the Includer. Nodes call back into it
// instead of importing the includer package directly, which would create an
// import cycle (includer walks bast trees; bast nodes need to ask the
// includer to mark variables and statements live).
type IncludeContext interface {
	Treeshake() config.Treeshake
	// IncludeRef marks the Variable behind ref (resolving through any import
	// proxy chain) as included, and transitively includes whatever
	// statements declare it. Returns true if this newly included something.
	IncludeRef(ref scope.VarRef) bool
	NeedAnotherPass()
}

// Node is the shared capability set every AST node implements, per spec.md
// section 9.
type Node interface {
	Loc() logger.Loc

	// Include requests inclusion of whatever this node structurally depends
	// on and returns true if doing so newly included anything.
	Include(ctx IncludeContext) bool

	// HasEffects reports whether evaluating this node may have an observable
	// side effect under the given tree-shaking conservativeness settings.
	HasEffects(ts config.Treeshake) bool

	// GetLiteralValueAtPath attempts to resolve a compile-time-constant value
	// reachable by indexing into this node's value with path (e.g. member
	// access chains). The Includer does not call it.
	GetLiteralValueAtPath(path []string) (value interface{}, ok bool)

	// DeoptimizePath marks that path (relative to this node's value) can no
	// longer be assumed to have a known literal value, because some
	// statement may have mutated it.
	DeoptimizePath(path []string)
}

// Statement is any node that can appear directly in a Program or block body.
type Statement interface {
	Node
	// stmt is unexported so only this package's concrete types satisfy it,
	// keeping Statement and Expression disjoint even though both embed Node.
	stmt()
}

// Expression is any node that produces a value.
type Expression interface {
	Node
	expr()
}

// base is embedded by every concrete node and supplies default, maximally
// conservative implementations of the capability set so each concrete type
// only needs to override what it actually changes.
type base struct {
	loc logger.Loc
}

func (b *base) Loc() logger.Loc { return b.loc }

func (b *base) Include(ctx IncludeContext) bool { return false }

func (b *base) HasEffects(ts config.Treeshake) bool { return true }

func (b *base) GetLiteralValueAtPath(path []string) (interface{}, bool) { return nil, false }

func (b *base) DeoptimizePath(path []string) {}

// Program is the root of a parsed module's AST: an ordered sequence of
// top-level statements (spec.md section 3, Module.AST).
type Program struct {
	Body []Statement
}
