// Package jshost is a minimal reference implementation of spec.md section
// 1's external resolve/load/parse collaborators, backed by an fs.FS (the
// real filesystem or an in-memory mock). spec.md treats these as black boxes a real bundler plugs in
// (Acorn for parse, node's own resolution algorithm for resolve); this
// package exists only so cmd/bundle has something concrete to drive the
// engine with, not as a production JavaScript front end. Its parser
// recognises a deliberately small, single-line subset of ES module syntax
// (import/export declarations, top-level var/let/const/function/class
// declarations, and `import(...)` call sites) -- good enough to exercise
// every Loader/Linker/Includer/Chunker code path, not a substitute for a
// real grammar.
package jshost

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/jsbuild/bundlecore/internal/bast"
	"github.com/jsbuild/bundlecore/internal/fs"
	"github.com/jsbuild/bundlecore/internal/loader"
	"github.com/jsbuild/bundlecore/internal/scope"
)

// Host wires fs.FS-backed resolve/load with the toy Parse below into a
// loader.Host, the way cmd/bundle constructs the engine's external
// collaborators.
type Host struct {
	FS       fs.FS
	External func(specifier string) bool
}

// NewHost builds a Host over fsys, treating any specifier
// that doesn't start with "." or "/" as external (bare package specifiers --
// spec.md section 1's default external policy before a plugin overrides it).
func NewHost(fsys fs.FS) *Host {
	return &Host{FS: fsys, External: defaultExternal}
}

func defaultExternal(specifier string) bool {
	return !strings.HasPrefix(specifier, ".") && !strings.HasPrefix(specifier, "/")
}

func (h *Host) Loader() loader.Host {
	return loader.Host{Resolve: h.Resolve, Load: h.Load, Parse: h.Parse}
}

// Resolve implements loader.ResolveFn: bare specifiers are external; absolute
// specifiers are used as given and relative specifiers are resolved against
// the importer's directory, in both cases trying the
// specifier as given, with a ".js" suffix, and as a directory's "index.js".
func (h *Host) Resolve(ctx context.Context, specifier string, importer string) (string, bool, error) {
	if h.External(specifier) {
		return specifier, true, nil
	}

	dir := "."
	if importer != "" {
		dir = h.FS.Dir(importer)
	}
	base := h.FS.Join(dir, specifier)
	if strings.HasPrefix(specifier, "/") {
		base = specifier
	}

	for _, candidate := range candidates(base) {
		if _, ok := h.FS.ReadFile(candidate); ok {
			if abs, ok := h.FS.Abs(candidate); ok {
				return abs, false, nil
			}
			return candidate, false, nil
		}
	}
	return "", false, fmt.Errorf("jshost: cannot resolve %q from %q", specifier, importer)
}

func candidates(base string) []string {
	if path.Ext(base) != "" {
		return []string{base}
	}
	return []string{base + ".js", path.Join(base, "index.js")}
}

// Load implements loader.LoadFn by reading the resolved id straight off the
// filesystem; nothing in this reference host overrides moduleSideEffects
// per module (spec.md section 4.2's load hook override is left to a real
// plugin).
func (h *Host) Load(ctx context.Context, id string) (loader.LoadResult, error) {
	text, ok := h.FS.ReadFile(id)
	if !ok {
		return loader.LoadResult{}, fmt.Errorf("jshost: cannot read %q", id)
	}
	return loader.LoadResult{Text: text}, nil
}

var (
	reImportNamed     = regexp.MustCompile(`^\s*import\s*\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	reImportNamespace = regexp.MustCompile(`^\s*import\s*\*\s*as\s+([A-Za-z_$][\w$]*)\s*from\s*['"]([^'"]+)['"]`)
	reImportDefault   = regexp.MustCompile(`^\s*import\s+([A-Za-z_$][\w$]*)\s*from\s*['"]([^'"]+)['"]`)
	reImportSideEffect = regexp.MustCompile(`^\s*import\s*['"]([^'"]+)['"]`)

	reExportAll   = regexp.MustCompile(`^\s*export\s*\*\s*(?:as\s+([A-Za-z_$][\w$]*)\s+)?from\s*['"]([^'"]+)['"]`)
	reExportNamed = regexp.MustCompile(`^\s*export\s*\{([^}]*)\}\s*(?:from\s*['"]([^'"]+)['"])?`)
	reExportDecl  = regexp.MustCompile(`^\s*export\s+(const|let|var)\s+([A-Za-z_$][\w$]*)`)
	reExportFunc  = regexp.MustCompile(`^\s*export\s+function\s+([A-Za-z_$][\w$]*)`)
	reExportClass = regexp.MustCompile(`^\s*export\s+class\s+([A-Za-z_$][\w$]*)`)
	reExportDefault = regexp.MustCompile(`^\s*export\s+default\s+(.*)$`)

	reVarDecl   = regexp.MustCompile(`^\s*(?:const|let|var)\s+([A-Za-z_$][\w$]*)`)
	reFuncDecl  = regexp.MustCompile(`^\s*function\s+([A-Za-z_$][\w$]*)`)
	reClassDecl = regexp.MustCompile(`^\s*class\s+([A-Za-z_$][\w$]*)`)

	reDynamicImportLiteral = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
	reDynamicImportAny     = regexp.MustCompile(`import\(`)
)

// Parse implements loader.ParseFn. It scans text one line at a time,
// declaring every top-level binding it recognises into arena (per
// loader.ParseFn's doc comment) before building the corresponding bast
// node, and falls back to an opaque, conservatively-effectful statement for
// anything it doesn't recognise.
func (h *Host) Parse(ctx context.Context, id string, text string, arena *scope.Arena) (*bast.Program, error) {
	prog := &bast.Program{}
	moduleScope := arena.ModuleScope()

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		prog.Body = append(prog.Body, parseLine(line, arena, moduleScope))
	}
	return prog, nil
}

func parseLine(line string, arena *scope.Arena, moduleScope uint32) bast.Statement {
	switch {
	case reImportNamed.MatchString(line):
		m := reImportNamed.FindStringSubmatch(line)
		specs := importSpecifiers(m[1], arena, moduleScope)
		return &bast.ImportDeclaration{Source: m[2], Specifiers: specs}

	case reImportNamespace.MatchString(line):
		m := reImportNamespace.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.ImportDeclaration{Source: m[2], Specifiers: []bast.ImportSpecifier{
			{LocalName: m[1], ImportedName: "*", LocalRef: ref},
		}}

	case reImportDefault.MatchString(line):
		m := reImportDefault.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.ImportDeclaration{Source: m[2], Specifiers: []bast.ImportSpecifier{
			{LocalName: m[1], ImportedName: "default", LocalRef: ref},
		}}

	case reImportSideEffect.MatchString(line):
		m := reImportSideEffect.FindStringSubmatch(line)
		return &bast.ImportDeclaration{Source: m[1]}

	case reExportAll.MatchString(line):
		m := reExportAll.FindStringSubmatch(line)
		return &bast.ExportAllDeclaration{Source: m[2], Exported: m[1]}

	case reExportFunc.MatchString(line):
		m := reExportFunc.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.ExportNamedDeclaration{Declaration: &bast.FunctionDeclaration{Name: m[1], Ref: ref}}

	case reExportClass.MatchString(line):
		m := reExportClass.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.ExportNamedDeclaration{Declaration: &bast.ClassDeclaration{Name: m[1], Ref: ref}}

	case reExportDecl.MatchString(line):
		m := reExportDecl.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[2]})
		return &bast.ExportNamedDeclaration{Declaration: &bast.VariableDeclaration{
			Declarators: []*bast.VariableDeclarator{{Name: m[2], Ref: ref, Init: initExpr(line)}},
		}}

	case reExportDefault.MatchString(line):
		m := reExportDefault.FindStringSubmatch(line)
		if fm := reFuncDecl.FindStringSubmatch(m[1]); fm != nil {
			ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: fm[1]})
			return &bast.ExportDefaultDeclaration{Declared: &bast.FunctionDeclaration{Name: fm[1], Ref: ref}}
		}
		if cm := reClassDecl.FindStringSubmatch(m[1]); cm != nil {
			ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: cm[1]})
			return &bast.ExportDefaultDeclaration{Declared: &bast.ClassDeclaration{Name: cm[1], Ref: ref}}
		}
		return &bast.ExportDefaultDeclaration{Expression: exprFromSnippet(m[1])}

	case reExportNamed.MatchString(line):
		m := reExportNamed.FindStringSubmatch(line)
		return &bast.ExportNamedDeclaration{Specifiers: exportSpecifiers(m[1]), Source: m[2]}

	case reFuncDecl.MatchString(line):
		m := reFuncDecl.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.FunctionDeclaration{Name: m[1], Ref: ref}

	case reClassDecl.MatchString(line):
		m := reClassDecl.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.ClassDeclaration{Name: m[1], Ref: ref}

	case reVarDecl.MatchString(line):
		m := reVarDecl.FindStringSubmatch(line)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: m[1]})
		return &bast.VariableDeclaration{
			Declarators: []*bast.VariableDeclarator{{Name: m[1], Ref: ref, Init: initExpr(line)}},
		}

	default:
		return &bast.ExpressionStatement{Expression: exprFromSnippet(line)}
	}
}

func importSpecifiers(body string, arena *scope.Arena, moduleScope uint32) []bast.ImportSpecifier {
	var specs []bast.ImportSpecifier
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		importedName, localName := splitAlias(part)
		ref := arena.Declare(moduleScope, scope.Variable{Kind: scope.KindLocal, Name: localName})
		specs = append(specs, bast.ImportSpecifier{LocalName: localName, ImportedName: importedName, LocalRef: ref})
	}
	return specs
}

func exportSpecifiers(body string) []bast.ExportSpecifier {
	var specs []bast.ExportSpecifier
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		localName, exportedName := splitAlias(part)
		specs = append(specs, bast.ExportSpecifier{LocalName: localName, ExportedName: exportedName})
	}
	return specs
}

// splitAlias turns "a as b" into ("a", "b"), or "a" into ("a", "a").
func splitAlias(part string) (first, second string) {
	fields := strings.Fields(part)
	if len(fields) == 3 && fields[1] == "as" {
		return fields[0], fields[2]
	}
	return part, part
}

// exprFromSnippet wraps a line's dynamic-import call site (if any) so
// collectDynamicImports can still find it inside an otherwise-opaque
// expression; every other expression shape collapses to OpaqueExpression,
// since this host's parser does not build a real expression tree.
func exprFromSnippet(line string) bast.Expression {
	if m := reDynamicImportLiteral.FindStringSubmatch(line); m != nil {
		return &bast.DynamicImport{Specifier: m[1]}
	}
	if reDynamicImportAny.MatchString(line) {
		return &bast.DynamicImport{Unresolved: &bast.OpaqueExpression{}}
	}
	return &bast.OpaqueExpression{}
}

func initExpr(line string) bast.Expression {
	if idx := strings.IndexByte(line, '='); idx >= 0 {
		return exprFromSnippet(line[idx+1:])
	}
	return nil
}
