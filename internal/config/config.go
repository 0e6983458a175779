// Package config holds the options the build graph engine recognises. It is
// deliberately a flat, serializable value: the orchestrator's only write to it
// is graph.Build's per-call InlineDynamicImports override, which it restores
// before returning, so it can be captured once by the caller and reused
// across builds that only touch the plugin cache.
package config

import "github.com/jsbuild/bundlecore/internal/logger"

// PreserveSignature controls how aggressively an entry module's public
// export surface must be kept intact by the chunker.
type PreserveSignature uint8

const (
	// PreserveSignatureNone allows the chunker to drop unused exports of an
	// entry module same as any other module.
	PreserveSignatureNone PreserveSignature = iota
	// PreserveSignatureStrict requires every export of the entry to survive,
	// synthesizing a facade chunk if necessary.
	PreserveSignatureStrict
	// PreserveSignatureAllowExtension is like strict but tolerates the host
	// chunk exposing additional names beyond the entry's own surface.
	PreserveSignatureAllowExtension
)

// ModuleSideEffects is the three-state default liveness policy for a
// module's top-level statements when the tree-shaker can't otherwise prove
// them dead.
type ModuleSideEffects uint8

const (
	ModuleSideEffectsTrue ModuleSideEffects = iota
	ModuleSideEffectsFalse
	ModuleSideEffectsNoExternal
)

// Treeshake groups every option that tunes the Includer's conservativeness.
// The zero value has tree-shaking disabled (Enabled is false);
// DefaultTreeshake returns the enabled, conservative defaults.
type Treeshake struct {
	Enabled bool

	// Annotations honours pure-call annotations found in source comments
	// (e.g. the "/* @__PURE__ */" convention) when deciding if a call
	// expression has observable side effects.
	Annotations bool

	// ModuleSideEffects is the default liveness of a module's top-level
	// statements unless overridden per module by the loader.
	ModuleSideEffects ModuleSideEffects

	PropertyReadSideEffects  bool
	TryCatchDeoptimization   bool
	UnknownGlobalSideEffects bool
}

// DefaultTreeshake matches the teacher's conservative defaults: everything
// that could possibly have a side effect is assumed to.
func DefaultTreeshake() Treeshake {
	return Treeshake{
		Enabled:                  true,
		Annotations:              true,
		ModuleSideEffects:        ModuleSideEffectsTrue,
		PropertyReadSideEffects:  true,
		TryCatchDeoptimization:   true,
		UnknownGlobalSideEffects: true,
	}
}

// ExternalFn classifies a specifier as external. The isResolved flag mirrors
// the teacher's "external" predicate signature: plugins get to see whether
// the id has already been run through resolve().
type ExternalFn func(id string, importer string, isResolved bool) bool

// ModuleContextFn resolves a module's top-level "this" value; nil means use
// Options.Context for every module.
type ModuleContextFn func(id string) (value string, ok bool)

// CacheOptions is the persisted state shape of spec.md section 6.
type CacheOptions struct {
	Enabled bool
	Modules []SerializedModule

	// Plugins is the per-plugin key/value store: pluginName -> key -> entry.
	Plugins map[string]map[string]CacheEntry
}

// CacheEntry mirrors the {counter, value} pair of the spec's cache shape.
type CacheEntry struct {
	Counter int
	Value   interface{}
}

// SerializedModule is the stable, implementation-private schema persisted by
// cacheSnapshot() and reloaded by a subsequent build.
type SerializedModule struct {
	ID                string
	Dependencies      []string
	Source            string
	ASTSummary        string
	Reassigned        map[string]bool
	ModuleSideEffects bool
}

// Options enumerates every configuration value the core recognises, per
// spec.md section 6.
type Options struct {
	Input map[string]string // output name -> entry id; ordered separately, see InputOrder

	// InputOrder preserves entry declaration order, since map iteration order
	// in Go is randomized and the spec requires deterministic tie-breaks on
	// entry declaration order (spec.md section 5).
	InputOrder []string

	External        ExternalFn
	Context         string
	ModuleContext   ModuleContextFn

	PreserveSymlinks        bool
	PreserveModules         bool
	PreserveEntrySignatures PreserveSignature
	ShimMissingExports      bool
	InlineDynamicImports    bool

	Treeshake Treeshake

	Cache                   CacheOptions
	ExperimentalCacheExpiry int

	StrictDeprecations bool

	OnWarn func(logger.Msg)

	// ModuleSideEffectsDefault is the Loader's default policy (spec.md
	// section 4.2) before any per-module override from the load hook.
	ModuleSideEffectsDefault ModuleSideEffects

	// Acorn/AcornInjectPlugins are opaque passthrough to the external parser;
	// the core never inspects them.
	Acorn              interface{}
	AcornInjectPlugins []interface{}
}

// ManualChunkGroups maps a chunk name to either a list of seed module ids or
// a classification function invoked per module, per spec.md section 4.5.
type ManualChunkGroups struct {
	ByName map[string][]string

	// Names preserves declaration order of ByName's keys, the same way
	// Options.InputOrder preserves Input's -- Go map iteration order is
	// randomized, but the "first declaration wins" conflict rule (spec.md
	// section 4.5) needs a real order to apply.
	Names []string

	Fn func(id string) (chunkName string, ok bool)
}
