// Command bundle is a thin driver over the build-graph engine: it wires
// internal/jshost's filesystem-backed resolve/load/parse into
// internal/graph.Graph and prints the resulting chunks.
//
// Grounded on the teacher's cmd/esbuild/main.go argument scan (a manual walk
// over os.Args rather than the stdlib flag package, matching its style since
// nothing in this pack pulls in a third-party CLI parsing library), trimmed
// to the handful of flags this core actually recognises.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/jsbuild/bundlecore/internal/fs"
	"github.com/jsbuild/bundlecore/internal/graph"
	"github.com/jsbuild/bundlecore/internal/jshost"
	"github.com/jsbuild/bundlecore/internal/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const helpText = `
Usage:
  bundle [options] [entry points]

Options:
  --outdir=...             Accepted and ignored; chunks are always printed to stdout
  --external:M              Exclude module M from the graph
  --inline-dynamic          Emit a single chunk holding every included module
  --preserve-modules        Emit one chunk per included module
  --preserve-entry-signatures  Keep every entry export alive via a facade if needed
  --manual-chunk:name=a,b   Force modules a and b into a chunk named "name"
  --no-treeshake            Disable tree-shaking (spec.md section 4.4)
  --cache-expiry=N          Evict a plugin cache entry after N reads
  --help                    Print this message
`

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "bundle: warning: could not read .env: %v\n", err)
	}

	entries, opts, manualChunks, inlineDynamic, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if entries.Order == nil {
		fmt.Print(helpText)
		os.Exit(1)
	}

	zl, err := logger.DefaultZapLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bundle: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()

	log := logger.NewZapLog(zl, uuid.NewString())
	host := jshost.NewHost(fs.RealFS())
	if opts.External != nil {
		wrapped := host.External
		host.External = func(specifier string) bool {
			return wrapped(specifier) || opts.External(specifier, "", false)
		}
	}

	g := graph.New(host.Loader(), opts, log)

	chunks, err := g.Build(context.Background(), entries, manualChunks, inlineDynamic)
	if log.HasErrors() || err != nil {
		if err != nil {
			fmt.Fprintf(os.Stderr, "bundle: build failed: %v\n", err)
		}
		os.Exit(1)
	}

	for _, chunk := range chunks {
		fmt.Printf("chunk %s (entry=%v facade=%v):\n", chunk.Name, chunk.IsEntryPoint, chunk.IsFacade)
		for _, m := range chunk.Modules {
			fmt.Printf("  %s\n", m.ID)
		}
	}
}

func parseArgs(args []string) (graph.EntrySpec, *config.Options, config.ManualChunkGroups, bool, error) {
	opts := &config.Options{
		Treeshake:                config.DefaultTreeshake(),
		ModuleSideEffectsDefault: config.ModuleSideEffectsTrue,
		ExperimentalCacheExpiry:  cacheExpiryFromEnv(),
	}
	manualChunks := config.ManualChunkGroups{ByName: map[string][]string{}}
	inlineDynamic := false
	external := map[string]bool{}

	var specifiers []string

	for _, arg := range args {
		switch {
		case arg == "--help" || arg == "-h":
			return graph.EntrySpec{}, nil, config.ManualChunkGroups{}, false, nil

		case arg == "--inline-dynamic":
			inlineDynamic = true

		case arg == "--preserve-modules":
			opts.PreserveModules = true

		case arg == "--preserve-entry-signatures":
			opts.PreserveEntrySignatures = config.PreserveSignatureStrict

		case arg == "--no-treeshake":
			opts.Treeshake.Enabled = false

		case strings.HasPrefix(arg, "--cache-expiry="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "--cache-expiry="))
			if err != nil {
				return graph.EntrySpec{}, nil, config.ManualChunkGroups{}, false, fmt.Errorf("bundle: invalid --cache-expiry: %w", err)
			}
			opts.ExperimentalCacheExpiry = n

		case strings.HasPrefix(arg, "--external:"):
			external[strings.TrimPrefix(arg, "--external:")] = true

		case strings.HasPrefix(arg, "--manual-chunk:"):
			rest := strings.TrimPrefix(arg, "--manual-chunk:")
			nameAndSeeds := strings.SplitN(rest, "=", 2)
			if len(nameAndSeeds) != 2 {
				return graph.EntrySpec{}, nil, config.ManualChunkGroups{}, false, fmt.Errorf("bundle: invalid --manual-chunk:%s", rest)
			}
			name, seeds := nameAndSeeds[0], strings.Split(nameAndSeeds[1], ",")
			if _, exists := manualChunks.ByName[name]; !exists {
				manualChunks.Names = append(manualChunks.Names, name)
			}
			manualChunks.ByName[name] = append(manualChunks.ByName[name], seeds...)

		case strings.HasPrefix(arg, "--outdir="):
			// Accepted for command-line parity with the teacher; this driver
			// prints chunks to stdout instead of writing files.

		case strings.HasPrefix(arg, "-"):
			return graph.EntrySpec{}, nil, config.ManualChunkGroups{}, false, fmt.Errorf("bundle: unknown flag %q", arg)

		default:
			specifiers = append(specifiers, arg)
		}
	}

	if len(external) > 0 {
		opts.External = func(id string, importer string, isResolved bool) bool {
			return external[id]
		}
	}

	if len(specifiers) == 0 {
		return graph.EntrySpec{}, nil, config.ManualChunkGroups{}, false, nil
	}

	return graph.NewEntriesFromNames(specifiers...), opts, manualChunks, inlineDynamic, nil
}

func cacheExpiryFromEnv() int {
	n, err := strconv.Atoi(os.Getenv("BUNDLECORE_CACHE_EXPIRY"))
	if err != nil {
		return 0
	}
	return n
}
