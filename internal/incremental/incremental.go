// Package incremental is the demand-driven query engine: given a revision
// of a source file, it runs the lex/parse/block/opaque/loads/validate
// pipeline exactly once per revision, memoizes the result, and collapses
// concurrent requests for the same revision into a single execution
// (spec.md §5 "Incremental computation").
package incremental

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/highwayhash"
	"golang.org/x/sync/singleflight"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/block"
	"github.com/djls-go/djls/internal/diag"
	"github.com/djls-go/djls/internal/lexer"
	"github.com/djls-go/djls/internal/loads"
	"github.com/djls-go/djls/internal/opaque"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
	"github.com/djls-go/djls/internal/validate"
)

// fingerprintKey is a fixed, arbitrary 32-byte HighwayHash key. It need not
// be secret: fingerprints only ever compare equal/unequal within this
// process, never across machines or processes, so a shared constant key is
// safe (spec.md §5 "Durable fingerprinting").
var fingerprintKey = []byte("djls-incremental-fingerprint-key")

// Fingerprint hashes data with HighwayHash64, the same content-fingerprint
// primitive the engine uses to decide whether a derived query's output
// actually changed, independent of whether its inputs did.
func Fingerprint(data []byte) uint64 {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		// fingerprintKey is a fixed 32-byte constant; New64 only fails on
		// wrong key length, which is a programming error, not a runtime one.
		panic(err)
	}
	_, _ = h.Write(data)
	return h.Sum64()
}

// pipelineResult is the memoized output of running the whole analysis
// pipeline over one file revision.
type pipelineResult struct {
	Revision    uint64
	Fingerprint uint64
	Tokens      []lexer.Token
	Nodes       []ast.Node
	BlockTree   *block.Tree
	BlockErrors []block.Error
	Opaque      *opaque.Set
	Loads       *loads.Table
	Diagnostics []diag.Diagnostic
}

// cacheKey identifies one memoized pipeline run: a file path plus the
// revision its Snapshot was taken at.
type cacheKey struct {
	path     string
	revision uint64
}

// Engine owns the per-file memoization cache over a source.Store. It is the
// single writer into that cache; readers call Diagnostics/Nodes/etc
// concurrently and the engine's singleflight.Group collapses duplicate
// in-flight work for the same revision (spec.md §5 "Single-writer,
// many-reader").
type Engine struct {
	store *source.Store

	mu       sync.RWMutex
	registry *tagspec.Registry
	symbols  validate.SymbolTable

	cache  *lru.Cache[cacheKey, *pipelineResult]
	flight singleflight.Group
}

// NewEngine constructs an Engine backed by store, with an initial tag/filter
// registry (normally tagspec.Builtins(), merged with extractor output once
// the inspector responds).
func NewEngine(store *source.Store, registry *tagspec.Registry) *Engine {
	cache, _ := lru.New[cacheKey, *pipelineResult](4096)
	return &Engine{store: store, registry: registry, cache: cache}
}

// SetRegistry swaps in a new tag/filter registry, e.g. after the inspector
// or extractor produces a fresh one. It does not itself invalidate cached
// results; callers should also bump the relevant files' revisions so stale
// diagnostics referencing the old registry are recomputed.
func (e *Engine) SetRegistry(registry *tagspec.Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry = registry
}

// SetSymbolTable installs the inspector-derived scoping oracle used by
// internal/validate. A nil table means "inspector unavailable", which
// suppresses scoping diagnostics per spec.md §7.
func (e *Engine) SetSymbolTable(symbols validate.SymbolTable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols = symbols
}

// Registry returns the engine's current tag/filter registry, e.g. for the
// LSP server's completion handler to enumerate candidate tag names.
func (e *Engine) Registry() *tagspec.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

func (e *Engine) snapshotRegistry() (*tagspec.Registry, validate.SymbolTable) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry, e.symbols
}

// Diagnostics runs (or retrieves the memoized result of) the full pipeline
// for path at its current revision and returns the diagnostics produced.
func (e *Engine) Diagnostics(path string) ([]diag.Diagnostic, error) {
	r, err := e.run(path)
	if err != nil {
		return nil, err
	}
	return r.Diagnostics, nil
}

// Nodes returns the parsed node list for path at its current revision,
// running the pipeline if necessary.
func (e *Engine) Nodes(path string) ([]ast.Node, error) {
	r, err := e.run(path)
	if err != nil {
		return nil, err
	}
	return r.Nodes, nil
}

// BlockTree returns the block structure tree for path at its current
// revision.
func (e *Engine) BlockTree(path string) (*block.Tree, error) {
	r, err := e.run(path)
	if err != nil {
		return nil, err
	}
	return r.BlockTree, nil
}

// run is the query itself: look up the file, check the memo cache keyed by
// (path, revision), and on a miss compute through singleflight so
// concurrent callers for the same revision share one execution.
func (e *Engine) run(path string) (*pipelineResult, error) {
	f, ok := e.store.Get(path)
	if !ok {
		return nil, errFileNotOpen(path)
	}
	snap := f.Snapshot()
	key := cacheKey{path: path, revision: snap.Revision}

	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	v, err, _ := e.flight.Do(flightKey(key), func() (interface{}, error) {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
		registry, symbols := e.snapshotRegistry()
		result := e.compute(snap, registry, symbols)
		e.cache.Add(key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipelineResult), nil
}

func (e *Engine) compute(snap source.Snapshot, registry *tagspec.Registry, symbols validate.SymbolTable) *pipelineResult {
	tokens := lexer.Lex(snap.Text)
	nodes := ast.Parse(snap.Text, tokens)
	tree, blockErrs := block.Build(nodes, registry)
	op := opaque.Build(tree, registry)
	loadTable := loads.Build(nodes)

	acc := &diag.Accumulator{}
	for _, be := range blockErrs {
		acc.Emit(be.Diagnostic())
	}
	validate.Validate(acc, nodes, op, loadTable, registry, symbols)
	checkElifBranches(acc, nodes, tree)

	return &pipelineResult{
		Revision:    snap.Revision,
		Fingerprint: Fingerprint([]byte(snap.Text)),
		Tokens:      tokens,
		Nodes:       nodes,
		BlockTree:   tree,
		BlockErrors: blockErrs,
		Opaque:      op,
		Loads:       loadTable,
		Diagnostics: acc.Diagnostics(),
	}
}

// checkElifBranches runs the if-expression grammar check over every elif
// intermediate the block builder found, something the flat node walk in
// internal/validate never visits on its own since elif bits only exist
// inside the block tree's branch structure.
func checkElifBranches(acc *diag.Accumulator, nodes []ast.Node, tree *block.Tree) {
	if tree == nil {
		return
	}
	byOuter := make(map[source.Span]ast.Node, len(nodes))
	for _, n := range nodes {
		if n.Kind == ast.KindTag {
			byOuter[n.Outer] = n
		}
	}
	for _, span := range tree.ElifBranches() {
		if n, ok := byOuter[span]; ok {
			validate.CheckElifExpression(acc, n.Bits, n.Outer)
		}
	}
}

func flightKey(k cacheKey) string {
	return k.path + "@" + uint64ToString(k.revision)
}

func uint64ToString(v uint64) string {
	const digits = "0123456789"
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	return string(buf[i:])
}

type errFileNotOpen string

func (e errFileNotOpen) Error() string { return "incremental: file not open: " + string(e) }
