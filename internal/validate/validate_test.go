package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/block"
	"github.com/djls-go/djls/internal/diag"
	"github.com/djls-go/djls/internal/lexer"
	"github.com/djls-go/djls/internal/loads"
	"github.com/djls-go/djls/internal/opaque"
	"github.com/djls-go/djls/internal/tagspec"
)

func run(t *testing.T, text string, registry *tagspec.Registry, symbols SymbolTable) []diag.Diagnostic {
	t.Helper()
	toks := lexer.Lex(text)
	nodes := ast.Parse(text, toks)
	tree, blockErrs := block.Build(nodes, registry)
	assert.Empty(t, blockErrs)
	op := opaque.Build(tree, registry)
	lt := loads.Build(nodes)
	acc := &diag.Accumulator{}
	Validate(acc, nodes, op, lt, registry, symbols)
	return acc.Diagnostics()
}

func TestValidateWellFormedIfProducesNoDiagnostics(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{% if x %}yes{% endif %}`, reg, nil)
	assert.Empty(t, diags)
}

func TestValidateMissingFilterArgument(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{{ value|truncatewords }}`, reg, nil)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S115", diags[0].Code)
}

func TestValidateFilterArgumentNotExpected(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{{ value|upper:"x" }}`, reg, nil)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S116", diags[0].Code)
}

func TestValidateDuplicateExtends(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{% extends "a.html" %}{% extends "b.html" %}`, reg, nil)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S123", diags[0].Code)
}

func TestValidateExtendsNotFirst(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{{ greeting }}{% extends "a.html" %}`, reg, nil)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S122", diags[0].Code)
}

func TestValidateForRequiresInKeyword(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{% for x y %}{% endfor %}`, reg, nil)
	// Three bits also fall short of for's minimum of four, so S101 comes first.
	assert.Len(t, diags, 2)
	assert.Equal(t, "S101", diags[0].Code)
	assert.Equal(t, "S104", diags[1].Code)
}

func TestValidateUnknownTagReported(t *testing.T) {
	reg := tagspec.Builtins()
	symbols := &StaticSymbolTable{Tags: map[string]Resolution{}}
	diags := run(t, `{% frobnicate %}`, reg, symbols)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S108", diags[0].Code)
}

func TestValidateTagRequiresLoad(t *testing.T) {
	reg := tagspec.Builtins()
	symbols := &StaticSymbolTable{
		Tags: map[string]Resolution{
			"mytag": {Kind: InLibraries, Libraries: []string{"mylib"}},
		},
	}
	diags := run(t, `{% mytag %}`, reg, symbols)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S120", diags[0].Code)
}

func TestValidateTagLoadedIsClean(t *testing.T) {
	reg := tagspec.Builtins()
	symbols := &StaticSymbolTable{
		Tags: map[string]Resolution{
			"mytag":             {Kind: InLibraries, Libraries: []string{"mylib"}},
			"__library__:mylib": {Kind: InLibraries, Libraries: []string{"mylib"}},
		},
	}
	diags := run(t, `{% load mylib %}{% mytag %}`, reg, symbols)
	assert.Empty(t, diags)
}

func TestValidateOpaqueVerbatimContentsSkipped(t *testing.T) {
	reg := tagspec.Builtins()
	symbols := &StaticSymbolTable{Tags: map[string]Resolution{"verbatim": {Kind: Builtin}}}
	diags := run(t, `{% verbatim %}{% frobnicate %}{% endverbatim %}`, reg, symbols)
	assert.Empty(t, diags)
}

func TestValidateBadIfExpressionReported(t *testing.T) {
	reg := tagspec.Builtins()
	diags := run(t, `{% if a and %}x{% endif %}`, reg, nil)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S114", diags[0].Code)
}

func TestValidateUnknownLoadLibrary(t *testing.T) {
	reg := tagspec.Builtins()
	symbols := &StaticSymbolTable{Tags: map[string]Resolution{}}
	diags := run(t, `{% load nosuchlib %}`, reg, symbols)
	assert.Len(t, diags, 1)
	assert.Equal(t, "S118", diags[0].Code)
}
