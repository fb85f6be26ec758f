package block

import (
	"testing"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/lexer"
	"github.com/djls-go/djls/internal/tagspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, text string) (*Tree, []Error) {
	t.Helper()
	nodes := ast.Parse(text, lexer.Lex(text))
	return Build(nodes, tagspec.Builtins())
}

func TestBuildWellFormedIf(t *testing.T) {
	tree, errs := build(t, `{% if user.is_staff %}Admin{% endif %}`)
	assert.Empty(t, errs)
	require.Len(t, tree.Regions, 3) // root, container, body
	root := tree.Regions[Root]
	require.Len(t, root.Nodes, 1)
	assert.True(t, root.Nodes[0].IsBranch)
	assert.Equal(t, "if", root.Nodes[0].Tag)
}

func TestBuildUnclosedIf(t *testing.T) {
	_, errs := build(t, `{% if user.is_staff %}Admin`)
	require.Len(t, errs, 1)
	assert.Equal(t, UnclosedTag, errs[0].Kind)
	assert.Equal(t, "if", errs[0].OpenerName)
}

func TestBuildOrphanCloser(t *testing.T) {
	_, errs := build(t, `{% endif %}`)
	require.Len(t, errs, 1)
	assert.Equal(t, UnbalancedStructure, errs[0].Kind)
}

func TestBuildUnmatchedBlockName(t *testing.T) {
	_, errs := build(t, `{% block content %}x{% endblock sidebar %}`)
	// The mismatched closer leaves the block open, so EOF also reports it.
	require.Len(t, errs, 2)
	assert.Equal(t, UnmatchedBlockName, errs[0].Kind)
	assert.Equal(t, "sidebar", errs[0].CloserName)
	assert.Equal(t, UnclosedTag, errs[1].Kind)
}

func TestBuildOrphanedIntermediate(t *testing.T) {
	_, errs := build(t, `{% empty %}`)
	require.Len(t, errs, 1)
	assert.Equal(t, OrphanedTag, errs[0].Kind)
	assert.Contains(t, errs[0].Context, "for")
}

func TestBuildIfElifElse(t *testing.T) {
	tree, errs := build(t, `{% if a %}A{% elif b %}B{% else %}C{% endif %}`)
	assert.Empty(t, errs)
	var container Region
	for _, r := range tree.Regions {
		if len(r.Nodes) == 3 {
			container = r
		}
	}
	require.Len(t, container.Nodes, 3)
	assert.Equal(t, Opener, container.Nodes[0].Kind)
	assert.Equal(t, Segment, container.Nodes[1].Kind)
	assert.Equal(t, "elif", container.Nodes[1].Tag)
	assert.Equal(t, "else", container.Nodes[2].Tag)
}

func TestBuildInnermostIntermediateWins(t *testing.T) {
	// `else` belongs to the inner `if`, not the outer `for`.
	tree, errs := build(t, `{% for x in y %}{% if x %}A{% else %}B{% endif %}{% endfor %}`)
	assert.Empty(t, errs)
	_ = tree
}

func TestBuildNestedUnclosedPopsInner(t *testing.T) {
	_, errs := build(t, `{% for x in y %}{% if x %}A{% endfor %}`)
	require.Len(t, errs, 1)
	assert.Equal(t, UnclosedTag, errs[0].Kind)
	assert.Equal(t, "if", errs[0].OpenerName)
}
