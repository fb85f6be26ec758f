package ast

import (
	"testing"

	"github.com/djls-go/djls/internal/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, text string) []Node {
	t.Helper()
	return Parse(text, lexer.Lex(text))
}

func TestParseTagBits(t *testing.T) {
	nodes := parse(t, `{% include "a b.html" with x=1 only %}`)
	require.Len(t, nodes, 1) // tag + eof has no node; just the tag
	tag := nodes[0]
	require.Equal(t, KindTag, tag.Kind)
	assert.Equal(t, "include", tag.TagName)
	require.Len(t, tag.Bits, 4)
	assert.Equal(t, `"a b.html"`, tag.Bits[0].Raw)
	assert.Equal(t, "with", tag.Bits[1].Raw)
	assert.Equal(t, "x=1", tag.Bits[2].Raw)
}

func TestParseVariableFilters(t *testing.T) {
	nodes := parse(t, `{{ value|default:"n/a"|upper }}`)
	require.Len(t, nodes, 1)
	v := nodes[0]
	require.Equal(t, KindVariable, v.Kind)
	assert.Equal(t, "value", v.Var)
	require.Len(t, v.Filters, 2)
	assert.Equal(t, "default", v.Filters[0].Name)
	require.NotNil(t, v.Filters[0].Arg)
	assert.Equal(t, "n/a", v.Filters[0].Arg.Raw)
	assert.True(t, v.Filters[0].Arg.IsString)
	assert.Equal(t, "upper", v.Filters[1].Name)
	assert.Nil(t, v.Filters[1].Arg)
}

func TestParseUnterminatedProducesErrorNode(t *testing.T) {
	nodes := parse(t, `{{ broken`)
	require.Len(t, nodes, 1)
	assert.Equal(t, KindError, nodes[0].Kind)
	assert.Error(t, nodes[0].Err)
}

func TestParseContinuesAfterBadConstruct(t *testing.T) {
	nodes := parse(t, `{{ broken {% good arg %}`)
	require.Len(t, nodes, 2)
	assert.Equal(t, KindError, nodes[0].Kind)
	assert.Equal(t, KindTag, nodes[1].Kind)
	assert.Equal(t, "good", nodes[1].TagName)
}

func TestParseTextRunsMergeAdjacentTokens(t *testing.T) {
	nodes := parse(t, "hello \n world")
	require.Len(t, nodes, 1)
	assert.Equal(t, KindText, nodes[0].Kind)
	assert.Equal(t, "hello \n world", nodes[0].Span.Slice("hello \n world"))
}
