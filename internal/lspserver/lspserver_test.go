package lspserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/lexer"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
)

func parseNodes(text string) []ast.Node {
	return ast.Parse(text, lexer.Lex(text))
}

func TestPathFromURIRoundTrips(t *testing.T) {
	path, err := pathFromURI("file:///home/dev/project/page.html")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/project/page.html", path)
	assert.Equal(t, "file:///home/dev/project/page.html", uriFromPath(path))
}

func TestPathFromURIRejectsNonFileScheme(t *testing.T) {
	_, err := pathFromURI("untitled:Untitled-1")
	assert.Error(t, err)
}

func TestNegotiateEncodingDefaultsToUTF16(t *testing.T) {
	assert.Equal(t, EncodingUTF16, negotiateEncoding(ClientCapabilities{}))
}

func TestNegotiateEncodingHonorsUTF8(t *testing.T) {
	caps := ClientCapabilities{General: &GeneralClientCapabilities{PositionEncodings: []string{"utf-8"}}}
	assert.Equal(t, EncodingUTF8, negotiateEncoding(caps))
}

func TestOffsetFromPositionHandlesMultibyteLine(t *testing.T) {
	text := "café\n{% if x %}\n"
	idx := source.NewLineIndex(text)

	off := offsetFromPosition(text, idx, Position{Line: 0, Character: 4}, EncodingUTF16)
	assert.Equal(t, uint32(5), off) // "café" is 4 runes / 5 bytes (é is 2 bytes)
}

func TestPositionFromOffsetRoundTripsThroughUTF16(t *testing.T) {
	text := "café\nhi\n"
	idx := source.NewLineIndex(text)

	offset := uint32(5) // just past "café"
	pos := positionFromOffset(text, idx, offset, EncodingUTF16)
	assert.Equal(t, 0, pos.Line)
	assert.Equal(t, 4, pos.Character)

	back := offsetFromPosition(text, idx, pos, EncodingUTF16)
	assert.Equal(t, offset, back)
}

func TestTagPrefixAtFindsPartialTagName(t *testing.T) {
	text := "{% fo"
	nodes := parseNodes(text)
	prefix, ok := tagPrefixAt(nodes, text, uint32(len(text)))
	require.True(t, ok)
	assert.Equal(t, "fo", prefix)
}

func TestTagPrefixAtCompleteTagStillOffersCompletion(t *testing.T) {
	text := "{% if x %}"
	nodes := parseNodes(text)
	prefix, ok := tagPrefixAt(nodes, text, uint32(4)) // cursor right after "{% i"
	require.True(t, ok)
	assert.Equal(t, "i", prefix)
}

func TestTagPrefixAtPastTagNameReturnsFalse(t *testing.T) {
	text := "{% if x %}"
	nodes := parseNodes(text)
	_, ok := tagPrefixAt(nodes, text, uint32(7)) // cursor inside "x"
	assert.False(t, ok)
}

func TestTagPrefixAtOutsideAnyTagReturnsFalse(t *testing.T) {
	text := "hello {% if x %}"
	nodes := parseNodes(text)
	_, ok := tagPrefixAt(nodes, text, uint32(2))
	assert.False(t, ok)
}

func TestCompletionCandidatesFiltersByPrefixAndSorts(t *testing.T) {
	items := CompletionCandidates(tagspec.Builtins(), "e")
	require.NotEmpty(t, items)
	for _, it := range items {
		assert.Contains(t, it.Label, "e")
	}
	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i-1].Label, items[i].Label)
	}
}

func TestCompletionCandidatesBuildsSnippetForRequiredArgs(t *testing.T) {
	items := CompletionCandidates(tagspec.Builtins(), "if")
	var ifItem *CompletionItem
	for i := range items {
		if items[i].Label == "if" {
			ifItem = &items[i]
		}
	}
	require.NotNil(t, ifItem)
	assert.Equal(t, 2, ifItem.InsertTextFormat)
	assert.Contains(t, ifItem.InsertText, "${1:condition}")
}
