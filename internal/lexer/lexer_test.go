package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexBasicConstructs(t *testing.T) {
	text := `<p>{{ user.name }}</p>{% if x %}{# note #}`
	toks := Lex(text)

	assert.Equal(t, Eof, toks[len(toks)-1].Kind)

	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, Variable)
	assert.Contains(t, kinds, Block)
	assert.Contains(t, kinds, Comment)
	assert.Contains(t, kinds, Text)
}

func TestLexRoundTripsOuterSpans(t *testing.T) {
	text := "a {{ b }} c\n{% d %} e"
	toks := Lex(text)

	var rebuilt string
	for _, tok := range toks {
		if tok.Kind == Eof {
			continue
		}
		rebuilt += tok.Outer.Slice(text)
	}
	assert.Equal(t, text, rebuilt)
}

func TestLexUnterminatedRecoversAtNextDelimiter(t *testing.T) {
	text := "{{ broken {% ok %}"
	toks := Lex(text)

	assert.Equal(t, Error, toks[0].Kind)
	// Lexing continues and still finds the well-formed {% ok %}.
	var sawBlock bool
	for _, tok := range toks {
		if tok.Kind == Block {
			sawBlock = true
			assert.Equal(t, " ok ", tok.Content.Slice(text))
		}
	}
	assert.True(t, sawBlock)
}

func TestLexUnterminatedAtEOF(t *testing.T) {
	text := "{% never closes"
	toks := Lex(text)

	assert.Equal(t, Error, toks[0].Kind)
	assert.Equal(t, Eof, toks[len(toks)-1].Kind)
}

func TestLexNoTokenExceedsSourceLength(t *testing.T) {
	text := "{{ x }}\n{% y %}{# z #}tail"
	toks := Lex(text)
	for _, tok := range toks {
		assert.LessOrEqual(t, int(tok.Outer.End()), len(text))
		assert.LessOrEqual(t, int(tok.Content.End()), len(text))
	}
}

func TestLexWhitespaceAndNewlinePreserved(t *testing.T) {
	text := "a \t\nb"
	toks := Lex(text)
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{Text, Whitespace, Newline, Text, Eof}, kinds)
}
