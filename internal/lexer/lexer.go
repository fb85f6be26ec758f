// Package lexer turns Django template source into a finite, restartable
// token stream. It performs a single forward scan over the UTF-8 source,
// recognizing the three Django delimiter pairs and leaving everything else
// as text, explicit whitespace, or newline tokens so span arithmetic stays
// exact.
package lexer

import (
	"strings"

	"github.com/djls-go/djls/internal/source"
)

// Kind classifies a Token the way spec.md §3 describes: Text, Whitespace,
// Newline, Block, Variable, Comment, Error, or Eof.
type Kind int

const (
	Text Kind = iota
	Whitespace
	Newline
	Block
	Variable
	Comment
	Error
	Eof
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "Text"
	case Whitespace:
		return "Whitespace"
	case Newline:
		return "Newline"
	case Block:
		return "Block"
	case Variable:
		return "Variable"
	case Comment:
		return "Comment"
	case Error:
		return "Error"
	case Eof:
		return "Eof"
	default:
		return "Unknown"
	}
}

// Token is one lexer output. Content is the span between the delimiters
// (empty for Text/Whitespace/Newline/Eof); Outer is the full span including
// the delimiters themselves, used when a diagnostic needs to point at the
// whole construct rather than just its guts.
type Token struct {
	Kind    Kind
	Content source.Span
	Outer   source.Span
	// Err holds the lexer's message when Kind == Error.
	Err string
}

var (
	openers = []string{"{%", "{{", "{#"}
	closers = map[string]string{"{%": "%}", "{{": "}}", "{#": "#}"}
)

// Lex tokenizes text in full and returns the token list, always terminated
// by an Eof token. It never returns an error: unterminated constructs become
// Error tokens so a single bad construct never swallows the rest of the
// file (spec.md §4.1).
func Lex(text string) []Token {
	l := &lexState{text: text}
	l.run()
	return l.tokens
}

type lexState struct {
	text   string
	pos    int
	tokens []Token
}

func (l *lexState) run() {
	for l.pos < len(l.text) {
		rest := l.text[l.pos:]

		if idx, open := nextOpener(rest); idx == 0 {
			l.lexConstruct(open)
			continue
		} else if idx > 0 {
			// Plain text/whitespace/newline run up to the next delimiter.
			l.lexPlain(rest[:idx])
			continue
		}
		// No more delimiters in the remainder: the whole rest is plain.
		l.lexPlain(rest)
	}
	l.tokens = append(l.tokens, Token{
		Kind:    Eof,
		Content: source.Span{Start: uint32(len(l.text))},
		Outer:   source.Span{Start: uint32(len(l.text))},
	})
}

// nextOpener finds the earliest occurrence of any Django delimiter opener in
// s, returning its byte offset and which opener matched, or (-1, "") if none
// appear.
func nextOpener(s string) (int, string) {
	best := -1
	bestOpen := ""
	for _, open := range openers {
		if idx := strings.Index(s, open); idx >= 0 && (best == -1 || idx < best) {
			best = idx
			bestOpen = open
		}
	}
	return best, bestOpen
}

// lexPlain splits a delimiter-free run into Whitespace, Newline, and Text
// tokens so that no token mixes kinds and every byte is accounted for.
func (l *lexState) lexPlain(s string) {
	start := l.pos
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '\n':
			l.emit(Newline, start+i, start+i+1)
			i++
		case s[i] == ' ' || s[i] == '\t' || s[i] == '\r':
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			l.emit(Whitespace, start+i, start+j)
			i = j
		default:
			j := i
			for j < len(s) && s[j] != '\n' && s[j] != ' ' && s[j] != '\t' && s[j] != '\r' {
				j++
			}
			l.emit(Text, start+i, start+j)
			i = j
		}
	}
	l.pos = start + len(s)
}

// lexConstruct consumes a `{% %}`, `{{ }}`, or `{# #}` construct starting at
// l.pos. On success it emits a Block/Variable/Comment token whose Content
// span excludes the delimiters. If the matching closer isn't found before
// another opener, a newline, or EOF, it emits an Error token covering the
// partial content and resumes lexing at the other opener, at the newline,
// or at EOF, whichever stopped it.
func (l *lexState) lexConstruct(open string) {
	outerStart := l.pos
	close := closers[open]
	contentStart := l.pos + len(open)
	rest := l.text[contentStart:]

	closeIdx := strings.Index(rest, close)
	// Find whichever comes first among: the closer, another opener, or a
	// newline — all relative to contentStart.
	stopIdx := len(rest)
	if closeIdx >= 0 && closeIdx < stopIdx {
		stopIdx = closeIdx
	}
	otherOpenIdx, _ := nextOpener(rest)
	recoveredByOpener := false
	if otherOpenIdx >= 0 && otherOpenIdx < stopIdx {
		stopIdx = otherOpenIdx
		recoveredByOpener = true
	}
	nlIdx := strings.IndexByte(rest, '\n')
	recoveredByNewline := false
	if nlIdx >= 0 && nlIdx < stopIdx {
		stopIdx = nlIdx
		recoveredByNewline = true
	}

	if closeIdx >= 0 && stopIdx == closeIdx {
		contentEnd := contentStart + closeIdx
		outerEnd := contentEnd + len(close)
		l.emitConstruct(kindFor(open), outerStart, contentStart, contentEnd, outerEnd)
		l.pos = outerEnd
		return
	}

	// Unterminated: emit an Error token over the partial content and
	// rewind to the nearest recovery point.
	var partialEnd, recoverPos int
	switch {
	case recoveredByOpener:
		partialEnd = contentStart + otherOpenIdx
		recoverPos = partialEnd
	case recoveredByNewline:
		partialEnd = contentStart + nlIdx
		recoverPos = partialEnd // leave the newline itself to be lexed as plain text
	default:
		partialEnd = len(l.text)
		recoverPos = partialEnd
	}
	l.tokens = append(l.tokens, Token{
		Kind:    Error,
		Content: span(contentStart, partialEnd),
		Outer:   span(outerStart, partialEnd),
		Err:     "unterminated " + open + " construct",
	})
	l.pos = recoverPos
}

func kindFor(open string) Kind {
	switch open {
	case "{%":
		return Block
	case "{{":
		return Variable
	case "{#":
		return Comment
	}
	return Text
}

func (l *lexState) emit(k Kind, start, end int) {
	l.tokens = append(l.tokens, Token{Kind: k, Content: span(start, end), Outer: span(start, end)})
}

func (l *lexState) emitConstruct(k Kind, outerStart, contentStart, contentEnd, outerEnd int) {
	l.tokens = append(l.tokens, Token{
		Kind:    k,
		Content: span(contentStart, contentEnd),
		Outer:   span(outerStart, outerEnd),
	})
}

func span(start, end int) source.Span {
	if end < start {
		end = start
	}
	return source.Span{Start: uint32(start), Length: uint32(end - start)}
}
