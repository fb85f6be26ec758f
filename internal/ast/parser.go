package ast

import (
	"github.com/djls-go/djls/internal/lexer"
	"github.com/djls-go/djls/internal/source"
)

// Parse turns a lexer token stream into the flat node list. It never
// aborts: a malformed construct becomes a KindError node covering its span
// and parsing resumes at the next token (spec.md §4.2).
func Parse(text string, tokens []lexer.Token) []Node {
	p := &parser{text: text, tokens: tokens}
	return p.run()
}

type parser struct {
	text   string
	tokens []lexer.Token
	nodes  []Node
}

func (p *parser) run() []Node {
	var textRun *source.Span
	flush := func() {
		if textRun != nil {
			p.nodes = append(p.nodes, Node{Kind: KindText, Span: *textRun})
			textRun = nil
		}
	}
	for _, tok := range p.tokens {
		switch tok.Kind {
		case lexer.Eof:
			flush()
		case lexer.Text, lexer.Whitespace, lexer.Newline:
			if textRun == nil {
				s := tok.Content
				textRun = &s
			} else {
				textRun.Length = tok.Content.End() - textRun.Start
			}
		case lexer.Comment:
			flush()
			p.nodes = append(p.nodes, Node{
				Kind:        KindComment,
				Span:        tok.Content,
				CommentText: tok.Content.Slice(p.text),
			})
		case lexer.Block:
			flush()
			p.nodes = append(p.nodes, p.parseTag(tok))
		case lexer.Variable:
			flush()
			p.nodes = append(p.nodes, p.parseVariable(tok))
		case lexer.Error:
			flush()
			p.nodes = append(p.nodes, Node{
				Kind:     KindError,
				Span:     tok.Content,
				FullSpan: tok.Outer,
				Err:      ErrUnterminatedConstruct(tok.Err),
			})
		}
	}
	return p.nodes
}

// parseTag splits a Block token's content into a tag name (the first bit)
// and the remaining bits.
func (p *parser) parseTag(tok lexer.Token) Node {
	content := tok.Content.Slice(p.text)
	bits, ok := splitBits(content, tok.Content.Start)
	if len(bits) == 0 {
		return Node{
			Kind:     KindError,
			Span:     tok.Content,
			FullSpan: tok.Outer,
			Err:      ErrUnterminatedConstruct("empty tag"),
		}
	}
	if !ok {
		return Node{
			Kind:     KindError,
			Span:     tok.Content,
			FullSpan: tok.Outer,
			Err:      ErrUnterminatedConstruct("unterminated quote in tag arguments"),
		}
	}
	return Node{
		Kind:    KindTag,
		Span:    tok.Content,
		Outer:   tok.Outer,
		TagName: bits[0].Raw,
		Bits:    bits[1:],
	}
}

// parseVariable splits a Variable token's content on top-level `|` into the
// primary expression and an ordered filter chain, each filter optionally
// carrying a `:arg`.
func (p *parser) parseVariable(tok lexer.Token) Node {
	content := tok.Content.Slice(p.text)
	parts := splitTopLevel(content, tok.Content.Start, '|')
	if len(parts) == 0 {
		return Node{Kind: KindError, Span: tok.Content, FullSpan: tok.Outer, Err: ErrUnterminatedConstruct("empty variable")}
	}

	varPart := trimBit(parts[0])
	node := Node{
		Kind: KindVariable,
		Span: tok.Content,
		Var:  varPart.Raw,
	}

	for _, raw := range parts[1:] {
		seg := trimBit(raw)
		if seg.Raw == "" {
			return Node{Kind: KindError, Span: tok.Content, FullSpan: tok.Outer, Err: ErrUnterminatedConstruct("empty filter")}
		}
		nameBit, argBit, hasArg := splitFilterNameArg(seg)
		f := Filter{Name: nameBit.Raw, Span: seg.Span}
		if hasArg {
			f.Arg = &FilterArg{
				Raw:      unquote(argBit.Raw),
				IsString: isQuoted(argBit.Raw),
				Span:     argBit.Span,
			}
		}
		node.Filters = append(node.Filters, f)
	}
	return node
}

// splitFilterNameArg splits a single filter segment "name" or "name:arg"
// on the first unquoted ':'.
func splitFilterNameArg(seg Bit) (name, arg Bit, hasArg bool) {
	s := seg.Raw
	i := 0
	for i < len(s) {
		switch s[i] {
		case '\'', '"':
			quote := s[i]
			i++
			for i < len(s) && s[i] != quote {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				i++
			}
			if i < len(s) {
				i++
			}
		case ':':
			name = Bit{Raw: s[:i], Span: source.Span{Start: seg.Span.Start, Length: uint32(i)}}
			argRaw := s[i+1:]
			arg = Bit{Raw: argRaw, Span: source.Span{Start: seg.Span.Start + uint32(i+1), Length: uint32(len(argRaw))}}
			return name, arg, true
		default:
			i++
		}
	}
	return seg, Bit{}, false
}
