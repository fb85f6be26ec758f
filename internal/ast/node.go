// Package ast turns a lexer token stream into the flat node list the rest
// of the engine operates on: text runs, comments, variables with their
// filter chains, tags with their whitespace-split bits, and localized parse
// errors.
package ast

import "github.com/djls-go/djls/internal/source"

// FilterArg is a filter's optional argument: either a quoted string literal
// or a variable expression. Full variable-expression parsing belongs to the
// validator's if-expression Pratt parser (internal/validate); here we only
// need to know the argument's raw text and which flavor it is.
type FilterArg struct {
	Raw      string
	IsString bool
	Span     source.Span
}

// Filter is one `|name[:arg]` stage of a variable's filter chain.
type Filter struct {
	Name string
	Arg  *FilterArg
	Span source.Span
}

// Bit is one whitespace-separated token inside a `{% ... %}` tag. Quoted
// strings count as a single bit; Raw retains the surrounding quotes exactly
// as written so downstream consumers can tell a literal from a bareword.
type Bit struct {
	Raw  string
	Span source.Span
}

// Kind discriminates the Node union.
type Kind int

const (
	KindText Kind = iota
	KindComment
	KindVariable
	KindTag
	KindError
)

// Node is the parser's unit of output (spec.md §3 "Node"). Exactly one of
// the per-kind fields is meaningful, selected by Kind.
type Node struct {
	Kind Kind
	Span source.Span

	// KindComment
	CommentText string

	// KindVariable
	Var     string
	Filters []Filter

	// KindTag. Span covers the inner content; Outer gives the full
	// `{% ... %}` span including delimiters, kept separate so diagnostics
	// can choose either granularity.
	TagName string
	Bits    []Bit
	Outer   source.Span

	// KindError
	FullSpan source.Span
	Err      error
}

// ParseError is the error placed in a KindError node's Err field. It holds
// only the message; the offending construct's full outer span is the
// node's FullSpan.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// ErrUnterminatedConstruct builds the error for a lexer Error token that
// reached the node list unrecovered.
func ErrUnterminatedConstruct(detail string) error {
	return &ParseError{Message: "unterminated construct: " + detail}
}
