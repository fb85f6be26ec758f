// Package loads tracks {% load %} tags and answers, for any byte offset,
// which libraries and selectively-imported symbols are in effect
// (spec.md §4.5).
package loads

import (
	"sort"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/source"
)

// Kind discriminates a load statement's two shapes.
type Kind int

const (
	FullLoad Kind = iota
	SelectiveImport
)

// Statement is one parsed {% load %} tag.
type Statement struct {
	Span       source.Span // the tag's outer span
	Kind       Kind
	Libraries  []string // FullLoad
	Symbols    []string // SelectiveImport
	Library    string   // SelectiveImport
	Malformed  bool
}

// Table is the ordered, position-queryable set of load statements in a
// file.
type Table struct {
	statements []Statement
}

// Build scans nodes for every {% load ... %} tag.
func Build(nodes []ast.Node) *Table {
	t := &Table{}
	for _, n := range nodes {
		if n.Kind != ast.KindTag || n.TagName != "load" {
			continue
		}
		t.statements = append(t.statements, parseLoad(n))
	}
	sort.Slice(t.statements, func(i, j int) bool {
		return t.statements[i].Span.End() < t.statements[j].Span.End()
	})
	return t
}

func parseLoad(n ast.Node) Statement {
	bits := make([]string, len(n.Bits))
	for i, b := range n.Bits {
		bits[i] = b.Raw
	}
	if len(bits) == 0 {
		return Statement{Span: n.Outer, Malformed: true}
	}

	for k := 1; k < len(bits); k++ {
		if bits[k] == "from" {
			if k+1 >= len(bits) || k == 0 {
				return Statement{Span: n.Outer, Malformed: true}
			}
			return Statement{
				Span:    n.Outer,
				Kind:    SelectiveImport,
				Symbols: append([]string(nil), bits[:k]...),
				Library: bits[k+1],
			}
		}
	}
	return Statement{Span: n.Outer, Kind: FullLoad, Libraries: bits}
}

// symbolLibrary is a (symbol, library) pair from a selective import.
type symbolLibrary struct {
	Symbol  string
	Library string
}

// AvailableAt returns the fully-loaded libraries and selectively-imported
// (symbol, library) pairs in effect at offset, i.e. every non-malformed
// statement whose end is at or before offset.
func (t *Table) AvailableAt(offset uint32) (fullyLoaded map[string]struct{}, selective map[symbolLibrary]struct{}) {
	fullyLoaded = make(map[string]struct{})
	selective = make(map[symbolLibrary]struct{})
	idx := sort.Search(len(t.statements), func(i int) bool {
		return t.statements[i].Span.End() > offset
	})
	for _, st := range t.statements[:idx] {
		if st.Malformed {
			continue
		}
		switch st.Kind {
		case FullLoad:
			for _, lib := range st.Libraries {
				fullyLoaded[lib] = struct{}{}
			}
		case SelectiveImport:
			for _, sym := range st.Symbols {
				selective[symbolLibrary{Symbol: sym, Library: st.Library}] = struct{}{}
			}
		}
	}
	return fullyLoaded, selective
}

// Statements returns every parsed {% load %} statement, malformed ones
// included, for the validator's own load-tag diagnostics.
func (t *Table) Statements() []Statement { return t.statements }

// SymbolLibrary re-exports the pair type for callers outside the package
// that need to build lookup keys against AvailableAt's selective map.
type SymbolLibrary = symbolLibrary
