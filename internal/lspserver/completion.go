package lspserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/tagspec"
)

const (
	completionKindKeyword   = 14 // LSP CompletionItemKind.Keyword
	insertTextFormatSnippet = 2
)

// tagPrefixAt inspects nodes for a tag construct whose bits span contains
// offset and whose cursor sits within the first bit (the tag name itself),
// returning the partial name typed so far. Completion only fires on the
// tag-name position, matching spec.md §6 ("triggered inside `{% … %}`
// constructs it returns tag names matching the partial prefix").
func tagPrefixAt(nodes []ast.Node, text string, offset uint32) (string, bool) {
	for _, n := range nodes {
		switch n.Kind {
		case ast.KindTag:
			if !n.Outer.Contains(offset) && n.Outer.End() != offset {
				continue
			}
			// Node.TagName holds the tag-name bit's text but not its span
			// (Bits only covers the bits after it), so recover the span
			// by trimming the leading whitespace off the tag's content.
			content := n.Span.Slice(text)
			trimmed := strings.TrimLeft(content, " \t\r\n")
			nameStart := n.Span.Start + uint32(len(content)-len(trimmed))
			nameEnd := nameStart + uint32(len(n.TagName))
			if offset < nameStart || offset > nameEnd {
				// Cursor is past the tag name, editing an argument: no
				// tag-name completion here.
				continue
			}
			rel := offset - nameStart
			if int(rel) > len(n.TagName) {
				rel = uint32(len(n.TagName))
			}
			return n.TagName[:rel], true

		case ast.KindError:
			// An unterminated `{% foo` while the user is still typing
			// parses as an error node; still offer tag-name completion
			// inside it.
			if !n.FullSpan.Contains(offset) && n.FullSpan.End() != offset {
				continue
			}
			raw := n.FullSpan.Slice(text)
			if !strings.HasPrefix(strings.TrimSpace(raw), "{%") {
				continue
			}
			rel := offset - n.FullSpan.Start
			if int(rel) > len(raw) {
				rel = uint32(len(raw))
			}
			inner := strings.TrimLeft(raw[:rel], "{% \t")
			if strings.ContainsAny(inner, " \t") {
				// Already past the tag name into argument text.
				continue
			}
			return inner, true
		}
	}
	return "", false
}

// CompletionCandidates returns the tag names in registry matching prefix,
// each paired with a snippet body built from its TagSpec when the spec
// declares required arguments.
func CompletionCandidates(registry *tagspec.Registry, prefix string) []CompletionItem {
	var items []CompletionItem
	for _, name := range registry.TagNames() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		spec, _ := registry.Tag(name)
		items = append(items, completionItemForTag(name, spec))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func completionItemForTag(name string, spec *tagspec.Spec) CompletionItem {
	item := CompletionItem{Label: name, Kind: completionKindKeyword}
	if spec == nil {
		item.InsertText = name
		return item
	}

	var b strings.Builder
	b.WriteString(name)
	placeholder := 1
	for _, arg := range spec.Args {
		if !arg.Required {
			continue
		}
		switch arg.Kind {
		case tagspec.ArgLiteral:
			fmt.Fprintf(&b, " %s", arg.Name)
		default:
			fmt.Fprintf(&b, " ${%d:%s}", placeholder, arg.Name)
			placeholder++
		}
	}

	if b.String() == name {
		item.InsertText = name
		return item
	}

	item.InsertText = b.String()
	item.InsertTextFormat = insertTextFormatSnippet
	if spec.EndTagSpec != nil {
		item.Detail = fmt.Sprintf("%s ... %%} {%% %s", name, spec.EndTagSpec.Name)
	}
	return item
}
