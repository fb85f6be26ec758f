// Package extract statically derives tagspec.Spec and tagspec.FilterArity
// values from a Django app's Python source, without ever importing or
// executing it (spec.md §4.8). Stage 1 scans for @register.tag /
// @register.filter / @register.simple_tag / @register.inclusion_tag /
// @register.simple_block_tag registrations; Stage 2 derives arity from a
// simple_tag-style function's signature; Stage 3 runs a small abstract
// interpretation over a `register.tag`-style compile function's body to turn
// its split_contents()/argument-count guards into tagspec.ExtractedRule
// values.
package extract

import (
	"fmt"
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/djls-go/djls/internal/tagspec"
)

// Module is everything statically derivable from one Python module: its
// newly-registered tags and filters, keyed as they'll be merged into a
// tagspec.Registry.
type Module struct {
	Path    string
	Tags    []*tagspec.Spec
	Filters map[string]tagspec.FilterArity
}

// pythonLanguage is constructed once; tree_sitter.Language is immutable and
// safe to share across parses.
var pythonLanguage = tree_sitter.NewLanguage(tree_sitter_python.Language())

// Extract parses src (one Python module's source) and returns everything it
// registers. It never fails on code it doesn't understand — unrecognized
// registrations are simply skipped, matching spec.md §7's "best-effort,
// never blocks on extraction failure" policy. The returned error is non-nil
// only when src fails to parse as Python at all.
func Extract(path string, src []byte) (*Module, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(pythonLanguage); err != nil {
		return nil, fmt.Errorf("set python language: %w", err)
	}
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: tree-sitter returned no tree", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	m := &Module{Path: path, Filters: map[string]tagspec.FilterArity{}}

	regs := scanRegistrations(root, src)
	sort.Slice(regs, func(i, j int) bool { return regs[i].name < regs[j].name })

	for _, reg := range regs {
		switch reg.kind {
		case registerTag:
			spec := buildTagSpec(reg, root, src, path)
			if spec != nil {
				m.Tags = append(m.Tags, spec)
			}
		case registerSimpleTag, registerInclusionTag, registerSimpleBlockTag:
			spec := buildParseBitsSpec(reg, root, src, path)
			if spec != nil {
				m.Tags = append(m.Tags, spec)
			}
		case registerFilter:
			m.Filters[reg.name] = inferFilterArity(reg, root, src, path)
		}
	}
	return m, nil
}

// nodeText returns a node's source text, or "" for a nil node.
func nodeText(n *tree_sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(src)
}

// childByField is a nil-safe ChildByFieldName.
func childByField(n *tree_sitter.Node, field string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(field)
}
