// Package opaque derives the set of byte spans whose interiors must not be
// parsed as Django constructs — the bodies of opaque block segments such as
// {% verbatim %} and {% comment %} (spec.md §4.4).
package opaque

import (
	"sort"

	"github.com/djls-go/djls/internal/block"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
)

// Set is a sorted, non-overlapping list of opaque spans supporting
// O(log n) containment queries.
type Set struct {
	spans []source.Span
}

// Build walks the block tree and records every opaque opener's segment
// body spans.
func Build(tree *block.Tree, registry *tagspec.Registry) *Set {
	s := &Set{}
	for _, region := range tree.Regions {
		for _, node := range region.Nodes {
			if !node.IsBranch {
				continue
			}
			spec, ok := registry.Tag(node.Tag)
			if !ok || !spec.Opaque {
				continue
			}
			body := &tree.Regions[node.Body]
			s.spans = append(s.spans, body.Span)
		}
	}
	sort.Slice(s.spans, func(i, j int) bool { return s.spans[i].Start < s.spans[j].Start })
	return s
}

// IsOpaque reports whether offset falls inside any opaque region.
func (s *Set) IsOpaque(offset uint32) bool {
	i := sort.Search(len(s.spans), func(i int) bool {
		return s.spans[i].End() > offset
	})
	return i < len(s.spans) && s.spans[i].Contains(offset)
}

// Spans returns the underlying sorted span list, e.g. for diagnostics that
// want to report which opaque region swallowed a construct.
func (s *Set) Spans() []source.Span { return s.spans }
