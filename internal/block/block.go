// Package block matches a node list's opener/closer/intermediate tags into
// a tree with explicit failure modes (spec.md §4.3). The tree is an arena
// of regions addressed by small integer ids — never owning pointers — so
// back-references (a branch's body) are just indices into Tree.Regions.
package block

import (
	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
)

// ID addresses a Region within a Tree's arena. Region 0 is always the root.
type ID int

// BranchKind distinguishes a block's opener segment from its later
// intermediates (elif, else, empty, ...).
type BranchKind int

const (
	Opener BranchKind = iota
	Segment
)

// Node is one entry in a Region's ordered content list.
type Node struct {
	// IsBranch selects between the Leaf and Branch field groups.
	IsBranch bool

	// Leaf fields.
	Label string
	Span  source.Span

	// Branch fields. MarkerSpan is this segment tag's own outer span;
	// Body is the region holding everything between this marker and the
	// next segment marker (or the closer).
	Tag        string
	MarkerSpan source.Span
	Kind       BranchKind
	Body       ID
}

// Region is one arena slot. For a block's container region, Span covers
// the opener marker through the closer marker inclusive (or, for an
// unclosed/optional block, through whatever was accumulated). For a
// segment's body region, Span covers only that segment's own content.
type Region struct {
	ID    ID
	Span  source.Span
	Nodes []Node
}

// Tree is the full arena produced by Build.
type Tree struct {
	Regions []Region
}

func (t *Tree) newRegion(span source.Span) ID {
	id := ID(len(t.Regions))
	t.Regions = append(t.Regions, Region{ID: id, Span: span})
	return id
}

func (t *Tree) region(id ID) *Region { return &t.Regions[id] }

// Root is always region 0.
const Root ID = 0

// ErrorKind discriminates the structural diagnostics the builder emits.
type ErrorKind int

const (
	// UnclosedTag: an opener frame was still on the stack when its
	// closer's scope ended (either another closer forced it off, or EOF
	// drained it and its end tag is required).
	UnclosedTag ErrorKind = iota
	// UnmatchedBlockName: a MustMatchOpenerName closer's first bit
	// didn't equal the opener's first bit (e.g. {% endblock wrong %}).
	UnmatchedBlockName
	// OrphanedTag: an intermediate tag (elif/else/empty/...) appeared
	// where it isn't the current top frame's declared intermediate.
	OrphanedTag
	// UnbalancedStructure: a closer tag appeared with no matching opener
	// anywhere on the stack.
	UnbalancedStructure
)

// Error is one structural diagnostic. Fields beyond Kind and Span are
// populated selectively; see the ErrorKind doc comments.
type Error struct {
	Kind       ErrorKind
	Span       source.Span
	OpenerName string
	CloserName string
	Context    []string // OrphanedTag: tag names that do accept this intermediate
}

// endPolicy mirrors spec.md §4.3's Required | Optional | MustMatchOpenName.
type endPolicy int

const (
	policyRequired endPolicy = iota
	policyOptional
	policyMustMatchOpenerName
)

type frame struct {
	openerName       string
	openerMarkerSpan source.Span
	openerFirstBit   string
	policy           endPolicy
	container        ID // holds the segment Branch nodes
	currentBody      ID // where ordinary content is currently appended
}

// Build walks nodes and produces the block tree plus any structural
// diagnostics. registry supplies which tags open blocks, what their end
// tags and intermediates are named, and whether closer names must match.
func Build(nodes []ast.Node, registry *tagspec.Registry) (*Tree, []Error) {
	b := &builder{registry: registry}
	b.tree.newRegion(source.Span{}) // root
	for _, n := range nodes {
		b.visit(n)
	}
	b.drain()
	return &b.tree, b.errors
}

type builder struct {
	tree     Tree
	registry *tagspec.Registry
	stack    []*frame
	errors   []Error
}

func (b *builder) currentRegion() ID {
	if len(b.stack) == 0 {
		return Root
	}
	return b.stack[len(b.stack)-1].currentBody
}

func (b *builder) appendLeaf(label string, span source.Span) {
	r := b.tree.region(b.currentRegion())
	r.Nodes = append(r.Nodes, Node{IsBranch: false, Label: label, Span: span})
}

func (b *builder) visit(n ast.Node) {
	switch n.Kind {
	case ast.KindTag:
		b.visitTag(n)
	case ast.KindError:
		b.appendLeaf("error", n.FullSpan)
	default:
		b.appendLeaf(kindLabel(n.Kind), n.Span)
	}
}

func kindLabel(k ast.Kind) string {
	switch k {
	case ast.KindText:
		return "text"
	case ast.KindComment:
		return "comment"
	case ast.KindVariable:
		return "variable"
	default:
		return "node"
	}
}

func firstBit(n ast.Node) string {
	if len(n.Bits) == 0 {
		return ""
	}
	return n.Bits[0].Raw
}

func (b *builder) visitTag(n ast.Node) {
	name := n.TagName

	if opener, ok := b.registry.OpenerOf(name); ok {
		b.visitCloser(n, opener)
		return
	}

	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		if spec, ok := b.registry.Tag(top.openerName); ok {
			for _, im := range spec.Intermediates {
				if im.Name == name {
					b.visitIntermediate(n, top)
					return
				}
			}
		}
	}
	if acceptors := b.registry.IntermediateAcceptors(name); len(acceptors) > 0 {
		b.errors = append(b.errors, Error{Kind: OrphanedTag, Span: n.Outer, CloserName: name, Context: acceptors})
		return
	}

	if spec, ok := b.registry.Tag(name); ok && spec.EndTagSpec != nil {
		b.openBlock(n, spec)
		return
	}

	b.appendLeaf(name, n.Outer)
}

func (b *builder) visitIntermediate(n ast.Node, top *frame) {
	prev := b.tree.region(top.currentBody)
	prev.Span.Length = n.Outer.Start - prev.Span.Start
	bodyID := b.tree.newRegion(source.Span{Start: n.Outer.End()})
	container := b.tree.region(top.container)
	container.Nodes = append(container.Nodes, Node{
		IsBranch: true, Tag: n.TagName, MarkerSpan: n.Outer, Kind: Segment, Body: bodyID,
	})
	top.currentBody = bodyID
}

func (b *builder) openBlock(n ast.Node, spec *tagspec.Spec) {
	bodyID := b.tree.newRegion(source.Span{Start: n.Outer.End()})
	containerID := b.tree.newRegion(n.Outer)
	container := b.tree.region(containerID)
	container.Nodes = append(container.Nodes, Node{
		IsBranch: true, Tag: n.TagName, MarkerSpan: n.Outer, Kind: Opener, Body: bodyID,
	})

	b.appendLeafOrBranch(Node{IsBranch: true, Tag: n.TagName, MarkerSpan: n.Outer, Kind: Opener, Body: containerID})

	policy := policyRequired
	if spec.EndTagSpec.MustMatchOpenerName {
		policy = policyMustMatchOpenerName
	} else if spec.EndTagSpec.Optional {
		policy = policyOptional
	}

	b.stack = append(b.stack, &frame{
		openerName:       n.TagName,
		openerMarkerSpan: n.Outer,
		openerFirstBit:   firstBit(n),
		policy:           policy,
		container:        containerID,
		currentBody:      bodyID,
	})
}

func (b *builder) appendLeafOrBranch(node Node) {
	r := b.tree.region(b.currentRegion())
	r.Nodes = append(r.Nodes, node)
}

func (b *builder) visitCloser(n ast.Node, openerName string) {
	var popped []*frame
	found := false
	for len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		if top.openerName == openerName {
			found = true
			break
		}
		b.stack = b.stack[:len(b.stack)-1]
		popped = append(popped, top)
	}
	for _, f := range popped {
		b.errors = append(b.errors, Error{Kind: UnclosedTag, Span: f.openerMarkerSpan, OpenerName: f.openerName})
	}

	if !found {
		b.errors = append(b.errors, Error{Kind: UnbalancedStructure, Span: n.Outer, CloserName: n.TagName})
		return
	}

	top := b.stack[len(b.stack)-1]
	if top.policy == policyMustMatchOpenerName {
		closerName := firstBit(n)
		if closerName != "" && closerName != top.openerFirstBit {
			b.errors = append(b.errors, Error{
				Kind: UnmatchedBlockName, Span: n.Outer, OpenerName: top.openerFirstBit, CloserName: closerName,
			})
			return
		}
	}

	b.stack = b.stack[:len(b.stack)-1]
	body := b.tree.region(top.currentBody)
	body.Span.Length = n.Outer.Start - body.Span.Start
	container := b.tree.region(top.container)
	container.Span = source.Span{
		Start:  top.openerMarkerSpan.Start,
		Length: n.Outer.End() - top.openerMarkerSpan.Start,
	}
}

func (b *builder) drain() {
	for i := len(b.stack) - 1; i >= 0; i-- {
		f := b.stack[i]
		if f.policy != policyOptional {
			b.errors = append(b.errors, Error{Kind: UnclosedTag, Span: f.openerMarkerSpan, OpenerName: f.openerName})
		}
	}
	b.stack = nil
}
