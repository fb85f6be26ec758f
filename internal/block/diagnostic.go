package block

import (
	"fmt"
	"strings"

	"github.com/djls-go/djls/internal/diag"
	"github.com/djls-go/djls/internal/source"
)

// Diagnostic codes for structural errors the builder reports. Unlike
// internal/validate's S1xx (semantic) codes, these are T1xx ("tree") codes,
// since they fire before any tag/filter scoping check runs.
const (
	CodeUnclosedTag        = "T130"
	CodeUnmatchedBlockName = "T131"
	CodeOrphanedTag        = "T132"
	CodeUnbalancedStruct   = "T133"
)

// ElifBranches walks every region in t and returns the marker span of each
// "elif" segment branch it finds, so callers can re-run the if-expression
// grammar check (internal/validate.CheckElifExpression) over intermediates,
// which the flat node walk never visits on its own.
func (t *Tree) ElifBranches() []source.Span {
	var spans []source.Span
	for _, region := range t.Regions {
		for _, node := range region.Nodes {
			if node.IsBranch && node.Kind == Segment && node.Tag == "elif" {
				spans = append(spans, node.MarkerSpan)
			}
		}
	}
	return spans
}

// Diagnostic converts one structural Error into a reportable diag.Diagnostic.
func (e Error) Diagnostic() diag.Diagnostic {
	switch e.Kind {
	case UnclosedTag:
		return diag.Diagnostic{
			Code: CodeUnclosedTag, Severity: diag.Error, Primary: e.Span,
			Message: fmt.Sprintf("'%s' was never closed.", e.OpenerName),
		}
	case UnmatchedBlockName:
		return diag.Diagnostic{
			Code: CodeUnmatchedBlockName, Severity: diag.Error, Primary: e.Span,
			Message: fmt.Sprintf("closing name '%s' does not match opening name '%s'.", e.CloserName, e.OpenerName),
		}
	case OrphanedTag:
		return diag.Diagnostic{
			Code: CodeOrphanedTag, Severity: diag.Error, Primary: e.Span,
			Message: fmt.Sprintf("'%s' is not valid here; it belongs inside %s.", e.CloserName, strings.Join(e.Context, " or ")),
		}
	case UnbalancedStructure:
		return diag.Diagnostic{
			Code: CodeUnbalancedStruct, Severity: diag.Error, Primary: e.Span,
			Message: fmt.Sprintf("'%s' has no matching opening tag.", e.CloserName),
		}
	default:
		return diag.Diagnostic{Code: CodeUnbalancedStruct, Severity: diag.Error, Primary: e.Span, Message: "malformed block structure."}
	}
}
