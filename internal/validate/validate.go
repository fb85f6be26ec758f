// Package validate implements the single-pass semantic validator
// (spec.md §4.6): tag/filter scoping, argument arity, {% if %} expression
// syntax, {% extends %} positioning, and opaque-region skipping.
package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/djls-go/djls/internal/ast"
	"github.com/djls-go/djls/internal/diag"
	"github.com/djls-go/djls/internal/loads"
	"github.com/djls-go/djls/internal/opaque"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
)

// isStructural reports tags the scoping check never applies to: closers,
// intermediates, and load itself (spec.md §4.6 step 1).
func isStructural(name string, registry *tagspec.Registry) bool {
	if name == "load" {
		return true
	}
	if registry.IsEndTag(name) {
		return true
	}
	for _, acceptor := range registry.IntermediateAcceptors(name) {
		if _, ok := registry.Tag(acceptor); ok {
			return true
		}
	}
	return false
}

// Validate runs every check over nodes and emits diagnostics into acc.
// symbols may be nil, meaning the inspector is unavailable; in that case
// scoping diagnostics (S108-S113, S118-S121) are silently skipped, matching
// spec.md §7's "Inspector error" policy.
func Validate(acc *diag.Accumulator, nodes []ast.Node, opaqueSet *opaque.Set, loadTable *loads.Table, registry *tagspec.Registry, symbols SymbolTable) {
	v := &validator{
		acc:       acc,
		registry:  registry,
		loadTable: loadTable,
		symbols:   symbols,
		opaque:    opaqueSet,
	}
	v.checkLoads()
	v.checkExtendsPositioning(nodes)
	for _, n := range nodes {
		if v.opaque.IsOpaque(n.Span.Start) {
			continue
		}
		switch n.Kind {
		case ast.KindTag:
			v.checkTag(n)
		case ast.KindVariable:
			v.checkVariable(n)
		}
	}
}

type validator struct {
	acc       *diag.Accumulator
	registry  *tagspec.Registry
	loadTable *loads.Table
	symbols   SymbolTable
	opaque    *opaque.Set
}

// --- Load validation (S118, S119) -----------------------------------

func (v *validator) checkLoads() {
	if v.symbols == nil {
		return
	}
	for _, st := range v.loadTable.Statements() {
		libs := st.Libraries
		if st.Kind == loads.SelectiveImport {
			libs = []string{st.Library}
		}
		for _, lib := range libs {
			res := v.symbols.ResolveTag("__library__:" + lib)
			switch res.Kind {
			case NotFound:
				v.acc.Emit(diag.Diagnostic{
					Code: "S118", Severity: diag.Error, Primary: st.Span,
					Message: fmt.Sprintf("'%s' is not a registered template library.", lib),
				})
			case DiscoveredNotInstalled:
				v.acc.Emit(diag.Diagnostic{
					Code: "S119", Severity: diag.Warning, Primary: st.Span,
					Message: fmt.Sprintf("'%s' was discovered on disk but its app is not installed.", lib),
				})
			}
		}
	}
}

// --- Tag/filter scoping (S108-S113, S120, S121) ----------------------

func (v *validator) checkTag(n ast.Node) {
	if isStructural(n.TagName, v.registry) {
		return
	}
	if v.symbols != nil {
		res := v.symbols.ResolveTag(n.TagName)
		v.checkScoping("tag", n.TagName, n.Outer, res, "S108", "S109", "S120", "S121")
	}
	v.checkArgs(n)
	if n.TagName == "if" {
		v.checkIfLikeExpr(n)
	}
}

func (v *validator) checkVariable(n ast.Node) {
	for _, f := range n.Filters {
		if v.symbols != nil {
			res := v.symbols.ResolveFilter(f.Name)
			v.checkScoping("filter", f.Name, f.Span, res, "S111", "S112", "S113", "S113")
		}
		v.checkFilterArity(f)
	}
}

// checkScoping implements spec.md §4.6 steps 1-2: is the name a builtin,
// loaded from exactly one of its candidate libraries, not loaded at all,
// ambiguous among multiple loaded libraries, or simply unknown. Four codes
// are threaded through so the same logic serves both tags and filters with
// their distinct code families.
func (v *validator) checkScoping(kind, name string, primary source.Span, res Resolution, unknownCode, notInstalledCode, notLoadedCode, ambiguousCode string) {
	switch res.Kind {
	case Builtin:
		return
	case NotFound:
		v.acc.Emit(diag.Diagnostic{
			Code: unknownCode, Severity: diag.Error, Primary: primary,
			Message: fmt.Sprintf("Unknown %s '%s'.", kind, name),
		})
	case DiscoveredNotInstalled:
		v.acc.Emit(diag.Diagnostic{
			Code: notInstalledCode, Severity: diag.Warning, Primary: primary,
			Message: fmt.Sprintf("%s '%s' belongs to an app discovered on disk but not installed.", strings.Title(kind), name),
		})
	case InLibraries:
		fully, _ := v.loadTable.AvailableAt(primary.Start)
		var loaded []string
		for _, lib := range res.Libraries {
			if _, ok := fully[lib]; ok {
				loaded = append(loaded, lib)
			}
		}
		switch {
		case len(loaded) == 1:
			return
		case len(loaded) > 1:
			sort.Strings(loaded)
			v.acc.Emit(diag.Diagnostic{
				Code: ambiguousCode, Severity: diag.Error, Primary: primary,
				Message: fmt.Sprintf("%s '%s' is ambiguous: loaded from multiple libraries (%s).", strings.Title(kind), name, strings.Join(loaded, ", ")),
			})
		case len(res.Libraries) == 1:
			v.acc.Emit(diag.Diagnostic{
				Code: notLoadedCode, Severity: diag.Error, Primary: primary,
				Message: fmt.Sprintf("%s '%s' requires {%% load %s %%}.", strings.Title(kind), name, res.Libraries[0]),
			})
		default:
			sorted := append([]string(nil), res.Libraries...)
			sort.Strings(sorted)
			v.acc.Emit(diag.Diagnostic{
				Code: ambiguousCode, Severity: diag.Error, Primary: primary,
				Message: fmt.Sprintf("%s '%s' is ambiguous: available from multiple libraries (%s); add {%% load %%} to disambiguate.", strings.Title(kind), name, strings.Join(sorted, ", ")),
			})
		}
	}
}

// --- Argument validation (S100-S107) ---------------------------------

func (v *validator) checkArgs(n ast.Node) {
	spec, ok := v.registry.Tag(n.TagName)
	if !ok {
		return
	}
	bitCount := len(n.Bits) + 1 // +1 for the tag name itself, per spec.md §4.6

	for _, rule := range spec.ExtractedRules {
		switch rule.Kind {
		case tagspec.RuleExact:
			if bitCount != rule.N {
				v.arityError(n, "S100", fmt.Sprintf("'%s' takes exactly %d argument(s) (%d given).", n.TagName, rule.N-1, bitCount-1))
			}
		case tagspec.RuleMin:
			if bitCount < rule.N {
				v.arityError(n, "S101", fmt.Sprintf("'%s' takes at least %d argument(s) (%d given).", n.TagName, rule.N-1, bitCount-1))
			}
		case tagspec.RuleMax:
			if bitCount > rule.N {
				v.arityError(n, "S102", fmt.Sprintf("'%s' takes at most %d argument(s) (%d given).", n.TagName, rule.N-1, bitCount-1))
			}
		case tagspec.RuleOneOf:
			if !containsInt(rule.OneOf, bitCount) {
				v.arityError(n, "S103", fmt.Sprintf("'%s' takes %s argument(s) (%d given).", n.TagName, oneOfDescription(rule.OneOf), bitCount-1))
			}
		case tagspec.RuleRequiredKeyword:
			idx := rule.Position - 1
			if idx < 0 || idx >= len(n.Bits) || n.Bits[idx].Raw != rule.Value {
				v.arityError(n, "S104", fmt.Sprintf("'%s' expected '%s' as argument %d.", n.TagName, rule.Value, rule.Position))
			}
		case tagspec.RuleChoiceAt:
			idx := rule.Position - 1
			if idx < 0 || idx >= len(n.Bits) || !containsStr(rule.Choices, n.Bits[idx].Raw) {
				v.arityError(n, "S105", fmt.Sprintf("'%s' argument %d must be one of %s.", n.TagName, rule.Position, strings.Join(rule.Choices, ", ")))
			}
		}
	}

	if spec.KnownOptionsSpec != nil {
		v.checkKnownOptions(n, spec.KnownOptionsSpec)
	}
}

func (v *validator) checkKnownOptions(n ast.Node, opts *tagspec.KnownOptions) {
	seen := map[string]bool{}
	for _, bit := range n.Bits {
		if !containsStr(opts.Values, bit.Raw) {
			continue
		}
		if seen[bit.Raw] && !opts.AllowDuplicates {
			v.acc.Emit(diag.Diagnostic{
				Code: "S107", Severity: diag.Error, Primary: bit.Span,
				Message: fmt.Sprintf("'%s' option repeated for '%s'.", bit.Raw, n.TagName),
			})
		}
		seen[bit.Raw] = true
	}
}

func (v *validator) arityError(n ast.Node, code, msg string) {
	v.acc.Emit(diag.Diagnostic{Code: code, Severity: diag.Error, Primary: n.Outer, Message: msg})
}

// --- {% if %} / {% elif %} expression syntax (S114) -------------------

func (v *validator) checkIfLikeExpr(n ast.Node) {
	for _, err := range checkIfExpression(n.Bits) {
		primary := n.Outer
		if err.Bit.Span.Length > 0 {
			primary = err.Bit.Span
		}
		v.acc.Emit(diag.Diagnostic{Code: "S114", Severity: diag.Error, Primary: primary, Message: err.Message})
	}
}

// CheckElifExpression runs the if-expression grammar check over an elif
// intermediate's bits. It is exported so the incremental engine's query
// wiring over block-tree intermediate branches (internal/incremental) can
// invoke the same check the main tag walk applies to {% if %} itself.
func CheckElifExpression(acc *diag.Accumulator, bits []ast.Bit, outer source.Span) {
	for _, err := range checkIfExpression(bits) {
		primary := outer
		if err.Bit.Span.Length > 0 {
			primary = err.Bit.Span
		}
		acc.Emit(diag.Diagnostic{Code: "S114", Severity: diag.Error, Primary: primary, Message: err.Message})
	}
}

// --- Filter arity (S115, S116) ----------------------------------------

func (v *validator) checkFilterArity(f ast.Filter) {
	arity, ok := v.registry.Filter(f.Name)
	if !ok {
		return
	}
	switch {
	case arity.ExpectsArg && !arity.ArgOptional && f.Arg == nil:
		v.acc.Emit(diag.Diagnostic{
			Code: "S115", Severity: diag.Error, Primary: f.Span,
			Message: fmt.Sprintf("Filter '%s' requires an argument.", f.Name),
		})
	case !arity.ExpectsArg && f.Arg != nil:
		v.acc.Emit(diag.Diagnostic{
			Code: "S116", Severity: diag.Error, Primary: f.Arg.Span,
			Message: fmt.Sprintf("Filter '%s' does not take an argument.", f.Name),
		})
	}
}

// --- {% extends %} positioning (S122, S123) ----------------------------

type extendsState int

const (
	extendsStart extendsState = iota
	extendsAfterExtends
	extendsAfterContent
)

func (v *validator) checkExtendsPositioning(nodes []ast.Node) {
	state := extendsStart
	for _, n := range nodes {
		if v.opaque.IsOpaque(n.Span.Start) {
			continue
		}
		isExtends := n.Kind == ast.KindTag && n.TagName == "extends"
		switch state {
		case extendsStart:
			switch {
			case isExtends:
				state = extendsAfterExtends
			case n.Kind != ast.KindText && n.Kind != ast.KindComment:
				state = extendsAfterContent
			}
		case extendsAfterExtends:
			if isExtends {
				v.acc.Emit(diag.Diagnostic{
					Code: "S123", Severity: diag.Error, Primary: n.Outer,
					Message: "'extends' tag appears more than once in this template.",
				})
			}
		case extendsAfterContent:
			if isExtends {
				v.acc.Emit(diag.Diagnostic{
					Code: "S122", Severity: diag.Error, Primary: n.Outer,
					Message: "'extends' must be the first tag in the template.",
				})
			}
		}
	}
}

// --- helpers ------------------------------------------------------------

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func oneOfDescription(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x - 1)
	}
	return strings.Join(parts, " or ")
}
