package extract

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/djls-go/djls/internal/tagspec"
)

// buildParseBitsSpec derives a tagspec.Spec from a simple_tag / inclusion_tag
// / simple_block_tag function's signature, the way Django's own
// parse_bits.parse_bits validates these tags at render time (spec.md §4.8
// "Stage 2: Signature-based extraction"). Mirrors
// djls-extraction::signature::extract_parse_bits_rule.
func buildParseBitsSpec(reg registration, root *tree_sitter.Node, src []byte, module string) *tagspec.Spec {
	if reg.funcNode == nil {
		return &tagspec.Spec{Name: reg.name, Module: module}
	}
	params := childByField(reg.funcNode, "parameters")
	if params == nil {
		return &tagspec.Spec{Name: reg.name, Module: module}
	}

	takesContext := hasTakesContext(reg, src)

	type param struct {
		name        string
		hasDefault  bool
		isVarArgs   bool
		isKwargOnly bool
		isKwargs    bool
	}
	var plist []param
	skip := takesContext

	count := params.NamedChildCount()
	for i := uint(0); i < count; i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "identifier":
			if skip {
				skip = false
				continue
			}
			plist = append(plist, param{name: nodeText(p, src)})
		case "default_parameter":
			if skip {
				skip = false
				continue
			}
			plist = append(plist, param{name: nodeText(childByField(p, "name"), src), hasDefault: true})
		case "list_splat_pattern":
			plist = append(plist, param{name: nodeText(p.NamedChild(0), src), isVarArgs: true})
		case "dictionary_splat_pattern":
			plist = append(plist, param{name: nodeText(p.NamedChild(0), src), isKwargs: true})
		case "typed_parameter", "typed_default_parameter":
			name := nodeText(childByField(p, "name"), src)
			if name == "" && p.NamedChildCount() > 0 {
				name = nodeText(p.NamedChild(0), src)
			}
			if skip {
				skip = false
				continue
			}
			plist = append(plist, param{name: name, hasDefault: p.Kind() == "typed_default_parameter"})
		}
	}

	hasVarArgs, hasKwargs := false, false
	numRequired, numPositional := 0, 0
	var args []tagspec.TagArg
	pos := 0
	for _, p := range plist {
		switch {
		case p.isVarArgs:
			hasVarArgs = true
			args = append(args, tagspec.TagArg{Kind: tagspec.ArgVarArgs, Name: p.name})
		case p.isKwargs:
			hasKwargs = true
		default:
			numPositional++
			if !p.hasDefault {
				numRequired++
			}
			args = append(args, tagspec.TagArg{Kind: tagspec.ArgVar, Name: p.name, Required: !p.hasDefault})
			pos++
		}
	}

	var rules []tagspec.ExtractedRule
	if !hasVarArgs {
		if numRequired > 0 {
			rules = append(rules, tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: numRequired + 1})
		}
		if !hasKwargs {
			rules = append(rules, tagspec.ExtractedRule{Kind: tagspec.RuleMax, N: numPositional + 1})
		}
	} else if numRequired > 0 {
		rules = append(rules, tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: numRequired + 1})
	}

	args = append(args,
		tagspec.TagArg{Kind: tagspec.ArgLiteral, Name: "as"},
		tagspec.TagArg{Kind: tagspec.ArgVar, Name: "varname"},
	)

	return &tagspec.Spec{
		Name:           reg.name,
		Args:           args,
		ExtractedRules: rules,
		Module:         module,
	}
}

// hasTakesContext reports whether the registration's decorator or call form
// passed takes_context=True, which shifts the effective parameter list by
// one (djls-extraction::signature::has_takes_context).
func hasTakesContext(reg registration, src []byte) bool {
	return reg.takesContext
}

// inferFilterArity derives a filter's arity the way Django's own
// @register.filter(is_safe=...) decorator is inert for this purpose: what
// matters is the wrapped function's parameter count (spec.md §4.8).
func inferFilterArity(reg registration, root *tree_sitter.Node, src []byte, module string) tagspec.FilterArity {
	if reg.funcNode == nil {
		return tagspec.FilterArity{Module: module}
	}
	params := childByField(reg.funcNode, "parameters")
	if params == nil {
		return tagspec.FilterArity{Module: module}
	}
	count := params.NamedChildCount()
	if count < 2 {
		return tagspec.FilterArity{ExpectsArg: false, Module: module}
	}
	second := params.NamedChild(1)
	optional := second != nil && second.Kind() == "default_parameter"
	return tagspec.FilterArity{ExpectsArg: true, ArgOptional: optional, Module: module}
}
