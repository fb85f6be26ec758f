package extract

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// registerKind discriminates the five ways a Django template library
// registers a tag or filter (spec.md §4.8 "Stage 1: Registration scan").
type registerKind int

const (
	registerTag registerKind = iota
	registerFilter
	registerSimpleTag
	registerInclusionTag
	registerSimpleBlockTag
)

// registration is one recognized `@register.*` decoration or `register.*(...)`
// call, together with the function it names (if any could be resolved).
type registration struct {
	kind         registerKind
	name         string
	explicitArg  bool // name came from a string literal, not the function's own name
	takesContext bool // decorator/call passed takes_context=True
	funcName     string
	funcNode     *tree_sitter.Node // the function_definition, if resolved
}

// scanRegistrations walks the whole module looking for register.<kind>
// decorators and direct register.<kind>(...) calls.
func scanRegistrations(root *tree_sitter.Node, src []byte) []registration {
	var regs []registration
	funcsByName := map[string]*tree_sitter.Node{}

	walk(root, func(n *tree_sitter.Node) {
		if n.Kind() == "function_definition" {
			name := nodeText(childByField(n, "name"), src)
			if name != "" {
				funcsByName[name] = n
			}
		}
	})

	walk(root, func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "decorated_definition":
			regs = append(regs, scanDecorated(n, src)...)
		case "expression_statement":
			if call := soleCall(n); call != nil {
				if r, ok := scanRegisterCall(call, src); ok {
					regs = append(regs, r)
				}
			}
		}
	})

	for i := range regs {
		if regs[i].funcNode == nil && regs[i].funcName != "" {
			regs[i].funcNode = funcsByName[regs[i].funcName]
		}
	}
	return regs
}

// walk invokes fn for every node in the tree, pre-order.
func walk(n *tree_sitter.Node, fn func(*tree_sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		walk(n.Child(i), fn)
	}
}

// soleCall returns the call expression of an expression statement consisting
// of exactly one bare call, e.g. `register.tag("foo", compile_foo)`.
func soleCall(stmt *tree_sitter.Node) *tree_sitter.Node {
	if stmt.NamedChildCount() != 1 {
		return nil
	}
	child := stmt.NamedChild(0)
	if child == nil || child.Kind() != "call" {
		return nil
	}
	return child
}

// scanDecorated handles `@register.<kind>` and `@register.<kind>(...)` above
// a function_definition.
func scanDecorated(decorated *tree_sitter.Node, src []byte) []registration {
	funcNode := childByField(decorated, "definition")
	if funcNode == nil || funcNode.Kind() != "function_definition" {
		return nil
	}
	funcName := nodeText(childByField(funcNode, "name"), src)

	var out []registration
	count := decorated.NamedChildCount()
	for i := uint(0); i < count; i++ {
		deco := decorated.NamedChild(i)
		if deco == nil || deco.Kind() != "decorator" {
			continue
		}
		expr := deco.NamedChild(0)
		if expr == nil {
			continue
		}
		var attr *tree_sitter.Node
		var args *tree_sitter.Node
		switch expr.Kind() {
		case "attribute":
			attr = expr
		case "call":
			attr = childByField(expr, "function")
			args = childByField(expr, "arguments")
		default:
			continue
		}
		if attr == nil || attr.Kind() != "attribute" {
			continue
		}
		if nodeText(childByField(attr, "object"), src) != "register" {
			continue
		}
		kind, ok := kindFromAttr(nodeText(childByField(attr, "attribute"), src))
		if !ok {
			continue
		}
		name := funcName
		explicit := false
		takesContext := false
		if args != nil {
			if lit := firstStringArg(args, src); lit != "" {
				name = lit
				explicit = true
			}
			takesContext = keywordArgIsTrue(args, "takes_context", src)
		}
		out = append(out, registration{
			kind: kind, name: name, explicitArg: explicit, takesContext: takesContext,
			funcName: funcName, funcNode: funcNode,
		})
	}
	return out
}

// scanRegisterCall handles the non-decorator call form:
// register.tag("name", compile_func) or register.tag(compile_func), and the
// filter equivalents.
func scanRegisterCall(call *tree_sitter.Node, src []byte) (registration, bool) {
	fn := childByField(call, "function")
	if fn == nil || fn.Kind() != "attribute" {
		return registration{}, false
	}
	if nodeText(childByField(fn, "object"), src) != "register" {
		return registration{}, false
	}
	kind, ok := kindFromAttr(nodeText(childByField(fn, "attribute"), src))
	if !ok {
		return registration{}, false
	}
	args := childByField(call, "arguments")
	if args == nil {
		return registration{}, false
	}

	var name, funcName string
	explicit := false
	pos := 0
	count := args.NamedChildCount()
	for i := uint(0); i < count; i++ {
		arg := args.NamedChild(i)
		if arg == nil {
			continue
		}
		if arg.Kind() == "string" {
			name = stringLiteralValue(arg, src)
			explicit = true
			pos++
			continue
		}
		if arg.Kind() == "identifier" {
			if pos == 0 {
				funcName = nodeText(arg, src)
			} else {
				funcName = nodeText(arg, src)
			}
			pos++
		}
	}
	if funcName == "" {
		return registration{}, false
	}
	if name == "" {
		name = funcName
	}
	takesContext := keywordArgIsTrue(args, "takes_context", src)
	return registration{kind: kind, name: name, explicitArg: explicit, takesContext: takesContext, funcName: funcName}, true
}

// keywordArgIsTrue reports whether args contains a keyword argument
// `wanted=True`, e.g. the `takes_context=True` passed to
// @register.simple_tag / register.simple_tag(...).
func keywordArgIsTrue(args *tree_sitter.Node, wanted string, src []byte) bool {
	count := args.NamedChildCount()
	for i := uint(0); i < count; i++ {
		arg := args.NamedChild(i)
		if arg == nil || arg.Kind() != "keyword_argument" {
			continue
		}
		if nodeText(childByField(arg, "name"), src) != wanted {
			continue
		}
		val := childByField(arg, "value")
		if val == nil {
			continue
		}
		switch val.Kind() {
		case "true":
			return true
		default:
			return nodeText(val, src) == "True"
		}
	}
	return false
}

func kindFromAttr(attr string) (registerKind, bool) {
	switch attr {
	case "tag":
		return registerTag, true
	case "filter":
		return registerFilter, true
	case "simple_tag":
		return registerSimpleTag, true
	case "inclusion_tag":
		return registerInclusionTag, true
	case "simple_block_tag":
		return registerSimpleBlockTag, true
	}
	return 0, false
}

// firstStringArg returns the first bare string-literal argument's decoded
// value, e.g. from `@register.filter(name="upper")` or
// `@register.inclusion_tag("snippet.html")` — "" if none is present.
func firstStringArg(args *tree_sitter.Node, src []byte) string {
	count := args.NamedChildCount()
	for i := uint(0); i < count; i++ {
		arg := args.NamedChild(i)
		if arg == nil {
			continue
		}
		if arg.Kind() == "string" {
			return stringLiteralValue(arg, src)
		}
		if arg.Kind() == "keyword_argument" {
			if nodeText(childByField(arg, "name"), src) != "name" {
				continue
			}
			val := childByField(arg, "value")
			if val != nil && val.Kind() == "string" {
				return stringLiteralValue(val, src)
			}
		}
	}
	return ""
}

// stringLiteralValue strips a Python string node's quotes/prefix.
func stringLiteralValue(n *tree_sitter.Node, src []byte) string {
	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child != nil && child.Kind() == "string_content" {
			return nodeText(child, src)
		}
	}
	return ""
}
