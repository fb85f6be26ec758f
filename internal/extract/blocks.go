package extract

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/djls-go/djls/internal/tagspec"
)

// detectBlockShape recovers a compile function's end tag and intermediates
// without ever running it (spec.md §4.8 "Block shape inference"). It tries
// two independent idioms, in order: a `parser.parse((end_name, ...))`
// tuple-literal call, and a manual `parser.next_token()` loop whose body
// compares `token.contents` against string literals
// (djls-python::blocks::next_token::detect). Either can additionally
// surface a dynamic end-tag name built as `"end%s" % bits[0]`, which can't
// be resolved to a literal but still tells us the closer must repeat the
// opener's own name.
func detectBlockShape(reg registration, body *tree_sitter.Node, parserVar, tokenVar string, src []byte) (*tagspec.EndTag, []tagspec.Intermediate) {
	if body == nil {
		return nil, nil
	}

	var literals []string
	if lits := parseTupleLiterals(body, parserVar, src); len(lits) > 0 {
		literals = lits
	} else if nextVar, ok := findNextTokenVar(body, parserVar, src); ok {
		literals = tokenContentLiterals(body, nextVar, src)
	}

	dynamic := hasDynamicEndTagFormat(body, src)

	endName, intermediateNames := classifyBlockTokens(literals)
	if endName == "" && !dynamic {
		return nil, nil
	}

	endTag := &tagspec.EndTag{}
	if dynamic {
		endTag.Name = "end" + reg.name
		endTag.MustMatchOpenerName = true
	} else {
		endTag.Name = endName
	}

	var intermediates []tagspec.Intermediate
	for _, name := range intermediateNames {
		intermediates = append(intermediates, tagspec.Intermediate{Name: name})
	}
	return endTag, intermediates
}

// classifyBlockTokens splits literal token-content comparisons into an end
// tag (any literal starting with "end"; the last one scanned wins, matching
// djls-python's "each overwrites" behavior) and the rest as intermediates,
// sorted alphabetically for deterministic extraction.
func classifyBlockTokens(literals []string) (endName string, intermediates []string) {
	seen := map[string]bool{}
	var others []string
	for _, lit := range literals {
		if strings.HasPrefix(lit, "end") {
			endName = lit
			continue
		}
		if !seen[lit] {
			seen[lit] = true
			others = append(others, lit)
		}
	}
	sort.Strings(others)
	return endName, others
}

// parseTupleLiterals scans for `<parserVar>.parse((lit1, lit2, ...))` calls
// and returns the literal's contents, or nil if no such call appears (or
// any element of the tuple isn't a bare string literal).
func parseTupleLiterals(body *tree_sitter.Node, parserVar string, src []byte) []string {
	var out []string
	walk(body, func(n *tree_sitter.Node) {
		if out != nil || n.Kind() != "call" {
			return
		}
		fn := childByField(n, "function")
		if fn == nil || fn.Kind() != "attribute" {
			return
		}
		object := childByField(fn, "object")
		if object == nil || object.Kind() != "identifier" || nodeText(object, src) != parserVar {
			return
		}
		if nodeText(childByField(fn, "attribute"), src) != "parse" {
			return
		}
		args := childByField(n, "arguments")
		if args == nil || args.NamedChildCount() != 1 {
			return
		}
		tup := args.NamedChild(0)
		if tup == nil || tup.Kind() != "tuple" {
			return
		}
		count := tup.NamedChildCount()
		lits := make([]string, 0, count)
		for i := uint(0); i < count; i++ {
			el := tup.NamedChild(i)
			if el == nil || el.Kind() != "string" {
				return
			}
			lits = append(lits, stringLiteralValue(el, src))
		}
		out = lits
	})
	return out
}

// findNextTokenVar reports the variable a manual `var = parser.next_token()`
// call binds to, anywhere in body (djls-python::blocks::next_token's
// has_next_token_loop check, relaxed to not require the call be lexically
// inside the enclosing while loop — compile functions sometimes hoist it).
func findNextTokenVar(body *tree_sitter.Node, parserVar string, src []byte) (string, bool) {
	var found string
	walk(body, func(n *tree_sitter.Node) {
		if found != "" || n.Kind() != "assignment" {
			return
		}
		lhs := childByField(n, "left")
		rhs := childByField(n, "right")
		if lhs == nil || rhs == nil || lhs.Kind() != "identifier" || rhs.Kind() != "call" {
			return
		}
		fn := childByField(rhs, "function")
		if fn == nil || fn.Kind() != "attribute" {
			return
		}
		object := childByField(fn, "object")
		if object == nil || object.Kind() != "identifier" || nodeText(object, src) != parserVar {
			return
		}
		if nodeText(childByField(fn, "attribute"), src) != "next_token" {
			return
		}
		found = nodeText(lhs, src)
	})
	return found, found != ""
}

// tokenContentLiterals collects every string literal compared against
// `tokenVar.contents` (or `tokenVar.contents.strip()`) anywhere in body.
func tokenContentLiterals(body *tree_sitter.Node, tokenVar string, src []byte) []string {
	var out []string
	walk(body, func(n *tree_sitter.Node) {
		if n.Kind() != "comparison_operator" {
			return
		}
		left := n.NamedChild(0)
		right := n.NamedChild(1)
		if left == nil || right == nil {
			return
		}
		if isTokenContentsExpr(left, tokenVar, src) && right.Kind() == "string" {
			out = append(out, stringLiteralValue(right, src))
		} else if isTokenContentsExpr(right, tokenVar, src) && left.Kind() == "string" {
			out = append(out, stringLiteralValue(left, src))
		}
	})
	return out
}

// isTokenContentsExpr matches `tokenVar.contents` and `tokenVar.contents.strip()`.
func isTokenContentsExpr(n *tree_sitter.Node, tokenVar string, src []byte) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case "attribute":
		object := childByField(n, "object")
		return object != nil && object.Kind() == "identifier" &&
			nodeText(object, src) == tokenVar &&
			nodeText(childByField(n, "attribute"), src) == "contents"
	case "call":
		fn := childByField(n, "function")
		if fn == nil || fn.Kind() != "attribute" {
			return false
		}
		if nodeText(childByField(fn, "attribute"), src) != "strip" {
			return false
		}
		return isTokenContentsExpr(childByField(fn, "object"), tokenVar, src)
	}
	return false
}

// hasDynamicEndTagFormat detects `"end%s" % bits[0]`-shaped expressions,
// which build the expected closer name at runtime rather than comparing
// against a fixed literal (djls-python::blocks::dynamic_end).
func hasDynamicEndTagFormat(body *tree_sitter.Node, src []byte) bool {
	found := false
	walk(body, func(n *tree_sitter.Node) {
		if found || n.Kind() != "binary_operator" {
			return
		}
		var percent bool
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			if c := n.Child(i); c != nil && c.Kind() == "%" {
				percent = true
			}
		}
		if !percent {
			return
		}
		left := childByField(n, "left")
		if left == nil && n.NamedChildCount() > 0 {
			left = n.NamedChild(0)
		}
		if left == nil || left.Kind() != "string" {
			return
		}
		lit := stringLiteralValue(left, src)
		if strings.HasPrefix(lit, "end") && strings.Contains(lit, "%s") {
			found = true
		}
	})
	return found
}
