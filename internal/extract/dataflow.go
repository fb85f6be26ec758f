package extract

import (
	"sort"
	"strconv"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/djls-go/djls/internal/tagspec"
)

// abstractKind discriminates the tracked-value lattice dataflow runs over a
// compile function's body (spec.md §4.8 "Stage 3: Abstract interpretation").
// Mirrors djls-extraction::dataflow::domain::AbstractValue.
type abstractKind int

const (
	avUnknown abstractKind = iota
	avToken
	avParser
	avSplitResult
	avSplitElement
	avSplitLength
	avInt
	avStr
	avTuple
)

type abstractValue struct {
	kind  abstractKind
	front int             // avSplitResult/avSplitLength: elements popped from the front
	back  int             // avSplitResult/avSplitLength: elements popped from the back
	index int             // avSplitElement: resolved position in the original split
	ival  int64           // avInt
	sval  string          // avStr
	elems []abstractValue // avTuple
}

// env maps local variable names to their abstract value for one compile
// function's body.
type env map[string]abstractValue

// buildTagSpec runs the full Stage 1+3 pipeline for a classic
// `register.tag(name, compile_func)` registration.
func buildTagSpec(reg registration, root *tree_sitter.Node, src []byte, module string) *tagspec.Spec {
	spec := &tagspec.Spec{Name: reg.name, Module: module}
	if reg.funcNode == nil {
		return spec
	}
	params := childByField(reg.funcNode, "parameters")
	body := childByField(reg.funcNode, "body")
	if params == nil || body == nil {
		return spec
	}
	names := positionalParamNames(params, src)
	if len(names) < 2 {
		return spec
	}

	e := env{
		names[0]: {kind: avParser},
		names[1]: {kind: avToken},
	}
	d := &dataflow{env: e, src: src}
	d.processBlock(body)

	spec.ExtractedRules = d.rules
	spec.Args = d.extractArgNames()
	spec.KnownOptionsSpec = d.knownOptions
	spec.EndTagSpec, spec.Intermediates = detectBlockShape(reg, body, names[0], names[1], src)
	return spec
}

func positionalParamNames(params *tree_sitter.Node, src []byte) []string {
	var out []string
	count := params.NamedChildCount()
	for i := uint(0); i < count; i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "identifier":
			out = append(out, nodeText(p, src))
		case "default_parameter", "typed_parameter", "typed_default_parameter":
			name := nodeText(childByField(p, "name"), src)
			if name == "" && p.NamedChildCount() > 0 {
				name = nodeText(p.NamedChild(0), src)
			}
			out = append(out, name)
		}
	}
	return out
}

type dataflow struct {
	env          env
	src          []byte
	rules        []tagspec.ExtractedRule
	knownOptions *tagspec.KnownOptions
}

func (d *dataflow) processBlock(block *tree_sitter.Node) {
	count := block.NamedChildCount()
	for i := uint(0); i < count; i++ {
		d.processStatement(block.NamedChild(i))
	}
}

func (d *dataflow) processStatement(stmt *tree_sitter.Node) {
	if stmt == nil {
		return
	}
	switch stmt.Kind() {
	case "expression_statement":
		if assign := stmt.NamedChild(0); assign != nil && assign.Kind() == "assignment" {
			d.processAssignment(assign)
		} else if call := soleCall(stmt); call != nil {
			d.evalExpr(call) // e.g. a bare bits.pop(0) whose value is discarded
		}
	case "if_statement":
		d.processIf(stmt)
	case "match_statement":
		d.processMatch(stmt)
	case "while_statement":
		// while remaining: option = remaining.pop(0); if option == "x": ...
		// (djls-extraction::dataflow::eval::effects::try_extract_option_loop).
		// Its loop variable never represents a genuine positional argument,
		// only a scan over a fixed option vocabulary.
		d.tryOptionLoop(stmt)
	case "for_statement":
		// for-loops over split_contents() don't bind positional arguments.
	}
}

// tryOptionLoop recognizes `while remaining: option = remaining.pop(0)` and
// the if/elif/else chain that follows it, turning it into a
// tagspec.KnownOptions (djls-extraction::dataflow::eval::effects::try_extract_option_loop).
func (d *dataflow) tryOptionLoop(stmt *tree_sitter.Node) {
	cond := childByField(stmt, "condition")
	body := childByField(stmt, "body")
	if cond == nil || body == nil || cond.Kind() != "identifier" {
		return
	}
	loopVar := nodeText(cond, d.src)
	tv := d.evalExpr(cond)
	if tv.kind != avSplitResult && tv.kind != avUnknown {
		return
	}

	optionVar, popStmt, ok := findOptionPop(body, loopVar, d.src)
	if !ok {
		return
	}

	if opts := extractOptionChecks(body, optionVar, popStmt, d.src); opts != nil {
		d.knownOptions = opts
	}
}

// findOptionPop locates `option = <loopVar>.pop(0)` (or `.pop()`) among
// body's direct statements, returning the bound variable name and the
// statement itself so extractOptionChecks can find what follows it.
func findOptionPop(body *tree_sitter.Node, loopVar string, src []byte) (optionVar string, popStmt *tree_sitter.Node, ok bool) {
	count := body.NamedChildCount()
	for i := uint(0); i < count; i++ {
		stmt := body.NamedChild(i)
		if stmt == nil || stmt.Kind() != "expression_statement" {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign == nil || assign.Kind() != "assignment" {
			continue
		}
		lhs := childByField(assign, "left")
		rhs := childByField(assign, "right")
		if lhs == nil || rhs == nil || lhs.Kind() != "identifier" || rhs.Kind() != "call" {
			continue
		}
		fn := childByField(rhs, "function")
		if fn == nil || fn.Kind() != "attribute" {
			continue
		}
		object := childByField(fn, "object")
		method := nodeText(childByField(fn, "attribute"), src)
		if method != "pop" || object == nil || object.Kind() != "identifier" || nodeText(object, src) != loopVar {
			continue
		}
		return nodeText(lhs, src), stmt, true
	}
	return "", nil, false
}

// extractOptionChecks walks the if/elif/else chain immediately following
// popStmt, collecting `option == "lit"` branches as known values, an
// `option in <seen>` branch as a duplicate-rejection marker, and a trailing
// `else: raise TemplateSyntaxError(...)` as an unknown-option rejection.
func extractOptionChecks(body *tree_sitter.Node, optionVar string, popStmt *tree_sitter.Node, src []byte) *tagspec.KnownOptions {
	count := body.NamedChildCount()
	var ifStmt *tree_sitter.Node
	afterPop := false
	for i := uint(0); i < count; i++ {
		stmt := body.NamedChild(i)
		if stmt == popStmt {
			afterPop = true
			continue
		}
		if afterPop && stmt != nil && stmt.Kind() == "if_statement" {
			ifStmt = stmt
			break
		}
	}
	if ifStmt == nil {
		return nil
	}

	opts := &tagspec.KnownOptions{AllowDuplicates: true}
	var values []string
	seen := map[string]bool{}

	var walkChain func(clause *tree_sitter.Node)
	walkChain = func(clause *tree_sitter.Node) {
		if clause == nil {
			return
		}
		switch clause.Kind() {
		case "if_statement", "elif_clause":
			cond := childByField(clause, "condition")
			if lit, ok := optionEqualityLiteral(cond, optionVar, src); ok {
				if !seen[lit] {
					seen[lit] = true
					values = append(values, lit)
				}
			} else if isOptionDuplicateCheck(cond, optionVar, src) {
				opts.AllowDuplicates = false
			}
			walkChain(clause.ChildByFieldName("alternative"))
		case "else_clause":
			if cons := childByField(clause, "body"); cons != nil && raisesTemplateSyntaxError(cons) {
				opts.RejectsUnknown = true
			} else if cons := childByField(clause, "consequence"); cons != nil && raisesTemplateSyntaxError(cons) {
				opts.RejectsUnknown = true
			}
		}
	}
	walkChain(ifStmt)

	if len(values) == 0 {
		return nil
	}
	sort.Strings(values)
	opts.Values = values
	return opts
}

// optionEqualityLiteral reports the literal a `optionVar == "lit"` guard
// compares against, in either operand order.
func optionEqualityLiteral(cond *tree_sitter.Node, optionVar string, src []byte) (string, bool) {
	if cond == nil || cond.Kind() != "comparison_operator" || comparisonOp(cond) != "==" {
		return "", false
	}
	left := cond.NamedChild(0)
	right := cond.NamedChild(1)
	if left == nil || right == nil {
		return "", false
	}
	if left.Kind() == "identifier" && nodeText(left, src) == optionVar && right.Kind() == "string" {
		return stringLiteralValue(right, src), true
	}
	if right.Kind() == "identifier" && nodeText(right, src) == optionVar && left.Kind() == "string" {
		return stringLiteralValue(left, src), true
	}
	return "", false
}

// isOptionDuplicateCheck reports whether cond is `optionVar in <something>`,
// the idiom used to reject an option seen twice.
func isOptionDuplicateCheck(cond *tree_sitter.Node, optionVar string, src []byte) bool {
	if cond == nil || cond.Kind() != "comparison_operator" || comparisonOp(cond) != "in" {
		return false
	}
	left := cond.NamedChild(0)
	return left != nil && left.Kind() == "identifier" && nodeText(left, src) == optionVar
}

func (d *dataflow) processAssignment(assign *tree_sitter.Node) {
	lhs := childByField(assign, "left")
	rhs := childByField(assign, "right")
	if lhs == nil || rhs == nil {
		return
	}
	if lhs.Kind() == "identifier" {
		name := nodeText(lhs, d.src)
		d.env[name] = d.evalExpr(rhs)
		return
	}
	if targets, ok := tupleTargets(lhs); ok {
		d.bindTuple(targets, d.evalExpr(rhs))
	}
}

// tupleTargets returns the named children of a tuple-unpacking LHS
// (`tag_name, value, var = bits`), which tree-sitter-python represents as
// either a pattern_list or a parenthesized tuple_pattern depending on
// whether the targets are wrapped in parens.
func tupleTargets(lhs *tree_sitter.Node) ([]*tree_sitter.Node, bool) {
	switch lhs.Kind() {
	case "pattern_list", "tuple_pattern":
		count := lhs.NamedChildCount()
		out := make([]*tree_sitter.Node, 0, count)
		for i := uint(0); i < count; i++ {
			out = append(out, lhs.NamedChild(i))
		}
		return out, true
	}
	return nil, false
}

// bindTuple projects a tuple-unpacking assignment's RHS onto its targets.
// When the RHS is a SplitResult, each target by forward position becomes
// the SplitElement that position would resolve to, matching the single
// subscript/pop projection rule (spec.md §4.8's tuple-unpacking bullet).
func (d *dataflow) bindTuple(targets []*tree_sitter.Node, rv abstractValue) {
	for i, t := range targets {
		if t == nil || t.Kind() != "identifier" {
			continue
		}
		name := nodeText(t, d.src)
		switch rv.kind {
		case avSplitResult:
			d.env[name] = abstractValue{kind: avSplitElement, index: rv.front + i}
		case avTuple:
			if i < len(rv.elems) {
				d.env[name] = rv.elems[i]
			} else {
				d.env[name] = abstractValue{kind: avUnknown}
			}
		default:
			d.env[name] = abstractValue{kind: avUnknown}
		}
	}
}

func (d *dataflow) evalExpr(n *tree_sitter.Node) abstractValue {
	if n == nil {
		return abstractValue{kind: avUnknown}
	}
	switch n.Kind() {
	case "identifier":
		if v, ok := d.env[nodeText(n, d.src)]; ok {
			return v
		}
		return abstractValue{kind: avUnknown}
	case "integer":
		i, _ := strconv.ParseInt(nodeText(n, d.src), 10, 64)
		return abstractValue{kind: avInt, ival: i}
	case "string":
		return abstractValue{kind: avStr, sval: stringLiteralValue(n, d.src)}
	case "call":
		return d.evalCall(n)
	case "subscript":
		return d.evalSubscript(n)
	case "tuple":
		count := n.NamedChildCount()
		elems := make([]abstractValue, 0, count)
		for i := uint(0); i < count; i++ {
			elems = append(elems, d.evalExpr(n.NamedChild(i)))
		}
		return abstractValue{kind: avTuple, elems: elems}
	}
	return abstractValue{kind: avUnknown}
}

func (d *dataflow) evalCall(n *tree_sitter.Node) abstractValue {
	fn := childByField(n, "function")
	args := childByField(n, "arguments")
	if fn == nil {
		return abstractValue{kind: avUnknown}
	}
	switch fn.Kind() {
	case "attribute":
		object := childByField(fn, "object")
		method := nodeText(childByField(fn, "attribute"), d.src)
		ov := d.evalExpr(object)
		switch method {
		case "split_contents":
			return abstractValue{kind: avSplitResult}
		case "pop":
			if ov.kind != avSplitResult {
				return abstractValue{kind: avUnknown}
			}
			if args != nil && args.NamedChildCount() > 0 {
				ov.front++
			} else {
				ov.back++
			}
			if object.Kind() == "identifier" {
				d.env[nodeText(object, d.src)] = ov
			}
			return abstractValue{kind: avSplitElement, index: ov.front - 1}
		}
	case "identifier":
		name := nodeText(fn, d.src)
		if name == "len" && args != nil && args.NamedChildCount() == 1 {
			v := d.evalExpr(args.NamedChild(0))
			if v.kind == avSplitResult {
				return abstractValue{kind: avSplitLength, front: v.front, back: v.back}
			}
		}
		if name == "list" && args != nil && args.NamedChildCount() == 1 {
			return d.evalExpr(args.NamedChild(0))
		}
	}
	return abstractValue{kind: avUnknown}
}

func (d *dataflow) evalSubscript(n *tree_sitter.Node) abstractValue {
	object := childByField(n, "value")
	sub := childByField(n, "subscript")
	ov := d.evalExpr(object)
	if ov.kind != avSplitResult || sub == nil {
		return abstractValue{kind: avUnknown}
	}
	switch sub.Kind() {
	case "integer":
		i, _ := strconv.ParseInt(nodeText(sub, d.src), 10, 64)
		return abstractValue{kind: avSplitElement, index: ov.front + int(i)}
	case "slice":
		return evalSlice(ov, sub, d.src)
	}
	// e.g. bits[-1]: negative indices from the end don't map to a fixed
	// forward position without knowing the length, so they stay Unknown.
	return abstractValue{kind: avUnknown}
}

// evalSlice projects a slice of a SplitResult onto the four forms compile
// functions actually use (spec.md §4.8 "Subscript x[i]"): x[n:] drops n
// elements from the front, x[:-n] drops n from the back, x[:] is identity,
// and x[:n] (a positive, non-negated stop) merely bounds how far forward the
// slice reaches without changing what position 0 of it maps back to, so it
// is also an identity for position-tracking purposes. A step, or a stop that
// isn't a literal integer, isn't representable and falls back to Unknown.
func evalSlice(ov abstractValue, slice *tree_sitter.Node, src []byte) abstractValue {
	start := childByField(slice, "start")
	stop := childByField(slice, "stop")
	step := childByField(slice, "step")
	if step != nil {
		return abstractValue{kind: avUnknown}
	}
	switch {
	case start == nil && stop == nil:
		return ov
	case start != nil && stop == nil:
		if k, ok := intLiteral(start, src); ok && k >= 0 {
			ov.front += k
			return ov
		}
	case start == nil && stop != nil:
		if k, ok := intLiteral(stop, src); ok {
			if k < 0 {
				ov.back += -k
			}
			return ov
		}
	}
	return abstractValue{kind: avUnknown}
}

// intLiteral evaluates a (possibly negated) integer literal — tree-sitter-python
// represents `-1` as a unary_operator wrapping an integer, not a single token.
func intLiteral(n *tree_sitter.Node, src []byte) (int, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Kind() {
	case "integer":
		i, err := strconv.ParseInt(nodeText(n, src), 10, 64)
		return int(i), err == nil
	case "unary_operator":
		operand := childByField(n, "argument")
		if operand == nil {
			operand = childByField(n, "operand")
		}
		if operand == nil && n.NamedChildCount() > 0 {
			operand = n.NamedChild(n.NamedChildCount() - 1)
		}
		v, ok := intLiteral(operand, src)
		if !ok {
			return 0, false
		}
		neg := false
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			if c := n.Child(i); c != nil && c.Kind() == "-" {
				neg = true
			}
		}
		if neg {
			return -v, true
		}
		return v, true
	}
	return 0, false
}

// processIf recognizes `if <guard>: raise TemplateSyntaxError(...)` and
// turns the guard into an ExtractedRule, the inverse of the runtime check
// (spec.md §4.8 "Guards to constraints").
func (d *dataflow) processIf(stmt *tree_sitter.Node) {
	cond := childByField(stmt, "condition")
	body := childByField(stmt, "consequence")
	if cond == nil || body == nil || !raisesTemplateSyntaxError(body) {
		d.walkNonGuardIf(stmt)
		return
	}
	if rule, ok := guardToRule(cond, d); ok {
		d.rules = append(d.rules, rule)
	}
}

// walkNonGuardIf still threads assignments inside a plain (non-guard) if
// branch into the environment, since compile functions sometimes branch on
// `if len(bits) == N:` to assign optional variables.
func (d *dataflow) walkNonGuardIf(stmt *tree_sitter.Node) {
	if body := childByField(stmt, "consequence"); body != nil {
		d.processBlock(body)
	}
	alt := stmt.ChildByFieldName("alternative")
	if alt != nil {
		d.processStatement(alt)
	}
}

func raisesTemplateSyntaxError(block *tree_sitter.Node) bool {
	found := false
	walk(block, func(n *tree_sitter.Node) {
		if n.Kind() == "raise_statement" {
			found = true
		}
	})
	return found
}

// guardToRule inverts a single comparison guard into the ExtractedRule that
// makes it pass, e.g. `len(bits) != 3` guarding a raise becomes RuleExact 3.
func guardToRule(cond *tree_sitter.Node, d *dataflow) (tagspec.ExtractedRule, bool) {
	if cond.Kind() != "comparison_operator" {
		return tagspec.ExtractedRule{}, false
	}
	left := cond.NamedChild(0)
	right := cond.NamedChild(1)
	if left == nil || right == nil {
		return tagspec.ExtractedRule{}, false
	}
	op := comparisonOp(cond)
	if op == "" {
		return tagspec.ExtractedRule{}, false
	}

	lv := d.evalExpr(left)
	rv := d.evalExpr(right)

	if lv.kind == avSplitLength && rv.kind == avInt {
		return lengthGuardToRule(op, lv, int(rv.ival))
	}
	if rv.kind == avSplitLength && lv.kind == avInt {
		return lengthGuardToRule(invertOp(op), rv, int(lv.ival))
	}
	if lv.kind == avSplitElement && rv.kind == avStr {
		return tagspec.ExtractedRule{Kind: tagspec.RuleRequiredKeyword, Position: lv.index, Value: rv.sval}, op == "!="
	}
	if rv.kind == avSplitElement && lv.kind == avStr {
		return tagspec.ExtractedRule{Kind: tagspec.RuleRequiredKeyword, Position: rv.index, Value: lv.sval}, op == "!="
	}
	// `split[k] not in ("a", "b")` guarding a raise means valid programs
	// restrict position k to that literal set (spec.md §4.8 ChoiceAt).
	if lv.kind == avSplitElement {
		if choices, ok := literalChoices(rv); ok {
			return tagspec.ExtractedRule{Kind: tagspec.RuleChoiceAt, Position: lv.index, Choices: choices}, op == "not in"
		}
	}
	if rv.kind == avSplitElement {
		if choices, ok := literalChoices(lv); ok {
			return tagspec.ExtractedRule{Kind: tagspec.RuleChoiceAt, Position: rv.index, Choices: choices}, op == "not in"
		}
	}
	return tagspec.ExtractedRule{}, false
}

// literalChoices reports whether v is a tuple of string literals, returning
// its values sorted alphabetically (spec.md §4.8 requires ChoiceAt.Choices
// alphabetized so repeated extraction is deterministic).
func literalChoices(v abstractValue) ([]string, bool) {
	if v.kind != avTuple || len(v.elems) == 0 {
		return nil, false
	}
	choices := make([]string, 0, len(v.elems))
	for _, e := range v.elems {
		if e.kind != avStr {
			return nil, false
		}
		choices = append(choices, e.sval)
	}
	sort.Strings(choices)
	return choices, true
}

// lengthGuardToRule inverts `len(bits) <op> n` (a guard whose truth raises
// an error) into the rule describing valid lengths.
func lengthGuardToRule(op string, lv abstractValue, n int) (tagspec.ExtractedRule, bool) {
	total := n + lv.front + lv.back
	switch op {
	case "!=":
		return tagspec.ExtractedRule{Kind: tagspec.RuleExact, N: total}, true
	case "<":
		return tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: total}, true
	case "<=":
		return tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: total + 1}, true
	case ">":
		return tagspec.ExtractedRule{Kind: tagspec.RuleMax, N: total}, true
	case ">=":
		return tagspec.ExtractedRule{Kind: tagspec.RuleMax, N: total - 1}, true
	}
	return tagspec.ExtractedRule{}, false
}

func invertOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}

// comparisonOp returns a comparison_operator node's operator text.
// tree-sitter-python exposes `in`/`not in` as two separate unnamed sibling
// tokens ("not" then "in") rather than one, unlike the single-token
// relational operators.
func comparisonOp(cond *tree_sitter.Node) string {
	hasNot, hasIn := false, false
	count := cond.ChildCount()
	for i := uint(0); i < count; i++ {
		c := cond.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "!=", "==", "<", "<=", ">", ">=":
			return c.Kind()
		case "not":
			hasNot = true
		case "in":
			hasIn = true
		}
	}
	switch {
	case hasIn && hasNot:
		return "not in"
	case hasIn:
		return "in"
	}
	return ""
}

// matchCaseShape is one case_clause's pattern, reduced to what
// processMatch needs: how many positions it fixes (or the minimum it
// guarantees, for a starred pattern) and, for a fixed-length pattern, the
// element nodes themselves so required keywords can be read off them.
type matchCaseShape struct {
	fixed    bool
	length   int
	variable bool
	minLen   int
	elems    []*tree_sitter.Node
}

type fixedMatchCase struct {
	length int
	elems  []*tree_sitter.Node
}

// processMatch turns `match token.split_contents(): case [...]: ...` into
// length and required-keyword ExtractedRules (djls-python's
// dataflow::eval::match_arms::extract_match_constraints). Only cases whose
// body doesn't raise TemplateSyntaxError, and that carry no extra `if`
// guard, count toward the valid shapes.
func (d *dataflow) processMatch(stmt *tree_sitter.Node) {
	subject := childByField(stmt, "subject")
	if subject == nil {
		subject = stmt.NamedChild(0)
	}
	sv := d.evalExpr(subject)
	if sv.kind != avSplitResult {
		return
	}

	var validLengths []int
	hasVariable := false
	var fixedCases []fixedMatchCase

	count := stmt.NamedChildCount()
	for i := uint(0); i < count; i++ {
		clause := stmt.NamedChild(i)
		if clause == nil || clause.Kind() != "case_clause" {
			continue
		}
		if childByField(clause, "guard") != nil {
			continue
		}
		if body := caseConsequence(clause); body != nil && raisesTemplateSyntaxError(body) {
			continue
		}
		shape, ok := classifyCasePattern(casePattern(clause))
		if !ok {
			continue
		}
		switch {
		case shape.fixed:
			validLengths = append(validLengths, sv.front+sv.back+shape.length)
			fixedCases = append(fixedCases, fixedMatchCase{length: shape.length, elems: shape.elems})
		case shape.variable:
			hasVariable = true
			validLengths = append(validLengths, sv.front+sv.back+shape.minLen)
		}
	}
	if len(validLengths) == 0 {
		return
	}

	sort.Ints(validLengths)
	if hasVariable {
		d.rules = append(d.rules, tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: validLengths[0]})
	} else if unique := dedupSortedInts(validLengths); len(unique) == 1 {
		d.rules = append(d.rules, tagspec.ExtractedRule{Kind: tagspec.RuleExact, N: unique[0]})
	} else {
		d.rules = append(d.rules, tagspec.ExtractedRule{Kind: tagspec.RuleOneOf, OneOf: unique})
	}

	byLength := map[int][]fixedMatchCase{}
	for _, fc := range fixedCases {
		byLength[fc.length] = append(byLength[fc.length], fc)
	}
	var groupLengths []int
	for l := range byLength {
		groupLengths = append(groupLengths, l)
	}
	sort.Ints(groupLengths)
	for _, l := range groupLengths {
		cases := byLength[l]
		for pos := 0; pos < l; pos++ {
			if sv.front+pos == 0 {
				continue // the tag name slot, never a meaningful required keyword
			}
			if lit, ok := agreeingCaseLiteral(cases, pos, d.src); ok {
				d.rules = append(d.rules, tagspec.ExtractedRule{
					Kind: tagspec.RuleRequiredKeyword, Position: sv.front + pos, Value: lit,
				})
			}
		}
	}
}

// casePattern returns a case_clause's pattern node.
func casePattern(clause *tree_sitter.Node) *tree_sitter.Node {
	if p := childByField(clause, "pattern"); p != nil {
		return p
	}
	if p := childByField(clause, "patterns"); p != nil {
		return p
	}
	return clause.NamedChild(0)
}

// caseConsequence returns a case_clause's body block.
func caseConsequence(clause *tree_sitter.Node) *tree_sitter.Node {
	if b := childByField(clause, "consequence"); b != nil {
		return b
	}
	if b := childByField(clause, "body"); b != nil {
		return b
	}
	if n := clause.NamedChildCount(); n > 0 {
		return clause.NamedChild(n - 1)
	}
	return nil
}

// classifyCasePattern reduces one match pattern to a matchCaseShape: a
// bracketed/bare sequence pattern with no star is Fixed at its element
// count; one containing a star pattern is Variable at its non-star count;
// a bare capture pattern (including the wildcard `_`) matches any length,
// so it is Variable with a minimum of zero. Anything else (a literal,
// class pattern, mapping pattern, ...) is left unclassified and ignored.
func classifyCasePattern(pat *tree_sitter.Node) (matchCaseShape, bool) {
	if pat == nil {
		return matchCaseShape{}, false
	}
	switch pat.Kind() {
	case "list_pattern", "tuple_pattern", "pattern_list":
		count := pat.NamedChildCount()
		var elems []*tree_sitter.Node
		hasStar := false
		for i := uint(0); i < count; i++ {
			c := pat.NamedChild(i)
			if c == nil {
				continue
			}
			if isSplatPattern(c) {
				hasStar = true
				continue
			}
			elems = append(elems, c)
		}
		if hasStar {
			return matchCaseShape{variable: true, minLen: len(elems)}, true
		}
		return matchCaseShape{fixed: true, length: len(elems), elems: elems}, true
	case "identifier":
		return matchCaseShape{variable: true, minLen: 0}, true
	}
	return matchCaseShape{}, false
}

func isSplatPattern(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "splat_pattern", "list_splat_pattern":
		return true
	}
	return false
}

// agreeingCaseLiteral reports the string literal every case in cases
// carries at pattern position pos, if they all carry the identical literal
// there; "" and false otherwise (match_arms::extract_keywords_from_valid_cases).
func agreeingCaseLiteral(cases []fixedMatchCase, pos int, src []byte) (string, bool) {
	var lit string
	for i, fc := range cases {
		if pos >= len(fc.elems) {
			return "", false
		}
		v, ok := patternStringLiteral(fc.elems[pos], src)
		if !ok {
			return "", false
		}
		if i == 0 {
			lit = v
		} else if v != lit {
			return "", false
		}
	}
	return lit, true
}

func patternStringLiteral(n *tree_sitter.Node, src []byte) (string, bool) {
	if n != nil && n.Kind() == "string" {
		return stringLiteralValue(n, src), true
	}
	return "", false
}

// dedupSortedInts collapses consecutive duplicates in an already-sorted slice.
func dedupSortedInts(sorted []int) []int {
	out := make([]int, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// extractArgNames reconstructs positional TagArg entries from every
// SplitElement binding left in the environment after dataflow analysis,
// skipping position 0 (the tag name itself).
func (d *dataflow) extractArgNames() []tagspec.TagArg {
	type named struct {
		pos  int
		name string
	}
	var positions []named
	for name, v := range d.env {
		if v.kind == avSplitElement && v.index > 0 {
			positions = append(positions, named{pos: v.index, name: name})
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].pos != positions[j].pos {
			return positions[i].pos < positions[j].pos
		}
		return positions[i].name < positions[j].name
	})
	args := make([]tagspec.TagArg, 0, len(positions))
	for _, p := range positions {
		args = append(args, tagspec.TagArg{Kind: tagspec.ArgVar, Name: p.name, Required: true})
	}
	return args
}
