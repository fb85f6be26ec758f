package tagspec

// Builtins returns a registry seeded with Django's own template-tag and
// filter shapes, hand-written the way the Python extractor would have
// derived them had it run against django/template/defaulttags.py and
// defaultfilters.py. This registry is both the test fixture for the rest
// of the engine and the fallback used before the inspector/extractor have
// produced a project-specific one (spec.md §4.7).
func Builtins() *Registry {
	r := NewRegistry()

	r.AddTag(&Spec{
		Name: "if",
		Args: []TagArg{{Kind: ArgExpr, Name: "condition", Required: true}},
		EndTagSpec: &EndTag{Name: "endif", Optional: false},
		Intermediates: []Intermediate{
			{Name: "elif", Args: []TagArg{{Kind: ArgExpr, Name: "condition", Required: true}}, Repeatable: true},
			{Name: "else", Repeatable: false},
		},
		ExtractedRules: []ExtractedRule{{Kind: RuleMin, N: 2}},
	})

	r.AddTag(&Spec{
		Name: "for",
		Args: []TagArg{
			{Kind: ArgAssignment, Name: "item", Required: true},
			{Kind: ArgLiteral, Name: "in", Required: true},
			{Kind: ArgVar, Name: "iterable", Required: true},
		},
		EndTagSpec:    &EndTag{Name: "endfor", Optional: false},
		Intermediates: []Intermediate{{Name: "empty", Repeatable: false}},
		ExtractedRules: []ExtractedRule{
			{Kind: RuleMin, N: 4},
			{Kind: RuleRequiredKeyword, Position: 2, Value: "in"},
		},
	})

	r.AddTag(&Spec{
		Name: "block",
		Args: []TagArg{{Kind: ArgVar, Name: "name", Required: true}},
		EndTagSpec: &EndTag{
			Name:                "endblock",
			Optional:            false,
			MustMatchOpenerName: true,
			Args:                []TagArg{{Kind: ArgVar, Name: "name", Required: false}},
		},
		ExtractedRules: []ExtractedRule{{Kind: RuleExact, N: 2}},
	})

	r.AddTag(&Spec{
		Name:           "extends",
		Args:           []TagArg{{Kind: ArgString, Name: "parent_name", Required: true}},
		ExtractedRules: []ExtractedRule{{Kind: RuleExact, N: 2}},
	})

	r.AddTag(&Spec{
		Name: "load",
		Args: []TagArg{{Kind: ArgVarArgs, Name: "libraries"}},
		ExtractedRules: []ExtractedRule{{Kind: RuleMin, N: 2}},
	})

	r.AddTag(&Spec{
		Name:       "comment",
		EndTagSpec: &EndTag{Name: "endcomment", Optional: false},
		Opaque:     true,
	})

	r.AddTag(&Spec{
		Name:       "verbatim",
		Args:       []TagArg{{Kind: ArgString, Name: "name", Required: false}},
		EndTagSpec: &EndTag{Name: "endverbatim", Optional: false, MustMatchOpenerName: false},
		Opaque:     true,
	})

	r.AddTag(&Spec{
		Name:       "with",
		Args:       []TagArg{{Kind: ArgAssignment, Name: "assignments", Required: true}},
		EndTagSpec: &EndTag{Name: "endwith", Optional: false},
		ExtractedRules: []ExtractedRule{{Kind: RuleMin, N: 2}},
		KnownOptionsSpec: nil,
	})

	r.AddTag(&Spec{
		Name: "autoescape",
		Args: []TagArg{{Kind: ArgChoice, Name: "setting", Required: true, Choices: []string{"off", "on"}}},
		EndTagSpec:     &EndTag{Name: "endautoescape", Optional: false},
		ExtractedRules: []ExtractedRule{{Kind: RuleExact, N: 2}, {Kind: RuleChoiceAt, Position: 1, Choices: []string{"off", "on"}}},
	})

	r.AddTag(&Spec{
		Name:           "spaceless",
		EndTagSpec:     &EndTag{Name: "endspaceless", Optional: false},
		ExtractedRules: []ExtractedRule{{Kind: RuleExact, N: 1}},
	})

	r.AddTag(&Spec{
		Name:       "filter",
		Args:       []TagArg{{Kind: ArgVarArgs, Name: "filters"}},
		EndTagSpec: &EndTag{Name: "endfilter", Optional: false},
		ExtractedRules: []ExtractedRule{{Kind: RuleMin, N: 2}},
	})

	r.AddTag(&Spec{
		Name:          "ifchanged",
		Args:          []TagArg{{Kind: ArgVarArgs, Name: "variables"}},
		EndTagSpec:    &EndTag{Name: "endifchanged", Optional: false},
		Intermediates: []Intermediate{{Name: "else", Repeatable: false}},
	})

	r.AddTag(&Spec{
		Name: "cycle",
		Args: []TagArg{{Kind: ArgVarArgs, Name: "values"}},
		ExtractedRules: []ExtractedRule{{Kind: RuleMin, N: 2}},
		KnownOptionsSpec: &KnownOptions{Values: []string{"as", "silent"}, AllowDuplicates: false, RejectsUnknown: false},
	})

	r.AddTag(&Spec{
		Name:           "firstof",
		Args:           []TagArg{{Kind: ArgVarArgs, Name: "variables"}},
		ExtractedRules: []ExtractedRule{{Kind: RuleMin, N: 2}},
	})

	r.AddTag(&Spec{
		Name:           "now",
		Args:           []TagArg{{Kind: ArgString, Name: "format_string", Required: true}},
		ExtractedRules: []ExtractedRule{{Kind: RuleOneOf, OneOf: []int{2, 4}}, {Kind: RuleRequiredKeyword, Position: 2, Value: "as"}},
	})

	r.AddTag(&Spec{
		Name: "widthratio",
		Args: []TagArg{
			{Kind: ArgVar, Name: "value", Required: true},
			{Kind: ArgVar, Name: "max_value", Required: true},
			{Kind: ArgVar, Name: "max_width", Required: true},
		},
		ExtractedRules: []ExtractedRule{{Kind: RuleOneOf, OneOf: []int{4, 6}}, {Kind: RuleRequiredKeyword, Position: 4, Value: "as"}},
	})

	r.AddTag(&Spec{
		Name:             "include",
		Args:             []TagArg{{Kind: ArgVar, Name: "template_name", Required: true}},
		ExtractedRules:   []ExtractedRule{{Kind: RuleMin, N: 2}},
		KnownOptionsSpec: &KnownOptions{Values: []string{"with", "only"}, AllowDuplicates: true, RejectsUnknown: true},
	})

	r.AddTag(&Spec{
		Name:           "templatetag",
		Args:           []TagArg{{Kind: ArgChoice, Name: "tagname", Required: true, Choices: []string{"openblock", "closeblock", "openvariable", "closevariable", "openbrace", "closebrace", "opencomment", "closecomment"}}},
		ExtractedRules: []ExtractedRule{{Kind: RuleExact, N: 2}},
	})

	r.AddTag(&Spec{
		Name:           "regroup",
		Args:           []TagArg{{Kind: ArgVar, Name: "target"}, {Kind: ArgLiteral, Name: "by"}, {Kind: ArgVar, Name: "attribute"}, {Kind: ArgLiteral, Name: "as"}, {Kind: ArgVar, Name: "var_name"}},
		ExtractedRules: []ExtractedRule{{Kind: RuleExact, N: 6}, {Kind: RuleRequiredKeyword, Position: 2, Value: "by"}, {Kind: RuleRequiredKeyword, Position: 4, Value: "as"}},
	})

	builtinFilters := map[string]FilterArity{
		"add":               {ExpectsArg: true, ArgOptional: false},
		"addslashes":        {ExpectsArg: false},
		"capfirst":          {ExpectsArg: false},
		"center":            {ExpectsArg: true, ArgOptional: false},
		"cut":               {ExpectsArg: true, ArgOptional: false},
		"date":              {ExpectsArg: true, ArgOptional: true},
		"default":           {ExpectsArg: true, ArgOptional: false},
		"default_if_none":   {ExpectsArg: true, ArgOptional: false},
		"dictsort":          {ExpectsArg: true, ArgOptional: false},
		"divisibleby":       {ExpectsArg: true, ArgOptional: false},
		"escape":            {ExpectsArg: false},
		"escapejs":          {ExpectsArg: false},
		"filesizeformat":    {ExpectsArg: false},
		"first":             {ExpectsArg: false},
		"floatformat":       {ExpectsArg: true, ArgOptional: true},
		"get_digit":         {ExpectsArg: true, ArgOptional: false},
		"join":              {ExpectsArg: true, ArgOptional: false},
		"json_script":       {ExpectsArg: true, ArgOptional: true},
		"last":              {ExpectsArg: false},
		"length":            {ExpectsArg: false},
		"length_is":         {ExpectsArg: true, ArgOptional: false},
		"linebreaks":        {ExpectsArg: false},
		"linebreaksbr":      {ExpectsArg: false},
		"linenumbers":       {ExpectsArg: false},
		"ljust":             {ExpectsArg: true, ArgOptional: false},
		"lower":             {ExpectsArg: false},
		"make_list":         {ExpectsArg: false},
		"pluralize":         {ExpectsArg: true, ArgOptional: true},
		"random":            {ExpectsArg: false},
		"rjust":             {ExpectsArg: true, ArgOptional: false},
		"safe":              {ExpectsArg: false},
		"slice":             {ExpectsArg: true, ArgOptional: false},
		"slugify":           {ExpectsArg: false},
		"stringformat":      {ExpectsArg: true, ArgOptional: false},
		"striptags":         {ExpectsArg: false},
		"time":              {ExpectsArg: true, ArgOptional: true},
		"timesince":         {ExpectsArg: true, ArgOptional: true},
		"timeuntil":         {ExpectsArg: true, ArgOptional: true},
		"title":             {ExpectsArg: false},
		"truncatechars":     {ExpectsArg: true, ArgOptional: false},
		"truncatewords":     {ExpectsArg: true, ArgOptional: false},
		"truncatewords_html": {ExpectsArg: true, ArgOptional: false},
		"unordered_list":    {ExpectsArg: false},
		"upper":             {ExpectsArg: false},
		"urlencode":         {ExpectsArg: true, ArgOptional: true},
		"urlize":            {ExpectsArg: false},
		"urlizetrunc":       {ExpectsArg: true, ArgOptional: false},
		"wordcount":         {ExpectsArg: false},
		"wordwrap":          {ExpectsArg: true, ArgOptional: false},
		"yesno":             {ExpectsArg: true, ArgOptional: true},
	}
	for name, arity := range builtinFilters {
		arity.Module = "django.template.defaultfilters"
		r.AddFilter(name, arity)
	}

	return r
}
