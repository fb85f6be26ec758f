package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/tagspec"
)

const simpleTagSource = `
from django import template
register = template.Library()

@register.simple_tag
def hello(name):
    return "hi " + name
`

func TestExtractSimpleTagArity(t *testing.T) {
	mod, err := Extract("tags.py", []byte(simpleTagSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	assert.Equal(t, "hello", spec.Name)
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: 2})
}

const filterSource = `
from django import template
register = template.Library()

@register.filter
def shout(value):
    return value.upper()

@register.filter
def repeat(value, times):
    return value * times
`

func TestExtractFilterArity(t *testing.T) {
	mod, err := Extract("filters.py", []byte(filterSource))
	require.NoError(t, err)
	require.Contains(t, mod.Filters, "shout")
	require.Contains(t, mod.Filters, "repeat")
	assert.False(t, mod.Filters["shout"].ExpectsArg)
	assert.True(t, mod.Filters["repeat"].ExpectsArg)
}

const compileFnSource = `
from django import template
register = template.Library()

def do_greet(parser, token):
    bits = token.split_contents()
    if len(bits) != 2:
        raise template.TemplateSyntaxError("greet takes one argument")
    name = bits[1]
    return GreetNode(name)

register.tag("greet", do_greet)
`

func TestExtractTagExactArity(t *testing.T) {
	mod, err := Extract("tags.py", []byte(compileFnSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	assert.Equal(t, "greet", spec.Name)
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{Kind: tagspec.RuleExact, N: 2})
}

const requiredKeywordSource = `
from django import template
register = template.Library()

def do_cycle_for(parser, token):
    bits = token.split_contents()
    if bits[1] != "in":
        raise template.TemplateSyntaxError("expected 'in'")
    return LoopNode()

register.tag("loopfor", do_cycle_for)
`

func TestExtractTagRequiredKeyword(t *testing.T) {
	mod, err := Extract("tags.py", []byte(requiredKeywordSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{Kind: tagspec.RuleRequiredKeyword, Position: 1, Value: "in"})
}

const takesContextSource = `
from django import template
register = template.Library()

@register.simple_tag(takes_context=True)
def show_user(context, label):
    return context["user"]
`

func TestExtractSimpleTagTakesContextSkipsContextParam(t *testing.T) {
	mod, err := Extract("tags.py", []byte(takesContextSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	var names []string
	for _, a := range spec.Args {
		if a.Kind == tagspec.ArgVar {
			names = append(names, a.Name)
		}
	}
	assert.Equal(t, []string{"label", "varname"}, names)
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{Kind: tagspec.RuleMin, N: 2})
}

const tupleUnpackSource = `
from django import template
register = template.Library()

def do_assign(parser, token):
    bits = token.split_contents()
    tag_name, target, value = bits
    return AssignNode(target, value)

register.tag("assign", do_assign)
`

func TestExtractTagTupleUnpackBindsPositions(t *testing.T) {
	mod, err := Extract("tags.py", []byte(tupleUnpackSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	var names []string
	for _, a := range spec.Args {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"target", "value"}, names)
}

const sliceFrontSource = `
from django import template
register = template.Library()

def do_list(parser, token):
    bits = token.split_contents()
    rest = bits[1:]
    first = rest[0]
    return ListNode(first)

register.tag("mylist", do_list)
`

func TestExtractTagForwardSliceTracksPosition(t *testing.T) {
	mod, err := Extract("tags.py", []byte(sliceFrontSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	require.Len(t, spec.Args, 1)
	assert.Equal(t, "first", spec.Args[0].Name)
}

const choiceAtSource = `
from django import template
register = template.Library()

def do_autoescape(parser, token):
    bits = token.split_contents()
    if bits[1] not in ("on", "off"):
        raise template.TemplateSyntaxError("expected 'on' or 'off'")
    return AutoescapeNode(bits[1])

register.tag("myautoescape", do_autoescape)
`

func TestExtractTagNotInMembershipProducesChoiceAt(t *testing.T) {
	mod, err := Extract("tags.py", []byte(choiceAtSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{
		Kind: tagspec.RuleChoiceAt, Position: 1, Choices: []string{"off", "on"},
	})
}

const optionLoopSource = `
from django import template
register = template.Library()

def do_cycle(parser, token):
    bits = token.split_contents()
    remaining = bits[1:]
    while remaining:
        option = remaining.pop(0)
        if option == "silent":
            silent = True
        elif option == "as":
            pass
        else:
            raise template.TemplateSyntaxError("unknown option")
    return CycleNode()

register.tag("mycycle", do_cycle)
`

func TestExtractTagOptionLoopProducesKnownOptions(t *testing.T) {
	mod, err := Extract("tags.py", []byte(optionLoopSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	require.NotNil(t, spec.KnownOptionsSpec)
	assert.Equal(t, []string{"as", "silent"}, spec.KnownOptionsSpec.Values)
	assert.True(t, spec.KnownOptionsSpec.RejectsUnknown)
}

const matchStatementSource = `
from django import template
register = template.Library()

def do_cond(parser, token):
    match token.split_contents():
        case [_]:
            pass
        case [_, "on"]:
            pass
        case _:
            raise template.TemplateSyntaxError("bad arguments")
    return CondNode()

register.tag("mycond", do_cond)
`

func TestExtractTagMatchStatementProducesOneOf(t *testing.T) {
	mod, err := Extract("tags.py", []byte(matchStatementSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{Kind: tagspec.RuleOneOf, OneOf: []int{1, 2}})
	assert.Contains(t, spec.ExtractedRules, tagspec.ExtractedRule{Kind: tagspec.RuleRequiredKeyword, Position: 1, Value: "on"})
}

const blockShapeParseTupleSource = `
from django import template
register = template.Library()

def do_ifspecial(parser, token):
    nodelist = parser.parse(("elspecial", "endifspecial"))
    return IfSpecialNode(nodelist)

register.tag("ifspecial", do_ifspecial)
`

func TestExtractTagParseTupleDerivesBlockShape(t *testing.T) {
	mod, err := Extract("tags.py", []byte(blockShapeParseTupleSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	require.NotNil(t, spec.EndTagSpec)
	assert.Equal(t, "endifspecial", spec.EndTagSpec.Name)
	require.Len(t, spec.Intermediates, 1)
	assert.Equal(t, "elspecial", spec.Intermediates[0].Name)
}

const blockShapeNextTokenSource = `
from django import template
register = template.Library()

def do_mywith(parser, token):
    nodelist = []
    while parser.tokens:
        next_token = parser.next_token()
        if next_token.contents.strip() == "endmywith":
            break
        nodelist.append(next_token)
    return MyWithNode(nodelist)

register.tag("mywith", do_mywith)
`

func TestExtractTagNextTokenIdiomDerivesEndTag(t *testing.T) {
	mod, err := Extract("tags.py", []byte(blockShapeNextTokenSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	require.NotNil(t, spec.EndTagSpec)
	assert.Equal(t, "endmywith", spec.EndTagSpec.Name)
}

const blockShapeDynamicEndSource = `
from django import template
register = template.Library()

def do_mynamed(parser, token):
    bits = token.split_contents()
    end_tag_name = "end%s" % bits[0]
    while parser.tokens:
        next_token = parser.next_token()
        if next_token.contents.strip() == end_tag_name:
            break
    return MyNamedNode()

register.tag("mynamed", do_mynamed)
`

func TestExtractTagDynamicEndTagRequiresOpenerNameMatch(t *testing.T) {
	mod, err := Extract("tags.py", []byte(blockShapeDynamicEndSource))
	require.NoError(t, err)
	require.Len(t, mod.Tags, 1)
	spec := mod.Tags[0]
	require.NotNil(t, spec.EndTagSpec)
	assert.Equal(t, "endmynamed", spec.EndTagSpec.Name)
	assert.True(t, spec.EndTagSpec.MustMatchOpenerName)
}
