package diag

import (
	"fmt"
	"strconv"
	"strings"

	lipgloss "charm.land/lipgloss/v2"

	"github.com/djls-go/djls/internal/source"
)

// Mode selects plain (no ANSI) or styled rendering, per spec.md §4.10 and
// the CLI's --format flag.
type Mode int

const (
	Plain Mode = iota
	Styled
)

// Renderer emits a snippet-style report for a diagnostic: file path, code,
// message, the offending source line(s), carets/underlines for primary and
// secondary spans, and any notes.
type Renderer struct {
	mode Mode

	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	infoStyle    lipgloss.Style
	hintStyle    lipgloss.Style
	gutterStyle  lipgloss.Style
	caretStyle   lipgloss.Style
	noteStyle    lipgloss.Style
}

// NewRenderer constructs a Renderer for the given mode.
func NewRenderer(mode Mode) *Renderer {
	return &Renderer{
		mode:         mode,
		errorStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		warningStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		hintStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		gutterStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		caretStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		noteStyle:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("14")),
	}
}

func (r *Renderer) severityStyle(sev Severity) lipgloss.Style {
	switch sev {
	case Error:
		return r.errorStyle
	case Warning:
		return r.warningStyle
	case Info:
		return r.infoStyle
	default:
		return r.hintStyle
	}
}

func (r *Renderer) apply(style lipgloss.Style, s string) string {
	if r.mode == Plain {
		return s
	}
	return style.Render(s)
}

// Render produces the full snippet report for one diagnostic against text,
// whose line index is idx.
func (r *Renderer) Render(path string, d Diagnostic, text string, idx *source.LineIndex) string {
	var b strings.Builder

	pos := idx.Position(d.Primary.Start)
	header := fmt.Sprintf("%s: %s", d.Code, d.Message)
	fmt.Fprintln(&b, r.apply(r.severityStyle(d.Severity), strings.ToUpper(d.Severity.String())+": "+header))
	fmt.Fprintf(&b, "  --> %s:%d:%d\n", path, pos.Line, pos.Column+1)

	r.renderSpan(&b, d.Primary, text, idx, "")
	for _, ann := range d.Secondary {
		r.renderSpan(&b, ann.Span, text, idx, ann.Label)
	}
	for _, note := range d.Notes {
		fmt.Fprintln(&b, r.apply(r.noteStyle, "  = note: "+note))
	}
	return b.String()
}

func (r *Renderer) renderSpan(b *strings.Builder, span source.Span, text string, idx *source.LineIndex, label string) {
	pos := idx.Position(span.Start)
	lineSpan := idx.LineSpan(pos.Line, text)
	line := lineSpan.Slice(text)

	gutter := strconv.Itoa(pos.Line)
	pad := strings.Repeat(" ", len(gutter))

	fmt.Fprintln(b, r.apply(r.gutterStyle, pad+" |"))
	fmt.Fprintf(b, "%s | %s\n", r.apply(r.gutterStyle, gutter), line)

	caretLen := int(span.Length)
	if caretLen <= 0 {
		caretLen = 1
	}
	caretCol := pos.Column
	if caretCol+caretLen > len(line) {
		caretLen = len(line) - caretCol
		if caretLen < 1 {
			caretLen = 1
		}
	}
	carets := strings.Repeat(" ", caretCol) + strings.Repeat("^", caretLen)
	if label != "" {
		carets += " " + label
	}
	fmt.Fprintf(b, "%s | %s\n", r.apply(r.gutterStyle, pad), r.apply(r.caretStyle, carets))
}
