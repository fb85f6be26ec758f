// Package diag defines the diagnostic value object and the accumulator
// queries emit them into (spec.md §3 "Diagnostics", §4.9 "Accumulators").
package diag

import "github.com/djls-go/djls/internal/source"

// Severity mirrors the LSP DiagnosticSeverity scale plus the config's
// "off" option (spec.md §6).
type Severity int

const (
	Off Severity = iota
	Error
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	default:
		return "off"
	}
}

// Annotation is a secondary span with a short label, rendered alongside the
// diagnostic's primary span (spec.md §4.10).
type Annotation struct {
	Span  source.Span
	Label string
}

// Diagnostic is a stable, code-identified analysis result.
type Diagnostic struct {
	Code     string // e.g. "S100", "T100"
	Message  string
	Severity Severity
	Primary  source.Span
	Secondary []Annotation
	Notes     []string
}

// Accumulator collects the diagnostics one query call produced. Re-running
// a query clears and re-accumulates into a fresh Accumulator for that call
// (spec.md §4.9); callers read results via Diagnostics().
type Accumulator struct {
	diagnostics []Diagnostic
}

// Emit appends d to the accumulator.
func (a *Accumulator) Emit(d Diagnostic) {
	a.diagnostics = append(a.diagnostics, d)
}

// Diagnostics returns everything emitted so far, in emission order.
func (a *Accumulator) Diagnostics() []Diagnostic {
	return a.diagnostics
}
