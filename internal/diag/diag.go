// Package diag provides the structured diagnostic type used throughout the
// elaboration core. A diagnostic carries a source location, a severity, a
// human-readable body, and an optional child diagnostic so that errors from
// nested module evaluations can be reconstructed as a chain instead of being
// flattened into rendered strings.
package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Disabled
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Disabled:
		return "disabled"
	}
	return "unknown"
}

// MarshalJSON serializes the severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a severity from its lowercase name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	case "info":
		*s = Info
	case "disabled":
		*s = Disabled
	default:
		return fmt.Errorf("unknown severity %q", name)
	}
	return nil
}

// Span is a resolved source range. Lines and columns are 1-based.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// MarshalJSON serializes the span in its "L:C-L:C" string form.
func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Diagnostic is the canonical structured error/warning type.
type Diagnostic struct {
	Path      string      `json:"path"`
	Span      *Span       `json:"span"`
	Severity  Severity    `json:"severity"`
	Body      string      `json:"body"`
	CallStack string      `json:"call_stack,omitempty"`
	Child     *Diagnostic `json:"child,omitempty"`
}

// IsError reports whether the severity is Error.
func (d *Diagnostic) IsError() bool { return d.Severity == Error }

// WithChild returns a copy of d carrying child as its nested diagnostic.
func (d Diagnostic) WithChild(child Diagnostic) Diagnostic {
	d.Child = &child
	return d
}

func (d *Diagnostic) String() string {
	var sb strings.Builder
	for cur := d; cur != nil; cur = cur.Child {
		if cur != d {
			sb.WriteString("\n")
		}
		sb.WriteString(cur.Severity.String())
		sb.WriteString(": ")
		if cur.Path != "" {
			sb.WriteString(cur.Path)
			if cur.Span != nil {
				sb.WriteString(":")
				sb.WriteString(cur.Span.String())
			}
			sb.WriteString(" ")
		}
		sb.WriteString(cur.Body)
	}
	return sb.String()
}

// DiagError wraps a Diagnostic as a Go error so the structured form survives
// an errors.As walk across the evaluation engine's error plumbing.
type DiagError struct {
	Diag Diagnostic
}

func (e *DiagError) Error() string { return e.Diag.String() }

// Wrap turns a Diagnostic into an error carrying the full structure.
func Wrap(d Diagnostic) error { return &DiagError{Diag: d} }

// FromError extracts a Diagnostic from an error chain, or synthesizes a bare
// error-severity diagnostic from the message when no structured form is
// present.
func FromError(err error) Diagnostic {
	var de *DiagError
	if errors.As(err, &de) {
		return de.Diag
	}
	return Diagnostic{Severity: Error, Body: err.Error()}
}

// WithDiagnostics pairs an optional output with the diagnostics produced
// while computing it.
type WithDiagnostics[T any] struct {
	Output      *T
	Diagnostics []Diagnostic
}

// Success constructs a result that has an output.
func Success[T any](output T, diagnostics []Diagnostic) WithDiagnostics[T] {
	return WithDiagnostics[T]{Output: &output, Diagnostics: diagnostics}
}

// Failure constructs a result with no output.
func Failure[T any](diagnostics []Diagnostic) WithDiagnostics[T] {
	return WithDiagnostics[T]{Diagnostics: diagnostics}
}

// HasErrors reports whether any diagnostic has Error severity.
func (w WithDiagnostics[T]) HasErrors() bool {
	for i := range w.Diagnostics {
		if w.Diagnostics[i].IsError() {
			return true
		}
	}
	return false
}

// IsSuccess reports whether an output exists and no diagnostic is an error.
func (w WithDiagnostics[T]) IsSuccess() bool {
	return w.Output != nil && !w.HasErrors()
}
