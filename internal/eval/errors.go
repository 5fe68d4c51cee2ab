package eval

import (
	"errors"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/pro-utkarshM/picoplace/internal/diag"
)

func posSpan(pos syntax.Position) *diag.Span {
	if !pos.IsValid() {
		return nil
	}
	return &diag.Span{
		StartLine: int(pos.Line),
		StartCol:  int(pos.Col),
		EndLine:   int(pos.Line),
		EndCol:    int(pos.Col),
	}
}

// callSite returns the position of the user-code call that invoked the
// currently running builtin.
func callSite(thread *starlark.Thread) (string, *diag.Span) {
	if thread.CallStackDepth() < 2 {
		return "", nil
	}
	frame := thread.CallFrame(1)
	if !frame.Pos.IsValid() {
		return "", nil
	}
	return frame.Pos.Filename(), posSpan(frame.Pos)
}

// errorToDiagnostics converts an engine error into structured diagnostics.
// Errors raised by the load callback carry a diag.DiagError in their cause chain
// and are recovered intact; everything else is positioned from the
// evaluation backtrace or the parse error location.
func errorToDiagnostics(err error, fallbackPath string) []diag.Diagnostic {
	var de *diag.DiagError
	if errors.As(err, &de) {
		d := de.Diag
		var ee *starlark.EvalError
		if d.Span == nil && errors.As(err, &ee) {
			if path, span := innermostFrame(ee, d.Path); span != nil {
				if d.Path == "" {
					d.Path = path
				}
				if d.Path == path {
					d.Span = span
				}
			}
		}
		return []diag.Diagnostic{d}
	}

	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		d := diag.Diagnostic{
			Path:      fallbackPath,
			Severity:  diag.Error,
			Body:      ee.Msg,
			CallStack: ee.Backtrace(),
		}
		if path, span := innermostFrame(ee, ""); span != nil {
			d.Path = path
			d.Span = span
		}
		return []diag.Diagnostic{d}
	}

	var elist resolve.ErrorList
	if errors.As(err, &elist) {
		var out []diag.Diagnostic
		for _, e := range elist {
			out = append(out, diag.Diagnostic{
				Path:     e.Pos.Filename(),
				Span:     posSpan(e.Pos),
				Severity: diag.Error,
				Body:     e.Msg,
			})
		}
		return out
	}

	var serr syntax.Error
	if errors.As(err, &serr) {
		return []diag.Diagnostic{{
			Path:     serr.Pos.Filename(),
			Span:     posSpan(serr.Pos),
			Severity: diag.Error,
			Body:     serr.Msg,
		}}
	}

	return []diag.Diagnostic{{
		Path:     fallbackPath,
		Severity: diag.Error,
		Body:     err.Error(),
	}}
}

// innermostFrame finds the deepest call-stack frame with a usable position,
// preferring frames in wantPath when given.
func innermostFrame(ee *starlark.EvalError, wantPath string) (string, *diag.Span) {
	stack := ee.CallStack
	for i := len(stack) - 1; i >= 0; i-- {
		pos := stack[i].Pos
		if !pos.IsValid() {
			continue
		}
		if wantPath != "" && pos.Filename() != wantPath {
			continue
		}
		return pos.Filename(), posSpan(pos)
	}
	if wantPath != "" {
		return innermostFrame(ee, "")
	}
	return "", nil
}
