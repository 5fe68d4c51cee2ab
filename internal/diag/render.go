package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	infoColor = color.New(color.FgCyan).SprintFunc()
	dimColor  = color.New(color.Faint).SprintFunc()
)

func severityLabel(s Severity) string {
	switch s {
	case Error:
		return errColor("error")
	case Warning:
		return warnColor("warning")
	case Info:
		return infoColor("info")
	default:
		return dimColor(s.String())
	}
}

// Render writes a human-readable form of the diagnostic chain to w. Child
// diagnostics are indented under their parent.
func Render(w io.Writer, d *Diagnostic) {
	indent := ""
	for cur := d; cur != nil; cur = cur.Child {
		loc := cur.Path
		if loc != "" && cur.Span != nil {
			loc = fmt.Sprintf("%s:%s", loc, cur.Span)
		}
		if loc != "" {
			fmt.Fprintf(w, "%s%s: %s %s\n", indent, severityLabel(cur.Severity), dimColor(loc), cur.Body)
		} else {
			fmt.Fprintf(w, "%s%s: %s\n", indent, severityLabel(cur.Severity), cur.Body)
		}
		indent += "  "
	}
}

// RenderAll renders every diagnostic in order.
func RenderAll(w io.Writer, diags []Diagnostic) {
	for i := range diags {
		Render(w, &diags[i])
	}
}
