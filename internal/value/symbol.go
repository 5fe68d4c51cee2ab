package value

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// PadSignal maps one pad (physical pin number) to its signal name. A symbol
// holds these in library order; multiple pads may share a signal.
type PadSignal struct {
	Pad    string
	Signal string
}

// Symbol is a schematic symbol: an ordered pad→signal map plus provenance
// metadata when it was loaded from a KiCad library.
type Symbol struct {
	SymName     string
	PadToSignal []PadSignal
	SourcePath  string
	RawSexp     string
}

var _ starlark.Value = (*Symbol)(nil)

func (s *Symbol) Type() string          { return "Symbol" }
func (s *Symbol) Freeze()               {}
func (s *Symbol) Truth() starlark.Bool  { return starlark.True }
func (s *Symbol) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Symbol") }

func (s *Symbol) String() string {
	var sb strings.Builder
	sb.WriteString("Symbol(")
	if s.SymName != "" {
		sb.WriteString(fmt.Sprintf("%q", s.SymName))
	}
	for i, ps := range s.PadToSignal {
		if i > 0 || s.SymName != "" {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%q: %q", ps.Pad, ps.Signal))
	}
	sb.WriteString(")")
	return sb.String()
}

// SignalNames returns the distinct signal names in first-appearance order.
func (s *Symbol) SignalNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, ps := range s.PadToSignal {
		if !seen[ps.Signal] {
			seen[ps.Signal] = true
			names = append(names, ps.Signal)
		}
	}
	return names
}

// HasSignal reports whether the symbol defines the given signal.
func (s *Symbol) HasSignal(name string) bool {
	for _, ps := range s.PadToSignal {
		if ps.Signal == name {
			return true
		}
	}
	return false
}

// PadsForSignal returns the pads carrying the signal, in symbol order.
func (s *Symbol) PadsForSignal(name string) []string {
	var pads []string
	for _, ps := range s.PadToSignal {
		if ps.Signal == name {
			pads = append(pads, ps.Pad)
		}
	}
	return pads
}

func copySymbol(s *Symbol) *Symbol {
	return &Symbol{
		SymName:     s.SymName,
		PadToSignal: append([]PadSignal(nil), s.PadToSignal...),
		SourcePath:  s.SourcePath,
		RawSexp:     s.RawSexp,
	}
}
