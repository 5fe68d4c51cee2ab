package sexpr

import (
	"fmt"
	"strings"
)

// Pin is one physical pad of a KiCad symbol.
type Pin struct {
	// Name is the signal name from the pin definition. "~" (unnamed) pins
	// fall back to the pad number.
	Name string
	// Number is the pad identifier ("1", "A7", ...).
	Number string
}

// Symbol is the subset of a KiCad library symbol the evaluator needs.
type Symbol struct {
	Name       string
	Pins       []Pin
	Properties map[string]string
	// Raw is the symbol's s-expression text, carried through to the
	// schematic so downstream emitters can re-render the symbol.
	Raw string
}

// SignalForPad resolves a pad number to its signal name.
func (s *Symbol) SignalForPad(number string) (string, bool) {
	for _, p := range s.Pins {
		if p.Number == number {
			return p.Name, true
		}
	}
	return "", false
}

// ParseSymbolLibrary extracts every symbol from a .kicad_sym file. Symbols
// using `extends` inherit the parent's pins and properties, with the child's
// own entries taking precedence.
func ParseSymbolLibrary(content string) ([]*Symbol, error) {
	nodes, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("invalid symbol library: %w", err)
	}
	var lib *Node
	for _, n := range nodes {
		if n.Head() == "kicad_symbol_lib" {
			lib = n
			break
		}
	}
	if lib == nil {
		return nil, fmt.Errorf("invalid symbol library: no kicad_symbol_lib form")
	}

	byName := map[string]*Symbol{}
	extends := map[string]string{}
	var symbols []*Symbol
	for _, symNode := range lib.ChildrenNamed("symbol") {
		sym := parseSymbol(symNode)
		symbols = append(symbols, sym)
		byName[sym.Name] = sym
		for _, ext := range symNode.ChildrenNamed("extends") {
			extends[sym.Name] = ext.AtomAt(1)
		}
	}

	for _, sym := range symbols {
		parentName, ok := extends[sym.Name]
		if !ok {
			continue
		}
		parent, ok := byName[parentName]
		if !ok {
			return nil, fmt.Errorf("symbol %q extends unknown symbol %q", sym.Name, parentName)
		}
		if len(sym.Pins) == 0 {
			sym.Pins = append([]Pin(nil), parent.Pins...)
		}
		for k, v := range parent.Properties {
			if _, exists := sym.Properties[k]; !exists {
				sym.Properties[k] = v
			}
		}
	}
	return symbols, nil
}

func parseSymbol(n *Node) *Symbol {
	sym := &Symbol{
		Name:       n.AtomAt(1),
		Properties: map[string]string{},
		Raw:        n.String(),
	}
	for _, prop := range n.ChildrenNamed("property") {
		key := prop.AtomAt(1)
		if key != "" {
			sym.Properties[key] = prop.AtomAt(2)
		}
	}
	collectPins(n, sym)
	return sym
}

// collectPins walks the symbol's unit sub-symbols gathering pin definitions
// in file order.
func collectPins(n *Node, sym *Symbol) {
	for _, pin := range n.ChildrenNamed("pin") {
		name, number := "", ""
		for _, attr := range pin.List {
			switch attr.Head() {
			case "name":
				name = attr.AtomAt(1)
			case "number":
				number = attr.AtomAt(1)
			}
		}
		if number == "" {
			continue
		}
		if name == "" || name == "~" {
			name = number
		}
		sym.Pins = append(sym.Pins, Pin{Name: name, Number: number})
	}
	for _, sub := range n.ChildrenNamed("symbol") {
		collectPins(sub, sym)
	}
}

// SymbolNames lists the names of every symbol in the library, for error
// messages that enumerate what is available.
func SymbolNames(symbols []*Symbol) []string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	return names
}

// SplitLibraryRef splits a "library:name" shorthand into its parts. The
// second part may be empty when no colon is present.
func SplitLibraryRef(ref string) (library, name string) {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
