package sexpr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseBasics(t *testing.T) {
	nodes, err := Parse(`(a "b c" (d 1) ; comment
        e)`)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(nodes))
	}
	n := nodes[0]
	if n.Head() != "a" {
		t.Errorf("head = %q", n.Head())
	}
	if n.AtomAt(1) != "b c" {
		t.Errorf("quoted atom = %q", n.AtomAt(1))
	}
	if len(n.List) != 4 {
		t.Errorf("list len = %d, want 4", len(n.List))
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"(unterminated", `"open string`, ")"} {
		t.Run(src, func(t *testing.T) {
			if _, err := Parse(src); err == nil {
				t.Errorf("Parse(%q) should fail", src)
			}
		})
	}
}

func TestStringEscapes(t *testing.T) {
	nodes, err := Parse(`("a\"b" "tab\there")`)
	if err != nil {
		t.Fatal(err)
	}
	if got := nodes[0].AtomAt(0); got != `a"b` {
		t.Errorf("escaped quote = %q", got)
	}
	if got := nodes[0].AtomAt(1); got != "tab\there" {
		t.Errorf("escaped tab = %q", got)
	}
}

const sampleLibrary = `
(kicad_symbol_lib (version 20211014) (generator kicad_symbol_editor)
  (symbol "R" (pin_numbers hide) (in_bom yes)
    (property "Reference" "R" (at 2.032 0 90))
    (property "Value" "R" (at 0 0 90))
    (symbol "R_0_1"
      (rectangle (start -1.016 -2.54) (end 1.016 2.54)))
    (symbol "R_1_1"
      (pin passive line (at 0 3.81 270) (length 1.27) (name "~" (effects)) (number "1" (effects)))
      (pin passive line (at 0 -3.81 90) (length 1.27) (name "~" (effects)) (number "2" (effects)))))
  (symbol "R_Small" (extends "R")
    (property "Reference" "R"))
  (symbol "OpAmp"
    (property "Reference" "U")
    (symbol "OpAmp_1_1"
      (pin output line (at 0 0 0) (length 2.54) (name "OUT") (number "1"))
      (pin input line (at 0 0 0) (length 2.54) (name "V+") (number "2"))
      (pin input line (at 0 0 0) (length 2.54) (name "V+") (number "3")))))
`

func TestParseSymbolLibrary(t *testing.T) {
	symbols, err := ParseSymbolLibrary(sampleLibrary)
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 3 {
		t.Fatalf("symbols = %d, want 3", len(symbols))
	}

	r := symbols[0]
	if r.Name != "R" {
		t.Errorf("name = %q", r.Name)
	}
	// Unnamed (~) pins take their pad number as the signal.
	want := []Pin{{Name: "1", Number: "1"}, {Name: "2", Number: "2"}}
	if diff := cmp.Diff(want, r.Pins); diff != "" {
		t.Errorf("pins mismatch (-want +got):\n%s", diff)
	}
	if r.Properties["Reference"] != "R" {
		t.Errorf("Reference property = %q", r.Properties["Reference"])
	}
	if r.Raw == "" {
		t.Error("raw s-expression should be preserved")
	}

	// extends inherits the parent's pins.
	small := symbols[1]
	if diff := cmp.Diff(want, small.Pins); diff != "" {
		t.Errorf("extended pins mismatch (-want +got):\n%s", diff)
	}

	// Two pads sharing one signal stay grouped.
	op := symbols[2]
	if diff := cmp.Diff([]string{"2", "3"}, padsOf(op, "V+")); diff != "" {
		t.Errorf("V+ pads mismatch (-want +got):\n%s", diff)
	}
}

func padsOf(s *Symbol, signal string) []string {
	var pads []string
	for _, p := range s.Pins {
		if p.Name == signal {
			pads = append(pads, p.Number)
		}
	}
	return pads
}

func TestParseSymbolLibraryUnknownParent(t *testing.T) {
	_, err := ParseSymbolLibrary(`(kicad_symbol_lib (symbol "X" (extends "Missing")))`)
	if err == nil {
		t.Fatal("expected unknown-parent error")
	}
}

func TestSplitLibraryRef(t *testing.T) {
	tests := []struct {
		input       string
		wantLib     string
		wantName    string
	}{
		{"Device:R", "Device", "R"},
		{"@kicad-symbols/Device.kicad_sym:R", "@kicad-symbols/Device.kicad_sym", "R"},
		{"just-a-library", "just-a-library", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lib, name := SplitLibraryRef(tt.input)
			if lib != tt.wantLib || name != tt.wantName {
				t.Errorf("SplitLibraryRef(%q) = (%q, %q), want (%q, %q)",
					tt.input, lib, name, tt.wantLib, tt.wantName)
			}
		})
	}
}
