package picoplace

import (
	"bytes"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pro-utkarshM/picoplace/internal/fetch"
	"github.com/pro-utkarshM/picoplace/internal/fileprovider"
	"github.com/pro-utkarshM/picoplace/internal/schematic"
)

type scenario struct {
	Name         string            `yaml:"name"`
	Entry        string            `yaml:"entry"`
	Files        map[string]string `yaml:"files"`
	WantNets     []string          `yaml:"want_nets"`
	WantRefdes   []string          `yaml:"want_refdes"`
	WantErrors   []string          `yaml:"want_errors"`
	WantNetKinds map[string]string `yaml:"want_net_kinds"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	data, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("reading scenarios: %v", err)
	}
	var scenarios []scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		t.Fatalf("parsing scenarios: %v", err)
	}
	return scenarios
}

func runScenario(s scenario) Result {
	provider := fileprovider.NewMemWithFiles(s.Files)
	elaborator := New(WithFileProvider(provider), WithFetcher(fetch.Noop{}))
	return elaborator.Elaborate(s.Entry)
}

func diagnosticText(diags []Diagnostic) string {
	var sb strings.Builder
	for i := range diags {
		sb.WriteString(diags[i].String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestScenarios(t *testing.T) {
	for _, s := range loadScenarios(t) {
		s := s
		t.Run(s.Name, func(t *testing.T) {
			result := runScenario(s)

			if len(s.WantErrors) > 0 {
				if result.IsSuccess() {
					t.Fatal("expected failure")
				}
				text := diagnosticText(result.Diagnostics)
				for _, want := range s.WantErrors {
					if !strings.Contains(text, want) {
						t.Errorf("diagnostics missing %q:\n%s", want, text)
					}
				}
				if result.Output != nil {
					t.Error("failed elaboration must not produce a schematic")
				}
				return
			}

			if !result.IsSuccess() {
				t.Fatalf("elaboration failed:\n%s", diagnosticText(result.Diagnostics))
			}
			sch := *result.Output

			if len(s.WantNets) > 0 {
				got := sch.SortedNetNames()
				want := append([]string(nil), s.WantNets...)
				sort.Strings(want)
				if strings.Join(got, ",") != strings.Join(want, ",") {
					t.Errorf("nets = %v, want %v", got, want)
				}
			}

			if len(s.WantRefdes) > 0 {
				var got []string
				for _, inst := range sch.Instances {
					if inst.ReferenceDesignator != nil {
						got = append(got, *inst.ReferenceDesignator)
					}
				}
				sort.Strings(got)
				want := append([]string(nil), s.WantRefdes...)
				sort.Strings(want)
				if strings.Join(got, ",") != strings.Join(want, ",") {
					t.Errorf("refdes = %v, want %v", got, want)
				}
			}

			for net, kind := range s.WantNetKinds {
				n, ok := sch.Nets[net]
				if !ok {
					t.Errorf("net %s missing", net)
					continue
				}
				if n.Kind.String() != kind {
					t.Errorf("net %s kind = %s, want %s", net, n.Kind, kind)
				}
			}

			checkInvariants(t, sch)

			// Determinism: a fresh elaboration over the same inputs must
			// produce byte-identical JSON.
			second := runScenario(s)
			if !second.IsSuccess() {
				t.Fatal("second elaboration failed")
			}
			firstJSON, err := sch.ToJSON()
			if err != nil {
				t.Fatal(err)
			}
			secondJSON, err := (*second.Output).ToJSON()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(firstJSON, secondJSON) {
				t.Error("elaboration is not deterministic")
			}
		})
	}
}

var refdesPattern = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)$`)

// checkInvariants asserts the structural properties every successful
// elaboration must satisfy: unique net names, closed instance tree,
// correctly typed port parents, and contiguous per-prefix designators.
func checkInvariants(t *testing.T, sch *Schematic) {
	t.Helper()

	for key, inst := range sch.Instances {
		inst.Children.Each(func(name string, ref schematic.InstanceRef) {
			if _, ok := sch.Instances[ref.String()]; !ok {
				t.Errorf("dangling child %q of %s", name, key)
			}
		})
	}

	for name, net := range sch.Nets {
		if net.Name != name {
			t.Errorf("net keyed %q has name %q", name, net.Name)
		}
		for _, port := range net.Ports {
			inst, ok := sch.Instances[port.String()]
			if !ok {
				t.Errorf("net %s references missing instance %s", name, port.String())
				continue
			}
			if inst.Kind != schematic.KindPort {
				t.Errorf("net %s member %s is not a Port", name, port.String())
			}
			parentRef, ok := port.Parent()
			if !ok {
				t.Errorf("net %s port %s has no parent", name, port.String())
				continue
			}
			parent, ok := sch.Instances[parentRef.String()]
			if !ok {
				t.Errorf("port %s parent missing from instances", port.String())
				continue
			}
			if parent.Kind != schematic.KindComponent && parent.Kind != schematic.KindModule {
				t.Errorf("port %s parent kind = %v", port.String(), parent.Kind)
			}
		}
	}

	// Per-prefix designators must be {prefix}1..{prefix}k.
	byPrefix := map[string][]int{}
	for _, inst := range sch.Instances {
		if inst.Kind != schematic.KindComponent || inst.ReferenceDesignator == nil {
			continue
		}
		m := refdesPattern.FindStringSubmatch(*inst.ReferenceDesignator)
		if m == nil {
			t.Errorf("malformed refdes %q", *inst.ReferenceDesignator)
			continue
		}
		n, _ := strconv.Atoi(m[2])
		byPrefix[m[1]] = append(byPrefix[m[1]], n)
	}
	for prefix, nums := range byPrefix {
		sort.Ints(nums)
		for i, n := range nums {
			if n != i+1 {
				t.Errorf("prefix %s designators not contiguous: %v", prefix, nums)
				break
			}
		}
	}
}

func TestElaborateMissingEntry(t *testing.T) {
	provider := fileprovider.NewMem()
	result := New(WithFileProvider(provider), WithFetcher(fetch.Noop{})).Elaborate("/nope.zen")
	if result.IsSuccess() {
		t.Fatal("missing entry must fail")
	}
}

func TestSchematicJSONOmitsNetIDs(t *testing.T) {
	s := scenario{
		Entry: "/proj/top.zen",
		Files: map[string]string{
			"/proj/top.zen": `Component(name = "c1", footprint = "F", pin_defs = {"P": "1"}, pins = {"P": Net("SIG")})`,
		},
	}
	result := runScenario(s)
	if !result.IsSuccess() {
		t.Fatalf("failed:\n%s", diagnosticText(result.Diagnostics))
	}
	data, err := (*result.Output).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "net_id") || strings.Contains(string(data), "NetID") {
		t.Error("schematic JSON must not expose net ids")
	}
}
