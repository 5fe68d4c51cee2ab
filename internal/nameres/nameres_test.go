package nameres

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pro-utkarshM/picoplace/internal/schematic"
)

func ref(path ...string) schematic.InstanceRef {
	return schematic.NewInstanceRef(schematic.NewModuleRef("/top.zen", "<root>"), path)
}

func netNames(t *testing.T, infos []*NetInfo) []string {
	t.Helper()
	nets, err := ResolveNets(infos)
	if err != nil {
		t.Fatalf("ResolveNets: %v", err)
	}
	names := make([]string, 0, len(nets))
	for _, n := range nets {
		names = append(names, n.Name)
	}
	return names
}

func TestExplicitNameKept(t *testing.T) {
	names := netNames(t, []*NetInfo{
		{ID: 1, Explicit: "VBUS", Ports: []schematic.InstanceRef{ref("u1", "V")}},
	})
	if diff := cmp.Diff([]string{"VBUS"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestSiblingDisambiguation(t *testing.T) {
	// Two nets named SIG living in sibling modules A and B.
	names := netNames(t, []*NetInfo{
		{ID: 1, Explicit: "SIG", Ports: []schematic.InstanceRef{ref("A", "c0", "P")}},
		{ID: 2, Explicit: "SIG", Ports: []schematic.InstanceRef{ref("B", "c0", "P")}},
	})
	if diff := cmp.Diff([]string{"A.SIG", "B.SIG"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestDefaultNameFromShortestPortPath(t *testing.T) {
	// Unnamed net: the shortest port path wins; first encountered on ties.
	names := netNames(t, []*NetInfo{
		{ID: 7, Ports: []schematic.InstanceRef{
			ref("top", "u1", "VCC"),
			ref("top", "u2", "VDD"),
		}},
	})
	if diff := cmp.Diff([]string{"top.u1.VCC"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestFallbackNetIDName(t *testing.T) {
	names := netNames(t, []*NetInfo{
		{ID: 42, Ports: []schematic.InstanceRef{ref()}},
	})
	if diff := cmp.Diff([]string{"N42"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestDeeperPrefixNeeded(t *testing.T) {
	// One leading tail segment is not enough for the first two members;
	// k must grow to 2 before the group separates.
	names := netNames(t, []*NetInfo{
		{ID: 1, Explicit: "CLK", Ports: []schematic.InstanceRef{ref("sys", "a", "p", "X")}},
		{ID: 2, Explicit: "CLK", Ports: []schematic.InstanceRef{ref("sys", "a", "q", "X")}},
		{ID: 3, Explicit: "CLK", Ports: []schematic.InstanceRef{ref("sys", "b", "p", "X")}},
	})
	if diff := cmp.Diff([]string{"a.p.CLK", "a.q.CLK", "b.p.CLK"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestSuffixFallbackOnIdenticalPaths(t *testing.T) {
	// Identical port paths can never be separated by prefixes; numeric
	// suffixes break the tie in encounter order.
	names := netNames(t, []*NetInfo{
		{ID: 1, Explicit: "SIG", Ports: []schematic.InstanceRef{ref("m", "P")}},
		{ID: 2, Explicit: "SIG", Ports: []schematic.InstanceRef{ref("m", "P")}},
	})
	if diff := cmp.Diff([]string{"SIG", "SIG_1"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestEmissionOrderIsLexical(t *testing.T) {
	names := netNames(t, []*NetInfo{
		{ID: 1, Explicit: "ZED", Ports: []schematic.InstanceRef{ref("u1", "A")}},
		{ID: 2, Explicit: "ALPHA", Ports: []schematic.InstanceRef{ref("u1", "B")}},
	})
	if diff := cmp.Diff([]string{"ALPHA", "ZED"}, names); diff != "" {
		t.Error(diff)
	}
}

func TestKindFromProperties(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]schematic.AttributeValue
		want  schematic.NetKind
	}{
		{"no properties", nil, schematic.NetNormal},
		{"ground", map[string]schematic.AttributeValue{"type": schematic.StringAttr("ground")}, schematic.NetGround},
		{"power", map[string]schematic.AttributeValue{"type": schematic.StringAttr("power")}, schematic.NetPower},
		{"other", map[string]schematic.AttributeValue{"type": schematic.StringAttr("analog")}, schematic.NetNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindFromProperties(tt.props); got != tt.want {
				t.Errorf("KindFromProperties = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobalUniquenessViolationIsFatal(t *testing.T) {
	// Suffixing inside one group can collide with another group's base
	// name; that must surface as an internal error, never silently.
	infos := []*NetInfo{
		{ID: 1, Explicit: "SIG", Ports: []schematic.InstanceRef{ref("m", "P")}},
		{ID: 2, Explicit: "SIG", Ports: []schematic.InstanceRef{ref("m", "P")}},
		{ID: 3, Explicit: "SIG_1", Ports: []schematic.InstanceRef{ref("q", "P")}},
	}
	if _, err := ResolveNets(infos); err == nil {
		t.Fatal("expected duplicate-name error")
	}
}
