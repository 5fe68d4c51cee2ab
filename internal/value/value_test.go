package value

import (
	"testing"

	"go.starlark.net/starlark"
)

func TestNetIDsAreUnique(t *testing.T) {
	a := NewNet("A", nil, starlark.None)
	b := NewNet("", nil, starlark.None)
	if a.ID() == b.ID() {
		t.Error("fresh nets must have distinct ids")
	}
}

func TestCopyPreservesNetID(t *testing.T) {
	props := NewSmallMap()
	props.Set("type", starlark.String("power"))
	n := NewNet("VCC", props, starlark.None)

	copied := Copy(n).(*Net)
	if copied.ID() != n.ID() {
		t.Error("deep copy must preserve net identity")
	}
	if copied == n {
		t.Error("copy must be a distinct value")
	}
	v, ok := copied.Properties().Get("type")
	if !ok || v != starlark.String("power") {
		t.Errorf("properties not copied: %v", v)
	}
}

func TestSmallMapOrder(t *testing.T) {
	m := NewSmallMap()
	m.Set("z", starlark.MakeInt(1))
	m.Set("a", starlark.MakeInt(2))
	m.Set("z", starlark.MakeInt(3)) // replace keeps position

	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "z" || keys[1] != "a" {
		t.Errorf("keys = %v, want [z a]", keys)
	}
	v, _ := m.Get("z")
	if n, _ := v.(starlark.Int).Int64(); n != 3 {
		t.Errorf("z = %v, want 3", v)
	}
}

func mustFactory(t *testing.T, fields *SmallMap) *InterfaceFactory {
	t.Helper()
	f, err := NewInterfaceFactory(fields)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func fieldNet(t *testing.T, iv *InterfaceValue, name string) *Net {
	t.Helper()
	v, ok := iv.Fields().Get(name)
	if !ok {
		t.Fatalf("field %q missing", name)
	}
	n, ok := v.(*Net)
	if !ok {
		t.Fatalf("field %q = %T, want net", name, v)
	}
	return n
}

func TestInterfaceInstantiationNaming(t *testing.T) {
	fields := NewSmallMap()
	fields.Set("vcc", NetType{})
	fields.Set("gnd", NetType{})
	power := mustFactory(t, fields)

	t.Run("no prefix", func(t *testing.T) {
		iv, err := power.Instantiate("", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := fieldNet(t, iv, "vcc").NetName(); got != "VCC" {
			t.Errorf("vcc = %q, want VCC", got)
		}
	})

	t.Run("with prefix", func(t *testing.T) {
		iv, err := power.Instantiate("PWR", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := fieldNet(t, iv, "vcc").NetName(); got != "PWR_VCC" {
			t.Errorf("vcc = %q, want PWR_VCC", got)
		}
		if got := fieldNet(t, iv, "gnd").NetName(); got != "PWR_GND" {
			t.Errorf("gnd = %q, want PWR_GND", got)
		}
	})
}

func TestInterfaceNetTemplateNaming(t *testing.T) {
	tmplProps := NewSmallMap()
	tmplProps.Set("type", starlark.String("power"))
	named := NewNet("3V3", tmplProps, starlark.None)
	empty := NewNet("", nil, starlark.None)

	fields := NewSmallMap()
	fields.Set("rail", named)
	fields.Set("aux", empty)
	f := mustFactory(t, fields)

	iv, err := f.Instantiate("PSU", nil)
	if err != nil {
		t.Fatal(err)
	}

	rail := fieldNet(t, iv, "rail")
	if rail.NetName() != "PSU_3V3" {
		t.Errorf("rail = %q, want PSU_3V3", rail.NetName())
	}
	if rail.ID() == named.ID() {
		t.Error("template instantiation must mint a fresh net id")
	}
	if v, ok := rail.Properties().Get("type"); !ok || v != starlark.String("power") {
		t.Error("template properties must be copied")
	}

	// Empty-name templates fall back to the field-name rule.
	if got := fieldNet(t, iv, "aux").NetName(); got != "PSU_AUX" {
		t.Errorf("aux = %q, want PSU_AUX", got)
	}
}

func TestNestedInterfacePrefix(t *testing.T) {
	inner := NewSmallMap()
	inner.Set("p", NetType{})
	innerFactory := mustFactory(t, inner)

	outer := NewSmallMap()
	outer.Set("usb", innerFactory)
	outerFactory := mustFactory(t, outer)

	iv, err := outerFactory.Instantiate("HOST", nil)
	if err != nil {
		t.Fatal(err)
	}
	nested, _ := iv.Fields().Get("usb")
	n := fieldNet(t, nested.(*InterfaceValue), "p")
	if n.NetName() != "HOST_USB_P" {
		t.Errorf("nested net = %q, want HOST_USB_P", n.NetName())
	}
}

func TestInterfaceRejectsBadFieldType(t *testing.T) {
	fields := NewSmallMap()
	fields.Set("bad", starlark.MakeInt(3))
	if _, err := NewInterfaceFactory(fields); err == nil {
		t.Error("int field must be rejected")
	}
}

func TestEnumType(t *testing.T) {
	e, err := NewEnumType([]string{"NORTH", "SOUTH"})
	if err != nil {
		t.Fatal(err)
	}
	if e.First().Label() != "NORTH" {
		t.Errorf("First() = %q", e.First().Label())
	}

	thread := &starlark.Thread{Name: "test"}
	v, err := starlark.Call(thread, e, starlark.Tuple{starlark.String("SOUTH")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.(*EnumValue).Label() != "SOUTH" {
		t.Errorf("conversion = %v", v)
	}

	if _, err := starlark.Call(thread, e, starlark.Tuple{starlark.String("WEST")}, nil); err == nil {
		t.Error("unknown variant must fail")
	}

	byIndex, err := starlark.Call(thread, e, starlark.Tuple{starlark.MakeInt(1)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if byIndex.(*EnumValue).Label() != "SOUTH" {
		t.Errorf("by index = %v", byIndex)
	}

	if _, err := NewEnumType(nil); err == nil {
		t.Error("empty enum must be rejected")
	}
	if _, err := NewEnumType([]string{"A", "A"}); err == nil {
		t.Error("duplicate variants must be rejected")
	}
}

func TestRecordType(t *testing.T) {
	fields := NewSmallMap()
	fields.Set("x", starlark.Universe["int"])
	fields.Set("y", starlark.Universe["int"])
	r := NewRecordType(fields)

	thread := &starlark.Thread{Name: "test"}
	v, err := starlark.Call(thread, r, nil, []starlark.Tuple{
		{starlark.String("y"), starlark.MakeInt(2)},
		{starlark.String("x"), starlark.MakeInt(1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	rv := v.(*RecordValue)
	if keys := rv.Fields().Keys(); keys[0] != "x" || keys[1] != "y" {
		t.Errorf("fields should be in declaration order, got %v", keys)
	}

	if _, err := starlark.Call(thread, r, nil, []starlark.Tuple{
		{starlark.String("x"), starlark.MakeInt(1)},
	}); err == nil {
		t.Error("missing record field must fail")
	}
}

func TestCopyContainers(t *testing.T) {
	d := starlark.NewDict(1)
	_ = d.SetKey(starlark.String("k"), NewNet("N", nil, starlark.None))
	copied := Copy(d).(*starlark.Dict)
	if copied == d {
		t.Error("dict must be copied")
	}
	v, _, _ := copied.Get(starlark.String("k"))
	if _, ok := v.(*Net); !ok {
		t.Errorf("dict value = %T, want net", v)
	}
}
