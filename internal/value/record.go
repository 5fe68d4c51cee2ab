package value

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// RecordType is a named-field record type declared as
// `Pt = record(x = int, y = int)`. Records passed to io()/config() require
// explicit defaults; there is no synthesized default.
type RecordType struct {
	fields *SmallMap // field name → type value
}

var (
	_ starlark.Value    = (*RecordType)(nil)
	_ starlark.Callable = (*RecordType)(nil)
)

// NewRecordType builds a record type from its ordered field specs.
func NewRecordType(fields *SmallMap) *RecordType {
	return &RecordType{fields: fields}
}

func (r *RecordType) Type() string          { return "RecordType" }
func (r *RecordType) Freeze()               { r.fields.Freeze() }
func (r *RecordType) Truth() starlark.Bool  { return starlark.True }
func (r *RecordType) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: RecordType") }
func (r *RecordType) Name() string          { return "record" }

func (r *RecordType) String() string {
	var sb strings.Builder
	sb.WriteString("record(")
	first := true
	_ = r.fields.Each(func(name string, v starlark.Value) error {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(name)
		return nil
	})
	sb.WriteString(")")
	return sb.String()
}

// CallInternal constructs a RecordValue; every declared field must be
// supplied by keyword.
func (r *RecordType) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("record constructor takes keyword arguments only")
	}
	fields := NewSmallMap()
	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		if !r.fields.Has(key) {
			return nil, fmt.Errorf("unknown record field `%s`", key)
		}
		fields.Set(key, kv[1])
	}
	var missing []string
	for _, name := range r.fields.Keys() {
		if !fields.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing record field(s): %s", strings.Join(missing, ", "))
	}
	// Re-order to declaration order.
	ordered := NewSmallMap()
	for _, name := range r.fields.Keys() {
		v, _ := fields.Get(name)
		ordered.Set(name, v)
	}
	return &RecordValue{typ: r, fields: ordered}, nil
}

// RecordValue is an instance of a RecordType.
type RecordValue struct {
	typ    *RecordType
	fields *SmallMap
	frozen bool
}

var (
	_ starlark.Value    = (*RecordValue)(nil)
	_ starlark.HasAttrs = (*RecordValue)(nil)
)

// RecordTypeOf returns the value's record type.
func (v *RecordValue) RecordTypeOf() *RecordType { return v.typ }

// Fields returns the ordered field values.
func (v *RecordValue) Fields() *SmallMap { return v.fields }

func (v *RecordValue) Type() string          { return "record" }
func (v *RecordValue) Truth() starlark.Bool  { return starlark.True }
func (v *RecordValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: record") }

func (v *RecordValue) Freeze() {
	if v.frozen {
		return
	}
	v.frozen = true
	v.fields.Freeze()
}

func (v *RecordValue) String() string {
	var sb strings.Builder
	sb.WriteString("record(")
	first := true
	_ = v.fields.Each(func(name string, fv starlark.Value) error {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s = %s", name, fv.String())
		return nil
	})
	sb.WriteString(")")
	return sb.String()
}

func (v *RecordValue) Attr(name string) (starlark.Value, error) {
	if fv, ok := v.fields.Get(name); ok {
		return fv, nil
	}
	return nil, nil
}

func (v *RecordValue) AttrNames() []string {
	return append([]string(nil), v.fields.Keys()...)
}

func copyRecordValue(v *RecordValue) *RecordValue {
	fields := NewSmallMap()
	_ = v.fields.Each(func(k string, fv starlark.Value) error {
		fields.Set(k, Copy(fv))
		return nil
	})
	return &RecordValue{typ: v.typ, fields: fields}
}
