package value

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// EnumType is a small enumeration type value, declared as
// `Dir = enum("NORTH", "SOUTH")`. Calling the type with a variant label or
// index constructs an EnumValue. io()/config() use the factory call for
// automatic string→variant conversion and the first variant as the
// synthesized default.
type EnumType struct {
	variants []string
}

var (
	_ starlark.Value    = (*EnumType)(nil)
	_ starlark.Callable = (*EnumType)(nil)
	_ starlark.HasAttrs = (*EnumType)(nil)
)

// NewEnumType builds an enum type from its variant labels.
func NewEnumType(variants []string) (*EnumType, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("enum requires at least one variant")
	}
	seen := map[string]bool{}
	for _, v := range variants {
		if seen[v] {
			return nil, fmt.Errorf("duplicate enum variant %q", v)
		}
		seen[v] = true
	}
	return &EnumType{variants: variants}, nil
}

// Variants returns the variant labels in declaration order.
func (e *EnumType) Variants() []string { return e.variants }

// First returns the first variant as a value.
func (e *EnumType) First() *EnumValue {
	return &EnumValue{typ: e, label: e.variants[0], index: 0}
}

func (e *EnumType) Type() string          { return "EnumType" }
func (e *EnumType) Freeze()               {}
func (e *EnumType) Truth() starlark.Bool  { return starlark.True }
func (e *EnumType) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: EnumType") }
func (e *EnumType) Name() string          { return "enum" }

func (e *EnumType) String() string {
	return fmt.Sprintf("enum(%q)", strings.Join(e.variants, `", "`))
}

func (e *EnumType) Attr(name string) (starlark.Value, error) {
	if name == "variants" {
		elems := make([]starlark.Value, len(e.variants))
		for i, v := range e.variants {
			elems[i] = starlark.String(v)
		}
		return starlark.NewList(elems), nil
	}
	return nil, nil
}

func (e *EnumType) AttrNames() []string { return []string{"variants"} }

// CallInternal converts a variant label or index into an EnumValue.
func (e *EnumType) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 || len(args) != 1 {
		return nil, fmt.Errorf("enum type takes exactly one positional argument")
	}
	switch v := args[0].(type) {
	case starlark.String:
		for i, label := range e.variants {
			if label == string(v) {
				return &EnumValue{typ: e, label: label, index: i}, nil
			}
		}
		return nil, fmt.Errorf("unknown enum variant %q (expected one of: %s)", string(v), strings.Join(e.variants, ", "))
	case starlark.Int:
		i, ok := v.Int64()
		if !ok || i < 0 || int(i) >= len(e.variants) {
			return nil, fmt.Errorf("enum index %s out of range", v.String())
		}
		return &EnumValue{typ: e, label: e.variants[i], index: int(i)}, nil
	case *EnumValue:
		if v.typ == e {
			return v, nil
		}
		return nil, fmt.Errorf("enum value belongs to a different enum type")
	}
	return nil, fmt.Errorf("cannot convert %s to enum variant", args[0].Type())
}

// EnumValue is one variant of an EnumType.
type EnumValue struct {
	typ   *EnumType
	label string
	index int
}

var _ starlark.Value = (*EnumValue)(nil)

// EnumTypeOf returns the value's enum type.
func (v *EnumValue) EnumTypeOf() *EnumType { return v.typ }

// Label returns the variant label.
func (v *EnumValue) Label() string { return v.label }

// Index returns the variant's declaration position.
func (v *EnumValue) Index() int { return v.index }

func (v *EnumValue) Type() string          { return "enum" }
func (v *EnumValue) Freeze()               {}
func (v *EnumValue) Truth() starlark.Bool  { return starlark.True }
func (v *EnumValue) Hash() (uint32, error) { return starlark.String(v.label).Hash() }
func (v *EnumValue) String() string        { return fmt.Sprintf("%q", v.label) }
