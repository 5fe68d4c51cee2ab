package value

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// InterfaceFactory is the result of an `interface(**fields)` declaration.
// Each field constrains the corresponding per-instance field: a Net type, a
// Net template, another interface factory, or another interface instance.
// Calling the factory produces an InterfaceValue.
type InterfaceFactory struct {
	fields *SmallMap
	frozen bool
}

var (
	_ starlark.Value    = (*InterfaceFactory)(nil)
	_ starlark.Callable = (*InterfaceFactory)(nil)
)

// NewInterfaceFactory validates the field specs and builds a factory.
func NewInterfaceFactory(fields *SmallMap) (*InterfaceFactory, error) {
	err := fields.Each(func(name string, v starlark.Value) error {
		switch v.(type) {
		case NetType, *Net, *InterfaceFactory, *InterfaceValue:
			return nil
		}
		return fmt.Errorf(
			"interface field `%s` must be Net type, Net instance, Interface type, or Interface instance, got `%s`",
			name, v.Type())
	})
	if err != nil {
		return nil, err
	}
	return &InterfaceFactory{fields: fields}, nil
}

// Fields returns the ordered field specifications.
func (f *InterfaceFactory) Fields() *SmallMap { return f.fields }

func (f *InterfaceFactory) Type() string          { return "InterfaceFactory" }
func (f *InterfaceFactory) Truth() starlark.Bool  { return starlark.True }
func (f *InterfaceFactory) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: InterfaceFactory") }
func (f *InterfaceFactory) Name() string          { return "interface" }

func (f *InterfaceFactory) Freeze() {
	if f.frozen {
		return
	}
	f.frozen = true
	f.fields.Freeze()
}

func (f *InterfaceFactory) String() string {
	var sb strings.Builder
	sb.WriteString("interface(")
	first := true
	_ = f.fields.Each(func(name string, v starlark.Value) error {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(name)
		sb.WriteString(" = ")
		sb.WriteString(v.Type())
		return nil
	})
	sb.WriteString(")")
	return sb.String()
}

// CallInternal instantiates the interface. The optional `name` argument
// (first positional or named) becomes the prefix for auto-generated net
// names; any other keyword matching a field name overrides that field.
func (f *InterfaceFactory) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	prefix := ""
	if len(args) > 1 {
		return nil, fmt.Errorf("interface instance accepts at most one positional argument (name)")
	}
	if len(args) == 1 {
		s, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("interface instance name must be a string, got %s", args[0].Type())
		}
		prefix = s
	}

	overrides := NewSmallMap()
	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		if key == "name" {
			s, ok := starlark.AsString(kv[1])
			if !ok {
				return nil, fmt.Errorf("interface instance name must be a string, got %s", kv[1].Type())
			}
			prefix = s
			continue
		}
		if !f.fields.Has(key) {
			return nil, fmt.Errorf("unknown interface field `%s`", key)
		}
		overrides.Set(key, kv[1])
	}

	return f.Instantiate(prefix, overrides)
}

// Instantiate builds an InterfaceValue, deriving each field per the naming
// rules: Net type fields get "<PREFIX_>FIELDUPPER", Net templates keep
// their name ("<prefix>_<name>" with a prefix; empty-name templates behave
// like the bare Net type), nested interfaces recurse with
// "<prefix>_FIELDUPPER" as the nested prefix.
func (f *InterfaceFactory) Instantiate(prefix string, overrides *SmallMap) (*InterfaceValue, error) {
	fields := NewSmallMap()
	err := f.fields.Each(func(fieldName string, spec starlark.Value) error {
		if overrides != nil {
			if v, ok := overrides.Get(fieldName); ok {
				if err := checkFieldOverride(fieldName, spec, v); err != nil {
					return err
				}
				fields.Set(fieldName, v)
				return nil
			}
		}
		v, err := instantiateField(fieldName, spec, prefix)
		if err != nil {
			return err
		}
		fields.Set(fieldName, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &InterfaceValue{fields: fields, factory: f}, nil
}

func checkFieldOverride(fieldName string, spec, v starlark.Value) error {
	switch spec.(type) {
	case NetType, *Net:
		if _, ok := v.(*Net); !ok {
			return fmt.Errorf("interface field `%s` must be a Net, got %s", fieldName, v.Type())
		}
	case *InterfaceFactory, *InterfaceValue:
		if _, ok := v.(*InterfaceValue); !ok {
			return fmt.Errorf("interface field `%s` must be an interface instance, got %s", fieldName, v.Type())
		}
	}
	return nil
}

func fieldNetName(prefix, fieldName string) string {
	upper := strings.ToUpper(fieldName)
	if prefix == "" {
		return upper
	}
	return prefix + "_" + upper
}

func instantiateField(fieldName string, spec starlark.Value, prefix string) (starlark.Value, error) {
	switch s := spec.(type) {
	case NetType:
		return NewNet(fieldNetName(prefix, fieldName), nil, starlark.None), nil
	case *Net:
		name := s.NetName()
		if name == "" {
			name = fieldNetName(prefix, fieldName)
		} else if prefix != "" {
			name = prefix + "_" + name
		}
		props := NewSmallMap()
		_ = s.Properties().Each(func(k string, v starlark.Value) error {
			props.Set(k, Copy(v))
			return nil
		})
		return NewNet(name, props, Copy(s.Symbol())), nil
	case *InterfaceFactory:
		nested := ""
		if prefix != "" {
			nested = prefix + "_" + strings.ToUpper(fieldName)
		}
		return s.Instantiate(nested, nil)
	case *InterfaceValue:
		factory, ok := s.factory.(*InterfaceFactory)
		if !ok {
			return nil, fmt.Errorf("interface field `%s`: template has no factory", fieldName)
		}
		nested := ""
		if prefix != "" {
			nested = prefix + "_" + strings.ToUpper(fieldName)
		}
		return factory.Instantiate(nested, nil)
	}
	return nil, fmt.Errorf("invalid field type %s for field %s", spec.Type(), fieldName)
}

// InterfaceValue is an instantiated interface: a bundle of named nets and
// nested interface instances.
type InterfaceValue struct {
	fields  *SmallMap
	factory starlark.Value
	frozen  bool
}

var (
	_ starlark.Value    = (*InterfaceValue)(nil)
	_ starlark.HasAttrs = (*InterfaceValue)(nil)
)

// Fields returns the ordered instance fields.
func (iv *InterfaceValue) Fields() *SmallMap { return iv.fields }

// Factory returns the factory that produced this instance.
func (iv *InterfaceValue) Factory() starlark.Value { return iv.factory }

func (iv *InterfaceValue) Type() string          { return "InterfaceValue" }
func (iv *InterfaceValue) Truth() starlark.Bool  { return starlark.True }
func (iv *InterfaceValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: InterfaceValue") }

func (iv *InterfaceValue) Freeze() {
	if iv.frozen {
		return
	}
	iv.frozen = true
	iv.fields.Freeze()
	iv.factory.Freeze()
}

func (iv *InterfaceValue) String() string {
	var sb strings.Builder
	sb.WriteString("InterfaceValue(")
	first := true
	_ = iv.fields.Each(func(name string, v starlark.Value) error {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(name)
		sb.WriteString(" = ")
		sb.WriteString(v.String())
		return nil
	})
	sb.WriteString(")")
	return sb.String()
}

func (iv *InterfaceValue) Attr(name string) (starlark.Value, error) {
	if v, ok := iv.fields.Get(name); ok {
		return v, nil
	}
	return nil, nil
}

func (iv *InterfaceValue) AttrNames() []string {
	return append([]string(nil), iv.fields.Keys()...)
}

func copyInterfaceValue(iv *InterfaceValue) *InterfaceValue {
	fields := NewSmallMap()
	_ = iv.fields.Each(func(k string, v starlark.Value) error {
		fields.Set(k, Copy(v))
		return nil
	})
	return &InterfaceValue{fields: fields, factory: iv.factory}
}
