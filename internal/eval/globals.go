package eval

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/value"
)

// Globals returns the predeclared environment for user code: the domain
// primitives plus the enum/record type constructors. The engine supplies
// the universal built-ins (len, str, print, ...) on top of these.
func Globals() starlark.StringDict {
	return starlark.StringDict{
		"Net":            value.NetType{},
		"interface":      starlark.NewBuiltin("interface", interfaceBuiltin),
		"Component":      ComponentType{},
		"Symbol":         SymbolType{},
		"load_component": starlark.NewBuiltin("load_component", loadComponentBuiltin),
		"Module":         starlark.NewBuiltin("Module", moduleBuiltin),
		"io":             starlark.NewBuiltin("io", ioBuiltin),
		"config":         starlark.NewBuiltin("config", configBuiltin),
		"add_property":   starlark.NewBuiltin("add_property", addPropertyBuiltin),
		"check":          starlark.NewBuiltin("check", checkBuiltin),
		"error":          starlark.NewBuiltin("error", errorBuiltin),
		"File":           starlark.NewBuiltin("File", fileBuiltin),
		"enum":           starlark.NewBuiltin("enum", enumBuiltin),
		"record":         starlark.NewBuiltin("record", recordBuiltin),
	}
}

func interfaceBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("interface: fields must be passed as keyword arguments")
	}
	fields := value.NewSmallMap()
	for _, kv := range kwargs {
		fields.Set(string(kv[0].(starlark.String)), kv[1])
	}
	return value.NewInterfaceFactory(fields)
}

func enumBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("enum: variants must be positional strings")
	}
	variants := make([]string, 0, len(args))
	for _, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("enum: variant must be a string, got %s", a.Type())
		}
		variants = append(variants, s)
	}
	return value.NewEnumType(variants)
}

func recordBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("record: fields must be passed as keyword arguments")
	}
	fields := value.NewSmallMap()
	for _, kv := range kwargs {
		fields.Set(string(kv[0].(starlark.String)), kv[1])
	}
	return value.NewRecordType(fields), nil
}

func addPropertyBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var v starlark.Value
	if err := starlark.UnpackArgs("add_property", args, kwargs, "name", &name, "value", &v); err != nil {
		return nil, err
	}
	ctx := contextOf(thread)
	if ctx == nil || ctx.module == nil {
		return nil, fmt.Errorf("add_property: no module context")
	}
	ctx.module.SetProperty(name, v)
	return starlark.None, nil
}

func checkBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	var msg string
	if err := starlark.UnpackArgs("check", args, kwargs, "condition", &cond, "message", &msg); err != nil {
		return nil, err
	}
	if !bool(cond.Truth()) {
		return nil, fmt.Errorf("check failed: %s", msg)
	}
	return starlark.None, nil
}

func errorBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackArgs("error", args, kwargs, "message", &msg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%s", msg)
}

func fileBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs("File", args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("File: no evaluation context")
	}
	resolved, err := ctx.resolver.ResolvePath(ctx.provider, path, ctx.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("File: failed to resolve %q: %v", path, err)
	}
	return starlark.String(resolved), nil
}

func moduleBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs("Module", args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("Module: no evaluation context")
	}
	resolved, err := ctx.resolver.ResolvePath(ctx.provider, path, ctx.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module path %q: %v", path, err)
	}
	if !ctx.provider.Exists(resolved) {
		return nil, fmt.Errorf("module file not found: %s", resolved)
	}

	ctx.session.RecordModuleDependency(ctx.sourcePath, resolved)

	loader, diags := buildModuleLoader(ctx, resolved)
	if loader == nil {
		if first := firstErrorDiag(diags); first != nil {
			return nil, fmt.Errorf("failed to introspect module %q: %s", path, first.Body)
		}
		return nil, fmt.Errorf("failed to introspect module %q", path)
	}
	ctx.session.RecordSymbol(ctx.sourcePath, loader.LoaderName, resolved)
	return loader, nil
}

// typeCheck validates that v matches the placeholder type typ.
func typeCheck(name string, v, typ starlark.Value) error {
	ok := false
	switch t := typ.(type) {
	case value.NetType:
		_, ok = v.(*value.Net)
	case *value.InterfaceFactory:
		_, ok = v.(*value.InterfaceValue)
	case *value.EnumType:
		ev, isEnum := v.(*value.EnumValue)
		ok = isEnum && ev.EnumTypeOf() == t
	case *value.RecordType:
		rv, isRecord := v.(*value.RecordValue)
		ok = isRecord && rv.RecordTypeOf() == t
	case *starlark.Builtin:
		switch t.Name() {
		case "str":
			_, ok = v.(starlark.String)
		case "int":
			_, ok = v.(starlark.Int)
		case "float":
			_, ok = v.(starlark.Float)
		case "bool":
			_, ok = v.(starlark.Bool)
		default:
			return fmt.Errorf("io()/config() only accepts Net, Interface, Enum, Record, str, int, float, or bool types, got %s", t.Name())
		}
	default:
		return fmt.Errorf("io()/config() only accepts Net, Interface, Enum, Record, str, int, float, or bool types, got %s", typ.Type())
	}
	if !ok {
		return fmt.Errorf("input `%s` has wrong type for this placeholder: expected %s, got %s", name, typeDisplay(typ), v.Type())
	}
	return nil
}

func typeDisplay(typ starlark.Value) string {
	if b, ok := typ.(*starlark.Builtin); ok {
		return b.Name()
	}
	return typ.Type()
}

// defaultForType synthesizes a default value for a placeholder type:
// fresh empty-named Net, interface instantiated with no prefix, first enum
// variant, or the primitive zero value. Records have no synthetic default.
func defaultForType(typ starlark.Value) (starlark.Value, error) {
	switch t := typ.(type) {
	case value.NetType:
		return value.NewNet("", nil, starlark.None), nil
	case *value.InterfaceFactory:
		return t.Instantiate("", nil)
	case *value.EnumType:
		return t.First(), nil
	case *value.RecordType:
		return nil, fmt.Errorf("record dependencies require a default value")
	case *starlark.Builtin:
		switch t.Name() {
		case "str":
			return starlark.String(""), nil
		case "int":
			return starlark.MakeInt(0), nil
		case "float":
			return starlark.Float(0.0), nil
		case "bool":
			return starlark.False, nil
		}
	}
	return nil, fmt.Errorf("config/io() only accepts Net, Interface, Enum, Record, str, int, float, or bool types, got %s", typeDisplay(typ))
}

// tryEnumConversion attempts to build an enum variant from a raw value by
// calling the enum factory. Returns nil when typ is not an enum type.
func tryEnumConversion(thread *starlark.Thread, v, typ starlark.Value) (starlark.Value, error) {
	et, ok := typ.(*value.EnumType)
	if !ok {
		return nil, nil
	}
	if _, already := v.(*value.EnumValue); already {
		return nil, nil
	}
	converted, err := starlark.Call(thread, et, starlark.Tuple{v}, nil)
	if err != nil {
		return nil, err
	}
	return converted, nil
}

// validateOrConvert applies, in order: direct type check, the caller's
// convert function, automatic int→float coercion, and enum factory
// conversion.
func validateOrConvert(thread *starlark.Thread, name string, v, typ, convert starlark.Value) (starlark.Value, error) {
	if err := typeCheck(name, v, typ); err == nil {
		return v, nil
	}

	if convert != nil && convert != starlark.None {
		converted, err := starlark.Call(thread, convert, starlark.Tuple{v}, nil)
		if err != nil {
			return nil, fmt.Errorf("input `%s`: convert failed: %v", name, err)
		}
		if err := typeCheck(name, converted, typ); err != nil {
			return nil, err
		}
		return converted, nil
	}

	if b, ok := typ.(*starlark.Builtin); ok && b.Name() == "float" {
		if i, ok := v.(starlark.Int); ok {
			f, _ := starlark.AsFloat(i)
			return starlark.Float(f), nil
		}
	}

	if converted, err := tryEnumConversion(thread, v, typ); err == nil && converted != nil {
		return converted, nil
	}

	return nil, typeCheck(name, v, typ)
}

// placeholder implements the shared io()/config() policy. isConfig toggles
// the convert hook and the io-only synthesis of optional Net/Interface
// values.
func placeholder(thread *starlark.Thread, isConfig bool, name string, typ, def, convert starlark.Value, optional bool, help string) (starlark.Value, error) {
	ctx := contextOf(thread)
	if ctx == nil || ctx.module == nil {
		return nil, fmt.Errorf("io()/config() called outside a module evaluation")
	}

	ctx.module.AddParameter(&value.Parameter{
		Name:      name,
		TypeValue: typ,
		Optional:  optional,
		Default:   def,
		IsConfig:  isConfig,
		Help:      help,
	})

	result, err := resolvePlaceholder(thread, ctx, isConfig, name, typ, def, convert, optional)
	if err != nil {
		return nil, err
	}
	ctx.module.SetParameterResolved(name, result)
	return result, nil
}

func resolvePlaceholder(thread *starlark.Thread, ctx *Context, isConfig bool, name string, typ, def, convert starlark.Value, optional bool) (starlark.Value, error) {
	// 1. Value supplied by the parent.
	if provided, ok := ctx.inputs[name]; ok {
		if !isConfig {
			if err := typeCheck(name, provided, typ); err == nil {
				return provided, nil
			}
			if converted, cerr := tryEnumConversion(thread, provided, typ); cerr == nil && converted != nil {
				return converted, nil
			}
			return nil, typeCheck(name, provided, typ)
		}
		return validateOrConvert(thread, name, provided, typ, convert)
	}

	// 2. Optional placeholders.
	if optional {
		if def != nil {
			if isConfig {
				return validateOrConvert(thread, name, def, typ, convert)
			}
			if err := typeCheck(name, def, typ); err != nil {
				return nil, err
			}
			return def, nil
		}
		if !isConfig {
			switch typ.(type) {
			case value.NetType, *value.InterfaceFactory:
				// io() materializes optional nets and interfaces so user
				// code can rely on a valid object.
				return defaultForType(typ)
			}
		}
		return starlark.None, nil
	}

	// 3. Required placeholder: in strict mode without a default, record the
	// missing name and keep evaluating on a synthesized stand-in so every
	// missing input is reported, not just the first.
	if ctx.strict && def == nil {
		ctx.addMissingInput(name)
		if synth, err := defaultForType(typ); err == nil {
			return synth, nil
		}
		return starlark.None, nil
	}

	// 4. Caller default, else a synthesized one.
	if def != nil {
		if isConfig {
			return validateOrConvert(thread, name, def, typ, convert)
		}
		if err := typeCheck(name, def, typ); err != nil {
			return nil, err
		}
		return def, nil
	}
	synth, err := defaultForType(typ)
	if err != nil {
		return nil, err
	}
	if isConfig {
		return validateOrConvert(thread, name, synth, typ, convert)
	}
	return synth, nil
}

func ioBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var typ, def starlark.Value
	var optional bool
	var help string
	if err := starlark.UnpackArgs("io", args, kwargs,
		"name", &name,
		"type", &typ,
		"default?", &def,
		"optional?", &optional,
		"help?", &help,
	); err != nil {
		return nil, err
	}
	return placeholder(thread, false, name, typ, def, nil, optional, help)
}

func configBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var typ, def, convert starlark.Value
	var optional bool
	var help string
	if err := starlark.UnpackArgs("config", args, kwargs,
		"name", &name,
		"type", &typ,
		"default?", &def,
		"convert?", &convert,
		"optional?", &optional,
		"help?", &help,
	); err != nil {
		return nil, err
	}
	return placeholder(thread, true, name, typ, def, convert, optional, help)
}

// resolveFootprint makes relative .kicad_mod footprints absolute against
// the source file's directory.
func resolveFootprint(ctx *Context, footprint string) string {
	if !strings.HasSuffix(footprint, ".kicad_mod") || filepath.IsAbs(footprint) {
		return footprint
	}
	dir := filepath.Dir(ctx.sourcePath)
	if dir == "" {
		return footprint
	}
	return filepath.Join(dir, footprint)
}
