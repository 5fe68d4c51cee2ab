package eval

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/value"
)

// ComponentType is the `Component` global: a callable type value that
// constructs component values and registers them on the current module.
type ComponentType struct{}

var (
	_ starlark.Value    = ComponentType{}
	_ starlark.Callable = ComponentType{}
)

func (ComponentType) Type() string          { return "Component" }
func (ComponentType) String() string        { return "<type Component>" }
func (ComponentType) Freeze()               {}
func (ComponentType) Truth() starlark.Bool  { return starlark.True }
func (ComponentType) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Component") }
func (ComponentType) Name() string          { return "Component" }

func (ComponentType) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("Component: no evaluation context")
	}

	var name, footprint, prefix string
	var pinDefs, pins, properties *starlark.Dict
	var symbol, mpn, ctype starlark.Value
	prefix = "U"
	if err := starlark.UnpackArgs("Component", args, kwargs,
		"name", &name,
		"footprint", &footprint,
		"pins", &pins,
		"pin_defs?", &pinDefs,
		"prefix?", &prefix,
		"symbol?", &symbol,
		"mpn?", &mpn,
		"type?", &ctype,
		"properties?", &properties,
	); err != nil {
		return nil, err
	}

	sym, err := symbolForComponent(pinDefs, symbol)
	if err != nil {
		return nil, err
	}

	return makeComponent(ctx, componentArgs{
		name:       name,
		footprint:  footprint,
		prefix:     prefix,
		mpn:        optStr(mpn),
		ctype:      optStr(ctype),
		symbol:     sym,
		pins:       pins,
		properties: properties,
	})
}

func optStr(v starlark.Value) string {
	if v == nil || v == starlark.None {
		return ""
	}
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return ""
}

// symbolForComponent derives the final symbol from pin_defs and/or a Symbol
// value. Exactly one of them must be present; when both are given pin_defs
// overrides the signal mapping while the symbol's metadata is preserved.
func symbolForComponent(pinDefs *starlark.Dict, symbol starlark.Value) (*value.Symbol, error) {
	var symVal *value.Symbol
	if symbol != nil && symbol != starlark.None {
		sv, ok := symbol.(*value.Symbol)
		if !ok {
			return nil, fmt.Errorf("use Symbol(library = \"...\") to load a symbol from a library")
		}
		symVal = sv
	}

	if pinDefs != nil {
		var padToSignal []value.PadSignal
		seen := map[string]bool{}
		for _, item := range pinDefs.Items() {
			pinName, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("pin name must be a string")
			}
			padName, ok := starlark.AsString(item[1])
			if !ok {
				return nil, fmt.Errorf("pad must be a string")
			}
			if seen[padName] {
				return nil, fmt.Errorf("duplicate pad %q in pin_defs", padName)
			}
			seen[padName] = true
			padToSignal = append(padToSignal, value.PadSignal{Pad: padName, Signal: pinName})
		}
		out := &value.Symbol{PadToSignal: padToSignal}
		if symVal != nil {
			out.SymName = symVal.SymName
			out.SourcePath = symVal.SourcePath
			out.RawSexp = symVal.RawSexp
		}
		return out, nil
	}

	if symVal != nil {
		return symVal, nil
	}
	return nil, fmt.Errorf("either `pin_defs` or a Symbol value for `symbol` must be provided")
}

type componentArgs struct {
	name       string
	footprint  string
	prefix     string
	mpn        string
	ctype      string
	symbol     *value.Symbol
	pins       *starlark.Dict
	properties *starlark.Dict
}

// makeComponent validates connections against the symbol, fills in symbol
// metadata properties, and registers the component on the current module.
func makeComponent(ctx *Context, a componentArgs) (starlark.Value, error) {
	connections := value.NewSmallMap()
	for _, item := range a.pins.Items() {
		signalName, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("pin names must be strings")
		}
		if !a.symbol.HasSignal(signalName) {
			return nil, fmt.Errorf("unknown pin name %q (expected one of: %s)",
				signalName, strings.Join(a.symbol.SignalNames(), ", "))
		}
		net, ok := item[1].(*value.Net)
		if !ok {
			return nil, fmt.Errorf("pin %q must be connected to a Net, got %s", signalName, item[1].Type())
		}
		connections.Set(signalName, net)
	}

	var missing []string
	for _, signal := range a.symbol.SignalNames() {
		if !connections.Has(signal) {
			missing = append(missing, signal)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unconnected pin(s): %s", strings.Join(missing, ", "))
	}

	props := value.NewSmallMap()
	if a.properties != nil {
		for _, item := range a.properties.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			props.Set(key, item[1])
		}
	}
	if a.symbol.SourcePath != "" {
		props.Set("symbol_path", starlark.String(a.symbol.SourcePath))
	}
	if a.symbol.SymName != "" {
		props.Set("symbol_name", starlark.String(a.symbol.SymName))
	}

	component := &value.Component{
		CompName:    a.name,
		MPN:         a.mpn,
		CType:       a.ctype,
		Footprint:   resolveFootprint(ctx, a.footprint),
		Prefix:      a.prefix,
		SourcePath:  ctx.sourcePath,
		Connections: connections,
		Properties:  props,
		Sym:         a.symbol,
	}

	ctx.module.AddChild(component)
	return component, nil
}

// ComponentFactory is a component constructor pre-bound to a symbol,
// footprint, prefix, and default properties. Returned by load_component()
// and by directory imports of .kicad_sym files.
type ComponentFactory struct {
	FactoryName string
	Symbol      *value.Symbol
	Footprint   string
	Prefix      string
	MPN         string
	DefaultProperties map[string]string
	frozen      bool
}

var (
	_ starlark.Value    = (*ComponentFactory)(nil)
	_ starlark.Callable = (*ComponentFactory)(nil)
)

func (f *ComponentFactory) Type() string          { return "ComponentFactory" }
func (f *ComponentFactory) Freeze()               { f.frozen = true }
func (f *ComponentFactory) Truth() starlark.Bool  { return starlark.True }
func (f *ComponentFactory) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: ComponentFactory") }
func (f *ComponentFactory) Name() string          { return f.FactoryName }
func (f *ComponentFactory) String() string        { return "<ComponentFactory " + f.FactoryName + ">" }

func (f *ComponentFactory) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("%s: no evaluation context", f.FactoryName)
	}

	var name string
	var pins, properties *starlark.Dict
	footprint := f.Footprint
	prefix := f.Prefix
	var mpn, ctype starlark.Value
	if err := starlark.UnpackArgs(f.FactoryName, args, kwargs,
		"name", &name,
		"pins", &pins,
		"footprint?", &footprint,
		"prefix?", &prefix,
		"mpn?", &mpn,
		"type?", &ctype,
		"properties?", &properties,
	); err != nil {
		return nil, err
	}
	if footprint == "" {
		return nil, fmt.Errorf("%s: no footprint bound and none provided", f.FactoryName)
	}

	merged := starlark.NewDict(len(f.DefaultProperties))
	keys := make([]string, 0, len(f.DefaultProperties))
	for k := range f.DefaultProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = merged.SetKey(starlark.String(k), starlark.String(f.DefaultProperties[k]))
	}
	if properties != nil {
		for _, item := range properties.Items() {
			_ = merged.SetKey(item[0], item[1])
		}
	}

	mpnStr := optStr(mpn)
	if mpnStr == "" {
		mpnStr = f.MPN
	}

	return makeComponent(ctx, componentArgs{
		name:       name,
		footprint:  footprint,
		prefix:     prefix,
		mpn:        mpnStr,
		ctype:      optStr(ctype),
		symbol:     f.Symbol,
		pins:       pins,
		properties: merged,
	})
}

func loadComponentBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var symbolPath string
	var footprint string
	if err := starlark.UnpackArgs("load_component", args, kwargs,
		"symbol_path", &symbolPath,
		"footprint?", &footprint,
	); err != nil {
		return nil, err
	}
	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("load_component: no evaluation context")
	}

	resolved, err := ctx.resolver.ResolvePath(ctx.provider, symbolPath, ctx.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("load_component: failed to resolve %q: %v", symbolPath, err)
	}
	factory, err := buildComponentFactory(ctx, resolved, footprint)
	if err != nil {
		return nil, err
	}
	return factory, nil
}
