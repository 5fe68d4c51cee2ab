package eval

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/sexpr"
	"github.com/pro-utkarshM/picoplace/internal/value"
)

// SymbolType is the `Symbol` global: a callable type value constructing
// symbol values either from an explicit definition or from a KiCad symbol
// library resolved through the load resolver.
type SymbolType struct{}

var (
	_ starlark.Value    = SymbolType{}
	_ starlark.Callable = SymbolType{}
)

func (SymbolType) Type() string          { return "SymbolType" }
func (SymbolType) String() string        { return "<type Symbol>" }
func (SymbolType) Freeze()               {}
func (SymbolType) Truth() starlark.Bool  { return starlark.True }
func (SymbolType) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: SymbolType") }
func (SymbolType) Name() string          { return "Symbol" }

func (SymbolType) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var librarySpec starlark.Value
	var name, library string
	var definition starlark.Value
	if err := starlark.UnpackArgs("Symbol", args, kwargs,
		"library_spec?", &librarySpec,
		"name?", &name,
		"definition?", &definition,
		"library?", &library,
	); err != nil {
		return nil, err
	}

	// Positional "library:name" shorthand.
	if librarySpec != nil && librarySpec != starlark.None {
		spec, ok := starlark.AsString(librarySpec)
		if !ok {
			return nil, fmt.Errorf("Symbol: positional argument must be a string")
		}
		if library != "" || name != "" {
			return nil, fmt.Errorf("Symbol: cannot specify both positional 'library:name' argument and named 'library' or 'name' parameters")
		}
		lib, symName := sexpr.SplitLibraryRef(spec)
		library, name = lib, symName
	}

	if definition != nil && definition != starlark.None {
		if library != "" {
			return nil, fmt.Errorf("Symbol: 'definition' and 'library' are mutually exclusive")
		}
		sym, err := symbolFromDefinition(definition)
		if err != nil {
			return nil, err
		}
		sym.SymName = name
		return sym, nil
	}

	if library == "" {
		return nil, fmt.Errorf("Symbol requires either 'definition' or 'library' parameter")
	}

	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("Symbol: no evaluation context")
	}
	resolved, err := ctx.resolver.ResolvePath(ctx.provider, library, ctx.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("Symbol: failed to resolve library path: %v", err)
	}
	return loadSymbolFromLibrary(ctx, resolved, name)
}

// symbolFromDefinition builds a symbol from [(signal, [pads...]), ...].
func symbolFromDefinition(definition starlark.Value) (*value.Symbol, error) {
	list, ok := definition.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("`definition` must be a list of (signal_name, [pad_names]) tuples")
	}
	sym := &value.Symbol{}
	seenPads := map[string]bool{}
	it := list.Iterate()
	defer it.Done()
	var item starlark.Value
	for it.Next(&item) {
		tuple, ok := item.(starlark.Tuple)
		if !ok || len(tuple) != 2 {
			return nil, fmt.Errorf("each definition item must be a tuple of (signal_name, [pad_names])")
		}
		signal, ok := starlark.AsString(tuple[0])
		if !ok {
			return nil, fmt.Errorf("signal name must be a string")
		}
		pads, ok := tuple[1].(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("pad names must be a list")
		}
		if pads.Len() == 0 {
			return nil, fmt.Errorf("signal %q must map to at least one pad", signal)
		}
		padIt := pads.Iterate()
		var pad starlark.Value
		for padIt.Next(&pad) {
			padName, ok := starlark.AsString(pad)
			if !ok {
				padIt.Done()
				return nil, fmt.Errorf("pad name must be a string")
			}
			if seenPads[padName] {
				padIt.Done()
				return nil, fmt.Errorf("pad %q is assigned to multiple signals", padName)
			}
			seenPads[padName] = true
			sym.PadToSignal = append(sym.PadToSignal, value.PadSignal{Pad: padName, Signal: signal})
		}
		padIt.Done()
	}
	return sym, nil
}

// readSymbolLibrary loads and parses a .kicad_sym file through the
// provider.
func readSymbolLibrary(ctx *Context, path string) ([]*sexpr.Symbol, error) {
	contents, err := ctx.provider.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol library %s: %v", path, err)
	}
	symbols, err := sexpr.ParseSymbolLibrary(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to parse symbol library %s: %v", path, err)
	}
	return symbols, nil
}

// loadSymbolFromLibrary picks a symbol out of a library file. With no name
// the library must contain exactly one symbol; unknown names error with
// the available symbols listed.
func loadSymbolFromLibrary(ctx *Context, path, name string) (*value.Symbol, error) {
	symbols, err := readSymbolLibrary(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols found in library %q", path)
	}

	var chosen *sexpr.Symbol
	if name == "" {
		if len(symbols) > 1 {
			names := sexpr.SymbolNames(symbols)
			sort.Strings(names)
			return nil, fmt.Errorf("library %q contains %d symbols; specify one of: %s",
				path, len(symbols), strings.Join(names, ", "))
		}
		chosen = symbols[0]
	} else {
		for _, s := range symbols {
			if s.Name == name {
				chosen = s
				break
			}
		}
		if chosen == nil {
			names := sexpr.SymbolNames(symbols)
			sort.Strings(names)
			return nil, fmt.Errorf("symbol %q not found in library %q. Available symbols: %s",
				name, path, strings.Join(names, ", "))
		}
	}
	return symbolValueFrom(chosen, path), nil
}

func symbolValueFrom(s *sexpr.Symbol, path string) *value.Symbol {
	sym := &value.Symbol{
		SymName:    s.Name,
		SourcePath: path,
		RawSexp:    s.Raw,
	}
	for _, pin := range s.Pins {
		sym.PadToSignal = append(sym.PadToSignal, value.PadSignal{Pad: pin.Number, Signal: pin.Name})
	}
	return sym
}

// buildComponentFactory parses a symbol library and pre-binds a component
// constructor to its (single or first) symbol. Symbol properties provide
// the prefix (Reference), manufacturer part number (MPN), and default
// properties; ki_* bookkeeping properties are dropped.
func buildComponentFactory(ctx *Context, symbolPath, footprint string) (*ComponentFactory, error) {
	symbols, err := readSymbolLibrary(ctx, symbolPath)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols found in file %q", symbolPath)
	}
	chosen := symbols[0]

	prefix := "U"
	mpn := ""
	defaults := map[string]string{}
	for key, val := range chosen.Properties {
		switch {
		case key == "Reference":
			if val != "" {
				prefix = val
			}
		case key == "MPN" || key == "Mpn":
			mpn = val
		case key == "Footprint":
			if footprint == "" {
				footprint = val
			}
		case strings.HasPrefix(key, "ki_"):
			// KiCad bookkeeping, not a component property.
		case key == "Value" || key == "Datasheet" || key == "Description":
			if val != "" {
				defaults[strings.ToLower(key)] = val
			}
		default:
			defaults[key] = val
		}
	}

	return &ComponentFactory{
		FactoryName:       chosen.Name,
		Symbol:            symbolValueFrom(chosen, symbolPath),
		Footprint:         footprint,
		Prefix:            prefix,
		MPN:               mpn,
		DefaultProperties: defaults,
	}, nil
}
