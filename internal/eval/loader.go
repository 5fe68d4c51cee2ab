package eval

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/diag"
	"github.com/pro-utkarshM/picoplace/internal/value"
)

// ModuleLoader is the value returned by Module(path) and by directory
// loads: a handle on a referenceable module file. Invoking it with keyword
// arguments evaluates the file in strict mode and attaches the resulting
// module as a child of the calling module. The target file's public
// globals are re-exported as attributes for dot-notation access.
type ModuleLoader struct {
	LoaderName string
	SourcePath string
	// Params lists the invocable keyword parameters (always including
	// "name" and "properties"), sorted.
	Params []string
	// ParamTypes maps parameter names to their type value's display form.
	ParamTypes map[string]string

	globals   starlark.StringDict
	signature []*value.Parameter
	frozen    bool
}

var (
	_ starlark.Value    = (*ModuleLoader)(nil)
	_ starlark.Callable = (*ModuleLoader)(nil)
	_ starlark.HasAttrs = (*ModuleLoader)(nil)
)

func (l *ModuleLoader) Type() string          { return "ModuleLoader" }
func (l *ModuleLoader) Truth() starlark.Bool  { return starlark.True }
func (l *ModuleLoader) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: ModuleLoader") }
func (l *ModuleLoader) Name() string          { return l.LoaderName }
func (l *ModuleLoader) String() string        { return "<ModuleLoader " + l.LoaderName + ">" }

func (l *ModuleLoader) Freeze() {
	if l.frozen {
		return
	}
	l.frozen = true
	if l.globals != nil {
		l.globals.Freeze()
	}
}

// Attr re-exports the target module's public globals so callers can write
// Sub.SomeExport. Names starting with "__" stay private.
func (l *ModuleLoader) Attr(name string) (starlark.Value, error) {
	if strings.HasPrefix(name, "__") {
		return nil, nil
	}
	if v, ok := l.globals[name]; ok {
		return v, nil
	}
	return nil, nil
}

func (l *ModuleLoader) AttrNames() []string {
	var names []string
	for name := range l.globals {
		if !strings.HasPrefix(name, "__") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// buildModuleLoader introspects the file at path once (empty inputs,
// non-strict) so the loader knows the module's parameters and exports.
func buildModuleLoader(parent *Context, path string) (*ModuleLoader, []diag.Diagnostic) {
	name := fileStem(path)
	result := parent.childContext().
		SetSourcePath(path).
		SetModuleName(name).
		SetInputs(InputMap{}).
		Eval()

	loader := &ModuleLoader{
		LoaderName: name,
		SourcePath: path,
		Params:     []string{"name", "properties"},
		ParamTypes: map[string]string{},
	}
	if result.Output != nil {
		loader.globals = result.Output.Globals
		loader.signature = result.Output.Signature
		for _, p := range result.Output.Signature {
			loader.Params = append(loader.Params, p.Name)
			loader.ParamTypes[p.Name] = p.TypeValue.String()
		}
	}
	sort.Strings(loader.Params)
	loader.Params = dedupSorted(loader.Params)

	if result.Output == nil {
		return nil, result.Diagnostics
	}
	return loader, result.Diagnostics
}

func dedupSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || in[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// CallInternal instantiates the module. Only keyword arguments are
// accepted: `name` (required, with a soft fallback to the loader's name),
// `properties` (a dict attached before the body runs), and the child's
// io()/config() inputs.
func (l *ModuleLoader) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ctx := contextOf(thread)
	if ctx == nil {
		return nil, fmt.Errorf("ModuleLoader invoked outside an evaluation context")
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("ModuleLoader only supports named arguments")
	}

	inputs := InputMap{}
	provided := map[string]bool{}
	overrideName := ""
	var properties *value.SmallMap

	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		switch key {
		case "name":
			s, ok := starlark.AsString(kv[1])
			if !ok {
				return nil, fmt.Errorf("name parameter must be a string")
			}
			overrideName = s
		case "properties":
			dict, ok := kv[1].(*starlark.Dict)
			if !ok {
				return nil, fmt.Errorf("properties parameter must be a dict")
			}
			props, err := value.FromDict(dict)
			if err != nil {
				return nil, fmt.Errorf("properties parameter: %v", err)
			}
			properties = props
		default:
			provided[key] = true
			inputs[key] = value.Copy(kv[1])
		}
	}

	callFile, callSpan := callSite(thread)

	finalName := overrideName
	if finalName == "" {
		ctx.addDiagnostic(diag.Diagnostic{
			Path:     callFile,
			Span:     callSpan,
			Severity: diag.Warning,
			Body:     fmt.Sprintf("missing required argument `name` when instantiating module %s", l.LoaderName),
		})
		finalName = l.LoaderName
	}

	child := ctx.childContext().
		SetSourcePath(l.SourcePath).
		SetModuleName(finalName).
		SetInputs(inputs).
		SetStrict(true)
	if properties != nil {
		child.SetProperties(properties)
	}
	result := child.Eval()

	hadDiags := len(result.Diagnostics) > 0
	for i := range result.Diagnostics {
		childDiag := result.Diagnostics[i]
		wrapped := diag.Diagnostic{
			Path:     callFile,
			Span:     callSpan,
			Severity: childDiag.Severity,
			Body:     fmt.Sprintf("error instantiating `%s`", finalName),
			Child:    &childDiag,
		}
		if callFile == "" {
			wrapped = childDiag
		}
		ctx.addDiagnostic(wrapped)
	}

	if result.Output == nil {
		if !hadDiags {
			ctx.addDiagnostic(diag.Diagnostic{
				Path:     callFile,
				Span:     callSpan,
				Severity: diag.Error,
				Body:     fmt.Sprintf("failed to instantiate module %s", l.LoaderName),
			})
		}
		return starlark.None, nil
	}

	ctx.module.AddChild(result.Output.Module)

	used := map[string]bool{}
	for _, p := range result.Output.Signature {
		used[p.Name] = true
	}
	var unused []string
	for name := range provided {
		if !used[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		ctx.addDiagnostic(diag.Diagnostic{
			Path:     callFile,
			Span:     callSpan,
			Severity: diag.Warning,
			Body: fmt.Sprintf("unknown argument(s) provided to module %s: %s",
				l.LoaderName, strings.Join(unused, ", ")),
		})
	}

	return starlark.None, nil
}
