package eval

import (
	"bytes"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/text/unicode/norm"

	"github.com/pro-utkarshM/picoplace/internal/diag"
	"github.com/pro-utkarshM/picoplace/internal/fileprovider"
	"github.com/pro-utkarshM/picoplace/internal/resolver"
	"github.com/pro-utkarshM/picoplace/internal/value"
)

// InputMap holds the values a parent supplied for a child module's io() and
// config() placeholders.
type InputMap map[string]starlark.Value

// Output is the result of evaluating one source file.
type Output struct {
	// Globals are the file's frozen top-level bindings.
	Globals starlark.StringDict
	// Module is the frozen module value built up during execution.
	Module *value.Module
	// Signature lists the io()/config() parameters in declaration order.
	Signature []*value.Parameter
	// PrintOutput collects everything print() emitted.
	PrintOutput []string
}

// Context evaluates one source file. Contexts are single-use: configure via
// the setters, then call Eval once.
type Context struct {
	session  *Session
	provider fileprovider.FileProvider
	resolver resolver.LoadResolver

	strict     bool
	sourcePath string
	contents   *string
	name       string
	inputs     InputMap
	properties *value.SmallMap

	module      *value.Module
	diags       []diag.Diagnostic
	missing     []string
	printOutput []string
}

// NewContext builds a root evaluation context with a fresh session.
func NewContext(provider fileprovider.FileProvider, res resolver.LoadResolver) *Context {
	return &Context{
		session:  NewSession(),
		provider: provider,
		resolver: res,
	}
}

// childContext returns a context sharing this context's session, provider,
// and resolver, with per-evaluation state reset.
func (c *Context) childContext() *Context {
	return &Context{
		session:  c.session,
		provider: c.provider,
		resolver: c.resolver,
	}
}

// Session exposes the shared state (for embedding hosts and tests).
func (c *Context) Session() *Session { return c.session }

// SetSession replaces the shared state so independent contexts can share
// caches across elaborations of one workspace.
func (c *Context) SetSession(s *Session) *Context {
	c.session = s
	return c
}

// SetSourcePath sets the file to evaluate.
func (c *Context) SetSourcePath(path string) *Context {
	c.sourcePath = path
	return c
}

// SetSourceContents overrides the file contents (e.g. unsaved editor
// buffers). When unset, contents are read through the FileProvider.
func (c *Context) SetSourceContents(contents string) *Context {
	c.contents = &contents
	return c
}

// SetModuleName sets the user-visible name of the root module value.
func (c *Context) SetModuleName(name string) *Context {
	c.name = name
	return c
}

// SetInputs supplies the io()/config() inputs from the parent.
func (c *Context) SetInputs(inputs InputMap) *Context {
	c.inputs = inputs
	return c
}

// SetProperties attaches properties to the module value before the file
// body runs.
func (c *Context) SetProperties(props *value.SmallMap) *Context {
	c.properties = props
	return c
}

// SetStrict toggles strict io/config checking: missing required inputs
// become errors instead of synthesized placeholders.
func (c *Context) SetStrict(strict bool) *Context {
	c.strict = strict
	return c
}

func (c *Context) addDiagnostic(d diag.Diagnostic) {
	c.diags = append(c.diags, d)
}

func (c *Context) addMissingInput(name string) {
	for _, m := range c.missing {
		if m == name {
			return
		}
	}
	c.missing = append(c.missing, name)
}

// fileOptions configures the language dialect.
func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// normalizeSource strips a UTF-8 BOM, folds CRLF line endings, and applies
// Unicode NFC normalization so source text compares and spans consistently
// across platforms and editors.
func normalizeSource(src string) string {
	b := []byte(src)
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
	return norm.NFC.String(string(b))
}

const threadContextKey = "picoplace.evalContext"

func contextOf(thread *starlark.Thread) *Context {
	ctx, _ := thread.Local(threadContextKey).(*Context)
	return ctx
}

// Eval executes the configured file and returns its frozen module value
// plus diagnostics. Missing configuration (no source path) is reported as
// a failed result rather than a panic.
func (c *Context) Eval() diag.WithDiagnostics[Output] {
	if c.sourcePath == "" {
		return diag.Failure[Output]([]diag.Diagnostic{{
			Severity: diag.Error,
			Body:     "source path not set before eval",
		}})
	}

	contents := ""
	if c.contents != nil {
		contents = *c.contents
	} else if cached, ok := c.session.FileContents(c.sourcePath); ok {
		contents = cached
	} else {
		read, err := c.provider.ReadFile(c.sourcePath)
		if err != nil {
			return diag.Failure[Output]([]diag.Diagnostic{{
				Path:     c.sourcePath,
				Severity: diag.Error,
				Body:     "failed to read file: " + err.Error(),
			}})
		}
		contents = read
	}
	contents = normalizeSource(contents)
	c.session.SetFileContents(c.sourcePath, contents)

	name := c.name
	if name == "" {
		name = fileStem(c.sourcePath)
	}
	c.module = value.NewModule(name, c.sourcePath)
	if c.properties != nil {
		_ = c.properties.Each(func(k string, v starlark.Value) error {
			c.module.SetProperty(k, value.Copy(v))
			return nil
		})
	}

	// Reserve this file while its body runs so loads that re-enter it are
	// reported as cycles.
	canonical := c.sourcePath
	if canon, err := c.provider.Canonicalize(c.sourcePath); err == nil {
		canonical = canon
	}
	release, err := c.session.acquireLoad(canonical, c.sourcePath, false)
	if err != nil {
		return diag.Failure[Output]([]diag.Diagnostic{{
			Path:     c.sourcePath,
			Severity: diag.Error,
			Body:     err.Error(),
		}})
	}
	defer release()

	thread := &starlark.Thread{
		Name: c.sourcePath,
		Load: c.load,
		Print: func(_ *starlark.Thread, msg string) {
			c.printOutput = append(c.printOutput, msg)
		},
	}
	thread.SetLocal(threadContextKey, c)

	globals, execErr := starlark.ExecFileOptions(fileOptions(), thread, c.sourcePath, contents, Globals())

	diags := append([]diag.Diagnostic(nil), c.diags...)
	if execErr != nil {
		diags = append(diags, errorToDiagnostics(execErr, c.sourcePath)...)
		return diag.Failure[Output](diags)
	}

	// Strict mode: every missing required input becomes its own error so a
	// parent instantiation reports the complete set at once.
	if len(c.missing) > 0 {
		for _, missingName := range c.missing {
			diags = append(diags, diag.Diagnostic{
				Path:     c.sourcePath,
				Severity: diag.Error,
				Body:     "missing required input `" + missingName + "` for module " + name,
			})
		}
		return diag.Failure[Output](diags)
	}

	c.module.Freeze()
	return diag.Success(Output{
		Globals:     globals,
		Module:      c.module,
		Signature:   c.module.Signature(),
		PrintOutput: c.printOutput,
	}, diags)
}

// Introspect evaluates the file at path with empty inputs and strict mode
// off, returning its signature. This is how a parent discovers a child's
// parameters without hard-failing on missing inputs.
func (c *Context) Introspect(path, moduleName string) diag.WithDiagnostics[[]*value.Parameter] {
	result := c.childContext().
		SetSourcePath(path).
		SetModuleName(moduleName).
		SetInputs(InputMap{}).
		Eval()
	if result.Output == nil {
		return diag.Failure[[]*value.Parameter](result.Diagnostics)
	}
	return diag.Success(result.Output.Signature, result.Diagnostics)
}

func fileStem(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i]
	}
	return base
}
