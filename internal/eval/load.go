package eval

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/diag"
)

// starlarkExtensions are the source-file extensions load() recognizes.
var starlarkExtensions = []string{".zen", ".star"}

const kicadSymbolExtension = ".kicad_sym"

func isStarlarkFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range starlarkExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func isKicadSymbolFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == kicadSymbolExtension
}

// load implements the engine's load() callback for this context.
func (c *Context) load(thread *starlark.Thread, loadPath string) (starlark.StringDict, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("no load resolver configured")
	}

	absolute, err := c.resolver.ResolvePath(c.provider, loadPath, c.sourcePath)
	if err != nil {
		return nil, diag.Wrap(diag.Diagnostic{
			Path:     c.sourcePath,
			Severity: diag.Error,
			Body:     fmt.Sprintf("failed to resolve load path %q: %v", loadPath, err),
		})
	}

	canonical := absolute
	if canon, cerr := c.provider.Canonicalize(absolute); cerr == nil {
		canonical = canon
	}

	if cached, ok := c.session.cached(canonical); ok {
		return cached.Globals, nil
	}

	c.session.RecordModuleDependency(c.sourcePath, canonical)

	if c.provider.IsDirectory(canonical) {
		// Directories stack: sibling files loading the same directory are
		// fan-out, not cycles. Individual entries guard themselves when
		// they are evaluated.
		release, err := c.session.acquireLoad(canonical, c.sourcePath, true)
		if err != nil {
			return nil, diag.Wrap(diag.Diagnostic{
				Path:     c.sourcePath,
				Severity: diag.Error,
				Body:     err.Error(),
			})
		}
		defer release()

		globals, err := c.loadDirectory(canonical, loadPath)
		if err != nil {
			return nil, err
		}
		c.session.storeCache(canonical, &LoadedModule{Globals: globals})
		return globals, nil
	}

	// Files are guarded by the child evaluation itself (Eval reserves its
	// own source path); a re-entrant load surfaces there as a cycle.

	child := c.childContext().
		SetSourcePath(canonical).
		SetModuleName(fileStem(canonical)).
		SetInputs(InputMap{})
	result := child.Eval()

	if firstErr := firstErrorDiag(result.Diagnostics); firstErr != nil {
		return nil, diag.Wrap(diag.Diagnostic{
			Path:     c.sourcePath,
			Severity: diag.Error,
			Body:     fmt.Sprintf("error loading module `%s`", loadPath),
			Child:    firstErr,
		})
	}
	if result.Output == nil {
		return nil, diag.Wrap(diag.Diagnostic{
			Path:     c.sourcePath,
			Severity: diag.Error,
			Body:     fmt.Sprintf("failed to load module `%s`", loadPath),
		})
	}

	loaded := &LoadedModule{
		Globals:   result.Output.Globals,
		Module:    result.Output.Module,
		Signature: result.Output.Signature,
	}
	c.session.storeCache(canonical, loaded)
	return loaded.Globals, nil
}

func firstErrorDiag(diags []diag.Diagnostic) *diag.Diagnostic {
	for i := range diags {
		if diags[i].IsError() {
			d := diags[i]
			return &d
		}
	}
	return nil
}

// loadDirectory exposes a directory as a namespace: each immediate
// .zen/.star file becomes a ModuleLoader named after its stem, each
// immediate .kicad_sym file a ComponentFactory. Files currently mid-load
// (sibling fan-out) are skipped rather than treated as cycles.
func (c *Context) loadDirectory(dir, originalLoadPath string) (starlark.StringDict, error) {
	entries, err := c.provider.ListDirectory(dir)
	if err != nil {
		return nil, diag.Wrap(diag.Diagnostic{
			Path:     c.sourcePath,
			Severity: diag.Error,
			Body:     fmt.Sprintf("failed to read directory %s: %v", dir, err),
		})
	}
	sort.Strings(entries)

	inProgress := c.session.loadInProgressSnapshot()
	ownCanonical := c.sourcePath
	if canon, err := c.provider.Canonicalize(c.sourcePath); err == nil {
		ownCanonical = canon
	}

	result := starlark.StringDict{}
	errorsBySymbol := map[string][]diag.Diagnostic{}

	addSymbolError := func(symbol string, d diag.Diagnostic) {
		errorsBySymbol[symbol] = append(errorsBySymbol[symbol], d)
	}

	for _, entry := range entries {
		if c.provider.IsDirectory(entry) || !isStarlarkFile(entry) {
			continue
		}
		symbolName := fileStem(entry)
		fileLoadPath := originalLoadPath + "/" + filepath.Base(entry)

		resolved, err := c.resolver.ResolvePath(c.provider, fileLoadPath, c.sourcePath)
		if err != nil {
			addSymbolError(symbolName, diag.Diagnostic{
				Path:     fileLoadPath,
				Severity: diag.Error,
				Body:     fmt.Sprintf("failed to resolve load path %q: %v", fileLoadPath, err),
			})
			continue
		}
		canonical := resolved
		if canon, err := c.provider.Canonicalize(resolved); err == nil {
			canonical = canon
		}

		if c.shouldSkipSibling(canonical, ownCanonical, inProgress) {
			continue
		}

		loader, diags := buildModuleLoader(c, canonical)

		for _, d := range diags {
			if d.IsError() {
				addSymbolError(symbolName, d)
			}
		}
		if loader != nil && len(errorsBySymbol[symbolName]) == 0 {
			c.session.RecordSymbol(c.sourcePath, symbolName, canonical)
			loader.Freeze()
			result[symbolName] = loader
		}
	}

	for _, entry := range entries {
		if c.provider.IsDirectory(entry) || !isKicadSymbolFile(entry) {
			continue
		}
		symbolName := fileStem(entry)
		fileLoadPath := originalLoadPath + "/" + filepath.Base(entry)

		resolved, err := c.resolver.ResolvePath(c.provider, fileLoadPath, c.sourcePath)
		if err != nil {
			addSymbolError(symbolName, diag.Diagnostic{
				Path:     fileLoadPath,
				Severity: diag.Error,
				Body:     fmt.Sprintf("failed to resolve load path %q: %v", fileLoadPath, err),
			})
			continue
		}

		factory, err := buildComponentFactory(c, resolved, "")
		if err != nil {
			addSymbolError(symbolName, diag.Diagnostic{
				Path:     fileLoadPath,
				Severity: diag.Error,
				Body:     fmt.Sprintf("failed to load component from %s: %v", fileLoadPath, err),
			})
			continue
		}
		factory.Freeze()
		result[symbolName] = factory
	}

	if len(errorsBySymbol) > 0 {
		symbols := make([]string, 0, len(errorsBySymbol))
		for sym := range errorsBySymbol {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		first := errorsBySymbol[symbols[0]][0]
		errorPath := originalLoadPath + "/" + symbols[0]
		if strings.HasSuffix(first.Path, kicadSymbolExtension) {
			errorPath += kicadSymbolExtension
		} else {
			errorPath += starlarkExtensions[0]
		}
		return nil, diag.Wrap(diag.Diagnostic{
			Path:     c.sourcePath,
			Severity: diag.Error,
			Body:     fmt.Sprintf("error loading module `%s`", errorPath),
			Child:    &first,
		})
	}

	return result, nil
}

// shouldSkipSibling reports whether a directory entry must be skipped
// because it is already mid-load, triggered an in-flight load, or is the
// file currently being evaluated.
func (c *Context) shouldSkipSibling(canonical, ownCanonical string, inProgress map[string][]string) bool {
	if canonical == ownCanonical {
		return true
	}
	if len(inProgress[canonical]) > 0 {
		return true
	}
	for _, sources := range inProgress {
		for _, source := range sources {
			canonSource := source
			if canon, err := c.provider.Canonicalize(source); err == nil {
				canonSource = canon
			}
			if canonSource == canonical {
				return true
			}
		}
	}
	return false
}
