// Package picoplace elaborates circuit descriptions written in the
// sandboxed configuration language into flat schematics.
//
// The entry point is Elaborate: it resolves the entry file's workspace,
// evaluates the file (recursively loading its dependencies through the
// load resolver), flattens the resulting module tree, and finalizes net
// names and reference designators. The result pairs an optional Schematic
// with the diagnostics produced along the way.
package picoplace

import (
	"github.com/pro-utkarshM/picoplace/internal/convert"
	"github.com/pro-utkarshM/picoplace/internal/diag"
	"github.com/pro-utkarshM/picoplace/internal/eval"
	"github.com/pro-utkarshM/picoplace/internal/fetch"
	"github.com/pro-utkarshM/picoplace/internal/fileprovider"
	"github.com/pro-utkarshM/picoplace/internal/resolver"
	"github.com/pro-utkarshM/picoplace/internal/schematic"
)

// Re-exported core types so embedding hosts need only this package.
type (
	// Diagnostic is a structured error/warning with an optional child chain.
	Diagnostic = diag.Diagnostic
	// Severity classifies a diagnostic.
	Severity = diag.Severity
	// Schematic is the flat elaboration output.
	Schematic = schematic.Schematic
	// FileProvider abstracts filesystem access.
	FileProvider = fileprovider.FileProvider
	// RemoteFetcher materializes remote load specs locally.
	RemoteFetcher = fetch.RemoteFetcher
)

// Severity levels.
const (
	SeverityError   = diag.Error
	SeverityWarning = diag.Warning
	SeverityInfo    = diag.Info
)

// Result is an elaboration outcome: an optional schematic plus
// diagnostics. Result.IsSuccess reports whether a schematic exists and no
// diagnostic is an error.
type Result = diag.WithDiagnostics[*schematic.Schematic]

// Elaborator runs elaborations. The zero value is not usable; construct
// with New.
type Elaborator struct {
	provider fileprovider.FileProvider
	fetcher  fetch.RemoteFetcher
	session  *eval.Session
}

// Option configures an Elaborator.
type Option func(*Elaborator)

// WithFileProvider substitutes the filesystem abstraction (e.g. an
// in-memory provider for sandboxed runs).
func WithFileProvider(p fileprovider.FileProvider) Option {
	return func(e *Elaborator) { e.provider = p }
}

// WithFetcher substitutes the remote fetcher.
func WithFetcher(f fetch.RemoteFetcher) Option {
	return func(e *Elaborator) { e.fetcher = f }
}

// WithSharedSession reuses evaluation caches across elaborations of the
// same workspace. Safe for concurrent use by independent elaborations.
func WithSharedSession(s *eval.Session) Option {
	return func(e *Elaborator) { e.session = s }
}

// New builds an Elaborator. By default it reads the host filesystem and
// fetches remote packages over HTTPS with an on-disk cache.
func New(opts ...Option) *Elaborator {
	e := &Elaborator{}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil {
		e.provider = fileprovider.NewOS()
	}
	if e.fetcher == nil {
		if httpFetcher, err := fetch.NewHTTP(""); err == nil {
			e.fetcher = httpFetcher
		} else {
			e.fetcher = fetch.Noop{}
		}
	}
	return e
}

// NewSession creates a shared evaluation session for WithSharedSession.
func NewSession() *eval.Session { return eval.NewSession() }

// Elaborate evaluates the entry file and flattens it into a schematic.
func (e *Elaborator) Elaborate(entryPath string) Result {
	canonical, err := e.provider.Canonicalize(entryPath)
	if err != nil {
		return diag.Failure[*schematic.Schematic]([]diag.Diagnostic{{
			Path:     entryPath,
			Severity: diag.Error,
			Body:     "failed to resolve entry file: " + err.Error(),
		}})
	}

	res := resolver.ForFile(e.provider, e.fetcher, canonical)
	ctx := eval.NewContext(e.provider, res)
	if e.session != nil {
		ctx.SetSession(e.session)
	}

	evalResult := ctx.
		SetSourcePath(canonical).
		SetModuleName("<root>").
		SetInputs(eval.InputMap{}).
		Eval()

	if evalResult.Output == nil || evalResult.HasErrors() {
		return diag.Failure[*schematic.Schematic](evalResult.Diagnostics)
	}

	sch, err := convert.ToSchematic(evalResult.Output.Module)
	if err != nil {
		diags := append(evalResult.Diagnostics, diag.Diagnostic{
			Path:     canonical,
			Severity: diag.Error,
			Body:     err.Error(),
		})
		return diag.Failure[*schematic.Schematic](diags)
	}
	return diag.Success(sch, evalResult.Diagnostics)
}
