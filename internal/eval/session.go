// Package eval executes configuration-language source files. Each Context
// evaluates exactly one file with a configured set of domain globals; child
// files are evaluated in child contexts sharing one Session so that load
// caching, cycle detection, and dependency tracking span the whole
// elaboration.
package eval

import (
	"fmt"
	"sync"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/value"
)

// LoadedModule is one cached evaluation result: the frozen globals the
// engine needs to serve load() plus the frozen module value and its
// signature.
type LoadedModule struct {
	Globals   starlark.StringDict
	Module    *value.Module
	Signature []*value.Parameter
}

// Session is the shared per-elaboration state. Independent elaborations
// over the same workspace may share one Session from different goroutines;
// the mutex protects the maps and is never held while user code runs.
type Session struct {
	mu sync.Mutex

	// fileContents caches source text by canonical path, so open-editor
	// buffers can shadow on-disk state and repeated loads avoid re-reading.
	fileContents map[string]string

	// loadCache maps canonical paths to their frozen evaluation results so
	// repeated loads of one file share identity.
	loadCache map[string]*LoadedModule

	// loadInProgress tracks canonical paths currently being loaded, mapped
	// to the source files that triggered them. Directories permit multiple
	// simultaneous entries so sibling files fan out without tripping the
	// cycle check.
	loadInProgress map[string][]string

	// moduleDeps records file → loaded-file edges for downstream tooling.
	moduleDeps map[string]map[string]bool

	// symbolIndex records file → exported symbol → defining path.
	symbolIndex map[string]map[string]string
}

// NewSession returns an empty shared state.
func NewSession() *Session {
	return &Session{
		fileContents:   map[string]string{},
		loadCache:      map[string]*LoadedModule{},
		loadInProgress: map[string][]string{},
		moduleDeps:     map[string]map[string]bool{},
		symbolIndex:    map[string]map[string]string{},
	}
}

// FileContents returns the cached contents for path, if any.
func (s *Session) FileContents(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.fileContents[path]
	return c, ok
}

// SetFileContents caches source text for path.
func (s *Session) SetFileContents(path, contents string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileContents[path] = contents
}

func (s *Session) cached(path string) (*LoadedModule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.loadCache[path]
	return m, ok
}

func (s *Session) storeCache(path string, m *LoadedModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCache[path] = m
}

// RecordModuleDependency notes that from references to via Module()/load().
func (s *Session) RecordModuleDependency(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deps, ok := s.moduleDeps[from]
	if !ok {
		deps = map[string]bool{}
		s.moduleDeps[from] = deps
	}
	deps[to] = true
}

// ModuleDepExists reports whether from is known to reference to.
func (s *Session) ModuleDepExists(from, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moduleDeps[from][to]
}

// RecordSymbol notes that file binds symbol to a definition at target.
func (s *Session) RecordSymbol(file, symbol, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.symbolIndex[file]
	if !ok {
		idx = map[string]string{}
		s.symbolIndex[file] = idx
	}
	idx[symbol] = target
}

// SymbolIndex returns the symbol → path map recorded for file.
func (s *Session) SymbolIndex(file string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.symbolIndex[file] {
		out[k] = v
	}
	return out
}

// acquireLoad reserves a canonical path for loading. Files refuse re-entry
// (a cycle); directories stack. The returned release function must run on
// every exit path.
func (s *Session) acquireLoad(path, source string, isDir bool) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !isDir && len(s.loadInProgress[path]) > 0 {
		return nil, fmt.Errorf("cyclic load detected while loading `%s`", path)
	}
	s.loadInProgress[path] = append(s.loadInProgress[path], source)
	released := false
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if released {
			return
		}
		released = true
		entries := s.loadInProgress[path]
		if len(entries) <= 1 {
			delete(s.loadInProgress, path)
		} else {
			s.loadInProgress[path] = entries[:len(entries)-1]
		}
	}, nil
}

// loadInProgressSnapshot returns the set of paths currently being loaded
// and the sources that triggered them.
func (s *Session) loadInProgressSnapshot() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.loadInProgress))
	for k, v := range s.loadInProgress {
		out[k] = append([]string(nil), v...)
	}
	return out
}
