// Package resolver turns parsed load specs into canonical absolute paths.
// It applies package aliases from the workspace configuration, resolves
// workspace-relative and file-relative paths, delegates remote specs to a
// RemoteFetcher, and remembers which local paths came from remote fetches
// so loads issued *from* remote files resolve against their remote origin.
package resolver

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/pro-utkarshM/picoplace/internal/fetch"
	"github.com/pro-utkarshM/picoplace/internal/fileprovider"
	"github.com/pro-utkarshM/picoplace/internal/loadspec"
)

// WorkspaceConfigName is the file that marks a workspace root.
const WorkspaceConfigName = "pcb.toml"

// LoadResolver resolves load specs to absolute file paths.
type LoadResolver interface {
	// ResolveSpec resolves a parsed spec relative to the file containing
	// the load() statement.
	ResolveSpec(provider fileprovider.FileProvider, spec loadspec.Spec, currentFile string) (string, error)

	// ResolvePath parses and resolves a raw load string.
	ResolvePath(provider fileprovider.FileProvider, loadPath, currentFile string) (string, error)
}

// FindWorkspaceRoot walks upward from start (or its parent, when start is a
// file) until a directory containing pcb.toml is found. Returns "" when no
// workspace root exists.
func FindWorkspaceRoot(provider fileprovider.FileProvider, start string) string {
	dir := start
	if !provider.IsDirectory(dir) {
		dir = filepath.Dir(dir)
	}
	for {
		if provider.Exists(filepath.Join(dir, WorkspaceConfigName)) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// workspaceConfig is the subset of pcb.toml the resolver reads. Unknown
// keys are ignored.
type workspaceConfig struct {
	Packages map[string]string `toml:"packages"`
}

// Core is the standard LoadResolver implementation.
type Core struct {
	provider      fileprovider.FileProvider
	fetcher       fetch.RemoteFetcher
	workspaceRoot string

	mu         sync.Mutex
	pathToSpec map[string]loadspec.Spec
}

var _ LoadResolver = (*Core)(nil)

// NewCore builds a resolver with an explicit workspace root ("" for none).
func NewCore(provider fileprovider.FileProvider, fetcher fetch.RemoteFetcher, workspaceRoot string) *Core {
	return &Core{
		provider:      provider,
		fetcher:       fetcher,
		workspaceRoot: workspaceRoot,
		pathToSpec:    map[string]loadspec.Spec{},
	}
}

// ForFile builds a resolver for the given entry file, discovering the
// workspace root automatically.
func ForFile(provider fileprovider.FileProvider, fetcher fetch.RemoteFetcher, file string) *Core {
	return NewCore(provider, fetcher, FindWorkspaceRoot(provider, file))
}

// WorkspaceRoot returns the configured workspace root, or "".
func (r *Core) WorkspaceRoot() string { return r.workspaceRoot }

// WorkspaceAliases returns the default aliases overlaid with the
// [packages] table of the workspace's pcb.toml.
func (r *Core) WorkspaceAliases() map[string]string {
	aliases := loadspec.DefaultPackageAliases()
	if r.workspaceRoot == "" {
		return aliases
	}
	contents, err := r.provider.ReadFile(filepath.Join(r.workspaceRoot, WorkspaceConfigName))
	if err != nil {
		return aliases
	}
	var cfg workspaceConfig
	if err := toml.Unmarshal([]byte(contents), &cfg); err != nil {
		return aliases
	}
	for name, target := range cfg.Packages {
		aliases[name] = target
	}
	return aliases
}

func (r *Core) specForPath(p string) (loadspec.Spec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.pathToSpec[p]
	return spec, ok
}

func (r *Core) recordSpec(p string, spec loadspec.Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pathToSpec[p] = spec
}

func (r *Core) ResolvePath(provider fileprovider.FileProvider, loadPath, currentFile string) (string, error) {
	spec, err := loadspec.Parse(loadPath)
	if err != nil {
		return "", err
	}
	return r.ResolveSpec(provider, spec, currentFile)
}

func (r *Core) ResolveSpec(provider fileprovider.FileProvider, spec loadspec.Spec, currentFile string) (string, error) {
	// Loads issued from a file that was itself fetched remotely
	// reinterpret relative and workspace paths against the remote origin.
	if remoteSpec, ok := r.specForPath(currentFile); ok {
		if rewritten := rewriteAgainstRemote(spec, remoteSpec); rewritten != nil {
			return r.ResolveSpec(provider, rewritten, currentFile)
		}
	}

	resolved := spec
	fromAlias := false
	if _, isPkg := spec.(*loadspec.Package); isPkg {
		var err error
		resolved, err = loadspec.ResolveAliases(spec, r.WorkspaceAliases())
		if err != nil {
			return "", err
		}
		_, stillPkg := resolved.(*loadspec.Package)
		fromAlias = !stillPkg
	}

	switch s := resolved.(type) {
	case *loadspec.Package, *loadspec.Github, *loadspec.Gitlab:
		fetched, err := r.fetcher.Fetch(resolved, r.workspaceRoot)
		if err != nil {
			return "", err
		}
		canonical, err := provider.Canonicalize(fetched)
		if err != nil {
			return "", err
		}
		r.recordSpec(canonical, resolved)
		return canonical, nil

	case *loadspec.WorkspacePath:
		if r.workspaceRoot == "" {
			return "", fmt.Errorf("cannot resolve workspace path %q without a workspace root", s.Path)
		}
		root, err := provider.Canonicalize(r.workspaceRoot)
		if err != nil {
			return "", err
		}
		return r.ensureExists(provider, filepath.Join(root, filepath.FromSlash(s.Path)))

	case *loadspec.Path:
		if filepath.IsAbs(s.Path) {
			return r.ensureExists(provider, s.Path)
		}
		if fromAlias {
			// A relative path produced by alias resolution is
			// workspace-relative rather than file-relative.
			if r.workspaceRoot == "" {
				return "", fmt.Errorf("cannot resolve alias path %q without a workspace root", s.Path)
			}
			root, err := provider.Canonicalize(r.workspaceRoot)
			if err != nil {
				return "", err
			}
			return r.ensureExists(provider, filepath.Join(root, filepath.FromSlash(s.Path)))
		}
		currentDir := filepath.Dir(currentFile)
		if currentDir == "" {
			return "", fmt.Errorf("current file has no parent directory")
		}
		return r.ensureExists(provider, filepath.Join(currentDir, filepath.FromSlash(s.Path)))
	}
	return "", fmt.Errorf("unsupported load spec %s", resolved.LoadString())
}

func (r *Core) ensureExists(provider fileprovider.FileProvider, p string) (string, error) {
	canonical, err := provider.Canonicalize(p)
	if err != nil {
		return "", err
	}
	if !provider.Exists(canonical) {
		return "", &fileprovider.NotFoundError{Path: canonical}
	}
	return canonical, nil
}

// rewriteAgainstRemote reinterprets a spec issued from a remotely fetched
// file. Relative paths resolve against the remote file's directory;
// workspace paths resolve against the remote root. Returns nil when no
// rewrite applies.
func rewriteAgainstRemote(spec, remote loadspec.Spec) loadspec.Spec {
	switch s := spec.(type) {
	case *loadspec.Path:
		if filepath.IsAbs(s.Path) {
			return nil
		}
		return remoteWithPath(remote, normalizeRel(path.Join(remoteDir(remote), filepath.ToSlash(s.Path))))
	case *loadspec.WorkspacePath:
		return remoteWithPath(remote, s.Path)
	}
	return nil
}

func remoteDir(remote loadspec.Spec) string {
	var p string
	switch s := remote.(type) {
	case *loadspec.Github:
		p = s.Path
	case *loadspec.Gitlab:
		p = s.Path
	case *loadspec.Package:
		p = s.Path
	default:
		return ""
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

func remoteWithPath(remote loadspec.Spec, newPath string) loadspec.Spec {
	switch s := remote.(type) {
	case *loadspec.Github:
		return &loadspec.Github{User: s.User, Repo: s.Repo, Rev: s.Rev, Path: newPath}
	case *loadspec.Gitlab:
		return &loadspec.Gitlab{ProjectPath: s.ProjectPath, Rev: s.Rev, Path: newPath}
	case *loadspec.Package:
		return &loadspec.Package{Package: s.Package, Tag: s.Tag, Path: newPath}
	}
	return nil
}

// normalizeRel resolves "." and ".." components of a slash-separated
// relative path, dropping any ".." that would climb above the root.
func normalizeRel(p string) string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}
