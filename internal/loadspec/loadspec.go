// Package loadspec parses the strings passed to load() into structured
// load specifications. Parsing is purely syntactic: nothing in this package
// touches the filesystem or the network.
package loadspec

import (
	"fmt"
	"path"
	"strings"
)

// DefaultPackageTag is assumed when a package spec omits the tag,
// e.g. "@mypkg/utils.zen".
const DefaultPackageTag = "latest"

// DefaultGitRev is assumed when a GitHub or GitLab spec omits the revision,
// e.g. "@github/user/repo/path.zen".
const DefaultGitRev = "HEAD"

// Spec is a parsed load reference. The concrete type is one of Package,
// Github, Gitlab, Path, or WorkspacePath.
type Spec interface {
	// LoadString renders the spec back to its canonical load() string.
	LoadString() string

	// CacheKey returns a stable identifier for caching fetched content.
	CacheKey() string

	// IsRemote reports whether resolving the spec may require a fetch.
	IsRemote() bool
}

// Package is a "@<package>[:<tag>]/<path>" reference.
type Package struct {
	Package string
	Tag     string
	Path    string
}

// Github is a "@github/<user>/<repo>[:<rev>]/<path>" reference.
type Github struct {
	User string
	Repo string
	Rev  string
	Path string
}

// Gitlab is a "@gitlab/<project…>[:<rev>]/<path>" reference. The project
// path may contain slashes (nested groups).
type Gitlab struct {
	ProjectPath string
	Rev         string
	Path        string
}

// Path is a raw filesystem path, relative or absolute.
type Path struct {
	Path string
}

// WorkspacePath is a "//<path>" reference relative to the workspace root.
type WorkspacePath struct {
	Path string
}

func (s *Package) IsRemote() bool       { return true }
func (s *Github) IsRemote() bool        { return true }
func (s *Gitlab) IsRemote() bool        { return true }
func (s *Path) IsRemote() bool          { return false }
func (s *WorkspacePath) IsRemote() bool { return false }

func (s *Package) LoadString() string {
	base := "@" + s.Package
	if s.Tag != DefaultPackageTag {
		base += ":" + s.Tag
	}
	if s.Path == "" {
		return base
	}
	return base + "/" + s.Path
}

func (s *Github) LoadString() string {
	base := "@github/" + s.User + "/" + s.Repo
	if s.Rev != DefaultGitRev {
		base += ":" + s.Rev
	}
	if s.Path == "" {
		return base
	}
	return base + "/" + s.Path
}

func (s *Gitlab) LoadString() string {
	base := "@gitlab/" + s.ProjectPath
	if s.Rev != DefaultGitRev {
		base += ":" + s.Rev
	}
	if s.Path == "" {
		return base
	}
	return base + "/" + s.Path
}

func (s *Path) LoadString() string          { return s.Path }
func (s *WorkspacePath) LoadString() string { return "//" + s.Path }

func (s *Package) CacheKey() string {
	if s.Path == "" {
		return fmt.Sprintf("pkg:%s:%s", s.Package, s.Tag)
	}
	return fmt.Sprintf("pkg:%s:%s:%s", s.Package, s.Tag, s.Path)
}

func (s *Github) CacheKey() string {
	if s.Path == "" {
		return fmt.Sprintf("gh:%s:%s:%s", s.User, s.Repo, s.Rev)
	}
	return fmt.Sprintf("gh:%s:%s:%s:%s", s.User, s.Repo, s.Rev, s.Path)
}

func (s *Gitlab) CacheKey() string {
	if s.Path == "" {
		return fmt.Sprintf("gl:%s:%s", s.ProjectPath, s.Rev)
	}
	return fmt.Sprintf("gl:%s:%s:%s", s.ProjectPath, s.Rev, s.Path)
}

func (s *Path) CacheKey() string          { return "path:" + s.Path }
func (s *WorkspacePath) CacheKey() string { return "ws:" + s.Path }

// Parse turns the raw string passed to load() into a Spec.
//
// The supported grammar is:
//
//	@github/<user>/<repo>[:<rev>]/<path?>   GitHub repository
//	@gitlab/<project…>[:<rev>]/<path?>      GitLab repository (nested groups ok)
//	@<package>[:<tag>]/<path?>              Package reference
//	//<path>                                Workspace-relative path
//	anything else                           Raw file path
//
// Without a ":<rev>" marker a GitLab spec assumes the first two segments
// form the project path. "@github" and "@gitlab" are not valid package
// names.
func Parse(s string) (Spec, error) {
	switch {
	case strings.HasPrefix(s, "@github/"):
		return parseGithub(strings.TrimPrefix(s, "@github/"), s)
	case strings.HasPrefix(s, "@gitlab/"):
		return parseGitlab(strings.TrimPrefix(s, "@gitlab/"), s)
	case strings.HasPrefix(s, "@"):
		return parsePackage(strings.TrimPrefix(s, "@"), s)
	case strings.HasPrefix(s, "//"):
		return &WorkspacePath{Path: strings.TrimPrefix(s, "//")}, nil
	default:
		return &Path{Path: s}, nil
	}
}

func parseGithub(rest, orig string) (Spec, error) {
	parts := strings.SplitN(rest, "/", 3)
	user := parts[0]
	repoAndRev := ""
	if len(parts) > 1 {
		repoAndRev = parts[1]
	}
	relPath := ""
	if len(parts) > 2 {
		relPath = parts[2]
	}
	if user == "" || repoAndRev == "" {
		return nil, fmt.Errorf("invalid load spec: %s", orig)
	}
	repo, rev := repoAndRev, DefaultGitRev
	if i := strings.Index(repoAndRev, ":"); i >= 0 {
		repo, rev = repoAndRev[:i], repoAndRev[i+1:]
	}
	if repo == "" {
		return nil, fmt.Errorf("invalid load spec: %s", orig)
	}
	return &Github{User: user, Repo: repo, Rev: rev, Path: relPath}, nil
}

func parseGitlab(rest, orig string) (Spec, error) {
	// The project path and the file path may both contain slashes; a ":"
	// revision marker resolves the ambiguity. Without one, the first two
	// segments form the project path.
	if colon := strings.Index(rest, ":"); colon >= 0 {
		project := rest[:colon]
		afterColon := rest[colon+1:]
		if project == "" {
			return nil, fmt.Errorf("invalid load spec: %s", orig)
		}
		if slash := strings.Index(afterColon, "/"); slash >= 0 {
			return &Gitlab{
				ProjectPath: project,
				Rev:         afterColon[:slash],
				Path:        afterColon[slash+1:],
			}, nil
		}
		return &Gitlab{ProjectPath: project, Rev: afterColon}, nil
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid load spec: %s", orig)
	}
	relPath := ""
	if len(parts) > 2 {
		relPath = parts[2]
	}
	return &Gitlab{
		ProjectPath: parts[0] + "/" + parts[1],
		Rev:         DefaultGitRev,
		Path:        relPath,
	}, nil
}

func parsePackage(rest, orig string) (Spec, error) {
	parts := strings.SplitN(rest, "/", 2)
	pkgAndTag := parts[0]
	relPath := ""
	if len(parts) > 1 {
		relPath = parts[1]
	}
	if pkgAndTag == "" {
		return nil, fmt.Errorf("invalid load spec: %s", orig)
	}
	pkg, tag := pkgAndTag, DefaultPackageTag
	if i := strings.Index(pkgAndTag, ":"); i >= 0 {
		pkg, tag = pkgAndTag[:i], pkgAndTag[i+1:]
	}
	if pkg == "" {
		return nil, fmt.Errorf("invalid load spec: %s", orig)
	}
	// "@github/user" and similar malformed repo specs must not fall back to
	// being package references.
	if pkg == "github" || pkg == "gitlab" {
		return nil, fmt.Errorf("invalid load spec: %s", orig)
	}
	return &Package{Package: pkg, Tag: tag, Path: relPath}, nil
}

// DefaultPackageAliases returns the package aliases that are always
// available. Workspace configuration may override them.
func DefaultPackageAliases() map[string]string {
	return map[string]string{
		"kicad-symbols":    "@gitlab/kicad/libraries/kicad-symbols:9.0.0",
		"kicad-footprints": "@gitlab/kicad/libraries/kicad-footprints:9.0.0",
		"stdlib":           "@github/diodeinc/stdlib:HEAD",
	}
}

// ResolveAliases rewrites a Package spec through the alias table. A caller
// tag other than the default overrides the alias target's tag or revision;
// applying a tag to a path-valued target is an error. The spec's relpath is
// appended to the alias target's path. Non-package specs and packages with
// no alias entry pass through unchanged.
func ResolveAliases(spec Spec, aliases map[string]string) (Spec, error) {
	pkg, ok := spec.(*Package)
	if !ok {
		return spec, nil
	}
	if aliases == nil {
		aliases = DefaultPackageAliases()
	}
	target, ok := aliases[pkg.Package]
	if !ok {
		return spec, nil
	}
	resolved, err := Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid alias target for package %q: %q", pkg.Package, target)
	}

	if pkg.Tag != DefaultPackageTag {
		switch t := resolved.(type) {
		case *Package:
			t.Tag = pkg.Tag
		case *Github:
			t.Rev = pkg.Tag
		case *Gitlab:
			t.Rev = pkg.Tag
		default:
			return nil, fmt.Errorf("cannot apply tag %q to path-based alias target %q", pkg.Tag, target)
		}
	}

	if pkg.Path != "" {
		switch t := resolved.(type) {
		case *Package:
			t.Path = joinRel(t.Path, pkg.Path)
		case *Github:
			t.Path = joinRel(t.Path, pkg.Path)
		case *Gitlab:
			t.Path = joinRel(t.Path, pkg.Path)
		case *Path:
			t.Path = joinRel(t.Path, pkg.Path)
		case *WorkspacePath:
			t.Path = joinRel(t.Path, pkg.Path)
		}
	}
	return resolved, nil
}

func joinRel(base, rel string) string {
	if base == "" {
		return rel
	}
	return path.Join(base, rel)
}
