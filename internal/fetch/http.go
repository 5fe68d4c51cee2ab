package fetch

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pro-utkarshM/picoplace/internal/loadspec"
)

// CacheDirEnv overrides where fetched trees are stored.
const CacheDirEnv = "DIODE_STAR_CACHE_DIR"

// doneMarker is written into a cache entry once extraction completed, so a
// partially extracted tree is never reused.
const doneMarker = ".picoplace-fetch-ok"

// HTTP fetches repository archives over HTTPS (codeload tarballs for
// GitHub, archive tarballs for GitLab). Tokens are read from the
// environment: GITHUB_TOKEN/DIODE_GITHUB_TOKEN and
// GITLAB_TOKEN/DIODE_GITLAB_TOKEN.
type HTTP struct {
	client   *http.Client
	cacheDir string
}

// NewHTTP builds an HTTP fetcher. cacheDir may be empty, in which case the
// DIODE_STAR_CACHE_DIR environment variable or the user cache directory is
// used.
func NewHTTP(cacheDir string) (*HTTP, error) {
	if cacheDir == "" {
		cacheDir = os.Getenv(CacheDirEnv)
	}
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine cache directory: %w", err)
		}
		cacheDir = filepath.Join(base, "picoplace")
	}
	return &HTTP{
		client:   &http.Client{Timeout: 120 * time.Second},
		cacheDir: cacheDir,
	}, nil
}

// CacheDir returns the root of the on-disk cache.
func (f *HTTP) CacheDir() string { return f.cacheDir }

func (f *HTTP) Fetch(spec loadspec.Spec, workspaceRoot string) (string, error) {
	switch s := spec.(type) {
	case *loadspec.Github:
		if err := checkRev(s.Rev); err != nil {
			return "", err
		}
		root, err := f.fetchTree(
			repoCacheKey("gh", s.User+"/"+s.Repo, s.Rev),
			githubTarballURL(s),
			tokenHeader("Authorization", bearer(firstEnv("DIODE_GITHUB_TOKEN", "GITHUB_TOKEN"))),
		)
		if err != nil {
			return "", err
		}
		return joinInsideTree(root, s.Path)
	case *loadspec.Gitlab:
		if err := checkRev(s.Rev); err != nil {
			return "", err
		}
		root, err := f.fetchTree(
			repoCacheKey("gl", s.ProjectPath, s.Rev),
			gitlabTarballURL(s),
			tokenHeader("PRIVATE-TOKEN", firstEnv("DIODE_GITLAB_TOKEN", "GITLAB_TOKEN")),
		)
		if err != nil {
			return "", err
		}
		return joinInsideTree(root, s.Path)
	case *loadspec.Package:
		// Packages reach the fetcher only when no alias rewrote them.
		return "", fmt.Errorf("unknown package %q: no alias configured", s.Package)
	default:
		return "", fmt.Errorf("spec %s is not remote", spec.LoadString())
	}
}

func githubTarballURL(s *loadspec.Github) string {
	return fmt.Sprintf("https://codeload.github.com/%s/%s/tar.gz/%s",
		url.PathEscape(s.User), url.PathEscape(s.Repo), url.PathEscape(s.Rev))
}

func gitlabTarballURL(s *loadspec.Gitlab) string {
	segs := strings.Split(s.ProjectPath, "/")
	name := segs[len(segs)-1]
	return fmt.Sprintf("https://gitlab.com/%s/-/archive/%s/%s-%s.tar.gz",
		s.ProjectPath, url.PathEscape(s.Rev), url.PathEscape(name), url.PathEscape(s.Rev))
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func bearer(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

type header struct {
	key   string
	value string
}

func tokenHeader(key, value string) *header {
	if value == "" {
		return nil
	}
	return &header{key: key, value: value}
}

// repoCacheKey builds a filesystem-safe cache subpath for a repo@rev.
func repoCacheKey(kind, project, rev string) string {
	sanitize := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			case r == '-' || r == '.' || r == '_':
				return r
			default:
				return '_'
			}
		}, s)
	}
	return filepath.Join(kind, sanitize(project), sanitize(rev))
}

// fetchTree downloads and extracts the archive for key unless a completed
// cache entry already exists.
func (f *HTTP) fetchTree(key, archiveURL string, auth *header) (string, error) {
	dest := filepath.Join(f.cacheDir, key)
	if _, err := os.Stat(filepath.Join(dest, doneMarker)); err == nil {
		return dest, nil
	}

	req, err := http.NewRequest(http.MethodGet, archiveURL, nil)
	if err != nil {
		return "", err
	}
	if auth != nil {
		req.Header.Set(auth.key, auth.value)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", archiveURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", archiveURL, resp.StatusCode)
	}

	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := extractTarGz(resp.Body, dest); err != nil {
		return "", fmt.Errorf("extracting %s: %w", archiveURL, err)
	}
	if err := os.WriteFile(filepath.Join(dest, doneMarker), nil, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// extractTarGz unpacks the archive into dest, stripping the single
// top-level directory both forges wrap their archives in.
func extractTarGz(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		rel := stripFirstComponent(hdr.Name)
		if rel == "" {
			continue
		}
		target, err := secureJoin(dest, rel)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and other entry types are skipped; fetched trees are
			// read-only source inputs.
		}
	}
}

func stripFirstComponent(name string) string {
	name = strings.TrimPrefix(name, "./")
	if i := strings.Index(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// secureJoin joins rel under root, refusing traversal outside it.
func secureJoin(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction root", rel)
	}
	return target, nil
}

// joinInsideTree resolves the spec's relpath inside the extracted tree.
func joinInsideTree(root, rel string) (string, error) {
	if rel == "" {
		return root, nil
	}
	target, err := secureJoin(root, rel)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("file not found in fetched tree: %s", target)
	}
	return target, nil
}
