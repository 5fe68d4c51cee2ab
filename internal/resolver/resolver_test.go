package resolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pro-utkarshM/picoplace/internal/fetch"
	"github.com/pro-utkarshM/picoplace/internal/fileprovider"
	"github.com/pro-utkarshM/picoplace/internal/loadspec"
)

// stubFetcher maps cache keys to pre-arranged local paths.
type stubFetcher struct {
	trees map[string]string // cache key → local path
	calls []string
}

func (s *stubFetcher) Fetch(spec loadspec.Spec, workspaceRoot string) (string, error) {
	s.calls = append(s.calls, spec.CacheKey())
	if p, ok := s.trees[spec.CacheKey()]; ok {
		return p, nil
	}
	return "", fmt.Errorf("no stub for %s", spec.CacheKey())
}

func TestFindWorkspaceRoot(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/pcb.toml":          "",
		"/ws/src/deep/top.zen":  "",
		"/elsewhere/lonely.zen": "",
	})

	assert.Equal(t, "/ws", FindWorkspaceRoot(p, "/ws/src/deep/top.zen"))
	assert.Equal(t, "/ws", FindWorkspaceRoot(p, "/ws/src"))
	assert.Equal(t, "", FindWorkspaceRoot(p, "/elsewhere/lonely.zen"))
}

func TestWorkspaceAliases(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/pcb.toml": `
[packages]
mylib = "@github/myorg/mylib:v1.0.0"
stdlib = "@github/fork/stdlib:main"

[unknown-table]
ignored = true
`,
		"/ws/top.zen": "",
	})
	r := ForFile(p, fetch.Noop{}, "/ws/top.zen")

	aliases := r.WorkspaceAliases()
	assert.Equal(t, "@github/myorg/mylib:v1.0.0", aliases["mylib"])
	// Workspace entries override defaults.
	assert.Equal(t, "@github/fork/stdlib:main", aliases["stdlib"])
	// Untouched defaults remain.
	assert.Equal(t, "@gitlab/kicad/libraries/kicad-symbols:9.0.0", aliases["kicad-symbols"])
}

func TestResolveRelativePath(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/src/top.zen":     "",
		"/ws/src/util.zen":    "",
		"/ws/lib/helper.zen":  "",
	})
	r := NewCore(p, fetch.Noop{}, "")

	got, err := r.ResolvePath(p, "./util.zen", "/ws/src/top.zen")
	require.NoError(t, err)
	assert.Equal(t, "/ws/src/util.zen", got)

	got, err = r.ResolvePath(p, "../lib/helper.zen", "/ws/src/top.zen")
	require.NoError(t, err)
	assert.Equal(t, "/ws/lib/helper.zen", got)

	_, err = r.ResolvePath(p, "./missing.zen", "/ws/src/top.zen")
	assert.Error(t, err)
}

func TestResolveWorkspacePath(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/pcb.toml":               "",
		"/ws/src/top.zen":            "",
		"/ws/components/res.zen":     "",
	})
	r := ForFile(p, fetch.Noop{}, "/ws/src/top.zen")

	got, err := r.ResolvePath(p, "//components/res.zen", "/ws/src/top.zen")
	require.NoError(t, err)
	assert.Equal(t, "/ws/components/res.zen", got)
}

func TestResolveWorkspacePathWithoutRoot(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{"/x/top.zen": ""})
	r := ForFile(p, fetch.Noop{}, "/x/top.zen")
	_, err := r.ResolvePath(p, "//a/b.zen", "/x/top.zen")
	assert.ErrorContains(t, err, "workspace root")
}

func TestResolveAbsolutePath(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{"/abs/file.zen": ""})
	r := NewCore(p, fetch.Noop{}, "")
	got, err := r.ResolvePath(p, "/abs/file.zen", "/anywhere/top.zen")
	require.NoError(t, err)
	assert.Equal(t, "/abs/file.zen", got)
}

func TestResolvePathAliasIsWorkspaceRelative(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/pcb.toml": `
[packages]
local-lib = "./vendor/lib"
`,
		"/ws/src/top.zen":           "",
		"/ws/vendor/lib/utils.zen":  "",
	})
	r := ForFile(p, fetch.Noop{}, "/ws/src/top.zen")

	// The relative alias target resolves against the workspace root, not
	// against the loading file's directory.
	got, err := r.ResolvePath(p, "@local-lib/utils.zen", "/ws/src/top.zen")
	require.NoError(t, err)
	assert.Equal(t, "/ws/vendor/lib/utils.zen", got)
}

func TestResolveRemoteAliasWithTagOverride(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/pcb.toml":           "[packages]\nx = \"@github/u/r\"\n",
		"/ws/top.zen":            "",
		"/cache/u-r/p/file.zen":  "",
	})
	stub := &stubFetcher{trees: map[string]string{
		"gh:u:r:TAG:p/file.zen": "/cache/u-r/p/file.zen",
	}}
	r := ForFile(p, stub, "/ws/top.zen")

	got, err := r.ResolvePath(p, "@x:TAG/p/file.zen", "/ws/top.zen")
	require.NoError(t, err)
	assert.Equal(t, "/cache/u-r/p/file.zen", got)
	require.Len(t, stub.calls, 1)
	// The user's tag overrides the alias rev and the relpath is appended.
	assert.Equal(t, "gh:u:r:TAG:p/file.zen", stub.calls[0])
}

func TestRelativeLoadFromRemoteFile(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/top.zen":              "",
		"/cache/r/lib/a.zen":       "",
		"/cache/r/lib/sub/b.zen":   "",
		"/cache/r/common.zen":      "",
	})
	stub := &stubFetcher{trees: map[string]string{
		"gh:u:r:HEAD:lib/a.zen":     "/cache/r/lib/a.zen",
		"gh:u:r:HEAD:lib/sub/b.zen": "/cache/r/lib/sub/b.zen",
		"gh:u:r:HEAD:common.zen":    "/cache/r/common.zen",
	}}
	r := NewCore(p, stub, "/ws")

	// Fetch the remote file so the resolver records its origin spec.
	a, err := r.ResolvePath(p, "@github/u/r/lib/a.zen", "/ws/top.zen")
	require.NoError(t, err)

	// A relative load from inside the remote file resolves against the
	// remote spec's directory, re-entering the fetcher.
	b, err := r.ResolvePath(p, "./sub/b.zen", a)
	require.NoError(t, err)
	assert.Equal(t, "/cache/r/lib/sub/b.zen", b)

	// ".." climbs within the remote tree.
	c, err := r.ResolvePath(p, "../common.zen", a)
	require.NoError(t, err)
	assert.Equal(t, "/cache/r/common.zen", c)
}

func TestWorkspaceLoadFromRemoteFile(t *testing.T) {
	p := fileprovider.NewMemWithFiles(map[string]string{
		"/ws/top.zen":          "",
		"/cache/r/lib/a.zen":   "",
		"/cache/r/root.zen":    "",
	})
	stub := &stubFetcher{trees: map[string]string{
		"gh:u:r:HEAD:lib/a.zen": "/cache/r/lib/a.zen",
		"gh:u:r:HEAD:root.zen":  "/cache/r/root.zen",
	}}
	r := NewCore(p, stub, "/ws")

	a, err := r.ResolvePath(p, "@github/u/r/lib/a.zen", "/ws/top.zen")
	require.NoError(t, err)

	// "//" from a remote file means the remote repository root, not the
	// consumer's workspace.
	got, err := r.ResolvePath(p, "//root.zen", a)
	require.NoError(t, err)
	assert.Equal(t, "/cache/r/root.zen", got)
}
