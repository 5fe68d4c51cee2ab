package fetch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pro-utkarshM/picoplace/internal/loadspec"
)

func TestCheckRev(t *testing.T) {
	tests := []struct {
		rev     string
		wantErr bool
	}{
		{"main", false},
		{"v9.0.0", false},
		{"HEAD", false},
		{"abc123f", true},                                    // 7 hex chars: abbreviated
		{"a1b2c3d4e5f6789012345678901234567890abc", true},    // 39 hex chars
		{"a1b2c3d4e5f6789012345678901234567890abcd", false},  // full 40-char SHA
		{"deadbee", true},
		{"feature/abcdef1", false}, // not pure hex
	}
	for _, tt := range tests {
		t.Run(tt.rev, func(t *testing.T) {
			err := checkRev(tt.rev)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkRev(%q) error = %v, wantErr %v", tt.rev, err, tt.wantErr)
			}
		})
	}
}

func TestNoopRefusesEverything(t *testing.T) {
	_, err := Noop{}.Fetch(&loadspec.Github{User: "u", Repo: "r", Rev: "HEAD"}, "")
	if err == nil {
		t.Fatal("Noop must refuse fetches")
	}
}

func TestHTTPFetchRejectsLocalSpecs(t *testing.T) {
	f, err := NewHTTP(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, spec := range []loadspec.Spec{
		&loadspec.Path{Path: "./a.zen"},
		&loadspec.WorkspacePath{Path: "a.zen"},
	} {
		if _, err := f.Fetch(spec, ""); err == nil {
			t.Errorf("Fetch(%s) should fail: local specs are never remote", spec.LoadString())
		}
	}
}

func TestHTTPFetchRejectsAbbreviatedSHA(t *testing.T) {
	f, err := NewHTTP(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Fetch(&loadspec.Github{User: "u", Repo: "r", Rev: "abc123f"}, "")
	if err == nil || !strings.Contains(err.Error(), "abbreviated git SHA") {
		t.Errorf("error = %v, want abbreviated-SHA rejection", err)
	}
}

func TestHTTPFetchUnknownPackage(t *testing.T) {
	f, err := NewHTTP(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Fetch(&loadspec.Package{Package: "mystery", Tag: "latest"}, "")
	if err == nil || !strings.Contains(err.Error(), "no alias configured") {
		t.Errorf("error = %v, want unknown-package error", err)
	}
}

func TestHTTPFetchReusesCompletedCache(t *testing.T) {
	cacheDir := t.TempDir()
	f, err := NewHTTP(cacheDir)
	if err != nil {
		t.Fatal(err)
	}

	// Pre-populate a completed cache entry; a fetch must reuse it without
	// touching the network.
	spec := &loadspec.Github{User: "u", Repo: "r", Rev: "main", Path: "lib/a.zen"}
	tree := filepath.Join(cacheDir, "gh", "u_r", "main")
	if err := os.MkdirAll(filepath.Join(tree, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tree, "lib", "a.zen"), []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tree, doneMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := f.Fetch(spec, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != filepath.Join(tree, "lib", "a.zen") {
		t.Errorf("Fetch = %q", got)
	}
}

func TestHTTPFetchMissingFileInTree(t *testing.T) {
	cacheDir := t.TempDir()
	f, err := NewHTTP(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	tree := filepath.Join(cacheDir, "gh", "u_r", "main")
	if err := os.MkdirAll(tree, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tree, doneMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = f.Fetch(&loadspec.Github{User: "u", Repo: "r", Rev: "main", Path: "nope.zen"}, "")
	if err == nil {
		t.Error("missing file inside a fetched tree should fail")
	}
}

func TestStripFirstComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"repo-main/src/a.zen", "src/a.zen"},
		{"repo-main/", ""},
		{"./repo-main/a.zen", "a.zen"},
		{"toplevel", ""},
	}
	for _, tt := range tests {
		if got := stripFirstComponent(tt.in); got != tt.want {
			t.Errorf("stripFirstComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
