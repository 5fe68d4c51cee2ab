package fileprovider

import (
	"errors"
	"testing"
)

func TestMemProviderBasics(t *testing.T) {
	p := NewMemWithFiles(map[string]string{
		"/ws/top.zen":     "a = 1",
		"/ws/lib/sub.zen": "b = 2",
	})

	contents, err := p.ReadFile("/ws/top.zen")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if contents != "a = 1" {
		t.Errorf("contents = %q", contents)
	}

	if !p.Exists("/ws/top.zen") {
		t.Error("top.zen should exist")
	}
	if p.Exists("/ws/nope.zen") {
		t.Error("nope.zen should not exist")
	}
	if !p.IsDirectory("/ws/lib") {
		t.Error("/ws/lib should be a directory")
	}
	if p.IsDirectory("/ws/top.zen") {
		t.Error("a file is not a directory")
	}
}

func TestMemProviderReadMissing(t *testing.T) {
	p := NewMem()
	_, err := p.ReadFile("/missing.zen")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestMemProviderListSorted(t *testing.T) {
	p := NewMemWithFiles(map[string]string{
		"/d/z.zen": "",
		"/d/a.zen": "",
		"/d/m.zen": "",
	})
	entries, err := p.ListDirectory("/d")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/d/a.zen", "/d/m.zen", "/d/z.zen"}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i], want[i])
		}
	}
}

func TestMemProviderCanonicalize(t *testing.T) {
	p := NewMemWithFiles(map[string]string{"/ws/a/file.zen": ""})

	got, err := p.Canonicalize("/ws/a/../a/file.zen")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/ws/a/file.zen" {
		t.Errorf("Canonicalize = %q", got)
	}

	if _, err := p.Canonicalize("/ws/missing.zen"); err == nil {
		t.Error("canonicalizing a missing path should fail")
	}
}

func TestOSProvider(t *testing.T) {
	p := NewOS()
	dir := t.TempDir()
	if !p.IsDirectory(dir) {
		t.Errorf("temp dir %s should be a directory", dir)
	}
	if p.Exists(dir + "/nope") {
		t.Error("missing file should not exist")
	}
}
