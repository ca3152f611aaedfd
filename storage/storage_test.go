package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	if _, ok := s.Get("vssue.github.access_token"); ok {
		t.Error("empty store must report absence")
	}

	if err := s.Set("vssue.github.access_token", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := s.Get("vssue.github.access_token"); !ok || v != "tok" {
		t.Errorf("Get = (%q, %v), want (tok, true)", v, ok)
	}

	if err := s.Delete("vssue.github.access_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get("vssue.github.access_token"); ok {
		t.Error("deleted entry must be absent")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	s := NewFileStore(path)

	if _, ok := s.Get("vssue.gitlab.access_token"); ok {
		t.Error("missing file must report absence")
	}

	if err := s.Set("vssue.gitlab.access_token", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// a fresh store over the same file sees the entry
	s2 := NewFileStore(path)
	if v, ok := s2.Get("vssue.gitlab.access_token"); !ok || v != "tok" {
		t.Errorf("Get = (%q, %v), want (tok, true)", v, ok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	if err := s2.Delete("vssue.gitlab.access_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get("vssue.gitlab.access_token"); ok {
		t.Error("deleted entry must be absent")
	}
}

func TestFileStoreKeysAreIndependent(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	if err := s.Set("vssue.github.access_token", "gh"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("vssue.gitlab.access_token", "gl"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("vssue.github.access_token"); err != nil {
		t.Fatal(err)
	}

	if v, ok := s.Get("vssue.gitlab.access_token"); !ok || v != "gl" {
		t.Errorf("unrelated entry lost: (%q, %v)", v, ok)
	}
}
