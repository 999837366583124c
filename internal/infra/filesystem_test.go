package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := filepath.FromSlash("/home/u")
	cases := []struct {
		in, want string
	}{
		{"~", home},
		{"~/a/b", filepath.Join(home, "a", "b")},
		{`~\a`, filepath.Join(home, "a")},
		{"/abs", "/abs"},
		{"~other/x", "~other/x"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ExpandHome(home, tc.in); got != tc.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAtomicWrite_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.js")

	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("new"), 0600); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("expected 'new', got %q", data)
	}

	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only user.js in %s, found %d entries", dir, len(entries))
	}
}

func TestAtomicWrite_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "f")
	if err := AtomicWrite(path, []byte("x"), 0644); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestIsRegularFileAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if !IsRegularFile(file) || IsDir(file) {
		t.Errorf("%s should be a regular file", file)
	}
	if IsRegularFile(dir) || !IsDir(dir) {
		t.Errorf("%s should be a directory", dir)
	}
	if IsRegularFile(filepath.Join(dir, "none")) || IsDir(filepath.Join(dir, "none")) {
		t.Error("missing path reported as existing")
	}
}
