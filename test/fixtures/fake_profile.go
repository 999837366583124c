// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"strings"
)

// FakeProfile creates a directory mimicking a Firefox profile.
type FakeProfile struct {
	Dir string
}

// NewFakeProfile creates a new fake profile generator rooted at dir.
func NewFakeProfile(dir string) *FakeProfile {
	return &FakeProfile{Dir: dir}
}

// Create creates the profile directory and its times.json marker.
func (f *FakeProfile) Create() error {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.Dir, "times.json"), []byte(`{"created":1700000000000}`), 0644)
}

// WriteFile writes lines (newline terminated) to name inside the profile.
func (f *FakeProfile) WriteFile(name string, lines ...string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	return os.WriteFile(filepath.Join(f.Dir, name), []byte(content), 0644)
}

// Lines returns the non-empty lines of name inside the profile.
func (f *FakeProfile) Lines(name string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Lock creates the marker a running browser keeps in the profile.
func (f *FakeProfile) Lock() error {
	return os.WriteFile(filepath.Join(f.Dir, "lock"), nil, 0644)
}

// Unlock removes the running-browser marker.
func (f *FakeProfile) Unlock() error {
	return os.Remove(filepath.Join(f.Dir, "lock"))
}

// FakeBrowser writes a shell script standing in for the browser. When run it
// records its arguments in RecordPath.
type FakeBrowser struct {
	Dir        string
	Name       string
	RecordPath string
}

// NewFakeBrowser creates a fake browser generator in dir.
func NewFakeBrowser(dir, name string) *FakeBrowser {
	return &FakeBrowser{
		Dir:        dir,
		Name:       name,
		RecordPath: filepath.Join(dir, name+".args"),
	}
}

// Path returns the executable path.
func (b *FakeBrowser) Path() string {
	return filepath.Join(b.Dir, b.Name)
}

// Create writes the executable.
func (b *FakeBrowser) Create() error {
	if err := os.MkdirAll(b.Dir, 0755); err != nil {
		return err
	}
	body := "#!/bin/sh\nprintf '%s\\n' \"$*\" > '" + b.RecordPath + "'\n"
	return os.WriteFile(b.Path(), []byte(body), 0755)
}

// Launched returns the recorded arguments, or false if the browser never ran.
func (b *FakeBrowser) Launched() (string, bool) {
	data, err := os.ReadFile(b.RecordPath)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
