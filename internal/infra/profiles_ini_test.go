package infra

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseProfilesIni_InstallDefaultWins(t *testing.T) {
	base := filepath.FromSlash("/home/u/.mozilla/firefox")
	ini := `; comment
[Install4F96D1932A9F858E]
Default=Profiles/new.default-release
Locked=1

[Profile0]
Name=old
IsRelative=1
Path=Profiles/old.default
Default=1

[Profile1]
Name=abs
IsRelative=0
Path=/srv/profiles/abs
`
	pi, err := ParseProfilesIni(strings.NewReader(ini), base)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(pi.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(pi.Profiles))
	}

	got, ok := pi.DefaultPath()
	want := filepath.Join(base, "Profiles", "new.default-release")
	if !ok || got != want {
		t.Errorf("expected default %s, got %s (ok=%v)", want, got, ok)
	}

	abs, ok := pi.ByName("abs")
	if !ok {
		t.Fatal("profile 'abs' not found")
	}
	if abs.Path != filepath.FromSlash("/srv/profiles/abs") {
		t.Errorf("absolute path rewritten: %s", abs.Path)
	}
}

func TestParseProfilesIni_LegacyDefault(t *testing.T) {
	ini := `[Profile0]
Name=a
Path=a.x

[Profile1]
Name=b
Path=b.x
Default=1
`
	pi, err := ParseProfilesIni(strings.NewReader(ini), "/ff")
	if err != nil {
		t.Fatal(err)
	}

	got, ok := pi.DefaultPath()
	if !ok || got != filepath.Join("/ff", "b.x") {
		t.Errorf("expected legacy default b.x, got %s", got)
	}
	if _, ok := pi.ByName("missing"); ok {
		t.Error("unexpected profile 'missing'")
	}
}

func TestParseProfilesIni_Empty(t *testing.T) {
	pi, err := ParseProfilesIni(strings.NewReader(""), "/ff")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pi.DefaultPath(); ok {
		t.Error("empty ini should have no default")
	}
}
