package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eliteGoblin/focusd/nativehost/internal/config"
	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// mockInspector is a test double for domain.ProcessInspector
type mockInspector struct {
	inv *domain.Invocation
	err error
}

func (m *mockInspector) ParentInvocation() (*domain.Invocation, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.inv == nil {
		return nil, errors.New("no parent")
	}
	return m.inv, nil
}

func (m *mockInspector) GetParentPID() int {
	return os.Getppid()
}

// testPlatform returns a platform rooted in a temp home directory.
func testPlatform(t *testing.T, goos string) *PlatformConfig {
	t.Helper()
	home := t.TempDir()

	cfg := config.Default()
	cfg.HookDir = filepath.Join(home, "hooks")
	pc := DetectPlatformFor(goos, cfg)
	pc.HomeDir = home
	pc.FirefoxDir = filepath.Join(home, "firefox")
	return pc
}

// makeProfile creates a valid profile directory under parent.
func makeProfile(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, domain.ProfileMarker), []byte(`{"created":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

var _ domain.ProcessInspector = (*mockInspector)(nil)
