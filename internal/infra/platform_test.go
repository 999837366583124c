package infra

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/nativehost/internal/config"
	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

func TestDetectPlatformFor_Families(t *testing.T) {
	cfg := config.Default()

	linux := DetectPlatformFor("linux", cfg)
	assert.Equal(t, domain.FamilyPOSIX, linux.Family)
	assert.Equal(t, "sh", linux.ScriptExt())
	assert.Equal(t, "$PATH", linux.PathVar)
	assert.True(t, strings.HasSuffix(linux.HookDir, filepath.Join("tridactyl", "native_hooks")))
	assert.Equal(t, filepath.Join(linux.HookDir, "nativehost.log"), linux.LogFile)

	mac := DetectPlatformFor("darwin", cfg)
	assert.Equal(t, domain.FamilyPOSIX, mac.Family)
	assert.Contains(t, mac.FirefoxDir, filepath.Join("Library", "Application Support", "Firefox"))

	win := DetectPlatformFor("windows", cfg)
	assert.Equal(t, domain.FamilyWindows, win.Family)
	assert.Equal(t, "ps1", win.ScriptExt())
	assert.Equal(t, "%PATH%", win.PathVar)
	assert.Contains(t, win.String(), "scheduled task")
}

func TestDetectPlatformFor_ConfiguredPaths(t *testing.T) {
	cfg := config.Default()
	cfg.HookDir = "~/hooks"
	cfg.LogFile = "~/host.log"
	cfg.HookPrefix = "tri-"

	pc := DetectPlatformFor("linux", cfg)

	assert.Equal(t, filepath.Join(pc.HomeDir, "hooks"), pc.HookDir)
	assert.Equal(t, filepath.Join(pc.HomeDir, "host.log"), pc.LogFile)
	assert.Equal(t, "tri-", pc.HookPrefix)
	assert.Equal(t, "linux (detached shell relaunch)", pc.String())
}
