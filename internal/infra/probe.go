package infra

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// BrowserProbeImpl implements domain.BrowserProbe.
type BrowserProbeImpl struct {
	platform  *PlatformConfig
	inspector domain.ProcessInspector
	lookPath  func(file string) (string, error)
	logger    *zap.Logger
}

// NewBrowserProbe creates a probe for the given platform.
func NewBrowserProbe(platform *PlatformConfig, inspector domain.ProcessInspector, logger *zap.Logger) *BrowserProbeImpl {
	return &BrowserProbeImpl{
		platform:  platform,
		inspector: inspector,
		lookPath:  exec.LookPath,
		logger:    logger,
	}
}

// NewBrowserProbeWithLookPath creates a probe with a custom search path resolver (for testing).
func NewBrowserProbeWithLookPath(platform *PlatformConfig, inspector domain.ProcessInspector, lookPath func(string) (string, error), logger *zap.Logger) *BrowserProbeImpl {
	p := NewBrowserProbe(platform, inspector, logger)
	p.lookPath = lookPath
	return p
}

// Family returns the OS family the probe answers for.
func (p *BrowserProbeImpl) Family() domain.OSFamily {
	return p.platform.Family
}

// ExpandHome expands a leading ~ against the user's home directory.
func (p *BrowserProbeImpl) ExpandHome(path string) string {
	return ExpandHome(p.platform.HomeDir, path)
}

// ResolveBrowser finds the browser binary to relaunch.
//
// On POSIX the parent process is tried first so the relaunch reuses the exact
// binary and flags the browser was started with.
func (p *BrowserProbeImpl) ResolveBrowser(browserCmd string, profile domain.Profile) (*domain.BrowserCommand, error) {
	fields := strings.Fields(browserCmd)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no browser command given", domain.ErrBrowserNotFound)
	}
	name, extra := fields[0], fields[1:]

	if p.platform.Family == domain.FamilyPOSIX && p.inspector != nil {
		if cmd, ok := p.fromParent(name); ok {
			return cmd, nil
		}
	}

	path, err := p.lookPath(name)
	if err != nil {
		p.logger.Debug("browser not on search path",
			zap.String("browser", name),
			zap.Error(err))
		return nil, fmt.Errorf("%w: '%s' wasn't found in %s. Please set a valid browser path or add it to the search path",
			domain.ErrBrowserNotFound, name, p.platform.PathVar)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	args := append([]string{}, extra...)
	args = append(args, "-foreground")
	if !profile.IsAuto() {
		args = append(args, "-profile", profile.Dir)
	}

	return &domain.BrowserCommand{
		Name: filepath.Base(path),
		Path: path,
		Dir:  filepath.Dir(path),
		Args: args,
	}, nil
}

// fromParent returns the parent's invocation if the parent is the requested browser.
func (p *BrowserProbeImpl) fromParent(name string) (*domain.BrowserCommand, bool) {
	inv, err := p.inspector.ParentInvocation()
	if err != nil {
		p.logger.Debug("parent invocation unavailable", zap.Error(err))
		return nil, false
	}

	exeBase := strings.ToLower(filepath.Base(inv.Exe))
	wanted := strings.ToLower(filepath.Base(name))
	if wanted == "" || !strings.Contains(exeBase, wanted) {
		return nil, false
	}

	p.logger.Debug("reusing parent invocation",
		zap.String("exe", inv.Exe),
		zap.Strings("args", inv.Args))

	args := []string{}
	if len(inv.Args) > 1 {
		args = append(args, inv.Args[1:]...)
	}

	return &domain.BrowserCommand{
		Name:       filepath.Base(inv.Exe),
		Path:       inv.Exe,
		Dir:        filepath.Dir(inv.Exe),
		Args:       args,
		FromParent: true,
	}, true
}

// ValidateProfile reports whether path is a directory holding times.json.
func (p *BrowserProbeImpl) ValidateProfile(path string) bool {
	if path == "" {
		return false
	}
	return IsDir(path) && IsRegularFile(filepath.Join(path, domain.ProfileMarker))
}

// ResolveAutoProfile finds the running profile: first from the parent's
// -profile / -P flags, then from the defaults in profiles.ini.
func (p *BrowserProbeImpl) ResolveAutoProfile() (string, bool) {
	var args []string
	if p.inspector != nil && p.platform.Family == domain.FamilyPOSIX {
		if inv, err := p.inspector.ParentInvocation(); err == nil {
			args = inv.Args
		}
	}

	if dir := flagValue(args, "--profile", "-profile"); dir != "" {
		dir = ExpandHome(p.platform.HomeDir, dir)
		if p.ValidateProfile(dir) {
			return dir, true
		}
	}

	ini, err := p.loadProfilesIni()
	if err != nil {
		p.logger.Debug("profiles.ini unavailable", zap.Error(err))
		return "", false
	}

	if name := flagValue(args, "-P", "-p", "--P"); name != "" {
		if prof, ok := ini.ByName(name); ok && p.ValidateProfile(prof.Path) {
			return prof.Path, true
		}
	}

	if dir, ok := ini.DefaultPath(); ok && p.ValidateProfile(dir) {
		return dir, true
	}
	return "", false
}

func (p *BrowserProbeImpl) loadProfilesIni() (*ProfilesIni, error) {
	f, err := os.Open(filepath.Join(p.platform.FirefoxDir, "profiles.ini"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseProfilesIni(f, p.platform.FirefoxDir)
}

// flagValue returns the argument following the first of names found in args.
func flagValue(args []string, names ...string) string {
	for i, arg := range args {
		for _, name := range names {
			if arg == name && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(arg, name+"=") {
				return strings.TrimPrefix(arg, name+"=")
			}
		}
	}
	return ""
}

// Ensure BrowserProbeImpl implements domain.BrowserProbe.
var _ domain.BrowserProbe = (*BrowserProbeImpl)(nil)
