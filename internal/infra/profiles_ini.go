package infra

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"
)

// IniProfile is one [ProfileN] section of profiles.ini.
type IniProfile struct {
	Name    string
	Path    string // Absolute path
	Default bool
}

// ProfilesIni is the parsed content of Firefox's profiles.ini.
type ProfilesIni struct {
	Profiles []IniProfile
	// InstallDefaults holds the Default= path of every [Install...] section,
	// which newer Firefox versions use instead of Default=1.
	InstallDefaults []string
}

// ParseProfilesIni parses profiles.ini read from r. Relative paths are
// resolved against baseDir.
func ParseProfilesIni(r io.Reader, baseDir string) (*ProfilesIni, error) {
	result := &ProfilesIni{}

	var section string
	values := map[string]string{}
	flush := func() {
		switch {
		case strings.HasPrefix(section, "Profile"):
			if values["Path"] == "" {
				break
			}
			result.Profiles = append(result.Profiles, IniProfile{
				Name:    values["Name"],
				Path:    resolveIniPath(baseDir, values["Path"], values["IsRelative"] != "0"),
				Default: values["Default"] == "1",
			})
		case strings.HasPrefix(section, "Install"):
			if d := values["Default"]; d != "" {
				result.InstallDefaults = append(result.InstallDefaults, resolveIniPath(baseDir, d, !filepath.IsAbs(d)))
			}
		}
		values = map[string]string{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			section = line[1 : len(line)-1]
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return result, nil
}

// resolveIniPath turns a profiles.ini path into an absolute OS path.
// profiles.ini always uses forward slashes, even on Windows.
func resolveIniPath(baseDir, p string, relative bool) string {
	p = filepath.FromSlash(p)
	if relative {
		return filepath.Join(baseDir, p)
	}
	return p
}

// ByName returns the profile called name.
func (pi *ProfilesIni) ByName(name string) (IniProfile, bool) {
	for _, p := range pi.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return IniProfile{}, false
}

// DefaultPath returns the default profile directory. The install default wins
// over the legacy Default=1 flag.
func (pi *ProfilesIni) DefaultPath() (string, bool) {
	if len(pi.InstallDefaults) > 0 {
		return pi.InstallDefaults[0], true
	}
	for _, p := range pi.Profiles {
		if p.Default {
			return p.Path, true
		}
	}
	return "", false
}
