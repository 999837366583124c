package script

import (
	"bytes"
	"fmt"
	"path"
	"text/template"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// POSIX renders /bin/sh scripts for Linux, macOS and the BSDs.
type POSIX struct{}

func (POSIX) Family() domain.OSFamily { return domain.FamilyPOSIX }

func (POSIX) Ext() string { return "sh" }

func (POSIX) Quote(s string) string { return QuotePOSIX(s) }

func (POSIX) Templates() string { return posixTemplates }

func (POSIX) Base(p string) string { return path.Base(p) }

func (POSIX) Preamble() []byte { return nil }

const posixTemplates = `{{define "prologue"}}#!/bin/sh
# Restarts the browser once it has exited. Removes itself when done.
hookdir={{q .HookDir}}
log={{q .LogFile}}
script={{q .ScriptPath}}

note() {
    printf '%s %s\n' "$(date '+%Y-%m-%dT%H:%M:%S')" "$*" >> "$log" 2>/dev/null
}

cleanup() {
{{- if .Debug}}
    mv -f -- "$script" "$hookdir"/{{q .DebugName}} 2>/dev/null
    note "kept restart script as "{{q .DebugName}}
{{- else}}
    rm -f -- "$script"
{{- end}}
}
{{if .Delay}}
sleep {{.Delay}}
{{end}}{{end}}

{{- define "wait"}}{{if .Lock}}
lock={{q .Lock.Path}}
cleared=0
attempt=1
while [ "$attempt" -le {{.Attempts}} ]; do
    if [ ! -e "$lock" ] && [ ! -L "$lock" ]; then
        cleared=1
        break
    fi
    echo "waiting for browser to exit ($attempt/{{.Attempts}})"
    sleep {{.Interval}}
    attempt=$((attempt + 1))
done
if [ "$cleared" -ne 1 ]; then
    note "$lock still present after {{.Attempts}} attempts, restart abandoned"
    echo "browser lock never cleared, restart abandoned" >&2
    cleanup
    exit 1
fi
{{end}}{{end}}

{{- define "hooks"}}
if cd "$hookdir" 2>/dev/null; then
    for hook in $(ls -1tr -- {{.HookGlob}} 2>/dev/null); do
        [ -f "$hook" ] || continue
        /bin/sh "./$hook"
        status=$?
        if [ "$status" -ne 0 ]; then
            note "hook $hook exited with status $status"
        fi
{{- if .Debug}}
        mv -f -- "$hook" {{q .DebugPrefix}}"$hook"
{{- else}}
        rm -f -- "$hook"
{{- end}}
    done
fi
{{end}}

{{- define "relaunch"}}
cd {{q .Browser.Dir}} 2>/dev/null || cd /
PATH={{q .Browser.Dir}}:"$PATH"
export PATH
nohup {{q .Browser.Path}}{{range .Browser.Args}} {{q .}}{{end}} >/dev/null 2>&1 &
{{- if .Debug}}
note "relaunched "{{q .Browser.Name}}
{{- end}}
{{end}}

{{- define "cleanup"}}
cleanup
exit 0
{{end}}`

const posixPrefsHook = `#!/bin/sh
# Rewrites prefs.js while the browser is stopped.
prefs={{q .Prefs}}
tmp="$prefs.tmp"
{{- if not .Lines}}
[ -f "$prefs" ] || exit 0
{{- end}}
touch -- "$prefs"
{{- if .Keys}}
grep -v -F{{range .Keys}} -e {{q .}}{{end}} -- "$prefs" > "$tmp"
{{- else}}
cat -- "$prefs" > "$tmp"
{{- end}}
{{- range .Lines}}
printf '%s\n' {{q .}} >> "$tmp"
{{- end}}
{{- if not .Lines}}
# grep terminates the last line; undo that when the file had no final newline
if [ -n "$(tail -c 1 -- "$prefs")" ] && [ -s "$tmp" ] &&
    [ "$(tail -n 1 -- "$tmp")" = "$(tail -n 1 -- "$prefs")" ]; then
    awk 'NR > 1 { print prev } { prev = $0 } END { printf "%s", prev }' "$tmp" > "$tmp.eol" &&
        mv -f -- "$tmp.eol" "$tmp"
fi
{{- end}}
rm -f -- "$prefs"
mv -f -- "$tmp" "$prefs"
`

type prefsHookView struct {
	Prefs string
	Keys  []string
	Lines []string
}

func (p POSIX) PrefsHook(prefsPath string, keys, lines []string) ([]byte, error) {
	return renderPrefsHook(posixPrefsHook, p.Quote, prefsPath, keys, lines)
}

func renderPrefsHook(src string, quote func(string) string, prefsPath string, keys, lines []string) ([]byte, error) {
	tmpl, err := template.New("prefs").Funcs(template.FuncMap{"q": quote}).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prefs hook template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, prefsHookView{Prefs: prefsPath, Keys: keys, Lines: lines}); err != nil {
		return nil, fmt.Errorf("failed to render prefs hook: %w", err)
	}
	return buf.Bytes(), nil
}
