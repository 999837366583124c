package script

import (
	"strings"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// Windows renders PowerShell scripts run by a one-shot scheduled task.
type Windows struct{}

func (Windows) Family() domain.OSFamily { return domain.FamilyWindows }

func (Windows) Ext() string { return "ps1" }

func (Windows) Quote(s string) string { return QuotePowerShell(s) }

func (Windows) Templates() string { return windowsTemplates }

// Base accepts both separators, whatever OS renders the script.
func (Windows) Base(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// utf8BOM makes Windows PowerShell 5.1 read the script as UTF-8 instead of
// the ANSI code page.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (Windows) Preamble() []byte { return utf8BOM }

// The ScheduleDelay is applied by the task trigger, so the prologue never sleeps.
const windowsTemplates = `{{define "prologue"}}# Restarts the browser once it has exited. Removes itself and its task when done.
$ErrorActionPreference = 'Continue'
$hookDir = {{q .HookDir}}
$logFile = {{q .LogFile}}
$scriptPath = {{q .ScriptPath}}

function Write-Note([string]$message) {
    $stamp = Get-Date -Format 'yyyy-MM-ddTHH:mm:ss'
    Add-Content -LiteralPath $logFile -Value "$stamp $message" -ErrorAction SilentlyContinue
}

function Invoke-Cleanup {
    Unregister-ScheduledTask -TaskName {{q .TaskName}} -Confirm:$false -ErrorAction SilentlyContinue
{{- if .Debug}}
    Rename-Item -LiteralPath $scriptPath -NewName {{q .DebugName}} -ErrorAction SilentlyContinue
    Write-Note ('kept restart script as ' + {{q .DebugName}})
    Read-Host 'Restart finished, press Enter to close'
{{- else}}
    Remove-Item -LiteralPath $scriptPath -Force -ErrorAction SilentlyContinue
{{- end}}
}
{{end}}

{{- define "wait"}}{{if .Lock}}
$lock = {{q .Lock.Path}}
$cleared = $false
for ($attempt = 1; $attempt -le {{.Attempts}}; $attempt++) {
    if (-not (Test-Path -LiteralPath $lock)) {
        $cleared = $true
        break
    }
{{- if .Lock.Exclusive}}
    try {
        $stream = [System.IO.File]::Open($lock, 'Open', 'ReadWrite', 'None')
        $stream.Close()
        $cleared = $true
        break
    } catch {
    }
{{- end}}
    Write-Output "waiting for browser to exit ($attempt/{{.Attempts}})"
    Start-Sleep -Milliseconds {{.IntervalMs}}
}
if (-not $cleared) {
    Write-Note "$lock still locked after {{.Attempts}} attempts, restart abandoned"
    Invoke-Cleanup
    exit 1
}
{{end}}{{end}}

{{- define "hooks"}}
$hooks = Get-ChildItem -LiteralPath $hookDir -Filter {{q .HookGlob}} -File -ErrorAction SilentlyContinue | Sort-Object LastWriteTime
foreach ($hook in $hooks) {
    & powershell.exe -NoProfile -ExecutionPolicy Bypass -File $hook.FullName
    if ($LASTEXITCODE -ne 0) {
        Write-Note "hook $($hook.Name) exited with status $LASTEXITCODE"
    }
{{- if .Debug}}
    Rename-Item -LiteralPath $hook.FullName -NewName ({{q .DebugPrefix}} + $hook.Name) -ErrorAction SilentlyContinue
{{- else}}
    Remove-Item -LiteralPath $hook.FullName -Force -ErrorAction SilentlyContinue
{{- end}}
}
{{end}}

{{- define "relaunch"}}
Set-Location -LiteralPath {{q .Browser.Dir}}
$env:PATH = {{q .Browser.Dir}} + ';' + $env:PATH
Start-Process -FilePath {{q .Browser.Path}}{{if .Browser.Args}} -ArgumentList {{q .WindowsArgs}}{{end}}
{{- if .Debug}}
Write-Note ('relaunched ' + {{q .Browser.Name}})
{{- end}}
{{end}}

{{- define "cleanup"}}
Invoke-Cleanup
exit 0
{{end}}`

const windowsPrefsHook = `# Rewrites prefs.js while the browser is stopped.
$prefs = {{q .Prefs}}
$tmp = $prefs + '.tmp'
$keys = @({{range $i, $k := .Keys}}{{if $i}}, {{end}}{{q $k}}{{end}})
$lines = @()
$noFinalNewline = $false
if (Test-Path -LiteralPath $prefs) {
    $text = [System.IO.File]::ReadAllText($prefs)
    $noFinalNewline = $text.Length -gt 0 -and -not $text.EndsWith([string][char]10)
    $lines = [System.IO.File]::ReadAllLines($prefs)
}{{if not .Lines}} else {
    exit 0
}{{end}}
$kept = @($lines | Where-Object {
    $line = $_
    -not ($keys | Where-Object { $line.Contains($_) })
})
{{- range .Lines}}
$kept += {{q .}}
{{- end}}
{{- if not .Lines}}
if ($noFinalNewline -and $kept.Count -gt 0 -and $kept[-1] -eq $lines[-1]) {
    # Keep the missing final newline
    [System.IO.File]::WriteAllText($tmp, [string]::Join([Environment]::NewLine, [string[]]$kept))
} else {
    [System.IO.File]::WriteAllLines($tmp, [string[]]$kept)
}
{{- else}}
[System.IO.File]::WriteAllLines($tmp, [string[]]$kept)
{{- end}}
Remove-Item -LiteralPath $prefs -Force -ErrorAction SilentlyContinue
Move-Item -LiteralPath $tmp -Destination $prefs -Force
exit 0
`

func (w Windows) PrefsHook(prefsPath string, keys, lines []string) ([]byte, error) {
	return renderPrefsHook(windowsPrefsHook, w.Quote, prefsPath, keys, lines)
}
