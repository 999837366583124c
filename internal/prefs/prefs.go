// Package prefs rewrites the browser's preference files.
//
// user.js is only read at browser startup, so it is edited in place. prefs.js
// is rewritten by the running browser, so edits to it are deferred to a
// pre-restart hook that runs once the browser has exited.
package prefs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/infra"
	"github.com/eliteGoblin/focusd/nativehost/internal/script"
)

const (
	// UserFile holds user overrides applied at every startup.
	UserFile = "user.js"
	// PrefsFile is owned by the running browser.
	PrefsFile = "prefs.js"

	defaultPerm os.FileMode = 0644
)

// ParseAdditions decodes a JSON object of preference names to values. The
// object may arrive string-encoded. Edits are returned sorted by key.
func ParseAdditions(raw json.RawMessage) ([]domain.PreferenceEdit, error) {
	data, err := unwrapString(raw)
	if err != nil {
		return nil, err
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil || values == nil {
		return nil, fmt.Errorf("%w: expected an object of preference values", domain.ErrMalformedPrefs)
	}

	edits := make([]domain.PreferenceEdit, 0, len(values))
	for key, value := range values {
		if key == "" {
			return nil, fmt.Errorf("%w: empty preference name", domain.ErrMalformedPrefs)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, value); err != nil {
			return nil, fmt.Errorf("%w: value of %q: %v", domain.ErrMalformedPrefs, key, err)
		}
		edits = append(edits, domain.PreferenceEdit{Key: key, Value: buf.Bytes()})
	}
	sortEdits(edits)
	return edits, nil
}

// ParseRemovals decodes a JSON array of preference names, possibly string-encoded.
func ParseRemovals(raw json.RawMessage) ([]domain.PreferenceEdit, error) {
	data, err := unwrapString(raw)
	if err != nil {
		return nil, err
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil || keys == nil {
		return nil, fmt.Errorf("%w: expected an array of preference names", domain.ErrMalformedPrefs)
	}

	seen := make(map[string]bool, len(keys))
	edits := make([]domain.PreferenceEdit, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty preference name", domain.ErrMalformedPrefs)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		edits = append(edits, domain.PreferenceEdit{Key: key})
	}
	sortEdits(edits)
	return edits, nil
}

// unwrapString accepts either a JSON document or a JSON string holding one.
func unwrapString(raw json.RawMessage) ([]byte, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no preferences given", domain.ErrMalformedPrefs)
	}
	if data[0] != '"' {
		return data, nil
	}

	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPrefs, err)
	}
	return []byte(strings.TrimSpace(inner)), nil
}

func sortEdits(edits []domain.PreferenceEdit) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].Key < edits[j].Key })
}

// FormatLine renders user_pref(<key>, <value>); with JSON literals on both sides.
func FormatLine(key string, value json.RawMessage) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(buf.String(), "\n")

	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return "", fmt.Errorf("%w: value of %q: %v", domain.ErrMalformedPrefs, key, err)
	}
	return "user_pref(" + name + ", " + compact.String() + ");", nil
}

// Keys returns the key of every edit.
func Keys(edits []domain.PreferenceEdit) []string {
	keys := make([]string, len(edits))
	for i, e := range edits {
		keys[i] = e.Key
	}
	return keys
}

// Lines returns the user_pref line of every edit that carries a value.
func Lines(edits []domain.PreferenceEdit) ([]string, error) {
	var lines []string
	for _, e := range edits {
		if e.IsRemoval() {
			continue
		}
		line, err := FormatLine(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// SplitLines splits file content into lines, dropping the final line break.
func SplitLines(content []byte) []string {
	text := string(content)
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// matches reports whether line mentions any key. Matching is by substring:
// a key also drops lines of longer keys that contain it.
func matches(line string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(line, k) {
			return true
		}
	}
	return false
}

// Filter drops every line mentioning a key and returns the kept lines.
func Filter(lines, keys []string) (kept []string, removed int) {
	kept = make([]string, 0, len(lines))
	for _, l := range lines {
		if matches(l, keys) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	return kept, removed
}

// Rewrite applies edits to file content.
func Rewrite(content []byte, edits []domain.PreferenceEdit) ([]byte, *domain.EditResult, error) {
	lines := SplitLines(content)
	added, err := Lines(edits)
	if err != nil {
		return nil, nil, err
	}

	kept, removed := Filter(lines, Keys(edits))
	kept = append(kept, added...)

	var out []byte
	if len(kept) > 0 {
		out = []byte(strings.Join(kept, "\n") + "\n")
	}
	return out, &domain.EditResult{
		Removed: removed,
		Added:   len(added),
		Total:   len(lines),
	}, nil
}

// Mutator applies preference edits to a profile.
type Mutator struct {
	hooks    domain.HookStore
	platform script.PlatformScript
	logger   *zap.Logger
}

// NewMutator creates a mutator. platform renders the deferred prefs.js hooks.
func NewMutator(hooks domain.HookStore, platform script.PlatformScript, logger *zap.Logger) *Mutator {
	return &Mutator{
		hooks:    hooks,
		platform: platform,
		logger:   logger,
	}
}

// ApplyLive rewrites user.js now. A missing file counts as empty, except that
// removing from an empty file is an error.
func (m *Mutator) ApplyLive(profileDir string, edits []domain.PreferenceEdit) (*domain.EditResult, error) {
	path := filepath.Join(profileDir, UserFile)

	content, perm, err := readPrefs(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 && onlyRemovals(edits) {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyPrefsFile, path)
	}

	out, result, err := Rewrite(content, edits)
	if err != nil {
		return nil, err
	}
	result.File = path

	if err := infra.AtomicWrite(path, out, perm); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	m.logger.Info("preferences written",
		zap.String("file", path),
		zap.Int("removed", result.Removed),
		zap.Int("added", result.Added))
	return result, nil
}

// ScheduleDeferred counts what edits would change in prefs.js and, when
// anything would change, enqueues a pre-restart hook that performs the rewrite.
// prefs.js itself is only read.
func (m *Mutator) ScheduleDeferred(profileDir string, edits []domain.PreferenceEdit) (*domain.EditResult, error) {
	path := filepath.Join(profileDir, PrefsFile)

	content, _, err := readPrefs(path)
	if err != nil {
		return nil, err
	}

	_, result, err := Rewrite(content, edits)
	if err != nil {
		return nil, err
	}
	result.File = path
	result.Deferred = true

	if result.Removed == 0 && result.Added == 0 {
		return result, nil
	}

	lines, err := Lines(edits)
	if err != nil {
		return nil, err
	}
	body, err := m.platform.PrefsHook(path, Keys(edits), lines)
	if err != nil {
		return nil, err
	}
	hook, err := m.hooks.Enqueue(domain.PhasePreRestart, script.WithPreamble(m.platform, body))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue prefs hook: %w", err)
	}
	result.Hook = hook

	m.logger.Info("prefs.js rewrite deferred",
		zap.String("file", path),
		zap.String("hook", hook.Name),
		zap.Int("removed", result.Removed),
		zap.Int("added", result.Added))
	return result, nil
}

func readPrefs(path string) ([]byte, os.FileMode, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, defaultPerm, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	perm := defaultPerm
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return content, perm, nil
}

func onlyRemovals(edits []domain.PreferenceEdit) bool {
	if len(edits) == 0 {
		return false
	}
	for _, e := range edits {
		if !e.IsRemoval() {
			return false
		}
	}
	return true
}
