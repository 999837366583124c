package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// FileHookStore implements domain.HookStore as a plain directory of scripts.
// Hooks are named <prefix><phase>-<utc timestamp>-<id>.<ext>.
type FileHookStore struct {
	dir    string
	prefix string
	ext    string
	now    func() time.Time
}

// NewFileHookStore creates a hook store for the platform.
func NewFileHookStore(platform *PlatformConfig) *FileHookStore {
	return NewFileHookStoreWithDir(platform.HookDir, platform.HookPrefix, platform.ScriptExt())
}

// NewFileHookStoreWithDir creates a hook store at a specific directory (for testing).
func NewFileHookStoreWithDir(dir, prefix, ext string) *FileHookStore {
	return &FileHookStore{
		dir:    dir,
		prefix: prefix,
		ext:    ext,
		now:    time.Now,
	}
}

// Dir returns the hook directory.
func (s *FileHookStore) Dir() string {
	return s.dir
}

// Glob returns the shell pattern matching hooks of phase.
func (s *FileHookStore) Glob(phase domain.HookPhase) string {
	return s.prefix + string(phase) + "-*." + s.ext
}

// Enqueue writes body as a new hook of phase.
func (s *FileHookStore) Enqueue(phase domain.HookPhase, body []byte) (*domain.Hook, error) {
	if phase != domain.PhasePreRestart {
		return nil, fmt.Errorf("%w: %s", domain.ErrPhaseReserved, phase)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create hook directory: %w", err)
	}

	now := s.now().UTC()
	name := fmt.Sprintf("%s%s-%s-%s.%s",
		s.prefix, phase, now.Format("20060102T150405.000000000"), uuid.NewString()[:8], s.ext)
	path := filepath.Join(s.dir, name)

	// Atomic so a restart script draining the directory never runs half a hook
	if err := AtomicWrite(path, body, 0700); err != nil {
		return nil, fmt.Errorf("failed to write hook %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &domain.Hook{
		Path:    path,
		Name:    name,
		Phase:   phase,
		ModTime: info.ModTime(),
	}, nil
}

// Pending returns the hooks of phase, oldest first.
// Ties keep directory order, which is unspecified.
func (s *FileHookStore) Pending(phase domain.HookPhase) ([]domain.Hook, error) {
	matcher, err := glob.Compile(glob.QuoteMeta(s.prefix+string(phase)+"-") + "*" + glob.QuoteMeta("."+s.ext))
	if err != nil {
		return nil, fmt.Errorf("failed to compile hook pattern: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	hooks := make([]domain.Hook, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !matcher.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // Consumed while listing
		}
		hooks = append(hooks, domain.Hook{
			Path:    filepath.Join(s.dir, entry.Name()),
			Name:    entry.Name(),
			Phase:   phase,
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].ModTime.Before(hooks[j].ModTime)
	})
	return hooks, nil
}

// Ensure FileHookStore implements domain.HookStore.
var _ domain.HookStore = (*FileHookStore)(nil)
