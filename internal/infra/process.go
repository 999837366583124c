package infra

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// ProcessInspectorImpl implements domain.ProcessInspector using gopsutil.
type ProcessInspectorImpl struct{}

// NewProcessInspector creates a new process inspector.
func NewProcessInspector() domain.ProcessInspector {
	return &ProcessInspectorImpl{}
}

// ParentInvocation returns the executable and argv of the parent process.
// When the native host is launched by the browser, this is the browser itself.
func (pi *ProcessInspectorImpl) ParentInvocation() (*domain.Invocation, error) {
	ppid := os.Getppid()
	p, err := process.NewProcess(int32(ppid))
	if err != nil {
		return nil, fmt.Errorf("failed to open parent process %d: %w", ppid, err)
	}

	args, err := p.CmdlineSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to read parent command line: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parent process %d has an empty command line", ppid)
	}

	exe, err := p.Exe()
	if err != nil || exe == "" {
		// Exe needs /proc access on Linux; argv[0] is the next best thing
		exe = args[0]
	}

	return &domain.Invocation{Exe: exe, Args: args}, nil
}

// GetParentPID returns the parent process PID.
func (pi *ProcessInspectorImpl) GetParentPID() int {
	return os.Getppid()
}

// Ensure ProcessInspectorImpl implements domain.ProcessInspector.
var _ domain.ProcessInspector = (*ProcessInspectorImpl)(nil)
