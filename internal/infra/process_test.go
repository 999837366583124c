package infra

import (
	"os"
	"testing"
)

func TestProcessInspector_ParentInvocation(t *testing.T) {
	pi := NewProcessInspector()

	if pi.GetParentPID() != os.Getppid() {
		t.Errorf("expected ppid %d, got %d", os.Getppid(), pi.GetParentPID())
	}

	// The test binary always has a parent (go test or the shell)
	inv, err := pi.ParentInvocation()
	if err != nil {
		t.Skipf("parent process not readable here: %v", err)
	}
	if inv.Exe == "" || len(inv.Args) == 0 {
		t.Errorf("expected a parent invocation, got %+v", inv)
	}
}
