//go:build !windows

package infra

import "testing"

func TestBackgroundAttr_NewSession(t *testing.T) {
	if !backgroundAttr().Setsid {
		t.Error("expected helper processes to start a new session")
	}
}
