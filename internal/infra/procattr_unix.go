//go:build !windows

package infra

import "syscall"

// backgroundAttr puts helper processes in a new session, detached from the
// browser's.
func backgroundAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
