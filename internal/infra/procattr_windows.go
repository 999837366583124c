//go:build windows

package infra

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// backgroundAttr starts helper processes without a console window, so
// registering the restart task does not flash one over the browser.
func backgroundAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}
