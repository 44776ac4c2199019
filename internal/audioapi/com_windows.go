//go:build windows

package audioapi

import (
	"runtime"
	"syscall"

	"golang.org/x/sys/windows"
)

// S_FALSE: COM was already initialised on this thread. The call must still
// be balanced by CoUninitialize.
const sFalse = syscall.Errno(1)

// Run fn with COM initialised on the calling OS thread.
// WASAPI enumeration must run on a thread that entered COM.
func withCOM(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := windows.CoInitializeEx(0, windows.COINIT_MULTITHREADED)
	if err == nil || err == sFalse {
		defer windows.CoUninitialize()
	}
	return fn()
}
