//go:build windows

// Package console detects whether the viewer was started from a terminal or
// double-clicked, and installs a Ctrl+C handler that survives libraries
// calling runtime.LockOSThread (SDL3 does).
package console

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/windows"

	"github.com/soar/padview/internal/logger"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procGetConsoleWindow      = kernel32.NewProc("GetConsoleWindow")
	procAllocConsole          = kernel32.NewProc("AllocConsole")
	procFreeConsole           = kernel32.NewProc("FreeConsole")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	ctrlCEvent     = 0
	ctrlBreakEvent = 1
)

// IsRunningFromConsole reports whether a console is available for output.
//
// A console-mode build that was double-clicked gets its auto-created
// console window freed. A GUI-mode build started from a terminal gets a new
// console with the standard handles redirected to it.
func IsRunningFromConsole() bool {
	explorer := isLaunchedFromExplorer()

	if hasConsoleWindow() {
		if explorer {
			procFreeConsole.Call()
			return false
		}
		return true
	}
	if explorer {
		return false
	}

	// AllocConsole rather than AttachConsole: sharing the parent's console
	// interleaves both processes' input.
	procAllocConsole.Call()
	redirectStdStreams()
	return true
}

func hasConsoleWindow() bool {
	hwnd, _, _ := procGetConsoleWindow.Call()
	return hwnd != 0
}

// redirectStdStreams points os.Std* and the logger at the new console.
func redirectStdStreams() {
	stdout, err := windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	if err != nil || stdout == 0 {
		return
	}
	stderr, err := windows.GetStdHandle(windows.STD_ERROR_HANDLE)
	if err != nil || stderr == 0 {
		return
	}

	os.Stdout = os.NewFile(uintptr(stdout), "/dev/stdout")
	os.Stderr = os.NewFile(uintptr(stderr), "/dev/stderr")
	if stdin, err := windows.GetStdHandle(windows.STD_INPUT_HANDLE); err == nil && stdin != 0 {
		os.Stdin = os.NewFile(uintptr(stdin), "/dev/stdin")
	}
	logger.SetOutput(os.Stderr)
}

func isLaunchedFromExplorer() bool {
	name := processImageName(uint32(os.Getppid()))
	return strings.EqualFold(filepath.Base(name), "explorer.exe")
}

func processImageName(pid uint32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	var buf [windows.MAX_PATH]uint16
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

var (
	handlerOnce sync.Once
	handlerFn   uintptr
	shutdown    chan struct{}
	closeOnce   sync.Once
)

// SetupConsoleHandler closes shutdownChan on Ctrl+C or Ctrl+Break. The
// returned function registers the handler again; call it after SDL init,
// which replaces console handlers.
func SetupConsoleHandler(shutdownChan chan struct{}) func() {
	handlerOnce.Do(func() {
		shutdown = shutdownChan
		handlerFn = windows.NewCallback(func(ctrlType uint32) uintptr {
			if ctrlType != ctrlCEvent && ctrlType != ctrlBreakEvent {
				return 0
			}
			closeOnce.Do(func() { close(shutdown) })
			return 1
		})
	})

	register := func() {
		if ret, _, _ := procSetConsoleCtrlHandler.Call(handlerFn, 1); ret == 0 {
			logger.Warnf("Failed to set Windows console control handler")
		}
	}
	register()
	return register
}
