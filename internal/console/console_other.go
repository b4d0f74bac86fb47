//go:build !windows

// Package console detects GUI launches and installs a Ctrl+C handler on
// Windows. Elsewhere a console is assumed and os/signal suffices.
package console

// IsRunningFromConsole always reports true.
func IsRunningFromConsole() bool {
	return true
}

// SetupConsoleHandler never closes shutdownChan; the returned function does
// nothing.
func SetupConsoleHandler(shutdownChan chan struct{}) func() {
	return func() {}
}
