// Package tray shows the Windows notification area icon.
package tray

import (
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"fyne.io/systray"

	"github.com/soar/padview/internal/logger"
)

// ShutdownFunc is called when "Exit" is clicked
type ShutdownFunc func()

// Options configure the tray.
type Options struct {
	Title string
	URL   string
	// Reload, when set, adds a "Reload skins" entry.
	Reload   func()
	Shutdown ShutdownFunc
}

// Tray manages the system tray icon and menu
type Tray struct {
	opts         Options
	once         sync.Once
	shuttingDown atomic.Bool
	menuOpen     *systray.MenuItem
	menuReload   *systray.MenuItem
	menuExit     *systray.MenuItem
}

func New(opts Options) *Tray {
	return &Tray{opts: opts}
}

// Run initializes and runs the system tray (blocks until Quit())
func (t *Tray) Run(iconData []byte) {
	systray.Run(func() {
		t.onReady(iconData)
	}, func() {
		t.onExit()
	})
}

// Quit removes the icon and makes Run return.
func (t *Tray) Quit() {
	t.shuttingDown.Store(true)
	systray.Quit()
}

func (t *Tray) onReady(iconData []byte) {
	if iconData != nil {
		systray.SetIcon(iconData)
	}
	systray.SetTitle(t.opts.Title)
	systray.SetTooltip(t.opts.Title + " - " + t.opts.URL)

	t.menuOpen = systray.AddMenuItem("Open Browser", "Open web interface")
	if t.opts.Reload != nil {
		t.menuReload = systray.AddMenuItem("Reload skins", "Reload every skin from disk")
	}
	systray.AddSeparator()
	t.menuExit = systray.AddMenuItem("Exit", "Quit application")

	// Handle menu clicks in separate goroutines to prevent blocking
	go t.handleMenuClicks()

	logger.Infof("System tray initialized")
}

// handleMenuClicks processes menu item clicks without blocking
func (t *Tray) handleMenuClicks() {
	var reload chan struct{}
	if t.menuReload != nil {
		reload = t.menuReload.ClickedCh
	}
	for {
		select {
		case <-t.menuOpen.ClickedCh:
			if !t.shuttingDown.Load() {
				OpenBrowser(t.opts.URL)
			}
		case <-reload:
			if !t.shuttingDown.Load() {
				t.opts.Reload()
			}
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.opts.Shutdown)
				systray.Quit()
				return
			}
		}
	}
}

func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	logger.Infof("System tray exiting")
}

// OpenBrowser opens url in the default web browser.
func OpenBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		logger.Warnf("Failed to open browser: %v", err)
		return
	}
	go cmd.Wait()
}
