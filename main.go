package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/soar/padview/internal/config"
	"github.com/soar/padview/internal/console"
	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/gamepad/sdlreader"
	"github.com/soar/padview/internal/hub"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/pipeline"
	"github.com/soar/padview/internal/render"
	"github.com/soar/padview/internal/server"
	"github.com/soar/padview/internal/skin"
	"github.com/soar/padview/internal/store"
	"github.com/soar/padview/internal/tray"
)

// Cross-platform signal handling: use os.Interrupt on all platforms
// On Windows: os.Interrupt is sent when Ctrl+C is pressed
// On Unix: os.Interrupt is equivalent to syscall.SIGINT
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

const (
	shutdownTimeout = 5 * time.Second
	commandTimeout  = time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	interactive := console.IsRunningFromConsole()
	if !logger.SetLevel(cfg.LogLevel) {
		logger.Warnf("Unknown log level %q, keeping info", cfg.LogLevel)
	}

	if err := run(cfg, interactive); err != nil {
		logger.Error(err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config, interactive bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.OpenBolt(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "open settings")
	}
	defer db.Close()

	diags := diag.NewStream()

	table := mapping.NewTable(db, diags)
	table.Load()
	assignments := skin.NewAssignments(db, diags)
	assignments.Load()

	var skins *skin.Store
	if cfg.SkinsDir != "" {
		skins = skin.NewDirStore(cfg.SkinsDir, diags)
	} else {
		skins = skin.NewStore(getSkinsFS(), diags)
	}

	// Snapshot sources. With both enabled, native pads win contested slots.
	frames := gamepad.NewMailbox()
	var native, browser gamepad.Sink = frames, frames
	if cfg.Source == config.SourceBoth {
		merge := gamepad.NewMerge(frames, 2)
		native, browser = merge.Source(0), merge.Source(1)
	}
	if !cfg.Browser() {
		browser = nil
	}

	h := hub.NewHub()
	broadcaster := hub.NewBroadcaster(h, cfg.PushRate)

	renderer := render.NewRenderer(skins, assignments, table, broadcaster, diags)
	renderer.SetFade(render.NewFade(render.LoadFadeOptions(db, diags)))
	loop := pipeline.NewLoop(frames, mapping.NewEngine(table), renderer, broadcaster, cfg.FrameRate)

	srv := server.New(server.Deps{
		Hub:         h,
		Broadcaster: broadcaster,
		Snapshots:   browser,
		Mappings:    table,
		Assignments: assignments,
		Skins:       skins,
		Renderer:    renderer,
		Loop:        loop,
		Settings:    db,
		Frontend:    getFrontendFS(),
	}, cfg.Listen)

	// onLoop runs fn on the frame loop from another goroutine.
	onLoop := func(fn func()) {
		cctx, ccancel := context.WithTimeout(ctx, commandTimeout)
		defer ccancel()
		if err := loop.Do(cctx, fn); err != nil {
			logger.Warnf("Frame loop did not take the command: %v", err)
		}
	}

	consoleCh := make(chan struct{})
	registerConsole := console.SetupConsoleHandler(consoleCh)

	diagCh, unsubscribe := diags.Subscribe(64)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run(gctx)
		return nil
	})
	g.Go(func() error { return broadcaster.Run(gctx, diagCh) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return skins.Watch(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case name := <-skins.Changes():
				onLoop(func() { renderer.ReloadSkin(name) })
			}
		}
	})
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return srv.Shutdown(sctx)
	})
	if cfg.SDL() {
		reader := sdlreader.NewReader(native)
		// SDL replaces console control handlers during init
		reader.OnInit = registerConsole
		g.Go(func() error {
			if err := reader.Run(gctx); err != nil {
				diags.Announce(diag.Error, "Native gamepad input unavailable: %v", err)
			}
			return nil
		})
	}

	logger.Infof("padview started: %s (source: %s)", cfg.URL(), cfg.Source)

	trayCh := make(chan struct{})
	if runtime.GOOS == "windows" && cfg.Tray {
		t := tray.New(tray.Options{
			Title: "padview",
			URL:   cfg.URL(),
			Reload: func() {
				skins.Purge()
				onLoop(renderer.ReassignAll)
			},
			Shutdown: func() { close(trayCh) },
		})
		go t.Run(tray.Icon())
		defer t.Quit()
	} else if interactive {
		logger.Infof("Press Ctrl+C to exit")
	}
	if cfg.OpenBrowser || !interactive {
		tray.OpenBrowser(cfg.URL())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		logger.Infof("Shutting down...")
	case <-consoleCh:
		logger.Infof("Shutting down...")
	case <-trayCh:
		logger.Infof("Shutdown requested from tray")
	case <-gctx.Done():
	}
	cancel()

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infof("padview stopped")
	return nil
}
