package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Listen:    ":8080",
		Source:    SourceBrowser,
		DB:        "padview.db",
		FrameRate: 60,
		PushRate:  30,
		Tray:      true,
		LogLevel:  "info",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("unexpected defaults (-want +got):\n%s", diff)
	}
	if cfg.URL() != "http://localhost:8080" {
		t.Errorf("unexpected URL %q", cfg.URL())
	}
	if !cfg.Browser() || cfg.SDL() {
		t.Error("expected browser-only source by default")
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	err := os.WriteFile(filepath.Join(dir, "padview.yaml"), []byte("listen: \":9000\"\nsource: both\nframe-rate: 30\n"), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("PADVIEW_FRAME_RATE", "50")

	cfg, err := Load([]string{"--source", "sdl"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("expected listen from the config file, got %q", cfg.Listen)
	}
	if cfg.FrameRate != 50 {
		t.Errorf("expected frame rate from the environment, got %d", cfg.FrameRate)
	}
	if cfg.Source != SourceSDL {
		t.Errorf("expected source from the flag, got %q", cfg.Source)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Chdir(t.TempDir())
	cases := [][]string{
		{"--source", "usb"},
		{"--frame-rate", "0"},
		{"--push-rate", "-1"},
		{"--no-such-flag"},
	}
	for _, args := range cases {
		if _, err := Load(args); err == nil {
			t.Errorf("Load(%v): expected an error", args)
		}
	}
}
