// Package config reads the viewer's settings from flags, PADVIEW_*
// environment variables and an optional padview.{yaml,toml,json} file, in
// that order of precedence.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Input sources.
const (
	SourceBrowser = "browser"
	SourceSDL     = "sdl"
	SourceBoth    = "both"
)

// Config holds every setting.
type Config struct {
	Listen      string `mapstructure:"listen"`
	Source      string `mapstructure:"source"`
	SkinsDir    string `mapstructure:"skins-dir"`
	DB          string `mapstructure:"db"`
	FrameRate   int    `mapstructure:"frame-rate"`
	PushRate    int    `mapstructure:"push-rate"`
	Tray        bool   `mapstructure:"tray"`
	OpenBrowser bool   `mapstructure:"open-browser"`
	LogLevel    string `mapstructure:"log-level"`
}

// Browser reports whether snapshots are taken from browser pages.
func (c *Config) Browser() bool {
	return c.Source == SourceBrowser || c.Source == SourceBoth
}

// SDL reports whether native joysticks are read.
func (c *Config) SDL() bool {
	return c.Source == SourceSDL || c.Source == SourceBoth
}

// URL is the address a local browser opens.
func (c *Config) URL() string {
	addr := c.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("padview", pflag.ContinueOnError)
	fs.String("listen", ":8080", "HTTP listen address")
	fs.String("source", SourceBrowser, "gamepad source: browser, sdl or both")
	fs.String("skins-dir", "", "load skins from this directory instead of the built-in ones")
	fs.String("db", "padview.db", "settings database file")
	fs.Int("frame-rate", 60, "frame loop rate")
	fs.Int("push-rate", 30, "frames per second pushed to each viewer")
	fs.Bool("tray", true, "show the system tray icon (Windows)")
	fs.Bool("open-browser", false, "open the viewer in the default browser on start")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("config", "", "config file (default: padview.yaml/toml/json in the working directory)")
	return fs
}

// Load parses args and merges environment and config file values.
func Load(args []string) (*Config, error) {
	fs := flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix("PADVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("padview")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceBrowser, SourceSDL, SourceBoth:
	default:
		return errors.Errorf("unknown source %q", c.Source)
	}
	if c.FrameRate <= 0 || c.FrameRate > 240 {
		return errors.Errorf("frame-rate %d out of range", c.FrameRate)
	}
	if c.PushRate <= 0 {
		return errors.Errorf("push-rate %d must be positive", c.PushRate)
	}
	return nil
}
