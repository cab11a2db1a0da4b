package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvURL        = "SNAP_URL"
	EnvListenAddr = "SNAPKIOSK_LISTEN"
	EnvDevMode    = "SNAPKIOSK_DEV"
	EnvStdioLog   = "SNAPKIOSK_STDIO_LOG"
	EnvSplash     = "SNAPKIOSK_SPLASH"
)

// Splash modes.
const (
	SplashFramebuffer = "framebuffer"
	SplashConsole     = "console"
	SplashNone        = "none"
)

const (
	defaultLoadTimeout       = 10 * time.Second
	defaultFramebufferDevice = "/dev/fb0"
	defaultWindowWidth       = 1920
	defaultWindowHeight      = 1080
)

var defaultBrowserArgs = []string{"--kiosk", "--noerrdialogs", "--disable-infobars"}

type Config struct {
	URL               string        `yaml:"url"`
	LoadTimeoutMs     int           `yaml:"load_timeout_ms"`
	Browser           BrowserConfig `yaml:"browser"`
	Listen            string        `yaml:"listen"`
	Dev               bool          `yaml:"dev"`
	Splash            string        `yaml:"splash"`
	FramebufferDevice string        `yaml:"framebuffer_device"`
	StdioLog          string        `yaml:"stdio_log"`
}

// BrowserConfig describes the kiosk Chrome window.
type BrowserConfig struct {
	// Command is the Chrome executable. Empty means locate an installed Chrome or Chromium.
	Command string `yaml:"command"`
	// Args are extra Chrome flags, added to the DevTools defaults.
	Args       []string `yaml:"args"`
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	ProfileDir string   `yaml:"profile_dir"`
}

// LoadTimeout is the per-attempt load timeout.
func (c Config) LoadTimeout() time.Duration {
	if c.LoadTimeoutMs <= 0 {
		return defaultLoadTimeout
	}
	return time.Duration(c.LoadTimeoutMs) * time.Millisecond
}

// Default returns the configuration used when no file or environment is present.
func Default() Config {
	return Config{
		LoadTimeoutMs: int(defaultLoadTimeout / time.Millisecond),
		Browser: BrowserConfig{
			Args:   append([]string(nil), defaultBrowserArgs...),
			Width:  defaultWindowWidth,
			Height: defaultWindowHeight,
		},
		Splash:            SplashFramebuffer,
		FramebufferDevice: defaultFramebufferDevice,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then the process environment. The result is
// normalized but not validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	Normalize(&cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg with any of the supported environment variables
// that lookup reports as set.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvURL); ok {
		cfg.URL = v
	}
	if v, ok := lookup(EnvListenAddr); ok {
		cfg.Listen = v
	}
	if v, ok := lookup(EnvStdioLog); ok {
		cfg.StdioLog = v
	}
	if v, ok := lookup(EnvSplash); ok {
		cfg.Splash = v
	}
	if raw, ok := lookup(EnvDevMode); ok && raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s must be a boolean (got %q): %w", EnvDevMode, raw, err)
		}
		cfg.Dev = parsed
	}
	return nil
}
