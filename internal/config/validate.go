package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rook-computer/snapkiosk/internal/loader"
)

// ErrMissingURL is returned when no target URL was configured.
var ErrMissingURL = errors.New(EnvURL + " is not set")

// Normalize trims string fields and fills empty ones with defaults.
func Normalize(cfg *Config) {
	def := Default()

	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Listen = strings.TrimSpace(cfg.Listen)
	cfg.StdioLog = strings.TrimSpace(cfg.StdioLog)
	cfg.Splash = strings.ToLower(strings.TrimSpace(cfg.Splash))
	if cfg.Splash == "" {
		cfg.Splash = def.Splash
	}
	cfg.FramebufferDevice = strings.TrimSpace(cfg.FramebufferDevice)
	if cfg.FramebufferDevice == "" {
		cfg.FramebufferDevice = def.FramebufferDevice
	}
	if cfg.LoadTimeoutMs <= 0 {
		cfg.LoadTimeoutMs = def.LoadTimeoutMs
	}
	cfg.Browser.Command = strings.TrimSpace(cfg.Browser.Command)
	cfg.Browser.ProfileDir = strings.TrimSpace(cfg.Browser.ProfileDir)
	if len(cfg.Browser.Args) == 0 {
		cfg.Browser.Args = def.Browser.Args
	}
	if cfg.Browser.Width <= 0 {
		cfg.Browser.Width = def.Browser.Width
	}
	if cfg.Browser.Height <= 0 {
		cfg.Browser.Height = def.Browser.Height
	}
}

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return ErrMissingURL
	}
	if _, err := loader.NewLoadRequest(cfg.URL); err != nil {
		return fmt.Errorf("%s: %w", EnvURL, err)
	}

	switch cfg.Splash {
	case SplashFramebuffer, SplashConsole, SplashNone:
	default:
		return fmt.Errorf("splash must be one of %s, %s, %s (got %q)", SplashFramebuffer, SplashConsole, SplashNone, cfg.Splash)
	}

	for _, arg := range cfg.Browser.Args {
		if !strings.HasPrefix(arg, "-") {
			return fmt.Errorf("browser.args must be flags (got %q)", arg)
		}
	}
	if cfg.Browser.Width <= 0 || cfg.Browser.Height <= 0 {
		return fmt.Errorf("browser window size must be positive (got %dx%d)", cfg.Browser.Width, cfg.Browser.Height)
	}
	return nil
}
