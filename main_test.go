package main

import (
	"flag"
	"testing"

	"github.com/rook-computer/snapkiosk/internal/config"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("snapkiosk", flag.ContinueOnError)
	fs.String("stdio-log", "", "")
	fs.String("listen", "", "")
	fs.String("splash", "", "")
	return fs
}

func TestApplyFlagOverrides_EmptyFlagClearsEnv(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"--listen="}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := config.Config{Listen: ":8081", Splash: config.SplashConsole}
	applyFlagOverrides(fs, &cfg)

	if cfg.Listen != "" {
		t.Fatalf("Listen = %q, want cleared by --listen=", cfg.Listen)
	}
	if cfg.Splash != config.SplashConsole {
		t.Fatalf("Splash = %q, want untouched when flag not given", cfg.Splash)
	}
}

func TestApplyFlagOverrides_SetFlagWins(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"--splash", "none", "--stdio-log", "/tmp/out.log"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := config.Config{Splash: config.SplashFramebuffer}
	applyFlagOverrides(fs, &cfg)

	if cfg.Splash != config.SplashNone || cfg.StdioLog != "/tmp/out.log" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
