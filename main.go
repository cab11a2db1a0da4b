package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rook-computer/snapkiosk/internal/app"
	"github.com/rook-computer/snapkiosk/internal/buttons"
	"github.com/rook-computer/snapkiosk/internal/config"
	"github.com/rook-computer/snapkiosk/internal/host"
	"github.com/rook-computer/snapkiosk/internal/loader"
	"github.com/rook-computer/snapkiosk/internal/render"
	"github.com/rook-computer/snapkiosk/internal/state"
	"github.com/rook-computer/snapkiosk/internal/system"
	"github.com/rook-computer/snapkiosk/internal/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	debug := flag.Bool("debug", false, "enable debug logging to ./snapkiosk-debug.log")
	flag.String("stdio-log", "", "redirect stdout+stderr (including panics) to this file; also configurable via "+config.EnvStdioLog)
	flag.String("listen", "", "status api listen address, empty disables it; also configurable via "+config.EnvListenAddr)
	flag.String("splash", "", "splash mode: framebuffer | console | none; also configurable via "+config.EnvSplash)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		return 2
	}
	applyFlagOverrides(flag.CommandLine, &cfg)
	config.Normalize(&cfg)
	if err := config.Validate(&cfg); err != nil {
		if errors.Is(err, config.ErrMissingURL) {
			fmt.Println("usage: SNAP_URL=https://example.com snapkiosk")
		}
		fmt.Println("config error:", err)
		return 2
	}

	// Best-effort: redirect all stdout/stderr output (including panic stack traces)
	// to a file so crashes are diagnosable even when the console is left in graphics mode.
	if err := system.RedirectStdIO(cfg.StdioLog); err != nil {
		fmt.Println("stdio log redirect error:", err)
	}

	var logger app.Logger = app.NoopLogger{}
	if *debug {
		f, err := os.OpenFile("./snapkiosk-debug.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			defer f.Close()
			logger = app.NewFileLogger(f)
			logger.Infof("main", "debug logging enabled")
		} else {
			fmt.Println("debug log open error:", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req, err := loader.NewLoadRequest(cfg.URL)
	if err != nil {
		fmt.Println("config error:", err)
		return 2
	}
	store := state.NewStore(req.TargetURL)

	var server web.Server = &web.NoopServer{}
	if cfg.Listen != "" {
		s := web.NewHTTPServer(cfg.Listen, store)
		s.DevMode = cfg.Dev
		s.Logger = logger
		server = s
	}

	window := host.NewChromeWindow(cfg.Browser.Width, cfg.Browser.Height, cfg.Browser.Args, logger)
	window.Command = cfg.Browser.Command
	window.ProfileDir = cfg.Browser.ProfileDir
	window.LoadTimeout = cfg.LoadTimeout()
	defer func() { _ = window.Close() }()

	a := app.New(req, store, newRenderer(cfg, logger, *debug), server, window, window)
	a.Logger = logger
	a.TakeConsole = cfg.Splash == config.SplashFramebuffer

	var keys buttons.Buttons = buttons.NewNoopButtons()
	if runtime.GOOS == "linux" {
		keys = buttons.NewExitKey(logger)
	}
	if err := keys.Start(ctx); err != nil {
		logger.Errorf("main", "exit key start error: %v", err)
	}
	defer keys.Stop()
	go func() {
		for ev := range keys.Events() {
			if ev == buttons.Exit {
				a.Exit(nil)
			}
		}
	}()

	err = a.Start(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		fmt.Println("snapkiosk error:", err)
		return 1
	}
}

// applyFlagOverrides copies the flags given on the command line into cfg.
// An explicitly empty flag clears what the file or environment set.
func applyFlagOverrides(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "stdio-log":
			cfg.StdioLog = f.Value.String()
		case "listen":
			cfg.Listen = f.Value.String()
		case "splash":
			cfg.Splash = f.Value.String()
		}
	})
}

func newRenderer(cfg config.Config, logger app.Logger, debug bool) render.Renderer {
	switch cfg.Splash {
	case config.SplashFramebuffer:
		r := render.NewFBRenderer(cfg.FramebufferDevice)
		r.Logger = logger
		r.Debug = debug
		return r
	case config.SplashConsole:
		return render.NewConsoleRenderer(os.Stdout)
	default:
		return &render.NoopRenderer{}
	}
}
