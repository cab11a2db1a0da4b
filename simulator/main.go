package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rook-computer/snapkiosk/internal/app"
	"github.com/rook-computer/snapkiosk/internal/host"
	"github.com/rook-computer/snapkiosk/internal/loader"
	"github.com/rook-computer/snapkiosk/internal/render"
	"github.com/rook-computer/snapkiosk/internal/state"
	"github.com/rook-computer/snapkiosk/internal/web"
)

// The simulator runs the kiosk against a local target page that can be made
// to fail, with a console splash and no real browser.
func main() {
	listenAddr := flag.String("listen", "127.0.0.1:8080", "simulated target site listen address")
	statusAddr := flag.String("status-listen", "127.0.0.1:8081", "kiosk status api listen address, empty disables it")
	failNext := flag.Int("fail-next", 3, "number of page loads that fail before the site comes up")
	alwaysFail := flag.Bool("always-fail", false, "keep the site down until cleared via /sim/faults")
	statusCode := flag.Int("status-code", http.StatusServiceUnavailable, "status code for failing page loads")
	flag.Parse()

	processCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	control := NewSimControl(SimFaults{FailNext: *failNext, AlwaysFail: *alwaysFail, StatusCode: *statusCode})

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		fmt.Println("target listen error:", err)
		os.Exit(1)
	}
	target := &http.Server{Handler: control.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := target.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "target serve error:", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = target.Shutdown(ctx)
	}()

	targetURL := "http://" + ln.Addr().String() + "/"
	fmt.Println("snapkiosk simulator target on", targetURL)
	fmt.Println("Faults: http://" + ln.Addr().String() + "/sim/faults")

	req, err := loader.NewLoadRequest(targetURL)
	if err != nil {
		fmt.Println("target url error:", err)
		os.Exit(2)
	}
	store := state.NewStore(req.TargetURL)

	var server web.Server = &web.NoopServer{}
	if *statusAddr != "" {
		s := web.NewHTTPServer(*statusAddr, store)
		s.DevMode = true
		server = s
		fmt.Println("Status API: http://" + *statusAddr + "/api/v1/status")
	}

	a := app.New(req, store, render.NewConsoleRenderer(os.Stdout), server, host.NewProbeHost(2*time.Second, nil), &host.Headless{})
	if err := a.Start(processCtx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Println("simulator error:", err)
		os.Exit(1)
	}

	served, failed := control.counts()
	fmt.Printf("Target served %d page loads, failed %d\n", served, failed)
}
