package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rook-computer/snapkiosk/internal/state"
)

// ConsoleRenderer prints text screens to a terminal instead of a framebuffer.
// It only writes when the rendered text changes.
type ConsoleRenderer struct {
	Out    io.Writer
	ShowQR bool

	mu      sync.Mutex
	current Screen
	last    string
	qrShown bool
	now     func() time.Time

	title lipgloss.Style
	body  lipgloss.Style
	fail  lipgloss.Style
}

func NewConsoleRenderer(out io.Writer) *ConsoleRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleRenderer{
		Out:    out,
		ShowQR: true,
		now:    time.Now,
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8ab4f8")),
		body:   lipgloss.NewStyle().Foreground(lipgloss.Color("#c9d1d9")),
		fail:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6b6b")),
	}
}

func (r *ConsoleRenderer) Start(ctx context.Context) error { return nil }
func (r *ConsoleRenderer) Stop() error                     { return nil }

func (r *ConsoleRenderer) SetScreen(screen Screen) {
	r.mu.Lock()
	r.current = screen
	r.last = ""
	r.mu.Unlock()
}

func (r *ConsoleRenderer) RunLoop(ctx context.Context, store *state.Store) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RedrawWithState(store.Snapshot())
		}
	}
}

func (r *ConsoleRenderer) RedrawWithState(snap state.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	textScreen, ok := r.current.(TextScreen)
	if !ok {
		return
	}
	if r.ShowQR && !r.qrShown && snap.URL != "" {
		if qr, err := GenerateQRCodeText(snap.URL); err == nil {
			_, _ = io.WriteString(r.Out, qr)
		}
		r.qrShown = true
	}

	lines := textScreen.Lines(snap, r.now())
	text := strings.Join(lines, "\n")
	if text == r.last {
		return
	}
	r.last = text
	_, _ = fmt.Fprintln(r.Out, r.style(lines))
}

func (r *ConsoleRenderer) style(lines []string) string {
	styled := make([]string, len(lines))
	for i, line := range lines {
		switch {
		case i == 0:
			styled[i] = r.title.Render(line)
		case strings.HasPrefix(line, "load failed"):
			styled[i] = r.fail.Render(line)
		default:
			styled[i] = r.body.Render(line)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, styled...)
}
