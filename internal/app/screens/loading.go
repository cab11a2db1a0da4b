package screens

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/rook-computer/snapkiosk/internal/render"
	"github.com/rook-computer/snapkiosk/internal/render/layout"
	"github.com/rook-computer/snapkiosk/internal/state"
)

type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

const (
	screenPadding = 80
	qrShare       = 0.45
	qrSizePx      = 512
	lineGap       = 24
	maxURLChars   = 64
)

// LoadingScreen is shown while the page is being loaded. It shows the
// target as a QR code and text, the current attempt, and the retry countdown.
type LoadingScreen struct {
	Logger Logger

	now func() time.Time

	mu    sync.Mutex
	qrURL string
	qr    image.Image
}

func NewLoadingScreen(logger Logger) *LoadingScreen {
	return &LoadingScreen{Logger: logger, now: time.Now}
}

func (s *LoadingScreen) Start(ctx context.Context) error { return nil }
func (s *LoadingScreen) Stop() error                     { return nil }

// Lines returns the text content of the screen for st at now.
func (s *LoadingScreen) Lines(st state.State, now time.Time) []string {
	lines := []string{"connecting to " + shorten(st.URL, maxURLChars)}
	switch st.Phase {
	case state.BOOTING:
		lines = append(lines, "starting")
	case state.ATTEMPTING:
		lines = append(lines, fmt.Sprintf("attempt #%d", st.Attempt))
	case state.WAITING_TO_RETRY:
		lines = append(lines, fmt.Sprintf("attempt #%d", st.Attempt))
		if st.LastError != "" {
			lines = append(lines, "load failed: "+shorten(st.LastError, maxURLChars))
		}
		lines = append(lines, fmt.Sprintf("retrying in %ds", int(st.RetryIn(now)/time.Second)))
	case state.SUCCEEDED:
		lines = append(lines, "loaded")
	case state.STOPPED:
		lines = append(lines, "stopped")
	}
	return lines
}

func (s *LoadingScreen) Draw(drawer render.Drawer, st state.State) {
	width, height := drawer.Size()
	area := layout.Inset(image.Rect(0, 0, width, height), screenPadding)
	qrArea, textArea := layout.SplitHorizontal(area, int(float64(area.Dy())*qrShare))

	drawer.FillBackground()
	if qr := s.qrFor(st.URL); qr != nil {
		drawer.DrawImageInRect(qr, layout.CenterSquare(qrArea))
	}

	lines := s.Lines(st, s.clock())
	styles := make([]render.TextStyle, len(lines))
	rowHeight := 0
	for i, line := range lines {
		styles[i] = lineStyle(i, line)
		if m := drawer.MeasureText(line, styles[i]); m.Height > rowHeight {
			rowHeight = m.Height
		}
	}
	centerX := textArea.Min.X + textArea.Dx()/2
	for i, top := range layout.Stack(textArea, len(lines), rowHeight, lineGap) {
		drawer.DrawText(lines[i], centerX, top, styles[i])
	}
}

func lineStyle(index int, line string) render.TextStyle {
	style := render.TextStyle{Color: render.Foreground, Align: render.TextAlignCenter}
	if index == 0 {
		return style
	}
	style.Size = render.TextSizeSmall
	style.Color = render.Muted
	if strings.HasPrefix(line, "load failed") {
		style.Color = render.Danger
	}
	return style
}

// qrFor returns the QR code for url, generating it once per URL.
func (s *LoadingScreen) qrFor(url string) image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url == s.qrURL && s.qr != nil {
		return s.qr
	}
	img, err := render.GenerateQRCodeImage(url, qrSizePx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Errorf("screen", "qr code for %s failed: %v", url, err)
		}
		return nil
	}
	s.qrURL = url
	s.qr = img
	return img
}

func (s *LoadingScreen) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func shorten(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
