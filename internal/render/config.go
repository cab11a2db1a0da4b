package render

import "image/color"

// Global render configuration for colors and logical canvas.
var (
	Foreground = color.RGBA{R: 0xF5, G: 0xF5, B: 0xF5, A: 0xFF} // #f5f5f5
	Background = color.RGBA{R: 0x10, G: 0x14, B: 0x1C, A: 0xFF} // #10141c
	Muted      = color.RGBA{R: 0x8A, G: 0x94, B: 0xA6, A: 0xFF} // #8a94a6
	Danger     = color.RGBA{R: 0xFF, G: 0x6B, B: 0x6B, A: 0xFF} // #ff6b6b

	// Logical canvas size; scaled to framebuffer.
	CanvasWidth  = 1920
	CanvasHeight = 1080
)

const (
	largeFontSize = 48
	smallFontSize = 30
	fontDPI       = 96
)
