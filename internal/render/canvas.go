package render

import (
	"image"
	"image/draw"

	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Canvas is the logical drawing surface screens paint into. It implements Drawer.
type Canvas struct {
	img   *image.RGBA
	large font.Face
	small font.Face
}

// NewCanvas allocates the logical canvas and loads the embedded Go font.
// Font failures fall back to basicfont and are reported through logger.
func NewCanvas(logger Logger) *Canvas {
	c := &Canvas{img: image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))}

	fnt, err := opentype.Parse(goregular.TTF)
	if err == nil {
		c.large, err = opentype.NewFace(fnt, &opentype.FaceOptions{Size: largeFontSize, DPI: fontDPI, Hinting: font.HintingFull})
	}
	if err != nil {
		c.large = basicfont.Face7x13
		if logger != nil {
			logger.Errorf("fb", "opentype face failed, using basicfont: %v", err)
		}
	}

	// Secondary lines go through freetype's rasterizer.
	if tt, terr := truetype.Parse(goregular.TTF); terr != nil {
		c.small = basicfont.Face7x13
		if logger != nil {
			logger.Errorf("fb", "truetype parse failed, using basicfont: %v", terr)
		}
	} else {
		c.small = truetype.NewFace(tt, &truetype.Options{Size: smallFontSize, DPI: fontDPI, Hinting: font.HintingFull})
	}
	return c
}

func (c *Canvas) Image() *image.RGBA { return c.img }

func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Canvas) FillBackground() {
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{C: Background}, image.Point{}, draw.Src)
}

func (c *Canvas) face(size TextSize) font.Face {
	if size == TextSizeSmall && c.small != nil {
		return c.small
	}
	if c.large != nil {
		return c.large
	}
	return basicfont.Face7x13
}

func (c *Canvas) MeasureText(text string, style TextStyle) TextMetrics {
	face := c.face(style.Size)
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()
	return TextMetrics{
		Width:      font.MeasureString(face, text).Ceil(),
		Height:     ascent + descent,
		Ascent:     ascent,
		Descent:    descent,
		LineHeight: metrics.Height.Ceil(),
	}
}

// DrawText draws text with its top edge at y.
func (c *Canvas) DrawText(text string, x, y int, style TextStyle) TextMetrics {
	m := c.MeasureText(text, style)
	switch style.Align {
	case TextAlignCenter:
		x -= m.Width / 2
	case TextAlignRight:
		x -= m.Width
	}
	fg := style.Color
	if fg == nil {
		fg = Foreground
	}
	drawer := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(fg),
		Face: c.face(style.Size),
		Dot:  fixed.P(x, y+m.Ascent),
	}
	drawer.DrawString(text)
	return m
}

// DrawImageInRect scales img to fit rect, preserving aspect ratio, centred.
func (c *Canvas) DrawImageInRect(img image.Image, rect image.Rectangle) {
	if img == nil || rect.Empty() {
		return
	}
	src := img.Bounds()
	if src.Dx() == 0 || src.Dy() == 0 {
		return
	}
	scale := float64(rect.Dx()) / float64(src.Dx())
	if s := float64(rect.Dy()) / float64(src.Dy()); s < scale {
		scale = s
	}
	w := int(float64(src.Dx()) * scale)
	h := int(float64(src.Dy()) * scale)
	x := rect.Min.X + (rect.Dx()-w)/2
	y := rect.Min.Y + (rect.Dy()-h)/2
	dst := image.Rect(x, y, x+w, y+h)
	xdraw.NearestNeighbor.Scale(c.img, dst, img, src, xdraw.Over, nil)
}
