package layout

import "image"

// Inset shrinks rect by paddingPx on all sides.
func Inset(rect image.Rectangle, paddingPx int) image.Rectangle {
	if paddingPx <= 0 {
		return rect
	}
	out := image.Rect(rect.Min.X+paddingPx, rect.Min.Y+paddingPx, rect.Max.X-paddingPx, rect.Max.Y-paddingPx)
	return Normalize(out)
}

// Normalize ensures Min is <= Max on both axes.
func Normalize(rect image.Rectangle) image.Rectangle {
	if rect.Min.X > rect.Max.X {
		rect.Min.X, rect.Max.X = rect.Max.X, rect.Min.X
	}
	if rect.Min.Y > rect.Max.Y {
		rect.Min.Y, rect.Max.Y = rect.Max.Y, rect.Min.Y
	}
	return rect
}

// SplitHorizontal splits rect into top and bottom parts.
// topHeightPx is clamped to [0, rect.Dy()].
func SplitHorizontal(rect image.Rectangle, topHeightPx int) (top image.Rectangle, bottom image.Rectangle) {
	rect = Normalize(rect)
	height := rect.Dy()
	if topHeightPx < 0 {
		topHeightPx = 0
	}
	if topHeightPx > height {
		topHeightPx = height
	}
	top = image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+topHeightPx)
	bottom = image.Rect(rect.Min.X, rect.Min.Y+topHeightPx, rect.Max.X, rect.Max.Y)
	return top, bottom
}

// CenterSquare returns the largest square that fits into rect, centred on both axes.
func CenterSquare(rect image.Rectangle) image.Rectangle {
	rect = Normalize(rect)
	size := rect.Dx()
	if rect.Dy() < size {
		size = rect.Dy()
	}
	x := rect.Min.X + (rect.Dx()-size)/2
	y := rect.Min.Y + (rect.Dy()-size)/2
	return image.Rect(x, y, x+size, y+size)
}

// Stack returns the top edge of each of n rows of rowHeightPx, with gapPx
// between rows, centred vertically in rect.
func Stack(rect image.Rectangle, n, rowHeightPx, gapPx int) []int {
	if n <= 0 {
		return nil
	}
	rect = Normalize(rect)
	total := n*rowHeightPx + (n-1)*gapPx
	y := rect.Min.Y + (rect.Dy()-total)/2
	if y < rect.Min.Y {
		y = rect.Min.Y
	}
	tops := make([]int, n)
	for i := range tops {
		tops[i] = y
		y += rowHeightPx + gapPx
	}
	return tops
}
