// Package transform implements the per-image geometry and colormap
// operations the command pipeline applies before re-encoding: crop, flip,
// rotate, scale, and colormap color substitution. This is component C10,
// grounded on xform.c.
package transform

import "github.com/kohler/gogifsicle/gif"

// Crop describes the rectangle to keep, in screen coordinates, and
// whether to additionally trim any border rows/columns that are entirely
// the image's transparent color. LeftOffset/TopOffset let a caller that
// already shrank the logical screen (crop.left/crop.top reset to 0)
// rebase each image's position accordingly, mirroring Gt_Crop.
type Crop struct {
	X, Y, W, H               int
	TransparentEdges         bool
	LeftOffset, TopOffset    int
}

// CropImage intersects img's rectangle with c, optionally trimming
// transparent border rows/columns first, and updates img in place. Returns
// false if the result is empty (the frame should be dropped), except for
// the first frame of a stream, which is never allowed to vanish -- it
// collapses to a single transparent pixel instead, mirroring crop_image's
// first_image special case.
func CropImage(img *gif.Image, c *Crop, firstImage bool) bool {
	x := c.X - int(img.Left)
	y := c.Y - int(img.Top)
	w, h := c.W, c.H

	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > int(img.Width) {
		w = int(img.Width) - x
	}
	if y+h > int(img.Height) {
		h = int(img.Height) - y
	}

	if w > 0 && h > 0 && c.TransparentEdges && img.Transparent >= 0 {
		x, y, w, h = trimTransparentEdges(img, x, y, w, h)
	}

	switch {
	case w > 0 && h > 0:
		rows := make([][]byte, h)
		for j := 0; j < h; j++ {
			rows[j] = img.Pixels[y+j][x : x+w]
		}
		img.Pixels = rows
		img.Left += uint16(x - c.LeftOffset)
		img.Top += uint16(y - c.TopOffset)
		img.Width, img.Height = uint16(w), uint16(h)
		return true

	case firstImage:
		px := img.Pixels[0][0]
		img.Pixels = [][]byte{{px}}
		img.Transparent = int(px)
		img.Width, img.Height = 1, 1
		return true

	default:
		img.Pixels = nil
		img.Width, img.Height = 0, 0
		return false
	}
}

func trimTransparentEdges(img *gif.Image, x, y, w, h int) (int, int, int, int) {
	t := byte(img.Transparent)
	rowHasColor := func(row int, lo, hi int) bool {
		for j := lo; j < hi; j++ {
			if img.Pixels[row][j] != t {
				return true
			}
		}
		return false
	}

	for w > 0 {
		found := false
		for j := y; j < y+h; j++ {
			if img.Pixels[j][x] != t {
				found = true
				break
			}
		}
		if found {
			break
		}
		x++
		w--
	}
	for h > 0 {
		if rowHasColor(y, x, x+w) {
			break
		}
		y++
		h--
	}
	for w > 0 {
		found := false
		for j := y; j < y+h; j++ {
			if img.Pixels[j][x+w-1] != t {
				found = true
				break
			}
		}
		if found {
			break
		}
		w--
	}
	for h > 0 {
		if rowHasColor(y+h-1, x, x+w) {
			break
		}
		h--
	}
	return x, y, w, h
}

// FlipImage mirrors img's pixels horizontally (is_vert false) or
// vertically (is_vert true) in place, repositioning it within a screen of
// the given size so the flipped frame still lands in the mirror-image
// position. Grounded on xform.c's flip_image.
func FlipImage(img *gif.Image, screenWidth, screenHeight int, vertical bool) {
	if !vertical {
		width := int(img.Width)
		for _, row := range img.Pixels {
			for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
				row[l], row[r] = row[r], row[l]
			}
		}
		img.Left = uint16(screenWidth - (int(img.Left) + width))
		return
	}

	height := len(img.Pixels)
	flipped := make([][]byte, height)
	for y := range flipped {
		flipped[y] = img.Pixels[height-y-1]
	}
	img.Pixels = flipped
	img.Top = uint16(screenHeight - (int(img.Top) + height))
}

// Rotation selects a 90-degree rotation direction for RotateImage.
type Rotation int

const (
	Rotate90 Rotation = 1
	Rotate270 Rotation = 3
)

// RotateImage rotates img's pixels 90 or 270 degrees in place, swapping
// its width and height and repositioning it within a screen of the given
// size. Grounded on xform.c's rotate_image.
func RotateImage(img *gif.Image, screenWidth, screenHeight int, rotation Rotation) {
	width, height := int(img.Width), int(img.Height)
	newData := make([]byte, width*height)
	pos := 0

	if rotation == Rotate90 {
		for x := 0; x < width; x++ {
			for y := height - 1; y >= 0; y-- {
				newData[pos] = img.Pixels[y][x]
				pos++
			}
		}
		left := int(img.Left)
		img.Left = uint16(screenHeight - (int(img.Top) + height))
		img.Top = uint16(left)
	} else {
		for x := width - 1; x >= 0; x-- {
			for y := 0; y < height; y++ {
				newData[pos] = img.Pixels[y][x]
				pos++
			}
		}
		top := int(img.Top)
		img.Top = uint16(screenWidth - (int(img.Left) + width))
		img.Left = uint16(top)
	}

	img.Width, img.Height = uint16(height), uint16(width)
	rows := make([][]byte, width)
	for y := range rows {
		rows[y] = newData[y*height : (y+1)*height]
	}
	img.Pixels = rows
}

// scaleShift is the fractional-bit count of xform.c's SCALE_FACTOR: scale
// steps are Q22.10 fixed-point values,
// used so frame edges computed from the whole-stream scale factor are
// consistent across overlapping subimages instead of drifting from
// independently-rounded per-frame multiplications.
const scaleShift = 10

func scaleCoord(step, v int) int { return (step * v) >> scaleShift }

// ScaleImage resizes img's pixel rectangle by the given X/Y factors,
// recomputing its edges from the whole image's scaled left/top/right/
// bottom (never by directly multiplying width/height) to keep overlapping
// subimages of an animated stream in registration. Grounded on xform.c's
// scale_image, using nearest-neighbor resampling exactly as the original
// does (a box-style scanline fill, not bilinear).
func ScaleImage(img *gif.Image, xfactor, yfactor float64) {
	step := func(f float64) int { return int(float64(1<<scaleShift)*f + 0.5) }
	xstep, ystep := step(xfactor), step(yfactor)

	newLeft := scaleCoord(xstep, int(img.Left))
	newTop := scaleCoord(ystep, int(img.Top))
	newRight := scaleCoord(xstep, int(img.Left)+int(img.Width))
	newBottom := scaleCoord(ystep, int(img.Top)+int(img.Height))

	newWidth := newRight - newLeft
	newHeight := newBottom - newTop
	if newWidth <= 0 {
		newWidth = 1
		newRight = newLeft + 1
	}
	if newHeight <= 0 {
		newHeight = 1
		newBottom = newTop + 1
	}

	newData := make([]byte, newWidth*newHeight)
	newY := newTop
	scaledNewY := ystep * int(img.Top)

	for j := 0; j < int(img.Height); j++ {
		inLine := img.Pixels[j]

		scaledNewY += ystep
		if j == int(img.Height)-1 {
			scaledNewY = newBottom << scaleShift
		}
		if scaledNewY < (newY+1)<<scaleShift {
			continue
		}
		yDelta := (scaledNewY - newY<<scaleShift) >> scaleShift

		newX := newLeft
		scaledNewX := xstep * int(img.Left)
		outBase := (newY-newTop)*newWidth + (newX - newLeft)

		for i := 0; i < int(img.Width); i++ {
			scaledNewX += xstep
			if i == int(img.Width)-1 {
				scaledNewX = newRight << scaleShift
			}
			xDelta := (scaledNewX - newX<<scaleShift) >> scaleShift

			for ; xDelta > 0; newX, xDelta = newX+1, xDelta-1 {
				for yinc := 0; yinc < yDelta; yinc++ {
					newData[outBase+yinc*newWidth] = inLine[i]
				}
				outBase++
			}
		}

		newY += yDelta
	}

	img.Width, img.Height = uint16(newWidth), uint16(newHeight)
	img.Left, img.Top = uint16(newLeft), uint16(newTop)
	img.Compressed = nil
	rows := make([][]byte, newHeight)
	for y := range rows {
		rows[y] = newData[y*newWidth : (y+1)*newWidth]
	}
	img.Pixels = rows
}

// ResizeStream scales every image in s so the whole animation's screen
// becomes newWidth x newHeight; a non-positive dimension is derived from
// the other to preserve the aspect ratio. Grounded on xform.c's
// resize_stream.
func ResizeStream(s *gif.Stream, newWidth, newHeight int) {
	s.CalculateScreenSize(false)
	if newWidth <= 0 {
		newWidth = int(float64(s.ScreenWidth) / float64(s.ScreenHeight) * float64(newHeight))
	}
	if newHeight <= 0 {
		newHeight = int(float64(s.ScreenHeight) / float64(s.ScreenWidth) * float64(newWidth))
	}

	xfactor := float64(newWidth) / float64(s.ScreenWidth)
	yfactor := float64(newHeight) / float64(s.ScreenHeight)
	for _, img := range s.Images {
		ScaleImage(img, xfactor, yfactor)
	}
	s.ScreenWidth, s.ScreenHeight = uint16(newWidth), uint16(newHeight)
}

// ColorChange replaces every colormap entry equal to Old with New; if Old
// has no pixel value set (By is false) the match is by RGB, otherwise by
// index.
type ColorChange struct {
	Old, New gif.Color
	By       bool
	Index    int
}

// ApplyColorChanges runs every change in order against cm, applying only
// the first matching change per entry (matching color_change_transformer's
// "ignore remaining color changes" once one has matched).
func ApplyColorChanges(cm *gif.Colormap, changes []ColorChange) {
	if cm == nil {
		return
	}
	for i := range cm.Colors {
		for _, ch := range changes {
			var have bool
			if ch.By {
				have = ch.Index == i
			} else {
				have = gif.ColorEq(cm.Colors[i], ch.Old)
			}
			if have {
				cm.Colors[i] = ch.New
				break
			}
		}
	}
}

// ApplyColorChangesToStream runs ApplyColorChanges against a stream's
// global colormap and every image's local colormap, matching
// apply_color_transforms's traversal (a color transform always touches
// every colormap in the stream, not just the ones a particular frame
// uses).
func ApplyColorChangesToStream(s *gif.Stream, changes []ColorChange) {
	ApplyColorChanges(s.Global, changes)
	for _, img := range s.Images {
		ApplyColorChanges(img.Local, changes)
	}
}
