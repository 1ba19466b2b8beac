// Package unoptimize reverses an animation optimizer's work: it expands
// every frame back out to full-screen size with no inter-frame
// dependencies, so each frame can be inspected, edited, or re-optimized
// independently. This is component C8, grounded on gifunopt.c.
package unoptimize

import "github.com/kohler/gogifsicle/gif"

// transparentSentinel marks a screen cell nothing has painted yet -- one
// value beyond the 0-255 colormap index range, hence the uint16 screen
// buffer. Named TRANSPARENT in gifunopt.c.
const transparentSentinel = 256

// Unoptimize rewrites every image in s in place to cover the full logical
// screen, flattening whatever inter-frame disposal chain previously let
// frames be smaller than the screen or depend on their predecessor. With
// simplestDisposal false every frame gets disposal BACKGROUND; with it
// true a frame gets NONE when the next frame adds no new transparency (and
// the last frame always gets NONE), BACKGROUND otherwise.
//
// It requires a single shared colormap (s.Global) and no per-image local
// colormaps -- both preconditions of gifunopt.c's Gif_FullUnoptimize, which
// this mirrors closely: a running "wide" screen buffer one value per pixel
// wider than a byte (to carry the not-yet-painted sentinel alongside every
// real colormap index), composited frame by frame.
func Unoptimize(s *gif.Stream, simplestDisposal bool) bool {
	if len(s.Images) < 1 {
		return true
	}
	for _, img := range s.Images {
		if img.Local != nil {
			return false
		}
	}
	if s.Global == nil {
		return false
	}

	s.CalculateScreenSize(false)
	size := int(s.ScreenWidth) * int(s.ScreenHeight)

	screen := make([]uint16, size)
	background := uint16(transparentSentinel)
	first := s.Images[0]
	if first.Transparent < 0 && int(s.Background) < s.Global.Len() {
		background = uint16(s.Background)
	}
	for i := range screen {
		screen[i] = background
	}

	ok := true
	usedTransparent := make([]bool, len(s.Images))
	for i, img := range s.Images {
		used, success := unoptimizeImage(s, img, screen)
		usedTransparent[i] = used
		if !success {
			ok = false
		}
	}

	if ok {
		if simplestDisposal {
			for i := range s.Images {
				if i == len(s.Images)-1 || noMoreTransparency(s.Images[i+1], s.Images[i]) {
					s.Images[i].Disposal = gif.DisposalNone
				} else {
					s.Images[i].Disposal = gif.DisposalBackground
				}
			}
		} else {
			for i := range s.Images {
				s.Images[i].Disposal = gif.DisposalBackground
			}
		}
	}
	_ = usedTransparent // recorded per frame but not consulted; disposal is decided purely from adjacency, unlike gifunopt.c's disposal-field reuse trick.
	return ok
}

// unoptimizeImage expands one frame to full-screen size, compositing it
// onto screen (a scratch copy, if the frame disposes to PREVIOUS, so the
// persistent screen is untouched for the next frame) and returns whether
// the new full-screen frame needed a transparent color to represent cells
// the composite never painted.
func unoptimizeImage(s *gif.Stream, img *gif.Image, screen []uint16) (usedTransparent, ok bool) {
	size := int(s.ScreenWidth) * int(s.ScreenHeight)
	newData := make([]byte, size)

	working := screen
	if img.Disposal == gif.DisposalPrevious {
		working = append([]uint16(nil), screen...)
	}

	putImageInScreen(s, img, working)
	used, success := createImageData(s, img, working, newData)
	if !success {
		return false, false
	}

	if img.Disposal == gif.DisposalBackground {
		putBackgroundInScreen(s, img, screen)
	}
	// DisposalPrevious: working was a scratch copy, screen is left as-is.
	// DisposalNone/Asis: working == screen, already updated in place.

	img.Left, img.Top = 0, 0
	img.Width, img.Height = s.ScreenWidth, s.ScreenHeight
	img.Pixels = rowsFrom(newData, int(s.ScreenWidth), int(s.ScreenHeight))
	img.Compressed = nil
	img.MinCodeBits = 0
	return used, true
}

func rowsFrom(data []byte, width, height int) [][]byte {
	rows := make([][]byte, height)
	for y := 0; y < height; y++ {
		rows[y] = data[y*width : (y+1)*width]
	}
	return rows
}

// putImageInScreen overlays img's opaque pixels onto screen at its
// position, leaving cells where img is transparent untouched.
func putImageInScreen(s *gif.Stream, img *gif.Image, screen []uint16) {
	w, h := clipToScreen(s, img)
	transparent := img.Transparent
	for y := 0; y < h; y++ {
		rowOff := int(s.ScreenWidth)*(y+int(img.Top)) + int(img.Left)
		line := img.Pixels[y]
		for x := 0; x < w; x++ {
			if int(line[x]) != transparent {
				screen[rowOff+x] = uint16(line[x])
			}
		}
	}
}

// putBackgroundInScreen resets img's rectangle of screen back to the
// stream's background color (or the sentinel, if there is no usable
// background), modeling GIF_DISPOSAL_BACKGROUND for the NEXT frame's
// compositing pass.
func putBackgroundInScreen(s *gif.Stream, img *gif.Image, screen []uint16) {
	w, h := clipToScreen(s, img)

	solid := uint16(transparentSentinel)
	if img.Transparent < 0 && s.Images[0].Transparent < 0 &&
		s.Global != nil && int(s.Background) < s.Global.Len() {
		solid = uint16(s.Background)
	}

	for y := 0; y < h; y++ {
		rowOff := int(s.ScreenWidth)*(y+int(img.Top)) + int(img.Left)
		for x := 0; x < w; x++ {
			screen[rowOff+x] = solid
		}
	}
}

func clipToScreen(s *gif.Stream, img *gif.Image) (w, h int) {
	w, h = int(img.Width), int(img.Height)
	if int(img.Left)+w > int(s.ScreenWidth) {
		w = int(s.ScreenWidth) - int(img.Left)
	}
	if int(img.Top)+h > int(s.ScreenHeight) {
		h = int(s.ScreenHeight) - int(img.Top)
	}
	return w, h
}

// createImageData turns the composited wide screen into a full-screen
// byte-per-pixel frame: every transparentSentinel cell (nothing ever
// painted there) becomes a freshly chosen unused colormap index, growing
// the global colormap to include it if necessary.
func createImageData(s *gif.Stream, img *gif.Image, screen []uint16, newData []byte) (usedTransparent, ok bool) {
	var have [257]bool
	for _, v := range screen {
		have[v] = true
	}

	transparent := -1
	if have[transparentSentinel] {
		for i := 0; i < 256; i++ {
			if !have[i] {
				transparent = i
				break
			}
		}
		if transparent < 0 {
			return false, false
		}
		if transparent >= s.Global.Len() {
			for s.Global.Len() <= transparent {
				s.Global.AddColor(gif.Color{})
			}
		}
	}

	for i, v := range screen {
		if v == transparentSentinel {
			newData[i] = byte(transparent)
			usedTransparent = true
		} else {
			newData[i] = byte(v)
		}
	}

	img.Transparent = transparent
	return usedTransparent, true
}

// noMoreTransparency reports whether every pixel transparent in next is
// also transparent (at the same colormap index) in cur -- the test
// gifunopt.c uses to decide whether cur can keep disposal NONE instead of
// BACKGROUND when reconstructing a simplest-disposal timeline.
func noMoreTransparency(next, cur *gif.Image) bool {
	t1, t2 := next.Transparent, cur.Transparent
	if t1 < 0 {
		return true
	}
	for y := 0; y < int(next.Height) && y < len(cur.Pixels); y++ {
		d1, d2 := next.Pixels[y], cur.Pixels[y]
		for x := 0; x < len(d1) && x < len(d2); x++ {
			if int(d1[x]) == t1 && int(d2[x]) != t2 {
				return false
			}
		}
	}
	return true
}
