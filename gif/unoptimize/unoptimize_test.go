package unoptimize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohler/gogifsicle/gif"
	"github.com/kohler/gogifsicle/gif/unoptimize"
)

func rows(width, height int, fill byte) [][]byte {
	buf := make([]byte, width*height)
	for i := range buf {
		buf[i] = fill
	}
	out := make([][]byte, height)
	for y := range out {
		out[y] = buf[y*width : (y+1)*width]
	}
	return out
}

// optimizedTwoFrame builds a small animation in "optimized" form: the
// second frame only covers the quarter of the screen that actually
// changes, and disposes to NONE.
func optimizedTwoFrame() *gif.Stream {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = 4, 4
	s.Global = gif.NewFullColormap(3, 8)
	s.Global.Colors[0] = gif.Color{R: 0, G: 0, B: 0}
	s.Global.Colors[1] = gif.Color{R: 255, G: 0, B: 0}
	s.Global.Colors[2] = gif.Color{R: 0, G: 255, B: 0}
	s.Background = gif.NoBackground

	full := gif.NewImage()
	full.Width, full.Height = 4, 4
	full.Transparent = gif.NoTransparency
	full.Pixels = rows(4, 4, 1)
	s.AddImage(full)

	patch := gif.NewImage()
	patch.Left, patch.Top = 1, 1
	patch.Width, patch.Height = 2, 2
	patch.Transparent = gif.NoTransparency
	patch.Disposal = gif.DisposalNone
	patch.Pixels = rows(2, 2, 2)
	s.AddImage(patch)

	return s
}

func TestUnoptimizeExpandsEveryFrameToFullScreen(t *testing.T) {
	s := optimizedTwoFrame()
	ok := unoptimize.Unoptimize(s, true)
	require.True(t, ok)

	for _, img := range s.Images {
		assert.Equal(t, uint16(0), img.Left)
		assert.Equal(t, uint16(0), img.Top)
		assert.Equal(t, s.ScreenWidth, img.Width)
		assert.Equal(t, s.ScreenHeight, img.Height)
	}

	// The second (full-screen, after unoptimization) frame must still show
	// the patch's color where it was painted, and the first frame's color
	// everywhere the patch didn't cover.
	second := s.Images[1]
	assert.Equal(t, byte(2), second.Pixels[1][1])
	assert.Equal(t, byte(1), second.Pixels[0][0])
}

func TestUnoptimizeRejectsLocalColormaps(t *testing.T) {
	s := optimizedTwoFrame()
	s.Images[1].Local = gif.NewFullColormap(1, 1)
	ok := unoptimize.Unoptimize(s, true)
	assert.False(t, ok, "a per-image local colormap means the stream can't be flattened onto one screen")
}

func TestUnoptimizeRejectsMissingGlobalColormap(t *testing.T) {
	s := optimizedTwoFrame()
	s.Global = nil
	ok := unoptimize.Unoptimize(s, true)
	assert.False(t, ok)
}

func TestUnoptimizeEmptyStreamIsTrivialSuccess(t *testing.T) {
	s := gif.NewStream()
	assert.True(t, unoptimize.Unoptimize(s, true))
}

func TestUnoptimizeAssignsDisposalBackgroundWhenNotSimplest(t *testing.T) {
	s := optimizedTwoFrame()
	ok := unoptimize.Unoptimize(s, false)
	require.True(t, ok)
	for _, img := range s.Images {
		assert.Equal(t, gif.DisposalBackground, img.Disposal)
	}
}
