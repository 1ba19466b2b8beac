package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohler/gogifsicle/gif"
	"github.com/kohler/gogifsicle/gif/optimize"
)

func solidFrame(width, height int, value byte, delay uint16) *gif.Image {
	img := gif.NewImage()
	img.Width, img.Height = uint16(width), uint16(height)
	img.Delay = delay
	img.Transparent = gif.NoTransparency
	buf := make([]byte, width*height)
	for i := range buf {
		buf[i] = value
	}
	rows := make([][]byte, height)
	for y := range rows {
		rows[y] = buf[y*width : (y+1)*width]
	}
	img.Pixels = rows
	return img
}

func twoFrameAnimation() *gif.Stream {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = 4, 4
	s.Global = gif.NewFullColormap(2, 2)
	s.Global.Colors[0] = gif.Color{R: 10, G: 10, B: 10}
	s.Global.Colors[1] = gif.Color{R: 200, G: 0, B: 0}

	first := solidFrame(4, 4, 0, 10)
	s.AddImage(first)

	// second frame differs from the first only in its top-left 2x2 corner
	second := solidFrame(4, 4, 0, 10)
	second.Pixels[0][0], second.Pixels[0][1] = 1, 1
	second.Pixels[1][0], second.Pixels[1][1] = 1, 1
	s.AddImage(second)

	return s
}

func TestOptimizeShrinksChangedRegionToBoundingBox(t *testing.T) {
	s := twoFrameAnimation()
	out := optimize.Optimize(s, optimize.Level1)

	require.Len(t, out.Images, 2)
	changed := out.Images[1]
	assert.LessOrEqual(t, int(changed.Width), 4)
	assert.LessOrEqual(t, int(changed.Height), 4)
	assert.True(t, int(changed.Width) <= 2 && int(changed.Height) <= 2,
		"only a 2x2 corner changed between frames, so the rewritten frame should be at most that big, got %dx%d", changed.Width, changed.Height)
	assert.Equal(t, uint16(0), changed.Left)
	assert.Equal(t, uint16(0), changed.Top)
}

func TestOptimizeSharesGlobalColormapWhenColorsFit(t *testing.T) {
	s := twoFrameAnimation()
	out := optimize.Optimize(s, optimize.Level1)
	require.NotNil(t, out.Global)
	for _, img := range out.Images {
		assert.Nil(t, img.Local, "two colors comfortably fit in one shared global colormap")
	}
}

func TestOptimizeLeavesInputStreamUntouched(t *testing.T) {
	s := twoFrameAnimation()
	originalWidth := s.Images[1].Width
	_ = optimize.Optimize(s, optimize.Level1)
	assert.Equal(t, originalWidth, s.Images[1].Width, "Optimize documents that it returns a new stream, not a mutation of s")
}

// manyDistinctColorFrames builds n single-pixel frames, each carrying its
// own one-color local colormap distinct from every other frame's, so the
// animation's pool of distinct required colors exceeds 256 and some frames
// must fall back to a local colormap in the output.
func manyDistinctColorFrames(n int) *gif.Stream {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = 1, 1
	for i := 0; i < n; i++ {
		img := gif.NewImage()
		img.Width, img.Height = 1, 1
		img.Transparent = gif.NoTransparency
		img.Disposal = gif.DisposalNone
		img.Delay = 5
		img.Local = gif.NewFullColormap(1, 1)
		img.Local.Colors[0] = gif.Color{R: byte(i % 256), G: byte(i / 256), B: byte((i * 7) % 256)}
		img.Pixels = [][]byte{{0}}
		s.AddImage(img)
	}
	return s
}

func TestOptimizeFallsBackToLocalColormapWhenColorsDontFit(t *testing.T) {
	const frameCount = 260
	s := manyDistinctColorFrames(frameCount)
	out := optimize.Optimize(s, optimize.Level1)
	require.Len(t, out.Images, frameCount)

	var sawGlobalOnly, sawLocal bool
	for _, img := range out.Images {
		if img.Local == nil {
			sawGlobalOnly = true
		} else {
			sawLocal = true
		}
	}
	assert.True(t, sawGlobalOnly, "most of 260 single-use colors should still fit the 256-entry global map")
	assert.True(t, sawLocal, "some frames' colors must overflow a 256-entry global map and fall back to local")
}

func TestOptimizeDropsDegenerateTransparentFrameUnlessKeepEmpty(t *testing.T) {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = 4, 4
	s.Global = gif.NewFullColormap(2, 2)
	s.Global.Colors[0] = gif.Color{R: 0, G: 0, B: 0}
	s.Global.Colors[1] = gif.Color{R: 255, G: 255, B: 255}

	first := solidFrame(4, 4, 0, 10)
	s.AddImage(first)
	second := solidFrame(4, 4, 0, 10) // identical to first: degenerates to a 1x1 stub
	s.AddImage(second)
	third := solidFrame(4, 4, 1, 10)
	s.AddImage(third)

	out := optimize.Optimize(s, optimize.Level2)
	assert.Len(t, out.Images, 2, "an unobservable degenerate frame should be folded into its neighbor's delay")

	outKept := optimize.Optimize(s, optimize.Level2|optimize.KeepEmpty)
	assert.Len(t, outKept.Images, 3)
}
