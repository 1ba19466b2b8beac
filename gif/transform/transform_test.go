package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohler/gogifsicle/gif"
	"github.com/kohler/gogifsicle/gif/transform"
)

func gridImage(left, top, width, height int, fill byte) *gif.Image {
	img := gif.NewImage()
	img.Left, img.Top = uint16(left), uint16(top)
	img.Width, img.Height = uint16(width), uint16(height)
	img.Transparent = gif.NoTransparency
	rows := make([][]byte, height)
	buf := make([]byte, width*height)
	for i := range buf {
		buf[i] = fill
	}
	for y := range rows {
		rows[y] = buf[y*width : (y+1)*width]
	}
	img.Pixels = rows
	return img
}

func TestCropImageIntersectsRectangle(t *testing.T) {
	img := gridImage(0, 0, 10, 10, 5)
	c := &transform.Crop{X: 2, Y: 3, W: 4, H: 4}
	ok := transform.CropImage(img, c, false)
	require.True(t, ok)
	assert.Equal(t, uint16(2), img.Left)
	assert.Equal(t, uint16(3), img.Top)
	assert.Equal(t, uint16(4), img.Width)
	assert.Equal(t, uint16(4), img.Height)
}

func TestCropImageDropsNonFirstFrameWhenEmpty(t *testing.T) {
	img := gridImage(0, 0, 10, 10, 5)
	c := &transform.Crop{X: 20, Y: 20, W: 4, H: 4}
	ok := transform.CropImage(img, c, false)
	assert.False(t, ok)
	assert.Equal(t, uint16(0), img.Width)
	assert.Equal(t, uint16(0), img.Height)
}

func TestCropImageNeverVanishesFirstFrame(t *testing.T) {
	img := gridImage(0, 0, 10, 10, 9)
	c := &transform.Crop{X: 20, Y: 20, W: 4, H: 4}
	ok := transform.CropImage(img, c, true)
	require.True(t, ok, "the first frame must collapse to a 1x1 stub rather than vanish")
	assert.Equal(t, uint16(1), img.Width)
	assert.Equal(t, uint16(1), img.Height)
	assert.Equal(t, byte(9), img.Pixels[0][0])
	assert.Equal(t, 9, img.Transparent)
}

func TestCropImageTrimsTransparentEdges(t *testing.T) {
	img := gridImage(0, 0, 6, 6, 0)
	img.Transparent = 0
	// paint a 2x2 solid block in the middle, leaving a transparent border
	for y := 2; y < 4; y++ {
		for x := 2; x < 4; x++ {
			img.Pixels[y][x] = 7
		}
	}
	c := &transform.Crop{X: 0, Y: 0, W: 6, H: 6, TransparentEdges: true}
	ok := transform.CropImage(img, c, false)
	require.True(t, ok)
	assert.Equal(t, uint16(2), img.Width)
	assert.Equal(t, uint16(2), img.Height)
	assert.Equal(t, uint16(2), img.Left)
	assert.Equal(t, uint16(2), img.Top)
}

func TestFlipImageHorizontalMirrorsAndRepositions(t *testing.T) {
	img := gridImage(2, 0, 3, 2, 0)
	img.Pixels[0] = []byte{1, 2, 3}
	img.Pixels[1] = []byte{4, 5, 6}

	transform.FlipImage(img, 10, 10, false)
	assert.Equal(t, []byte{3, 2, 1}, img.Pixels[0])
	assert.Equal(t, []byte{6, 5, 4}, img.Pixels[1])
	assert.Equal(t, uint16(10-(2+3)), img.Left)
}

func TestFlipImageVerticalMirrorsAndRepositions(t *testing.T) {
	img := gridImage(0, 1, 2, 3, 0)
	img.Pixels[0] = []byte{1, 1}
	img.Pixels[1] = []byte{2, 2}
	img.Pixels[2] = []byte{3, 3}

	transform.FlipImage(img, 10, 10, true)
	assert.Equal(t, []byte{3, 3}, img.Pixels[0])
	assert.Equal(t, []byte{2, 2}, img.Pixels[1])
	assert.Equal(t, []byte{1, 1}, img.Pixels[2])
	assert.Equal(t, uint16(10-(1+3)), img.Top)
}

func TestRotateImage90SwapsWidthAndHeight(t *testing.T) {
	img := gridImage(1, 2, 3, 2, 0)
	img.Pixels[0] = []byte{1, 2, 3}
	img.Pixels[1] = []byte{4, 5, 6}

	transform.RotateImage(img, 20, 10, transform.Rotate90)
	assert.Equal(t, uint16(2), img.Width)
	assert.Equal(t, uint16(3), img.Height)
	// column x=0 read bottom-to-top becomes the first output row
	assert.Equal(t, []byte{4, 1}, img.Pixels[0])
	assert.Equal(t, []byte{5, 2}, img.Pixels[1])
	assert.Equal(t, []byte{6, 3}, img.Pixels[2])
}

func TestRotateImage270SwapsWidthAndHeight(t *testing.T) {
	img := gridImage(1, 2, 3, 2, 0)
	img.Pixels[0] = []byte{1, 2, 3}
	img.Pixels[1] = []byte{4, 5, 6}

	transform.RotateImage(img, 20, 10, transform.Rotate270)
	assert.Equal(t, uint16(2), img.Width)
	assert.Equal(t, uint16(3), img.Height)
	assert.Equal(t, []byte{3, 6}, img.Pixels[0])
	assert.Equal(t, []byte{2, 5}, img.Pixels[1])
	assert.Equal(t, []byte{1, 4}, img.Pixels[2])
}

func TestScaleImageDoublesDimensions(t *testing.T) {
	img := gridImage(0, 0, 2, 2, 0)
	img.Pixels[0] = []byte{1, 2}
	img.Pixels[1] = []byte{3, 4}

	transform.ScaleImage(img, 2.0, 2.0)
	assert.Equal(t, uint16(4), img.Width)
	assert.Equal(t, uint16(4), img.Height)
	assert.Nil(t, img.Compressed)
	// nearest-neighbor doubling: each source pixel becomes a 2x2 block
	assert.Equal(t, byte(1), img.Pixels[0][0])
	assert.Equal(t, byte(1), img.Pixels[0][1])
	assert.Equal(t, byte(2), img.Pixels[0][2])
	assert.Equal(t, byte(3), img.Pixels[2][0])
	assert.Equal(t, byte(4), img.Pixels[2][2])
}

func TestScaleImageNeverProducesZeroSizedOutput(t *testing.T) {
	img := gridImage(0, 0, 4, 4, 5)
	transform.ScaleImage(img, 0.1, 0.1)
	assert.GreaterOrEqual(t, int(img.Width), 1)
	assert.GreaterOrEqual(t, int(img.Height), 1)
}

func TestResizeStreamScalesEveryImageAndScreen(t *testing.T) {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = 4, 4
	img := gridImage(0, 0, 4, 4, 1)
	s.AddImage(img)

	transform.ResizeStream(s, 8, 8)
	assert.Equal(t, uint16(8), s.ScreenWidth)
	assert.Equal(t, uint16(8), s.ScreenHeight)
	assert.Equal(t, uint16(8), s.Images[0].Width)
	assert.Equal(t, uint16(8), s.Images[0].Height)
}

func TestResizeStreamDerivesMissingDimensionFromAspectRatio(t *testing.T) {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = 10, 5
	s.AddImage(gridImage(0, 0, 10, 5, 1))

	transform.ResizeStream(s, 20, 0)
	assert.Equal(t, uint16(20), s.ScreenWidth)
	assert.Equal(t, uint16(10), s.ScreenHeight)
}

func TestApplyColorChangesByRGB(t *testing.T) {
	cm := gif.NewFullColormap(2, 2)
	cm.Colors[0] = gif.Color{R: 1, G: 2, B: 3}
	cm.Colors[1] = gif.Color{R: 9, G: 9, B: 9}

	changes := []transform.ColorChange{
		{Old: gif.Color{R: 1, G: 2, B: 3}, New: gif.Color{R: 255, G: 255, B: 255}},
	}
	transform.ApplyColorChanges(cm, changes)
	assert.Equal(t, gif.Color{R: 255, G: 255, B: 255}, cm.Colors[0])
	assert.Equal(t, gif.Color{R: 9, G: 9, B: 9}, cm.Colors[1])
}

func TestApplyColorChangesByIndexStopsAtFirstMatch(t *testing.T) {
	cm := gif.NewFullColormap(1, 1)
	cm.Colors[0] = gif.Color{R: 1, G: 1, B: 1}

	changes := []transform.ColorChange{
		{By: true, Index: 0, New: gif.Color{R: 10, G: 10, B: 10}},
		{By: true, Index: 0, New: gif.Color{R: 20, G: 20, B: 20}},
	}
	transform.ApplyColorChanges(cm, changes)
	assert.Equal(t, gif.Color{R: 10, G: 10, B: 10}, cm.Colors[0], "only the first matching change should apply")
}

func TestApplyColorChangesToStreamTouchesGlobalAndEveryLocal(t *testing.T) {
	s := gif.NewStream()
	s.Global = gif.NewFullColormap(1, 1)
	s.Global.Colors[0] = gif.Color{R: 1, G: 1, B: 1}

	img := gif.NewImage()
	img.Local = gif.NewFullColormap(1, 1)
	img.Local.Colors[0] = gif.Color{R: 1, G: 1, B: 1}
	s.AddImage(img)

	changes := []transform.ColorChange{
		{Old: gif.Color{R: 1, G: 1, B: 1}, New: gif.Color{R: 2, G: 2, B: 2}},
	}
	transform.ApplyColorChangesToStream(s, changes)
	assert.Equal(t, gif.Color{R: 2, G: 2, B: 2}, s.Global.Colors[0])
	assert.Equal(t, gif.Color{R: 2, G: 2, B: 2}, img.Local.Colors[0])
}
