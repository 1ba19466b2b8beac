package gif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboardImage(width, height int, a, b byte) *Image {
	img := NewImage()
	img.Width, img.Height = uint16(width), uint16(height)
	img.Delay = 25
	img.Disposal = DisposalNone
	rows := make([][]byte, height)
	buf := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := a
			if (x+y)%2 == 1 {
				v = b
			}
			buf[y*width+x] = v
		}
		rows[y] = buf[y*width : (y+1)*width]
	}
	img.Pixels = rows
	return img
}

func twoFrameStream() *Stream {
	s := NewStream()
	s.ScreenWidth, s.ScreenHeight = 10, 8
	s.Global = NewFullColormap(4, 4)
	s.Global.Colors[0] = Color{R: 0, G: 0, B: 0}
	s.Global.Colors[1] = Color{R: 255, G: 255, B: 255}
	s.Global.Colors[2] = Color{R: 255, G: 0, B: 0}
	s.Global.Colors[3] = Color{R: 0, G: 255, B: 0}
	s.LoopCount = 0

	img1 := checkerboardImage(10, 8, 0, 1)
	img2 := checkerboardImage(10, 8, 1, 0)
	img2.Transparent = 2
	s.AddImage(img1)
	s.AddImage(img2)
	return s
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	s := twoFrameStream()
	buf := NewByteBuffer()
	errCount := Write(s, buf, 0)
	require.Zero(t, errCount)

	got, err := Read(NewRecordSource(buf.Bytes()), ReadUncompressed, nil)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)

	assert.Equal(t, s.ScreenWidth, got.ScreenWidth)
	assert.Equal(t, s.ScreenHeight, got.ScreenHeight)
	assert.Equal(t, int32(0), got.LoopCount)
	require.NotNil(t, got.Global)
	assert.Equal(t, 4, got.Global.Len())
	assert.Equal(t, s.Global.Colors[2], got.Global.Colors[2])

	for y := 0; y < 8; y++ {
		assert.Equal(t, s.Images[0].Pixels[y], got.Images[0].Pixels[y])
	}
	assert.Equal(t, 2, got.Images[1].Transparent)
}

func TestWriteThenReadPreservesCompressedPassThrough(t *testing.T) {
	s := twoFrameStream()
	buf := NewByteBuffer()
	Write(s, buf, 0)

	got, err := Read(NewRecordSource(buf.Bytes()), ReadCompressed, nil)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.NotEmpty(t, got.Images[0].Compressed)
	assert.Nil(t, got.Images[0].Pixels, "ReadCompressed alone should not decode pixels")
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(NewRecordSource([]byte("NOTAGIF...")), ReadUncompressed, nil)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestReadReportsDiagnosticsForUnknownBlock(t *testing.T) {
	s := twoFrameStream()
	buf := NewByteBuffer()
	Write(s, buf, 0)
	data := buf.Bytes()

	// Splice an unrecognized top-level block byte in place of the trailer,
	// which the reader must report (once) rather than crash on.
	data[len(data)-1] = 0x10

	var diags []Diagnostic
	_, err := Read(NewRecordSource(data), ReadUncompressed, func(d Diagnostic) {
		diags = append(diags, d)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, diags)
}

func TestCalculateScreenSizeDerivesFromImages(t *testing.T) {
	s := NewStream()
	img := NewImage()
	img.Left, img.Top, img.Width, img.Height = 5, 5, 10, 10
	s.AddImage(img)
	s.CalculateScreenSize(false)
	assert.Equal(t, uint16(15), s.ScreenWidth)
	assert.Equal(t, uint16(15), s.ScreenHeight)
}

func TestImageCopyIsIndependent(t *testing.T) {
	img := checkerboardImage(4, 4, 0, 1)
	cp := img.Copy()
	cp.Pixels[0][0] = 9
	assert.NotEqual(t, img.Pixels[0][0], cp.Pixels[0][0])
}
