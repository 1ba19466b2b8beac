package gif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColormapAddAndFind(t *testing.T) {
	cm := NewColormap(8)
	assert.Equal(t, 0, cm.Len())

	red := Color{R: 200, G: 10, B: 10}
	idx := cm.AddColor(red)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, cm.Len())

	found := cm.FindColor(red, -1)
	assert.Equal(t, 0, found)

	assert.Equal(t, -1, cm.FindColor(Color{R: 1, G: 1, B: 1}, -1))
}

func TestColormapAddColorStopsAtMaxSize(t *testing.T) {
	cm := NewColormap(MaxColormapSize)
	for i := 0; i < MaxColormapSize; i++ {
		idx := cm.AddColor(Color{R: byte(i)})
		require.Equal(t, i, idx)
	}
	assert.Equal(t, -1, cm.AddColor(Color{R: 1}), "a full colormap must refuse a 257th entry")
}

func TestColormapUnmarkResetsHasPixelKeepsPixel(t *testing.T) {
	cm := NewFullColormap(4, 4)
	cm.Colors[1].HasPixel = 1
	cm.Colors[2].Pixel = 99
	cm.Unmark()
	for _, c := range cm.Colors {
		assert.Zero(t, c.HasPixel)
	}
	assert.Equal(t, uint32(99), cm.Colors[2].Pixel, "Unmark must leave the Pixel cache alone")
}

func TestColormapCopyIsDeep(t *testing.T) {
	cm := NewFullColormap(2, 2)
	cm.Colors[0] = Color{R: 1, G: 2, B: 3}
	cp := cm.Copy()
	cp.Colors[0].R = 250
	assert.Equal(t, byte(1), cm.Colors[0].R, "mutating the copy must not affect the original")
}

func TestColormapBitDepthAndPaddedSize(t *testing.T) {
	cm := NewFullColormap(3, 3)
	assert.Equal(t, 1, cm.BitDepth()) // padded to 4 entries: packed size field 1 (2^(1+1))
	assert.Equal(t, 4, cm.PaddedSize())

	cm2 := NewFullColormap(256, 256)
	assert.Equal(t, 7, cm2.BitDepth())
	assert.Equal(t, 256, cm2.PaddedSize())
}

func TestColorEq(t *testing.T) {
	a := Color{R: 1, G: 2, B: 3, HasPixel: 1}
	b := Color{R: 1, G: 2, B: 3, HasPixel: 0}
	assert.True(t, ColorEq(a, b), "ColorEq compares RGB only, not the scratch fields")
	assert.False(t, ColorEq(a, Color{R: 9, G: 2, B: 3}))
}

func TestCommentMergeAppends(t *testing.T) {
	c := NewComment()
	c.Add([]byte("hello"))
	other := NewComment()
	other.Add([]byte("world"))
	c.Merge(other)
	require.Len(t, c.Strs, 2)
	assert.Equal(t, "world", string(c.Strs[1]))
}

func TestCommentCopyIsDeep(t *testing.T) {
	c := NewComment()
	c.Add([]byte("original"))
	cp := c.Copy()
	cp.Strs[0][0] = 'X'
	assert.Equal(t, "original", string(c.Strs[0]))
}
