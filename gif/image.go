package gif

import "github.com/pkg/errors"

// Disposal is the decoder instruction for preparing the canvas before the
// next frame is painted.
type Disposal uint8

const (
	DisposalNone       Disposal = 0
	DisposalAsis       Disposal = 1
	DisposalBackground Disposal = 2
	DisposalPrevious   Disposal = 3
)

// NoTransparency is the sentinel Image.Transparent value meaning "this
// image has no transparent color".
const NoTransparency = -1

// ErrTooManyColors is returned when a frame needs more than 256 distinct
// colors (with transparency) to represent, a hard failure per §7.
var ErrTooManyColors = errors.New("gif: too many colors for one frame")

// Image is one frame: position, size, disposal, and up to two
// representations of its pixels. Releasing one representation never
// affects the other; if both are present they must decode to the same
// pixels (enforced by callers, not by this type).
type Image struct {
	Left, Top, Width, Height uint16
	Disposal                 Disposal
	Interlace                bool
	UserInput                bool
	Delay                    uint16 // hundredths of a second

	// Transparent is a colormap index, or NoTransparency.
	Transparent int
	Local       *Colormap

	Identifier string
	Comment    *Comment
	Extensions []*Extension

	// Pixels holds one row per Height entry, each Width bytes of colormap
	// indices. Nil if no uncompressed representation is held.
	Pixels [][]byte

	// Compressed holds a preserved LZW code stream exactly as it appears on
	// disk: the min-code-bits byte, then length-prefixed sub-blocks, then
	// the zero-length terminator. Keeping the original framing (rather than
	// stripping it) lets a pass-through write blast these bytes out
	// unchanged, and lets ConstRecord reads borrow them with no copy at
	// all. MinCodeBits duplicates Compressed[0] for convenient access.
	Compressed       []byte
	MinCodeBits      int
	CompressedErrors uint32
}

// NewImage returns an empty image with no transparency and ASIS disposal.
func NewImage() *Image {
	return &Image{Disposal: DisposalAsis, Transparent: NoTransparency, Comment: NewComment()}
}

// EffectiveColormap returns the image's local colormap if it has one, else
// the global colormap of the stream it belongs to.
func (img *Image) EffectiveColormap(s *Stream) *Colormap {
	if img.Local != nil {
		return img.Local
	}
	if s != nil {
		return s.Global
	}
	return nil
}

// ReleaseUncompressed drops the uncompressed pixel matrix.
func (img *Image) ReleaseUncompressed() {
	img.Pixels = nil
}

// ReleaseCompressed drops the preserved LZW code stream.
func (img *Image) ReleaseCompressed() {
	img.Compressed = nil
	img.MinCodeBits = 0
}

// CreateUncompressed allocates a Height x Width pixel matrix, replacing any
// existing one.
func (img *Image) CreateUncompressed() {
	rows := make([][]byte, img.Height)
	buf := make([]byte, int(img.Width)*int(img.Height))
	for y := range rows {
		rows[y] = buf[int(y)*int(img.Width) : int(y+1)*int(img.Width)]
	}
	img.Pixels = rows
}

// ColorBound returns the number of distinct colormap entries this image's
// pixels (plus its transparent index, if any) could possibly need -- an
// upper bound used before a full scan, mirroring Gif_ImageColorBound.
func (img *Image) ColorBound() int {
	cm := img.Local
	n := 0
	if cm != nil {
		n = cm.Len()
	} else {
		n = MaxColormapSize
	}
	if img.Transparent >= n {
		n = img.Transparent + 1
	}
	return n
}

// Copy returns a detached deep copy of the image (extensions are copied but
// not attached to any stream).
func (img *Image) Copy() *Image {
	out := *img
	out.Local = img.Local.Copy()
	out.Comment = img.Comment.Copy()
	out.Extensions = nil
	for _, e := range img.Extensions {
		out.Extensions = append(out.Extensions, e.Copy())
	}
	if img.Pixels != nil {
		out.Pixels = make([][]byte, len(img.Pixels))
		for i, row := range img.Pixels {
			out.Pixels[i] = append([]byte(nil), row...)
		}
	}
	out.Compressed = append([]byte(nil), img.Compressed...)
	return &out
}

// Clip clips the image's rectangle to the given bounds in place, returning
// an error if the requested rectangle is entirely outside the image.
func (img *Image) Clip(left, top, width, height int) error {
	il, it := int(img.Left), int(img.Top)
	iw, ih := int(img.Width), int(img.Height)
	nl := left
	if nl < il {
		nl = il
	}
	nt := top
	if nt < it {
		nt = it
	}
	nr := left + width
	if nr > il+iw {
		nr = il + iw
	}
	nb := top + height
	if nb > it+ih {
		nb = it + ih
	}
	if nr <= nl || nb <= nt {
		return errors.New("gif: crop rectangle outside image")
	}
	if img.Pixels != nil {
		rows := make([][]byte, nb-nt)
		for y := nt; y < nb; y++ {
			row := img.Pixels[y-it]
			rows[y-nt] = append([]byte(nil), row[nl-il:nr-il]...)
		}
		img.Pixels = rows
	}
	img.Left, img.Top = uint16(nl), uint16(nt)
	img.Width, img.Height = uint16(nr-nl), uint16(nb-nt)
	return nil
}
