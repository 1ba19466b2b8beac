package gif

import (
	"github.com/kohler/gogifsicle/gif/lzw"
)

// WriteFlags controls encoder behavior, mirroring a subset of the original
// GIF_WRITE_* flags.
type WriteFlags int

const (
	// WriteCarefulMinCodeSize computes the LZW minimum code size of an
	// image with a local colormap from that colormap's length alone. Without
	// the flag, and for images without a local colormap, the size comes from
	// Image.ColorBound (local colormap length, or 256 for an image using the
	// global colormap, raised to cover the transparent index).
	WriteCarefulMinCodeSize WriteFlags = 1 << iota
	// WriteUseHashEncoder selects lzw.HashEncoder (the teacher's
	// hash-chained compressor) instead of the default adaptive-tree
	// Encoder, trading a little compression ratio for less scratch memory.
	WriteUseHashEncoder
)

// Write serializes s to sink: header, logical screen descriptor, every
// image in order (with its preceding name/comment/graphic-control/unknown
// extensions and local colormap), the Netscape loop extension if one is
// wanted, trailing extensions and comment, and the trailer byte.
//
// Grounded on gifwrite.c's write_compressed_data/Gif_FullWriteFile block
// ordering and the teacher's GIFEncoder.go for the packed-field bit layout
// of the logical screen descriptor, graphic control extension, and image
// descriptor (palette-size-in-bits-minus-one, disposal-in-bits-2-4, etc.).
func Write(s *Stream, sink Sink, flags WriteFlags) uint32 {
	var errCount uint32

	sink.Write([]byte("GIF89a"))

	writeUnsigned(sink, s.ScreenWidth)
	writeUnsigned(sink, s.ScreenHeight)

	packed := byte(0x70) // color resolution = 7 (unused by readers, kept for compatibility)
	if s.Global != nil && s.Global.Len() > 0 {
		packed |= 0x80 | byte(s.Global.BitDepth())
	}
	sink.WriteByte(packed)
	if s.Background == NoBackground {
		sink.WriteByte(0)
	} else {
		sink.WriteByte(byte(s.Background))
	}
	sink.WriteByte(0) // pixel aspect ratio

	if s.Global != nil && s.Global.Len() > 0 {
		writeColorTable(sink, s.Global)
	}

	for _, img := range s.Images {
		writeImagePreamble(sink, img)
		errCount += writeImage(sink, s, img, flags)
	}

	if s.LoopCount != NoLoop {
		writeNetscapeLoop(sink, s.LoopCount)
	}
	for _, ext := range s.EndExtensions {
		writeExtension(sink, ext)
	}
	writeComment(sink, s.EndComment)

	sink.WriteByte(';')
	return errCount
}

func writeUnsigned(sink Sink, v uint16) {
	sink.WriteByte(byte(v))
	sink.WriteByte(byte(v >> 8))
}

func writeColorTable(sink Sink, cm *Colormap) {
	padded := cm.PaddedSize()
	for i := 0; i < padded; i++ {
		if i < cm.Len() {
			c := cm.Colors[i]
			sink.WriteByte(c.R)
			sink.WriteByte(c.G)
			sink.WriteByte(c.B)
		} else {
			sink.WriteByte(0)
			sink.WriteByte(0)
			sink.WriteByte(0)
		}
	}
}

// writeImagePreamble emits everything that must precede the image
// descriptor, in this order: the gifsicle Name extension (if Identifier is
// set), any opaque extensions attached to this image, its comments, and
// the Graphic Control Extension (always emitted, since disposal/delay/
// transparency all live there and default to harmless values).
func writeImagePreamble(sink Sink, img *Image) {
	if img.Identifier != "" {
		writeNameExtension(sink, img.Identifier)
	}
	for _, ext := range img.Extensions {
		writeExtension(sink, ext)
	}
	writeComment(sink, img.Comment)
	writeGraphicControlExtension(sink, img)
}

func writeNameExtension(sink Sink, name string) {
	sink.WriteByte('!')
	sink.WriteByte(ExtKindName)
	writeSubBlocks(sink, []byte(name))
	sink.WriteByte(0)
}

func writeGraphicControlExtension(sink Sink, img *Image) {
	sink.WriteByte('!')
	sink.WriteByte(ExtKindGraphicControl)
	sink.WriteByte(4)

	transparent := byte(0)
	if img.Transparent != NoTransparency {
		transparent = 1
	}
	packed := (byte(img.Disposal) & 0x07 << 2) | transparent
	if img.UserInput {
		packed |= 0x02
	}
	sink.WriteByte(packed)
	writeUnsigned(sink, img.Delay)
	if img.Transparent != NoTransparency {
		sink.WriteByte(byte(img.Transparent))
	} else {
		sink.WriteByte(0)
	}
	sink.WriteByte(0)
}

func writeExtension(sink Sink, ext *Extension) {
	sink.WriteByte('!')
	sink.WriteByte(ext.Kind)
	if ext.Kind == ExtKindApplication {
		sink.WriteByte(byte(len(ext.AppName)))
		sink.Write([]byte(ext.AppName))
	}
	writeSubBlocks(sink, ext.Data)
	sink.WriteByte(0)
}

func writeComment(sink Sink, c *Comment) {
	if c == nil {
		return
	}
	for _, str := range c.Strs {
		sink.WriteByte('!')
		sink.WriteByte(ExtKindComment)
		writeSubBlocks(sink, str)
		sink.WriteByte(0)
	}
}

func writeNetscapeLoop(sink Sink, loopCount int32) {
	sink.WriteByte('!')
	sink.WriteByte(ExtKindApplication)
	sink.WriteByte(11)
	sink.Write([]byte(NetscapeLoopIdentifier))
	sink.WriteByte(3)
	sink.WriteByte(1)
	writeUnsigned(sink, uint16(loopCount))
	sink.WriteByte(0)
}

// writeSubBlocks splits data into 255-byte length-prefixed chunks. It does
// not write the terminating zero-length block -- callers add that
// themselves so single-sub-block callers (Name, Comment) stay simple.
func writeSubBlocks(sink Sink, data []byte) {
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		sink.WriteByte(byte(n))
		sink.Write(data[:n])
		data = data[n:]
	}
}

func writeImage(sink Sink, s *Stream, img *Image, flags WriteFlags) uint32 {
	sink.WriteByte(',')
	writeUnsigned(sink, img.Left)
	writeUnsigned(sink, img.Top)
	writeUnsigned(sink, img.Width)
	writeUnsigned(sink, img.Height)

	local := img.Local
	packed := byte(0)
	if img.Interlace {
		packed |= 0x40
	}
	if local != nil && local.Len() > 0 {
		packed |= 0x80 | byte(local.BitDepth())
	}
	sink.WriteByte(packed)
	if local != nil && local.Len() > 0 {
		writeColorTable(sink, local)
	}

	// Prefer a preserved compressed stream if one is available and the
	// pixels were never decompressed (so we know it's still valid).
	if img.Compressed != nil && img.Pixels == nil {
		sink.Write(img.Compressed)
		return 0
	}

	minCodeBits := imageMinCodeBits(img, flags)
	if flags&WriteUseHashEncoder != 0 {
		enc := lzw.NewHashEncoder()
		return enc.Encode(sink, img.Pixels, minCodeBits)
	}
	enc := lzw.NewEncoder()
	return enc.Encode(sink, img.Pixels, minCodeBits)
}

// imageMinCodeBits picks the LZW starting code size: the number of bits
// needed to represent every palette index the image could use, minimum 2.
func imageMinCodeBits(img *Image, flags WriteFlags) int {
	var n int
	if flags&WriteCarefulMinCodeSize != 0 && img.Local != nil {
		n = img.Local.Len()
	} else {
		n = img.ColorBound()
	}
	bits := 2
	for (1 << uint(bits)) < n {
		bits++
	}
	return bits
}
