package gif

import (
	"fmt"

	"github.com/kohler/gogifsicle/gif/lzw"
)

// ReadFlags controls how much of a stream Read actually decodes, mirroring
// the GIF_READ_* flags of the original library.
type ReadFlags int

const (
	// ReadCompressed keeps each image's original LZW code stream (with its
	// min-code-bits byte and sub-block framing) in Image.Compressed, so a pass-through write can
	// skip re-encoding untouched frames.
	ReadCompressed ReadFlags = 1 << iota
	// ReadUncompressed decodes every image's pixels into Image.Pixels.
	ReadUncompressed
	// ConstRecord borrows Image.Compressed directly out of the input byte
	// slice instead of copying it. Only meaningful when reading from a
	// Source backed by an in-memory record; the record must outlive the
	// returned Stream.
	ConstRecord
	// TrailingGarbageOK suppresses the "trailing garbage" diagnostic that
	// otherwise fires when bytes remain after the GIF trailer.
	TrailingGarbageOK
)

// readState carries the scratch LZW decoder and diagnostic sink through one
// Read call, mirroring Gif_Context.
type readState struct {
	decoder *lzw.Decoder
	diags   *diagnosticSink
	stream  *Stream
}

// Read parses one GIF stream from src according to flags, returning as much
// of the stream as could be recovered even when diagnostics were reported;
// only a bad magic number or an allocation-class failure aborts with a nil
// stream and non-nil error. Everything else increments Stream.Errors and is
// reported through handler (which may be nil).
//
// Grounded on gifread.c's read_gif: the block-dispatch loop (image/extension
// /trailer), the "lookahead" Gif_Image used so identifier and extensions
// attach before the image is actually appended, and the once-only "unknown
// block type" diagnostic are all carried over structurally.
func Read(src Source, flags ReadFlags, handler ErrorHandler) (*Stream, error) {
	if b0, b1, b2 := src.ReadByte(), src.ReadByte(), src.ReadByte(); b0 != 'G' || b1 != 'I' || b2 != 'F' {
		return nil, ErrBadMagic
	}
	src.ReadByte() // version byte 1
	src.ReadByte() // version byte 2
	src.ReadByte() // version byte 3

	s := NewStream()
	rs := &readState{
		decoder: lzw.NewDecoder(),
		diags:   newDiagnosticSink(handler, ""),
		stream:  s,
	}

	if !readLogicalScreenDescriptor(s, src) {
		return s, nil
	}

	gfi := NewImage()
	var pendingName string
	unknownBlockReported := false

	for !src.AtEOF() {
		block := src.ReadByte()

		switch block {
		case ',': // image descriptor
			gfi.Identifier = pendingName
			pendingName = ""
			readImage(rs, src, gfi, flags)
			s.AddImage(gfi)
			gfi = NewImage()

		case ';': // trailer
			goto done

		case '!': // extension introducer
			kind := src.ReadByte()
			switch kind {
			case ExtKindGraphicControl:
				readGraphicControlExtension(rs, src, gfi)
			case ExtKindName:
				pendingName = string(suckData(src))
			case ExtKindComment:
				readCommentExtension(src, gfi)
			case ExtKindApplication:
				readApplicationExtension(rs, src, s)
			default:
				readUnknownExtension(src, kind, "", gfi)
			}

		default:
			if !unknownBlockReported {
				rs.diags.emit(SeverityError, -1, src.Offset()-1,
					fmt.Sprintf("unknown block type %d at file offset %d", block, src.Offset()-1))
				s.Errors++
				unknownBlockReported = true
			}
			goto done
		}
	}

done:
	// Any comment that arrived after the last image belongs to the stream.
	s.EndComment.Merge(gfi.Comment)

	if s.Errors == 0 && flags&TrailingGarbageOK == 0 && !src.AtEOF() {
		rs.diags.emit(SeverityWarning, -1, src.Offset(), "trailing garbage after GIF ignored")
	}

	return s, nil
}

func readLogicalScreenDescriptor(s *Stream, src Source) bool {
	s.ScreenWidth = readUnsigned(src)
	s.ScreenHeight = readUnsigned(src)
	packed := src.ReadByte()
	s.Background = int(src.ReadByte())
	src.ReadByte() // pixel aspect ratio, ignored

	if packed&0x80 != 0 {
		ncol := 1 << ((packed & 0x07) + 1)
		s.Global = readColorTable(ncol, src)
	}
	return true
}

func readUnsigned(src Source) uint16 {
	lo := src.ReadByte()
	hi := src.ReadByte()
	return uint16(lo) | uint16(hi)<<8
}

func readColorTable(size int, src Source) *Colormap {
	cm := NewFullColormap(size, size)
	for i := 0; i < size; i++ {
		cm.Colors[i].R = src.ReadByte()
		cm.Colors[i].G = src.ReadByte()
		cm.Colors[i].B = src.ReadByte()
	}
	return cm
}

func readImage(rs *readState, src Source, gfi *Image, flags ReadFlags) {
	gfi.Left = readUnsigned(src)
	gfi.Top = readUnsigned(src)
	gfi.Width = readUnsigned(src)
	gfi.Height = readUnsigned(src)
	packed := src.ReadByte()

	if packed&0x80 != 0 {
		ncol := 1 << ((packed & 0x07) + 1)
		gfi.Local = readColorTable(ncol, src)
	}
	gfi.Interlace = packed&0x40 != 0

	switch {
	case flags&ReadCompressed != 0:
		readCompressedImage(src, gfi, flags)
		if flags&ReadUncompressed != 0 {
			uncompressImage(rs, gfi)
		}
	case flags&ReadUncompressed != 0:
		uncompressImageFromSource(rs, src, gfi)
	default:
		skipSubBlocks(src)
	}
}

// readCompressedImage preserves the LZW block stream verbatim, framing and
// all (min-code-bits byte, length-prefixed sub-blocks, zero terminator),
// either by borrowing it directly out of an in-memory record (ConstRecord)
// or copying block by block, matching read_compressed_image's record/
// non-record split.
func readCompressedImage(src Source, gfi *Image, flags ReadFlags) {
	if rec, ok := src.(*recordSource); ok && flags&ConstRecord != 0 {
		start := rec.pos
		gfi.MinCodeBits = int(rec.ReadByte())
		for {
			n := int(rec.ReadByte())
			if n == 0 {
				break
			}
			rec.pos += n
			rec.offset += uint32(n)
		}
		gfi.Compressed = rec.data[start:rec.pos]
		return
	}

	buf := []byte{src.ReadByte()}
	gfi.MinCodeBits = int(buf[0])
	for {
		n := int(src.ReadByte())
		buf = append(buf, byte(n))
		if n == 0 {
			break
		}
		chunk := make([]byte, n)
		src.ReadBlock(chunk)
		buf = append(buf, chunk...)
	}
	gfi.Compressed = buf
}

// uncompressImage decodes a preserved Image.Compressed payload into Pixels,
// for the ReadCompressed|ReadUncompressed combination.
func uncompressImage(rs *readState, gfi *Image) {
	decodeInto(rs, NewRecordSource(gfi.Compressed), gfi)
}

func uncompressImageFromSource(rs *readState, src Source, gfi *Image) {
	decodeInto(rs, src, gfi)
}

func decodeInto(rs *readState, src Source, gfi *Image) {
	pixels, errs := rs.decoder.Decode(src, int(gfi.Width), int(gfi.Height))
	gfi.CompressedErrors = errs
	rs.stream.Errors += errs
	gfi.Pixels = make([][]byte, gfi.Height)
	for y := 0; y < int(gfi.Height); y++ {
		gfi.Pixels[y] = pixels[y*int(gfi.Width) : (y+1)*int(gfi.Width)]
	}
}

func skipSubBlocks(src Source) {
	src.ReadByte() // min code size
	var buf [256]byte
	for {
		n := int(src.ReadByte())
		if n == 0 {
			break
		}
		src.ReadBlock(buf[:n])
	}
}

func readGraphicControlExtension(rs *readState, src Source, gfi *Image) {
	length := src.ReadByte()
	if length == 4 {
		packed := src.ReadByte()
		gfi.Disposal = Disposal((packed >> 2) & 0x07)
		gfi.Delay = readUnsigned(src)
		transparent := src.ReadByte()
		if packed&0x01 != 0 {
			gfi.Transparent = int(transparent)
		} else {
			gfi.Transparent = NoTransparency
		}
		length = 0
	}
	if length > 0 {
		rs.diags.emitOnce(SeverityWarning, -1, src.Offset(), "odd graphic extension format")
		skipBlock(src, length)
	}
	for {
		length = src.ReadByte()
		if length == 0 {
			break
		}
		rs.diags.emitOnce(SeverityWarning, -1, src.Offset(), "odd graphic extension format")
		skipBlock(src, length)
	}
}

func skipBlock(src Source, n byte) {
	buf := make([]byte, n)
	src.ReadBlock(buf)
}

// suckData reads a chain of sub-blocks into one concatenated byte slice,
// matching suck_data -- used for both the Name extension payload and
// Comment extension text.
func suckData(src Source) []byte {
	var out []byte
	for {
		n := int(src.ReadByte())
		if n == 0 {
			break
		}
		chunk := make([]byte, n)
		src.ReadBlock(chunk)
		out = append(out, chunk...)
	}
	return out
}

func readCommentExtension(src Source, gfi *Image) {
	data := suckData(src)
	if gfi.Comment == nil {
		gfi.Comment = NewComment()
	}
	gfi.Comment.Add(data)
}

func readApplicationExtension(rs *readState, src Source, s *Stream) {
	length := int(src.ReadByte())
	buf := make([]byte, length)
	src.ReadBlock(buf)

	if length == 11 && string(buf) == NetscapeLoopIdentifier {
		sub := src.ReadByte()
		if sub == 3 {
			src.ReadByte() // the literal "1" sub-block tag
			s.LoopCount = int32(readUnsigned(src))
			sub = src.ReadByte()
			if sub != 0 {
				rs.diags.emitOnce(SeverityWarning, -1, src.Offset(), "bad loop extension")
			}
		} else {
			rs.diags.emitOnce(SeverityWarning, -1, src.Offset(), "bad loop extension")
		}
		for sub > 0 {
			skipBlock(src, sub)
			sub = src.ReadByte()
		}
		return
	}

	ext := NewExtension(ExtKindApplication, string(buf))
	ext.Data = suckData(src)
	ext.AttachToStreamEnd(s)
}

func readUnknownExtension(src Source, kind byte, appName string, gfi *Image) {
	data := suckData(src)
	if data == nil {
		return
	}
	ext := NewExtension(kind, appName)
	ext.Data = data
	ext.AttachToImage(gfi)
}
