package gif

import "io"

// Source is the uniform byte-source interface the reader drives: a
// seekable file, an immutable in-memory record, or an always-EOF stub.
// ReadByte returns 0 at EOF (the original's lenient behavior, preserved
// per §9 so existing corrupt-GIF test corpora keep decoding the same way).
type Source interface {
	ReadByte() byte
	ReadBlock(dst []byte) // short reads zero-fill the remainder of dst
	Offset() uint32
	AtEOF() bool
}

// fileSource reads sequentially from an io.Reader (typically an *os.File).
// It is not actually required to be seekable -- GIF is a forward-only
// format -- but is named to match the original's FILE*-backed reader kind.
type fileSource struct {
	r      io.Reader
	offset uint32
	eof    bool
}

// NewFileSource wraps r (a file or any streaming reader) as a Source.
func NewFileSource(r io.Reader) Source {
	return &fileSource{r: r}
}

func (s *fileSource) ReadByte() byte {
	var buf [1]byte
	n, err := io.ReadFull(s.r, buf[:])
	s.offset += uint32(n)
	if n == 0 || err != nil {
		s.eof = true
		return 0
	}
	return buf[0]
}

func (s *fileSource) ReadBlock(dst []byte) {
	n, _ := io.ReadFull(s.r, dst)
	s.offset += uint32(n)
	if n < len(dst) {
		s.eof = true
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	}
}

func (s *fileSource) Offset() uint32 { return s.offset }
func (s *fileSource) AtEOF() bool    { return s.eof }

// recordSource reads from an immutable in-memory byte slice without
// copying it; GIF_READ_CONST_RECORD asks the reader to borrow directly
// from such a source when preserving compressed image data.
type recordSource struct {
	data   []byte
	pos    int
	offset uint32
}

// NewRecordSource wraps an in-memory GIF byte slice as a Source. The slice
// must outlive any Stream read from it with the CONST_RECORD flag, since
// compressed image data may alias it directly.
func NewRecordSource(data []byte) Source {
	return &recordSource{data: data}
}

func (s *recordSource) ReadByte() byte {
	if s.pos >= len(s.data) {
		return 0
	}
	b := s.data[s.pos]
	s.pos++
	s.offset++
	return b
}

func (s *recordSource) ReadBlock(dst []byte) {
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	s.offset += uint32(n)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func (s *recordSource) Offset() uint32 { return s.offset }
func (s *recordSource) AtEOF() bool    { return s.pos >= len(s.data) }

// Borrow returns a zero-copy slice of the next n bytes and advances the
// cursor past them, for GIF_READ_CONST_RECORD. It panics if not backed by
// an in-memory record -- callers must check the source kind first.
func (s *recordSource) Borrow(n int) []byte {
	end := s.pos + n
	if end > len(s.data) {
		end = len(s.data)
	}
	b := s.data[s.pos:end]
	s.pos = end
	s.offset += uint32(len(b))
	return b
}

// errorSource is always at EOF; it models a collaborator that failed to
// open its underlying resource but still wants to hand the reader
// something that behaves like an empty stream.
type errorSource struct{}

// NewErrorSource returns a Source that reports EOF immediately.
func NewErrorSource() Source { return errorSource{} }

func (errorSource) ReadByte() byte { return 0 }

func (errorSource) ReadBlock(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
}

func (errorSource) Offset() uint32 { return 0 }
func (errorSource) AtEOF() bool    { return true }
