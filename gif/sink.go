package gif

import "io"

// Sink is the uniform byte-sink interface the writer drives: either a
// direct io.Writer (streaming to a file/socket) or an expanding in-memory
// buffer. Both satisfy io.Writer so lzw.Encoder can write to either
// uniformly.
type Sink interface {
	io.Writer
	WriteByte(b byte) error
}

// streamSink adapts any io.Writer (typically an *os.File) to Sink.
type streamSink struct {
	w   io.Writer
	err error
}

// NewStreamSink wraps w for direct, unbuffered writes.
func NewStreamSink(w io.Writer) Sink {
	return &streamSink{w: w}
}

func (s *streamSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

func (s *streamSink) WriteByte(b byte) error {
	_, err := s.w.Write([]byte{b})
	if err != nil {
		s.err = err
	}
	return err
}

// defaultPageSize is the allocation granularity of ByteBuffer, matching the
// teacher's ByteArray page size.
const defaultPageSize = 4096

// ByteBuffer is a growing in-memory Sink built from fixed-size pages so
// that writing a large GIF never triggers an O(n) "double and copy"
// reallocation of the whole buffer -- adapted from the teacher's
// paged ByteArray.
type ByteBuffer struct {
	pages    [][]byte
	page     int
	cursor   int
	pageSize int
}

// NewByteBuffer returns an empty growing buffer with the default page size.
func NewByteBuffer() *ByteBuffer {
	b := &ByteBuffer{page: -1, pageSize: defaultPageSize}
	b.newPage()
	return b
}

func (b *ByteBuffer) newPage() {
	b.page++
	b.pages = append(b.pages, make([]byte, b.pageSize))
	b.cursor = 0
}

func (b *ByteBuffer) WriteByte(v byte) error {
	if b.cursor >= b.pageSize {
		b.newPage()
	}
	b.pages[b.page][b.cursor] = v
	b.cursor++
	return nil
}

func (b *ByteBuffer) Write(p []byte) (int, error) {
	for _, v := range p {
		b.WriteByte(v)
	}
	return len(p), nil
}

// Bytes returns all written data as one contiguous slice.
func (b *ByteBuffer) Bytes() []byte {
	total := 0
	for i, page := range b.pages {
		if i < len(b.pages)-1 {
			total += len(page)
		} else {
			total += b.cursor
		}
	}
	out := make([]byte, 0, total)
	for i, page := range b.pages {
		if i < len(b.pages)-1 {
			out = append(out, page...)
		} else {
			out = append(out, page[:b.cursor]...)
		}
	}
	return out
}

// Len returns the number of bytes written so far.
func (b *ByteBuffer) Len() int {
	n := 0
	for i, page := range b.pages {
		if i < len(b.pages)-1 {
			n += len(page)
		} else {
			n += b.cursor
		}
	}
	return n
}
