package lzw_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohler/gogifsicle/gif/lzw"
)

// sliceSink is a minimal in-memory BlockWriter for exercising Encoder
// without pulling in the gif package's Sink implementation.
type sliceSink struct {
	data []byte
}

func (s *sliceSink) WriteByte(b byte) error {
	s.data = append(s.data, b)
	return nil
}

func (s *sliceSink) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

// sliceSource replays sliceSink's bytes back as a ByteReader.
type sliceSource struct {
	data []byte
	pos  int
}

func (s *sliceSource) ReadByte() byte {
	if s.pos >= len(s.data) {
		return 0
	}
	b := s.data[s.pos]
	s.pos++
	return b
}

func (s *sliceSource) ReadBlock(dst []byte) {
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func solidRows(width, height int, value byte) [][]byte {
	rows := make([][]byte, height)
	buf := make([]byte, width*height)
	for i := range buf {
		buf[i] = value
	}
	for y := range rows {
		rows[y] = buf[y*width : (y+1)*width]
	}
	return rows
}

func gradientRows(width, height int) [][]byte {
	rows := make([][]byte, height)
	buf := make([]byte, width*height)
	for i := range buf {
		buf[i] = byte((i * 7) % 37)
	}
	for y := range rows {
		rows[y] = buf[y*width : (y+1)*width]
	}
	return rows
}

func flatten(rows [][]byte) []byte {
	var out []byte
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func TestEncodeDecodeRoundTripSolid(t *testing.T) {
	rows := solidRows(16, 16, 3)
	sink := &sliceSink{}
	enc := lzw.NewEncoder()
	errCount := enc.Encode(sink, rows, 4)
	require.Zero(t, errCount, "encoding a trivial solid image should not report errors")

	dec := lzw.NewDecoder()
	pixels, decErrCount := dec.Decode(&sliceSource{data: sink.data}, 16, 16)
	require.Zero(t, decErrCount)
	assert.Equal(t, flatten(rows), pixels)
}

func TestEncodeDecodeRoundTripGradient(t *testing.T) {
	rows := gradientRows(40, 30)
	sink := &sliceSink{}
	enc := lzw.NewEncoder()
	errCount := enc.Encode(sink, rows, 6)
	require.Zero(t, errCount)

	dec := lzw.NewDecoder()
	pixels, decErrCount := dec.Decode(&sliceSource{data: sink.data}, 40, 30)
	require.Zero(t, decErrCount)
	assert.Equal(t, flatten(rows), pixels)
}

func TestEncodeDecodeRoundTripForcesDictionaryClears(t *testing.T) {
	// A large, high-entropy image exercises the dictionary-exhaustion and
	// eager-clear paths in Encode, not just the trivial run-length case.
	width, height := 120, 100
	buf := make([]byte, width*height)
	x := uint32(12345)
	for i := range buf {
		x = x*1103515245 + 12345
		buf[i] = byte((x >> 16) & 0x1F)
	}
	rows := make([][]byte, height)
	for y := range rows {
		rows[y] = buf[y*width : (y+1)*width]
	}

	sink := &sliceSink{}
	enc := lzw.NewEncoder()
	errCount := enc.Encode(sink, rows, 5)
	require.Zero(t, errCount)

	dec := lzw.NewDecoder()
	pixels, decErrCount := dec.Decode(&sliceSource{data: sink.data}, width, height)
	require.Zero(t, decErrCount)
	assert.Equal(t, buf, pixels)
}

func TestDecodeClampsOutOfRangeMinCodeBits(t *testing.T) {
	// A min-code-bits byte of 1 is below the legal minimum of 2; the
	// decoder clamps rather than failing, per its documented leniency.
	src := &sliceSource{data: []byte{1, 0}} // min-code-bits=1, immediately terminated
	dec := lzw.NewDecoder()
	pixels, errCount := dec.Decode(src, 4, 4)
	assert.NotZero(t, errCount)
	assert.Len(t, pixels, 16)
}
