package lzw

// BlockWriter is the minimal surface the encoders need from a byte sink;
// gif.Sink satisfies it structurally.
type BlockWriter interface {
	WriteByte(b byte) error
	Write(p []byte) (int, error)
}

const (
	writeBufferSize = 255

	// maxLinksChildren is the fan-out at which a LINKS dictionary node is
	// promoted to a TABLE node (grounded on gifwrite.c's MAX_LINKS_TYPE: a
	// node holds up to 4 children as a linked list before its 5th child
	// forces conversion to a directly-indexed table).
	maxLinksChildren = 4

	// EWMA constants governing the eager-clear heuristic, taken directly
	// from ungifwrt.c's RUN_EWMA_SHIFT/RUN_EWMA_SCALE/RUN_INV_THRESH.
	runEwmaShift = 4
	runEwmaScale = 19
	runInvThresh = (1 << runEwmaScale) / 3000
)

// child pairs a dictionary node with the suffix byte that reaches it from
// its parent, used while the parent is still a LINKS node.
type child struct {
	suffix byte
	node   *node
}

// node is one entry in the adaptive LZW dictionary: the code assigned to
// the byte string ending here, plus its children reached by appending one
// more suffix byte. A node starts as a LINKS node (a short slice of
// children, cheap to allocate and fine for small fan-out) and is promoted
// to a TABLE node (a directly-indexed array with one slot per literal
// code, i.e. clearCode slots) once it accumulates
// more than maxLinksChildren children, trading memory for O(1) lookup on
// hot nodes -- adapted from the Gif_Node TABLE_TYPE/LINKS_TYPE split in
// gifwrite.c.
type node struct {
	code  uint16
	links []child
	table []*node
}

func (n *node) find(suffix byte) *node {
	if n.table != nil {
		return n.table[suffix]
	}
	for _, c := range n.links {
		if c.suffix == suffix {
			return c.node
		}
	}
	return nil
}

func (n *node) add(suffix byte, c *node, clearCode int) {
	if n.table != nil {
		n.table[suffix] = c
		return
	}
	n.links = append(n.links, child{suffix, c})
	if len(n.links) > maxLinksChildren {
		n.promote(clearCode)
	}
}

func (n *node) promote(clearCode int) {
	table := make([]*node, clearCode)
	for _, c := range n.links {
		table[c.suffix] = c.node
	}
	n.table = table
	n.links = nil
}

// Encoder is a reusable adaptive-dictionary LZW compressor. One Encoder's
// node arena can be reset and reused across every frame of a stream.
type Encoder struct {
	nodes    []node
	nodesPos int
}

// NewEncoder returns an Encoder with a dictionary arena sized for the
// largest possible GIF code space.
func NewEncoder() *Encoder {
	return &Encoder{nodes: make([]node, MaxCode)}
}

// Encode compresses rows (one []byte per image row, in top-to-bottom
// storage order -- interlacing, if any, must already be reflected in row
// order before calling Encode) and writes the min-code-bits byte followed
// by the LZW sub-block stream, terminated by a zero-length block.
//
// The dictionary is the adaptive TABLE/LINKS tree described on node,
// grounded on gifwrite.c. Clearing is not purely reactive to dictionary
// exhaustion: once the dictionary approaches GIF_MAX_CODE, an
// exponentially-weighted moving average of recent match lengths (the same
// RUN_EWMA_* heuristic ungifwrt.c uses to decide when a run-length writer
// should clear) decides whether to clear early, rather than only when the
// 12-bit code space is physically full. Grafting that heuristic onto the
// general dictionary -- rather than ungifwrt.c's narrower same-pixel-run
// encoder -- is this package's one outright invention; see DESIGN.md.
func (e *Encoder) Encode(sink BlockWriter, rows [][]byte, minCodeBits int) uint32 {
	if minCodeBits < 2 {
		minCodeBits = 2
	} else if minCodeBits >= MaxCodeBits {
		minCodeBits = MaxCodeBits - 1
	}
	sink.WriteByte(byte(minCodeBits))

	clearCode := uint16(1) << uint(minCodeBits)
	eoiCode := clearCode + 1
	curCodeBits := minCodeBits + 1

	var leftover uint32
	bitsLeftOver := uint(0)
	var buf [writeBufferSize]byte
	bufPos := 0

	flush := func() {
		if bufPos > 0 {
			sink.WriteByte(byte(bufPos))
			sink.Write(buf[:bufPos])
			bufPos = 0
		}
	}
	emit := func(code uint16) {
		leftover |= uint32(code) << bitsLeftOver
		bitsLeftOver += uint(curCodeBits)
		for bitsLeftOver >= 8 {
			buf[bufPos] = byte(leftover)
			bufPos++
			leftover = (leftover >> 8) & 0x00FFFFFF
			bitsLeftOver -= 8
			if bufPos == writeBufferSize {
				flush()
			}
		}
	}

	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	row, col := 0, 0
	totalPixels := uint32(width * height)

	var workNode *node
	var nextCode uint16
	var runEwma, run uint32
	outputCode := clearCode

	resetDict := func() {
		e.nodesPos = int(clearCode)
		for c := uint16(0); c < clearCode; c++ {
			e.nodes[c] = node{code: c}
		}
		curCodeBits = minCodeBits + 1
		nextCode = eoiCode + 1
		runEwma = 1 << runEwmaScale
		run = 0
	}

	var errCount uint32

loop:
	for {
		emit(outputCode)

		switch {
		case outputCode == clearCode:
			resetDict()
		case nextCode > uint16(1<<uint(curCodeBits)):
			if curCodeBits == MaxCodeBits {
				outputCode = clearCode
				continue loop
			}
			curCodeBits++
		case outputCode == eoiCode:
			break loop
		}

		for row < height {
			suffix := rows[row][col]
			var next *node
			if workNode == nil {
				next = &e.nodes[suffix]
			} else {
				next = workNode.find(suffix)
			}
			col++
			if col == width {
				col = 0
				row++
			}
			run++

			if next == nil {
				if e.nodesPos >= len(e.nodes) {
					// Dictionary arena exhausted without a clear in
					// between -- shouldn't happen given the eager-clear
					// check below, but fail safe rather than index out
					// of range on malformed input.
					errCount++
					outputCode = eoiCode
					break loop
				}
				nn := &e.nodes[e.nodesPos]
				e.nodesPos++
				*nn = node{code: nextCode}
				nextCode++
				workNode.add(suffix, nn, int(clearCode))

				runEwma = updateEwma(runEwma, run)
				run = 0

				outputCode = workNode.code
				workNode = &e.nodes[suffix]

				if nextCode > MaxCode-2 && row < height {
					pixelsLeft := totalPixels - uint32(row*width+col)
					if shouldClear(runEwma, pixelsLeft, minCodeBits) {
						emit(outputCode)
						outputCode = clearCode
					}
				}
				continue loop
			}
			workNode = next
		}

		// Out of pixels: emit whatever code is pending, then stop.
		if workNode != nil {
			outputCode = workNode.code
			workNode = nil
		} else {
			outputCode = eoiCode
		}
	}

	if bitsLeftOver > 0 {
		buf[bufPos] = byte(leftover)
		bufPos++
	}
	flush()
	sink.WriteByte(0)
	return errCount
}

// updateEwma folds one more match-length sample into the running average,
// matching ungifwrt.c's fixed-point exponential decay exactly.
func updateEwma(runEwma, run uint32) uint32 {
	scaled := (run << runEwmaScale) + (1 << (runEwmaShift - 1))
	if scaled < runEwma {
		return runEwma - ((runEwma - scaled) >> runEwmaShift)
	}
	return runEwma + ((scaled - runEwma) >> runEwmaShift)
}

// shouldClear reports whether the dictionary should be cleared even though
// it isn't physically full yet: either compression has degraded to near
// the minimum code size's worth of matching, or enough pixels remain,
// relative to the average match length, that a fresh dictionary is likely
// to pay for itself. Ported from ungifwrt.c's do_clear test.
func shouldClear(runEwma, pixelsLeft uint32, minCodeBits int) bool {
	if pixelsLeft == 0 {
		return false
	}
	if runEwma < (36<<runEwmaScale)/uint32(minCodeBits) {
		return true
	}
	if pixelsLeft > ^uint32(0)/runInvThresh {
		return true
	}
	return runEwma < pixelsLeft*runInvThresh
}
