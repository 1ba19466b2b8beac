package lzw

// HashEncoder is a hash-chained LZW compressor kept alongside the
// adaptive-tree Encoder as a cheaper, lower-memory fast path: one int
// hash table instead of a node arena, at the cost of occasional hash
// collisions forcing a fresh dictionary entry where a tree lookup would
// have found the existing one. Ported from the teacher library's
// LZWEncoder (itself derived from the Unix `compress` GIFCOMPR.C lineage)
// with the same hashing/probing constants.
type HashEncoder struct{}

// NewHashEncoder returns a stateless hash-chained encoder; unlike Encoder
// it carries no arena to reset between frames.
func NewHashEncoder() *HashEncoder {
	return &HashEncoder{}
}

const (
	hashTableSize = 5003 // 80% occupancy, per GIFCOMPR.C
	hashBits      = MaxCodeBits
)

// Encode compresses rows the same way Encoder.Encode does, but with a
// fixed-size hash table instead of an adaptive tree: a miss always
// allocates a new code, and a collision between two different strings
// hashing to the same slot is resolved by secondary hashing rather than
// chaining, so the dictionary can occasionally grow a little less
// efficiently than the tree encoder for the same input.
func (HashEncoder) Encode(sink BlockWriter, rows [][]byte, minCodeBits int) uint32 {
	if minCodeBits < 2 {
		minCodeBits = 2
	} else if minCodeBits >= hashBits {
		minCodeBits = hashBits - 1
	}
	sink.WriteByte(byte(minCodeBits))

	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	row, col := 0, 0
	nextPixel := func() (int, bool) {
		if row >= height {
			return 0, false
		}
		p := int(rows[row][col])
		col++
		if col == width {
			col = 0
			row++
		}
		return p, true
	}

	initBits := minCodeBits + 1
	clearCode := 1 << minCodeBits
	eofCode := clearCode + 1
	freeEnt := clearCode + 2

	curBits := initBits
	maxCode := (1 << curBits) - 1
	clearFlag := false

	htab := make([]int, hashTableSize)
	codetab := make([]int, hashTableSize)
	clearHash := func() {
		for i := range htab {
			htab[i] = -1
		}
	}

	var accum [256]byte
	aCount := 0
	var curAccum uint32
	var curBitsOut uint

	flushChar := func() {
		if aCount > 0 {
			sink.WriteByte(byte(aCount))
			sink.Write(accum[:aCount])
			aCount = 0
		}
	}
	charOut := func(c byte) {
		accum[aCount] = c
		aCount++
		if aCount >= 254 {
			flushChar()
		}
	}

	output := func(code int) {
		curAccum |= uint32(code) << curBitsOut
		curBitsOut += uint(curBits)
		for curBitsOut >= 8 {
			charOut(byte(curAccum))
			curAccum >>= 8
			curBitsOut -= 8
		}
		if freeEnt > maxCode || clearFlag {
			if clearFlag {
				curBits = initBits
				maxCode = (1 << curBits) - 1
				clearFlag = false
			} else {
				curBits++
				if curBits == hashBits {
					maxCode = 1 << hashBits
				} else {
					maxCode = (1 << curBits) - 1
				}
			}
		}
		if code == eofCode {
			for curBitsOut > 0 {
				charOut(byte(curAccum))
				curAccum >>= 8
				if curBitsOut < 8 {
					break
				}
				curBitsOut -= 8
			}
			flushChar()
		}
	}
	clearBlock := func() {
		clearHash()
		freeEnt = clearCode + 2
		clearFlag = true
		output(clearCode)
	}

	hshift := 0
	for fc := hashTableSize; fc < 65536; fc *= 2 {
		hshift++
	}
	hshift = 8 - hshift
	clearHash()

	output(clearCode)

	ent, ok := nextPixel()
	if !ok {
		output(eofCode)
		return 0
	}

outer:
	for {
		c, ok := nextPixel()
		if !ok {
			break
		}

		fcode := (c << hashBits) + ent
		i := (c << hshift) ^ ent

		if htab[i] == fcode {
			ent = codetab[i]
			continue
		} else if htab[i] >= 0 {
			disp := hashTableSize - i
			if i == 0 {
				disp = 1
			}
			for {
				i -= disp
				if i < 0 {
					i += hashTableSize
				}
				if htab[i] == fcode {
					ent = codetab[i]
					continue outer
				}
				if htab[i] < 0 {
					break
				}
			}
		}

		output(ent)
		ent = c

		if freeEnt < 1<<hashBits {
			codetab[i] = freeEnt
			freeEnt++
			htab[i] = fcode
		} else {
			clearBlock()
		}
	}

	output(ent)
	output(eofCode)
	return 0
}
