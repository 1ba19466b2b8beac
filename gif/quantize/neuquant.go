// Package quantize reduces a truecolor (RGB) image down to a GIF-sized
// colormap and maps pixels onto it, with or without error-diffusion
// dithering. It is used wherever this toolkit needs a colormap it cannot
// simply inherit from an input GIF: shrinking a stream's palette (the
// --colors pipeline operation) and building frames from non-GIF source
// material.
//
// The quantizer itself is Anthony Dekker's NeuQuant neural-net algorithm,
// adapted from the teacher's Go port; the nearest-color search and
// dithering that sit on top of it are adapted from the teacher's
// GIFEncoder/dither pixel-mapping pass.
package quantize

const (
	ncycles         = 100 // number of learning cycles
	netsize         = 256 // number of colors used
	maxnetpos       = netsize - 1
	netbiasshift    = 4  // bias for colour values
	intbiasshift    = 16 // bias for fractions
	intbias         = 1 << intbiasshift
	gammashift      = 10
	gamma           = 1 << gammashift
	betashift       = 10
	beta            = intbias >> betashift
	betagamma       = intbias << (gammashift - betashift)
	initrad         = netsize >> 3
	radiusbiasshift = 6
	radiusbias      = 1 << radiusbiasshift
	initradius      = initrad * radiusbias
	radiusdec       = 30
	alphabiasshift  = 10
	initalpha       = 1 << alphabiasshift
	radbiasshift    = 8
	radbias         = 1 << radbiasshift
	alpharadbshift  = alphabiasshift + radbiasshift
	alpharadbias    = 1 << alpharadbshift
	prime1          = 499
	prime2          = 491
	prime3          = 487
	prime4          = 503
	minpicturebytes = 3 * prime4
)

// NeuQuant is a self-organizing-map color quantizer: fed a stream of RGB
// triplets, it trains a 256-entry network toward the image's color
// distribution, then exposes that network as a colormap and a fast
// nearest-neighbor lookup.
type NeuQuant struct {
	network   [][]int32
	netindex  []int32
	bias      []int32
	freq      []int32
	radpower  []int32
	pixels    []byte
	samplefac int
}

// NewNeuQuant prepares a quantizer over pixels (RGB triplets, r,g,b,r,g,b...).
// samplefac trades quality for speed: 1 samples every pixel, up to 30
// samples every 30th.
func NewNeuQuant(pixels []byte, samplefac int) *NeuQuant {
	if samplefac < 1 {
		samplefac = 1
	}
	return &NeuQuant{
		network:   make([][]int32, netsize),
		netindex:  make([]int32, 256),
		bias:      make([]int32, netsize),
		freq:      make([]int32, netsize),
		radpower:  make([]int32, initrad),
		pixels:    pixels,
		samplefac: samplefac,
	}
}

func (nq *NeuQuant) init() {
	for i := 0; i < netsize; i++ {
		v := int32((i << (netbiasshift + 8)) / netsize)
		nq.network[i] = []int32{v, v, v, 0}
		nq.freq[i] = intbias / netsize
		nq.bias[i] = 0
	}
}

// BuildColormap trains the network and prepares it for lookups: init,
// learn, unbias, sort-and-index. Call once; Lookup/Colormap are only valid
// afterward.
func (nq *NeuQuant) BuildColormap() {
	nq.init()
	nq.learn()
	nq.pixels = nil
	nq.unbiasnet()
	nq.inxbuild()
}

// Colormap returns the trained network as 256 RGB triplets, r,g,b,r,g,b...
func (nq *NeuQuant) Colormap() []byte {
	colormap := make([]byte, netsize*3)
	index := make([]int, netsize)
	for i := 0; i < netsize; i++ {
		index[nq.network[i][3]] = i
	}
	k := 0
	for i := 0; i < netsize; i++ {
		j := index[i]
		colormap[k] = byte(nq.network[j][0])
		k++
		colormap[k] = byte(nq.network[j][1])
		k++
		colormap[k] = byte(nq.network[j][2])
		k++
	}
	return colormap
}

// Lookup returns the trained network entry closest to (r, g, b).
func (nq *NeuQuant) Lookup(r, g, b byte) int {
	return nq.inxsearch(int32(r), int32(g), int32(b))
}

func (nq *NeuQuant) unbiasnet() {
	for i := 0; i < netsize; i++ {
		nq.network[i][0] >>= netbiasshift
		nq.network[i][1] >>= netbiasshift
		nq.network[i][2] >>= netbiasshift
		nq.network[i][3] = int32(i)
	}
}

func (nq *NeuQuant) altersingle(alpha, i int32, b, g, r int32) {
	nq.network[i][0] -= (alpha * (nq.network[i][0] - b)) / initalpha
	nq.network[i][1] -= (alpha * (nq.network[i][1] - g)) / initalpha
	nq.network[i][2] -= (alpha * (nq.network[i][2] - r)) / initalpha
}

func (nq *NeuQuant) alterneigh(radius int, i int, b, g, r int32) {
	lo := absInt(i - radius)
	hi := i + radius
	if hi > netsize {
		hi = netsize
	}

	j := i + 1
	k := i - 1
	m := 1

	for j < hi || k > lo {
		a := nq.radpower[m]
		m++

		if j < hi {
			p := nq.network[j]
			p[0] -= (a * (p[0] - b)) / alpharadbias
			p[1] -= (a * (p[1] - g)) / alpharadbias
			p[2] -= (a * (p[2] - r)) / alpharadbias
			j++
		}
		if k > lo {
			p := nq.network[k]
			p[0] -= (a * (p[0] - b)) / alpharadbias
			p[1] -= (a * (p[1] - g)) / alpharadbias
			p[2] -= (a * (p[2] - r)) / alpharadbias
			k--
		}
	}
}

func (nq *NeuQuant) contest(b, g, r int32) int {
	bestd := int32(0x7FFFFFFF)
	bestbiasd := bestd
	bestpos := -1
	bestbiaspos := bestpos

	for i := 0; i < netsize; i++ {
		n := nq.network[i]
		dist := abs32(n[0]-b) + abs32(n[1]-g) + abs32(n[2]-r)
		if dist < bestd {
			bestd = dist
			bestpos = i
		}

		biasdist := dist - (nq.bias[i] >> (intbiasshift - netbiasshift))
		if biasdist < bestbiasd {
			bestbiasd = biasdist
			bestbiaspos = i
		}

		betafreq := nq.freq[i] >> betashift
		nq.freq[i] -= betafreq
		nq.bias[i] += betafreq << gammashift
	}

	nq.freq[bestpos] += beta
	nq.bias[bestpos] -= betagamma
	return bestbiaspos
}

func (nq *NeuQuant) learn() {
	lengthcount := len(nq.pixels)
	alphadec := int32(30 + (nq.samplefac-1)/3)
	samplepixels := lengthcount / (3 * nq.samplefac)
	delta := samplepixels / ncycles
	if delta == 0 {
		delta = 1
	}

	alpha := int32(initalpha)
	radius := int32(initradius)

	rad := int(radius >> radiusbiasshift)
	if rad <= 1 {
		rad = 0
	}
	for i := 0; i < rad; i++ {
		nq.radpower[i] = alpha * ((int32(rad*rad-i*i) * radbias) / int32(rad*rad))
	}

	var step int
	switch {
	case lengthcount < minpicturebytes:
		nq.samplefac = 1
		step = 3
	case lengthcount%prime1 != 0:
		step = 3 * prime1
	case lengthcount%prime2 != 0:
		step = 3 * prime2
	case lengthcount%prime3 != 0:
		step = 3 * prime3
	default:
		step = 3 * prime4
	}

	pix := 0
	for i := 0; i < samplepixels; i++ {
		b := (int32(nq.pixels[pix]) & 0xff) << netbiasshift
		g := (int32(nq.pixels[pix+1]) & 0xff) << netbiasshift
		r := (int32(nq.pixels[pix+2]) & 0xff) << netbiasshift

		j := nq.contest(b, g, r)
		nq.altersingle(alpha, int32(j), b, g, r)
		if rad != 0 {
			nq.alterneigh(rad, j, b, g, r)
		}

		pix += step
		if pix >= lengthcount {
			pix -= lengthcount
		}

		if (i+1)%delta == 0 {
			alpha -= alpha / alphadec
			radius -= radius / radiusdec
			rad = int(radius >> radiusbiasshift)
			if rad <= 1 {
				rad = 0
			}
			for j := 0; j < rad; j++ {
				nq.radpower[j] = alpha * ((int32(rad*rad-j*j) * radbias) / int32(rad*rad))
			}
		}
	}
}

func (nq *NeuQuant) inxbuild() {
	previouscol := int32(0)
	startpos := 0

	for i := 0; i < netsize; i++ {
		p := nq.network[i]
		smallpos := i
		smallval := p[1]

		for j := i + 1; j < netsize; j++ {
			q := nq.network[j]
			if q[1] < smallval {
				smallpos = j
				smallval = q[1]
			}
		}

		if i != smallpos {
			nq.network[i], nq.network[smallpos] = nq.network[smallpos], nq.network[i]
		}

		if smallval != previouscol {
			nq.netindex[previouscol] = int32((startpos + i) >> 1)
			for j := previouscol + 1; j < smallval; j++ {
				nq.netindex[j] = int32(i)
			}
			previouscol = smallval
			startpos = i
		}
	}

	nq.netindex[previouscol] = int32((startpos + maxnetpos) >> 1)
	for j := previouscol + 1; j < 256; j++ {
		nq.netindex[j] = maxnetpos
	}
}

func (nq *NeuQuant) inxsearch(b, g, r int32) int {
	bestd := int32(1000)
	best := -1

	i := int(nq.netindex[g])
	j := i - 1

	for i < netsize || j >= 0 {
		if i < netsize {
			p := nq.network[i]
			dist := p[1] - g
			if dist >= bestd {
				i = netsize
			} else {
				i++
				if dist < 0 {
					dist = -dist
				}
				a := p[0] - b
				if a < 0 {
					a = -a
				}
				dist += a
				if dist < bestd {
					a = p[2] - r
					if a < 0 {
						a = -a
					}
					dist += a
					if dist < bestd {
						bestd = dist
						best = int(p[3])
					}
				}
			}
		}
		if j >= 0 {
			p := nq.network[j]
			dist := g - p[1]
			if dist >= bestd {
				j = -1
			} else {
				j--
				if dist < 0 {
					dist = -dist
				}
				a := p[0] - b
				if a < 0 {
					a = -a
				}
				dist += a
				if dist < bestd {
					a = p[2] - r
					if a < 0 {
						a = -a
					}
					dist += a
					if dist < bestd {
						bestd = dist
						best = int(p[3])
					}
				}
			}
		}
	}
	return best
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
