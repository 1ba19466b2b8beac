package quantize

import "github.com/kohler/gogifsicle/gif"

// Kernel is an error-diffusion matrix: each row is {weight, dx, dy},
// describing how much of a pixel's quantization error to push onto the
// neighbor at (x+dx, y+dy}. Adapted from the teacher's dither.go.
type Kernel [][3]float64

var (
	// FalseFloydSteinberg spreads error to three neighbors, cheaper and
	// coarser than full Floyd-Steinberg.
	FalseFloydSteinberg = Kernel{
		{3.0 / 8.0, 1, 0},
		{3.0 / 8.0, 0, 1},
		{2.0 / 8.0, 1, 1},
	}

	// FloydSteinberg is the classic four-neighbor error-diffusion kernel.
	FloydSteinberg = Kernel{
		{7.0 / 16.0, 1, 0},
		{3.0 / 16.0, -1, 1},
		{5.0 / 16.0, 0, 1},
		{1.0 / 16.0, 1, 1},
	}

	// Stucki spreads error over a wider 12-neighbor window for smoother
	// gradients at the cost of more blur.
	Stucki = Kernel{
		{8.0 / 42.0, 1, 0}, {4.0 / 42.0, 2, 0},
		{2.0 / 42.0, -2, 1}, {4.0 / 42.0, -1, 1}, {8.0 / 42.0, 0, 1}, {4.0 / 42.0, 1, 1}, {2.0 / 42.0, 2, 1},
		{1.0 / 42.0, -2, 2}, {2.0 / 42.0, -1, 2}, {4.0 / 42.0, 0, 2}, {2.0 / 42.0, 1, 2}, {1.0 / 42.0, 2, 2},
	}

	// Atkinson only diffuses 3/4 of the error, leaving edges crisper.
	Atkinson = Kernel{
		{1.0 / 8.0, 1, 0}, {1.0 / 8.0, 2, 0},
		{1.0 / 8.0, -1, 1}, {1.0 / 8.0, 0, 1}, {1.0 / 8.0, 1, 1},
		{1.0 / 8.0, 0, 2},
	}
)

// Method names a dithering kernel, or "none" for plain nearest-color
// mapping.
type Method string

const (
	None                Method = "none"
	DitherFloydSteinberg      Method = "floyd-steinberg"
	DitherFalseFloydSteinberg Method = "false-floyd-steinberg"
	DitherStucki              Method = "stucki"
	DitherAtkinson            Method = "atkinson"
)

func kernelFor(m Method) (Kernel, bool) {
	switch m {
	case DitherFloydSteinberg:
		return FloydSteinberg, true
	case DitherFalseFloydSteinberg:
		return FalseFloydSteinberg, true
	case DitherStucki:
		return Stucki, true
	case DitherAtkinson:
		return Atkinson, true
	default:
		return nil, false
	}
}

// nearest finds the colormap entry closest to (r, g, b) by squared RGB
// distance, linear scan -- used when mapping onto a colormap that wasn't
// produced by this package's own NeuQuant (so there's no trained index to
// search), mirroring GIFEncoder.findClosestRGB's non-NeuQuant fallback.
func nearest(cm *gif.Colormap, r, g, b byte) int {
	best, bestDist := 0, 1<<30
	for i, c := range cm.Colors {
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Quantize builds a 256-entry colormap (always 256 entries, even when the
// image has fewer distinct colors) from an RGB pixel buffer via NeuQuant
// training, then maps every pixel onto it, with optional error-diffusion
// dithering. rgb holds width*height RGB triplets. Adapted from the
// teacher's analyzePixels/indexPixels/ditherPixels.
func Quantize(rgb []byte, width, height int, samplefac int, method Method, serpentine bool) (*gif.Colormap, [][]byte) {
	nq := NewNeuQuant(rgb, samplefac)
	nq.BuildColormap()
	flat := nq.Colormap()

	cm := gif.NewFullColormap(netsize, netsize)
	for i := 0; i < netsize; i++ {
		cm.Colors[i] = gif.Color{R: flat[i*3], G: flat[i*3+1], B: flat[i*3+2]}
	}

	pixels := DitherWithLookup(rgb, width, height, cm, nq.Lookup, method, serpentine)
	return cm, pixels
}

// Dither maps an RGB pixel buffer onto an existing colormap, with optional
// error-diffusion dithering, using a brute-force nearest-color search.
func Dither(rgb []byte, width, height int, cm *gif.Colormap, method Method, serpentine bool) [][]byte {
	return DitherWithLookup(rgb, width, height, cm, func(r, g, b byte) int {
		return nearest(cm, r, g, b)
	}, method, serpentine)
}

// DitherWithLookup is Dither/Quantize's shared implementation, taking a
// caller-supplied nearest-color function so Quantize can use NeuQuant's
// trained index instead of a brute-force scan. Grounded on the teacher's
// ditherPixels/indexPixels, generalized to take the lookup as a parameter
// instead of being a method on a concrete encoder type.
func DitherWithLookup(rgb []byte, width, height int, cm *gif.Colormap, lookup func(r, g, b byte) int, method Method, serpentine bool) [][]byte {
	data := append([]byte(nil), rgb...)
	rows := make([][]byte, height)
	buf := make([]byte, width*height)
	for y := range rows {
		rows[y] = buf[y*width : (y+1)*width]
	}

	kernel, dithering := kernelFor(method)
	direction := 1

	for y := 0; y < height; y++ {
		if serpentine {
			direction = -direction
		}
		x, xEnd := 0, width
		if direction == -1 {
			x, xEnd = width-1, -1
		}

		for x != xEnd {
			idx := (y*width + x) * 3
			r1, g1, b1 := data[idx], data[idx+1], data[idx+2]

			colorIdx := lookup(r1, g1, b1)
			rows[y][x] = byte(colorIdx)

			if dithering {
				c := cm.Colors[colorIdx]
				er := int(r1) - int(c.R)
				eg := int(g1) - int(c.G)
				eb := int(b1) - int(c.B)

				ki, kiEnd, kstep := 0, len(kernel), 1
				if direction == -1 {
					ki, kiEnd, kstep = len(kernel)-1, -1, -1
				}
				for ki != kiEnd {
					k := kernel[ki]
					nx, ny := x+int(k[1]), y+int(k[2])
					if nx >= 0 && nx < width && ny >= 0 && ny < height {
						nIdx := (ny*width + nx) * 3
						data[nIdx] = clamp(int(data[nIdx]) + int(float64(er)*k[0]))
						data[nIdx+1] = clamp(int(data[nIdx+1]) + int(float64(eg)*k[0]))
						data[nIdx+2] = clamp(int(data[nIdx+2]) + int(float64(eb)*k[0]))
					}
					ki += kstep
				}
			}

			x += direction
		}
	}

	return rows
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
