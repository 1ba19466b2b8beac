// Package optimize shrinks an animation by rewriting every frame (after
// the frame merger has given it a single timeline) down to the smallest
// rectangle that actually changed since the previous frame, sharing one
// global colormap across frames wherever their colors allow it. This is
// component C9, grounded on optimize.c/opttemplate.c.
package optimize

import "github.com/kohler/gogifsicle/gif"

// Flags controls how aggressively Optimize searches for savings, mirroring
// a reduced form of the GT_OPT_* levels (1: bounding-box only, 2: also
// allow replacing unchanged pixels with transparency, 3: accepted and
// treated exactly like 2).
type Flags int

const (
	// Level1 computes only the minimal changed-rectangle per frame.
	Level1 Flags = iota + 1
	// Level2 additionally lets pixels that didn't change become
	// transparent, which often lets the changed rectangle shrink further.
	Level2
	// Level3 is accepted for interface parity with gifsicle's -O3 but
	// currently behaves like Level2 in this port.
	Level3
)

// KeepEmpty disables the pass that drops degenerate single-pixel
// fully-transparent frames produced by some encoders, merging their delay
// into the previous frame instead. Combine with a Level using bitwise OR,
// matching GT_OPT_KEEPEMPTY's relationship to GT_OPT_MASK.
const KeepEmpty Flags = 0x10000

const transp = 0

// colorKey is the RGB lookup key used to dedupe colors into the shared pool.
type colorKey struct{ r, g, b byte }

// pool is the set of all distinct colors seen across every frame, analogous
// to optimize.c's all_colormap: entry 0 is a reserved marker standing for
// "transparent", never a real pixel value.
type pool struct {
	colors []gif.Color
	index  map[colorKey]int
}

func newPool() *pool {
	return &pool{
		colors: []gif.Color{{R: 255, G: 255, B: 255}},
		index:  map[colorKey]int{},
	}
}

func (p *pool) add(c gif.Color) int {
	k := colorKey{c.R, c.G, c.B}
	if i, ok := p.index[k]; ok {
		return i
	}
	i := len(p.colors)
	p.colors = append(p.colors, c)
	p.index[k] = i
	return i
}

// need marks, for one frame, whether a pool color is REQUIRED (must appear
// in whatever colormap the frame ends up using) or merely a REPLACE_TRANSP
// candidate (unchanged from the previous frame, so it may be swapped for
// transparency instead), mirroring get_used_colors's two-level need array.
const (
	needNone          = 0
	needReplaceTransp = 1
	needRequired      = 2
)

// subimage is one frame's computed optimization data: the changed
// rectangle, its disposal, and which pool colors it needs. Analogous to
// Gif_OptData.
type subimage struct {
	left, top, width, height int
	disposal                 gif.Disposal
	need                     []uint8
	requiredCount            int
}

// Optimize rewrites every frame of s to the smallest changed rectangle,
// assigns a shared global colormap sized to fit as many frames as
// possible, and falls back to a per-frame local colormap for frames whose
// required colors don't fit. Returns a new stream (or s itself when s has
// no images). s keeps its frames, but it is not left entirely untouched:
// a zero screen size is filled in from its frames, frames reaching past
// the screen are clipped in place, and the Pixel scratch fields of its
// colormaps are overwritten. Grounded on optimize.c's optimize_fragments
// top-level sequence:
// initialize, create_subimages, create_out_global_map,
// create_new_image_data, finalize.
func Optimize(s *gif.Stream, flags Flags) *gif.Stream {
	if len(s.Images) < 1 {
		return s
	}

	s.CalculateScreenSize(false)
	w, h := int(s.ScreenWidth), int(s.ScreenHeight)
	for _, img := range s.Images {
		img.Clip(0, 0, w, h)
	}

	p := newPool()
	anyGlobalUsers := false
	firstTransparentColor := (*gif.Color)(nil)
	for _, img := range s.Images {
		cm := img.Local
		if cm == nil {
			anyGlobalUsers = true
			cm = s.Global
		}
		registerColors(p, cm)
		if img.Transparent >= 0 && firstTransparentColor == nil && cm != nil && img.Transparent < cm.Len() {
			c := cm.Colors[img.Transparent]
			firstTransparentColor = &c
		}
	}
	if anyGlobalUsers {
		registerColors(p, s.Global)
	}
	if firstTransparentColor != nil {
		p.colors[transp] = *firstTransparentColor
	}

	background := transp
	if s.Images[0].Transparent < 0 && s.Global != nil && s.Background < s.Global.Len() {
		background = p.index[keyOf(s.Global.Colors[s.Background])]
	}

	subimages := createSubimages(s, p, w, h, flags, background)
	globalMap, inGlobal := createOutGlobalMap(s, p, subimages)
	out := createNewImageData(s, p, subimages, globalMap, inGlobal, w, h)

	out.Background = byte256(background, out.Global)
	finalize(out, flags)
	return out
}

func keyOf(c gif.Color) colorKey { return colorKey{c.R, c.G, c.B} }

func registerColors(p *pool, cm *gif.Colormap) {
	if cm == nil {
		return
	}
	for i, c := range cm.Colors {
		idx := p.add(c)
		cm.Colors[i].Pixel = uint32(idx)
	}
}

func byte256(v int, cm *gif.Colormap) int {
	if v < 0 || (cm != nil && v >= cm.Len()) {
		return 0
	}
	return v
}

// compositeScreen paints img's opaque pixels onto a full-screen buffer of
// pool indices (dst), skipping the frame's own transparent pixels.
// Grounded on opttemplate.c's apply_frame.
func compositeScreen(s *gif.Stream, img *gif.Image, dst []int, w int) {
	cm := img.Local
	if cm == nil {
		cm = s.Global
	}
	mapTo := make([]int, 256)
	for i := 0; i < 256; i++ {
		if cm != nil && i < cm.Len() {
			mapTo[i] = int(cm.Colors[i].Pixel)
		}
	}
	if img.Pixels == nil {
		return
	}
	for y := 0; y < int(img.Height); y++ {
		row := img.Pixels[y]
		rowOff := (int(img.Top)+y)*w + int(img.Left)
		for x, px := range row {
			if int(px) == img.Transparent {
				continue
			}
			dst[rowOff+x] = mapTo[px]
		}
	}
}

func eraseRect(dst []int, left, top, width, height, w int) {
	for y := 0; y < height; y++ {
		rowOff := (top+y)*w + left
		for x := 0; x < width; x++ {
			dst[rowOff+x] = transp
		}
	}
}

func copyRect(dst, src []int, left, top, width, height, w int) {
	for y := 0; y < height; y++ {
		rowOff := (top+y)*w + left
		copy(dst[rowOff:rowOff+width], src[rowOff:rowOff+width])
	}
}

// createSubimages computes, for every frame, the smallest rectangle that
// differs from the composited screen as it stood after the previous
// frame's disposal, plus which pool colors that rectangle needs. Grounded
// on opttemplate.c's create_subimages, simplified: the background-disposal
// lookahead border expansion (expand_difference_bounds) is not ported --
// see DESIGN.md -- so every subimage is emitted with ASIS disposal and is
// never upgraded to BACKGROUND.
func createSubimages(s *gif.Stream, p *pool, w, h int, flags Flags, background int) []*subimage {
	size := w * h
	lastData := make([]int, size)
	thisData := make([]int, size)
	var previousData []int

	out := make([]*subimage, len(s.Images))
	useTransparency := flags&0xFFFF > Level1

	for i, img := range s.Images {
		if img.Disposal == gif.DisposalPrevious {
			previousData = append([]int(nil), thisData...)
		}

		compositeScreen(s, img, thisData, w)

		sub := &subimage{disposal: gif.DisposalAsis}
		if i > 0 {
			sub.left, sub.top, sub.width, sub.height = differenceBounds(lastData, thisData, w, h)
		} else {
			sub.left, sub.top, sub.width, sub.height = int(img.Left), int(img.Top), int(img.Width), int(img.Height)
		}
		if sub.width <= 0 || sub.height <= 0 {
			sub.left, sub.top, sub.width, sub.height = int(img.Left), int(img.Top), 1, 1
		}

		wantTransparency := useTransparency && i > 0
		if i == 0 && background == transp {
			wantTransparency = true
		}
		markUsedColors(sub, lastData, thisData, w, wantTransparency, len(p.colors))

		out[i] = sub

		copyRect(lastData, thisData, sub.left, sub.top, sub.width, sub.height, w)

		switch img.Disposal {
		case gif.DisposalBackground:
			eraseRect(thisData, int(img.Left), int(img.Top), int(img.Width), int(img.Height), w)
		case gif.DisposalPrevious:
			thisData, previousData = previousData, thisData
		}
	}
	return out
}

// differenceBounds finds the smallest rectangle containing every pixel
// where a and b disagree. Grounded on opttemplate.c's find_difference_bounds
// (without the "reuse previous bounds as a starting guess" speed
// optimization, which only affects performance, not the result).
func differenceBounds(a, b []int, w, h int) (left, top, width, height int) {
	top, bottom := 0, h-1
	for top < h && rowEqual(a, b, top, w) {
		top++
	}
	for bottom >= top && rowEqual(a, b, bottom, w) {
		bottom--
	}
	if top > bottom {
		return 0, 0, 0, 0
	}
	left, right := w, 0
	for y := top; y <= bottom; y++ {
		rowOff := y * w
		for x := 0; x < left; x++ {
			if a[rowOff+x] != b[rowOff+x] {
				break
			}
		}
		for x := 0; x < w; x++ {
			if a[rowOff+x] != b[rowOff+x] {
				if x < left {
					left = x
				}
				break
			}
		}
		for x := w - 1; x > right; x-- {
			if a[rowOff+x] != b[rowOff+x] {
				right = x
				break
			}
		}
	}
	return left, top, right + 1 - left, bottom + 1 - top
}

func rowEqual(a, b []int, y, w int) bool {
	rowOff := y * w
	for x := 0; x < w; x++ {
		if a[rowOff+x] != b[rowOff+x] {
			return false
		}
	}
	return true
}

// markUsedColors fills sub.need: REQUIRED for pool colors that actually
// changed within the bounding box, REPLACE_TRANSP for colors that didn't
// change (candidates to swap for transparency), then resolves the
// candidate/required/transparency tradeoffs exactly as get_used_colors
// does: force transparency off if there isn't room for it, force it on if
// the frame wants it and there's room, and otherwise promote every
// REPLACE_TRANSP color straight to REQUIRED.
func markUsedColors(sub *subimage, last, this []int, w int, wantTransparency bool, poolSize int) {
	need := make([]uint8, poolSize)
	for y := sub.top; y < sub.top+sub.height; y++ {
		rowOff := y * w
		for x := sub.left; x < sub.left+sub.width; x++ {
			v := this[rowOff+x]
			if v != last[rowOff+x] {
				need[v] = needRequired
			} else if need[v] == needNone {
				need[v] = needReplaceTransp
			}
		}
	}
	if need[transp] != needNone {
		need[transp] = needRequired
	}

	var required, replaceCount int
	for _, n := range need {
		switch n {
		case needRequired:
			required++
		case needReplaceTransp:
			replaceCount++
		}
	}

	if wantTransparency && replaceCount+required > 256 {
		wantTransparency = false
	}
	if replaceCount > 0 && wantTransparency && need[transp] == needNone {
		need[transp] = needRequired
		required++
	}
	if !wantTransparency {
		for i, n := range need {
			if n == needReplaceTransp {
				need[i] = needRequired
				required++
			}
		}
	}
	if required < 256 && wantTransparency && need[transp] == needNone {
		need[transp] = needRequired
		required++
	}

	sub.need = need
	sub.requiredCount = required
}

// createOutGlobalMap assigns as many frequently-required pool colors as
// possible to a shared global colormap, up to 256 entries. Grounded on
// optimize.c's create_out_global_map, with the exact penalty-weighted
// elimination order replaced by a direct frequency sort -- both pursue the
// same goal (keep colors enough frames need in the global map so fewer
// frames fall back to a local one); see DESIGN.md.
func createOutGlobalMap(s *gif.Stream, p *pool, subimages []*subimage) (*gif.Colormap, []int) {
	frequency := make([]int, len(p.colors))
	for _, sub := range subimages {
		for i, n := range sub.need {
			if n == needRequired {
				frequency[i]++
			}
		}
	}

	order := make([]int, 0, len(p.colors)-1)
	for i := 1; i < len(p.colors); i++ {
		if frequency[i] > 0 {
			order = append(order, i)
		}
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && frequency[order[j]] > frequency[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	global := gif.NewColormap(gif.MaxColormapSize)
	inGlobal := make([]int, len(p.colors))
	for i := range inGlobal {
		inGlobal[i] = -1
	}
	for _, idx := range order {
		if global.Len() >= gif.MaxColormapSize {
			break
		}
		inGlobal[idx] = global.AddColor(p.colors[idx])
	}
	_ = s
	return global, inGlobal
}

// createNewImageData builds the final output stream: one image per
// subimage, using the global colormap when every required color fits in
// it, otherwise a fresh local colormap sized to exactly the colors this
// frame needs. Grounded on optimize.c's prepare_colormap/prepare_colormap_map
// and opttemplate.c's create_new_image_data.
func createNewImageData(s *gif.Stream, p *pool, subimages []*subimage, global *gif.Colormap, inGlobal []int, w, h int) *gif.Stream {
	out := gif.NewStream()
	out.ScreenWidth, out.ScreenHeight = uint16(w), uint16(h)
	out.Global = global
	out.LoopCount = s.LoopCount
	out.EndComment = s.EndComment.Copy()

	size := w * h
	lastData := make([]int, size)
	thisData := make([]int, size)
	var previousData []int

	for i, img := range s.Images {
		sub := subimages[i]

		if img.Disposal == gif.DisposalPrevious {
			previousData = append([]int(nil), thisData...)
		}
		compositeScreen(s, img, thisData, w)

		mapTo, localcm, transparent := prepareColormap(p, sub, global, inGlobal)

		newImg := gif.NewImage()
		newImg.Identifier = img.Identifier
		newImg.Delay = img.Delay
		newImg.Disposal = sub.disposal
		newImg.Interlace = img.Interlace
		newImg.Left, newImg.Top = uint16(sub.left), uint16(sub.top)
		newImg.Width, newImg.Height = uint16(sub.width), uint16(sub.height)
		newImg.Local = localcm
		newImg.Transparent = transparent
		newImg.Comment = img.Comment.Copy()
		newImg.CreateUncompressed()

		for y := 0; y < sub.height; y++ {
			rowOff := (sub.top+y)*w + sub.left
			dstRow := newImg.Pixels[y]
			for x := 0; x < sub.width; x++ {
				off := rowOff + x
				v := thisData[off]
				// Unchanged from what the previous frame left on screen:
				// encode as transparent instead of the real color.
				if transparent != gif.NoTransparency && v == lastData[off] {
					dstRow[x] = byte(transparent)
				} else {
					dstRow[x] = byte(mapTo[v])
				}
			}
		}

		out.AddImage(newImg)

		copyRect(lastData, thisData, sub.left, sub.top, sub.width, sub.height, w)
		switch img.Disposal {
		case gif.DisposalBackground:
			eraseRect(thisData, int(img.Left), int(img.Top), int(img.Width), int(img.Height), w)
		case gif.DisposalPrevious:
			thisData, previousData = previousData, thisData
		}
	}
	return out
}

// prepareColormap builds the pool-index -> output-colormap-index map for
// one frame, trying the global colormap first and falling back to a fresh
// local one holding exactly this frame's required colors, sorted by RGB
// for a canonical local colormap layout. Grounded on
// optimize.c's prepare_colormap/prepare_colormap_map.
func prepareColormap(p *pool, sub *subimage, global *gif.Colormap, inGlobal []int) (mapTo []int, localcm *gif.Colormap, transparent int) {
	mapTo = make([]int, len(p.colors))
	transparent = gif.NoTransparency

	fitsGlobal := true
	for i, n := range sub.need {
		if n == needRequired && i != transp && inGlobal[i] < 0 {
			fitsGlobal = false
			break
		}
	}

	var used [256]bool
	if fitsGlobal {
		for i, n := range sub.need {
			if n == needRequired && i != transp {
				mapTo[i] = inGlobal[i]
				used[inGlobal[i]] = true
			}
		}
	} else {
		localcm = gif.NewColormap(gif.MaxColormapSize)
		type entry struct {
			pool int
			c    gif.Color
		}
		var entries []entry
		for i, n := range sub.need {
			if n == needRequired && i != transp {
				entries = append(entries, entry{i, p.colors[i]})
			}
		}
		for i := 1; i < len(entries); i++ {
			for j := i; j > 0 && rgbLess(entries[j].c, entries[j-1].c); j-- {
				entries[j], entries[j-1] = entries[j-1], entries[j]
			}
		}
		for _, e := range entries {
			idx := localcm.AddColor(e.c)
			mapTo[e.pool] = idx
			used[idx] = true
		}
	}

	if sub.need[transp] == needRequired {
		destcm := global
		if localcm != nil {
			destcm = localcm
		}
		slot := -1
		for i := 0; i < destcm.Len(); i++ {
			if !used[i] {
				slot = i
				break
			}
		}
		if slot < 0 && destcm.Len() < gif.MaxColormapSize {
			slot = destcm.AddColor(gif.Color{})
		}
		if slot >= 0 {
			mapTo[transp] = slot
			transparent = slot
		}
	}
	return mapTo, localcm, transparent
}

func rgbLess(a, b gif.Color) bool {
	va := int(a.R)<<16 | int(a.G)<<8 | int(a.B)
	vb := int(b.R)<<16 | int(b.G)<<8 | int(b.B)
	return va < vb
}

// finalize runs the cleanup pass optimize.c's finalize_optimizer applies
// after the per-frame rewrite: drop degenerate single-pixel fully-
// transparent frames (folding their delay into the previous frame) unless
// KeepEmpty is set, then prefer DisposalNone to DisposalAsis wherever the
// difference is unobservable (no delay, no transparency) since it lets the
// graphic control extension be omitted.
func finalize(s *gif.Stream, flags Flags) {
	if flags&KeepEmpty == 0 {
		for i := 1; i < len(s.Images); i++ {
			img := s.Images[i]
			prev := s.Images[i-1]
			if img.Width != 1 || img.Height != 1 || img.Transparent < 0 ||
				img.Identifier != "" || (img.Comment != nil && len(img.Comment.Strs) > 0) {
				continue
			}
			if img.Disposal != gif.DisposalAsis && img.Disposal != gif.DisposalNone && img.Disposal != gif.DisposalPrevious {
				continue
			}
			if img.Delay == 0 || prev.Delay == 0 {
				continue
			}
			if img.Pixels == nil || int(img.Pixels[0][0]) != img.Transparent {
				continue
			}
			if prev.Disposal != gif.DisposalAsis && prev.Disposal != gif.DisposalNone {
				continue
			}
			prev.Delay += img.Delay
			s.RemoveImage(i)
			i--
		}
	}

	for _, img := range s.Images {
		if img.Disposal == gif.DisposalAsis && img.Delay == 0 && img.Transparent < 0 {
			img.Disposal = gif.DisposalNone
		}
	}
}
