// Package mergeset reconciles frames drawn from one or more input streams
// into a single output stream sharing (where possible) one global
// colormap, falling back to a frame-local colormap only when a frame's
// colors genuinely can't fit in the shared one. This is the "frame merger"
// (C7): the component Gifsicle.EachFrame and the animation optimizer both
// build on to assemble a single timeline before encoding it.
package mergeset

import "github.com/kohler/gogifsicle/gif"

// MarkUsedColorsIn scans img's pixels and marks every entry of cm (the
// frame's effective colormap -- its local colormap, or its stream's global
// one) it actually uses with HasPixel = 1 (HasPixel = 2 reserves the
// transparent entry, if any, without counting it as a "real" used color).
// Grounded on merge.c's mark_used_colors, including its early-exit once
// every entry has been seen.
func MarkUsedColorsIn(cm *gif.Colormap, img *gif.Image) {
	ncol := cm.Len()
	have := make([]bool, 256)
	for i := ncol; i < 256; i++ {
		have[i] = true
	}
	total := 0

	if img.Transparent >= ncol {
		img.Transparent = gif.NoTransparency
	}
	if img.Transparent >= 0 && !have[img.Transparent] {
		have[img.Transparent] = true
		total++
		cm.Colors[img.Transparent].HasPixel = 2
	}

	oldTotal := total
	for _, row := range img.Pixels {
		if total >= ncol {
			break
		}
		for _, px := range row {
			if !have[px] {
				have[px] = true
				total++
			}
		}
	}

	if oldTotal < total {
		for i := 0; i < ncol; i++ {
			if have[i] && i != img.Transparent {
				cm.Colors[i].HasPixel = 1
			}
		}
	}
}

// MergeColormapIfPossible tries to fold every color src marks as used
// (HasPixel == 1) into dest, reusing an identical existing entry, adding a
// new entry, or recycling a dedicated-transparent slot (HasPixel == 2)
// before giving up. It records each accepted color's destination index
// back into src's Pixel scratch field. Returns false (leaving dest
// unmodified beyond any colors already folded in before the failure) if
// dest would need more than 256 colors -- the caller must then fall back
// to a local colormap for this frame. Grounded on merge.c's
// merge_colormap_if_possible.
func MergeColormapIfPossible(dest, src *gif.Colormap) bool {
	return mergeColormapIfPossible(dest, src, nil)
}

// mergeColormapIfPossible is MergeColormapIfPossible's implementation, with
// one addition: when pendingBackground points at a non-nil Color, it is the
// ENSURE-SLOT-255 directive's payload (§4.7 step 2) -- the literal
// background color a caller has committed to reserving destination slot
// 255 for. The moment dest holds 255 entries and a color is about to be
// appended as its 256th, the pending
// background is force-inserted into slot 255 (and *pendingBackground is
// cleared so this only happens once), before the current color's own
// mapping is resolved -- so a color that would otherwise have claimed slot
// 255 instead falls through to the reserved-transparent-slot reuse, or
// finally to requiring a local colormap. A nil pendingBackground (or one
// already cleared) leaves this identical to the original.
func mergeColormapIfPossible(dest, src *gif.Colormap, pendingBackground **gif.Color) bool {
	trivialMap := true

	for i := range src.Colors {
		c := &src.Colors[i]
		switch c.HasPixel {
		case 1:
			mapto := -1
			if int(c.Pixel) < dest.Len() {
				mapto = int(c.Pixel)
			}
			if mapto == -1 {
				mapto = dest.FindColor(*c, -1)
			}
			if mapto == -1 && pendingBackground != nil && *pendingBackground != nil && dest.Len() == gif.MaxColormapSize-1 {
				dest.AddColor(**pendingBackground)
				*pendingBackground = nil
			}
			if mapto == -1 && dest.Len() < gif.MaxColormapSize {
				mapto = dest.AddColor(*c)
			}
			if mapto == -1 {
				for x := 0; x < dest.Len(); x++ {
					if dest.Colors[x].HasPixel == 2 {
						dest.Colors[x] = *c
						mapto = x
						break
					}
				}
			}
			if mapto == -1 {
				return false
			}
			if mapto != i {
				trivialMap = false
			}
			c.Pixel = uint32(mapto)
			dest.Colors[mapto].HasPixel = 1

		case 2:
			if trivialMap && i == dest.Len() {
				dest.AddColor(*c)
			}
		}
	}
	return true
}

// MergeStream folds src's stream-level metadata into dest: dest inherits
// src's loop count if it doesn't already have one, and src's end-of-stream
// comment is appended to dest's, unless noComments suppresses that.
// Grounded on merge.c's merge_stream/merge_comments.
func MergeStream(dest, src *gif.Stream, noComments bool) {
	if src.Global != nil {
		src.Global.UnmarkPixel(256)
	}
	if dest.LoopCount < 0 {
		dest.LoopCount = src.LoopCount
	}
	if src.EndComment != nil && !noComments {
		dest.EndComment.Merge(src.EndComment)
	}
}

// MergeImage folds one source frame into dest, returning the newly
// appended *gif.Image. It marks srci's used colors against its effective
// colormap, tries to fold them into dest.Global, and falls back to a
// fresh local colormap sized to exactly the colors srci actually uses if
// dest.Global can't accommodate them. A dedicated transparent slot is
// reserved in whichever colormap the frame ends up using, preferring to
// keep the same index srci originally used. Grounded on merge.c's
// merge_image.
func MergeImage(dest *gif.Stream, srci *gif.Image, srcGlobal *gif.Colormap) *gif.Image {
	return mergeImage(dest, srci, srcGlobal, nil)
}

// mergeImage is MergeImage's implementation, additionally threading a
// pending ENSURE-SLOT-255 background (see mergeColormapIfPossible) through
// to the colormap merge. A nil pendingBackground makes this identical to
// MergeImage.
func mergeImage(dest *gif.Stream, srci *gif.Image, srcGlobal *gif.Colormap, pendingBackground **gif.Color) *gif.Image {
	imagecm := srci.Local
	if imagecm == nil {
		imagecm = srcGlobal
	}

	imagecm.Unmark()
	MarkUsedColorsIn(imagecm, srci)

	var mapTo [256]int
	var have [256]bool

	destcm := dest.Global
	var localcm *gif.Colormap

	if !mergeColormapIfPossible(dest.Global, imagecm, pendingBackground) {
		localcm = gif.NewColormap(gif.MaxColormapSize)
		for i := 0; i < imagecm.Len(); i++ {
			if imagecm.Colors[i].HasPixel == 1 {
				mapTo[i] = localcm.Len()
				have[i] = true
				localcm.AddColor(imagecm.Colors[i])
			}
		}
		destcm = localcm
	} else {
		for i := 0; i < imagecm.Len(); i++ {
			if imagecm.Colors[i].HasPixel == 1 {
				mapTo[i] = int(imagecm.Colors[i].Pixel)
				have[i] = true
			}
		}
	}

	if srci.Transparent > gif.NoTransparency {
		var revHave [256]bool
		for i := 0; i < 256; i++ {
			revHave[mapTo[i]] = true
		}
		foundTransparent := -1
		for i := destcm.Len() - 1; i >= 0; i-- {
			if !revHave[i] {
				foundTransparent = i
				if i == srci.Transparent {
					break
				}
			}
		}
		if foundTransparent < 0 {
			foundTransparent = destcm.AddColor(gif.Color{HasPixel: 2})
		}
		mapTo[srci.Transparent] = foundTransparent
		have[srci.Transparent] = true
	}

	desti := gif.NewImage()
	desti.Identifier = srci.Identifier
	if srci.Transparent > gif.NoTransparency {
		desti.Transparent = mapTo[srci.Transparent]
	}
	desti.Delay = srci.Delay
	desti.Disposal = srci.Disposal
	desti.Left, desti.Top = srci.Left, srci.Top
	desti.Interlace = srci.Interlace
	desti.Width, desti.Height = srci.Width, srci.Height
	desti.Local = localcm
	desti.Comment.Merge(srci.Comment)

	desti.CreateUncompressed()

	trivialMap := true
	for i := 0; i < 256 && trivialMap; i++ {
		if have[i] && mapTo[i] != i {
			trivialMap = false
		}
	}
	for y := 0; y < int(desti.Height); y++ {
		srcRow := srci.Pixels[y]
		dstRow := desti.Pixels[y]
		if trivialMap {
			copy(dstRow, srcRow)
		} else {
			for x, px := range srcRow {
				dstRow[x] = byte(mapTo[px])
			}
		}
	}

	dest.AddImage(desti)
	return desti
}
