package mergeset

import (
	"github.com/kohler/gogifsicle/gif"
	"github.com/kohler/gogifsicle/gif/lzw"
	"github.com/kohler/gogifsicle/gif/transform"
)

// MergeRecord is one (source stream, source image) pair to fold into the
// output stream a MergeFrameInterval call builds, plus the per-frame
// overrides a caller (typically one "-f" frame selector on the command
// line) may apply before the folded frame is appended. Grounded on
// merge.c's Gt_Frame / Gt_Frameset.
type MergeRecord struct {
	Stream *gif.Stream
	Image  *gif.Image

	// HasTransparent, if set, overrides the merged image's transparent
	// index (in destination colormap space) to Transparent -- pass
	// gif.NoTransparency to force a frame opaque.
	HasTransparent bool
	Transparent    int

	// Crop, if non-nil, is applied to the merged frame immediately after
	// it is folded in (§4.7 step 5).
	Crop *transform.Crop

	// HasDelay/Delay and HasDisposal/Disposal override the source image's
	// own delay/disposal when set.
	HasDelay    bool
	Delay       int
	HasDisposal bool
	Disposal    gif.Disposal

	Identifier string
	Comment    *gif.Comment
}

// IntervalConfig is the stream-level configuration a MergeFrameInterval
// call produces its output Stream under (§4.7's "configuration": loop
// count, screen size override, background, compression policy, comment
// and extension suppression flags).
type IntervalConfig struct {
	// Background, if non-nil, is an explicit literal background color
	// overriding any background a source stream carries. When resolved
	// (explicitly or detected from a source), it is reserved into
	// destination colormap slot 255 via ENSURE-SLOT-255.
	Background *gif.Color

	LoopCount int32

	// ScreenWidth/ScreenHeight, if either is nonzero, fix the output
	// screen size; otherwise it is tracked as the running max of
	// (left+width, top+height) across every merged frame (§4.7 step 6).
	ScreenWidth, ScreenHeight uint16

	NoComments   bool
	NoExtensions bool

	// CompressImmediately trades peak memory for CPU: each frame is
	// LZW-compressed into Image.Compressed and its uncompressed pixels
	// released as soon as it is merged, rather than holding every frame's
	// pixels until the whole stream is written (§4.7 step 7, §5).
	CompressImmediately bool

	Report gif.ErrorHandler
}

// MergeFrameInterval folds an ordered list of merge records into one new
// output Stream: colormaps are reconciled frame by frame (falling back to
// a local colormap only where the shared global one cannot hold a frame's
// colors), the background color is resolved and reserved, the screen size
// is tracked or fixed, per-frame crop/delay/disposal/identifier/comment
// overrides are applied, and frames a crop reduces to nothing are dropped
// with their delay and comments salvaged into their neighbors. This is the
// frame merger's (C7) top-level entry point, grounded on merge.c's
// merge_frame_interval.
func MergeFrameInterval(records []MergeRecord, cfg IntervalConfig) *gif.Stream {
	out := gif.NewStream()
	out.Global = gif.NewColormap(gif.MaxColormapSize)
	out.LoopCount = cfg.LoopCount

	bg := resolveBackground(records, cfg)
	var pendingBackground *gif.Color
	if bg != nil {
		pendingBackground = bg
	}

	mergedStreams := make(map[*gif.Stream]bool)
	var screenW, screenH int
	firstImage := true
	pendingDelay := 0
	pendingComment := gif.NewComment()

	for _, rec := range records {
		if rec.Stream == nil || rec.Image == nil {
			continue
		}
		if !mergedStreams[rec.Stream] {
			MergeStream(out, rec.Stream, cfg.NoComments)
			mergedStreams[rec.Stream] = true
		}

		desti := mergeImage(out, rec.Image, rec.Stream.Global, &pendingBackground)
		desti.Comment.Merge(pendingComment)
		pendingComment = gif.NewComment()

		if !cfg.NoExtensions && len(rec.Image.Extensions) > 0 {
			desti.Extensions = append(desti.Extensions, rec.Image.Extensions...)
		}
		if rec.Identifier != "" {
			desti.Identifier = rec.Identifier
		}
		if rec.Comment != nil && !cfg.NoComments {
			desti.Comment.Merge(rec.Comment)
		}
		if rec.HasDelay {
			desti.Delay = uint16(rec.Delay)
		}
		if rec.HasDisposal {
			desti.Disposal = rec.Disposal
		}
		if rec.HasTransparent {
			desti.Transparent = rec.Transparent
		}

		if rec.Crop != nil {
			if !transform.CropImage(desti, rec.Crop, firstImage) {
				// Totally cropped: don't emit it, salvage its delay into
				// the previous output image and queue its comments for
				// the next one (§4.7 "Totally-cropped frames").
				if n := out.ImageCount(); n >= 2 {
					out.Images[n-2].Delay += desti.Delay
				} else {
					pendingDelay += int(desti.Delay)
				}
				pendingComment.Merge(desti.Comment)
				out.RemoveImage(out.ImageCount() - 1)
				continue
			}
		}

		if pendingDelay > 0 {
			desti.Delay += uint16(pendingDelay)
			pendingDelay = 0
		}
		firstImage = false

		if right := int(desti.Left) + int(desti.Width); right > screenW {
			screenW = right
		}
		if bottom := int(desti.Top) + int(desti.Height); bottom > screenH {
			screenH = bottom
		}

		if cfg.CompressImmediately {
			compressAndRelease(desti)
		}
	}

	if cfg.ScreenWidth > 0 || cfg.ScreenHeight > 0 {
		out.ScreenWidth, out.ScreenHeight = cfg.ScreenWidth, cfg.ScreenHeight
	} else {
		out.ScreenWidth, out.ScreenHeight = uint16(screenW), uint16(screenH)
	}

	reserveBackgroundIndex(out, bg, pendingBackground, cfg.Report)

	// Any comment salvaged off a trailing totally-cropped frame has no
	// later frame to attach to; fold it into the end-of-stream comment
	// instead of dropping it.
	if len(pendingComment.Strs) > 0 && !cfg.NoComments {
		out.EndComment.Merge(pendingComment)
	}

	return out
}

// resolveBackground implements §4.7 step 2's priority order: an explicit
// config override, else the first record's stream background (if it names
// a valid global entry), else whatever color every BACKGROUND-disposal
// first frame among the records' distinct source streams agrees on
// (warning once if they disagree). Returns nil if no background could be
// resolved.
func resolveBackground(records []MergeRecord, cfg IntervalConfig) *gif.Color {
	if cfg.Background != nil {
		c := *cfg.Background
		return &c
	}
	if len(records) > 0 {
		s := records[0].Stream
		if s != nil && s.Global != nil && s.Background != gif.NoBackground && s.Background < s.Global.Len() {
			c := s.Global.Colors[s.Background]
			return &c
		}
	}

	var found *gif.Color
	conflict := false
	seen := make(map[*gif.Stream]bool)
	for _, rec := range records {
		s := rec.Stream
		if s == nil || seen[s] || len(s.Images) == 0 {
			continue
		}
		seen[s] = true
		first := s.Images[0]
		if first.Disposal != gif.DisposalBackground {
			continue
		}
		cm := first.EffectiveColormap(s)
		if cm == nil || s.Background == gif.NoBackground || s.Background >= cm.Len() {
			continue
		}
		c := cm.Colors[s.Background]
		if found == nil {
			found = &c
		} else if !gif.ColorEq(*found, c) {
			conflict = true
		}
	}
	if conflict && cfg.Report != nil {
		cfg.Report(gif.Diagnostic{
			Severity:   gif.SeverityWarning,
			Message:    "conflicting backgrounds among merged streams",
			ImageIndex: -1,
		})
	}
	return found
}

// reserveBackgroundIndex finalizes the background index once every frame
// has been merged. If the ENSURE-SLOT-255 directive never fired (the
// global colormap never reached 255 entries), the background is appended
// now, claiming whatever slot is left; if the colormap is already full, the
// background is dropped with a warning rather than failing the merge.
func reserveBackgroundIndex(out *gif.Stream, bg *gif.Color, stillPending *gif.Color, report gif.ErrorHandler) {
	if bg == nil {
		out.Background = gif.NoBackground
		return
	}
	if stillPending == nil {
		if idx := out.Global.FindColor(*bg, -1); idx >= 0 {
			out.Background = idx
			return
		}
	}
	if out.Global.Len() < gif.MaxColormapSize {
		out.Background = out.Global.AddColor(*bg)
		return
	}
	out.Background = gif.NoBackground
	if report != nil {
		report(gif.Diagnostic{
			Severity:   gif.SeverityWarning,
			Message:    "no colormap room left to reserve a background color, dropping it",
			ImageIndex: -1,
		})
	}
}

// compressAndRelease LZW-compresses img's current pixels into
// img.Compressed and drops the uncompressed copy, implementing
// compress_immediately's peak-memory trade-off (§4.7 step 7, §5).
// Grounded on the same min-code-bits derivation writer.go uses
// (imageMinCodeBits) and gif/lzw.Encoder.
func compressAndRelease(img *gif.Image) {
	if img.Pixels == nil {
		return
	}
	bits := 2
	for n := img.ColorBound(); (1 << uint(bits)) < n; bits++ {
	}
	buf := gif.NewByteBuffer()
	lzw.NewEncoder().Encode(buf, img.Pixels, bits)
	img.Compressed = buf.Bytes()
	img.MinCodeBits = bits
	img.ReleaseUncompressed()
}
