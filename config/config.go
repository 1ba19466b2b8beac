// Package config parses the optional JSON "output config" document a CLI
// collaborator may hand to the merger and optimizer: which source streams
// to combine, loop/background/comment settings for the result, and the
// geometry/colormap/optimization operations to run over it before writing.
//
// Parsing is deliberately lenient in the same spirit as gif.Read: a
// malformed or partial document never aborts, it just produces fewer
// settings and a Diagnostic per thing it couldn't make sense of. gjson's
// schema-free, path-based traversal is a natural fit for that -- there is
// no struct to unmarshal into and fail on, just paths we look up and
// either find or don't.
package config

import (
	"github.com/tidwall/gjson"

	"github.com/kohler/gogifsicle/gif"
	"github.com/kohler/gogifsicle/gif/optimize"
	"github.com/kohler/gogifsicle/gif/quantize"
	"github.com/kohler/gogifsicle/gif/transform"
)

// OptimizeSpec carries the "optimize" section of a manifest.
type OptimizeSpec struct {
	Enabled   bool
	Level     optimize.Flags
	KeepEmpty bool
}

// ResizeSpec carries the "resize" section: either dimension may be zero,
// meaning "derive from the other to preserve aspect ratio", matching
// transform.ResizeStream.
type ResizeSpec struct {
	Width, Height int
}

// ColorsSpec carries the "colors" section: a requested color count plus
// the dither method and scan order. Count is recorded as parsed;
// quantize.Quantize takes no color count and always builds 256 entries.
type ColorsSpec struct {
	Count      int
	Dither     quantize.Method
	Serpentine bool
}

// Manifest is the parsed, ready-to-use form of the config document.
type Manifest struct {
	Sources []string
	Output  string

	LoopCount  int32
	Background int
	NoComments bool

	Optimize     OptimizeSpec
	Crop         *transform.Crop
	FlipVertical *bool
	Rotate       transform.Rotation
	HasRotate    bool
	Resize       *ResizeSpec
	ColorChanges []transform.ColorChange
	Colors       *ColorsSpec
}

// Parse reads a manifest document from data. An absent section is skipped
// silently and keeps its default; a section of the wrong JSON type or
// otherwise unusable is, in most cases, skipped and reported as a warning
// Diagnostic rather than failing the whole parse -- matching the "report
// and continue" posture gif.Read takes toward malformed bytes.
func Parse(data []byte) (*Manifest, []gif.Diagnostic) {
	var diags []gif.Diagnostic
	warn := func(msg string) {
		diags = append(diags, gif.Diagnostic{
			Severity:   gif.SeverityWarning,
			Message:    msg,
			ImageIndex: -1,
		})
	}

	if !gjson.ValidBytes(data) {
		warn("config: not valid JSON, ignoring")
		return &Manifest{LoopCount: gif.NoLoop, Background: gif.NoBackground}, diags
	}

	root := gjson.ParseBytes(data)
	m := &Manifest{LoopCount: gif.NoLoop, Background: gif.NoBackground}

	if v := root.Get("sources"); v.IsArray() {
		for _, src := range v.Array() {
			if src.Type == gjson.String {
				m.Sources = append(m.Sources, src.String())
			} else {
				warn("config: sources[] entry is not a string, skipping")
			}
		}
	}

	if v := root.Get("output"); v.Exists() {
		if v.Type == gjson.String {
			m.Output = v.String()
		} else {
			warn("config: output is not a string, ignoring")
		}
	}

	if v := root.Get("loopCount"); v.Exists() {
		if v.Type == gjson.Number {
			m.LoopCount = int32(v.Int())
		} else {
			warn("config: loopCount is not a number, ignoring")
		}
	}

	if v := root.Get("background"); v.Exists() {
		if v.Type == gjson.Number {
			m.Background = int(v.Int())
		} else {
			warn("config: background is not a number, ignoring")
		}
	}

	if v := root.Get("noComments"); v.Exists() {
		m.NoComments = v.Bool()
	}

	parseOptimize(root.Get("optimize"), m, warn)
	parseCrop(root.Get("crop"), m, warn)
	parseFlip(root.Get("flip"), m, warn)
	parseRotate(root.Get("rotate"), m, warn)
	parseResize(root.Get("resize"), m, warn)
	parseColorChanges(root.Get("colorChanges"), m, warn)
	parseColors(root.Get("colors"), m, warn)

	return m, diags
}

func parseOptimize(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	// A bare boolean or number ("optimize": true, "optimize": 2) is
	// accepted as a shorthand for {"level": N}; an object gives more
	// control over keepEmpty too.
	switch v.Type {
	case gjson.True, gjson.False:
		m.Optimize.Enabled = v.Bool()
		if m.Optimize.Enabled {
			m.Optimize.Level = optimize.Level1
		}
		return
	case gjson.Number:
		m.Optimize.Enabled = true
		m.Optimize.Level = levelFromInt(int(v.Int()))
		return
	case gjson.JSON:
		m.Optimize.Enabled = true
		m.Optimize.Level = optimize.Level1
		if lv := v.Get("level"); lv.Exists() && lv.Type == gjson.Number {
			m.Optimize.Level = levelFromInt(int(lv.Int()))
		}
		if ke := v.Get("keepEmpty"); ke.Exists() {
			m.Optimize.KeepEmpty = ke.Bool()
		}
		return
	default:
		warn("config: optimize has an unsupported shape, ignoring")
	}
}

func levelFromInt(n int) optimize.Flags {
	switch {
	case n >= 3:
		return optimize.Level3
	case n == 2:
		return optimize.Level2
	default:
		return optimize.Level1
	}
}

func parseCrop(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	if v.Type != gjson.JSON {
		warn("config: crop is not an object, ignoring")
		return
	}
	c := &transform.Crop{
		X: int(v.Get("x").Int()),
		Y: int(v.Get("y").Int()),
		W: int(v.Get("w").Int()),
		H: int(v.Get("h").Int()),
	}
	if v.Get("w").Int() == 0 || v.Get("h").Int() == 0 {
		warn("config: crop needs nonzero w and h, ignoring")
		return
	}
	c.TransparentEdges = v.Get("trimTransparentEdges").Bool()
	m.Crop = c
}

func parseFlip(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	switch v.String() {
	case "horizontal":
		b := false
		m.FlipVertical = &b
	case "vertical":
		b := true
		m.FlipVertical = &b
	default:
		warn("config: flip must be \"horizontal\" or \"vertical\", ignoring")
	}
}

func parseRotate(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	switch int(v.Int()) {
	case 90:
		m.Rotate, m.HasRotate = transform.Rotate90, true
	case 270, -90:
		m.Rotate, m.HasRotate = transform.Rotate270, true
	default:
		warn("config: rotate must be 90 or 270 degrees, ignoring")
	}
}

func parseResize(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	if v.Type != gjson.JSON {
		warn("config: resize is not an object, ignoring")
		return
	}
	w, h := int(v.Get("width").Int()), int(v.Get("height").Int())
	if w <= 0 && h <= 0 {
		warn("config: resize needs a positive width or height, ignoring")
		return
	}
	m.Resize = &ResizeSpec{Width: w, Height: h}
}

func parseColorChanges(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	if !v.IsArray() {
		warn("config: colorChanges is not an array, ignoring")
		return
	}
	for _, entry := range v.Array() {
		if entry.Type != gjson.JSON {
			warn("config: colorChanges[] entry is not an object, skipping")
			continue
		}
		ch, ok := parseColorChange(entry)
		if !ok {
			warn("config: colorChanges[] entry missing old/new color, skipping")
			continue
		}
		m.ColorChanges = append(m.ColorChanges, ch)
	}
}

func parseColorChange(v gjson.Result) (transform.ColorChange, bool) {
	var ch transform.ColorChange
	newC, ok := parseColor(v.Get("new"))
	if !ok {
		return ch, false
	}
	ch.New = newC

	if idx := v.Get("index"); idx.Exists() {
		ch.By = true
		ch.Index = int(idx.Int())
		return ch, true
	}
	oldC, ok := parseColor(v.Get("old"))
	if !ok {
		return ch, false
	}
	ch.Old = oldC
	return ch, true
}

func parseColor(v gjson.Result) (gif.Color, bool) {
	if v.Type != gjson.JSON {
		return gif.Color{}, false
	}
	r, rok := v.Get("r"), v.Get("r").Exists()
	g, gok := v.Get("g"), v.Get("g").Exists()
	b, bok := v.Get("b"), v.Get("b").Exists()
	if !rok || !gok || !bok {
		return gif.Color{}, false
	}
	return gif.Color{R: byte(r.Int()), G: byte(g.Int()), B: byte(b.Int())}, true
}

func parseColors(v gjson.Result, m *Manifest, warn func(string)) {
	if !v.Exists() {
		return
	}
	var spec ColorsSpec
	switch v.Type {
	case gjson.Number:
		spec.Count = int(v.Int())
	case gjson.JSON:
		spec.Count = int(v.Get("count").Int())
		spec.Serpentine = v.Get("serpentine").Bool()
		if d := v.Get("dither"); d.Exists() && d.Type == gjson.String {
			spec.Dither = ditherMethodFromString(d.String())
		}
	default:
		warn("config: colors has an unsupported shape, ignoring")
		return
	}
	if spec.Count <= 0 || spec.Count > gif.MaxColormapSize {
		warn("config: colors.count out of range, ignoring")
		return
	}
	if spec.Dither == "" {
		spec.Dither = quantize.None
	}
	m.Colors = &spec
}

func ditherMethodFromString(s string) quantize.Method {
	switch s {
	case string(quantize.DitherFloydSteinberg):
		return quantize.DitherFloydSteinberg
	case string(quantize.DitherFalseFloydSteinberg):
		return quantize.DitherFalseFloydSteinberg
	case string(quantize.DitherStucki):
		return quantize.DitherStucki
	case string(quantize.DitherAtkinson):
		return quantize.DitherAtkinson
	default:
		return quantize.None
	}
}
