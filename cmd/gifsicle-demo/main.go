// Command gifsicle-demo exercises the gogifsicle pipeline end to end:
// building synthetic animations, quantizing true-color frames down to a
// shared colormap, merging two streams into one timeline, optimizing the
// result, applying a few geometry transforms, and writing the outcome to
// disk. It takes no flags -- it is a tour of the library, not a CLI,
// mirroring the teacher's own example/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/kohler/gogifsicle/config"
	"github.com/kohler/gogifsicle/gif"
	"github.com/kohler/gogifsicle/gif/mergeset"
	"github.com/kohler/gogifsicle/gif/optimize"
	"github.com/kohler/gogifsicle/gif/quantize"
	"github.com/kohler/gogifsicle/gif/transform"
)

func main() {
	fmt.Println("gogifsicle demo")
	fmt.Println("===============")

	fmt.Println("\n1. building a moving-circle animation...")
	if err := movingCircle("circle.gif", 120, 90, 12); err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Println("wrote circle.gif")
	}

	fmt.Println("\n2. merging two animations and optimizing the result...")
	if err := mergeAndOptimize(); err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Println("wrote merged.gif")
	}

	fmt.Println("\n3. parsing an inline manifest and applying its transforms...")
	if err := applyManifest(); err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Println("wrote manifest-demo.gif")
	}
}

// buildCircleStream renders a moving red circle on a white background into
// frameCount GIF frames, quantizing the first frame's true color data to
// build a shared global colormap and dithering every later frame onto it.
func buildCircleStream(width, height, frameCount int) *gif.Stream {
	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = uint16(width), uint16(height)

	var cm *gif.Colormap
	for f := 0; f < frameCount; f++ {
		rgb := renderCircleFrame(width, height, f, frameCount)

		var rows [][]byte
		if cm == nil {
			cm, rows = quantize.Quantize(rgb, width, height, 10, quantize.DitherFloydSteinberg, true)
			s.Global = cm
		} else {
			rows = quantize.Dither(rgb, width, height, cm, quantize.DitherFloydSteinberg, true)
		}

		img := gif.NewImage()
		img.Width, img.Height = uint16(width), uint16(height)
		img.Delay = 10
		img.Disposal = gif.DisposalNone
		img.Pixels = rows
		s.AddImage(img)
	}
	return s
}

func renderCircleFrame(width, height, frame, frameCount int) []byte {
	rgb := make([]byte, width*height*3)
	centerX := (width * (frame + 1)) / (frameCount + 1)
	centerY := height / 2
	radius := height / 4

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-centerX, y-centerY
			if dx*dx+dy*dy <= radius*radius {
				rgb[i], rgb[i+1], rgb[i+2] = 220, 20, 20
			} else {
				rgb[i], rgb[i+1], rgb[i+2] = 255, 255, 255
			}
			i += 3
		}
	}
	return rgb
}

func movingCircle(name string, width, height, frameCount int) error {
	s := buildCircleStream(width, height, frameCount)
	s.LoopCount = 0
	return writeStream(s, name)
}

// mergeAndOptimize builds two small animations, merges the second into the
// first's timeline onto a shared global colormap via the frame merger, and
// hands the combined stream to the optimizer before writing it out.
func mergeAndOptimize() error {
	first := buildCircleStream(64, 48, 6)
	second := buildCircleStream(64, 48, 6)

	var records []mergeset.MergeRecord
	for _, img := range first.Images {
		records = append(records, mergeset.MergeRecord{Stream: first, Image: img})
	}
	for _, img := range second.Images {
		records = append(records, mergeset.MergeRecord{Stream: second, Image: img})
	}

	dest := mergeset.MergeFrameInterval(records, mergeset.IntervalConfig{
		LoopCount: 0,
		Report: func(d gif.Diagnostic) {
			fmt.Printf("  merge warning: %s\n", d.Message)
		},
	})

	optimized := optimize.Optimize(dest, optimize.Level2)
	return writeStream(optimized, "merged.gif")
}

// demoManifest is a small inline "output config" document; in normal use
// this would be read from a file a caller supplied.
const demoManifest = `{
  "loopCount": 0,
  "crop": {"x": 4, "y": 4, "w": 40, "h": 30, "trimTransparentEdges": true},
  "flip": "horizontal",
  "colors": {"count": 32, "dither": "floyd-steinberg"}
}`

// applyManifest parses demoManifest and applies the operations it names to
// a freshly rendered frame, reporting any diagnostics gjson's lenient
// traversal turned up along the way.
func applyManifest() error {
	m, diags := config.Parse([]byte(demoManifest))
	for _, d := range diags {
		fmt.Printf("  manifest warning: %s\n", d.Message)
	}

	width, height := 64, 48
	rgb := renderCircleFrame(width, height, 2, 6)
	cm, rows := quantize.Quantize(rgb, width, height, 10, quantize.None, false)

	img := gif.NewImage()
	img.Width, img.Height = uint16(width), uint16(height)
	img.Pixels = rows

	if m.Crop != nil {
		transform.CropImage(img, m.Crop, true)
	}
	if m.FlipVertical != nil {
		transform.FlipImage(img, width, height, *m.FlipVertical)
	}
	if m.Colors != nil {
		reduced, smallRows := quantize.Quantize(toRGB(img, cm), int(img.Width), int(img.Height), 10, m.Colors.Dither, m.Colors.Serpentine)
		cm = reduced
		img.Pixels = smallRows
	}

	s := gif.NewStream()
	s.ScreenWidth, s.ScreenHeight = img.Width, img.Height
	s.Global = cm
	s.LoopCount = m.LoopCount
	s.AddImage(img)
	return writeStream(s, "manifest-demo.gif")
}

// toRGB expands a colormap-indexed image back out to RGB triplets via cm,
// so a transform applied in index space (crop, flip) can still feed a
// second quantize.Quantize pass, mirroring the re-quantization a real
// pipeline would do after a transform shrinks the frame's effective color
// count.
func toRGB(img *gif.Image, cm *gif.Colormap) []byte {
	out := make([]byte, 0, int(img.Width)*int(img.Height)*3)
	for _, row := range img.Pixels {
		for _, px := range row {
			c := cm.Colors[px]
			out = append(out, c.R, c.G, c.B)
		}
	}
	return out
}

func writeStream(s *gif.Stream, name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	sink := gif.NewStreamSink(f)
	gif.Write(s, sink, 0)
	return nil
}
