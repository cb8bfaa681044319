// Package plot renders the per-pair score timeline as a PNG: the score
// series as a line, the threshold as a horizontal rule, selected keyframes
// as markers, and optionally a strip of exported stills underneath.
package plot

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // thumbnail decoding
	"math"
	"os"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// Options control the timeline layout.
type Options struct {
	// Width and Height of the chart area in pixels.
	Width  int
	Height int

	// Thumbnails, when non-empty, are drawn as a strip below the chart,
	// each scaled to ThumbHeight.
	Thumbnails  []image.Image
	ThumbHeight int
}

// DefaultOptions returns the standard timeline layout.
func DefaultOptions() Options {
	return Options{Width: 960, Height: 320, ThumbHeight: 90}
}

const margin = 40.0

var (
	colorBackground = color.RGBA{24, 24, 28, 255}
	colorAxis       = color.RGBA{110, 110, 120, 255}
	colorSeries     = color.RGBA{86, 156, 214, 255}
	colorThreshold  = color.RGBA{220, 160, 60, 255}
	colorKeyframe   = color.RGBA{224, 86, 86, 255}
)

// Timeline composes the chart image. Sentinel (mismatched-dimension)
// scores are clamped to the plot ceiling so one maximal pair does not
// flatten the rest of the series.
func Timeline(scores []float64, keyframes []int, threshold float64, opts Options) image.Image {
	if opts.Width <= 0 || opts.Height <= 0 {
		o := DefaultOptions()
		opts.Width, opts.Height = o.Width, o.Height
	}
	if opts.ThumbHeight <= 0 {
		opts.ThumbHeight = DefaultOptions().ThumbHeight
	}

	totalHeight := opts.Height
	if len(opts.Thumbnails) > 0 {
		totalHeight += opts.ThumbHeight
	}

	dc := gg.NewContext(opts.Width, totalHeight)
	dc.SetColor(colorBackground)
	dc.Clear()

	ceiling := plotCeiling(scores, threshold)
	plotW := float64(opts.Width) - 2*margin
	plotH := float64(opts.Height) - 2*margin

	xAt := func(pair int) float64 {
		if len(scores) <= 1 {
			return margin + plotW/2
		}
		return margin + plotW*float64(pair)/float64(len(scores)-1)
	}
	yAt := func(score float64) float64 {
		s := math.Min(score, ceiling)
		return margin + plotH*(1-s/ceiling)
	}

	// Axes.
	dc.SetColor(colorAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, margin, margin, margin+plotH)
	dc.DrawLine(margin, margin+plotH, margin+plotW, margin+plotH)
	dc.Stroke()

	// Threshold rule.
	dc.SetColor(colorThreshold)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	dc.DrawLine(margin, yAt(threshold), margin+plotW, yAt(threshold))
	dc.Stroke()
	dc.SetDash()
	dc.DrawStringAnchored(fmt.Sprintf("threshold %.2f", threshold), margin+plotW, yAt(threshold)-6, 1, 0)

	// Score series.
	if len(scores) > 0 {
		dc.SetColor(colorSeries)
		dc.SetLineWidth(1.5)
		dc.MoveTo(xAt(0), yAt(scores[0]))
		for i := 1; i < len(scores); i++ {
			dc.LineTo(xAt(i), yAt(scores[i]))
		}
		dc.Stroke()
	}

	// Keyframe markers sit on the pair that selected them (index-1).
	dc.SetColor(colorKeyframe)
	for _, kf := range keyframes {
		pair := kf - 1
		if pair < 0 || pair >= len(scores) {
			continue
		}
		dc.DrawCircle(xAt(pair), yAt(scores[pair]), 4)
		dc.Fill()
	}

	dc.SetColor(colorAxis)
	dc.DrawStringAnchored(fmt.Sprintf("%d pairs, %d keyframes", len(scores), len(keyframes)), margin, margin-10, 0, 0)

	if len(opts.Thumbnails) > 0 {
		drawThumbnailStrip(dc, opts)
	}

	return dc.Image()
}

// WriteTimeline renders the chart and writes it to path as PNG.
func WriteTimeline(path string, scores []float64, keyframes []int, threshold float64, opts Options) error {
	img := Timeline(scores, keyframes, threshold, opts)
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// plotCeiling picks the vertical scale: the largest finite score or the
// threshold, whichever is higher, with a little headroom. Sentinel scores
// are clamped here rather than scaling the axis to MaxFloat64.
func plotCeiling(scores []float64, threshold float64) float64 {
	max := threshold
	for _, s := range scores {
		if s > max && s < math.MaxFloat64 {
			max = s
		}
	}
	if max <= 0 {
		max = 1
	}
	return max * 1.15
}

// LoadThumbnails decodes up to max images from paths, skipping any that
// fail to decode. Intended for the stills the exporter just wrote.
func LoadThumbnails(paths []string, max int) []image.Image {
	var thumbs []image.Image
	for _, p := range paths {
		if max > 0 && len(thumbs) >= max {
			break
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		thumbs = append(thumbs, img)
	}
	return thumbs
}

// drawThumbnailStrip lays exported stills left to right under the chart,
// each downscaled with CatmullRom to the strip height.
func drawThumbnailStrip(dc *gg.Context, opts Options) {
	x := 0
	y := opts.Height
	for _, thumb := range opts.Thumbnails {
		if x >= opts.Width {
			break
		}
		bounds := thumb.Bounds()
		if bounds.Dy() == 0 {
			continue
		}
		w := bounds.Dx() * opts.ThumbHeight / bounds.Dy()
		dst := image.NewRGBA(image.Rect(0, 0, w, opts.ThumbHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), thumb, bounds, draw.Over, nil)
		dc.DrawImage(dst, x, y)
		x += w + 2
	}
}
