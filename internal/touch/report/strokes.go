package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
)

var labelColors = map[touch.Label]color.Color{
	touch.LabelUnknownDisconnected: color.RGBA{R: 150, G: 150, B: 150, A: 255},
	touch.LabelUnknown:             color.RGBA{R: 150, G: 150, B: 150, A: 255},
	touch.LabelFinger:              color.RGBA{R: 46, G: 160, B: 67, A: 255},
	touch.LabelPalm:                color.RGBA{R: 214, G: 39, B: 40, A: 255},
	touch.LabelPen:                 color.RGBA{R: 31, G: 119, B: 180, A: 255},
	touch.LabelEraser:              color.RGBA{R: 148, G: 103, B: 189, A: 255},
	touch.LabelRemoved:             color.Black,
}

// LabelColor returns the colour strokes of label l are drawn in.
func LabelColor(l touch.Label) color.Color {
	if c, ok := labelColors[l]; ok {
		return c
	}
	return color.Black
}

// StrokePlot builds a plot of every stroke path in screen coordinates.
// Strokes with a single sample are drawn as a point.
func StrokePlot(res *recorder.Result, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(plotter.NewGrid())

	legend := make(map[touch.Label]bool)
	for i, s := range res.Strokes {
		if len(s.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			pts[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		c := LabelColor(s.Label)

		var thumb plot.Thumbnailer
		if len(pts) == 1 {
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, fmt.Errorf("stroke %d: %w", i, err)
			}
			sc.GlyphStyle.Color = c
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(3)
			p.Add(sc)
			thumb = sc
		} else {
			l, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("stroke %d: %w", i, err)
			}
			l.Color = c
			l.Width = vg.Points(1.5)
			if s.Label.IsUnknown() || s.Label == touch.LabelRemoved {
				l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			}
			p.Add(l)
			thumb = l
		}
		if !legend[s.Label] {
			legend[s.Label] = true
			p.Legend.Add(s.Label.String(), thumb)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// WriteStrokesPNG renders StrokePlot as a PNG of the given size.
func WriteStrokesPNG(w io.Writer, res *recorder.Result, title string, width, height vg.Length) error {
	p, err := StrokePlot(res, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
