// Package report renders replay results: an interactive HTML timeline of
// cluster pen probabilities and a PNG of stroke paths coloured by label.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
)

// TimelineOptions configures RenderTimeline.
type TimelineOptions struct {
	Title     string
	Subtitle  string
	Threshold float64 // drawn as a flat reference series when > 0
}

// RenderTimeline writes an HTML page with one pen-probability series per
// cluster and a bar chart of final labels per stroke.
func RenderTimeline(w io.Writer, res *recorder.Result, o TimelineOptions) error {
	if o.Title == "" {
		o.Title = "Cluster pen probability"
	}

	series := make(map[uint64][]opts.LineData)
	var seqs []uint64
	tMin, tMax := 0.0, 0.0
	for i, s := range res.Samples {
		if _, ok := series[s.Seq]; !ok {
			seqs = append(seqs, s.Seq)
		}
		series[s.Seq] = append(series[s.Seq], opts.LineData{
			Value: []interface{}{s.T, s.PenProbability},
			Name:  s.Label.String(),
		})
		if i == 0 || s.T < tMin {
			tMin = s.T
		}
		if s.T > tMax {
			tMax = s.T
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "P(pen)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	for _, seq := range seqs {
		line.AddSeries(fmt.Sprintf("cluster %d", seq), series[seq],
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	if o.Threshold > 0 && len(seqs) > 0 {
		line.AddSeries("threshold", []opts.LineData{
			{Value: []interface{}{tMin, o.Threshold}},
			{Value: []interface{}{tMax, o.Threshold}},
		}, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}

	counts := res.LabelCounts()
	var names []string
	var bars []opts.BarData
	for l := touch.LabelUnknownDisconnected; l <= touch.LabelRemoved; l++ {
		if counts[l] == 0 {
			continue
		}
		names = append(names, l.String())
		bars = append(bars, opts.BarData{Value: counts[l]})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Strokes by final label",
			Subtitle: fmt.Sprintf("strokes=%d changes=%d glitches=%d", len(res.Strokes), res.LabelChanges, res.Glitches)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("strokes", bars,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.PageTitle = o.Title
	page.AddCharts(line, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	return nil
}
