package png

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/crimson-sun/updash/internal/model"
)

const (
	defaultWidth  = 1024
	defaultHeight = 320
	tickCount     = 5
)

// Option configures a PNG renderer.
type Option func(*Renderer)

// WithSize sets the image size in pixels.
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithTimeFunc sets how raw timestamps convert to time. Default: milliseconds.
func WithTimeFunc(f func(int64) time.Time) Option {
	return func(r *Renderer) {
		if f != nil {
			r.toTime = f
		}
	}
}

// WithTickFormat sets the X axis label layout. Default: "15:04:05".
func WithTickFormat(layout string) Option {
	return func(r *Renderer) {
		if layout != "" {
			r.tickFormat = layout
		}
	}
}

// Renderer draws the reference and connection series into a PNG file.
// The file is replaced atomically so readers never see a partial image.
type Renderer struct {
	path       string
	width      int
	height     int
	tickFormat string
	toTime     func(int64) time.Time
}

// New creates a renderer writing to path.
func New(path string, opts ...Option) (*Renderer, error) {
	if path == "" {
		return nil, fmt.Errorf("png render: path required")
	}
	r := &Renderer{
		path:       path,
		width:      defaultWidth,
		height:     defaultHeight,
		tickFormat: "15:04:05",
		toTime:     time.UnixMilli,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render draws ts. An empty series leaves the previous image in place.
func (r *Renderer) Render(_ context.Context, ts model.TimeSeries) error {
	if ts.Len() == 0 {
		return nil
	}
	if len(ts.Timestamps) != len(ts.Statuses) {
		return fmt.Errorf("png render: %d timestamps, %d statuses", len(ts.Timestamps), len(ts.Statuses))
	}

	var buf bytes.Buffer
	if err := r.draw(ts, &buf); err != nil {
		return fmt.Errorf("png render: %w", err)
	}
	if err := writeAtomic(r.path, buf.Bytes()); err != nil {
		return fmt.Errorf("png render: %w", err)
	}
	return nil
}

func (r *Renderer) Close() error { return nil }

func (r *Renderer) draw(ts model.TimeSeries, buf *bytes.Buffer) error {
	xs := make([]time.Time, len(ts.Timestamps))
	ys := make([]float64, len(ts.Statuses))
	minT, maxT := r.toTime(ts.Timestamps[0]), r.toTime(ts.Timestamps[0])
	for i, raw := range ts.Timestamps {
		t := r.toTime(raw)
		xs[i] = t
		ys[i] = float64(ts.Statuses[i])
		if t.Before(minT) {
			minT = t
		}
		if t.After(maxT) {
			maxT = t
		}
	}

	// go-chart needs a non-zero X range and at least two points per line.
	if !maxT.After(minT) {
		maxT = minT.Add(time.Second)
	}
	if len(xs) == 1 {
		xs = append(xs, maxT)
		ys = append(ys, ys[0])
	}

	reference := chart.TimeSeries{
		Name:    "Reference",
		XValues: []time.Time{minT, maxT},
		YValues: []float64{1, 1},
		Style: chart.Style{
			StrokeColor:     chart.ColorAlternateGray,
			StrokeWidth:     1,
			StrokeDashArray: []float64{5, 5},
		},
	}
	connection := chart.TimeSeries{
		Name:    "Connection",
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2ca02c"),
			StrokeWidth: 2,
			DotWidth:    3,
			DotColor:    drawing.ColorFromHex("2ca02c"),
		},
	}

	graph := chart.Chart{
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Ticks: r.timeTicks(minT, maxT)},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: -0.1, Max: 1.1},
			Ticks: []chart.Tick{{Value: 0, Label: "down"}, {Value: 1, Label: "up"}},
		},
		Series: []chart.Series{reference, connection},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, buf)
}

func (r *Renderer) timeTicks(minT, maxT time.Time) []chart.Tick {
	step := maxT.Sub(minT) / (tickCount - 1)
	ticks := make([]chart.Tick, 0, tickCount)
	for i := 0; i < tickCount; i++ {
		t := minT.Add(time.Duration(i) * step)
		ticks = append(ticks, chart.Tick{
			Value: chart.TimeToFloat64(t),
			Label: t.Local().Format(r.tickFormat),
		})
	}
	return ticks
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
