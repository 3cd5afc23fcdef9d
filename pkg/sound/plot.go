package sound

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const plotWindow = 50 * time.Millisecond

// Envelope returns the min and max of each window of the mono mixdown.
func Envelope(w *Waveform, windowSize time.Duration) []float64 {
	samples := w.Mono()
	windowLength := int(float64(w.Rate) * windowSize.Seconds())
	if windowLength < 1 {
		windowLength = 1
	}

	var resampled []float64
	for i := 0; i < len(samples); i += windowLength {
		end := i + windowLength
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[i:end]
		var min, max float64
		for _, v := range window {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		resampled = append(resampled, min)
		resampled = append(resampled, max)
	}
	return resampled
}

// PlotWave renders the waveform envelope as a jpeg image.
func PlotWave(w *Waveform, name string) ([]byte, error) {
	if w.Len() == 0 {
		return nil, ErrEmpty
	}
	data := Envelope(w, plotWindow)

	// Create a new plot
	p := plot.New()
	p.Y.Min = -1
	p.Y.Max = 1
	p.Title.Text = fmt.Sprintf("%s %s", name, w.Duration().Round(time.Second))
	p.X.Label.Text = "time"
	p.Y.Label.Text = "amplitude"

	// Each window contributes a min and a max point
	step := plotWindow.Seconds() / 2
	pts := make(plotter.XYs, len(data))
	for i, d := range data {
		pts[i].X = float64(i) * step
		pts[i].Y = d
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create line plotter: %w", err)
	}
	l.LineStyle.Width = vg.Points(1)
	p.Add(l)

	// Mark the normalization peak
	for _, level := range []float64{-0.95, 0.95} {
		level := level
		hLine := plotter.NewFunction(func(float64) float64 { return level })
		hLine.Color = color.RGBA{R: 255, A: 255}
		p.Add(hLine)
	}

	c, err := p.WriterTo(6*vg.Inch, 3*vg.Inch, "jpeg")
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sound: couldn't write plot: %w", err)
	}
	return buf.Bytes(), nil
}
