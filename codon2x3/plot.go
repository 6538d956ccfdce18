package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/codon2x3/model"
)

// plotDistn saves a bar chart of the primary and the blink state
// equilibrium distributions.
func plotDistn(m *model.Model, out string, width float64) error {
	if width <= 0 {
		return fmt.Errorf("plot width should be positive, got %v", width)
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "model " + m.Name()
	p.Y.Label.Text = "probability"
	p.Y.Min = 0
	p.Y.Max = 1

	primary := m.PrimaryDistn()
	blink := m.BlinkDistn()

	barWidth := vg.Points(20)
	pBars, err := plotter.NewBarChart(plotter.Values(primary), barWidth)
	if err != nil {
		return err
	}
	pBars.Color = plotutil.Color(0)

	bBars, err := plotter.NewBarChart(plotter.Values(blink), barWidth)
	if err != nil {
		return err
	}
	bBars.Color = plotutil.Color(1)
	// blink states follow the primary states on the x axis
	bBars.XMin = float64(len(primary))

	p.Add(pBars, bBars)
	p.Legend.Add("primary", pBars)
	p.Legend.Add("blink", bBars)
	p.Legend.Top = true

	labels := make([]string, 0, len(primary)+len(blink))
	for i := range primary {
		labels = append(labels, fmt.Sprintf("P%d", i))
	}
	labels = append(labels, "off", "on")
	p.NominalX(labels...)

	w := vg.Length(width) * vg.Inch
	return p.Save(w, w*2/3, out)
}
