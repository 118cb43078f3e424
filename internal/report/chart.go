package report

import (
	"fmt"
	"image/color"
	"io"

	"atmosfera/internal/annotator"
	"atmosfera/internal/models"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteTrendPNG renders the monthly mean PM2.5 as a line chart with the
// category boundaries drawn as dashed reference lines.
func WriteTrendPNG(w io.Writer, monthly []annotator.MonthlyMean) error {
	if len(monthly) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Tren Bulanan PM2.5"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Bulan"
	p.Y.Label.Text = "PM2.5 (µg/m³)"
	p.Y.Min = 0

	points := make(plotter.XYs, len(monthly))
	ticks := make([]plot.Tick, len(monthly))
	step := len(monthly)/12 + 1
	for i, m := range monthly {
		points[i].X = float64(i)
		points[i].Y = m.PM25
		ticks[i] = plot.Tick{Value: float64(i)}
		if i%step == 0 {
			ticks[i].Label = m.Month
		}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("failed to build trend line: %w", err)
	}
	line.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	line.Width = vg.Points(2)

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return fmt.Errorf("failed to build trend points: %w", err)
	}
	scatter.GlyphStyle.Color = line.Color
	scatter.GlyphStyle.Radius = vg.Points(2)

	p.Add(plotter.NewGrid(), line, scatter)
	p.Legend.Add("PM2.5", line)

	for _, ref := range []struct {
		label string
		value float64
		color color.Color
	}{
		{"Batas sehat", models.PM25HealthyMax, color.RGBA{R: 34, G: 139, B: 34, A: 255}},
		{"Batas sedang", models.PM25ModerateMax, color.RGBA{R: 200, G: 0, B: 0, A: 255}},
	} {
		v := ref.value
		fn := plotter.NewFunction(func(float64) float64 { return v })
		fn.Color = ref.color
		fn.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(fn)
		p.Legend.Add(ref.label, fn)
	}
	p.Legend.Top = true
	if p.Y.Max < models.PM25ModerateMax+5 {
		p.Y.Max = models.PM25ModerateMax + 5
	}

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render trend chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write trend chart: %w", err)
	}
	return nil
}
