package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/riggy/internal/session"
)

var (
	seriesColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	raiseColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	clearColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// WritePlots renders the tilt and vibration histories as PNG files in dir,
// each with its raise and clear thresholds drawn as horizontal lines. It
// returns the written paths.
func WritePlots(dir string, sum *session.Summary, tilt, vibration []float64, generated time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}
	stamp := generated.Format(FileStamp)
	cfg := sum.Config
	unit := cfg.GetVibrationUnit().Symbol()

	specs := []struct {
		name, title, ylabel string
		xs                  []float64
		raise, margin       float64
	}{
		{"tilt", "Tilt", "Tilt (°)", tilt, cfg.GetTiltThreshold(), cfg.GetTiltMargin()},
		{"vibration", "Vibration", fmt.Sprintf("Vibration (%s)", unit), vibration, cfg.GetVibrationThreshold(), cfg.GetVibrationMargin()},
	}

	var paths []string
	for _, s := range specs {
		p, err := historyPlot(s.title, s.ylabel, s.xs, s.raise, s.raise-s.margin)
		if err != nil {
			return paths, fmt.Errorf("%s plot: %w", s.name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", s.name, stamp))
		if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("failed to save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func historyPlot(title, ylabel string, xs []float64, raise, clear float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sample (t)"
	p.Y.Label.Text = ylabel

	pts := make(plotter.XYs, len(xs))
	for i, v := range xs {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = seriesColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(title, line)
	}

	raiseLine := plotter.NewFunction(func(float64) float64 { return raise })
	raiseLine.Color = raiseColor
	raiseLine.Width = vg.Points(1)
	raiseLine.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(raiseLine)
	p.Legend.Add(fmt.Sprintf("raise %.2f", raise), raiseLine)

	clearLine := plotter.NewFunction(func(float64) float64 { return clear })
	clearLine.LineStyle = draw.LineStyle{Color: clearColor, Width: vg.Points(1), Dashes: []vg.Length{vg.Points(2), vg.Points(2)}}
	p.Add(clearLine)
	p.Legend.Add(fmt.Sprintf("clear %.2f", clear), clearLine)

	// Keep both threshold lines in view even when the signal stays far
	// below them.
	lo, hi := min(0, clear), raise
	for _, v := range xs {
		lo, hi = min(lo, v), max(hi, v)
	}
	p.Y.Min, p.Y.Max = lo, hi+0.05*(hi-lo)
	p.X.Min, p.X.Max = 0, max(1, float64(len(xs)-1))
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
