package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/riggy/internal/alert"
)

// signalLine plots one history with its raise and clear thresholds as flat
// dashed series.
func signalLine(title, unit string, hist []float64, raise, clear float64) *charts.Line {
	x := make([]int, len(hist))
	ys := make([]opts.LineData, len(hist))
	raiseYs := make([]opts.LineData, len(hist))
	clearYs := make([]opts.LineData, len(hist))
	for i, v := range hist {
		x[i] = i
		ys[i] = opts.LineData{Value: v}
		raiseYs[i] = opts.LineData{Value: raise}
		clearYs[i] = opts.LineData{Value: clear}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Riggy", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d raise=%.3f%s clear=%.3f%s", len(hist), raise, unit, clear, unit)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit, NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries(title, ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("raise", raiseYs,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#d62728"}),
		).
		AddSeries("clear", clearYs,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#2ca02c"}),
		)
	return line
}

// showChart renders the tilt and vibration histories of the current (or last)
// session as an HTML page.
func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	cfg := s.mgr.Config()
	st := s.mgr.Store()

	tiltRaise := cfg.GetTiltThreshold()
	vibRaise := cfg.GetVibrationThreshold()
	tilt := signalLine("Tilt", "°", st.History(alert.Tilt), tiltRaise, tiltRaise-cfg.GetTiltMargin())
	vib := signalLine("Vibration", cfg.GetVibrationUnit().Symbol(), st.History(alert.Vibration), vibRaise, vibRaise-cfg.GetVibrationMargin())

	page := components.NewPage()
	page.PageTitle = "Riggy - " + s.mgr.Status().Label()
	page.AddCharts(tilt, vib)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
