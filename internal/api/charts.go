package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/httputil"
)

// showLengthsChart renders the live length table as HTML: one bar per
// vehicle type for the estimate with the retained window samples overlaid.
// Debugging only, no auth.
func (s *Server) showLengthsChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	lengths := s.store.Lengths()
	if len(lengths) == 0 {
		httputil.NotFound(w, "no length estimates yet")
		return
	}

	var buf bytes.Buffer
	if err := renderLengthsChart(&buf, lengths, s.cfg.Calibration); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

func renderLengthsChart(buf *bytes.Buffer, lengths []calibration.LengthEstimate, cfg calibration.Config) error {
	labels := make([]string, len(lengths))
	estimates := make([]opts.BarData, len(lengths))
	means := make([]opts.BarData, len(lengths))
	var samples []opts.ScatterData
	total := 0

	for i, le := range lengths {
		labels[i] = strconv.Itoa(le.VehicleType)
		// "-" leaves a gap for types seen only through rejected samples.
		estimates[i] = opts.BarData{Value: "-"}
		means[i] = opts.BarData{Value: "-"}
		if le.HasEstimate {
			estimates[i] = opts.BarData{Value: le.EstimateMeters}
			means[i] = opts.BarData{Value: le.MeanMeters}
		}
		for _, v := range le.Window {
			samples = append(samples, opts.ScatterData{Value: []interface{}{labels[i], v}})
		}
		total += le.Accepted
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Radar length calibration", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Vehicle length estimates",
			Subtitle: fmt.Sprintf("types=%d accepted=%d band=(%.1f, %.1f) m default=%.1f m", len(lengths), total, cfg.MinClearanceMeters, cfg.MaxClearanceMeters, cfg.DefaultLengthMeters),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "vehicle type", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "length (m)", Min: 0, Max: cfg.MaxClearanceMeters + 1}),
	)
	bar.SetXAxis(labels).
		AddSeries("estimate", estimates).
		AddSeries("mean", means)

	scatter := charts.NewScatter()
	scatter.AddSeries("window", samples, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	bar.Overlap(scatter)

	return bar.Render(buf)
}
