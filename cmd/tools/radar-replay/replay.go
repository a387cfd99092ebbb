package main

import (
	"fmt"
	"image/color"
	"io"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/radar"
	"github.com/banshee-data/proximity.radar/internal/serialmux"
	"github.com/banshee-data/proximity.radar/internal/telemetry"
)

// tickSummary is one replayed line.
type tickSummary struct {
	Line        int
	Seq         uint64
	Flag        calibration.ProximityFlag
	State       calibration.ClearState
	Cars        int
	Ahead       float64 // delta of the nearest car ahead, valid when HasAhead
	HasAhead    bool
	Behind      float64
	HasBehind   bool
	SkipReason  string
	Calibration []calibration.Observation
}

type replayResult struct {
	Ticks   []tickSummary
	Lengths []calibration.LengthEstimate
	Fires   int
	Skipped int
}

// replay feeds every tick record in lines through a fresh engine. Blank,
// comment and non-record lines are ignored; undecodable records abort.
func replay(lines []string, cfg radar.Config) (*replayResult, error) {
	e := radar.NewEngine(cfg)
	res := &replayResult{}

	for i, line := range lines {
		if serialmux.ClassifyLine(line) != serialmux.LineTick {
			continue
		}
		in, err := telemetry.DecodeTickRecord([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		s := tickSummary{Line: i + 1, Flag: in.Flag}
		f, err := e.Tick(in)
		if err != nil {
			if !radar.IsSkipTick(err) {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			s.SkipReason = radar.SkipReason(err)
			s.State = e.Calibrator().State()
			res.Skipped++
			res.Ticks = append(res.Ticks, s)
			continue
		}

		s.Seq = f.Seq
		s.State = f.State
		s.Cars = len(f.Entries)
		if a, ok := f.Ahead(); ok {
			s.Ahead, s.HasAhead = a.DeltaMeters, true
		}
		if b, ok := f.Behind(); ok {
			s.Behind, s.HasBehind = b.DeltaMeters, true
		}
		s.Calibration = f.Observations
		res.Ticks = append(res.Ticks, s)
	}

	res.Lengths = e.Lengths()
	res.Fires = e.Calibrator().Fires()
	return res, nil
}

func fmtDelta(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%+.2f", v)
}

// writeTicks prints one row per replayed tick.
func writeTicks(w io.Writer, res *replayResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tSEQ\tFLAG\tSTATE\tCARS\tAHEAD_M\tBEHIND_M\tNOTE")
	for _, s := range res.Ticks {
		note := ""
		switch {
		case s.SkipReason != "":
			note = "skip: " + s.SkipReason
		case len(s.Calibration) > 0:
			for _, o := range s.Calibration {
				if o.Accepted {
					note += fmt.Sprintf("type %d <- %.2f ", o.VehicleType, o.Clearance)
				} else {
					note += fmt.Sprintf("type %d x %.2f (%s) ", o.VehicleType, o.Clearance, o.Reason)
				}
			}
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			s.Line, s.Seq, s.Flag, s.State, s.Cars,
			fmtDelta(s.Ahead, s.HasAhead), fmtDelta(s.Behind, s.HasBehind), note)
	}
	return tw.Flush()
}

// writeLengths prints the final length table.
func writeLengths(w io.Writer, res *replayResult, defaultLength float64) error {
	fmt.Fprintf(w, "\n%d tick(s), %d skipped, %d calibration fire(s)\n", len(res.Ticks), res.Skipped, res.Fires)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tESTIMATE_M\tRENDERED_M\tACCEPTED\tREJECTED\tSTDDEV_M\tWINDOW")
	for _, le := range res.Lengths {
		rendered := le.EstimateMeters
		if rendered < defaultLength {
			rendered = defaultLength
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%d\t%d\t%.3f\t%v\n",
			le.VehicleType, le.EstimateMeters, rendered, le.Accepted, le.Rejected, le.StdDevMeters, le.Window)
	}
	return tw.Flush()
}

// savePlot writes a PNG of the nearest ahead and behind deltas per tick,
// with calibration fires marked.
func savePlot(res *replayResult, maxDistance float64, path string) error {
	p := plot.New()
	p.Title.Text = "Nearest neighbour deltas"
	p.X.Label.Text = "Line"
	p.Y.Label.Text = "Delta (m, + behind)"
	p.Y.Min = -maxDistance - 5
	p.Y.Max = maxDistance + 5

	ahead := make(plotter.XYs, 0, len(res.Ticks))
	behind := make(plotter.XYs, 0, len(res.Ticks))
	fires := make(plotter.XYs, 0)
	for _, s := range res.Ticks {
		x := float64(s.Line)
		if s.HasAhead {
			ahead = append(ahead, plotter.XY{X: x, Y: s.Ahead})
		}
		if s.HasBehind {
			behind = append(behind, plotter.XY{X: x, Y: s.Behind})
		}
		if len(s.Calibration) > 0 {
			fires = append(fires, plotter.XY{X: x, Y: 0})
		}
	}

	if len(ahead) > 0 {
		l, err := plotter.NewScatter(ahead)
		if err != nil {
			return err
		}
		l.Color = color.RGBA{R: 220, G: 60, B: 60, A: 255}
		l.Radius = vg.Points(2)
		p.Add(l)
		p.Legend.Add("ahead", l)
	}
	if len(behind) > 0 {
		l, err := plotter.NewScatter(behind)
		if err != nil {
			return err
		}
		l.Color = color.RGBA{R: 60, G: 110, B: 220, A: 255}
		l.Radius = vg.Points(2)
		p.Add(l)
		p.Legend.Add("behind", l)
	}
	if len(fires) > 0 {
		sc, err := plotter.NewScatter(fires)
		if err != nil {
			return err
		}
		sc.Color = color.Black
		sc.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("calibration", sc)
	}
	p.Add(plotter.NewGrid())

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
