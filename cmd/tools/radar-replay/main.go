// Command radar-replay runs a recorded tick file through the radar engine
// and reports per-tick neighbours and the resulting vehicle length table.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/proximity.radar/internal/config"
	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/radar"
	"github.com/banshee-data/proximity.radar/internal/security"
	"github.com/banshee-data/proximity.radar/internal/serialmux"
)

func main() {
	var (
		fixture   string
		cfgPath   string
		plotPath  string
		quiet     bool
		debugMode bool
	)
	flag.StringVar(&fixture, "fixture", "fixtures/ticks.jsonl", "tick record file to replay")
	flag.StringVar(&cfgPath, "config", "", "radar tuning JSON (defaults when empty)")
	flag.StringVar(&plotPath, "plot", "", "write a PNG of neighbour deltas to this path")
	flag.BoolVar(&quiet, "quiet", false, "only print the final length table")
	flag.BoolVar(&debugMode, "debug", false, "log per-tick radar diagnostics")
	flag.Parse()

	monitoring.EnableDebug(debugMode)

	tuning := config.EmptyRadarConfig()
	if cfgPath != "" {
		var err error
		if tuning, err = config.LoadRadarConfig(cfgPath); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	cfg := radar.ConfigFromTuning(tuning)

	lines, err := serialmux.LoadFixture(fixture)
	if err != nil {
		log.Fatalf("load fixture: %v", err)
	}

	res, err := replay(lines, cfg)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}

	if !quiet {
		if err := writeTicks(os.Stdout, res); err != nil {
			log.Fatalf("write ticks: %v", err)
		}
	}
	if err := writeLengths(os.Stdout, res, cfg.Calibration.DefaultLengthMeters); err != nil {
		log.Fatalf("write lengths: %v", err)
	}

	if plotPath != "" {
		if err := security.ValidateExportPath(plotPath); err != nil {
			log.Fatalf("plot path: %v", err)
		}
		if err := savePlot(res, cfg.MaxDistanceMeters, plotPath); err != nil {
			log.Fatalf("save plot: %v", err)
		}
		fmt.Printf("wrote %s\n", plotPath)
	}
}
