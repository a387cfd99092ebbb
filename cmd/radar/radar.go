package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/banshee-data/proximity.radar/internal/api"
	"github.com/banshee-data/proximity.radar/internal/config"
	"github.com/banshee-data/proximity.radar/internal/db"
	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/radar"
	"github.com/banshee-data/proximity.radar/internal/serialmux"
	"github.com/banshee-data/proximity.radar/internal/telemetry"
	"github.com/banshee-data/proximity.radar/internal/timeutil"
	"github.com/banshee-data/proximity.radar/internal/trackpos"
	"github.com/banshee-data/proximity.radar/internal/version"
)

var (
	configPath   = flag.String("config", config.DefaultConfigPath, "Radar tuning JSON file")
	devMode      = flag.Bool("dev", false, "Replay -fixture instead of reading the serial port")
	listen       = flag.String("listen", ":8080", "Listen address")
	port         = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored in dev mode; empty disables ingest)")
	baudRate     = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	fixture      = flag.String("fixture", "fixtures/ticks.jsonl", "Tick record file replayed in dev mode")
	dbFile       = flag.String("db", "radar_calibration.db", "Calibration database path (empty disables persistence)")
	telemetryDir = flag.String("telemetry-dir", "", "Directory of tyre telemetry logs (empty disables)")
	seedLengths  = flag.Bool("seed-lengths", false, "Warm-start vehicle lengths from the newest stored estimates")
	debugMode    = flag.Bool("debug", false, "Log per-tick radar diagnostics")
	logFile      = flag.String("log-file", "", "Also write logs to this size-rotated file")
	turnsDir     = flag.String("turns-dir", "TurnNumbers", "Directory of <track>.json turn tables")
	trackName    = flag.String("track", "", "Track name for the turn table (empty disables turn names)")
	listPorts    = flag.Bool("list-ports", false, "Print the available serial ports and exit")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads the tuning file. A missing file at the default path falls
// back to built-in defaults so the binary runs outside the repository.
func loadConfig(path string) (*config.RadarConfig, error) {
	if path == "" {
		return config.EmptyRadarConfig(), nil
	}
	cfg, err := config.LoadRadarConfig(path)
	if err != nil {
		if path == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
			log.Printf("no config at %s, using built-in defaults", path)
			return config.EmptyRadarConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// openLogFile tees the standard logger, and with it monitoring.Logf, into a
// size-rotated file.
func openLogFile(path string) io.Closer {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    32, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w
}

// printPorts writes one serial port per line.
func printPorts(w io.Writer, list func() ([]string, error)) error {
	ports, err := list()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, err = fmt.Fprintln(w, "no serial ports found")
		return err
	}
	for _, p := range ports {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}

// loadTurns reads the turn table for track. No track means no table.
func loadTurns(dir, track string) (trackpos.Turns, error) {
	if track == "" {
		return nil, nil
	}
	turns, err := trackpos.LoadTurns(dir, track)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns for %q: %w", track, err)
	}
	return turns, nil
}

// newIngest picks the tick source: a looping fixture replay in dev mode, the
// serial bridge when a port is named, or a disabled mux otherwise.
func newIngest(dev bool, fixturePath, portPath string, baud int, cfg *config.RadarConfig, clock timeutil.Clock) (serialmux.SerialMuxInterface, error) {
	if dev {
		lines, err := serialmux.LoadFixture(fixturePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		return serialmux.NewReplaySerialMux(lines, clock, cfg.GetTickInterval(), true), nil
	}
	if portPath == "" {
		return serialmux.NewDisabledSerialMux(), nil
	}
	m, err := serialmux.NewRealSerialMux(portPath, serialmux.PortOptions{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to create radar port: %w", err)
	}
	return m, nil
}

// openStore opens the calibration database, starts a session and, when
// seed is set, warm-starts the engine's length table.
func openStore(path string, seed bool, engine *radar.Engine, now time.Time) (*db.DB, *db.Session, error) {
	d, err := db.NewDB(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if seed {
		n, err := d.SeedCalibrator(engine.Calibrator())
		if err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("failed to seed lengths: %w", err)
		}
		log.Printf("seeded %d vehicle type(s) from %s", n, path)
	}
	sess, err := d.StartSession("radar "+version.Version, now)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, sess, nil
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		if err := printPorts(os.Stdout, serialmux.ListPorts); err != nil {
			log.Fatal(err)
		}
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *logFile != "" {
		defer openLogFile(*logFile).Close()
	}
	log.Printf("proximity radar %s", version.String())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	monitoring.EnableDebug(*debugMode)

	clock := timeutil.RealClock{}
	engine := radar.NewEngine(radar.ConfigFromTuning(cfg))
	turns, err := loadTurns(*turnsDir, *trackName)
	if err != nil {
		log.Fatal(err)
	}
	if turns != nil {
		engine.SetTurns(turns)
		log.Printf("loaded %d turn(s) for %s", len(turns), *trackName)
	}
	store := radar.NewFrameStore(clock)
	pipeline := &serialmux.Pipeline{Engine: engine, Store: store, Clock: clock}

	var calibDB *db.DB
	if *dbFile != "" {
		var sess *db.Session
		calibDB, sess, err = openStore(*dbFile, *seedLengths, engine, clock.Now())
		if err != nil {
			log.Fatal(err)
		}
		defer calibDB.Close()
		pipeline.Recorder = calibDB
		pipeline.SessionID = sess.ID
		log.Printf("calibration session %s", sess.ID)
		defer func() {
			if err := calibDB.EndSession(sess.ID, clock.Now()); err != nil {
				log.Printf("failed to end session: %v", err)
			}
		}()
	}

	radarSerial, err := newIngest(*devMode, *fixture, *port, *baudRate, cfg, clock)
	if err != nil {
		log.Fatal(err)
	}
	defer radarSerial.Close()

	// Create a wait group for the HTTP server, serial monitor, and tick pipeline routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := radarSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// one engine tick per line
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx, radarSerial); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tick pipeline stopped: %v", err)
		}
		log.Print("tick pipeline terminated")
	}()

	var tires *telemetry.Handler
	if *telemetryDir != "" {
		tires = telemetry.NewHandler(telemetry.ReaderConfig{
			KeepRecords: cfg.GetTelemetryKeepRecords(),
			RetryDelay:  cfg.GetTelemetryRetryDelay(),
		}, clock)
		defer tires.Close()

		wg.Add(2)
		go func() {
			defer wg.Done()
			tires.WatchDir(ctx, *telemetryDir, clock, cfg.GetTelemetryPollInterval())
		}()
		go func() {
			defer wg.Done()
			ticker := clock.NewTicker(cfg.GetTickInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C():
					tires.Process()
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(store, radarSerial, engine.Config())
		if calibDB != nil {
			apiServer.WithHistory(calibDB, pipeline.SessionID)
		}
		if tires != nil {
			apiServer.WithTires(tires)
		}
		mux := apiServer.ServeMux()

		radarSerial.AttachAdminRoutes(mux)
		if calibDB != nil {
			if err := calibDB.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach db admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
