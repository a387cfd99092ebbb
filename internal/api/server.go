package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/db"
	"github.com/banshee-data/proximity.radar/internal/httputil"
	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/radar"
	"github.com/banshee-data/proximity.radar/internal/serialmux"
	"github.com/banshee-data/proximity.radar/internal/telemetry"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// LengthHistory reads persisted calibration data. *db.DB satisfies it.
type LengthHistory interface {
	LatestEstimates() ([]db.StoredEstimate, error)
	ObservationSummaries(sessionID string) ([]db.ObservationSummary, error)
}

// TireSource exposes the newest disk telemetry record. *telemetry.Handler
// satisfies it.
type TireSource interface {
	Current() (telemetry.TireRecord, bool)
	ActivePath() string
}

type Server struct {
	store   *radar.FrameStore
	m       serialmux.SerialMuxInterface
	cfg     radar.Config
	history LengthHistory
	session string
	tires   TireSource
}

// NewServer serves frames from store. m may be nil when there is no ingest.
func NewServer(store *radar.FrameStore, m serialmux.SerialMuxInterface, cfg radar.Config) *Server {
	return &Server{
		store: store,
		m:     m,
		cfg:   cfg,
	}
}

// WithHistory enables the stored estimates on /api/radar/lengths and the
// observation summaries of sessionID on /api/radar/observations.
func (s *Server) WithHistory(h LengthHistory, sessionID string) *Server {
	s.history = h
	s.session = sessionID
	return s
}

// WithTires enables /api/tires.
func (s *Server) WithTires(t TireSource) *Server {
	s.tires = t
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/radar/frame", s.showFrame)
	mux.HandleFunc("/api/radar/lengths", s.showLengths)
	mux.HandleFunc("/api/radar/stats", s.showStats)
	mux.HandleFunc("/api/radar/config", s.showConfig)
	mux.HandleFunc("/api/radar/observations", s.showObservations)
	mux.HandleFunc("/api/tires", s.showTires)
	mux.HandleFunc("/debug/radar/lengths", s.showLengthsChart)
	return mux
}

type frameResponse struct {
	Frame     *radar.Frame   `json:"frame"`
	Markers   []radar.Marker `json:"markers"`
	UpdatedAt time.Time      `json:"updated_at"`
	AgeMillis int64          `json:"age_ms"`
}

func (s *Server) showFrame(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	f, at, ok := s.store.Frame()
	if !ok {
		httputil.ServiceUnavailable(w, "no frame published yet")
		return
	}
	httputil.WriteJSONOK(w, frameResponse{
		Frame:     f,
		Markers:   s.cfg.Display.Markers(f),
		UpdatedAt: at,
		AgeMillis: time.Since(at).Milliseconds(),
	})
}

type lengthsResponse struct {
	DefaultLengthMeters float64                      `json:"default_length_m"`
	Live                []calibration.LengthEstimate `json:"live"`
	Stored              []db.StoredEstimate          `json:"stored,omitempty"`
}

// showLengths returns the live length table. With ?stored=true and a
// history configured it also returns the newest persisted estimates.
func (s *Server) showLengths(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	resp := lengthsResponse{
		DefaultLengthMeters: s.cfg.Calibration.DefaultLengthMeters,
		Live:                s.store.Lengths(),
	}
	if resp.Live == nil {
		resp.Live = []calibration.LengthEstimate{}
	}

	if stored, _ := strconv.ParseBool(r.URL.Query().Get("stored")); stored {
		if s.history == nil {
			httputil.NotFound(w, "no calibration database configured")
			return
		}
		est, err := s.history.LatestEstimates()
		if err != nil {
			monitoring.Logf("failed to read stored estimates: %v", err)
			httputil.InternalServerError(w, "failed to read stored estimates")
			return
		}
		resp.Stored = est
	}
	httputil.WriteJSONOK(w, resp)
}

type observationsResponse struct {
	SessionID string                  `json:"session_id"`
	Types     []db.ObservationSummary `json:"types"`
}

// showObservations summarises recorded clearances per vehicle type for the
// running session, or for ?session=<id>.
func (s *Server) showObservations(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "no calibration database configured")
		return
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		id = s.session
	}
	if id == "" {
		httputil.NotFound(w, "no session")
		return
	}
	sums, err := s.history.ObservationSummaries(id)
	if err != nil {
		monitoring.Logf("failed to summarise observations for %s: %v", id, err)
		httputil.InternalServerError(w, "failed to read observations")
		return
	}
	if sums == nil {
		sums = []db.ObservationSummary{}
	}
	httputil.WriteJSONOK(w, observationsResponse{SessionID: id, Types: sums})
}

type statsResponse struct {
	Radar  radar.Stats      `json:"radar"`
	Ingest *serialmux.Stats `json:"ingest,omitempty"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	resp := statsResponse{Radar: s.store.Stats()}
	if s.m != nil {
		st := s.m.Stats()
		resp.Ingest = &st
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	httputil.WriteJSONOK(w, s.cfg)
}

type tiresResponse struct {
	Path   string               `json:"path"`
	Record telemetry.TireRecord `json:"record"`
}

func (s *Server) showTires(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.tires == nil {
		httputil.NotFound(w, "tire telemetry disabled")
		return
	}
	rec, ok := s.tires.Current()
	if !ok {
		httputil.ServiceUnavailable(w, "no tire telemetry yet")
		return
	}
	httputil.WriteJSONOK(w, tiresResponse{Path: s.tires.ActivePath(), Record: rec})
}
