// Package api serves the session control, signal and report endpoints, the
// live chart page and the snapshot stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/report"
	"github.com/banshee-data/riggy/internal/session"
	"github.com/banshee-data/riggy/internal/store"
	"github.com/banshee-data/riggy/internal/timeutil"
	"github.com/banshee-data/riggy/internal/version"
)

// DefaultStreamInterval is how often /api/stream pushes a snapshot.
const DefaultStreamInterval = 100 * time.Millisecond

// Archive is the read side of the session archive.
type Archive interface {
	Sessions(ctx context.Context, limit int) ([]session.Summary, error)
	Session(ctx context.Context, id string) (*session.Summary, error)
}

// Options configures a Server. Manager is required.
type Options struct {
	Manager *session.Manager
	Archive Archive

	// Sessions started over HTTP live under Context, not the request.
	Context context.Context

	Gatherer       prometheus.Gatherer
	StreamInterval time.Duration

	// Defaults is merged under every start request.
	Defaults config.SessionConfig
	Clock    timeutil.Clock
}

// Server holds the HTTP handlers.
type Server struct {
	mgr      *session.Manager
	archive  Archive
	ctx      context.Context
	gatherer prometheus.Gatherer
	interval time.Duration
	defaults config.SessionConfig
	clock    timeutil.Clock
	upgrader websocket.Upgrader
}

// NewServer builds a server from opts.
func NewServer(opts Options) *Server {
	s := &Server{
		mgr:      opts.Manager,
		archive:  opts.Archive,
		ctx:      opts.Context,
		gatherer: opts.Gatherer,
		interval: opts.StreamInterval,
		defaults: opts.Defaults,
		clock:    opts.Clock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.interval <= 0 {
		s.interval = DefaultStreamInterval
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	return s
}

// ServeMux returns a mux with every route registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/window", s.showWindow)
	mux.HandleFunc("/api/history", s.showHistory)
	mux.HandleFunc("/api/alerts", s.listAlerts)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/session/start", s.startSession)
	mux.HandleFunc("/api/session/stop", s.stopSession)
	mux.HandleFunc("/api/session/reset", s.resetSession)
	mux.HandleFunc("/api/report", s.downloadReport)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/stream", s.stream)
	mux.HandleFunc("/chart", s.showChart)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.index)
	return mux
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/chart", http.StatusFound)
}

func getOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return false
	}
	return true
}

func postOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return false
	}
	return true
}

type statusResponse struct {
	session.Info
	Version string `json:"version"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	writeJSONOK(w, statusResponse{Info: s.mgr.Info(), Version: version.Version})
}

type configResponse struct {
	TiltThreshold      float64 `json:"tilt_threshold"`
	TiltClear          float64 `json:"tilt_clear"`
	VibrationThreshold float64 `json:"vibration_threshold"`
	VibrationClear     float64 `json:"vibration_clear"`
	VibrationUnit      string  `json:"vibration_unit"`
	WindowSize         int     `json:"window_size"`
	SmoothingAlpha     float64 `json:"smoothing_alpha"`
	Port               int     `json:"port"`
}

func resolvedConfig(c config.SessionConfig) configResponse {
	return configResponse{
		TiltThreshold:      c.GetTiltThreshold(),
		TiltClear:          c.GetTiltThreshold() - c.GetTiltMargin(),
		VibrationThreshold: c.GetVibrationThreshold(),
		VibrationClear:     c.GetVibrationThreshold() - c.GetVibrationMargin(),
		VibrationUnit:      string(c.GetVibrationUnit()),
		WindowSize:         c.GetWindowSize(),
		SmoothingAlpha:     c.GetSmoothingAlpha(),
		Port:               c.GetPort(),
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	writeJSONOK(w, resolvedConfig(s.mgr.Config()))
}

func (s *Server) showWindow(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	writeJSONOK(w, s.mgr.Store().Snapshot(false))
}

type historyResponse struct {
	Seq       int       `json:"seq"`
	Since     int       `json:"since"`
	Tilt      []float64 `json:"tilt"`
	Vibration []float64 `json:"vibration"`
}

// showHistory returns the unbounded histories. ?since=t returns only the
// values from index t on, so a poller can fetch increments.
func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	st := s.mgr.Store()
	tilt, vib := st.History(alert.Tilt), st.History(alert.Vibration)
	n := min(len(tilt), len(vib))
	since = min(since, n)
	writeJSONOK(w, historyResponse{
		Seq:       n,
		Since:     since,
		Tilt:      tilt[since:n],
		Vibration: vib[since:n],
	})
}

type alertsResponse struct {
	Alerts []alert.Event              `json:"alerts"`
	Counts map[alert.Kind]int         `json:"counts"`
	States map[alert.Kind]alert.State `json:"states"`
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	st := s.mgr.Store()
	evs := st.Alerts()
	if evs == nil {
		evs = []alert.Event{}
	}
	writeJSONOK(w, alertsResponse{Alerts: evs, Counts: st.AlertCounts(), States: st.States()})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	st := s.mgr.Store()
	writeJSONOK(w, map[string]interface{}{
		"seq":       st.Seq(),
		"tilt":      st.Stats(alert.Tilt),
		"vibration": st.Stats(alert.Vibration),
	})
}

// parseStartRequest reads a JSON SessionConfig body, or form fields as a
// start form would submit them. Form thresholds that do not parse fall back
// to the defaults.
func parseStartRequest(w http.ResponseWriter, r *http.Request) (*config.SessionConfig, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		// Thresholds may arrive as numbers or as the text a user typed.
		body := struct {
			*config.SessionConfig
			TiltThreshold      json.RawMessage `json:"tilt_threshold"`
			VibrationThreshold json.RawMessage `json:"vibration_threshold"`
		}{SessionConfig: &config.SessionConfig{}}
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		cfg := body.SessionConfig
		var err error
		if cfg.TiltThreshold, err = jsonThreshold(body.TiltThreshold, config.DefaultTiltThreshold); err != nil {
			return nil, fmt.Errorf("invalid JSON body: tilt_threshold: %w", err)
		}
		if cfg.VibrationThreshold, err = jsonThreshold(body.VibrationThreshold, config.DefaultVibrationThreshold); err != nil {
			return nil, fmt.Errorf("invalid JSON body: vibration_threshold: %w", err)
		}
		return cfg, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	cfg := &config.SessionConfig{}
	if r.Form.Has("tilt_threshold") {
		cfg.TiltThreshold = config.Float64(config.ParseThreshold(r.FormValue("tilt_threshold"), config.DefaultTiltThreshold))
	}
	if r.Form.Has("vibration_threshold") {
		cfg.VibrationThreshold = config.Float64(config.ParseThreshold(r.FormValue("vibration_threshold"), config.DefaultVibrationThreshold))
	}
	if v := r.FormValue("vibration_unit"); v != "" {
		cfg.VibrationUnit = config.String(v)
	}
	return cfg, nil
}

// jsonThreshold reads a threshold given as a JSON number or string. Strings
// go through config.ParseThreshold, so unparseable text yields def.
func jsonThreshold(raw json.RawMessage, def float64) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		return config.Float64(config.ParseThreshold(text, def)), nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return config.Float64(v), nil
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	req, err := parseStartRequest(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := s.defaults.Merge(req)

	id, err := s.mgr.Start(s.ctx, &cfg)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	case errors.Is(err, session.ErrAlreadyRunning):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, config.ErrInvalid):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrBind):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	if err := s.mgr.Stop(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONOK(w, s.mgr.Info())
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	if err := s.mgr.Reset(); err != nil {
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSONOK(w, s.mgr.Info())
}

// downloadReport serves the text report of the last finished session, or of
// an archived one with ?id=.
func (s *Server) downloadReport(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	sum := s.mgr.Last()
	if id := r.URL.Query().Get("id"); id != "" {
		if s.archive == nil {
			writeJSONError(w, http.StatusNotFound, "session archive disabled")
			return
		}
		var err error
		if sum, err = s.archive.Session(r.Context(), id); err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	if sum == nil {
		writeJSONError(w, http.StatusNotFound, "no finished session")
		return
	}

	now := s.clock.Now()
	var buf bytes.Buffer
	if err := report.WriteText(&buf, sum, now); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.TextFileName(now)))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	if s.archive == nil {
		writeJSONOK(w, []session.Summary{})
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		sum, err := s.archive.Session(r.Context(), id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONOK(w, sum)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := s.archive.Sessions(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []session.Summary{}
	}
	writeJSONOK(w, list)
}

// frame is one message on /api/stream.
type frame struct {
	Status session.Status `json:"status"`
	Label  string         `json:"label"`
	store.Snapshot
}
