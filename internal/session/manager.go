// Package session runs at most one ingestion session at a time and keeps the
// signal store, configuration, and lifecycle status that the HTTP layer and
// the CLI read.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/ingest"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/store"
	"github.com/banshee-data/riggy/internal/timeutil"
)

var (
	// ErrAlreadyRunning is returned when a session is active.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrBind wraps a failure to bind the sensor socket.
	ErrBind = errors.New("failed to bind sensor socket")
)

// Status is the lifecycle state shown on the chart page.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusCalibrating Status = "calibrating"
	StatusRunning     Status = "running"
	StatusStopped     Status = "stopped"
)

// Label returns the short human label for the status.
func (s Status) Label() string {
	switch s {
	case StatusCalibrating:
		return "Calibrating..."
	case StatusRunning:
		return "Receiving..."
	case StatusStopped:
		return "Stopped"
	}
	return "Ready"
}

// Archiver persists finished sessions.
type Archiver interface {
	SaveSession(ctx context.Context, s *Summary) error
}

// Options wires the manager's collaborators. All fields are optional.
type Options struct {
	Factory ingest.UDPSocketFactory
	Clock   timeutil.Clock
	Metrics *ingest.Metrics
	// Sinks returns the alert sinks for session id started with cfg.
	Sinks         func(id string, cfg *config.SessionConfig) []alert.Sink
	Archive       Archiver
	StatsInterval time.Duration
}

// Manager owns the session lifecycle. Its methods are safe for concurrent
// use.
type Manager struct {
	opts  Options
	clock timeutil.Clock
	store *store.Store

	mu        sync.Mutex
	cfg       config.SessionConfig
	id        string
	status    Status
	startedAt time.Time
	stoppedAt time.Time
	loop      *ingest.Loop
	cancel    context.CancelFunc
	done      chan struct{}
	runErr    error
	last      *Summary
}

// NewManager returns an idle manager with an empty store.
func NewManager(opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if opts.Factory == nil {
		opts.Factory = ingest.RealUDPSocketFactory{}
	}
	return &Manager{
		opts:   opts,
		clock:  clock,
		store:  store.New(config.DefaultWindowSize),
		status: StatusIdle,
	}
}

// Start binds the sensor socket, resets the store and launches the
// ingestion goroutine. The session lives until Stop is called or ctx is
// cancelled. On error nothing has changed: no goroutine runs and the store
// still holds the previous session.
func (m *Manager) Start(ctx context.Context, cfg *config.SessionConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return "", ErrAlreadyRunning
	}

	c := config.SessionConfig{}.Merge(cfg)
	if err := c.Validate(); err != nil {
		return "", err
	}

	port := c.GetPort()
	sock, err := ingest.Listen(m.opts.Factory, port, c.GetBufferSize())
	if err != nil {
		return "", fmt.Errorf("%w on port %d: %w", ErrBind, port, err)
	}

	// Reset before the goroutine exists, so the new session can never
	// publish into a half-cleared store.
	m.store.Reset(c.GetWindowSize())

	id := uuid.NewString()
	var sinks []alert.Sink
	if m.opts.Sinks != nil {
		sinks = m.opts.Sinks(id, &c)
	}
	pipeline := ingest.NewPipeline(m.store, &c, ingest.PipelineOptions{
		Clock:   m.clock,
		Sinks:   sinks,
		Metrics: m.opts.Metrics,
	})
	loop := ingest.NewLoop(ingest.LoopConfig{
		Socket:        sock,
		Pipeline:      pipeline,
		Metrics:       m.opts.Metrics,
		BufferSize:    c.GetBufferSize(),
		Timeout:       c.GetReceiveTimeout(),
		StatsInterval: m.opts.StatsInterval,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.cfg = c
	m.id = id
	m.status = StatusCalibrating
	m.startedAt = m.clock.Now()
	m.stoppedAt = time.Time{}
	m.loop = loop
	m.cancel = cancel
	m.done = done
	m.runErr = nil
	m.last = nil

	monitoring.Logf("Session %s started: port=%d window=%d tilt>=%.2f vibration>=%.3f %s",
		m.id, port, c.GetWindowSize(), c.GetTiltThreshold(), c.GetVibrationThreshold(), c.GetVibrationUnit())

	go m.run(runCtx, cancel, id, loop, done)
	return id, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, id string, loop *ingest.Loop, done chan struct{}) {
	defer close(done)
	defer cancel()

	err := loop.Run(ctx)
	if err != nil {
		monitoring.Logf("Session %s ended with error: %v", id, err)
	}

	m.mu.Lock()
	m.cancel = nil
	m.status = StatusStopped
	m.stoppedAt = m.clock.Now()
	m.runErr = err
	sum := m.summaryLocked()
	m.last = sum
	m.mu.Unlock()

	monitoring.Logf("Session %s stopped: %d samples, %d tilt alerts, %d vibration alerts",
		id, sum.Samples, sum.AlertCounts[alert.Tilt], sum.AlertCounts[alert.Vibration])

	if m.opts.Archive != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.opts.Archive.SaveSession(saveCtx, sum); err != nil {
			monitoring.Logf("Failed to archive session %s: %v", id, err)
		}
	}
}

// Stop cancels the running session and waits for it to finish. It returns
// the loop's error, which is nil for a normal stop. Stop without a running
// session is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return m.Err()
}

// Wait blocks until the current session, if any, has finished.
func (m *Manager) Wait() error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	return m.Err()
}

// Reset clears the store and returns to idle. It fails while a session is
// running.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrAlreadyRunning
	}
	m.store.Reset(m.cfg.GetWindowSize())
	m.id = ""
	m.status = StatusIdle
	m.startedAt = time.Time{}
	m.stoppedAt = time.Time{}
	m.loop = nil
	m.done = nil
	m.runErr = nil
	m.last = nil
	return nil
}

// Err returns the error the last session ended with.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErr
}

// Status returns the lifecycle state. A running session reports
// calibrating until its gravity estimate is ready.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	if m.status == StatusCalibrating && m.loop.Pipeline().Calibrated() {
		return StatusRunning
	}
	return m.status
}

// Store returns the shared signal store. The same store is reused across
// sessions.
func (m *Manager) Store() *store.Store { return m.store }

// Config returns a copy of the current or most recent session config.
func (m *Manager) Config() config.SessionConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Last returns the summary of the most recently finished session, or nil
// while a session runs or before the first one ends.
func (m *Manager) Last() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Info is the status document served to clients.
type Info struct {
	ID        string                `json:"id,omitempty"`
	Status    Status                `json:"status"`
	Label     string                `json:"label"`
	StartedAt *time.Time            `json:"started_at,omitempty"`
	StoppedAt *time.Time            `json:"stopped_at,omitempty"`
	Seq       int                   `json:"seq"`
	Datagrams ingest.DatagramCounts `json:"datagrams"`
	Error     string                `json:"error,omitempty"`
}

// Info returns the current status document.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.statusLocked()
	info := Info{
		ID:     m.id,
		Status: st,
		Label:  st.Label(),
		Seq:    m.store.Seq(),
	}
	if !m.startedAt.IsZero() {
		t := m.startedAt
		info.StartedAt = &t
	}
	if !m.stoppedAt.IsZero() {
		t := m.stoppedAt
		info.StoppedAt = &t
	}
	if m.loop != nil {
		info.Datagrams = m.loop.Stats().Totals()
	}
	if m.runErr != nil {
		info.Error = m.runErr.Error()
	}
	return info
}
