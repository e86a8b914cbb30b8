package session

import (
	"time"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/ingest"
	"github.com/banshee-data/riggy/internal/store"
	"github.com/banshee-data/riggy/internal/window"
)

// Summary describes a finished session. Raw samples are not included.
type Summary struct {
	ID          string                `json:"id"`
	StartedAt   time.Time             `json:"started_at"`
	StoppedAt   time.Time             `json:"stopped_at"`
	Config      config.SessionConfig  `json:"config"`
	Samples     int                   `json:"samples"`
	Tilt        window.Stats          `json:"tilt"`
	Vibration   window.Stats          `json:"vibration"`
	AlertCounts map[alert.Kind]int    `json:"alert_counts"`
	Alerts      []alert.Event         `json:"alerts"`
	Datagrams   ingest.DatagramCounts `json:"datagrams"`
}

// Duration returns how long the session ran.
func (s *Summary) Duration() time.Duration {
	return s.StoppedAt.Sub(s.StartedAt)
}

// Summarize builds a summary of the session held in st. It is used for
// sessions that did not run under a Manager, such as capture replays.
func Summarize(id string, started, stopped time.Time, cfg config.SessionConfig, st *store.Store, datagrams ingest.DatagramCounts) *Summary {
	snap := st.Snapshot(false)
	return &Summary{
		ID:          id,
		StartedAt:   started,
		StoppedAt:   stopped,
		Config:      cfg,
		Samples:     snap.Seq,
		Tilt:        snap.Tilt.Stats,
		Vibration:   snap.Vibration.Stats,
		AlertCounts: snap.AlertCounts,
		Alerts:      snap.Alerts,
		Datagrams:   datagrams,
	}
}

func (m *Manager) summaryLocked() *Summary {
	var counts ingest.DatagramCounts
	if m.loop != nil {
		counts = m.loop.Stats().Totals()
	}
	return Summarize(m.id, m.startedAt, m.stoppedAt, m.cfg, m.store, counts)
}
