package store

import (
	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/window"
)

// SignalSnapshot is the consistent view of one signal.
type SignalSnapshot struct {
	Window     []float64    `json:"window"`
	WindowMean float64      `json:"window_mean"`
	History    []float64    `json:"history,omitempty"`
	State      alert.State  `json:"state"`
	Stats      window.Stats `json:"stats"`
}

// Snapshot is a consistent view of the whole store taken under one lock.
type Snapshot struct {
	Seq         int                `json:"seq"`
	Capacity    int                `json:"capacity"`
	Tilt        SignalSnapshot     `json:"tilt"`
	Vibration   SignalSnapshot     `json:"vibration"`
	Alerts      []alert.Event      `json:"alerts"`
	AlertCounts map[alert.Kind]int `json:"alert_counts"`
}

// Snapshot captures every field at a single instant. When withHistory is
// false the histories are omitted (their statistics are still computed),
// which keeps periodic chart refreshes cheap to serialise.
func (s *Store) Snapshot(withHistory bool) Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Seq:         len(s.tiltHist),
		Capacity:    s.tiltWin.Cap(),
		Alerts:      append([]alert.Event(nil), s.alerts...),
		AlertCounts: countAlerts(s.alerts),
	}
	tiltHist, vibHist := clip(s.tiltHist), clip(s.vibHist)
	snap.Tilt = SignalSnapshot{
		Window:     s.tiltWin.Slice(),
		WindowMean: s.tiltWin.Mean(),
		State:      s.states[alert.Tilt],
	}
	snap.Vibration = SignalSnapshot{
		Window:     s.vibWin.Slice(),
		WindowMean: s.vibWin.Mean(),
		State:      s.states[alert.Vibration],
	}
	s.mu.RUnlock()

	// Histories are immutable below their captured length, so statistics
	// can be computed outside the lock.
	snap.Tilt.Stats = window.Describe(tiltHist)
	snap.Vibration.Stats = window.Describe(vibHist)
	if withHistory {
		snap.Tilt.History = tiltHist
		snap.Vibration.History = vibHist
	}
	return snap
}

// Signal returns the snapshot of sig.
func (s Snapshot) Signal(sig Signal) SignalSnapshot {
	if sig == alert.Vibration {
		return s.Vibration
	}
	return s.Tilt
}
