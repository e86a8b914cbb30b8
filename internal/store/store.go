// Package store holds the signal state published by the ingestion loop and
// read concurrently by the chart, stream and report consumers.
//
// There is exactly one writer (the ingestion goroutine). Readers never see a
// partially applied step: Publish appends the sample, records the alerts it
// raised and updates the alerter states in one critical section, and the
// unbounded histories are append-only so a snapshot can share their backing
// arrays without copying.
package store

import (
	"sync"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/window"
)

// Signal identifies one of the two derived signals.
type Signal = alert.Kind

// Store is the shared signal store.
type Store struct {
	mu sync.RWMutex

	tiltWin *window.Window
	vibWin  *window.Window

	// t of the i-th appended sample is i, so histories double as the
	// (t, value) series.
	tiltHist []float64
	vibHist  []float64

	alerts []alert.Event
	states [2]alert.State
}

// New creates an empty store whose windows hold capacity values.
func New(capacity int) *Store {
	s := &Store{}
	s.reset(capacity)
	return s
}

// Reset clears windows, histories, alert log, states and the sequence
// counter. Snapshots taken before Reset keep their contents.
func (s *Store) Reset(capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(capacity)
}

func (s *Store) reset(capacity int) {
	s.tiltWin = window.New(capacity)
	s.vibWin = window.New(capacity)
	s.tiltHist = nil
	s.vibHist = nil
	s.alerts = nil
	s.states = [2]alert.State{}
}

// Decide maps the window means produced by sample t to the alerts that
// sample raised and the resulting alerter states. It runs with the store
// locked and must not call back into the store.
type Decide func(t int, tiltMean, vibMean float64) (raised []alert.Event, tilt, vib alert.State)

// Publish appends one tilt/vibration pair, passes the updated window means to
// decide and records the alerts and states it returns, all under one lock.
// It returns the sequence index t, the means and the raised alerts.
func (s *Store) Publish(tilt, vib float64, decide Decide) (t int, tiltMean, vibMean float64, raised []alert.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, tiltMean, vibMean = s.append(tilt, vib)
	raised, tiltState, vibState := decide(t, tiltMean, vibMean)
	s.alerts = append(s.alerts, raised...)
	s.states = [2]alert.State{tiltState, vibState}
	return t, tiltMean, vibMean, raised
}

// Append publishes one tilt/vibration pair without touching alerts or
// states and returns its sequence index t together with the updated window
// means.
func (s *Store) Append(tilt, vib float64) (t int, tiltMean, vibMean float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(tilt, vib)
}

func (s *Store) append(tilt, vib float64) (t int, tiltMean, vibMean float64) {
	t = len(s.tiltHist)
	s.tiltWin.Push(tilt)
	s.vibWin.Push(vib)
	s.tiltHist = append(s.tiltHist, tilt)
	s.vibHist = append(s.vibHist, vib)
	return t, s.tiltWin.Mean(), s.vibWin.Mean()
}

// Seq returns the number of samples appended, which is also the next t.
func (s *Store) Seq() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiltHist)
}

// Capacity returns the window capacity.
func (s *Store) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiltWin.Cap()
}

// Window returns a copy of the bounded window for sig, oldest first.
func (s *Store) Window(sig Signal) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.win(sig).Slice()
}

// WindowMean returns the mean of the bounded window for sig.
func (s *Store) WindowMean(sig Signal) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.win(sig).Mean()
}

// History returns a read-only view of the unbounded history for sig.
// Callers must not modify the returned slice.
func (s *Store) History(sig Signal) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clip(s.hist(sig))
}

// Alerts returns a copy of the alert log.
func (s *Store) Alerts() []alert.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]alert.Event(nil), s.alerts...)
}

// AlertCounts returns the number of alerts raised per kind.
func (s *Store) AlertCounts() map[alert.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countAlerts(s.alerts)
}

// States returns the published alerter states.
func (s *Store) States() map[alert.Kind]alert.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[alert.Kind]alert.State{
		alert.Tilt:      s.states[alert.Tilt],
		alert.Vibration: s.states[alert.Vibration],
	}
}

// Stats computes descriptive statistics over the unbounded history of sig.
func (s *Store) Stats(sig Signal) window.Stats {
	return window.Describe(s.History(sig))
}

func (s *Store) win(sig Signal) *window.Window {
	if sig == alert.Vibration {
		return s.vibWin
	}
	return s.tiltWin
}

func (s *Store) hist(sig Signal) []float64 {
	if sig == alert.Vibration {
		return s.vibHist
	}
	return s.tiltHist
}

// clip caps capacity at length so an append by a reader can never write into
// the writer's spare capacity.
func clip(xs []float64) []float64 {
	return xs[:len(xs):len(xs)]
}

func countAlerts(evs []alert.Event) map[alert.Kind]int {
	counts := map[alert.Kind]int{alert.Tilt: 0, alert.Vibration: 0}
	for _, ev := range evs {
		counts[ev.Kind]++
	}
	return counts
}
