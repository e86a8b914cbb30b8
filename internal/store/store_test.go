package store

import (
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAssignsIncreasingSeq(t *testing.T) {
	s := New(3)
	for i := range 5 {
		seq, _, _ := s.Append(float64(i), float64(i)/10)
		assert.Equal(t, i, seq)
	}
	assert.Equal(t, 5, s.Seq())
	assert.Equal(t, []float64{2, 3, 4}, s.Window(alert.Tilt))
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, s.History(alert.Tilt))
	assert.InDelta(t, 0.3, s.WindowMean(alert.Vibration), 1e-12)
}

func TestStore_AppendReturnsWindowMeans(t *testing.T) {
	s := New(2)
	s.Append(10, 1)
	_, tiltMean, vibMean := s.Append(20, 3)
	assert.Equal(t, 15.0, tiltMean)
	assert.Equal(t, 2.0, vibMean)
}

// decided returns a Decide that ignores the means and reports fixed results.
func decided(raised []alert.Event, tilt, vib alert.State) Decide {
	return func(int, float64, float64) ([]alert.Event, alert.State, alert.State) {
		return raised, tilt, vib
	}
}

func TestStore_PublishPassesMeans(t *testing.T) {
	s := New(2)
	s.Append(80, 1)

	var gotT int
	var gotTilt, gotVib float64
	tt, tiltMean, vibMean, raised := s.Publish(90, 2, func(t int, tiltMean, vibMean float64) ([]alert.Event, alert.State, alert.State) {
		gotT, gotTilt, gotVib = t, tiltMean, vibMean
		return []alert.Event{{Kind: alert.Tilt, Value: tiltMean}}, alert.Alerting, alert.Idle
	})

	assert.Equal(t, 1, tt)
	assert.Equal(t, 1, gotT)
	assert.Equal(t, 85.0, gotTilt)
	assert.Equal(t, 1.5, gotVib)
	assert.Equal(t, gotTilt, tiltMean)
	assert.Equal(t, gotVib, vibMean)
	assert.Equal(t, []alert.Event{{Kind: alert.Tilt, Value: 85}}, raised)
	assert.Equal(t, raised, s.Alerts())
	assert.Equal(t, alert.Alerting, s.States()[alert.Tilt])
}

func TestStore_AlertsAndStates(t *testing.T) {
	s := New(20)
	now := time.Now()
	s.Publish(81, 1.7, decided([]alert.Event{
		{Kind: alert.Tilt, Time: now, Value: 81},
		{Kind: alert.Vibration, Time: now, Value: 1.7},
	}, alert.Alerting, alert.Alerting))
	s.Publish(85, 0, decided([]alert.Event{
		{Kind: alert.Tilt, Time: now, Value: 85},
	}, alert.Alerting, alert.Idle))

	assert.Len(t, s.Alerts(), 3)
	assert.Equal(t, map[alert.Kind]int{alert.Tilt: 2, alert.Vibration: 1}, s.AlertCounts())
	assert.Equal(t, alert.Alerting, s.States()[alert.Tilt])
	assert.Equal(t, alert.Idle, s.States()[alert.Vibration])
}

func TestStore_CountsIncludeZeroKinds(t *testing.T) {
	s := New(20)
	assert.Equal(t, map[alert.Kind]int{alert.Tilt: 0, alert.Vibration: 0}, s.AlertCounts())
}

func TestStore_Reset(t *testing.T) {
	s := New(3)
	s.Publish(1, 2, decided([]alert.Event{{Kind: alert.Tilt}}, alert.Alerting, alert.Alerting))
	before := s.Snapshot(true)

	s.Reset(5)
	assert.Equal(t, 0, s.Seq())
	assert.Equal(t, 5, s.Capacity())
	assert.Empty(t, s.Window(alert.Tilt))
	assert.Empty(t, s.History(alert.Vibration))
	assert.Empty(t, s.Alerts())
	assert.Equal(t, alert.Idle, s.States()[alert.Tilt])

	// Earlier snapshots are unaffected.
	assert.Equal(t, []float64{1}, before.Tilt.History)
	assert.Len(t, before.Alerts, 1)
}

func TestStore_Stats(t *testing.T) {
	s := New(2)
	for _, v := range []float64{10, 20, 30, 40} {
		s.Append(v, v/10)
	}
	st := s.Stats(alert.Tilt)
	assert.Equal(t, 4, st.Count)
	assert.Equal(t, 25.0, st.Mean)
	assert.Equal(t, 10.0, st.Min)
	assert.Equal(t, 40.0, st.Max)
	assert.Equal(t, 4.0, s.Stats(alert.Vibration).Max)
}

func TestStore_Snapshot(t *testing.T) {
	s := New(2)
	s.Append(5, 0.5)
	s.Append(7, 0.7)
	s.Publish(9, 0.9, decided(nil, alert.Idle, alert.Alerting))

	snap := s.Snapshot(false)
	assert.Equal(t, 3, snap.Seq)
	assert.Equal(t, 2, snap.Capacity)
	assert.Equal(t, []float64{7, 9}, snap.Tilt.Window)
	assert.Equal(t, 8.0, snap.Tilt.WindowMean)
	assert.Nil(t, snap.Tilt.History)
	assert.Equal(t, 3, snap.Tilt.Stats.Count)
	assert.Equal(t, alert.Alerting, snap.Signal(alert.Vibration).State)

	full := s.Snapshot(true)
	assert.Equal(t, []float64{5, 7, 9}, full.Tilt.History)
}

func TestStore_HistoryViewIsReadOnlyPrefix(t *testing.T) {
	s := New(4)
	s.Append(1, 1)
	view := s.History(alert.Tilt)
	s.Append(2, 2)

	// A reader appending to its view must not clobber the writer's data.
	view = append(view, 99)
	assert.Equal(t, []float64{1, 2}, s.History(alert.Tilt))
	assert.Equal(t, []float64{1, 99}, view)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := New(20)
	const n = 5000

	var wg sync.WaitGroup
	done := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Snapshot(true)
				// Every published pair is complete and the window is bounded.
				if len(snap.Tilt.History) != len(snap.Vibration.History) {
					t.Errorf("torn snapshot: %d tilt vs %d vibration", len(snap.Tilt.History), len(snap.Vibration.History))
					return
				}
				if len(snap.Tilt.Window) > 20 {
					t.Errorf("window length %d exceeds capacity", len(snap.Tilt.Window))
					return
				}
				for i, v := range snap.Tilt.History {
					if v != float64(i) {
						t.Errorf("history[%d] = %v", i, v)
						return
					}
				}
			}
		}()
	}

	for i := range n {
		s.Append(float64(i), float64(i))
	}
	close(done)
	wg.Wait()

	require.Equal(t, n, s.Seq())
}

func TestStore_SnapshotSeesWholeSteps(t *testing.T) {
	s := New(20)
	const n = 5000

	// Step t raises one alert carrying t and leaves tilt alerting on even t.
	step := func(t int, _, _ float64) ([]alert.Event, alert.State, alert.State) {
		st := alert.Idle
		if t%2 == 0 {
			st = alert.Alerting
		}
		return []alert.Event{{Kind: alert.Tilt, Value: float64(t)}}, st, alert.Idle
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Snapshot(false)
				if len(snap.Alerts) != snap.Seq {
					t.Errorf("seq %d with %d alerts", snap.Seq, len(snap.Alerts))
					return
				}
				if snap.Seq == 0 {
					continue
				}
				last := snap.Seq - 1
				if got := snap.Alerts[last].Value; got != float64(last) {
					t.Errorf("last alert value %v at seq %d", got, snap.Seq)
					return
				}
				want := alert.Idle
				if last%2 == 0 {
					want = alert.Alerting
				}
				if snap.Tilt.State != want {
					t.Errorf("seq %d: tilt state %v, want %v", snap.Seq, snap.Tilt.State, want)
					return
				}
			}
		}()
	}

	for i := range n {
		s.Publish(float64(i), 0, step)
	}
	close(done)
	wg.Wait()

	assert.Len(t, s.Alerts(), n)
}
