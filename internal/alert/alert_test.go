package alert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/banshee-data/riggy/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAlerter(kind Kind, raise, margin float64) (*Alerter, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	return NewAlerter(kind, raise, margin, clock), clock
}

func TestAlerter_RaiseOnce(t *testing.T) {
	a, clock := newTestAlerter(Tilt, 80, 20)
	assert.Equal(t, Idle, a.State())

	_, raised := a.Observe(79.9)
	assert.False(t, raised)
	assert.Equal(t, Idle, a.State())

	ev, raised := a.Observe(80)
	require.True(t, raised, "mean equal to threshold must raise")
	assert.Equal(t, Tilt, ev.Kind)
	assert.Equal(t, 80.0, ev.Value)
	assert.Equal(t, clock.Now(), ev.Time)
	assert.Equal(t, Alerting, a.State())
}

func TestAlerter_HeldAtThresholdEmitsOnce(t *testing.T) {
	a, _ := newTestAlerter(Tilt, 80, 20)

	events := 0
	for range 500 {
		if _, raised := a.Observe(80); raised {
			events++
		}
	}
	assert.Equal(t, 1, events)
	assert.Equal(t, Alerting, a.State())
}

func TestAlerter_Hysteresis(t *testing.T) {
	a, _ := newTestAlerter(Vibration, 1.5, 0.3)

	steps := []struct {
		mean   float64
		raised bool
		state  State
	}{
		{0.2, false, Idle},
		{1.6, true, Alerting},
		{1.4, false, Alerting}, // below raise but above clear
		{1.2, false, Alerting}, // clear threshold itself does not clear
		{1.55, false, Alerting},
		{1.19, false, Idle}, // silent clear
		{1.3, false, Idle},
		{1.5, true, Alerting}, // re-armed
	}
	for i, s := range steps {
		_, raised := a.Observe(s.mean)
		assert.Equal(t, s.raised, raised, "step %d mean=%v", i, s.mean)
		assert.Equal(t, s.state, a.State(), "step %d mean=%v", i, s.mean)
	}
}

func TestAlerter_OscillatingSignalDoesNotFlood(t *testing.T) {
	a, _ := newTestAlerter(Tilt, 80, 20)

	events := 0
	for i := range 1000 {
		mean := 79.0
		if i%2 == 0 {
			mean = 81.0
		}
		if _, raised := a.Observe(mean); raised {
			events++
		}
	}
	assert.Equal(t, 1, events)
}

func TestAlerter_ThresholdsAndReset(t *testing.T) {
	a, _ := newTestAlerter(Tilt, 80, 20)
	raise, clear := a.Thresholds()
	assert.Equal(t, 80.0, raise)
	assert.Equal(t, 60.0, clear)

	a.Observe(90)
	a.Reset()
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, Tilt, a.Kind())
}

func TestKind_Text(t *testing.T) {
	b, err := json.Marshal(Event{Kind: Vibration, Value: 2})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"vibration"`)

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("tilt")))
	assert.Equal(t, Tilt, k)
	assert.Error(t, k.UnmarshalText([]byte("wobble")))
	assert.Equal(t, "kind(7)", Kind(7).String())

	var st State
	require.NoError(t, st.UnmarshalText([]byte("alerting")))
	assert.Equal(t, Alerting, st)
	assert.Error(t, st.UnmarshalText([]byte("maybe")))
}

func TestSinkFunc(t *testing.T) {
	var got []Event
	var s Sink = SinkFunc(func(ev Event) { got = append(got, ev) })
	s.OnAlert(Event{Kind: Tilt, Value: 85})
	require.Len(t, got, 1)
	assert.Equal(t, 85.0, got[0].Value)
}
