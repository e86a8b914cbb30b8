// Package alert implements the hysteretic threshold alerter applied to each
// smoothed signal.
package alert

import (
	"fmt"
	"time"

	"github.com/banshee-data/riggy/internal/timeutil"
)

// Kind identifies the signal an alert was raised on.
type Kind int

const (
	Tilt Kind = iota
	Vibration
)

// Kinds lists every alert kind in display order.
var Kinds = []Kind{Tilt, Vibration}

func (k Kind) String() string {
	switch k {
	case Tilt:
		return "tilt"
	case Vibration:
		return "vibration"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "tilt":
		*k = Tilt
	case "vibration":
		*k = Vibration
	default:
		return fmt.Errorf("unknown alert kind %q", b)
	}
	return nil
}

// State is the alerter state.
type State int

const (
	Idle State = iota
	Alerting
)

func (s State) String() string {
	if s == Alerting {
		return "alerting"
	}
	return "idle"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "alerting":
		*s = Alerting
	default:
		return fmt.Errorf("unknown alert state %q", b)
	}
	return nil
}

// Event is one Idle->Alerting transition. Events are append-only.
type Event struct {
	Kind  Kind      `json:"kind"`
	Time  time.Time `json:"timestamp"`
	Value float64   `json:"value"`
}

// Sink receives raised alerts. Implementations must not block the caller.
type Sink interface {
	OnAlert(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// OnAlert calls f(ev).
func (f SinkFunc) OnAlert(ev Event) { f(ev) }

// Alerter raises when the windowed mean reaches the raise threshold and
// clears, silently, only once the mean falls below raise-margin.
type Alerter struct {
	kind   Kind
	raise  float64
	margin float64
	state  State
	clock  timeutil.Clock
}

// NewAlerter creates an Idle alerter. A nil clock uses the real clock.
func NewAlerter(kind Kind, raise, margin float64, clock timeutil.Clock) *Alerter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Alerter{kind: kind, raise: raise, margin: margin, clock: clock}
}

// Observe evaluates one windowed mean. It returns the raised event and true
// only on the Idle->Alerting transition.
func (a *Alerter) Observe(mean float64) (Event, bool) {
	switch a.state {
	case Idle:
		if mean >= a.raise {
			a.state = Alerting
			return Event{Kind: a.kind, Time: a.clock.Now(), Value: mean}, true
		}
	case Alerting:
		if mean < a.raise-a.margin {
			a.state = Idle
		}
	}
	return Event{}, false
}

// State returns the current state.
func (a *Alerter) State() State { return a.state }

// Kind returns the signal this alerter watches.
func (a *Alerter) Kind() Kind { return a.kind }

// Thresholds returns the raise and clear thresholds.
func (a *Alerter) Thresholds() (raise, clear float64) {
	return a.raise, a.raise - a.margin
}

// Reset returns the alerter to Idle.
func (a *Alerter) Reset() { a.state = Idle }
