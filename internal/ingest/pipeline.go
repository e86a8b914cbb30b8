package ingest

import (
	"sync/atomic"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/fusion"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/sensor"
	"github.com/banshee-data/riggy/internal/store"
	"github.com/banshee-data/riggy/internal/timeutil"
	"github.com/banshee-data/riggy/internal/units"
)

// Result describes what one accepted sample produced.
type Result struct {
	// Calibrating is set while the sample only fed the gravity estimate.
	Calibrating bool

	T         int
	Tilt      float64
	Vibration float64
	TiltMean  float64
	VibMean   float64
	Raised    []alert.Event
}

// Pipeline turns accepted accelerometer samples into published signal
// state. It is not safe for concurrent use: the owning loop is the only
// caller, and the store is the only thing other goroutines read.
type Pipeline struct {
	store   *store.Store
	gravity *fusion.GravityEstimator
	unit    units.Accel
	tilt    *alert.Alerter
	vib     *alert.Alerter
	sinks   []alert.Sink
	metrics *Metrics

	calibrationLen  int
	calibrationSeen int
	calibrated      atomic.Bool
}

// PipelineOptions carries the collaborators a pipeline needs in addition to
// the session config.
type PipelineOptions struct {
	Clock   timeutil.Clock
	Sinks   []alert.Sink
	Metrics *Metrics
}

// NewPipeline builds a pipeline writing into st. The store is expected to
// have been reset with cfg's window size.
func NewPipeline(st *store.Store, cfg *config.SessionConfig, opts PipelineOptions) *Pipeline {
	if cfg == nil {
		cfg = &config.SessionConfig{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		store:          st,
		gravity:        fusion.NewGravityEstimator(cfg.GetSmoothingAlpha()),
		unit:           cfg.GetVibrationUnit(),
		tilt:           alert.NewAlerter(alert.Tilt, cfg.GetTiltThreshold(), cfg.GetTiltMargin(), clock),
		vib:            alert.NewAlerter(alert.Vibration, cfg.GetVibrationThreshold(), cfg.GetVibrationMargin(), clock),
		sinks:          opts.Sinks,
		metrics:        opts.Metrics,
		calibrationLen: cfg.GetWindowSize(),
	}
}

// Calibrated reports whether the calibration phase has ended. It may be
// called from any goroutine.
func (p *Pipeline) Calibrated() bool { return p.calibrated.Load() }

// Gravity returns the current gravity estimate.
func (p *Pipeline) Gravity() fusion.Vec3 { return p.gravity.Gravity() }

// Process folds one accepted sample into the session.
func (p *Pipeline) Process(s sensor.Sample) Result {
	a := fusion.Vec3{X: s.Values[0], Y: s.Values[1], Z: s.Values[2]}

	if !p.calibrated.Load() {
		p.gravity.Update(a)
		p.calibrationSeen++
		if p.calibrationSeen >= p.calibrationLen {
			p.calibrated.Store(true)
			g := p.gravity.Gravity()
			monitoring.Logf("Calibration complete after %d samples: gravity=(%.3f, %.3f, %.3f)",
				p.calibrationSeen, g.X, g.Y, g.Z)
		}
		return Result{Calibrating: true}
	}

	g := p.gravity.Update(a)
	r := Result{
		Tilt:      fusion.Tilt(g),
		Vibration: fusion.VibrationIn(a, p.unit),
	}
	type cleared struct {
		kind alert.Kind
		mean float64
	}
	var clears []cleared
	r.T, r.TiltMean, r.VibMean, r.Raised = p.store.Publish(r.Tilt, r.Vibration,
		func(_ int, tiltMean, vibMean float64) ([]alert.Event, alert.State, alert.State) {
			var raised []alert.Event
			for _, o := range [...]struct {
				a    *alert.Alerter
				mean float64
			}{{p.tilt, tiltMean}, {p.vib, vibMean}} {
				was := o.a.State()
				if ev, ok := o.a.Observe(o.mean); ok {
					raised = append(raised, ev)
				} else if was == alert.Alerting && o.a.State() == alert.Idle {
					clears = append(clears, cleared{o.a.Kind(), o.mean})
				}
			}
			return raised, p.tilt.State(), p.vib.State()
		})
	p.metrics.means(r.TiltMean, r.VibMean)

	for _, c := range clears {
		monitoring.Logf("Cleared %s at t=%d: window mean %.3f", c.kind, r.T, c.mean)
	}
	for _, ev := range r.Raised {
		monitoring.Logf("ALERT %s at t=%d: window mean %.3f", ev.Kind, r.T, ev.Value)
		p.metrics.alert(ev.Kind)
		for _, sink := range p.sinks {
			sink.OnAlert(ev)
		}
	}
	return r
}
