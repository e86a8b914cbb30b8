package ingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/riggy/internal/alert"
)

// Datagram outcome label values.
const (
	ResultAccepted      = "accepted"
	ResultNotApplicable = "not_applicable"
	ResultMalformed     = "malformed"
)

// Metrics are the Prometheus collectors fed by the pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Datagrams  *prometheus.CounterVec
	Bytes      prometheus.Counter
	Alerts     *prometheus.CounterVec
	WindowMean *prometheus.GaugeVec
}

// NewMetrics builds the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Datagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riggy",
			Name:      "datagrams_total",
			Help:      "Datagrams received, by decode result.",
		}, []string{"result"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riggy",
			Name:      "received_bytes_total",
			Help:      "Payload bytes received, whatever the decode result.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riggy",
			Name:      "alerts_total",
			Help:      "Alerts raised, by kind.",
		}, []string{"kind"}),
		WindowMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "riggy",
			Name:      "window_mean",
			Help:      "Current window mean, by signal.",
		}, []string{"signal"}),
	}
	if reg != nil {
		reg.MustRegister(m.Datagrams, m.Bytes, m.Alerts, m.WindowMean)
	}
	return m
}

func (m *Metrics) datagram(result string, bytes int) {
	if m == nil {
		return
	}
	m.Datagrams.WithLabelValues(result).Inc()
	m.Bytes.Add(float64(bytes))
}

func (m *Metrics) alert(k alert.Kind) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) means(tilt, vib float64) {
	if m == nil {
		return
	}
	m.WindowMean.WithLabelValues(alert.Tilt.String()).Set(tilt)
	m.WindowMean.WithLabelValues(alert.Vibration.String()).Set(vib)
}
