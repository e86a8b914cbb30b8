// Package notify publishes raised alerts to a NATS subject so other
// services can react to them.
package notify

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/monitoring"
)

// DefaultSubject is the subject alerts are published on.
const DefaultSubject = "riggy.alerts"

// Publisher is the part of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials a NATS server, reconnecting forever in the background.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// Message is the published payload.
type Message struct {
	Session   string    `json:"session"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// Sink publishes each alert it receives. Publish failures are logged and
// dropped.
type Sink struct {
	pub     Publisher
	subject string
	session string
	units   map[alert.Kind]string
}

// NewSink returns a sink publishing to subject, or DefaultSubject when
// subject is empty. vibUnit is the symbol of the vibration unit.
func NewSink(pub Publisher, subject, session, vibUnit string) *Sink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Sink{
		pub:     pub,
		subject: subject,
		session: session,
		units:   map[alert.Kind]string{alert.Tilt: "deg", alert.Vibration: vibUnit},
	}
}

// OnAlert publishes ev.
func (s *Sink) OnAlert(ev alert.Event) {
	b, err := json.Marshal(Message{
		Session:   s.session,
		Kind:      ev.Kind.String(),
		Timestamp: ev.Time,
		Value:     ev.Value,
		Unit:      s.units[ev.Kind],
	})
	if err != nil {
		monitoring.Logf("Failed to encode alert: %v", err)
		return
	}
	if err := s.pub.Publish(s.subject, b); err != nil {
		monitoring.Logf("Failed to publish alert on %s: %v", s.subject, err)
	}
}
