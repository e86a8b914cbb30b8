// Package ingest owns the UDP socket and drives each session from raw
// datagrams through calibration into published tilt and vibration signals.
package ingest

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/sensor"
)

// DefaultStatsInterval is how often Run logs datagram rates.
const DefaultStatsInterval = time.Minute

// Loop is the single writer of a session's signal state.
type Loop struct {
	sock          UDPSocket
	pipeline      *Pipeline
	stats         *DatagramStats
	metrics       *Metrics
	bufSize       int
	timeout       time.Duration
	statsInterval time.Duration

	arrival uint64
}

// LoopConfig configures a Loop. Socket is required only for Run.
type LoopConfig struct {
	Socket        UDPSocket
	Pipeline      *Pipeline
	Stats         *DatagramStats
	Metrics       *Metrics
	BufferSize    int
	Timeout       time.Duration
	StatsInterval time.Duration
}

// NewLoop creates a loop. Zero values take the session defaults.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		sock:          cfg.Socket,
		pipeline:      cfg.Pipeline,
		stats:         cfg.Stats,
		metrics:       cfg.Metrics,
		bufSize:       cfg.BufferSize,
		timeout:       cfg.Timeout,
		statsInterval: cfg.StatsInterval,
	}
	if l.stats == nil {
		l.stats = NewDatagramStats()
	}
	if l.bufSize <= 0 {
		l.bufSize = config.DefaultBufferSize
	}
	if l.timeout <= 0 {
		l.timeout = config.DefaultReceiveTimeout
	}
	if l.statsInterval <= 0 {
		l.statsInterval = DefaultStatsInterval
	}
	return l
}

// Stats returns the loop's datagram counters.
func (l *Loop) Stats() *DatagramStats { return l.stats }

// Pipeline returns the pipeline the loop feeds.
func (l *Loop) Pipeline() *Pipeline { return l.pipeline }

// Run receives datagrams until ctx is cancelled, then closes the socket.
// Cancellation is a normal stop and returns nil, including when it arrives
// during calibration. Only an unexpected socket failure is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.sock.Close()

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go l.logStats(statsCtx)

	monitoring.Logf("Listening for sensor datagrams on %s", l.sock.LocalAddr())

	buf := make([]byte, l.bufSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.sock.SetReadDeadline(time.Now().Add(l.timeout)); err != nil {
			monitoring.Logf("Failed to set read deadline: %v", err)
		}

		n, _, err := l.sock.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("UDP read error: %v", err)
			continue
		}

		l.HandleDatagram(buf[:n])
	}
}

// HandleDatagram decodes one payload and, when it is an accelerometer
// sample, feeds it through the pipeline. Non-accelerometer and malformed
// payloads change nothing but the counters.
func (l *Loop) HandleDatagram(data []byte) {
	l.stats.AddReceived(len(data))
	l.arrival++

	s, err := sensor.Decode(data, l.arrival)
	switch {
	case err == nil:
		l.stats.AddAccepted()
		l.metrics.datagram(ResultAccepted, len(data))
		l.pipeline.Process(s)
	case errors.Is(err, sensor.ErrNotApplicable):
		l.stats.AddNotApplicable()
		l.metrics.datagram(ResultNotApplicable, len(data))
	default:
		l.stats.AddMalformed()
		l.metrics.datagram(ResultMalformed, len(data))
	}
}

func (l *Loop) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.stats.LogStats()
		case <-ctx.Done():
			return
		}
	}
}
