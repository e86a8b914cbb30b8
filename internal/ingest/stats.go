package ingest

import (
	"sync"
	"time"

	"github.com/banshee-data/riggy/internal/monitoring"
)

// DatagramCounts is a point-in-time copy of DatagramStats counters.
type DatagramCounts struct {
	Received      int64 `json:"received"`
	Bytes         int64 `json:"bytes"`
	Accepted      int64 `json:"accepted"`
	NotApplicable int64 `json:"not_applicable"`
	Malformed     int64 `json:"malformed"`
}

// DatagramStats counts datagrams by outcome. It keeps a resettable interval
// for periodic log lines and a cumulative total for status reporting.
type DatagramStats struct {
	mu        sync.Mutex
	interval  DatagramCounts
	total     DatagramCounts
	lastReset time.Time
}

// NewDatagramStats returns zeroed counters.
func NewDatagramStats() *DatagramStats {
	return &DatagramStats{lastReset: time.Now()}
}

func (s *DatagramStats) add(f func(c *DatagramCounts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.interval)
	f(&s.total)
}

// AddReceived counts one datagram of the given size.
func (s *DatagramStats) AddReceived(bytes int) {
	s.add(func(c *DatagramCounts) {
		c.Received++
		c.Bytes += int64(bytes)
	})
}

func (s *DatagramStats) AddAccepted() { s.add(func(c *DatagramCounts) { c.Accepted++ }) }

func (s *DatagramStats) AddNotApplicable() { s.add(func(c *DatagramCounts) { c.NotApplicable++ }) }

func (s *DatagramStats) AddMalformed() { s.add(func(c *DatagramCounts) { c.Malformed++ }) }

// Totals returns the cumulative counters.
func (s *DatagramStats) Totals() DatagramCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// GetAndReset returns the interval counters and starts a new interval.
func (s *DatagramStats) GetAndReset() (DatagramCounts, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, d := s.interval, now.Sub(s.lastReset)
	s.interval = DatagramCounts{}
	s.lastReset = now
	return c, d
}

// LogStats logs the interval rates. Quiet intervals are not logged.
func (s *DatagramStats) LogStats() {
	c, d := s.GetAndReset()
	if c.Received == 0 {
		return
	}
	secs := max(d.Seconds(), 1e-9)
	msg := "Sensor stats (/sec): %.1f datagrams, %.1f accepted, %.2f KB"
	args := []interface{}{float64(c.Received) / secs, float64(c.Accepted) / secs, float64(c.Bytes) / secs / 1024}
	if c.Malformed > 0 {
		msg += ", %d malformed"
		args = append(args, c.Malformed)
	}
	if c.NotApplicable > 0 {
		msg += ", %d ignored"
		args = append(args, c.NotApplicable)
	}
	monitoring.Logf(msg, args...)
}
