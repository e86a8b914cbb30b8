// Package sensor decodes the JSON datagrams sent by a phone sensor-streaming
// app into typed accelerometer samples.
//
// A datagram looks like
//
//	{"type": "android.sensor.accelerometer", "timestamp": 3925657519043709, "values": [0.31, 0.12, 9.79]}
//
// Only the type and values fields are read. Any type that does not contain
// the accelerometer marker is reported as ErrNotApplicable.
package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AccelerometerMarker is the substring that identifies accelerometer
// payloads in the type field.
const AccelerometerMarker = "accelerometer"

// ErrNotApplicable is returned for well-formed payloads of another sensor
// type. It is a classification, not a failure.
var ErrNotApplicable = errors.New("not an accelerometer sample")

// DecodeError reports a datagram that could not be parsed.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode datagram: %s: %v", e.Reason, e.Err)
	}
	return "decode datagram: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Sample is one accelerometer reading. Values are x, y, z in m/s².
type Sample struct {
	Kind    string
	Values  [3]float64
	Arrival uint64
}

type payload struct {
	Type   string          `json:"type"`
	Values json.RawMessage `json:"values"`
}

// Decode parses one datagram. arrival is the receive order assigned by the
// caller and copied into the sample unchanged.
func Decode(data []byte, arrival uint64) (Sample, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Sample{}, &DecodeError{Reason: "empty datagram"}
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Sample{}, &DecodeError{Reason: "malformed payload", Err: err}
	}

	if !strings.Contains(p.Type, AccelerometerMarker) {
		return Sample{}, ErrNotApplicable
	}

	if len(p.Values) == 0 || bytes.Equal(p.Values, []byte("null")) {
		return Sample{}, &DecodeError{Reason: "missing values"}
	}
	// Pointers so a JSON null is distinguishable from 0.
	var values []*float64
	if err := json.Unmarshal(p.Values, &values); err != nil {
		return Sample{}, &DecodeError{Reason: "values are not numeric", Err: err}
	}
	if len(values) < 3 {
		return Sample{}, &DecodeError{Reason: fmt.Sprintf("values has %d entries, need 3", len(values))}
	}
	for i, v := range values[:3] {
		if v == nil {
			return Sample{}, &DecodeError{Reason: fmt.Sprintf("values[%d] is null", i)}
		}
	}

	return Sample{
		Kind:    p.Type,
		Values:  [3]float64{*values[0], *values[1], *values[2]},
		Arrival: arrival,
	}, nil
}

// Encode renders a sample in the wire format Decode accepts. The simulator
// and tests use it to build datagrams.
func Encode(kind string, x, y, z float64) []byte {
	b, _ := json.Marshal(struct {
		Type   string     `json:"type"`
		Values [3]float64 `json:"values"`
	}{kind, [3]float64{x, y, z}})
	return b
}
