package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riggy/internal/fusion"
	"github.com/banshee-data/riggy/internal/sensor"
)

func decodeFrame(t *testing.T, o *simOptions, i int) (sensor.Sample, error) {
	t.Helper()
	b, err := o.frame(i, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return sensor.Decode(b, 0)
}

func TestFrame_Modes(t *testing.T) {
	s, err := decodeFrame(t, &simOptions{mode: "static"}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 9.81, s.Values[2], 1e-12)

	s, err = decodeFrame(t, &simOptions{mode: "tilt", angle: 85}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 85, fusion.Tilt(fusion.Vec3{X: s.Values[0], Y: s.Values[1], Z: s.Values[2]}), 1e-6)

	_, err = decodeFrame(t, &simOptions{mode: "other"}, 0)
	assert.True(t, errors.Is(err, sensor.ErrNotApplicable), "got %v", err)

	_, err = decodeFrame(t, &simOptions{mode: "static", badEvery: 3}, 3)
	var de *sensor.DecodeError
	assert.True(t, errors.As(err, &de), "got %v", err)

	_, err = (&simOptions{mode: "sideways"}).frame(0, nil)
	assert.Error(t, err)
}

func TestRun_SendsCount(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	o := &simOptions{addr: conn.LocalAddr().String(), mode: "static", rate: 1000, count: 5}
	require.NoError(t, o.run(context.Background()))

	buf := make([]byte, 2048)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := conn.ReadFromUDP(buf)
		require.NoError(t, err)
		_, err = sensor.Decode(buf[:n], uint64(i))
		assert.NoError(t, err)
	}
}

func TestRun_RejectsBadRate(t *testing.T) {
	assert.Error(t, (&simOptions{addr: "127.0.0.1:1", mode: "static"}).run(context.Background()))
}
