// sensorsim sends synthetic accelerometer datagrams to a riggy listener.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/sensor"
	"github.com/banshee-data/riggy/internal/units"
)

const accelType = "android.sensor.accelerometer"

type simOptions struct {
	addr     string
	mode     string
	rate     float64
	count    int
	angle    float64
	jitter   float64
	badEvery int
}

// frame returns the i-th datagram for the mode.
func (o *simOptions) frame(i int, rng *rand.Rand) ([]byte, error) {
	if o.badEvery > 0 && i > 0 && i%o.badEvery == 0 {
		return []byte(`{"type":"` + accelType + `","values":[1,2`), nil
	}
	g := units.StandardGravity
	switch o.mode {
	case "static":
		return sensor.Encode(accelType, 0, 0, g), nil
	case "tilt":
		rad := o.angle * math.Pi / 180
		return sensor.Encode(accelType, g*math.Sin(rad), 0, g*math.Cos(rad)), nil
	case "vibrate":
		j := func() float64 { return (rng.Float64()*2 - 1) * o.jitter }
		return sensor.Encode(accelType, j(), j(), g+j()), nil
	case "other":
		return sensor.Encode("android.sensor.gyroscope", 0.1, 0.2, 0.3), nil
	}
	return nil, fmt.Errorf("unknown mode %q (want static, tilt, vibrate or other)", o.mode)
}

func (o *simOptions) run(ctx context.Context) error {
	if o.rate <= 0 {
		return fmt.Errorf("rate must be positive, got %g", o.rate)
	}
	raddr, err := net.ResolveUDPAddr("udp", o.addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Duration(float64(time.Second) / o.rate))
	defer ticker.Stop()

	fmt.Printf("Sending %s datagrams to %s at %.0f/sec\n", o.mode, o.addr, o.rate)
	sent := 0
	for o.count <= 0 || sent < o.count {
		b, err := o.frame(sent, rng)
		if err != nil {
			return err
		}
		if _, err := conn.Write(b); err != nil {
			fmt.Printf("Write error: %v\n", err)
		}
		sent++
		select {
		case <-ctx.Done():
			fmt.Printf("Sent %d datagrams\n", sent)
			return nil
		case <-ticker.C:
		}
	}
	fmt.Printf("Sent %d datagrams\n", sent)
	return nil
}

func newRootCmd() *cobra.Command {
	o := &simOptions{}
	cmd := &cobra.Command{
		Use:   "sensorsim",
		Short: "Send synthetic accelerometer readings over UDP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return o.run(ctx)
		},
		SilenceUsage: true,
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.addr, "addr", "a", "127.0.0.1:5000", "listener address")
	fs.StringVarP(&o.mode, "mode", "m", "static", "static, tilt, vibrate or other")
	fs.Float64VarP(&o.rate, "rate", "r", 50, "datagrams per second")
	fs.IntVarP(&o.count, "count", "n", 0, "stop after this many datagrams (0 sends forever)")
	fs.Float64Var(&o.angle, "angle", 85, "tilt angle in degrees for --mode tilt")
	fs.Float64Var(&o.jitter, "jitter", 15, "peak per-axis noise in m/s² for --mode vibrate")
	fs.IntVar(&o.badEvery, "malformed-every", 0, "replace every Nth datagram with a truncated one")
	return cmd
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}
