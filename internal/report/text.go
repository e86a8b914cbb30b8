// Package report writes the end-of-session text report and history plots.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/session"
)

// FileStamp is the timestamp layout used in report file names.
const FileStamp = "20060102_150405"

// TextFileName returns the report file name for a report generated at t.
func TextFileName(t time.Time) string {
	return "report_" + t.Format(FileStamp) + ".txt"
}

// WriteText writes the plain-text report of sum to w.
func WriteText(w io.Writer, sum *session.Summary, generated time.Time) error {
	unit := sum.Config.GetVibrationUnit().Symbol()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Report - %s\n\n", generated.Format("02/01/2006 15:04:05"))
	if sum.ID != "" {
		fmt.Fprintf(bw, "Session: %s\n", sum.ID)
	}
	if !sum.StartedAt.IsZero() {
		fmt.Fprintf(bw, "Started: %s\n", sum.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(bw, "Stopped: %s (%s)\n", sum.StoppedAt.Format(time.RFC3339), sum.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(bw, "Points received: %d\n", sum.Samples)
	fmt.Fprintf(bw, "Tilt alerts: %d\n", sum.AlertCounts[alert.Tilt])
	fmt.Fprintf(bw, "Vibration alerts: %d\n\n", sum.AlertCounts[alert.Vibration])

	fmt.Fprintf(bw, "Mean tilt: %.2f°\n", sum.Tilt.Mean)
	fmt.Fprintf(bw, "Mean vibration: %.2f %s\n\n", sum.Vibration.Mean, unit)

	fmt.Fprintf(bw, "Tilt (°): min %.2f, max %.2f, stddev %.2f\n", sum.Tilt.Min, sum.Tilt.Max, sum.Tilt.StdDev)
	fmt.Fprintf(bw, "Vibration (%s): min %.3f, max %.3f, stddev %.3f\n", unit, sum.Vibration.Min, sum.Vibration.Max, sum.Vibration.StdDev)
	fmt.Fprintf(bw, "Thresholds: tilt %.2f° (clear %.2f°), vibration %.3f %s (clear %.3f %s)\n",
		sum.Config.GetTiltThreshold(), sum.Config.GetTiltThreshold()-sum.Config.GetTiltMargin(),
		sum.Config.GetVibrationThreshold(), unit,
		sum.Config.GetVibrationThreshold()-sum.Config.GetVibrationMargin(), unit)

	if len(sum.Alerts) > 0 {
		fmt.Fprintf(bw, "\nAlerts:\n")
		for _, ev := range sum.Alerts {
			u := "°"
			if ev.Kind == alert.Vibration {
				u = " " + unit
			}
			fmt.Fprintf(bw, "  %s  %-9s  %.3f%s\n", ev.Time.Format("15:04:05.000"), ev.Kind, ev.Value, u)
		}
	}
	return bw.Flush()
}

// WriteTextFile writes the text report into dir and returns its path.
func WriteTextFile(dir string, sum *session.Summary, generated time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, TextFileName(generated))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteText(f, sum, generated); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
