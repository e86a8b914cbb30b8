package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/session"
)

// ErrNotFound is returned when a session id is not archived.
var ErrNotFound = errors.New("session not found")

// Fixed-width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveSession archives sum and its alert log in one transaction. Saving the
// same id twice replaces the earlier record.
func (db *DB) SaveSession(ctx context.Context, sum *session.Summary) error {
	cfgJSON, err := json.Marshal(sum.Config)
	if err != nil {
		return fmt.Errorf("failed to encode session config: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sum.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, started_at, stopped_at, config_json, vibration_unit, samples,
			tilt_mean, tilt_min, tilt_max, tilt_stddev,
			vibration_mean, vibration_min, vibration_max, vibration_stddev,
			tilt_alerts, vibration_alerts,
			datagrams_received, datagrams_malformed, datagrams_ignored
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.StartedAt.UTC().Format(timeLayout), sum.StoppedAt.UTC().Format(timeLayout),
		string(cfgJSON), string(sum.Config.GetVibrationUnit()), sum.Samples,
		sum.Tilt.Mean, sum.Tilt.Min, sum.Tilt.Max, sum.Tilt.StdDev,
		sum.Vibration.Mean, sum.Vibration.Min, sum.Vibration.Max, sum.Vibration.StdDev,
		sum.AlertCounts[alert.Tilt], sum.AlertCounts[alert.Vibration],
		sum.Datagrams.Received, sum.Datagrams.Malformed, sum.Datagrams.NotApplicable,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sum.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_alerts (session_id, kind, alert_time, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ev := range sum.Alerts {
		if _, err := stmt.ExecContext(ctx, sum.ID, ev.Kind.String(), ev.Time.UTC().Format(timeLayout), ev.Value); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}
	return tx.Commit()
}

const sessionColumns = `session_id, started_at, stopped_at, config_json, samples,
	tilt_mean, tilt_min, tilt_max, tilt_stddev,
	vibration_mean, vibration_min, vibration_max, vibration_stddev,
	tilt_alerts, vibration_alerts,
	datagrams_received, datagrams_malformed, datagrams_ignored`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (session.Summary, error) {
	var (
		s                  session.Summary
		started, stopped   string
		cfgJSON            string
		tiltAlerts, vibAls int
	)
	err := row.Scan(
		&s.ID, &started, &stopped, &cfgJSON, &s.Samples,
		&s.Tilt.Mean, &s.Tilt.Min, &s.Tilt.Max, &s.Tilt.StdDev,
		&s.Vibration.Mean, &s.Vibration.Min, &s.Vibration.Max, &s.Vibration.StdDev,
		&tiltAlerts, &vibAls,
		&s.Datagrams.Received, &s.Datagrams.Malformed, &s.Datagrams.NotApplicable,
	)
	if err != nil {
		return s, err
	}
	if s.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return s, fmt.Errorf("bad started_at %q: %w", started, err)
	}
	if s.StoppedAt, err = time.Parse(timeLayout, stopped); err != nil {
		return s, fmt.Errorf("bad stopped_at %q: %w", stopped, err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &s.Config); err != nil {
		return s, fmt.Errorf("bad config_json: %w", err)
	}
	s.Tilt.Count, s.Vibration.Count = s.Samples, s.Samples
	s.AlertCounts = map[alert.Kind]int{alert.Tilt: tiltAlerts, alert.Vibration: vibAls}
	return s, nil
}

// Sessions returns up to limit archived sessions, newest first, without
// their alert logs. A non-positive limit means 100.
func (db *DB) Sessions(ctx context.Context, limit int) ([]session.Summary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Summary
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Session returns one archived session with its alert log.
func (db *DB) Session(ctx context.Context, id string) (*session.Summary, error) {
	s, err := scanSession(db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.Alerts, err = db.SessionAlerts(ctx, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionAlerts returns the alert log of session id in raise order.
func (db *DB) SessionAlerts(ctx context.Context, id string) ([]alert.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT kind, alert_time, value FROM session_alerts WHERE session_id = ? ORDER BY alert_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.Event
	for rows.Next() {
		var (
			ev       alert.Event
			kind, ts string
		)
		if err := rows.Scan(&kind, &ts, &ev.Value); err != nil {
			return nil, err
		}
		if err := ev.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		if ev.Time, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("bad alert_time %q: %w", ts, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// DeleteSession removes an archived session and its alerts.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
