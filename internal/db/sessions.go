package db

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one training/sparring session.
type Session struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	Duration int64     `json:"duration"` // seconds
	Fighters []int64   `json:"fighter_ids"`
}

// CreateSession inserts a session row and its fighter roster links.
func (db *DB) CreateSession(fighterIDs []int64, start time.Time) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO sessions (date, duration) VALUES (?, 0)`, start.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, fid := range fighterIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO session_fighters (session_id, fighter_id) VALUES (?, ?)`, id, fid,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// SetSessionDuration records the final duration in whole seconds.
func (db *DB) SetSessionDuration(id int64, duration time.Duration) error {
	res, err := db.Exec(`UPDATE sessions SET duration = ? WHERE id = ?`, int64(duration.Seconds()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession loads one session and its roster.
func (db *DB) GetSession(id int64) (*Session, error) {
	s := &Session{}
	err := db.QueryRow(
		`SELECT id, date, duration FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Date, &s.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT fighter_id FROM session_fighters WHERE session_id = ? ORDER BY fighter_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var fid int64
		if err := rows.Scan(&fid); err != nil {
			return nil, err
		}
		s.Fighters = append(s.Fighters, fid)
	}
	return s, rows.Err()
}

// SessionStats is the per-session rollup served by the stats endpoint.
type SessionStats struct {
	SessionID    int64            `json:"session_id"`
	Duration     int64            `json:"duration"`
	TotalStrikes int64            `json:"total_strikes"`
	ByType       map[string]int64 `json:"by_type"`
	AvgSpeed     float64          `json:"avg_speed"`
	MaxSpeed     float64          `json:"max_speed"`
	Combinations int64            `json:"combinations"`
}

// SessionStatsRollup aggregates strike and combination counts for a session.
func (db *DB) SessionStatsRollup(sessionID int64) (*SessionStats, error) {
	if _, err := db.GetSession(sessionID); err != nil {
		return nil, err
	}

	stats := &SessionStats{SessionID: sessionID, ByType: make(map[string]int64)}

	err := db.QueryRow(
		`SELECT duration FROM sessions WHERE id = ?`, sessionID,
	).Scan(&stats.Duration)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(speed), 0), COALESCE(MAX(speed), 0)
		 FROM strikes WHERE session_id = ?`, sessionID,
	).Scan(&stats.TotalStrikes, &stats.AvgSpeed, &stats.MaxSpeed)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT punch_type, COUNT(*) FROM strikes WHERE session_id = ? GROUP BY punch_type`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var punchType string
		var count int64
		if err := rows.Scan(&punchType, &count); err != nil {
			return nil, err
		}
		stats.ByType[punchType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.QueryRow(
		`SELECT COALESCE(SUM(frequency), 0) FROM combinations WHERE session_id = ?`, sessionID,
	).Scan(&stats.Combinations)
	return stats, err
}
