package db

import "database/sql"

// Strike is one persisted strike event. Timestamp is unix seconds of the
// frame that produced the event.
type Strike struct {
	ID        int64   `json:"id"`
	SessionID int64   `json:"session_id"`
	FighterID int64   `json:"fighter_id"`
	PunchType string  `json:"punch_type"` // e.g. "Jab Right"
	Timestamp float64 `json:"timestamp"`
	Speed     float64 `json:"speed"`
	Power     float64 `json:"power"`
	XPosition float64 `json:"x_position"`
	YPosition float64 `json:"y_position"`
}

// InsertStrikes writes a batch in one transaction. All-or-nothing: on error
// the caller keeps its pending buffer and can resend the same batch.
func (db *DB) InsertStrikes(strikes []Strike) error {
	if len(strikes) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO strikes (session_id, fighter_id, punch_type, timestamp, speed, power, x_position, y_position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range strikes {
		if _, err := stmt.Exec(
			s.SessionID, s.FighterID, s.PunchType, s.Timestamp,
			s.Speed, s.Power, s.XPosition, s.YPosition,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListStrikesBySession returns a session's strikes in time order.
func (db *DB) ListStrikesBySession(sessionID int64) ([]Strike, error) {
	rows, err := db.Query(
		`SELECT id, session_id, fighter_id, punch_type, timestamp, speed, power, x_position, y_position
		 FROM strikes WHERE session_id = ? ORDER BY timestamp, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanStrikes(rows)
}

// ListStrikesSince returns up to limit strikes with id greater than cursor,
// in id order. This is the polling surface for the external relay: ids are
// monotonically increasing, so the relay can resume from its last-seen id.
func (db *DB) ListStrikesSince(cursor int64, limit int) ([]Strike, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, session_id, fighter_id, punch_type, timestamp, speed, power, x_position, y_position
		 FROM strikes WHERE id > ? ORDER BY id LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	return scanStrikes(rows)
}

func scanStrikes(rows *sql.Rows) ([]Strike, error) {
	defer rows.Close()
	var strikes []Strike
	for rows.Next() {
		var s Strike
		if err := rows.Scan(
			&s.ID, &s.SessionID, &s.FighterID, &s.PunchType, &s.Timestamp,
			&s.Speed, &s.Power, &s.XPosition, &s.YPosition,
		); err != nil {
			return nil, err
		}
		strikes = append(strikes, s)
	}
	return strikes, rows.Err()
}
