package db

import "database/sql"

// Combination is a named strike sequence for one fighter in one session.
// Identity is (session_id, fighter_id, sequence): a repeat of the same
// sequence increments frequency and extends end_time instead of creating a
// second row.
type Combination struct {
	ID        int64   `json:"id"`
	SessionID int64   `json:"session_id"`
	FighterID int64   `json:"fighter_id"`
	Sequence  string  `json:"sequence"` // e.g. "Jab Right-Jab Right-Hook Left"
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Frequency int64   `json:"frequency"`
}

// UpsertCombination merges a detected combination into the store. A new
// (session, fighter, sequence) creates a row with frequency 1; an existing
// one gets frequency+1 and end_time moved forward. The merge makes the
// write path idempotent enough to survive at-least-once delivery.
func (db *DB) UpsertCombination(c Combination) error {
	_, err := db.Exec(
		`INSERT INTO combinations (session_id, fighter_id, sequence, start_time, end_time, frequency)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT (session_id, fighter_id, sequence)
		 DO UPDATE SET frequency = frequency + 1, end_time = excluded.end_time`,
		c.SessionID, c.FighterID, c.Sequence, c.StartTime, c.EndTime,
	)
	return err
}

// GetCombination loads one combination by identity, or ErrNotFound.
func (db *DB) GetCombination(sessionID, fighterID int64, sequence string) (*Combination, error) {
	c := &Combination{}
	err := db.QueryRow(
		`SELECT id, session_id, fighter_id, sequence, start_time, end_time, frequency
		 FROM combinations WHERE session_id = ? AND fighter_id = ? AND sequence = ?`,
		sessionID, fighterID, sequence,
	).Scan(&c.ID, &c.SessionID, &c.FighterID, &c.Sequence, &c.StartTime, &c.EndTime, &c.Frequency)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCombinationsBySession returns a session's combinations in id order.
func (db *DB) ListCombinationsBySession(sessionID int64) ([]Combination, error) {
	rows, err := db.Query(
		`SELECT id, session_id, fighter_id, sequence, start_time, end_time, frequency
		 FROM combinations WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanCombinations(rows)
}

// ListCombinationsSince returns combinations with id greater than cursor,
// for the external polling relay.
func (db *DB) ListCombinationsSince(cursor int64, limit int) ([]Combination, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, session_id, fighter_id, sequence, start_time, end_time, frequency
		 FROM combinations WHERE id > ? ORDER BY id LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	return scanCombinations(rows)
}

func scanCombinations(rows *sql.Rows) ([]Combination, error) {
	defer rows.Close()
	var combos []Combination
	for rows.Next() {
		var c Combination
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.FighterID, &c.Sequence,
			&c.StartTime, &c.EndTime, &c.Frequency,
		); err != nil {
			return nil, err
		}
		combos = append(combos, c)
	}
	return combos, rows.Err()
}
