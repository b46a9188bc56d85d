package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Fighter is one registered participant.
type Fighter struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	WeightClass string  `json:"weight_class"`
	Height      float64 `json:"height"`
	Reach       float64 `json:"reach"`
	Stance      string  `json:"stance"` // orthodox, southpaw, etc.
}

// CreateFighter inserts a fighter and sets its ID.
func (db *DB) CreateFighter(f *Fighter) error {
	if f.Name == "" {
		return fmt.Errorf("fighter name is required")
	}
	res, err := db.Exec(
		`INSERT INTO fighters (name, weight_class, height, reach, stance) VALUES (?, ?, ?, ?, ?)`,
		f.Name, f.WeightClass, f.Height, f.Reach, f.Stance,
	)
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

// GetFighter loads one fighter by id.
func (db *DB) GetFighter(id int64) (*Fighter, error) {
	f := &Fighter{}
	err := db.QueryRow(
		`SELECT id, name, weight_class, height, reach, stance FROM fighters WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.WeightClass, &f.Height, &f.Reach, &f.Stance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListFighters returns all fighters ordered by id.
func (db *DB) ListFighters() ([]Fighter, error) {
	rows, err := db.Query(
		`SELECT id, name, weight_class, height, reach, stance FROM fighters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fighters []Fighter
	for rows.Next() {
		var f Fighter
		if err := rows.Scan(&f.ID, &f.Name, &f.WeightClass, &f.Height, &f.Reach, &f.Stance); err != nil {
			return nil, err
		}
		fighters = append(fighters, f)
	}
	return fighters, rows.Err()
}

// UpdateFighter replaces a fighter's mutable fields.
func (db *DB) UpdateFighter(f *Fighter) error {
	res, err := db.Exec(
		`UPDATE fighters SET name = ?, weight_class = ?, height = ?, reach = ?, stance = ? WHERE id = ?`,
		f.Name, f.WeightClass, f.Height, f.Reach, f.Stance, f.ID,
	)
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

// DeleteFighter removes a fighter.
func (db *DB) DeleteFighter(id int64) error {
	res, err := db.Exec(`DELETE FROM fighters WHERE id = ?`, id)
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

// FightersExist reports whether every id references a known fighter.
func (db *DB) FightersExist(ids []int64) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var count int
	err := db.QueryRow(
		`SELECT COUNT(DISTINCT id) FROM fighters WHERE id IN (`+placeholders+`)`, args...,
	).Scan(&count)
	if err != nil {
		return false, err
	}

	distinct := make(map[int64]bool, len(ids))
	for _, id := range ids {
		distinct[id] = true
	}
	return count == len(distinct), nil
}
