package db

import "time"

// Video is a recorded clip of a session from one camera.
type Video struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	CameraID  int64     `json:"camera_id"`
	FilePath  string    `json:"file_path"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration"` // seconds
}

// CreateVideo inserts a video row and sets its ID.
func (db *DB) CreateVideo(v *Video) error {
	res, err := db.Exec(
		`INSERT INTO videos (session_id, camera_id, file_path, start_time, duration)
		 VALUES (?, ?, ?, ?, ?)`,
		v.SessionID, v.CameraID, v.FilePath, v.StartTime.UTC(), v.Duration,
	)
	if err != nil {
		return err
	}
	v.ID, err = res.LastInsertId()
	return err
}

// ListVideosBySession returns a session's recorded clips.
func (db *DB) ListVideosBySession(sessionID int64) ([]Video, error) {
	rows, err := db.Query(
		`SELECT id, session_id, camera_id, file_path, start_time, duration
		 FROM videos WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.SessionID, &v.CameraID, &v.FilePath, &v.StartTime, &v.Duration); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
