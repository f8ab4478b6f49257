package store

import "database/sql"

// SaveStream inserts or replaces the stored payload for one
// (activity, stream type) pair
func (db *DB) SaveStream(s *ActivityStream) error {
	_, err := db.Exec(`
		INSERT INTO activity_streams (activity_id, stream_type, data, original_size, resolution)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(activity_id, stream_type) DO UPDATE SET
			data = excluded.data,
			original_size = excluded.original_size,
			resolution = excluded.resolution
	`, s.ActivityID, s.StreamType, s.Data, s.OriginalSize, stringToNull(s.Resolution))
	return err
}

// GetStreams returns all stored streams for an activity
func (db *DB) GetStreams(activityID int64) ([]ActivityStream, error) {
	rows, err := db.Query(`
		SELECT activity_id, stream_type, data, original_size, resolution
		FROM activity_streams
		WHERE activity_id = ?
		ORDER BY stream_type
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streams []ActivityStream
	for rows.Next() {
		var s ActivityStream
		var resolution sql.NullString
		if err := rows.Scan(&s.ActivityID, &s.StreamType, &s.Data, &s.OriginalSize, &resolution); err != nil {
			return nil, err
		}
		s.Resolution = resolution.String
		streams = append(streams, s)
	}
	return streams, rows.Err()
}

// GetStream returns one stored stream, or nil if the activity has no
// stream of that type
func (db *DB) GetStream(activityID int64, streamType string) (*ActivityStream, error) {
	var s ActivityStream
	var resolution sql.NullString
	err := db.QueryRow(`
		SELECT activity_id, stream_type, data, original_size, resolution
		FROM activity_streams
		WHERE activity_id = ? AND stream_type = ?
	`, activityID, streamType).Scan(&s.ActivityID, &s.StreamType, &s.Data, &s.OriginalSize, &resolution)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Resolution = resolution.String
	return &s, nil
}

// HasStreams reports whether any streams are stored for an activity
func (db *DB) HasStreams(activityID int64) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM activity_streams WHERE activity_id = ?
	`, activityID).Scan(&count)
	return count > 0, err
}
