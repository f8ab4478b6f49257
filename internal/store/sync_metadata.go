package store

import (
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

// CreateSyncRecord inserts a new in-progress sync attempt and returns it.
// IDs are ULIDs so records sort by creation time.
func (db *DB) CreateSyncRecord(athleteID int64, syncType string) (*SyncMetadata, error) {
	rec := &SyncMetadata{
		ID:         ulid.Make().String(),
		AthleteID:  athleteID,
		SyncType:   syncType,
		SyncStatus: SyncStatusInProgress,
		StartedAt:  time.Now().UTC(),
	}

	_, err := db.Exec(`
		INSERT INTO sync_metadata (id, athlete_id, sync_type, sync_status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.AthleteID, rec.SyncType, rec.SyncStatus, rec.StartedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CompleteSyncRecord finalizes a sync attempt. The record's counts,
// status, error fields and last-activity checkpoint are written as-is
// and CompletedAt is stamped.
func (db *DB) CompleteSyncRecord(rec *SyncMetadata) error {
	now := time.Now().UTC()
	rec.CompletedAt = &now

	var lastDate sql.NullString
	if rec.LastActivityDate != nil {
		lastDate = sql.NullString{String: rec.LastActivityDate.Format(time.RFC3339), Valid: true}
	}

	_, err := db.Exec(`
		UPDATE sync_metadata SET
			sync_status = ?,
			completed_at = ?,
			activities_synced = ?,
			activities_updated = ?,
			activities_skipped = ?,
			streams_synced = ?,
			last_activity_id = ?,
			last_activity_date = ?,
			error_message = ?,
			error_details = ?
		WHERE id = ?
	`, rec.SyncStatus, now.Format(time.RFC3339), rec.ActivitiesSynced,
		rec.ActivitiesUpdated, rec.ActivitiesSkipped, rec.StreamsSynced,
		int64PtrToNull(rec.LastActivityID), lastDate,
		stringToNull(rec.ErrorMessage), stringToNull(rec.ErrorDetails), rec.ID)
	return err
}

// LastSuccessfulSync returns the athlete's most recent successful sync,
// or ErrNoSyncRecord if they have never completed one
func (db *DB) LastSuccessfulSync(athleteID int64) (*SyncMetadata, error) {
	return db.queryOneSync(`
		SELECT id, athlete_id, sync_type, sync_status, started_at, completed_at,
			activities_synced, activities_updated, activities_skipped, streams_synced,
			last_activity_id, last_activity_date, error_message, error_details
		FROM sync_metadata
		WHERE athlete_id = ? AND sync_status = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, athleteID, SyncStatusSuccess)
}

// LatestSync returns the athlete's most recent sync attempt of any
// status, or ErrNoSyncRecord
func (db *DB) LatestSync(athleteID int64) (*SyncMetadata, error) {
	return db.queryOneSync(`
		SELECT id, athlete_id, sync_type, sync_status, started_at, completed_at,
			activities_synced, activities_updated, activities_skipped, streams_synced,
			last_activity_id, last_activity_date, error_message, error_details
		FROM sync_metadata
		WHERE athlete_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, athleteID)
}

// SyncHistory returns the athlete's most recent sync attempts, newest
// first, up to limit
func (db *DB) SyncHistory(athleteID int64, limit int) ([]SyncMetadata, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, sync_type, sync_status, started_at, completed_at,
			activities_synced, activities_updated, activities_skipped, streams_synced,
			last_activity_id, last_activity_date, error_message, error_details
		FROM sync_metadata
		WHERE athlete_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, athleteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SyncMetadata
	for rows.Next() {
		rec, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (db *DB) queryOneSync(query string, args ...any) (*SyncMetadata, error) {
	rec, err := scanSyncRecord(db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNoSyncRecord
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanSyncRecord(row scannable) (*SyncMetadata, error) {
	var rec SyncMetadata
	var startedAt string
	var completedAt, lastDate, errMsg, errDetails sql.NullString
	var lastID sql.NullInt64

	err := row.Scan(&rec.ID, &rec.AthleteID, &rec.SyncType, &rec.SyncStatus,
		&startedAt, &completedAt, &rec.ActivitiesSynced, &rec.ActivitiesUpdated,
		&rec.ActivitiesSkipped, &rec.StreamsSynced, &lastID, &lastDate,
		&errMsg, &errDetails)
	if err != nil {
		return nil, err
	}

	rec.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		ts, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &ts
	}
	if lastDate.Valid {
		ts, err := time.Parse(time.RFC3339, lastDate.String)
		if err != nil {
			return nil, err
		}
		rec.LastActivityDate = &ts
	}
	rec.LastActivityID = nullToInt64Ptr(lastID)
	rec.ErrorMessage = errMsg.String
	rec.ErrorDetails = errDetails.String

	return &rec, nil
}
