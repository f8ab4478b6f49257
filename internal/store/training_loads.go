package store

import "database/sql"

// UpsertTrainingLoad inserts or replaces one day of the athlete's
// training load series
func (db *DB) UpsertTrainingLoad(l *TrainingLoad) error {
	_, err := db.Exec(`
		INSERT INTO training_loads (athlete_id, date, daily_tss, activity_count, ctl, atl, tsb, ramp_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id, date) DO UPDATE SET
			daily_tss = excluded.daily_tss,
			activity_count = excluded.activity_count,
			ctl = excluded.ctl,
			atl = excluded.atl,
			tsb = excluded.tsb,
			ramp_rate = excluded.ramp_rate,
			updated_at = CURRENT_TIMESTAMP
	`, l.AthleteID, l.Date, l.DailyTSS, l.ActivityCount, l.CTL, l.ATL, l.TSB, l.RampRate)
	return err
}

// TrainingLoadOn returns the load row for one date, or nil if none exists
func (db *DB) TrainingLoadOn(athleteID int64, date string) (*TrainingLoad, error) {
	return db.queryOneLoad(`
		SELECT athlete_id, date, daily_tss, activity_count, ctl, atl, tsb, ramp_rate
		FROM training_loads
		WHERE athlete_id = ? AND date = ?
	`, athleteID, date)
}

// TrainingLoadBefore returns the most recent load row strictly before
// the given date, or nil if none exists. Used to seed the CTL/ATL
// recursion for incremental recomputes.
func (db *DB) TrainingLoadBefore(athleteID int64, date string) (*TrainingLoad, error) {
	return db.queryOneLoad(`
		SELECT athlete_id, date, daily_tss, activity_count, ctl, atl, tsb, ramp_rate
		FROM training_loads
		WHERE athlete_id = ? AND date < ?
		ORDER BY date DESC
		LIMIT 1
	`, athleteID, date)
}

// LatestTrainingLoad returns the most recent load row, or nil if the
// athlete has no series yet
func (db *DB) LatestTrainingLoad(athleteID int64) (*TrainingLoad, error) {
	return db.queryOneLoad(`
		SELECT athlete_id, date, daily_tss, activity_count, ctl, atl, tsb, ramp_rate
		FROM training_loads
		WHERE athlete_id = ?
		ORDER BY date DESC
		LIMIT 1
	`, athleteID)
}

// TrainingLoadRange returns load rows with date in [start, end],
// ordered ascending. Dates are YYYY-MM-DD strings.
func (db *DB) TrainingLoadRange(athleteID int64, start, end string) ([]TrainingLoad, error) {
	rows, err := db.Query(`
		SELECT athlete_id, date, daily_tss, activity_count, ctl, atl, tsb, ramp_rate
		FROM training_loads
		WHERE athlete_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, athleteID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loads []TrainingLoad
	for rows.Next() {
		var l TrainingLoad
		if err := rows.Scan(&l.AthleteID, &l.Date, &l.DailyTSS, &l.ActivityCount, &l.CTL, &l.ATL, &l.TSB, &l.RampRate); err != nil {
			return nil, err
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}

// DeleteTrainingLoadsFrom removes all load rows on or after the given
// date, ahead of a full recompute
func (db *DB) DeleteTrainingLoadsFrom(athleteID int64, date string) error {
	_, err := db.Exec(`
		DELETE FROM training_loads WHERE athlete_id = ? AND date >= ?
	`, athleteID, date)
	return err
}

func (db *DB) queryOneLoad(query string, args ...any) (*TrainingLoad, error) {
	var l TrainingLoad
	err := db.QueryRow(query, args...).Scan(&l.AthleteID, &l.Date, &l.DailyTSS, &l.ActivityCount, &l.CTL, &l.ATL, &l.TSB, &l.RampRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
