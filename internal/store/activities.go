package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `id, athlete_id, name, type, sport_type, distance,
	moving_time, elapsed_time, total_elevation_gain, start_date, start_date_local,
	timezone, average_speed, max_speed, average_heartrate, max_heartrate,
	has_heartrate, average_watts, max_watts, weighted_average_watts, kilojoules,
	average_cadence, calories, suffer_score, training_stress_score,
	intensity_factor, start_latlng, end_latlng, map_summary_polyline,
	trainer, commute, manual, private, flagged`

// UpsertActivity inserts or updates an activity by its Strava ID.
// Re-syncing an existing activity overwrites all mapped fields.
// Returns true if the activity was newly created.
func (db *DB) UpsertActivity(a *Activity) (created bool, err error) {
	var exists int
	err = db.QueryRow(`SELECT COUNT(*) FROM activities WHERE id = ?`, a.ID).Scan(&exists)
	if err != nil {
		return false, err
	}

	var startDateLocal sql.NullString
	if !a.StartDateLocal.IsZero() {
		startDateLocal = sql.NullString{String: a.StartDateLocal.Format(time.RFC3339), Valid: true}
	}

	_, err = db.Exec(`
		INSERT INTO activities (
			id, athlete_id, name, type, sport_type, distance, moving_time,
			elapsed_time, total_elevation_gain, start_date, start_date_local,
			timezone, average_speed, max_speed, average_heartrate, max_heartrate,
			has_heartrate, average_watts, max_watts, weighted_average_watts,
			kilojoules, average_cadence, calories, suffer_score,
			training_stress_score, intensity_factor, start_latlng, end_latlng,
			map_summary_polyline, trainer, commute, manual, private, flagged,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			sport_type = excluded.sport_type,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			has_heartrate = excluded.has_heartrate,
			average_watts = excluded.average_watts,
			max_watts = excluded.max_watts,
			weighted_average_watts = excluded.weighted_average_watts,
			kilojoules = excluded.kilojoules,
			average_cadence = excluded.average_cadence,
			calories = excluded.calories,
			suffer_score = excluded.suffer_score,
			training_stress_score = excluded.training_stress_score,
			intensity_factor = excluded.intensity_factor,
			start_latlng = excluded.start_latlng,
			end_latlng = excluded.end_latlng,
			map_summary_polyline = excluded.map_summary_polyline,
			trainer = excluded.trainer,
			commute = excluded.commute,
			manual = excluded.manual,
			private = excluded.private,
			flagged = excluded.flagged,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type, stringToNull(a.SportType), a.Distance,
		a.MovingTime, a.ElapsedTime, floatPtrToNull(a.TotalElevationGain),
		a.StartDate.Format(time.RFC3339), startDateLocal, stringToNull(a.Timezone),
		floatPtrToNull(a.AverageSpeed), floatPtrToNull(a.MaxSpeed),
		floatPtrToNull(a.AverageHeartrate), intPtrToNull(a.MaxHeartrate),
		boolToInt(a.HasHeartrate), floatPtrToNull(a.AverageWatts),
		intPtrToNull(a.MaxWatts), intPtrToNull(a.WeightedAverageWatts),
		floatPtrToNull(a.Kilojoules), floatPtrToNull(a.AverageCadence),
		floatPtrToNull(a.Calories), intPtrToNull(a.SufferScore),
		floatPtrToNull(a.TrainingStressScore), floatPtrToNull(a.IntensityFactor),
		stringToNull(a.StartLatLng), stringToNull(a.EndLatLng),
		stringToNull(a.MapSummaryPolyline),
		boolToInt(a.Trainer), boolToInt(a.Commute), boolToInt(a.Manual),
		boolToInt(a.Private), boolToInt(a.Flagged),
	)
	if err != nil {
		return false, err
	}

	return exists == 0, nil
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(id int64) (*Activity, error) {
	row := db.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// ActivitiesInRange returns an athlete's activities with start_date in
// [start, end), ordered by start date ascending
func (db *DB) ActivitiesInRange(athleteID int64, start, end time.Time) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE athlete_id = ? AND start_date >= ? AND start_date < ?
		ORDER BY start_date ASC
	`, athleteID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectActivities(rows)
}

// ActivitiesSince returns an athlete's activities starting at or after the
// given time, ordered by start date ascending
func (db *DB) ActivitiesSince(athleteID int64, since time.Time) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE athlete_id = ? AND start_date >= ?
		ORDER BY start_date ASC
	`, athleteID, since.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectActivities(rows)
}

// EarliestActivityDate returns the start date of the athlete's oldest
// activity, or nil if they have none
func (db *DB) EarliestActivityDate(athleteID int64) (*time.Time, error) {
	var s sql.NullString
	err := db.QueryRow(`
		SELECT MIN(start_date) FROM activities WHERE athlete_id = ?
	`, athleteID).Scan(&s)
	if err != nil {
		return nil, err
	}
	if !s.Valid {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", s.String, err)
	}
	return &ts, nil
}

// ActivitiesNeedingStreams returns recent activities (started at or after
// cutoff) that have no stored streams yet, oldest first, up to limit
func (db *DB) ActivitiesNeedingStreams(athleteID int64, cutoff time.Time, limit int) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE athlete_id = ?
			AND start_date >= ?
			AND NOT EXISTS (
				SELECT 1 FROM activity_streams WHERE activity_streams.activity_id = activities.id
			)
		ORDER BY start_date ASC
		LIMIT ?
	`, athleteID, cutoff.Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectActivities(rows)
}

// CountActivities returns the number of stored activities for an athlete
func (db *DB) CountActivities(athleteID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM activities WHERE athlete_id = ?`, athleteID).Scan(&count)
	return count, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanActivity(row scannable) (*Activity, error) {
	var a Activity
	var sportType, startDateLocal, timezone sql.NullString
	var startLatLng, endLatLng, polyline sql.NullString
	var startDate string
	var elevGain, avgSpeed, maxSpeed, avgHR, avgWatts, kilojoules, avgCadence, calories, tss, intensity sql.NullFloat64
	var maxHR, maxWatts, weightedWatts, sufferScore sql.NullInt64
	var hasHR, trainer, commute, manual, private, flagged int

	err := row.Scan(&a.ID, &a.AthleteID, &a.Name, &a.Type, &sportType, &a.Distance,
		&a.MovingTime, &a.ElapsedTime, &elevGain, &startDate, &startDateLocal,
		&timezone, &avgSpeed, &maxSpeed, &avgHR, &maxHR, &hasHR, &avgWatts,
		&maxWatts, &weightedWatts, &kilojoules, &avgCadence, &calories,
		&sufferScore, &tss, &intensity, &startLatLng, &endLatLng, &polyline,
		&trainer, &commute, &manual, &private, &flagged)
	if err != nil {
		return nil, err
	}

	a.StartDate, err = time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
	}
	if startDateLocal.Valid {
		a.StartDateLocal, err = time.Parse(time.RFC3339, startDateLocal.String)
		if err != nil {
			return nil, fmt.Errorf("parsing start_date_local %q: %w", startDateLocal.String, err)
		}
	}

	a.SportType = sportType.String
	a.Timezone = timezone.String
	a.TotalElevationGain = nullToFloatPtr(elevGain)
	a.AverageSpeed = nullToFloatPtr(avgSpeed)
	a.MaxSpeed = nullToFloatPtr(maxSpeed)
	a.AverageHeartrate = nullToFloatPtr(avgHR)
	a.MaxHeartrate = nullToIntPtr(maxHR)
	a.HasHeartrate = hasHR == 1
	a.AverageWatts = nullToFloatPtr(avgWatts)
	a.MaxWatts = nullToIntPtr(maxWatts)
	a.WeightedAverageWatts = nullToIntPtr(weightedWatts)
	a.Kilojoules = nullToFloatPtr(kilojoules)
	a.AverageCadence = nullToFloatPtr(avgCadence)
	a.Calories = nullToFloatPtr(calories)
	a.SufferScore = nullToIntPtr(sufferScore)
	a.TrainingStressScore = nullToFloatPtr(tss)
	a.IntensityFactor = nullToFloatPtr(intensity)
	a.StartLatLng = startLatLng.String
	a.EndLatLng = endLatLng.String
	a.MapSummaryPolyline = polyline.String
	a.Trainer = trainer == 1
	a.Commute = commute == 1
	a.Manual = manual == 1
	a.Private = private == 1
	a.Flagged = flagged == 1

	return &a, nil
}

func collectActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
