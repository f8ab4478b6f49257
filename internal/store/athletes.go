package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertAthlete inserts or updates an athlete profile
func (db *DB) UpsertAthlete(a *Athlete) error {
	var createdAtStrava sql.NullString
	if a.CreatedAtStrava != nil {
		createdAtStrava = sql.NullString{String: a.CreatedAtStrava.Format(time.RFC3339), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO athletes (
			id, username, firstname, lastname, sex, city, state, country,
			profile_medium, profile, weight, ftp, max_heart_rate,
			resting_heart_rate, premium, created_at_strava, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			firstname = excluded.firstname,
			lastname = excluded.lastname,
			sex = excluded.sex,
			city = excluded.city,
			state = excluded.state,
			country = excluded.country,
			profile_medium = excluded.profile_medium,
			profile = excluded.profile,
			weight = excluded.weight,
			ftp = COALESCE(excluded.ftp, athletes.ftp),
			max_heart_rate = COALESCE(excluded.max_heart_rate, athletes.max_heart_rate),
			resting_heart_rate = COALESCE(excluded.resting_heart_rate, athletes.resting_heart_rate),
			premium = excluded.premium,
			created_at_strava = excluded.created_at_strava,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, stringToNull(a.Username), stringToNull(a.Firstname), stringToNull(a.Lastname),
		stringToNull(a.Sex), stringToNull(a.City), stringToNull(a.State), stringToNull(a.Country),
		stringToNull(a.ProfileMedium), stringToNull(a.Profile),
		floatPtrToNull(a.Weight), intPtrToNull(a.FTP), intPtrToNull(a.MaxHeartRate),
		intPtrToNull(a.RestingHeartRate), boolToInt(a.Premium), createdAtStrava,
	)
	return err
}

// GetAthlete retrieves an athlete by ID
func (db *DB) GetAthlete(id int64) (*Athlete, error) {
	row := db.QueryRow(`
		SELECT id, username, firstname, lastname, sex, city, state, country,
			profile_medium, profile, weight, ftp, max_heart_rate,
			resting_heart_rate, premium, created_at_strava
		FROM athletes
		WHERE id = ?
	`, id)

	var a Athlete
	var username, firstname, lastname, sex, city, state, country sql.NullString
	var profileMedium, profile, createdAtStrava sql.NullString
	var weight sql.NullFloat64
	var ftp, maxHR, restingHR sql.NullInt64
	var premium int

	err := row.Scan(&a.ID, &username, &firstname, &lastname, &sex, &city, &state, &country,
		&profileMedium, &profile, &weight, &ftp, &maxHR, &restingHR, &premium, &createdAtStrava)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAthleteNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Username = username.String
	a.Firstname = firstname.String
	a.Lastname = lastname.String
	a.Sex = sex.String
	a.City = city.String
	a.State = state.String
	a.Country = country.String
	a.ProfileMedium = profileMedium.String
	a.Profile = profile.String
	a.Weight = nullToFloatPtr(weight)
	a.FTP = nullToIntPtr(ftp)
	a.MaxHeartRate = nullToIntPtr(maxHR)
	a.RestingHeartRate = nullToIntPtr(restingHR)
	a.Premium = premium == 1

	if createdAtStrava.Valid {
		ts, err := time.Parse(time.RFC3339, createdAtStrava.String)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at_strava %q: %w", createdAtStrava.String, err)
		}
		a.CreatedAtStrava = &ts
	}

	return &a, nil
}

// SetAthleteThresholds updates the performance thresholds used for TSS
func (db *DB) SetAthleteThresholds(id int64, ftp *int, maxHR, restingHR *int) error {
	result, err := db.Exec(`
		UPDATE athletes
		SET ftp = COALESCE(?, ftp),
			max_heart_rate = COALESCE(?, max_heart_rate),
			resting_heart_rate = COALESCE(?, resting_heart_rate),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, intPtrToNull(ftp), intPtrToNull(maxHR), intPtrToNull(restingHR), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAthleteNotFound
	}
	return nil
}
