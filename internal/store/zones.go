package store

// ReplaceZones swaps out all of an athlete's zones of one type for a
// new set, atomically
func (db *DB) ReplaceZones(athleteID int64, zoneType string, zones []TrainingZone) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM training_zones WHERE athlete_id = ? AND zone_type = ?
	`, athleteID, zoneType); err != nil {
		return err
	}

	for _, z := range zones {
		if _, err := tx.Exec(`
			INSERT INTO training_zones (athlete_id, zone_type, zone_number, min_value, max_value, name, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, athleteID, zoneType, z.ZoneNumber, z.MinValue, z.MaxValue,
			stringToNull(z.Name), stringToNull(z.Description)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpsertZone inserts or updates one zone band for an athlete
func (db *DB) UpsertZone(z *TrainingZone) error {
	_, err := db.Exec(`
		INSERT INTO training_zones (athlete_id, zone_type, zone_number, min_value, max_value, name, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(athlete_id, zone_type, zone_number) DO UPDATE SET
			min_value = excluded.min_value,
			max_value = excluded.max_value,
			name = excluded.name,
			description = excluded.description
	`, z.AthleteID, z.ZoneType, z.ZoneNumber, z.MinValue, z.MaxValue,
		stringToNull(z.Name), stringToNull(z.Description))
	return err
}

// GetZones returns an athlete's zones of one type in ascending zone
// number order
func (db *DB) GetZones(athleteID int64, zoneType string) ([]TrainingZone, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, zone_type, zone_number, min_value, max_value,
			COALESCE(name, ''), COALESCE(description, '')
		FROM training_zones
		WHERE athlete_id = ? AND zone_type = ?
		ORDER BY zone_number ASC
	`, athleteID, zoneType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []TrainingZone
	for rows.Next() {
		var z TrainingZone
		if err := rows.Scan(&z.ID, &z.AthleteID, &z.ZoneType, &z.ZoneNumber,
			&z.MinValue, &z.MaxValue, &z.Name, &z.Description); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
