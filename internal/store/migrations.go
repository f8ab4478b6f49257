package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Athlete profiles (primary key is the Strava athlete ID)
		`CREATE TABLE IF NOT EXISTS athletes (
			id INTEGER PRIMARY KEY,
			username TEXT,
			firstname TEXT,
			lastname TEXT,
			sex TEXT,
			city TEXT,
			state TEXT,
			country TEXT,
			profile_medium TEXT,
			profile TEXT,
			weight REAL,
			ftp INTEGER,
			max_heart_rate INTEGER,
			resting_heart_rate INTEGER,
			premium INTEGER NOT NULL DEFAULT 0,
			created_at_strava TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activity summaries (from /athlete/activities)
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			sport_type TEXT,
			distance REAL NOT NULL DEFAULT 0,
			moving_time INTEGER NOT NULL DEFAULT 0,
			elapsed_time INTEGER NOT NULL DEFAULT 0,
			total_elevation_gain REAL,
			start_date TEXT NOT NULL,
			start_date_local TEXT,
			timezone TEXT,
			average_speed REAL,
			max_speed REAL,
			average_heartrate REAL,
			max_heartrate INTEGER,
			has_heartrate INTEGER NOT NULL DEFAULT 0,
			average_watts REAL,
			max_watts INTEGER,
			weighted_average_watts INTEGER,
			kilojoules REAL,
			average_cadence REAL,
			calories REAL,
			suffer_score INTEGER,
			training_stress_score REAL,
			intensity_factor REAL,
			start_latlng TEXT,
			end_latlng TEXT,
			map_summary_polyline TEXT,
			trainer INTEGER NOT NULL DEFAULT 0,
			commute INTEGER NOT NULL DEFAULT 0,
			manual INTEGER NOT NULL DEFAULT 0,
			private INTEGER NOT NULL DEFAULT 0,
			flagged INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_athlete_date ON activities(athlete_id, start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type)`,

		// Raw time-series payloads, one row per (activity, stream type)
		`CREATE TABLE IF NOT EXISTS activity_streams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			activity_id INTEGER NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
			stream_type TEXT NOT NULL,
			data TEXT NOT NULL,
			original_size INTEGER NOT NULL DEFAULT 0,
			resolution TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(activity_id, stream_type)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_streams_activity ON activity_streams(activity_id)`,

		// Daily training load series (CTL/ATL/TSB)
		`CREATE TABLE IF NOT EXISTS training_loads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			athlete_id INTEGER NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
			date TEXT NOT NULL,
			daily_tss REAL NOT NULL DEFAULT 0,
			activity_count INTEGER NOT NULL DEFAULT 0,
			ctl REAL NOT NULL DEFAULT 0,
			atl REAL NOT NULL DEFAULT 0,
			tsb REAL NOT NULL DEFAULT 0,
			ramp_rate REAL NOT NULL DEFAULT 0,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(athlete_id, date)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_training_loads_date ON training_loads(athlete_id, date)`,

		// Append-only audit trail of sync attempts
		`CREATE TABLE IF NOT EXISTS sync_metadata (
			id TEXT PRIMARY KEY,
			athlete_id INTEGER NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
			sync_type TEXT NOT NULL,
			sync_status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			activities_synced INTEGER NOT NULL DEFAULT 0,
			activities_updated INTEGER NOT NULL DEFAULT 0,
			activities_skipped INTEGER NOT NULL DEFAULT 0,
			streams_synced INTEGER NOT NULL DEFAULT 0,
			last_activity_id INTEGER,
			last_activity_date TEXT,
			error_message TEXT,
			error_details TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sync_metadata_athlete ON sync_metadata(athlete_id, started_at)`,

		// OAuth tokens, one row per grant/refresh (newest row is current)
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			token_type TEXT NOT NULL DEFAULT 'Bearer',
			scope TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_oauth_tokens_athlete ON oauth_tokens(athlete_id, id)`,

		// Configured intensity bands per athlete
		`CREATE TABLE IF NOT EXISTS training_zones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			athlete_id INTEGER NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
			zone_type TEXT NOT NULL,
			zone_number INTEGER NOT NULL,
			min_value REAL NOT NULL,
			max_value REAL NOT NULL,
			name TEXT,
			description TEXT,
			UNIQUE(athlete_id, zone_type, zone_number)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
