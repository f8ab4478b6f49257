package store

import (
	"database/sql"
	"time"
)

// SaveToken inserts a new token row. Existing rows are never updated,
// so every grant and refresh leaves an audit trail.
func (db *DB) SaveToken(t *OAuthToken) error {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	res, err := db.Exec(`
		INSERT INTO oauth_tokens (athlete_id, access_token, refresh_token, expires_at, token_type, scope)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.AthleteID, t.AccessToken, t.RefreshToken, t.ExpiresAt.Unix(), tokenType, stringToNull(t.Scope))
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// LatestToken returns the athlete's current token (the newest row), or
// ErrNoToken if they have never authorized
func (db *DB) LatestToken(athleteID int64) (*OAuthToken, error) {
	var t OAuthToken
	var expiresAt int64
	var scope sql.NullString
	var createdAt string

	err := db.QueryRow(`
		SELECT id, athlete_id, access_token, refresh_token, expires_at, token_type, scope, created_at
		FROM oauth_tokens
		WHERE athlete_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, athleteID).Scan(&t.ID, &t.AthleteID, &t.AccessToken, &t.RefreshToken,
		&expiresAt, &t.TokenType, &scope, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}

	t.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	t.Scope = scope.String
	if ts, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		t.CreatedAt = ts
	}
	return &t, nil
}

// AnyAthleteID returns the athlete ID of the most recently stored token.
// Single-athlete installs use this to avoid passing an ID everywhere.
func (db *DB) AnyAthleteID() (int64, error) {
	var id int64
	err := db.QueryRow(`
		SELECT athlete_id FROM oauth_tokens ORDER BY id DESC LIMIT 1
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNoToken
	}
	return id, err
}
