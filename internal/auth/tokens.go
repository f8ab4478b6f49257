package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"stravaload/internal/store"
)

// TokenSource hands out valid access tokens backed by the database.
// Tokens nearing expiry are refreshed proactively; every refresh is
// persisted as a new row so older credentials stay auditable.
type TokenSource struct {
	cfg       *oauth2.Config
	db        *store.DB
	athleteID int64
	buffer    time.Duration
	log       logrus.FieldLogger

	mu      sync.Mutex
	current *store.OAuthToken
}

// NewTokenSource loads the athlete's current token from the database.
// Returns store.ErrNoToken if the athlete has never authorized.
func NewTokenSource(cfg *oauth2.Config, db *store.DB, athleteID int64, buffer time.Duration, log logrus.FieldLogger) (*TokenSource, error) {
	token, err := db.LatestToken(athleteID)
	if err != nil {
		return nil, err
	}
	return &TokenSource{
		cfg:       cfg,
		db:        db,
		athleteID: athleteID,
		buffer:    buffer,
		log:       log,
		current:   token,
	}, nil
}

// AccessToken returns a valid access token, refreshing first when the
// stored one expires within the buffer
func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.current.NeedsRefresh(ts.buffer) {
		if err := ts.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return ts.current.AccessToken, nil
}

// ForceRefresh exchanges the refresh token for a new access token
// regardless of local expiry. Used when the API rejects a token that
// looked valid.
func (ts *TokenSource) ForceRefresh(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.refreshLocked(ctx)
}

// CurrentToken returns the stored token without refreshing
func (ts *TokenSource) CurrentToken() *store.OAuthToken {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.current
}

func (ts *TokenSource) refreshLocked(ctx context.Context) error {
	// Hand oauth2 a token that is already expired so its source
	// performs the refresh exchange unconditionally
	stale := &oauth2.Token{
		AccessToken:  ts.current.AccessToken,
		RefreshToken: ts.current.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}

	fresh, err := ts.cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}

	record := &store.OAuthToken{
		AthleteID:    ts.athleteID,
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresAt:    fresh.Expiry.UTC(),
		TokenType:    fresh.TokenType,
		Scope:        ts.current.Scope,
	}
	if record.RefreshToken == "" {
		record.RefreshToken = ts.current.RefreshToken
	}
	if err := ts.db.SaveToken(record); err != nil {
		return fmt.Errorf("persisting refreshed token: %w", err)
	}

	ts.log.WithFields(logrus.Fields{
		"athlete_id": ts.athleteID,
		"expires_at": record.ExpiresAt.Format(time.RFC3339),
	}).Debug("access token refreshed")

	ts.current = record
	return nil
}

// StoreResult persists a completed authorization as the athlete's
// current token
func StoreResult(db *store.DB, res *Result) error {
	if res.AthleteID == 0 {
		return fmt.Errorf("token response carried no athlete identity")
	}
	return db.SaveToken(&store.OAuthToken{
		AthleteID:    res.AthleteID,
		AccessToken:  res.Token.AccessToken,
		RefreshToken: res.Token.RefreshToken,
		ExpiresAt:    res.Token.Expiry.UTC(),
		TokenType:    res.Token.TokenType,
		Scope:        strings.Join(Scopes, ","),
	})
}
