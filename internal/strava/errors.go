package strava

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthExpired is returned when a request still gets 401 after a
// forced token refresh. The athlete must re-authorize.
var ErrAuthExpired = errors.New("authorization expired, re-authentication required")

// ErrDailyLimitExceeded is returned when the daily request quota is
// exhausted. There is no point waiting it out inside a sync run.
var ErrDailyLimitExceeded = errors.New("daily API request limit exceeded")

// ErrorKind classifies API failures for retry decisions
type ErrorKind int

const (
	// KindFatal errors fail the request immediately
	KindFatal ErrorKind = iota
	// KindAuth errors trigger one forced token refresh
	KindAuth
	// KindRateLimit errors back off in minutes
	KindRateLimit
	// KindTransient errors back off in seconds
	KindTransient
)

// APIError is a non-2xx response from the Strava API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava API error %d: %s", e.StatusCode, e.Body)
}

// Kind classifies the error for retry handling
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return KindAuth
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case e.StatusCode >= 500:
		return KindTransient
	default:
		return KindFatal
	}
}

// IsRetryable reports whether the error may succeed on retry
func (e *APIError) IsRetryable() bool {
	k := e.Kind()
	return k == KindRateLimit || k == KindTransient
}
