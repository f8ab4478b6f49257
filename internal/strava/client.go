// Package strava wraps the Strava v3 API with rate limiting, retry
// with exponential backoff, and transparent token refresh.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://www.strava.com/api/v3"

// Per-page maximum allowed by Strava
const maxPerPage = 100

// TokenProvider supplies bearer tokens and supports a forced refresh
// when the API rejects a token that looked valid locally
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) error
}

// Client is a Strava API client
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	tokens     TokenProvider
	log        logrus.FieldLogger
	baseURL    string
	maxRetries int

	// Backoff bases, overridable in tests
	transientBase time.Duration
	rateLimitBase time.Duration
}

// Options configures optional client behavior
type Options struct {
	// BaseURL overrides the API root, for tests
	BaseURL string
	// HTTPClient overrides the transport, for tests
	HTTPClient *http.Client
	// MaxRetries caps transient retries per request (default 3)
	MaxRetries int
	// RateLimit15Min and RateLimitDaily override Strava's defaults
	RateLimit15Min int
	RateLimitDaily int
}

// NewClient creates a Strava API client
func NewClient(tokens TokenProvider, log logrus.FieldLogger, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RateLimit15Min == 0 {
		opts.RateLimit15Min = 100
	}
	if opts.RateLimitDaily == 0 {
		opts.RateLimitDaily = 1000
	}

	return &Client{
		httpClient:    opts.HTTPClient,
		limiter:       NewRateLimiter(opts.RateLimit15Min, opts.RateLimitDaily),
		tokens:        tokens,
		log:           log,
		baseURL:       opts.BaseURL,
		maxRetries:    opts.MaxRetries,
		transientBase: 5 * time.Second,
		rateLimitBase: time.Minute,
	}
}

// GetAthlete fetches the authenticated athlete's profile
func (c *Client) GetAthlete(ctx context.Context) (*AthleteProfile, error) {
	body, err := c.get(ctx, "/athlete", nil)
	if err != nil {
		return nil, err
	}
	var profile AthleteProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decoding athlete: %w", err)
	}
	return &profile, nil
}

// GetActivities fetches one page of the athlete's activities. Zero
// after/before values leave the corresponding bound open.
func (c *Client) GetActivities(ctx context.Context, after, before time.Time, page, perPage int) ([]Activity, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	if !before.IsZero() {
		params.Set("before", strconv.FormatInt(before.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	body, err := c.get(ctx, "/athlete/activities", params)
	if err != nil {
		return nil, err
	}

	var activities []Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}
	return activities, nil
}

// GetAllActivities pages through the athlete's activities between the
// given bounds, zero values leaving a bound open. A positive limit
// caps the total returned. onProgress, if non-nil, is called with the
// running total after each page.
func (c *Client) GetAllActivities(ctx context.Context, after, before time.Time, limit int, onProgress func(fetched int)) ([]Activity, error) {
	var all []Activity
	page := 1

	for {
		perPage := maxPerPage
		if limit > 0 && limit-len(all) < perPage {
			perPage = limit - len(all)
		}

		activities, err := c.GetActivities(ctx, after, before, page, perPage)
		if err != nil {
			return all, fmt.Errorf("fetching page %d: %w", page, err)
		}
		if len(activities) == 0 {
			break
		}

		all = append(all, activities...)
		if onProgress != nil {
			onProgress(len(all))
		}

		if len(activities) < perPage || (limit > 0 && len(all) >= limit) {
			break
		}
		page++
	}

	return all, nil
}

// GetActivity fetches one activity's detail, which carries fields the
// summary list omits (calories in particular)
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	body, err := c.get(ctx, fmt.Sprintf("/activities/%d", activityID), nil)
	if err != nil {
		return nil, err
	}
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("decoding activity %d: %w", activityID, err)
	}
	return &activity, nil
}

// GetActivityStreams fetches an activity's time-series channels keyed
// by stream type
func (c *Client) GetActivityStreams(ctx context.Context, activityID int64) (StreamSet, error) {
	params := url.Values{}
	params.Set("keys", StreamKeys)
	params.Set("key_by_type", "true")

	body, err := c.get(ctx, fmt.Sprintf("/activities/%d/streams", activityID), params)
	if err != nil {
		return nil, err
	}

	var streams StreamSet
	if err := json.Unmarshal(body, &streams); err != nil {
		return nil, fmt.Errorf("decoding streams for %d: %w", activityID, err)
	}
	return streams, nil
}

// RateLimitStatus returns remaining requests in each window
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.limiter.Status()
}

// get runs one API request through the limiter and both retry
// policies: seconds-scale backoff for transient failures, then
// minutes-scale backoff when the API answers 429 anyway.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var body []byte

	rateLimited := func() error {
		transient := func() error {
			b, err := c.doOnce(ctx, path, params)
			if err == nil {
				body = b
				return nil
			}
			if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrDailyLimitExceeded) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				switch apiErr.Kind() {
				case KindTransient:
					c.log.WithFields(logrus.Fields{"path": path, "status": apiErr.StatusCode}).
						Warn("transient API error, retrying")
					return err
				case KindRateLimit:
					// Escalate to the outer minutes-scale policy
					return backoff.Permanent(err)
				default:
					return backoff.Permanent(err)
				}
			}
			// Network-level failure
			c.log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).
				Warn("request failed, retrying")
			return err
		}

		err := backoff.Retry(transient, backoff.WithContext(
			backoff.WithMaxRetries(newPolicy(c.transientBase), uint64(c.maxRetries)), ctx))
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind() == KindRateLimit {
			c.log.WithField("path", path).Warn("rate limited by API, backing off")
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(rateLimited, backoff.WithContext(
		backoff.WithMaxRetries(newPolicy(c.rateLimitBase), 3), ctx))
	return body, err
}

// newPolicy builds a deterministic doubling backoff starting at base
func newPolicy(base time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base * 8
	b.MaxElapsedTime = 0
	return b
}

// doOnce issues a single request, refreshing the token once if the
// API rejects it
func (c *Client) doOnce(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	body, status, err := c.request(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.log.Debug("access token rejected, forcing refresh")
		if err := c.tokens.ForceRefresh(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		// The retry is a request of its own and counts like one
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.request(ctx, path, params)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, ErrAuthExpired
		}
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}
	return body, nil
}

func (c *Client) request(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	c.limiter.UpdateFromHeaders(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
