package strava

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type fakeTokens struct {
	token     string
	refreshes int
	// next token handed out after a forced refresh
	refreshed  string
	refreshErr error
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, error) {
	return f.token, nil
}

func (f *fakeTokens) ForceRefresh(ctx context.Context) error {
	f.refreshes++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	if f.refreshed != "" {
		f.token = f.refreshed
	}
	return nil
}

func newTestClient(t *testing.T, tokens *fakeTokens) *Client {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	c := NewClient(tokens, log, Options{
		BaseURL:    "https://strava.test/api/v3",
		HTTPClient: httpClient,
	})
	// Keep tests fast
	c.transientBase = time.Millisecond
	c.rateLimitBase = time.Millisecond
	c.limiter.pacer = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestGetActivitiesDecodesPage(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete/activities",
		httpmock.NewStringResponder(200, `[
			{"id": 1, "name": "Morning Ride", "type": "Ride", "moving_time": 3600,
			 "start_date": "2024-03-01T08:00:00Z", "average_watts": 210.5},
			{"id": 2, "name": "Evening Run", "type": "Run", "moving_time": 1800,
			 "start_date": "2024-03-01T18:00:00Z"}
		]`))

	got, err := c.GetActivities(context.Background(), time.Time{}, time.Time{}, 1, 100)
	if err != nil {
		t.Fatalf("GetActivities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d activities, want 2", len(got))
	}
	if got[0].Name != "Morning Ride" {
		t.Errorf("name = %q", got[0].Name)
	}
	if got[0].AverageWatts == nil || *got[0].AverageWatts != 210.5 {
		t.Errorf("average watts = %v, want 210.5", got[0].AverageWatts)
	}
	if got[1].AverageWatts != nil {
		t.Errorf("activity without power should carry nil watts")
	}
}

func TestGetAllActivitiesPaginates(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	// First page full (100 entries), second page short
	fullPage := `[`
	for i := 0; i < 100; i++ {
		if i > 0 {
			fullPage += ","
		}
		fullPage += `{"id": ` + strconv.Itoa(i+1) + `, "name": "a", "type": "Ride", "start_date": "2024-03-01T08:00:00Z"}`
	}
	fullPage += `]`

	calls := 0
	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete/activities",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if req.URL.Query().Get("page") == "1" {
				return httpmock.NewStringResponse(200, fullPage), nil
			}
			return httpmock.NewStringResponse(200, `[{"id": 101, "name": "a", "type": "Ride", "start_date": "2024-03-02T08:00:00Z"}]`), nil
		})

	var progress []int
	got, err := c.GetAllActivities(context.Background(), time.Time{}, time.Time{}, 0, func(n int) {
		progress = append(progress, n)
	})
	if err != nil {
		t.Fatalf("GetAllActivities: %v", err)
	}
	if len(got) != 101 {
		t.Errorf("got %d activities, want 101", len(got))
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2", calls)
	}
	if len(progress) != 2 || progress[0] != 100 || progress[1] != 101 {
		t.Errorf("progress = %v, want [100 101]", progress)
	}
}

func TestGetAllActivitiesHonorsBoundsAndLimit(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	calls := 0
	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete/activities",
		func(req *http.Request) (*http.Response, error) {
			calls++
			q := req.URL.Query()
			if q.Get("after") != strconv.FormatInt(after.Unix(), 10) {
				t.Errorf("after = %q", q.Get("after"))
			}
			if q.Get("before") != strconv.FormatInt(before.Unix(), 10) {
				t.Errorf("before = %q", q.Get("before"))
			}
			if q.Get("per_page") != "30" {
				t.Errorf("per_page = %q, want 30", q.Get("per_page"))
			}
			page := `[`
			for i := 0; i < 30; i++ {
				if i > 0 {
					page += ","
				}
				page += `{"id": ` + strconv.Itoa(i+1) + `, "name": "a", "type": "Ride", "start_date": "2024-03-01T08:00:00Z"}`
			}
			return httpmock.NewStringResponse(200, page+`]`), nil
		})

	got, err := c.GetAllActivities(context.Background(), after, before, 30, nil)
	if err != nil {
		t.Fatalf("GetAllActivities: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("got %d activities, want 30", len(got))
	}
	if calls != 1 {
		t.Errorf("made %d requests, want 1 (limit reached)", calls)
	}
}

func TestGetRefreshesTokenOnUnauthorized(t *testing.T) {
	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	c := newTestClient(t, tokens)

	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") == "Bearer fresh" {
				return httpmock.NewStringResponse(200, `{"id": 42, "firstname": "Test"}`), nil
			}
			return httpmock.NewStringResponse(401, `{"message": "Authorization Error"}`), nil
		})

	profile, err := c.GetAthlete(context.Background())
	if err != nil {
		t.Fatalf("GetAthlete: %v", err)
	}
	if profile.ID != 42 {
		t.Errorf("athlete ID = %d, want 42", profile.ID)
	}
	if tokens.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", tokens.refreshes)
	}
	// The post-refresh retry counts against the windows too
	if short, _ := c.limiter.Usage(); short != 2 {
		t.Errorf("short window usage = %d, want 2", short)
	}
}

func TestGetFailsAfterSecondUnauthorized(t *testing.T) {
	tokens := &fakeTokens{token: "stale", refreshed: "also-stale"}
	c := newTestClient(t, tokens)

	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete",
		httpmock.NewStringResponder(401, `{"message": "Authorization Error"}`))

	_, err := c.GetAthlete(context.Background())
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("got %v, want ErrAuthExpired", err)
	}
	if tokens.refreshes != 1 {
		t.Errorf("refreshes = %d, want exactly 1", tokens.refreshes)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	calls := 0
	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(503, `upstream error`), nil
			}
			return httpmock.NewStringResponse(200, `{"id": 42}`), nil
		})

	profile, err := c.GetAthlete(context.Background())
	if err != nil {
		t.Fatalf("GetAthlete: %v", err)
	}
	if profile.ID != 42 {
		t.Errorf("athlete ID = %d", profile.ID)
	}
	if calls != 3 {
		t.Errorf("made %d requests, want 3", calls)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	calls := 0
	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/activities/7",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(404, `{"message": "Record Not Found"}`), nil
		})

	_, err := c.GetActivity(context.Background(), 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Fatalf("got %v, want 404 APIError", err)
	}
	if calls != 1 {
		t.Errorf("made %d requests, want 1 (no retry)", calls)
	}
}

func TestGetRetriesRateLimitResponses(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	calls := 0
	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/athlete",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				resp := httpmock.NewStringResponse(429, `rate limited`)
				resp.Header.Set("X-RateLimit-Usage", "100,500")
				return resp, nil
			}
			return httpmock.NewStringResponse(200, `{"id": 42}`), nil
		})

	// The header sync would exhaust the short window, so use a limiter
	// with headroom above Strava's real quota
	c.limiter.shortLimit = 1000

	profile, err := c.GetAthlete(context.Background())
	if err != nil {
		t.Fatalf("GetAthlete: %v", err)
	}
	if profile.ID != 42 {
		t.Errorf("athlete ID = %d", profile.ID)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2", calls)
	}
}

func TestGetActivityStreams(t *testing.T) {
	tokens := &fakeTokens{token: "good"}
	c := newTestClient(t, tokens)

	httpmock.RegisterResponder("GET", "https://strava.test/api/v3/activities/9/streams",
		httpmock.NewStringResponder(200, `{
			"heartrate": {"data": [140, 150, 160], "series_type": "time", "original_size": 3, "resolution": "high"},
			"latlng": {"data": [[52.1, 4.3], [52.2, 4.4]], "series_type": "distance", "original_size": 2, "resolution": "high"}
		}`))

	streams, err := c.GetActivityStreams(context.Background(), 9)
	if err != nil {
		t.Fatalf("GetActivityStreams: %v", err)
	}
	hr, ok := streams["heartrate"]
	if !ok {
		t.Fatal("missing heartrate stream")
	}
	samples := hr.FloatSamples()
	if len(samples) != 3 || samples[1] != 150 {
		t.Errorf("heartrate samples = %v", samples)
	}
	if streams["latlng"].FloatSamples() != nil {
		t.Error("latlng should not decode as float samples")
	}
	if hr.OriginalSize != 3 {
		t.Errorf("original size = %d, want 3", hr.OriginalSize)
	}
}
