package store

import "time"

// Athlete represents a Strava athlete profile
type Athlete struct {
	ID               int64
	Username         string
	Firstname        string
	Lastname         string
	Sex              string
	City             string
	State            string
	Country          string
	ProfileMedium    string
	Profile          string
	Weight           *float64 // kg
	FTP              *int     // watts
	MaxHeartRate     *int
	RestingHeartRate *int
	Premium          bool
	CreatedAtStrava  *time.Time
}

// Fullname returns the athlete's display name
func (a *Athlete) Fullname() string {
	if a.Firstname != "" && a.Lastname != "" {
		return a.Firstname + " " + a.Lastname
	}
	if a.Username != "" {
		return a.Username
	}
	return "Athlete"
}

// Activity represents one synced effort session
type Activity struct {
	ID                   int64
	AthleteID            int64
	Name                 string
	Type                 string
	SportType            string
	Distance             float64 // meters
	MovingTime           int     // seconds
	ElapsedTime          int     // seconds
	TotalElevationGain   *float64
	StartDate            time.Time
	StartDateLocal       time.Time
	Timezone             string
	AverageSpeed         *float64 // m/s
	MaxSpeed             *float64 // m/s
	AverageHeartrate     *float64 // bpm
	MaxHeartrate         *int     // bpm
	HasHeartrate         bool
	AverageWatts         *float64
	MaxWatts             *int
	WeightedAverageWatts *int // upstream normalized power
	Kilojoules           *float64
	AverageCadence       *float64
	Calories             *float64
	SufferScore          *int
	TrainingStressScore  *float64
	IntensityFactor      *float64
	StartLatLng          string // JSON [lat, lng]
	EndLatLng            string
	MapSummaryPolyline   string
	Trainer              bool
	Commute              bool
	Manual               bool
	Private              bool
	Flagged              bool
}

// ActivityStream is the raw time-series payload for one stream type
// of one activity. Data holds the JSON-encoded sample sequence.
type ActivityStream struct {
	ActivityID   int64
	StreamType   string
	Data         string
	OriginalSize int
	Resolution   string
}

// TrainingLoad is one day of the CTL/ATL/TSB series for an athlete.
// Each row's CTL/ATL depends on the previous calendar day's row.
type TrainingLoad struct {
	AthleteID     int64
	Date          string // YYYY-MM-DD
	DailyTSS      float64
	ActivityCount int
	CTL           float64
	ATL           float64
	TSB           float64
	RampRate      float64 // weekly CTL change
}

// Sync status values
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusSuccess    = "success"
	SyncStatusFailed     = "failed"
)

// Sync type values
const (
	SyncTypeFull        = "full"
	SyncTypeIncremental = "incremental"
)

// SyncMetadata is one append-only audit record of a sync attempt
type SyncMetadata struct {
	ID                string
	AthleteID         int64
	SyncType          string
	SyncStatus        string
	StartedAt         time.Time
	CompletedAt       *time.Time
	ActivitiesSynced  int
	ActivitiesUpdated int
	ActivitiesSkipped int
	StreamsSynced     int
	LastActivityID    *int64
	LastActivityDate  *time.Time
	ErrorMessage      string
	ErrorDetails      string
}

// Duration returns how long the sync took, or 0 if it hasn't completed
func (s *SyncMetadata) Duration() time.Duration {
	if s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// OAuthToken is one stored access credential. Refreshes insert new rows;
// the highest id per athlete is the current token.
type OAuthToken struct {
	ID           int64
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenType    string
	Scope        string
	CreatedAt    time.Time
}

// NeedsRefresh reports whether the token expires within buffer
func (t *OAuthToken) NeedsRefresh(buffer time.Duration) bool {
	return time.Now().After(t.ExpiresAt.Add(-buffer))
}

// Zone type values
const (
	ZoneTypeHeartRate = "heart_rate"
	ZoneTypePower     = "power"
)

// TrainingZone is one configured intensity band with [MinValue, MaxValue) bounds
type TrainingZone struct {
	ID          int64
	AthleteID   int64
	ZoneType    string
	ZoneNumber  int
	MinValue    float64
	MaxValue    float64
	Name        string
	Description string
}

// Contains reports whether value falls within this zone's half-open interval
func (z *TrainingZone) Contains(value float64) bool {
	return value >= z.MinValue && value < z.MaxValue
}
