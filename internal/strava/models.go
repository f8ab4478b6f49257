package strava

import (
	"encoding/json"
	"time"
)

// AthleteProfile is the authenticated athlete from /athlete
type AthleteProfile struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Firstname     string     `json:"firstname"`
	Lastname      string     `json:"lastname"`
	Sex           string     `json:"sex"`
	City          string     `json:"city"`
	State         string     `json:"state"`
	Country       string     `json:"country"`
	ProfileMedium string     `json:"profile_medium"`
	Profile       string     `json:"profile"`
	Weight        *float64   `json:"weight"`
	FTP           *int       `json:"ftp"`
	Premium       bool       `json:"premium"`
	CreatedAt     *time.Time `json:"created_at"`
}

// Activity is a summary activity from /athlete/activities
type Activity struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type"`
	SportType            string    `json:"sport_type"`
	Distance             float64   `json:"distance"`
	MovingTime           int       `json:"moving_time"`
	ElapsedTime          int       `json:"elapsed_time"`
	TotalElevationGain   *float64  `json:"total_elevation_gain"`
	StartDate            time.Time `json:"start_date"`
	StartDateLocal       time.Time `json:"start_date_local"`
	Timezone             string    `json:"timezone"`
	AverageSpeed         *float64  `json:"average_speed"`
	MaxSpeed             *float64  `json:"max_speed"`
	AverageHeartrate     *float64  `json:"average_heartrate"`
	MaxHeartrate         *float64  `json:"max_heartrate"`
	HasHeartrate         bool      `json:"has_heartrate"`
	AverageWatts         *float64  `json:"average_watts"`
	MaxWatts             *int      `json:"max_watts"`
	WeightedAverageWatts *int      `json:"weighted_average_watts"`
	Kilojoules           *float64  `json:"kilojoules"`
	AverageCadence       *float64  `json:"average_cadence"`
	Calories             *float64  `json:"calories"`
	SufferScore          *int      `json:"suffer_score"`
	StartLatLng          []float64 `json:"start_latlng"`
	EndLatLng            []float64 `json:"end_latlng"`
	Map                  *Map      `json:"map"`
	Trainer              bool      `json:"trainer"`
	Commute              bool      `json:"commute"`
	Manual               bool      `json:"manual"`
	Private              bool      `json:"private"`
	Flagged              bool      `json:"flagged"`
	Athlete              MetaAthlete `json:"athlete"`
}

// MetaAthlete is the minimal athlete reference embedded in activities
type MetaAthlete struct {
	ID int64 `json:"id"`
}

// Map holds an activity's encoded polylines
type Map struct {
	ID              string `json:"id"`
	SummaryPolyline string `json:"summary_polyline"`
	Polyline        string `json:"polyline"`
}

// Stream is one time-series channel of an activity. Data stays raw
// JSON so heterogeneous sample types (ints, floats, latlng pairs)
// round-trip unmodified into storage.
type Stream struct {
	Data         json.RawMessage `json:"data"`
	SeriesType   string          `json:"series_type"`
	OriginalSize int             `json:"original_size"`
	Resolution   string          `json:"resolution"`
}

// StreamSet is the key_by_type=true response from the streams endpoint
type StreamSet map[string]Stream

// StreamKeys are the channels requested for every activity
const StreamKeys = "time,latlng,altitude,velocity_smooth,heartrate,cadence,watts,temp,moving,grade_smooth,distance"

// FloatSamples decodes a numeric stream into float64 samples. Returns
// nil for non-numeric streams like latlng.
func (s Stream) FloatSamples() []float64 {
	var samples []float64
	if err := json.Unmarshal(s.Data, &samples); err != nil {
		return nil
	}
	return samples
}
