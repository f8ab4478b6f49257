package service

import (
	"encoding/json"
	"math"
	"time"

	"stravaload/internal/metrics"
	"stravaload/internal/store"
)

// Fitness is the athlete's current training state
type Fitness struct {
	Date     string
	CTL      float64
	ATL      float64
	TSB      float64
	RampRate float64
	Form     string
}

// CurrentFitness returns the most recent point of the training load
// series, or nil if no sync has computed one yet
func (m *SyncManager) CurrentFitness(athleteID int64) (*Fitness, error) {
	latest, err := m.db.LatestTrainingLoad(athleteID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return &Fitness{
		Date:     latest.Date,
		CTL:      latest.CTL,
		ATL:      latest.ATL,
		TSB:      latest.TSB,
		RampRate: latest.RampRate,
		Form:     metrics.FormDescription(latest.TSB),
	}, nil
}

// LoadSeries returns the last n days of the training load series
func (m *SyncManager) LoadSeries(athleteID int64, days int) ([]store.TrainingLoad, error) {
	end := m.now().UTC()
	start := end.AddDate(0, 0, -days)
	return m.db.TrainingLoadRange(athleteID,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// RecentActivities returns the athlete's activities from the last n days
func (m *SyncManager) RecentActivities(athleteID int64, days int) ([]store.Activity, error) {
	since := m.now().UTC().AddDate(0, 0, -days)
	return m.db.ActivitiesSince(athleteID, since)
}

// ActivitiesInRange returns activities with start >= start and < end
func (m *SyncManager) ActivitiesInRange(athleteID int64, start, end time.Time) ([]store.Activity, error) {
	return m.db.ActivitiesInRange(athleteID, start, end)
}

// TrainingLoadSeries returns the stored daily load rows between two
// dates inclusive, oldest first
func (m *SyncManager) TrainingLoadSeries(athleteID int64, start, end string) ([]store.TrainingLoad, error) {
	return m.db.TrainingLoadRange(athleteID, start, end)
}

// LastSync returns the most recent sync attempt, or nil if none exists
func (m *SyncManager) LastSync(athleteID int64) (*store.SyncMetadata, error) {
	rec, err := m.db.LatestSync(athleteID)
	if err == store.ErrNoSyncRecord {
		return nil, nil
	}
	return rec, err
}

// EnsureDefaultZones creates default heart rate and power zones for
// athletes that have none configured. Existing zones are untouched.
func (m *SyncManager) EnsureDefaultZones(athleteID int64) error {
	athlete, err := m.db.GetAthlete(athleteID)
	if err != nil {
		return err
	}

	maxHR := m.fallback.MaxHR
	if athlete.MaxHeartRate != nil {
		maxHR = float64(*athlete.MaxHeartRate)
	}
	if maxHR > 0 {
		existing, err := m.db.GetZones(athleteID, store.ZoneTypeHeartRate)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			if err := m.db.ReplaceZones(athleteID, store.ZoneTypeHeartRate,
				metrics.DefaultHRZones(athleteID, maxHR)); err != nil {
				return err
			}
		}
	}

	ftp := float64(m.fallback.FTP)
	if athlete.FTP != nil {
		ftp = float64(*athlete.FTP)
	}
	if ftp > 0 {
		existing, err := m.db.GetZones(athleteID, store.ZoneTypePower)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			if err := m.db.ReplaceZones(athleteID, store.ZoneTypePower,
				metrics.DefaultPowerZones(athleteID, ftp)); err != nil {
				return err
			}
		}
	}

	return nil
}

// TimeInZones buckets an activity's stored heart rate or power stream
// into the athlete's configured zones. Returns nil if the activity has
// no stored stream of the needed type.
func (m *SyncManager) TimeInZones(athleteID, activityID int64, zoneType string) (map[int]int, error) {
	streamType := "heartrate"
	if zoneType == store.ZoneTypePower {
		streamType = "watts"
	}

	stream, err := m.db.GetStream(activityID, streamType)
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, nil
	}

	zones, err := m.db.GetZones(athleteID, zoneType)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, nil
	}

	samples := decodeSamples(stream.Data)
	if samples == nil {
		return nil, nil
	}

	interval, err := m.samplingInterval(activityID)
	if err != nil {
		return nil, err
	}
	return metrics.TimeInZones(samples, zones, interval), nil
}

// samplingInterval derives the seconds-per-sample spacing of an
// activity's stored streams from its time stream. Streams without one
// are treated as 1Hz.
func (m *SyncManager) samplingInterval(activityID int64) (int, error) {
	ts, err := m.db.GetStream(activityID, "time")
	if err != nil {
		return 0, err
	}
	if ts == nil {
		return 1, nil
	}
	t := decodeSamples(ts.Data)
	if len(t) < 2 {
		return 1, nil
	}
	interval := int(math.Round((t[len(t)-1] - t[0]) / float64(len(t)-1)))
	if interval < 1 {
		interval = 1
	}
	return interval, nil
}

func decodeSamples(data string) []float64 {
	var samples []float64
	if err := json.Unmarshal([]byte(data), &samples); err != nil {
		return nil
	}
	return samples
}
