// Package service orchestrates synchronization: fetching remote
// activities, scoring them, and maintaining the training load series.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stravaload/internal/config"
	"stravaload/internal/metrics"
	"stravaload/internal/store"
	"stravaload/internal/strava"
)

// ActivitySource abstracts the remote API so sync logic is testable
// without network access
type ActivitySource interface {
	GetAthlete(ctx context.Context) (*strava.AthleteProfile, error)
	GetAllActivities(ctx context.Context, after, before time.Time, limit int, onProgress func(fetched int)) ([]strava.Activity, error)
	GetActivityStreams(ctx context.Context, activityID int64) (strava.StreamSet, error)
}

// SyncManager coordinates a sync run end to end
type SyncManager struct {
	source   ActivitySource
	db       *store.DB
	syncCfg  config.SyncConfig
	fallback config.AthleteConfig
	log      logrus.FieldLogger

	// Overridable for tests
	now func() time.Time

	// Progress, if set, is called as phases advance
	Progress func(Progress)
}

// Progress is one progress notification during a sync
type Progress struct {
	Phase     string // "profile", "activities", "loads", "streams"
	Total     int
	Completed int
}

// Result summarizes a sync run. It is always returned, including on
// failure; errors surface in Status and Error rather than panics or
// raised errors.
type Result struct {
	SyncID            string
	AthleteID         int64
	Type              string
	Status            string
	ActivitiesSynced  int // newly created
	ActivitiesUpdated int
	StreamsSynced     int
	LoadDaysComputed  int
	Error             string
	StartedAt         time.Time
	Duration          time.Duration
}

// NewSyncManager creates a sync manager. The athlete config supplies
// threshold fallbacks for athletes whose profile carries none.
func NewSyncManager(source ActivitySource, db *store.DB, syncCfg config.SyncConfig, fallback config.AthleteConfig, log logrus.FieldLogger) *SyncManager {
	return &SyncManager{
		source:   source,
		db:       db,
		syncCfg:  syncCfg,
		fallback: fallback,
		log:      log,
		now:      time.Now,
	}
}

// FullSync re-fetches every activity and rebuilds the training load
// series from the athlete's first recorded day
func (m *SyncManager) FullSync(ctx context.Context, athleteID int64) *Result {
	return m.run(ctx, athleteID, store.SyncTypeFull)
}

// IncrementalSync fetches activities after the last successful sync's
// checkpoint and extends the training load series. With no prior
// successful sync it is equivalent to a full sync.
func (m *SyncManager) IncrementalSync(ctx context.Context, athleteID int64) *Result {
	return m.run(ctx, athleteID, store.SyncTypeIncremental)
}

func (m *SyncManager) run(ctx context.Context, athleteID int64, syncType string) (result *Result) {
	started := time.Now()
	result = &Result{
		AthleteID: athleteID,
		Type:      syncType,
		Status:    store.SyncStatusFailed,
		StartedAt: started,
	}

	rec, err := m.db.CreateSyncRecord(athleteID, syncType)
	if err != nil {
		result.Error = fmt.Sprintf("creating sync record: %v", err)
		result.Duration = time.Since(started)
		return result
	}
	result.SyncID = rec.ID

	// A panic mid-run must still leave an honest audit record
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logrus.Fields{"sync_id": rec.ID, "panic": r}).
				Error("sync panicked")
			result.Error = fmt.Sprintf("panic: %v", r)
			result.Status = store.SyncStatusFailed
		}
		result.Duration = time.Since(started)

		rec.SyncStatus = result.Status
		rec.ActivitiesSynced = result.ActivitiesSynced
		rec.ActivitiesUpdated = result.ActivitiesUpdated
		rec.StreamsSynced = result.StreamsSynced
		rec.ErrorMessage = result.Error
		if result.Status != store.SyncStatusSuccess {
			// The checkpoint only advances on success
			rec.LastActivityID = nil
			rec.LastActivityDate = nil
		}
		if err := m.db.CompleteSyncRecord(rec); err != nil {
			m.log.WithField("sync_id", rec.ID).WithError(err).
				Error("finalizing sync record")
		}
	}()

	log := m.log.WithFields(logrus.Fields{"sync_id": rec.ID, "type": syncType, "athlete_id": athleteID})
	log.Info("sync started")

	if err := m.syncProfile(ctx, athleteID); err != nil {
		result.Error = fmt.Sprintf("syncing profile: %v", err)
		return result
	}

	after, err := m.lowerBound(athleteID, syncType)
	if err != nil {
		result.Error = fmt.Sprintf("resolving sync window: %v", err)
		return result
	}

	if err := m.syncActivities(ctx, athleteID, after, rec, result); err != nil {
		result.Error = fmt.Sprintf("syncing activities: %v", err)
		return result
	}

	if err := m.recomputeLoads(athleteID, syncType, after, result); err != nil {
		result.Error = fmt.Sprintf("computing training loads: %v", err)
		return result
	}

	if err := m.syncStreams(ctx, athleteID, result); err != nil {
		result.Error = fmt.Sprintf("syncing streams: %v", err)
		return result
	}

	// A run that found nothing new keeps the previous checkpoint so
	// the next incremental window doesn't widen back to everything
	if rec.LastActivityDate == nil && !after.IsZero() {
		d := after
		rec.LastActivityDate = &d
	}

	result.Status = store.SyncStatusSuccess
	log.WithFields(logrus.Fields{
		"new":       result.ActivitiesSynced,
		"updated":   result.ActivitiesUpdated,
		"streams":   result.StreamsSynced,
		"load_days": result.LoadDaysComputed,
		"duration":  time.Since(started).Round(time.Millisecond).String(),
	}).Info("sync completed")

	return result
}

// lowerBound decides how far back to fetch. Full syncs start from
// zero; incremental syncs resume at the last successful checkpoint.
func (m *SyncManager) lowerBound(athleteID int64, syncType string) (time.Time, error) {
	if syncType == store.SyncTypeFull {
		return time.Time{}, nil
	}
	last, err := m.db.LastSuccessfulSync(athleteID)
	if errors.Is(err, store.ErrNoSyncRecord) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if last.LastActivityDate == nil {
		return time.Time{}, nil
	}
	return *last.LastActivityDate, nil
}

func (m *SyncManager) syncProfile(ctx context.Context, athleteID int64) error {
	m.notify(Progress{Phase: "profile"})

	profile, err := m.source.GetAthlete(ctx)
	if err != nil {
		return err
	}
	if profile.ID != athleteID {
		return fmt.Errorf("token belongs to athlete %d, expected %d", profile.ID, athleteID)
	}

	athlete := &store.Athlete{
		ID:              profile.ID,
		Username:        profile.Username,
		Firstname:       profile.Firstname,
		Lastname:        profile.Lastname,
		Sex:             profile.Sex,
		City:            profile.City,
		State:           profile.State,
		Country:         profile.Country,
		ProfileMedium:   profile.ProfileMedium,
		Profile:         profile.Profile,
		Weight:          profile.Weight,
		FTP:             profile.FTP,
		Premium:         profile.Premium,
		CreatedAtStrava: profile.CreatedAt,
	}
	return m.db.UpsertAthlete(athlete)
}

func (m *SyncManager) syncActivities(ctx context.Context, athleteID int64, after time.Time, rec *store.SyncMetadata, result *Result) error {
	m.notify(Progress{Phase: "activities"})

	activities, err := m.source.GetAllActivities(ctx, after, time.Time{}, 0, func(fetched int) {
		m.notify(Progress{Phase: "activities", Completed: fetched})
	})
	if err != nil {
		return err
	}

	th, err := m.resolveThresholds(athleteID)
	if err != nil {
		return err
	}

	for i := range activities {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		a := convertActivity(athleteID, &activities[i])
		m.scoreActivity(a, th)

		created, err := m.db.UpsertActivity(a)
		if err != nil {
			return fmt.Errorf("storing activity %d: %w", a.ID, err)
		}
		if created {
			result.ActivitiesSynced++
		} else {
			result.ActivitiesUpdated++
		}

		if rec.LastActivityDate == nil || a.StartDate.After(*rec.LastActivityDate) {
			d := a.StartDate
			id := a.ID
			rec.LastActivityDate = &d
			rec.LastActivityID = &id
		}
	}

	m.notify(Progress{Phase: "activities", Total: len(activities), Completed: len(activities)})
	return nil
}

func (m *SyncManager) syncStreams(ctx context.Context, athleteID int64, result *Result) error {
	cutoff := m.now().UTC().AddDate(0, 0, -m.syncCfg.StreamLookbackDays)
	pending, err := m.db.ActivitiesNeedingStreams(athleteID, cutoff, m.syncCfg.StreamBatchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	m.notify(Progress{Phase: "streams", Total: len(pending)})

	for i, activity := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := m.source.GetActivityStreams(ctx, activity.ID)
		if err != nil {
			// Credential and quota failures end the run; anything else
			// (missing streams, manual activities) just skips one activity
			if errors.Is(err, strava.ErrAuthExpired) || errors.Is(err, strava.ErrDailyLimitExceeded) {
				return err
			}
			m.log.WithFields(logrus.Fields{"activity_id": activity.ID}).WithError(err).
				Warn("skipping streams for activity")
			continue
		}

		stored := false
		for streamType, stream := range streams {
			if err := m.db.SaveStream(&store.ActivityStream{
				ActivityID:   activity.ID,
				StreamType:   streamType,
				Data:         string(stream.Data),
				OriginalSize: stream.OriginalSize,
				Resolution:   stream.Resolution,
			}); err != nil {
				return fmt.Errorf("saving %s stream for %d: %w", streamType, activity.ID, err)
			}
			stored = true
		}
		if stored {
			result.StreamsSynced++
		}

		m.notify(Progress{Phase: "streams", Total: len(pending), Completed: i + 1})
	}

	return nil
}

// thresholds are the effective scoring parameters for one athlete
type thresholds struct {
	ftp         float64
	thresholdHR float64
}

// resolveThresholds reads thresholds from the athlete profile, falling
// back to configured values. Threshold HR defaults to 95% of max HR.
func (m *SyncManager) resolveThresholds(athleteID int64) (thresholds, error) {
	var th thresholds

	athlete, err := m.db.GetAthlete(athleteID)
	if err != nil && !errors.Is(err, store.ErrAthleteNotFound) {
		return th, err
	}

	if athlete != nil && athlete.FTP != nil {
		th.ftp = float64(*athlete.FTP)
	} else if m.fallback.FTP > 0 {
		th.ftp = float64(m.fallback.FTP)
	}

	maxHR := 0.0
	if athlete != nil && athlete.MaxHeartRate != nil {
		maxHR = float64(*athlete.MaxHeartRate)
	} else if m.fallback.MaxHR > 0 {
		maxHR = m.fallback.MaxHR
	}

	switch {
	case m.fallback.ThresholdHR > 0:
		th.thresholdHR = m.fallback.ThresholdHR
	case maxHR > 0:
		th.thresholdHR = maxHR * 0.95
	}

	return th, nil
}

// scoreActivity computes the activity's training stress using the best
// available signal: power, then heart rate, then a flat per-hour
// estimate
func (m *SyncManager) scoreActivity(a *store.Activity, th thresholds) {
	if a.WeightedAverageWatts != nil && th.ftp > 0 {
		np := float64(*a.WeightedAverageWatts)
		tss := metrics.TSSFromPower(a.MovingTime, np, th.ftp)
		intensity := metrics.IntensityFactor(np, th.ftp)
		a.TrainingStressScore = &tss
		a.IntensityFactor = &intensity
		return
	}
	if a.AverageHeartrate != nil && th.thresholdHR > 0 {
		tss := metrics.TSSFromHeartRate(a.MovingTime, *a.AverageHeartrate, th.thresholdHR)
		intensity := metrics.IntensityFactor(*a.AverageHeartrate, th.thresholdHR)
		a.TrainingStressScore = &tss
		a.IntensityFactor = &intensity
		return
	}
	tss := metrics.TSSFromDuration(a.MovingTime)
	a.TrainingStressScore = &tss
}

func (m *SyncManager) notify(p Progress) {
	if m.Progress != nil {
		m.Progress(p)
	}
}

// convertActivity maps an API activity to its storage form
func convertActivity(athleteID int64, a *strava.Activity) *store.Activity {
	activity := &store.Activity{
		ID:                   a.ID,
		AthleteID:            athleteID,
		Name:                 a.Name,
		Type:                 a.Type,
		SportType:            a.SportType,
		Distance:             a.Distance,
		MovingTime:           a.MovingTime,
		ElapsedTime:          a.ElapsedTime,
		TotalElevationGain:   a.TotalElevationGain,
		StartDate:            a.StartDate,
		StartDateLocal:       a.StartDateLocal,
		Timezone:             a.Timezone,
		AverageSpeed:         a.AverageSpeed,
		MaxSpeed:             a.MaxSpeed,
		AverageHeartrate:     a.AverageHeartrate,
		HasHeartrate:         a.HasHeartrate,
		AverageWatts:         a.AverageWatts,
		MaxWatts:             a.MaxWatts,
		WeightedAverageWatts: a.WeightedAverageWatts,
		Kilojoules:           a.Kilojoules,
		AverageCadence:       a.AverageCadence,
		Calories:             a.Calories,
		SufferScore:          a.SufferScore,
		Trainer:              a.Trainer,
		Commute:              a.Commute,
		Manual:               a.Manual,
		Private:              a.Private,
		Flagged:              a.Flagged,
	}

	if a.MaxHeartrate != nil {
		maxHR := int(*a.MaxHeartrate)
		activity.MaxHeartrate = &maxHR
	}
	if coords := encodeLatLng(a.StartLatLng); coords != "" {
		activity.StartLatLng = coords
	}
	if coords := encodeLatLng(a.EndLatLng); coords != "" {
		activity.EndLatLng = coords
	}
	if a.Map != nil {
		activity.MapSummaryPolyline = a.Map.SummaryPolyline
	}

	return activity
}

func encodeLatLng(coords []float64) string {
	if len(coords) != 2 {
		return ""
	}
	b, err := json.Marshal(coords)
	if err != nil {
		return ""
	}
	return string(b)
}
