package service

import (
	"time"

	"stravaload/internal/metrics"
	"stravaload/internal/store"
)

// recomputeLoads rebuilds the daily CTL/ATL/TSB series. Full syncs
// start over from the athlete's first activity; incremental syncs
// extend the persisted series from the previous day's row.
func (m *SyncManager) recomputeLoads(athleteID int64, syncType string, after time.Time, result *Result) error {
	m.notify(Progress{Phase: "loads"})

	var since time.Time
	if syncType == store.SyncTypeIncremental && !after.IsZero() {
		since = startOfDay(after)
	}

	activities, err := m.db.ActivitiesSince(athleteID, since)
	if err != nil {
		return err
	}
	if len(activities) == 0 {
		return nil
	}

	var days []metrics.DailyTSS
	for _, a := range activities {
		tss := 0.0
		if a.TrainingStressScore != nil {
			tss = *a.TrainingStressScore
		}
		days = append(days, metrics.DailyTSS{
			Date:          a.StartDate.UTC(),
			TSS:           tss,
			ActivityCount: 1,
		})
	}

	first := days[0].Date
	for _, d := range days[1:] {
		if d.Date.Before(first) {
			first = d.Date
		}
	}

	var seed metrics.Seed
	if syncType == store.SyncTypeIncremental {
		prev, err := m.db.TrainingLoadBefore(athleteID, first.Format("2006-01-02"))
		if err != nil {
			return err
		}
		if prev != nil {
			seed.CTL = prev.CTL
			seed.ATL = prev.ATL
			prevDate, err := time.Parse("2006-01-02", prev.Date)
			if err == nil {
				// Bridge any rest days between the seed row and the first
				// new activity so the averages decay through them
				if prevDate.AddDate(0, 0, 1).Before(startOfDay(first)) {
					days = append(days, metrics.DailyTSS{Date: prevDate.AddDate(0, 0, 1)})
				}
				// The trailing week of stored CTL keeps ramp rate exact
				// across the join
				prior, err := m.db.TrainingLoadRange(athleteID,
					prevDate.AddDate(0, 0, -6).Format("2006-01-02"), prev.Date)
				if err != nil {
					return err
				}
				for _, row := range prior {
					seed.PriorCTLs = append(seed.PriorCTLs, row.CTL)
				}
			}
		}
	} else {
		// Wipe the old series so stale rows can't survive a rebuild
		if err := m.db.DeleteTrainingLoadsFrom(athleteID, "0000-00-00"); err != nil {
			return err
		}
	}

	// Extend through today so current form reflects rest since the
	// last activity
	today := startOfDay(m.now().UTC())
	last := days[0].Date
	for _, d := range days[1:] {
		if d.Date.After(last) {
			last = d.Date
		}
	}
	if startOfDay(last).Before(today) {
		days = append(days, metrics.DailyTSS{Date: today})
	}

	series := metrics.FitnessSeries(days, seed)
	for _, point := range series {
		if err := m.db.UpsertTrainingLoad(&store.TrainingLoad{
			AthleteID:     athleteID,
			Date:          point.Date.Format("2006-01-02"),
			DailyTSS:      point.DailyTSS,
			ActivityCount: point.ActivityCount,
			CTL:           point.CTL,
			ATL:           point.ATL,
			TSB:           point.TSB,
			RampRate:      point.RampRate,
		}); err != nil {
			return err
		}
	}

	result.LoadDaysComputed = len(series)
	return nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
