package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stravaload/internal/store"
	"stravaload/internal/strava"
)

func TestCurrentFitnessBeforeAnySync(t *testing.T) {
	m, _ := newTestManager(t, &fakeSource{})

	fitness, err := m.CurrentFitness(testAthleteID)
	require.NoError(t, err)
	assert.Nil(t, fitness)

	last, err := m.LastSync(testAthleteID)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestQueriesAfterSync(t *testing.T) {
	src := &fakeSource{
		activities: []strava.Activity{rideOn(1, 0, 250), rideOn(2, 5, 200)},
	}
	m, _ := newTestManager(t, src)
	require.Equal(t, store.SyncStatusSuccess, m.FullSync(context.Background(), testAthleteID).Status)

	fitness, err := m.CurrentFitness(testAthleteID)
	require.NoError(t, err)
	require.NotNil(t, fitness)
	assert.Equal(t, "2024-03-20", fitness.Date)
	assert.Greater(t, fitness.CTL, 0.0)
	assert.InDelta(t, fitness.CTL-fitness.ATL, fitness.TSB, 0.001)
	assert.NotEmpty(t, fitness.Form)

	series, err := m.LoadSeries(testAthleteID, 30)
	require.NoError(t, err)
	assert.Len(t, series, 20) // March 1st through the fake today

	ranged, err := m.TrainingLoadSeries(testAthleteID, "2024-03-01", "2024-03-20")
	require.NoError(t, err)
	assert.Equal(t, series, ranged)

	// Half-open range excludes the second ride's start
	acts, err := m.ActivitiesInRange(testAthleteID,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, int64(1), acts[0].ID)

	last, err := m.LastSync(testAthleteID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, store.SyncStatusSuccess, last.SyncStatus)
}

func TestEnsureDefaultZones(t *testing.T) {
	m, db := newTestManager(t, &fakeSource{})
	require.NoError(t, db.UpsertAthlete(&store.Athlete{ID: testAthleteID}))

	require.NoError(t, m.EnsureDefaultZones(testAthleteID))

	// Thresholds come from the configured fallbacks: max HR 185, FTP 250
	hr, err := db.GetZones(testAthleteID, store.ZoneTypeHeartRate)
	require.NoError(t, err)
	require.Len(t, hr, 5)
	assert.Equal(t, 111.0, hr[1].MinValue)
	assert.Equal(t, 130.0, hr[1].MaxValue)

	power, err := db.GetZones(testAthleteID, store.ZoneTypePower)
	require.NoError(t, err)
	require.Len(t, power, 7)
	assert.Equal(t, 225.0, power[3].MinValue)
	assert.Equal(t, 263.0, power[3].MaxValue)

	// A second call leaves customized zones alone
	custom := hr[0]
	custom.MaxValue = 99
	require.NoError(t, db.UpsertZone(&custom))
	require.NoError(t, m.EnsureDefaultZones(testAthleteID))

	hr, err = db.GetZones(testAthleteID, store.ZoneTypeHeartRate)
	require.NoError(t, err)
	require.Len(t, hr, 5)
	assert.Equal(t, 99.0, hr[0].MaxValue)
}

func TestTimeInZones(t *testing.T) {
	m, db := newTestManager(t, &fakeSource{})
	require.NoError(t, db.UpsertAthlete(&store.Athlete{ID: testAthleteID}))
	require.NoError(t, m.EnsureDefaultZones(testAthleteID))

	_, err := db.UpsertActivity(&store.Activity{
		ID:        1,
		AthleteID: testAthleteID,
		StartDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	hrData, _ := json.Marshal([]float64{100, 120, 150, 170, 170})
	require.NoError(t, db.SaveStream(&store.ActivityStream{
		ActivityID:   1,
		StreamType:   "heartrate",
		Data:         string(hrData),
		OriginalSize: 5,
	}))

	// Without a time stream samples count as one second each
	buckets, err := m.TimeInZones(testAthleteID, 1, store.ZoneTypeHeartRate)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 0, 4: 1, 5: 2}, buckets)

	// A time stream at 2s spacing doubles every bucket
	timeData, _ := json.Marshal([]float64{0, 2, 4, 6, 8})
	require.NoError(t, db.SaveStream(&store.ActivityStream{
		ActivityID:   1,
		StreamType:   "time",
		Data:         string(timeData),
		OriginalSize: 5,
	}))
	buckets, err = m.TimeInZones(testAthleteID, 1, store.ZoneTypeHeartRate)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 0, 4: 2, 5: 4}, buckets)

	// No watts stream stored for the activity
	buckets, err = m.TimeInZones(testAthleteID, 1, store.ZoneTypePower)
	require.NoError(t, err)
	assert.Nil(t, buckets)
}
